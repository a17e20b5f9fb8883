package mongo

import (
	"errors"
	"reflect"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mmynk/contri/internal/ledger"
	"github.com/mmynk/contri/internal/models"
)

func TestGroupModel_BSON(t *testing.T) {
	g := &models.Group{
		ID:        "grp_1",
		Name:      "Flat",
		CreatedBy: "user_a",
		Members: []models.Member{
			{ID: "user_a", Kind: models.KindRegistered, DisplayName: "A"},
			{ID: "temp_b", Kind: models.KindPlaceholder, DisplayName: "B"},
		},
		Debts: []ledger.Entry{
			{User1: "temp_b", User2: "user_a", Net: -1250, State: ledger.Settled},
		},
		CreatedAt: 10,
		UpdatedAt: 20,
	}

	raw, err := bson.Marshal(toGroupModel(g))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	// The ledger is embedded in the group document.
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if doc["_id"] != "grp_1" {
		t.Errorf("_id = %v", doc["_id"])
	}
	if _, ok := doc["debts"]; !ok {
		t.Errorf("document has no debts field: %v", doc)
	}

	var m groupModel
	if err := bson.Unmarshal(raw, &m); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	got, err := fromGroupModel(&m)
	if err != nil {
		t.Fatalf("fromGroupModel failed: %v", err)
	}
	if !reflect.DeepEqual(got, g) {
		t.Errorf("decoded group = %+v, want %+v", got, g)
	}
}

func TestGroupModel_UnknownMemberKind(t *testing.T) {
	m := &groupModel{
		ID:      "grp_1",
		Members: []memberModel{{ID: "user_a", Kind: "registered"}, {ID: "x", Kind: "robot"}},
	}
	if _, err := fromGroupModel(m); !errors.Is(err, models.ErrUnknownMemberKind) {
		t.Errorf("error = %v, want ErrUnknownMemberKind", err)
	}
}

func TestExpenseModel_KeepsSplitOrder(t *testing.T) {
	e := &models.Expense{
		ID:      "exp_1",
		GroupID: "grp_1",
		Amount:  1000,
		PaidBy:  "a",
		Splits: []ledger.Delta{
			{Creditor: "a", Debtor: "c", Amount: 500},
			{Creditor: "a", Debtor: "b", Amount: 500},
		},
	}

	raw, err := bson.Marshal(toExpenseModel(e))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var m expenseModel
	if err := bson.Unmarshal(raw, &m); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got := fromExpenseModel(&m); !reflect.DeepEqual(got, e) {
		t.Errorf("decoded expense = %+v, want %+v", got, e)
	}
}

func TestUserModel_PasswordHashStored(t *testing.T) {
	u := &models.User{ID: "user_a", Email: "a@example.com", DisplayName: "A", PasswordHash: "h"}
	if got := fromUserModel(toUserModel(u)); !reflect.DeepEqual(got, u) {
		t.Errorf("user = %+v, want %+v", got, u)
	}
}

func TestMigrationIndexes_EmailUnique(t *testing.T) {
	idx := migrationIndexes()[colUsers]
	if len(idx) == 0 || idx[0].Options == nil {
		t.Fatal("users collection has no unique email index")
	}
}
