package service

import (
	"context"
	"errors"
	"testing"

	"connectrpc.com/connect"

	"github.com/mmynk/contri/internal/models"
	"github.com/mmynk/contri/pkg/api"
)

func TestRegisterAndLogin(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	reg, err := env.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
		Email:       "erin@example.com",
		DisplayName: "Erin",
		Password:    "correct horse",
	}))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if reg.Msg.Token == "" || reg.Msg.User.ID == "" {
		t.Errorf("Register response = %+v", reg.Msg)
	}
	if len(reg.Msg.ClaimedGroups) != 0 {
		t.Errorf("claimed %v without a phone number", reg.Msg.ClaimedGroups)
	}

	login, err := env.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{
		Email:    "erin@example.com",
		Password: "correct horse",
	}))
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if login.Msg.User.ID != reg.Msg.User.ID || login.Msg.Token == "" {
		t.Errorf("Login response = %+v", login.Msg)
	}

	_, err = env.auth.Login(ctx, connect.NewRequest(&api.LoginRequest{
		Email:    "erin@example.com",
		Password: "wrong password",
	}))
	assertCode(t, err, connect.CodeUnauthenticated)

	me, err := env.auth.GetCurrentUser(ctx, as(reg.Msg.User.ID, &api.GetCurrentUserRequest{}))
	if err != nil {
		t.Fatalf("GetCurrentUser failed: %v", err)
	}
	if me.Msg.User.Email != "erin@example.com" || me.Msg.User.DisplayName != "Erin" {
		t.Errorf("GetCurrentUser = %+v", me.Msg.User)
	}
}

func TestRegister_Errors(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  *api.RegisterRequest
		want connect.Code
	}{
		{
			name: "duplicate email",
			req:  &api.RegisterRequest{Email: "alice@example.com", DisplayName: "Alice", Password: "longenough"},
			want: connect.CodeAlreadyExists,
		},
		{
			name: "malformed email",
			req:  &api.RegisterRequest{Email: "not-an-email", DisplayName: "X", Password: "longenough"},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "short password",
			req:  &api.RegisterRequest{Email: "x@example.com", DisplayName: "X", Password: "short"},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "malformed phone",
			req:  &api.RegisterRequest{Email: "x@example.com", DisplayName: "X", Phone: "12345", Password: "longenough"},
			want: connect.CodeInvalidArgument,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.auth.Register(ctx, connect.NewRequest(tt.req))
			assertCode(t, err, tt.want)
		})
	}
}

func TestGetCurrentUser_Unauthenticated(t *testing.T) {
	env := setupTestServer(t)

	_, err := env.auth.GetCurrentUser(context.Background(), connect.NewRequest(&api.GetCurrentUserRequest{}))
	assertCode(t, err, connect.CodeUnauthenticated)
}

func TestRegister_ClaimsPlaceholders(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	const phone = "+15550001111"

	trip, err := env.groups.CreateGroup(ctx, as(alice, &api.CreateGroupRequest{
		Name:         "Trip",
		MemberIDs:    []string{bob},
		Placeholders: []api.NewPlaceholder{{Name: "Eve", Phone: phone}},
	}))
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	flat, err := env.groups.CreateGroup(ctx, as(carol, &api.CreateGroupRequest{
		Name:         "Flat",
		Placeholders: []api.NewPlaceholder{{Name: "Evie", Phone: phone}},
	}))
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	tripID, flatID := trip.Msg.Group.ID, flat.Msg.Group.ID
	tripPlaceholder := trip.Msg.Group.Members[2].ID
	flatPlaceholder := flat.Msg.Group.Members[1].ID

	dinner := env.addExpense(t, tripID, alice, "90", alice, bob, tripPlaceholder)
	env.addExpense(t, flatID, carol, "50", carol, flatPlaceholder)

	reg, err := env.auth.Register(ctx, connect.NewRequest(&api.RegisterRequest{
		Email:       "eve@example.com",
		DisplayName: "Eve",
		Phone:       phone,
		Password:    "longenough",
	}))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	eve := reg.Msg.User.ID

	if len(reg.Msg.ClaimedGroups) != 2 {
		t.Fatalf("claimed %v, want both groups", reg.Msg.ClaimedGroups)
	}

	groups, err := env.groups.ListUserGroups(ctx, as(eve, &api.ListUserGroupsRequest{}))
	if err != nil {
		t.Fatalf("ListUserGroups failed: %v", err)
	}
	if len(groups.Msg.Groups) != 2 {
		t.Errorf("eve belongs to %d groups, want 2", len(groups.Msg.Groups))
	}

	view, err := env.groups.GetGroup(ctx, as(eve, &api.GetGroupRequest{GroupID: tripID}))
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	for _, m := range view.Msg.Group.Members {
		if m.ID == tripPlaceholder {
			t.Errorf("placeholder %s still a member", tripPlaceholder)
		}
		if m.ID == eve && (m.Kind != "registered" || m.DisplayName != "Eve") {
			t.Errorf("claimed member = %+v", m)
		}
	}
	assertDebt(t, view.Msg.Debts, eve, alice, "30.00", "outstanding")
	assertDebt(t, view.Msg.Debts, bob, alice, "30.00", "outstanding")
	assertDebt(t, env.debts(t, flatID, carol), eve, carol, "25.00", "outstanding")

	// The stored expense follows the claim, so deleting it clears eve's debt.
	if _, err := env.expenses.DeleteExpense(ctx, as(alice, &api.DeleteExpenseRequest{ExpenseID: dinner.Expense.ID})); err != nil {
		t.Fatalf("DeleteExpense failed: %v", err)
	}
	if debts := env.debts(t, tripID, alice); len(debts) != 0 {
		t.Errorf("debts after deleting the claimed expense = %+v", debts)
	}

	left, err := env.store.ListPlaceholdersByPhone(ctx, phone)
	if err != nil {
		t.Fatalf("ListPlaceholdersByPhone failed: %v", err)
	}
	if len(left) != 0 {
		t.Errorf("placeholders left after claiming: %+v", left)
	}
}

func TestRemapExpense(t *testing.T) {
	env := setupTestServer(t)
	groupID := env.createGroup(t, alice, bob)
	exp := env.addExpense(t, groupID, alice, "10", alice, bob)

	stored, err := env.store.GetExpense(context.Background(), exp.Expense.ID)
	if err != nil {
		t.Fatalf("GetExpense failed: %v", err)
	}

	if _, changed := remapExpense(stored, carol, dave); changed {
		t.Error("expense without the member reported a change")
	}

	out, changed := remapExpense(stored, bob, dave)
	if !changed {
		t.Fatal("expected a change")
	}
	if out.Splits[0].Debtor != dave || stored.Splits[0].Debtor != bob {
		t.Errorf("remap = %+v, original = %+v", out.Splits, stored.Splits)
	}
	if out.ID != stored.ID || out.PaidBy != alice {
		t.Errorf("remap changed unrelated fields: %+v", out)
	}
}

// placeholderGroup creates a group of alice and a placeholder with two
// expenses alice paid for both. The placeholder owes alice 8.00.
func placeholderGroup(t *testing.T, env *testEnv) (groupID, placeholderID string, expenseIDs []string) {
	t.Helper()
	resp, err := env.groups.CreateGroup(context.Background(), as(alice, &api.CreateGroupRequest{
		Name:         "Trip",
		Placeholders: []api.NewPlaceholder{{Name: "Zed", Phone: "+15550002222"}},
	}))
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	groupID = resp.Msg.Group.ID
	placeholderID = resp.Msg.Group.Members[1].ID
	for _, amount := range []string{"10", "6"} {
		exp := env.addExpense(t, groupID, alice, amount, alice, placeholderID)
		expenseIDs = append(expenseIDs, exp.Expense.ID)
	}
	return groupID, placeholderID, expenseIDs
}

// assertUnclaimed checks the group still refers to the placeholder everywhere.
func assertUnclaimed(t *testing.T, env *testEnv, groupID, placeholderID string, expenseIDs []string) {
	t.Helper()
	ctx := context.Background()
	for _, id := range expenseIDs {
		e, err := env.store.GetExpense(ctx, id)
		if err != nil {
			t.Fatalf("expense %s lost: %v", id, err)
		}
		if len(e.Splits) != 1 || e.Splits[0].Debtor != placeholderID {
			t.Errorf("expense %s splits = %+v, want the placeholder as debtor", id, e.Splits)
		}
	}
	group, err := env.store.GetGroup(ctx, groupID)
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if !group.HasMember(placeholderID) || group.HasMember(dave) {
		t.Errorf("members = %+v, want the placeholder and not dave", group.Members)
	}
	assertDebt(t, env.debts(t, groupID, alice), placeholderID, alice, "8.00", "outstanding")
}

func TestClaimInGroup_ExpenseWriteFailureRestoresExpenses(t *testing.T) {
	env := setupTestServer(t)
	groupID, placeholderID, expenseIDs := placeholderGroup(t, env)

	// The first rewrite succeeds and the second fails.
	store := &faultyStore{Store: env.store, failCreateCall: 2}
	svcs := servicesOn(store)
	claimant := &models.User{ID: dave, DisplayName: "dave"}

	err := svcs.Auth.claimInGroup(context.Background(), groupID, placeholderID, claimant)
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("error = %v, want %v", err, errDiskFull)
	}
	assertUnclaimed(t, env, groupID, placeholderID, expenseIDs)
}

func TestClaimInGroup_LedgerWriteFailureRestoresExpenses(t *testing.T) {
	env := setupTestServer(t)
	groupID, placeholderID, expenseIDs := placeholderGroup(t, env)

	store := &faultyStore{Store: env.store, failUpdateGroup: true}
	svcs := servicesOn(store)
	claimant := &models.User{ID: dave, DisplayName: "dave"}

	err := svcs.Auth.claimInGroup(context.Background(), groupID, placeholderID, claimant)
	assertCode(t, err, connect.CodeInternal)
	assertUnclaimed(t, env, groupID, placeholderID, expenseIDs)
}

func TestClaimInGroup_OnlyPlaceholders(t *testing.T) {
	env := setupTestServer(t)
	groupID := env.createGroup(t, alice, bob)
	env.addExpense(t, groupID, alice, "10", alice, bob)

	claimant := &models.User{ID: dave, DisplayName: "dave"}
	err := servicesOn(env.store).Auth.claimInGroup(context.Background(), groupID, bob, claimant)
	assertCode(t, err, connect.CodeFailedPrecondition)

	assertDebt(t, env.debts(t, groupID, alice), bob, alice, "5.00", "outstanding")
}
