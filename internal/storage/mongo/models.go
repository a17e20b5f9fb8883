package mongo

import (
	"fmt"

	"github.com/mmynk/contri/internal/ledger"
	"github.com/mmynk/contri/internal/models"
	"github.com/mmynk/contri/internal/money"
)

// ==================== Group models ====================

// groupModel stores a group as a single document with its members and
// ledger embedded, so one write replaces the whole ledger.
type groupModel struct {
	ID        string        `bson:"_id"`
	Name      string        `bson:"name"`
	CreatedBy string        `bson:"created_by"`
	Members   []memberModel `bson:"members"`
	Debts     []debtModel   `bson:"debts"`
	CreatedAt int64         `bson:"created_at"`
	UpdatedAt int64         `bson:"updated_at"`
}

type memberModel struct {
	ID          string `bson:"id"`
	Kind        string `bson:"kind"`
	DisplayName string `bson:"display_name"`
}

type debtModel struct {
	User1 string `bson:"user1"`
	User2 string `bson:"user2"`
	Net   int64  `bson:"net"`
	State string `bson:"state"`
}

func toGroupModel(g *models.Group) *groupModel {
	m := &groupModel{
		ID:        g.ID,
		Name:      g.Name,
		CreatedBy: g.CreatedBy,
		Members:   make([]memberModel, len(g.Members)),
		Debts:     make([]debtModel, len(g.Debts)),
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
	for i, mem := range g.Members {
		m.Members[i] = memberModel{ID: mem.ID, Kind: string(mem.Kind), DisplayName: mem.DisplayName}
	}
	for i, e := range g.Debts {
		m.Debts[i] = debtModel{User1: e.User1, User2: e.User2, Net: int64(e.Net), State: string(e.State)}
	}
	return m
}

func fromGroupModel(m *groupModel) (*models.Group, error) {
	g := &models.Group{
		ID:        m.ID,
		Name:      m.Name,
		CreatedBy: m.CreatedBy,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	for _, mem := range m.Members {
		member := models.Member{
			ID:          mem.ID,
			Kind:        models.MemberKind(mem.Kind),
			DisplayName: mem.DisplayName,
		}
		if _, err := member.Ref(); err != nil {
			return nil, fmt.Errorf("group %s: %w", m.ID, err)
		}
		g.Members = append(g.Members, member)
	}
	for _, d := range m.Debts {
		g.Debts = append(g.Debts, ledger.Entry{
			User1: d.User1,
			User2: d.User2,
			Net:   money.Cents(d.Net),
			State: ledger.State(d.State),
		})
	}
	return g, nil
}

// ==================== Expense models ====================

type expenseModel struct {
	ID          string       `bson:"_id"`
	GroupID     string       `bson:"group_id"`
	Description string       `bson:"description"`
	Amount      int64        `bson:"amount"`
	PaidBy      string       `bson:"paid_by"`
	Splits      []splitModel `bson:"splits"`
	CreatedAt   int64        `bson:"created_at"`
}

type splitModel struct {
	Creditor string `bson:"creditor"`
	Debtor   string `bson:"debtor"`
	Amount   int64  `bson:"amount"`
}

func toExpenseModel(e *models.Expense) *expenseModel {
	m := &expenseModel{
		ID:          e.ID,
		GroupID:     e.GroupID,
		Description: e.Description,
		Amount:      int64(e.Amount),
		PaidBy:      e.PaidBy,
		Splits:      make([]splitModel, len(e.Splits)),
		CreatedAt:   e.CreatedAt,
	}
	for i, s := range e.Splits {
		m.Splits[i] = splitModel{Creditor: s.Creditor, Debtor: s.Debtor, Amount: int64(s.Amount)}
	}
	return m
}

func fromExpenseModel(m *expenseModel) *models.Expense {
	e := &models.Expense{
		ID:          m.ID,
		GroupID:     m.GroupID,
		Description: m.Description,
		Amount:      money.Cents(m.Amount),
		PaidBy:      m.PaidBy,
		CreatedAt:   m.CreatedAt,
	}
	for _, s := range m.Splits {
		e.Splits = append(e.Splits, ledger.Delta{
			Creditor: s.Creditor,
			Debtor:   s.Debtor,
			Amount:   money.Cents(s.Amount),
		})
	}
	return e
}

// ==================== User models ====================

type userModel struct {
	ID           string `bson:"_id"`
	Email        string `bson:"email"`
	Phone        string `bson:"phone,omitempty"`
	DisplayName  string `bson:"display_name"`
	PasswordHash string `bson:"password_hash"`
	CreatedAt    int64  `bson:"created_at"`
	UpdatedAt    int64  `bson:"updated_at"`
}

func toUserModel(u *models.User) *userModel {
	return &userModel{
		ID:           u.ID,
		Email:        u.Email,
		Phone:        u.Phone,
		DisplayName:  u.DisplayName,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func fromUserModel(m *userModel) *models.User {
	return &models.User{
		ID:           m.ID,
		Email:        m.Email,
		Phone:        m.Phone,
		DisplayName:  m.DisplayName,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

type placeholderModel struct {
	ID        string `bson:"_id"`
	Name      string `bson:"name"`
	Phone     string `bson:"phone"`
	CreatedBy string `bson:"created_by"`
	CreatedAt int64  `bson:"created_at"`
}

func toPlaceholderModel(p *models.PlaceholderUser) *placeholderModel {
	return &placeholderModel{ID: p.ID, Name: p.Name, Phone: p.Phone, CreatedBy: p.CreatedBy, CreatedAt: p.CreatedAt}
}

func fromPlaceholderModel(m *placeholderModel) *models.PlaceholderUser {
	return &models.PlaceholderUser{ID: m.ID, Name: m.Name, Phone: m.Phone, CreatedBy: m.CreatedBy, CreatedAt: m.CreatedAt}
}

// ==================== Settlement models ====================

type settlementModel struct {
	ID         string `bson:"_id"`
	GroupID    string `bson:"group_id"`
	Kind       string `bson:"kind"`
	FromUserID string `bson:"from_user_id"`
	ToUserID   string `bson:"to_user_id"`
	Amount     int64  `bson:"amount"`
	CreatedAt  int64  `bson:"created_at"`
	CreatedBy  string `bson:"created_by"`
	Note       string `bson:"note,omitempty"`
}

func toSettlementModel(s *models.Settlement) *settlementModel {
	return &settlementModel{
		ID:         s.ID,
		GroupID:    s.GroupID,
		Kind:       string(s.Kind),
		FromUserID: s.FromUserID,
		ToUserID:   s.ToUserID,
		Amount:     int64(s.Amount),
		CreatedAt:  s.CreatedAt,
		CreatedBy:  s.CreatedBy,
		Note:       s.Note,
	}
}

func fromSettlementModel(m *settlementModel) *models.Settlement {
	return &models.Settlement{
		ID:         m.ID,
		GroupID:    m.GroupID,
		Kind:       models.SettlementKind(m.Kind),
		FromUserID: m.FromUserID,
		ToUserID:   m.ToUserID,
		Amount:     money.Cents(m.Amount),
		CreatedAt:  m.CreatedAt,
		CreatedBy:  m.CreatedBy,
		Note:       m.Note,
	}
}
