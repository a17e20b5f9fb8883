package api

// Member is one member of a group.
type Member struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"` // "registered" or "placeholder"
	DisplayName string `json:"display_name"`
}

// Group is a group's summary without its ledger.
type Group struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	CreatedBy string   `json:"created_by"`
	Members   []Member `json:"members"`
	CreatedAt int64    `json:"created_at"`
}

// Debt is one pairwise ledger entry, both in stored form (User1, User2,
// Net) and resolved into who owes whom.
type Debt struct {
	User1 string `json:"user1"`
	User2 string `json:"user2"`
	// Net is positive when User2 owes User1.
	Net   string `json:"net"`
	State string `json:"state"`

	Debtor   string `json:"debtor"`
	Creditor string `json:"creditor"`
	Amount   string `json:"amount"`
}

// Split is one delta of an expense: Debtor owes Creditor Amount.
type Split struct {
	Creditor string `json:"creditor"`
	Debtor   string `json:"debtor"`
	Amount   string `json:"amount"`
}

// ManualSplit fixes part of a participant's share.
type ManualSplit struct {
	UserID             string `json:"user_id" validate:"required"`
	Amount             string `json:"amount" validate:"required,numeric"`
	IncludeInRemainder bool   `json:"include_in_remainder"`
}

// Expense is a stored expense.
type Expense struct {
	ID          string  `json:"id"`
	GroupID     string  `json:"group_id"`
	Description string  `json:"description"`
	Amount      string  `json:"amount"`
	PaidBy      string  `json:"paid_by"`
	Splits      []Split `json:"splits"`
	CreatedAt   int64   `json:"created_at"`
}

// MemberBalance is a member's aggregate position in a group.
type MemberBalance struct {
	MemberID   string `json:"member_id"`
	NetBalance string `json:"net_balance"` // positive = is owed money
	TotalOwed  string `json:"total_owed"`
	TotalOwes  string `json:"total_owes"`
}

// DebtEdge is a directed amount between two members.
type DebtEdge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// Settlement is an entry in a group's settlement history.
type Settlement struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"` // "confirmed" or "payment"
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
	Amount     string `json:"amount"`
	CreatedBy  string `json:"created_by"`
	CreatedAt  int64  `json:"created_at"`
	Note       string `json:"note,omitempty"`
}

// User is a registered account.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	DisplayName string `json:"display_name"`
	CreatedAt   int64  `json:"created_at"`
}

// NewPlaceholder describes a person to add before they have an account.
type NewPlaceholder struct {
	Name  string `json:"name" validate:"required,max=100"`
	Phone string `json:"phone" validate:"required,e164"`
}
