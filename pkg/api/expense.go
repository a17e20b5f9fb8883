package api

type ComputeSplitRequest struct {
	GroupID string `json:"group_id" validate:"required"`
	Amount  string `json:"amount" validate:"required,numeric"`
	// PaidBy defaults to the caller.
	PaidBy       string        `json:"paid_by,omitempty"`
	Participants []string      `json:"participants" validate:"required,min=1,dive,required"`
	ManualSplits []ManualSplit `json:"manual_splits,omitempty" validate:"dive"`
}

type ComputeSplitResponse struct {
	Splits []Split `json:"splits"`
}

type AddExpenseRequest struct {
	GroupID      string        `json:"group_id" validate:"required"`
	Description  string        `json:"description" validate:"required,max=200"`
	Amount       string        `json:"amount" validate:"required,numeric"`
	Participants []string      `json:"participants" validate:"required,min=1,dive,required"`
	ManualSplits []ManualSplit `json:"manual_splits,omitempty" validate:"dive"`
}

type AddExpenseResponse struct {
	Expense Expense `json:"expense"`
	Debts   []Debt  `json:"debts"`
}

type GetExpenseRequest struct {
	ExpenseID string `json:"expense_id" validate:"required"`
}

type GetExpenseResponse struct {
	Expense Expense `json:"expense"`
}

type ListExpensesRequest struct {
	GroupID string `json:"group_id" validate:"required"`
}

type ListExpensesResponse struct {
	Expenses []Expense `json:"expenses"`
}

type UpdateExpenseRequest struct {
	ExpenseID    string        `json:"expense_id" validate:"required"`
	Description  string        `json:"description" validate:"required,max=200"`
	Amount       string        `json:"amount" validate:"required,numeric"`
	Participants []string      `json:"participants" validate:"required,min=1,dive,required"`
	ManualSplits []ManualSplit `json:"manual_splits,omitempty" validate:"dive"`
}

type UpdateExpenseResponse struct {
	Expense Expense `json:"expense"`
	Debts   []Debt  `json:"debts"`
}

type DeleteExpenseRequest struct {
	ExpenseID string `json:"expense_id" validate:"required"`
}

type DeleteExpenseResponse struct {
	Debts []Debt `json:"debts"`
}

// RequestSettlementRequest asks to settle the debt between the caller and
// OtherUserID.
type RequestSettlementRequest struct {
	GroupID     string `json:"group_id" validate:"required"`
	OtherUserID string `json:"other_user_id" validate:"required"`
}

// ConfirmSettlementRequest marks the debt between the caller and
// OtherUserID as settled.
type ConfirmSettlementRequest struct {
	GroupID     string `json:"group_id" validate:"required"`
	OtherUserID string `json:"other_user_id" validate:"required"`
}

// SettlementResponse reports the outcome of a settlement operation.
// Status is "ok", "already_requested" or "already_settled".
type SettlementResponse struct {
	Status string `json:"status"`
	Debt   *Debt  `json:"debt,omitempty"`
}

// RecordPaymentRequest records that the caller paid ToUserID directly.
type RecordPaymentRequest struct {
	GroupID  string `json:"group_id" validate:"required"`
	ToUserID string `json:"to_user_id" validate:"required"`
	Amount   string `json:"amount" validate:"required,numeric"`
	Note     string `json:"note,omitempty" validate:"max=200"`
}

type RecordPaymentResponse struct {
	Status  string `json:"status"`
	Applied string `json:"applied"`
	// Debt is nil when the payment cleared the pair.
	Debt *Debt `json:"debt,omitempty"`
}
