package models

import (
	"github.com/mmynk/contri/internal/ledger"
	"github.com/mmynk/contri/internal/money"
)

// Expense is one payment made on behalf of some members of a group.
// Expenses are never edited in place; an update reverses the old splits and
// applies new ones.
type Expense struct {
	// ID is the unique identifier for the expense ("exp_..." format).
	ID string `json:"id"`

	GroupID     string      `json:"group_id"`
	Description string      `json:"description"`
	Amount      money.Cents `json:"amount"`

	// PaidBy is the member who paid, normally the member who created it.
	PaidBy string `json:"paid_by"`

	// Splits are the deltas this expense contributed to the group ledger.
	// Every split has PaidBy as its creditor.
	Splits []ledger.Delta `json:"splits"`

	CreatedAt int64 `json:"created_at"`
}
