package models

import "github.com/mmynk/contri/internal/money"

// SettlementKind distinguishes how a debt was cleared.
type SettlementKind string

const (
	// SettlementConfirmed records a pair being marked settled in full.
	SettlementConfirmed SettlementKind = "confirmed"
	// SettlementPayment records a direct payment that reduced a debt.
	SettlementPayment SettlementKind = "payment"
)

// Settlement is an audit record of a debt being paid down or settled.
// Records are append-only; the ledger remains the source of truth.
type Settlement struct {
	// ID is the unique identifier for the settlement (UUID format).
	ID string `json:"id"`

	// GroupID is the group this settlement belongs to.
	GroupID string `json:"group_id"`

	Kind SettlementKind `json:"kind"`

	// FromUserID is the member who paid (debtor settling up).
	FromUserID string `json:"from_user_id"`

	// ToUserID is the member who received payment (creditor being paid).
	ToUserID string `json:"to_user_id"`

	Amount money.Cents `json:"amount"`

	// CreatedAt is the Unix timestamp when the settlement was recorded.
	CreatedAt int64 `json:"created_at"`

	// CreatedBy is the user ID who recorded this settlement.
	CreatedBy string `json:"created_by"`

	// Note is an optional description for the settlement.
	Note string `json:"note,omitempty"`
}
