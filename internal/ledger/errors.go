package ledger

import "errors"

var (
	// ErrNoSuchDebt is returned by settlement operations on a pair with no entry.
	ErrNoSuchDebt = errors.New("ledger: no such debt")

	// ErrCorruptEntry marks a stored entry the engine cannot interpret, such as an
	// unrecognized settlement state. The operation is aborted without mutation.
	ErrCorruptEntry = errors.New("ledger: corrupt entry")

	// ErrBalanceOverflow is returned when applying deltas would push a pair's
	// net beyond money.MaxCents.
	ErrBalanceOverflow = errors.New("ledger: balance out of range")

	ErrInvalidDelta     = errors.New("ledger: invalid delta")
	ErrDuplicatePair    = errors.New("ledger: duplicate pair")
	ErrRemapConflict    = errors.New("ledger: remap target already has a balance with counterpart")
	ErrInvalidPayment   = errors.New("ledger: payment amount must be positive")
	ErrPaymentDirection = errors.New("ledger: payer does not owe receiver")
)
