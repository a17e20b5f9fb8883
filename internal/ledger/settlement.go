package ledger

import (
	"fmt"

	"github.com/mmynk/contri/internal/money"
)

// RequestSettlement marks the debt between a and b as awaiting settlement.
// A pair that is already requested or settled is left alone and the matching
// informational status is returned.
func (l *Ledger) RequestSettlement(a, b string) (Status, error) {
	return l.settle(a, b, evRequest)
}

// ConfirmSettlement marks the debt between a and b as settled. The net amount
// is kept as a record of what was settled.
func (l *Ledger) ConfirmSettlement(a, b string) (Status, error) {
	return l.settle(a, b, evConfirm)
}

func (l *Ledger) settle(a, b string, ev event) (Status, error) {
	e, ok := l.entries[Pair(a, b)]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrNoSuchDebt, a, b)
	}
	to, status, err := transition(e.State, ev)
	if err != nil {
		return "", err
	}
	e.State = to
	return status, nil
}

// RecordPayment reduces the debt from -> to by a direct payment, capped at
// the outstanding amount, and returns the amount actually applied. The entry
// is pruned when the payment clears it.
func (l *Ledger) RecordPayment(from, to string, amount money.Cents) (money.Cents, Status, error) {
	if amount <= 0 {
		return 0, "", ErrInvalidPayment
	}
	key := Pair(from, to)
	e, ok := l.entries[key]
	if !ok {
		return 0, "", fmt.Errorf("%w: %s/%s", ErrNoSuchDebt, from, to)
	}
	if !e.State.Valid() {
		return 0, "", fmt.Errorf("%w: pair %s/%s has state %q", ErrCorruptEntry, e.User1, e.User2, e.State)
	}
	if e.State == Settled {
		return 0, StatusAlreadySettled, nil
	}

	debtor, _, owed := e.Direction()
	if debtor != from || owed == 0 {
		return 0, "", fmt.Errorf("%w: %s -> %s", ErrPaymentDirection, from, to)
	}

	applied := money.Min(owed, amount)
	// Paying reduces the debtor's obligation, i.e. the payer is credited.
	e.Net += orient(key, from, applied)
	if e.Net == 0 {
		delete(l.entries, key)
	}
	return applied, StatusOK, nil
}
