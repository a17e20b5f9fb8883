// Package ledger maintains a group's netted pairwise debts.
//
// A Ledger holds at most one Entry per unordered pair of members. Expenses
// are merged in incrementally as Deltas: each delta is combined with the
// existing entry for its pair, zero balances are pruned, and settled pairs
// follow the settlement state machine (reopened by new debt, untouched by
// reversals).
//
// The package is pure: it performs no I/O and does not log. Operations that
// find inconsistencies report them in their Result so the caller can log
// them. A Ledger is not safe for concurrent use; callers serialize access per
// group.
package ledger

import (
	"fmt"
	"sort"

	"github.com/mmynk/contri/internal/money"
)

// Delta is a single directed obligation produced by one expense: Debtor owes
// Creditor Amount. A negative Amount reverses the direction.
type Delta struct {
	Creditor string      `json:"creditor"`
	Debtor   string      `json:"debtor"`
	Amount   money.Cents `json:"amount"`
}

// Direction selects whether deltas are merged in or undone.
type Direction int

const (
	// Add merges an expense's deltas into the ledger.
	Add Direction = iota
	// Reverse undoes a previously added expense.
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "add"
}

// Result summarizes what an Apply call did.
type Result struct {
	Created  int
	Updated  int
	Reopened int
	Pruned   int

	// SkippedSettled lists settled pairs left untouched by a reversal.
	SkippedSettled []PairKey
	// Missing lists pairs a reversal expected but did not find.
	Missing []PairKey
}

// Ledger is the set of pairwise entries for one group.
type Ledger struct {
	entries map[PairKey]*Entry
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{entries: make(map[PairKey]*Entry)}
}

// FromEntries builds a ledger from stored entries. Entries are re-oriented to
// canonical order; two entries for the same pair are rejected. Unrecognized
// states are loaded as-is and only fail operations that touch them.
func FromEntries(entries []Entry) (*Ledger, error) {
	l := New()
	for _, e := range entries {
		if e.User1 == "" || e.User2 == "" || e.User1 == e.User2 {
			return nil, fmt.Errorf("%w: malformed pair (%q, %q)", ErrCorruptEntry, e.User1, e.User2)
		}
		c := e.canonical()
		key := c.Key()
		if _, exists := l.entries[key]; exists {
			return nil, fmt.Errorf("%w: %s/%s", ErrDuplicatePair, key.Low, key.High)
		}
		l.entries[key] = &c
	}
	return l, nil
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Entries returns a copy of all entries ordered by pair key.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].User1 != out[j].User1 {
			return out[i].User1 < out[j].User1
		}
		return out[i].User2 < out[j].User2
	})
	return out
}

// Get returns the entry between a and b, in either order.
func (l *Ledger) Get(a, b string) (Entry, bool) {
	e, ok := l.entries[Pair(a, b)]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Clone returns a deep copy.
func (l *Ledger) Clone() *Ledger {
	c := New()
	for k, e := range l.entries {
		cp := *e
		c.entries[k] = &cp
	}
	return c
}

// Equal reports whether both ledgers hold identical entries.
func (l *Ledger) Equal(other *Ledger) bool {
	if l.Len() != other.Len() {
		return false
	}
	for k, e := range l.entries {
		o, ok := other.entries[k]
		if !ok || *o != *e {
			return false
		}
	}
	return true
}

// ApplyExpense merges an expense's deltas into the ledger.
func (l *Ledger) ApplyExpense(deltas []Delta) (Result, error) {
	return l.Apply(deltas, Add)
}

// ReverseExpense undoes an expense's deltas.
func (l *Ledger) ReverseExpense(deltas []Delta) (Result, error) {
	return l.Apply(deltas, Reverse)
}

// Apply merges deltas in the given direction.
//
// All deltas and every entry they touch are validated before anything is
// changed, so a malformed delta or a corrupt entry leaves the ledger as it was.
func (l *Ledger) Apply(deltas []Delta, dir Direction) (Result, error) {
	var res Result

	for _, d := range deltas {
		if d.Creditor == "" || d.Debtor == "" || d.Creditor == d.Debtor {
			return res, fmt.Errorf("%w: creditor %q debtor %q", ErrInvalidDelta, d.Creditor, d.Debtor)
		}
		if d.Amount.Abs() > money.MaxCents {
			return res, fmt.Errorf("%w: amount %s out of range", ErrInvalidDelta, d.Amount)
		}
		if e, ok := l.entries[Pair(d.Creditor, d.Debtor)]; ok && !e.State.Valid() {
			return res, fmt.Errorf("%w: pair %s/%s has state %q", ErrCorruptEntry, e.User1, e.User2, e.State)
		}
	}
	if err := l.checkRange(deltas, dir); err != nil {
		return res, err
	}

	for _, d := range deltas {
		if d.Amount == 0 {
			continue
		}
		key := Pair(d.Creditor, d.Debtor)
		signed := orient(key, d.Creditor, d.Amount)

		e, ok := l.entries[key]
		if !ok {
			if dir == Reverse {
				res.Missing = append(res.Missing, key)
				continue
			}
			l.entries[key] = &Entry{User1: key.Low, User2: key.High, Net: signed, State: Outstanding}
			res.Created++
			continue
		}

		if e.State == Settled {
			if dir == Reverse {
				res.SkippedSettled = append(res.SkippedSettled, key)
				continue
			}
			// New debt on a settled pair starts a fresh balance.
			state, _, err := transition(e.State, evReopen)
			if err != nil {
				return res, err
			}
			e.State = state
			e.Net = signed
			res.Reopened++
			continue
		}

		if dir == Add {
			e.Net += signed
		} else {
			e.Net -= signed
		}
		res.Updated++

		if e.Net == 0 {
			delete(l.entries, key)
			res.Pruned++
		}
	}

	return res, nil
}

// checkRange projects the nets Apply would leave behind and rejects any
// beyond money.MaxCents.
func (l *Ledger) checkRange(deltas []Delta, dir Direction) error {
	nets := make(map[PairKey]money.Cents)
	for _, d := range deltas {
		if d.Amount == 0 {
			continue
		}
		key := Pair(d.Creditor, d.Debtor)
		net, seen := nets[key]
		if !seen {
			e, ok := l.entries[key]
			switch {
			case !ok && dir == Reverse:
				continue
			case ok && e.State == Settled && dir == Reverse:
				continue
			case ok && e.State != Settled:
				net = e.Net
			}
		}

		signed := orient(key, d.Creditor, d.Amount)
		if dir == Add {
			net += signed
		} else {
			net -= signed
		}
		if net.Abs() > money.MaxCents {
			return fmt.Errorf("%w: pair %s/%s", ErrBalanceOverflow, key.Low, key.High)
		}
		nets[key] = net
	}
	return nil
}

// PurgeMember removes every entry involving member and returns how many were
// removed. No attempt is made to reconcile the member's outstanding balance.
func (l *Ledger) PurgeMember(member string) int {
	removed := 0
	for k := range l.entries {
		if k.Has(member) {
			delete(l.entries, k)
			removed++
		}
	}
	return removed
}

// RemapMember moves every entry of from onto to, keeping balances and states.
// It is used when a placeholder member is reconciled to a registered account.
// If to already has an entry with any of from's counterparts (or with from
// itself) nothing is changed and ErrRemapConflict is returned.
func (l *Ledger) RemapMember(from, to string) (int, error) {
	if from == to {
		return 0, nil
	}

	var moving []PairKey
	for k := range l.entries {
		if !k.Has(from) {
			continue
		}
		other := k.Other(from)
		if other == to {
			return 0, fmt.Errorf("%w: %s/%s", ErrRemapConflict, from, to)
		}
		if _, exists := l.entries[Pair(to, other)]; exists {
			return 0, fmt.Errorf("%w: %s/%s", ErrRemapConflict, to, other)
		}
		moving = append(moving, k)
	}

	for _, k := range moving {
		e := l.entries[k]
		delete(l.entries, k)

		other := k.Other(from)
		owed := e.OwedTo(from)
		newKey := Pair(to, other)
		l.entries[newKey] = &Entry{
			User1: newKey.Low,
			User2: newKey.High,
			Net:   orient(newKey, to, owed),
			State: e.State,
		}
	}
	return len(moving), nil
}
