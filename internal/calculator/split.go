package calculator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mmynk/contri/internal/ledger"
	"github.com/mmynk/contri/internal/money"
)

var (
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrNoParticipants     = errors.New("must have at least one participant")
	ErrInvalidParticipant = errors.New("participant is not a group member")
	ErrInvalidManualSplit = errors.New("invalid manual split")
	ErrEmptyRemainderSet  = errors.New("no participant is eligible for the remaining amount")
)

// ManualSplit fixes part of one participant's share. When IncludeInRemainder
// is set the participant also takes an equal part of whatever is left.
type ManualSplit struct {
	User               string
	Amount             money.Cents
	IncludeInRemainder bool
}

// SplitInput describes one expense to be split.
type SplitInput struct {
	Amount       money.Cents
	Payer        string
	Participants []string
	Manual       []ManualSplit
	// Members is the group's current member list; payer and participants
	// must all appear in it.
	Members []string
}

// Share is one participant's total portion of an expense.
type Share struct {
	Member string
	Amount money.Cents
}

// ComputeSplit returns one delta per participant other than the payer, each
// saying how much that participant owes the payer for this expense.
// Participants whose share is zero still get a (zero) delta.
func ComputeSplit(in SplitInput) ([]ledger.Delta, error) {
	shares, err := ComputeShares(in)
	if err != nil {
		return nil, err
	}

	deltas := make([]ledger.Delta, 0, len(shares))
	for _, s := range shares {
		if s.Member == in.Payer {
			continue
		}
		deltas = append(deltas, ledger.Delta{
			Creditor: in.Payer,
			Debtor:   s.Member,
			Amount:   s.Amount,
		})
	}
	return deltas, nil
}

// ComputeShares splits the amount across participants. Shares always sum to
// exactly the amount.
//
// Manual amounts are assigned first. The remainder is divided equally among
// participants without a manual split plus those flagged IncludeInRemainder.
// Leftover cents from the division go one each to the first eligible
// participants in identifier order, so the result does not depend on the
// order participants were given in.
func ComputeShares(in SplitInput) ([]Share, error) {
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, in.Amount)
	}
	if len(in.Participants) == 0 {
		return nil, ErrNoParticipants
	}

	members := make(map[string]bool, len(in.Members))
	for _, m := range in.Members {
		members[m] = true
	}
	if !members[in.Payer] {
		return nil, fmt.Errorf("%w: payer %s", ErrInvalidParticipant, in.Payer)
	}

	participants := make([]string, 0, len(in.Participants))
	isParticipant := make(map[string]bool, len(in.Participants))
	for _, p := range in.Participants {
		if !members[p] {
			return nil, fmt.Errorf("%w: %s", ErrInvalidParticipant, p)
		}
		if isParticipant[p] {
			continue
		}
		isParticipant[p] = true
		participants = append(participants, p)
	}
	sort.Strings(participants)

	shares := make(map[string]money.Cents, len(participants))
	manual := make(map[string]ManualSplit, len(in.Manual))
	var manualTotal money.Cents
	for _, m := range in.Manual {
		if !isParticipant[m.User] {
			return nil, fmt.Errorf("%w: %s is not a selected participant", ErrInvalidManualSplit, m.User)
		}
		if _, dup := manual[m.User]; dup {
			return nil, fmt.Errorf("%w: duplicate entry for %s", ErrInvalidManualSplit, m.User)
		}
		if m.Amount < 0 {
			return nil, fmt.Errorf("%w: negative amount for %s", ErrInvalidManualSplit, m.User)
		}
		manual[m.User] = m
		shares[m.User] = m.Amount
		manualTotal += m.Amount
	}

	remainder := in.Amount - manualTotal
	if remainder < 0 {
		return nil, fmt.Errorf("%w: manual amounts %s exceed expense amount %s",
			ErrInvalidManualSplit, manualTotal, in.Amount)
	}

	if remainder > 0 {
		var eligible []string
		for _, p := range participants {
			m, hasManual := manual[p]
			if !hasManual || m.IncludeInRemainder {
				eligible = append(eligible, p)
			}
		}
		if len(eligible) == 0 {
			return nil, fmt.Errorf("%w: %s left over", ErrEmptyRemainderSet, remainder)
		}

		n := money.Cents(len(eligible))
		base, extra := remainder/n, remainder%n
		for i, p := range eligible {
			shares[p] += base
			if money.Cents(i) < extra {
				shares[p]++
			}
		}
	}

	out := make([]Share, len(participants))
	for i, p := range participants {
		out[i] = Share{Member: p, Amount: shares[p]}
	}
	return out, nil
}
