package calculator

import (
	"sort"

	"github.com/mmynk/contri/internal/ledger"
	"github.com/mmynk/contri/internal/money"
)

// MemberBalance represents the balance information for one group member.
type MemberBalance struct {
	Member     string
	NetBalance money.Cents // Positive = owed money, Negative = owes money
	TotalOwed  money.Cents // Owed to this member by others
	TotalOwes  money.Cents // Owed by this member to others
}

// DebtEdge represents a debt from one person to another.
type DebtEdge struct {
	From   string // Person who owes
	To     string // Person who is owed
	Amount money.Cents
}

// MemberBalances aggregates a group's ledger into per-member totals.
// Settled entries are already cleared and do not count. Every listed member
// appears in the result, even with a zero balance.
func MemberBalances(entries []ledger.Entry, members []string) []MemberBalance {
	balances := make(map[string]*MemberBalance, len(members))
	get := func(m string) *MemberBalance {
		if b, ok := balances[m]; ok {
			return b
		}
		b := &MemberBalance{Member: m}
		balances[m] = b
		return b
	}
	for _, m := range members {
		get(m)
	}

	for _, e := range entries {
		if e.State == ledger.Settled {
			continue
		}
		debtor, creditor, amount := e.Direction()
		get(debtor).TotalOwes += amount
		get(creditor).TotalOwed += amount
	}

	out := make([]MemberBalance, 0, len(balances))
	for _, b := range balances {
		b.NetBalance = b.TotalOwed - b.TotalOwes
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Member < out[j].Member })
	return out
}

// OutstandingDebts lists the unsettled ledger entries as directed edges.
func OutstandingDebts(entries []ledger.Entry) []DebtEdge {
	var edges []DebtEdge
	for _, e := range entries {
		if e.State == ledger.Settled {
			continue
		}
		debtor, creditor, amount := e.Direction()
		edges = append(edges, DebtEdge{From: debtor, To: creditor, Amount: amount})
	}
	return edges
}

// SimplifyDebts suggests a minimal set of payments that clears all net
// balances, matching the largest debtors with the largest creditors.
// The ledger itself is never rewritten; this is a read-only suggestion.
func SimplifyDebts(balances []MemberBalance) []DebtEdge {
	var creditors, debtors []MemberBalance
	for _, b := range balances {
		if b.NetBalance > 0 {
			creditors = append(creditors, b)
		} else if b.NetBalance < 0 {
			debtors = append(debtors, b)
		}
	}
	sort.SliceStable(creditors, func(i, j int) bool { return creditors[i].NetBalance > creditors[j].NetBalance })
	sort.SliceStable(debtors, func(i, j int) bool { return debtors[i].NetBalance < debtors[j].NetBalance })

	owed := make([]money.Cents, len(creditors))
	for i, c := range creditors {
		owed[i] = c.NetBalance
	}
	owes := make([]money.Cents, len(debtors))
	for i, d := range debtors {
		owes[i] = -d.NetBalance
	}

	var edges []DebtEdge
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := money.Min(owes[i], owed[j])
		if amount > 0 {
			edges = append(edges, DebtEdge{
				From:   debtors[i].Member,
				To:     creditors[j].Member,
				Amount: amount,
			})
		}

		owes[i] -= amount
		owed[j] -= amount

		if owes[i] == 0 {
			i++
		}
		if owed[j] == 0 {
			j++
		}
	}
	return edges
}
