package service

import (
	"fmt"

	"github.com/mmynk/contri/internal/calculator"
	"github.com/mmynk/contri/internal/ledger"
	"github.com/mmynk/contri/internal/models"
	"github.com/mmynk/contri/internal/money"
	"github.com/mmynk/contri/pkg/api"
)

func toAPIGroup(g *models.Group) api.Group {
	members := make([]api.Member, len(g.Members))
	for i, m := range g.Members {
		members[i] = api.Member{ID: m.ID, Kind: string(m.Kind), DisplayName: m.DisplayName}
	}
	return api.Group{
		ID:        g.ID,
		Name:      g.Name,
		CreatedBy: g.CreatedBy,
		Members:   members,
		CreatedAt: g.CreatedAt,
	}
}

func toAPIDebt(e ledger.Entry) api.Debt {
	debtor, creditor, amount := e.Direction()
	return api.Debt{
		User1:    e.User1,
		User2:    e.User2,
		Net:      e.Net.String(),
		State:    string(e.State),
		Debtor:   debtor,
		Creditor: creditor,
		Amount:   amount.String(),
	}
}

func toAPIDebts(entries []ledger.Entry) []api.Debt {
	out := make([]api.Debt, len(entries))
	for i, e := range entries {
		out[i] = toAPIDebt(e)
	}
	return out
}

// debtBetween returns the pair's entry, or nil once it has been pruned.
func debtBetween(l *ledger.Ledger, a, b string) *api.Debt {
	e, ok := l.Get(a, b)
	if !ok {
		return nil
	}
	d := toAPIDebt(e)
	return &d
}

func toAPIExpense(e *models.Expense) api.Expense {
	splits := make([]api.Split, len(e.Splits))
	for i, s := range e.Splits {
		splits[i] = toAPISplit(s)
	}
	return api.Expense{
		ID:          e.ID,
		GroupID:     e.GroupID,
		Description: e.Description,
		Amount:      e.Amount.String(),
		PaidBy:      e.PaidBy,
		Splits:      splits,
		CreatedAt:   e.CreatedAt,
	}
}

func toAPISplit(d ledger.Delta) api.Split {
	return api.Split{Creditor: d.Creditor, Debtor: d.Debtor, Amount: d.Amount.String()}
}

func toAPIBalances(balances []calculator.MemberBalance) []api.MemberBalance {
	out := make([]api.MemberBalance, len(balances))
	for i, b := range balances {
		out[i] = api.MemberBalance{
			MemberID:   b.Member,
			NetBalance: b.NetBalance.String(),
			TotalOwed:  b.TotalOwed.String(),
			TotalOwes:  b.TotalOwes.String(),
		}
	}
	return out
}

func toAPIEdges(edges []calculator.DebtEdge) []api.DebtEdge {
	out := make([]api.DebtEdge, len(edges))
	for i, e := range edges {
		out[i] = api.DebtEdge{From: e.From, To: e.To, Amount: e.Amount.String()}
	}
	return out
}

func toAPIUser(u *models.User) api.User {
	return api.User{
		ID:          u.ID,
		Email:       u.Email,
		Phone:       u.Phone,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}

func toAPISettlement(s *models.Settlement) api.Settlement {
	return api.Settlement{
		ID:         s.ID,
		Kind:       string(s.Kind),
		FromUserID: s.FromUserID,
		ToUserID:   s.ToUserID,
		Amount:     s.Amount.String(),
		CreatedBy:  s.CreatedBy,
		CreatedAt:  s.CreatedAt,
		Note:       s.Note,
	}
}

func parseManualSplits(in []api.ManualSplit) ([]calculator.ManualSplit, error) {
	out := make([]calculator.ManualSplit, len(in))
	for i, m := range in {
		amount, err := money.Parse(m.Amount)
		if err != nil {
			return nil, fmt.Errorf("manual split for %s: %w", m.UserID, err)
		}
		out[i] = calculator.ManualSplit{
			User:               m.UserID,
			Amount:             amount,
			IncludeInRemainder: m.IncludeInRemainder,
		}
	}
	return out, nil
}
