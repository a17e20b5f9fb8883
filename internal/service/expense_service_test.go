package service

import (
	"context"
	"sync"
	"testing"

	"connectrpc.com/connect"

	"github.com/mmynk/contri/internal/middleware"
	"github.com/mmynk/contri/pkg/api"
)

func TestAddExpense_EqualSplit(t *testing.T) {
	env := setupTestServer(t)
	groupID := env.createGroup(t, alice, bob, carol)

	resp := env.addExpense(t, groupID, alice, "100", alice, bob, carol)

	if resp.Expense.ID == "" {
		t.Error("expected non-empty expense ID")
	}
	if resp.Expense.Amount != "100.00" {
		t.Errorf("amount = %s, want 100.00", resp.Expense.Amount)
	}
	want := []api.Split{
		{Creditor: alice, Debtor: bob, Amount: "33.33"},
		{Creditor: alice, Debtor: carol, Amount: "33.33"},
	}
	if len(resp.Expense.Splits) != len(want) {
		t.Fatalf("got %d splits, want %d", len(resp.Expense.Splits), len(want))
	}
	for i := range want {
		if resp.Expense.Splits[i] != want[i] {
			t.Errorf("split[%d] = %+v, want %+v", i, resp.Expense.Splits[i], want[i])
		}
	}

	debts := env.debts(t, groupID, bob)
	if len(debts) != 2 {
		t.Fatalf("got %d debts, want 2", len(debts))
	}
	assertDebt(t, debts, bob, alice, "33.33", "outstanding")
	assertDebt(t, debts, carol, alice, "33.33", "outstanding")
}

func TestAddExpense_ManualSplit(t *testing.T) {
	env := setupTestServer(t)
	groupID := env.createGroup(t, alice, bob, carol)

	_, err := env.expenses.AddExpense(context.Background(), as(alice, &api.AddExpenseRequest{
		GroupID:      groupID,
		Description:  "Groceries",
		Amount:       "100",
		Participants: []string{alice, bob, carol},
		ManualSplits: []api.ManualSplit{{UserID: bob, Amount: "40"}},
	}))
	if err != nil {
		t.Fatalf("AddExpense failed: %v", err)
	}

	debts := env.debts(t, groupID, alice)
	assertDebt(t, debts, bob, alice, "40.00", "outstanding")
	assertDebt(t, debts, carol, alice, "30.00", "outstanding")
}

func TestAddExpense_NetsSamePair(t *testing.T) {
	env := setupTestServer(t)
	groupID := env.createGroup(t, alice, bob)

	// bob owes alice 50, then alice owes bob 20
	env.addExpense(t, groupID, alice, "100", alice, bob)
	env.addExpense(t, groupID, bob, "40", alice, bob)

	debts := env.debts(t, groupID, alice)
	if len(debts) != 1 {
		t.Fatalf("got %d debts, want a single netted entry", len(debts))
	}
	assertDebt(t, debts, bob, alice, "30.00", "outstanding")
	if debts[0].User1 != alice || debts[0].Net != "30.00" {
		t.Errorf("stored entry = %+v, want user1 %s with net 30.00", debts[0], alice)
	}
}

func TestAddExpense_ExactOffsetPrunesEntry(t *testing.T) {
	env := setupTestServer(t)
	groupID := env.createGroup(t, alice, bob)

	env.addExpense(t, groupID, alice, "50", alice, bob)
	env.addExpense(t, groupID, bob, "50", alice, bob)

	if debts := env.debts(t, groupID, alice); len(debts) != 0 {
		t.Errorf("expected no debts after offsetting expenses, got %+v", debts)
	}
}

func TestAddExpense_ResetsSettledPair(t *testing.T) {
	env := setupTestServer(t)
	groupID := env.createGroup(t, alice, bob)
	ctx := context.Background()

	env.addExpense(t, groupID, alice, "60", alice, bob)
	if _, err := env.expenses.ConfirmSettlement(ctx, as(bob, &api.ConfirmSettlementRequest{
		GroupID:     groupID,
		OtherUserID: alice,
	})); err != nil {
		t.Fatalf("ConfirmSettlement failed: %v", err)
	}

	resp := env.addExpense(t, groupID, alice, "20", alice, bob)

	if len(resp.Debts) != 1 {
		t.Fatalf("got %d debts, want 1", len(resp.Debts))
	}
	// The settled 30 is not carried over.
	assertDebt(t, resp.Debts, bob, alice, "10.00", "outstanding")
}

func TestAddExpense_Errors(t *testing.T) {
	env := setupTestServer(t)
	groupID := env.createGroup(t, alice, bob)

	tests := []struct {
		name   string
		caller string
		req    *api.AddExpenseRequest
		want   connect.Code
	}{
		{
			name:   "participant outside the group",
			caller: alice,
			req:    &api.AddExpenseRequest{GroupID: groupID, Description: "x", Amount: "10", Participants: []string{alice, carol}},
			want:   connect.CodeInvalidArgument,
		},
		{
			name:   "caller not a member",
			caller: dave,
			req:    &api.AddExpenseRequest{GroupID: groupID, Description: "x", Amount: "10", Participants: []string{alice, bob}},
			want:   connect.CodePermissionDenied,
		},
		{
			name:   "sub-cent amount",
			caller: alice,
			req:    &api.AddExpenseRequest{GroupID: groupID, Description: "x", Amount: "10.005", Participants: []string{alice, bob}},
			want:   connect.CodeInvalidArgument,
		},
		{
			name:   "negative amount",
			caller: alice,
			req:    &api.AddExpenseRequest{GroupID: groupID, Description: "x", Amount: "-5", Participants: []string{alice, bob}},
			want:   connect.CodeInvalidArgument,
		},
		{
			name:   "amount beyond the int64 range",
			caller: alice,
			req:    &api.AddExpenseRequest{GroupID: groupID, Description: "x", Amount: "184467440737095516.17", Participants: []string{alice, bob}},
			want:   connect.CodeInvalidArgument,
		},
		{
			name:   "manual splits exceed amount",
			caller: alice,
			req: &api.AddExpenseRequest{
				GroupID: groupID, Description: "x", Amount: "10", Participants: []string{alice, bob},
				ManualSplits: []api.ManualSplit{{UserID: bob, Amount: "15"}},
			},
			want: connect.CodeInvalidArgument,
		},
		{
			name:   "nobody left for the remainder",
			caller: alice,
			req: &api.AddExpenseRequest{
				GroupID: groupID, Description: "x", Amount: "10", Participants: []string{alice, bob},
				ManualSplits: []api.ManualSplit{{UserID: alice, Amount: "2"}, {UserID: bob, Amount: "3"}},
			},
			want: connect.CodeInvalidArgument,
		},
		{
			name:   "missing description",
			caller: alice,
			req:    &api.AddExpenseRequest{GroupID: groupID, Amount: "10", Participants: []string{alice}},
			want:   connect.CodeInvalidArgument,
		},
		{
			name:   "unknown group",
			caller: alice,
			req:    &api.AddExpenseRequest{GroupID: "grp_missing", Description: "x", Amount: "10", Participants: []string{alice}},
			want:   connect.CodeNotFound,
		},
		{
			name: "anonymous caller",
			req:  &api.AddExpenseRequest{GroupID: groupID, Description: "x", Amount: "10", Participants: []string{alice}},
			want: connect.CodeUnauthenticated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := connect.NewRequest(tt.req)
			if tt.caller != "" {
				req = as(tt.caller, tt.req)
			}
			_, err := env.expenses.AddExpense(context.Background(), req)
			assertCode(t, err, tt.want)
		})
	}

	if debts := env.debts(t, groupID, alice); len(debts) != 0 {
		t.Errorf("rejected expenses changed the ledger: %+v", debts)
	}
}

func TestComputeSplit_DoesNotPersist(t *testing.T) {
	env := setupTestServer(t)
	groupID := env.createGroup(t, alice, bob, carol)

	resp, err := env.expenses.ComputeSplit(context.Background(), as(alice, &api.ComputeSplitRequest{
		GroupID:      groupID,
		Amount:       "10",
		PaidBy:       bob,
		Participants: []string{alice, bob, carol},
	}))
	if err != nil {
		t.Fatalf("ComputeSplit failed: %v", err)
	}

	// Leftover cent goes to alice, the lowest ID.
	want := []api.Split{
		{Creditor: bob, Debtor: alice, Amount: "3.34"},
		{Creditor: bob, Debtor: carol, Amount: "3.33"},
	}
	if len(resp.Msg.Splits) != len(want) {
		t.Fatalf("got %d splits, want %d", len(resp.Msg.Splits), len(want))
	}
	for i := range want {
		if resp.Msg.Splits[i] != want[i] {
			t.Errorf("split[%d] = %+v, want %+v", i, resp.Msg.Splits[i], want[i])
		}
	}

	if debts := env.debts(t, groupID, alice); len(debts) != 0 {
		t.Errorf("ComputeSplit changed the ledger: %+v", debts)
	}
}

func TestGetAndListExpenses(t *testing.T) {
	env := setupTestServer(t)
	groupID := env.createGroup(t, alice, bob)
	ctx := context.Background()

	first := env.addExpense(t, groupID, alice, "10", alice, bob)
	env.addExpense(t, groupID, bob, "20", alice, bob)

	got, err := env.expenses.GetExpense(ctx, as(bob, &api.GetExpenseRequest{ExpenseID: first.Expense.ID}))
	if err != nil {
		t.Fatalf("GetExpense failed: %v", err)
	}
	if got.Msg.Expense.Description != "Dinner" || got.Msg.Expense.PaidBy != alice {
		t.Errorf("GetExpense = %+v", got.Msg.Expense)
	}

	list, err := env.expenses.ListExpenses(ctx, as(alice, &api.ListExpensesRequest{GroupID: groupID}))
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if len(list.Msg.Expenses) != 2 {
		t.Errorf("got %d expenses, want 2", len(list.Msg.Expenses))
	}

	_, err = env.expenses.GetExpense(ctx, as(dave, &api.GetExpenseRequest{ExpenseID: first.Expense.ID}))
	assertCode(t, err, connect.CodePermissionDenied)

	_, err = env.expenses.GetExpense(ctx, as(alice, &api.GetExpenseRequest{ExpenseID: "exp_missing"}))
	assertCode(t, err, connect.CodeNotFound)
}

func TestDeleteExpense_ReversesDeltas(t *testing.T) {
	env := setupTestServer(t)
	groupID := env.createGroup(t, alice, bob, carol)
	ctx := context.Background()

	keep := env.addExpense(t, groupID, bob, "30", alice, bob, carol)
	drop := env.addExpense(t, groupID, alice, "90", alice, bob, carol)

	resp, err := env.expenses.DeleteExpense(ctx, as(alice, &api.DeleteExpenseRequest{ExpenseID: drop.Expense.ID}))
	if err != nil {
		t.Fatalf("DeleteExpense failed: %v", err)
	}

	// Only bob's expense remains.
	assertDebt(t, resp.Msg.Debts, alice, bob, "10.00", "outstanding")
	assertDebt(t, resp.Msg.Debts, carol, bob, "10.00", "outstanding")
	if len(resp.Msg.Debts) != 2 {
		t.Errorf("got %d debts, want 2", len(resp.Msg.Debts))
	}

	_, err = env.expenses.GetExpense(ctx, as(alice, &api.GetExpenseRequest{ExpenseID: drop.Expense.ID}))
	assertCode(t, err, connect.CodeNotFound)

	_, err = env.expenses.DeleteExpense(ctx, as(alice, &api.DeleteExpenseRequest{ExpenseID: drop.Expense.ID}))
	assertCode(t, err, connect.CodeNotFound)

	if _, err := env.expenses.DeleteExpense(ctx, as(bob, &api.DeleteExpenseRequest{ExpenseID: keep.Expense.ID})); err != nil {
		t.Fatalf("DeleteExpense failed: %v", err)
	}
	if debts := env.debts(t, groupID, alice); len(debts) != 0 {
		t.Errorf("expected empty ledger after deleting every expense, got %+v", debts)
	}
}

func TestDeleteExpense_LeavesSettledPair(t *testing.T) {
	env := setupTestServer(t)
	groupID := env.createGroup(t, alice, bob)
	ctx := context.Background()

	exp := env.addExpense(t, groupID, alice, "40", alice, bob)
	if _, err := env.expenses.ConfirmSettlement(ctx, as(alice, &api.ConfirmSettlementRequest{
		GroupID:     groupID,
		OtherUserID: bob,
	})); err != nil {
		t.Fatalf("ConfirmSettlement failed: %v", err)
	}

	if _, err := env.expenses.DeleteExpense(ctx, as(alice, &api.DeleteExpenseRequest{ExpenseID: exp.Expense.ID})); err != nil {
		t.Fatalf("DeleteExpense failed: %v", err)
	}

	assertDebt(t, env.debts(t, groupID, alice), bob, alice, "20.00", "settled")
}

func TestDeleteExpense_OnlyPayer(t *testing.T) {
	env := setupTestServer(t)
	groupID := env.createGroup(t, alice, bob)

	exp := env.addExpense(t, groupID, alice, "40", alice, bob)
	_, err := env.expenses.DeleteExpense(context.Background(), as(bob, &api.DeleteExpenseRequest{ExpenseID: exp.Expense.ID}))
	assertCode(t, err, connect.CodePermissionDenied)

	assertDebt(t, env.debts(t, groupID, alice), bob, alice, "20.00", "outstanding")
}

func TestUpdateExpense(t *testing.T) {
	env := setupTestServer(t)
	groupID := env.createGroup(t, alice, bob, carol)
	ctx := context.Background()

	exp := env.addExpense(t, groupID, alice, "100", alice, bob)

	resp, err := env.expenses.UpdateExpense(ctx, as(alice, &api.UpdateExpenseRequest{
		ExpenseID:    exp.Expense.ID,
		Description:  "Dinner and drinks",
		Amount:       "60",
		Participants: []string{alice, bob, carol},
	}))
	if err != nil {
		t.Fatalf("UpdateExpense failed: %v", err)
	}

	if resp.Msg.Expense.ID != exp.Expense.ID {
		t.Errorf("ID changed from %s to %s", exp.Expense.ID, resp.Msg.Expense.ID)
	}
	if resp.Msg.Expense.CreatedAt != exp.Expense.CreatedAt {
		t.Errorf("CreatedAt changed from %d to %d", exp.Expense.CreatedAt, resp.Msg.Expense.CreatedAt)
	}
	assertDebt(t, resp.Msg.Debts, bob, alice, "20.00", "outstanding")
	assertDebt(t, resp.Msg.Debts, carol, alice, "20.00", "outstanding")

	list, err := env.expenses.ListExpenses(ctx, as(alice, &api.ListExpensesRequest{GroupID: groupID}))
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if len(list.Msg.Expenses) != 1 || list.Msg.Expenses[0].Description != "Dinner and drinks" {
		t.Errorf("expenses after update = %+v", list.Msg.Expenses)
	}
}

func TestUpdateExpense_InvalidLeavesLedger(t *testing.T) {
	env := setupTestServer(t)
	groupID := env.createGroup(t, alice, bob)

	exp := env.addExpense(t, groupID, alice, "100", alice, bob)
	_, err := env.expenses.UpdateExpense(context.Background(), as(alice, &api.UpdateExpenseRequest{
		ExpenseID:    exp.Expense.ID,
		Description:  "Dinner",
		Amount:       "60",
		Participants: []string{alice, dave},
	}))
	assertCode(t, err, connect.CodeInvalidArgument)

	assertDebt(t, env.debts(t, groupID, alice), bob, alice, "50.00", "outstanding")
}

func TestUpdateExpense_WriteFailureKeepsOriginal(t *testing.T) {
	env := setupTestServer(t)
	groupID := env.createGroup(t, alice, bob, carol)
	exp := env.addExpense(t, groupID, alice, "100", alice, bob)

	svcs := servicesOn(&faultyStore{Store: env.store, failCreateCall: 1})
	ctx := middleware.WithUser(context.Background(), alice, "alice@example.com")
	_, err := svcs.Expenses.UpdateExpense(ctx, connect.NewRequest(&api.UpdateExpenseRequest{
		ExpenseID:    exp.Expense.ID,
		Description:  "Dinner",
		Amount:       "90",
		Participants: []string{alice, bob, carol},
	}))
	assertCode(t, err, connect.CodeInternal)

	stored, err := env.store.GetExpense(context.Background(), exp.Expense.ID)
	if err != nil {
		t.Fatalf("expense lost: %v", err)
	}
	if stored.Amount != 10000 || len(stored.Splits) != 1 {
		t.Errorf("stored expense = %+v, want the original", stored)
	}
	debts := env.debts(t, groupID, alice)
	assertDebt(t, debts, bob, alice, "50.00", "outstanding")
	if _, ok := findDebt(debts, carol, alice); ok {
		t.Errorf("carol owes alice after a failed update: %+v", debts)
	}
}

func TestSettlementFlow(t *testing.T) {
	env := setupTestServer(t)
	groupID := env.createGroup(t, alice, bob)
	ctx := context.Background()
	env.addExpense(t, groupID, alice, "60", alice, bob)

	request := func(caller, other string) *api.SettlementResponse {
		t.Helper()
		resp, err := env.expenses.RequestSettlement(ctx, as(caller, &api.RequestSettlementRequest{GroupID: groupID, OtherUserID: other}))
		if err != nil {
			t.Fatalf("RequestSettlement failed: %v", err)
		}
		return resp.Msg
	}
	confirm := func(caller, other string) *api.SettlementResponse {
		t.Helper()
		resp, err := env.expenses.ConfirmSettlement(ctx, as(caller, &api.ConfirmSettlementRequest{GroupID: groupID, OtherUserID: other}))
		if err != nil {
			t.Fatalf("ConfirmSettlement failed: %v", err)
		}
		return resp.Msg
	}

	if r := request(bob, alice); r.Status != "ok" || r.Debt == nil || r.Debt.State != "requested" {
		t.Errorf("first request = %+v", r)
	}
	if r := request(alice, bob); r.Status != "already_requested" {
		t.Errorf("second request status = %s, want already_requested", r.Status)
	}
	if r := confirm(alice, bob); r.Status != "ok" || r.Debt.State != "settled" || r.Debt.Amount != "30.00" {
		t.Errorf("confirm = %+v", r)
	}
	if r := confirm(bob, alice); r.Status != "already_settled" {
		t.Errorf("second confirm status = %s, want already_settled", r.Status)
	}
	// A request cannot move a settled pair back.
	if r := request(bob, alice); r.Status != "already_settled" || r.Debt.State != "settled" {
		t.Errorf("request after settle = %+v", r)
	}

	history, err := env.groups.ListSettlements(ctx, as(bob, &api.ListSettlementsRequest{GroupID: groupID}))
	if err != nil {
		t.Fatalf("ListSettlements failed: %v", err)
	}
	if len(history.Msg.Settlements) != 1 {
		t.Fatalf("got %d settlement records, want 1", len(history.Msg.Settlements))
	}
	rec := history.Msg.Settlements[0]
	if rec.Kind != "confirmed" || rec.FromUserID != bob || rec.ToUserID != alice || rec.Amount != "30.00" {
		t.Errorf("settlement record = %+v", rec)
	}
}

func TestRequestSettlement_NoSuchDebt(t *testing.T) {
	env := setupTestServer(t)
	groupID := env.createGroup(t, alice, bob)

	_, err := env.expenses.RequestSettlement(context.Background(), as(alice, &api.RequestSettlementRequest{
		GroupID:     groupID,
		OtherUserID: bob,
	}))
	assertCode(t, err, connect.CodeFailedPrecondition)
}

func TestRecordPayment(t *testing.T) {
	env := setupTestServer(t)
	groupID := env.createGroup(t, alice, bob)
	ctx := context.Background()
	env.addExpense(t, groupID, alice, "100", alice, bob)

	pay := func(from, to, amount string) (*api.RecordPaymentResponse, error) {
		resp, err := env.expenses.RecordPayment(ctx, as(from, &api.RecordPaymentRequest{
			GroupID:  groupID,
			ToUserID: to,
			Amount:   amount,
			Note:     "cash",
		}))
		if err != nil {
			return nil, err
		}
		return resp.Msg, nil
	}

	r, err := pay(bob, alice, "20")
	if err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}
	if r.Applied != "20.00" || r.Debt == nil || r.Debt.Amount != "30.00" {
		t.Errorf("partial payment = %+v", r)
	}

	_, err = pay(alice, bob, "5")
	assertCode(t, err, connect.CodeFailedPrecondition)

	r, err = pay(bob, alice, "100")
	if err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}
	if r.Applied != "30.00" || r.Debt != nil {
		t.Errorf("overpayment = %+v, want 30.00 applied and the pair cleared", r)
	}

	_, err = pay(bob, alice, "1")
	assertCode(t, err, connect.CodeFailedPrecondition)

	history, err := env.groups.ListSettlements(ctx, as(alice, &api.ListSettlementsRequest{GroupID: groupID}))
	if err != nil {
		t.Fatalf("ListSettlements failed: %v", err)
	}
	if len(history.Msg.Settlements) != 2 {
		t.Fatalf("got %d settlement records, want 2", len(history.Msg.Settlements))
	}
	for _, rec := range history.Msg.Settlements {
		if rec.Kind != "payment" || rec.FromUserID != bob || rec.Note != "cash" {
			t.Errorf("payment record = %+v", rec)
		}
	}
}

func TestRecordPayment_SettledPair(t *testing.T) {
	env := setupTestServer(t)
	groupID := env.createGroup(t, alice, bob)
	ctx := context.Background()
	env.addExpense(t, groupID, alice, "100", alice, bob)

	if _, err := env.expenses.ConfirmSettlement(ctx, as(bob, &api.ConfirmSettlementRequest{GroupID: groupID, OtherUserID: alice})); err != nil {
		t.Fatalf("ConfirmSettlement failed: %v", err)
	}
	resp, err := env.expenses.RecordPayment(ctx, as(bob, &api.RecordPaymentRequest{GroupID: groupID, ToUserID: alice, Amount: "10"}))
	if err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}
	if resp.Msg.Status != "already_settled" || resp.Msg.Applied != "0.00" {
		t.Errorf("payment on settled pair = %+v", resp.Msg)
	}
}

func TestAddExpense_ConcurrentWritesSerialized(t *testing.T) {
	env := setupTestServer(t)
	groupID := env.createGroup(t, alice, bob, carol)

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, 2*n)
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := env.expenses.AddExpense(context.Background(), as(alice, &api.AddExpenseRequest{
				GroupID: groupID, Description: "Coffee", Amount: "10", Participants: []string{alice, bob},
			}))
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := env.expenses.AddExpense(context.Background(), as(carol, &api.AddExpenseRequest{
				GroupID: groupID, Description: "Snacks", Amount: "4", Participants: []string{alice, carol},
			}))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("AddExpense failed: %v", err)
		}
	}

	debts := env.debts(t, groupID, alice)
	assertDebt(t, debts, bob, alice, "50.00", "outstanding")
	assertDebt(t, debts, alice, carol, "20.00", "outstanding")
}
