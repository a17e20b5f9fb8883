package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/mmynk/contri/internal/calculator"
	"github.com/mmynk/contri/internal/id"
	"github.com/mmynk/contri/internal/ledger"
	"github.com/mmynk/contri/internal/models"
	"github.com/mmynk/contri/internal/money"
	"github.com/mmynk/contri/pkg/api"
	"github.com/mmynk/contri/pkg/api/apiconnect"
)

var errNotPayer = errors.New("only the member who paid can change this expense")

// ExpenseService implements the Connect ExpenseService: expenses and the
// settlement operations on a group's ledger.
type ExpenseService struct {
	*ledgerState
}

var _ apiconnect.ExpenseServiceHandler = (*ExpenseService)(nil)

// expenseInput is a parsed and validated expense request.
type expenseInput struct {
	amount       money.Cents
	participants []string
	manual       []calculator.ManualSplit
}

func parseExpenseInput(amount string, participants []string, manual []api.ManualSplit) (expenseInput, error) {
	cents, err := money.Parse(amount)
	if err != nil {
		return expenseInput{}, toConnectError(err)
	}
	splits, err := parseManualSplits(manual)
	if err != nil {
		return expenseInput{}, toConnectError(err)
	}
	return expenseInput{amount: cents, participants: participants, manual: splits}, nil
}

func (in expenseInput) split(group *models.Group, payer string) ([]ledger.Delta, error) {
	return calculator.ComputeSplit(calculator.SplitInput{
		Amount:       in.amount,
		Payer:        payer,
		Participants: in.participants,
		Manual:       in.manual,
		Members:      group.MemberIDs(),
	})
}

// ComputeSplit previews the deltas an expense would produce without
// recording anything.
func (s *ExpenseService) ComputeSplit(ctx context.Context, req *connect.Request[api.ComputeSplitRequest]) (*connect.Response[api.ComputeSplitResponse], error) {
	if err := requests.check(req.Msg); err != nil {
		return nil, err
	}
	in, err := parseExpenseInput(req.Msg.Amount, req.Msg.Participants, req.Msg.ManualSplits)
	if err != nil {
		return nil, err
	}
	group, caller, err := s.memberGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, err
	}

	payer := req.Msg.PaidBy
	if payer == "" {
		payer = caller
	}
	deltas, err := in.split(group, payer)
	if err != nil {
		slog.Debug("ComputeSplit rejected", "group_id", group.ID, "error", err)
		return nil, toConnectError(err)
	}

	splits := make([]api.Split, len(deltas))
	for i, d := range deltas {
		splits[i] = toAPISplit(d)
	}
	return connect.NewResponse(&api.ComputeSplitResponse{Splits: splits}), nil
}

// AddExpense records an expense paid by the caller and merges its deltas
// into the group ledger.
func (s *ExpenseService) AddExpense(ctx context.Context, req *connect.Request[api.AddExpenseRequest]) (*connect.Response[api.AddExpenseResponse], error) {
	slog.Info("AddExpense request received",
		"group_id", req.Msg.GroupID,
		"amount", req.Msg.Amount,
		"participants_count", len(req.Msg.Participants),
		"manual_splits_count", len(req.Msg.ManualSplits),
	)
	if err := requests.check(req.Msg); err != nil {
		return nil, err
	}
	in, err := parseExpenseInput(req.Msg.Amount, req.Msg.Participants, req.Msg.ManualSplits)
	if err != nil {
		return nil, err
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	var expense *models.Expense
	_, l, err := s.mutateLedger(ctx, req.Msg.GroupID, func(group *models.Group, l *ledger.Ledger) (ledgerChange, error) {
		if !group.HasMember(caller) {
			return ledgerChange{}, connect.NewError(connect.CodePermissionDenied, errNotMember)
		}
		deltas, err := in.split(group, caller)
		if err != nil {
			return ledgerChange{}, err
		}
		if _, err := l.ApplyExpense(deltas); err != nil {
			return ledgerChange{}, err
		}

		expense = &models.Expense{
			ID:          id.NewExpenseID(),
			GroupID:     group.ID,
			Description: req.Msg.Description,
			Amount:      in.amount,
			PaidBy:      caller,
			Splits:      deltas,
		}
		if err := s.store.CreateExpense(ctx, expense); err != nil {
			return ledgerChange{}, fmt.Errorf("failed to save expense: %w", err)
		}
		return ledgerChange{
			op: "add_expense",
			undo: func(ctx context.Context) error {
				return s.store.DeleteExpense(ctx, expense.ID)
			},
		}, nil
	})
	if err != nil {
		slog.Error("AddExpense failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, err
	}

	slog.Info("Expense created", "expense_id", expense.ID, "group_id", expense.GroupID, "amount", expense.Amount)
	return connect.NewResponse(&api.AddExpenseResponse{
		Expense: toAPIExpense(expense),
		Debts:   toAPIDebts(l.Entries()),
	}), nil
}

// GetExpense retrieves an expense by ID.
func (s *ExpenseService) GetExpense(ctx context.Context, req *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error) {
	if err := requests.check(req.Msg); err != nil {
		return nil, err
	}
	expense, _, err := s.memberExpense(ctx, req.Msg.ExpenseID)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&api.GetExpenseResponse{Expense: toAPIExpense(expense)}), nil
}

// ListExpenses returns every expense of a group, newest first.
func (s *ExpenseService) ListExpenses(ctx context.Context, req *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error) {
	if err := requests.check(req.Msg); err != nil {
		return nil, err
	}
	if _, _, err := s.memberGroup(ctx, req.Msg.GroupID); err != nil {
		return nil, err
	}

	expenses, err := s.store.ListExpensesByGroup(ctx, req.Msg.GroupID)
	if err != nil {
		slog.Error("ListExpenses failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(err)
	}

	out := make([]api.Expense, len(expenses))
	for i, e := range expenses {
		out[i] = toAPIExpense(e)
	}
	slog.Info("ListExpenses successful", "group_id", req.Msg.GroupID, "count", len(out))
	return connect.NewResponse(&api.ListExpensesResponse{Expenses: out}), nil
}

// UpdateExpense replaces an expense: the old deltas are reversed and the new
// ones applied in a single ledger write. The expense keeps its ID.
func (s *ExpenseService) UpdateExpense(ctx context.Context, req *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.UpdateExpenseResponse], error) {
	slog.Info("UpdateExpense request received", "expense_id", req.Msg.ExpenseID, "amount", req.Msg.Amount)
	if err := requests.check(req.Msg); err != nil {
		return nil, err
	}
	in, err := parseExpenseInput(req.Msg.Amount, req.Msg.Participants, req.Msg.ManualSplits)
	if err != nil {
		return nil, err
	}
	old, caller, err := s.memberExpense(ctx, req.Msg.ExpenseID)
	if err != nil {
		return nil, err
	}

	var updated *models.Expense
	_, l, err := s.mutateLedger(ctx, old.GroupID, func(group *models.Group, l *ledger.Ledger) (ledgerChange, error) {
		// Re-read under the lock; a concurrent delete wins.
		current, err := s.store.GetExpense(ctx, old.ID)
		if err != nil {
			return ledgerChange{}, err
		}
		if current.PaidBy != caller {
			return ledgerChange{}, connect.NewError(connect.CodePermissionDenied, errNotPayer)
		}
		deltas, err := in.split(group, current.PaidBy)
		if err != nil {
			return ledgerChange{}, err
		}

		// A failure part way leaves l half-updated; it is discarded unsaved.
		res, err := l.ReverseExpense(current.Splits)
		if err != nil {
			return ledgerChange{}, err
		}
		logResult(group.ID, current.ID, res)
		if _, err := l.ApplyExpense(deltas); err != nil {
			return ledgerChange{}, err
		}

		updated = &models.Expense{
			ID:          current.ID,
			GroupID:     current.GroupID,
			Description: req.Msg.Description,
			Amount:      in.amount,
			PaidBy:      current.PaidBy,
			Splits:      deltas,
			CreatedAt:   current.CreatedAt,
		}
		if err := s.replaceExpense(ctx, current, updated); err != nil {
			return ledgerChange{}, fmt.Errorf("failed to replace expense: %w", err)
		}
		return ledgerChange{
			op: "update_expense",
			undo: func(ctx context.Context) error {
				return s.replaceExpense(ctx, updated, current)
			},
		}, nil
	})
	if err != nil {
		slog.Error("UpdateExpense failed", "expense_id", req.Msg.ExpenseID, "error", err)
		return nil, err
	}

	slog.Info("Expense updated", "expense_id", updated.ID, "group_id", updated.GroupID)
	return connect.NewResponse(&api.UpdateExpenseResponse{
		Expense: toAPIExpense(updated),
		Debts:   toAPIDebts(l.Entries()),
	}), nil
}

// DeleteExpense removes an expense and reverses its deltas. Pairs that were
// settled since the expense was added are left alone.
func (s *ExpenseService) DeleteExpense(ctx context.Context, req *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error) {
	slog.Info("DeleteExpense request received", "expense_id", req.Msg.ExpenseID)
	if err := requests.check(req.Msg); err != nil {
		return nil, err
	}
	expense, caller, err := s.memberExpense(ctx, req.Msg.ExpenseID)
	if err != nil {
		return nil, err
	}

	_, l, err := s.mutateLedger(ctx, expense.GroupID, func(group *models.Group, l *ledger.Ledger) (ledgerChange, error) {
		current, err := s.store.GetExpense(ctx, expense.ID)
		if err != nil {
			return ledgerChange{}, err
		}
		if current.PaidBy != caller {
			return ledgerChange{}, connect.NewError(connect.CodePermissionDenied, errNotPayer)
		}
		res, err := l.ReverseExpense(current.Splits)
		if err != nil {
			return ledgerChange{}, err
		}
		logResult(group.ID, current.ID, res)

		if err := s.store.DeleteExpense(ctx, current.ID); err != nil {
			return ledgerChange{}, fmt.Errorf("failed to delete expense: %w", err)
		}
		return ledgerChange{
			op: "delete_expense",
			undo: func(ctx context.Context) error {
				return s.store.CreateExpense(ctx, current)
			},
		}, nil
	})
	if err != nil {
		slog.Error("DeleteExpense failed", "expense_id", req.Msg.ExpenseID, "error", err)
		return nil, err
	}

	slog.Info("Expense deleted", "expense_id", expense.ID, "group_id", expense.GroupID)
	return connect.NewResponse(&api.DeleteExpenseResponse{Debts: toAPIDebts(l.Entries())}), nil
}

// RequestSettlement asks to settle the debt between the caller and another
// member.
func (s *ExpenseService) RequestSettlement(ctx context.Context, req *connect.Request[api.RequestSettlementRequest]) (*connect.Response[api.SettlementResponse], error) {
	return s.settle(ctx, req.Msg.GroupID, req.Msg.OtherUserID, req.Msg, false)
}

// ConfirmSettlement marks the debt between the caller and another member as
// settled and appends it to the settlement history.
func (s *ExpenseService) ConfirmSettlement(ctx context.Context, req *connect.Request[api.ConfirmSettlementRequest]) (*connect.Response[api.SettlementResponse], error) {
	return s.settle(ctx, req.Msg.GroupID, req.Msg.OtherUserID, req.Msg, true)
}

func (s *ExpenseService) settle(ctx context.Context, groupID, other string, msg any, confirm bool) (*connect.Response[api.SettlementResponse], error) {
	op := "request_settlement"
	if confirm {
		op = "confirm_settlement"
	}
	slog.Info("Settlement request received", "op", op, "group_id", groupID, "other_user_id", other)
	if err := requests.check(msg); err != nil {
		return nil, err
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	var (
		status  ledger.Status
		settled ledger.Entry
	)
	_, l, err := s.mutateLedger(ctx, groupID, func(group *models.Group, l *ledger.Ledger) (ledgerChange, error) {
		if !group.HasMember(caller) {
			return ledgerChange{}, connect.NewError(connect.CodePermissionDenied, errNotMember)
		}
		var err error
		if confirm {
			status, err = l.ConfirmSettlement(caller, other)
		} else {
			status, err = l.RequestSettlement(caller, other)
		}
		if err != nil || status != ledger.StatusOK {
			return ledgerChange{}, err
		}
		settled, _ = l.Get(caller, other)
		return ledgerChange{op: op}, nil
	})
	if err != nil {
		slog.Warn("Settlement failed", "op", op, "group_id", groupID, "error", err)
		return nil, err
	}

	if confirm && status == ledger.StatusOK {
		debtor, creditor, amount := settled.Direction()
		s.recordSettlement(ctx, &models.Settlement{
			GroupID:    groupID,
			Kind:       models.SettlementConfirmed,
			FromUserID: debtor,
			ToUserID:   creditor,
			Amount:     amount,
			CreatedBy:  caller,
		})
	}

	slog.Info("Settlement processed", "op", op, "group_id", groupID, "status", status)
	return connect.NewResponse(&api.SettlementResponse{
		Status: string(status),
		Debt:   debtBetween(l, caller, other),
	}), nil
}

// RecordPayment reduces the caller's debt to another member by a direct
// payment, capped at what is owed.
func (s *ExpenseService) RecordPayment(ctx context.Context, req *connect.Request[api.RecordPaymentRequest]) (*connect.Response[api.RecordPaymentResponse], error) {
	slog.Info("RecordPayment request received",
		"group_id", req.Msg.GroupID,
		"to_user_id", req.Msg.ToUserID,
		"amount", req.Msg.Amount,
	)
	if err := requests.check(req.Msg); err != nil {
		return nil, err
	}
	amount, err := money.Parse(req.Msg.Amount)
	if err != nil {
		return nil, toConnectError(err)
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	var (
		applied money.Cents
		status  ledger.Status
	)
	_, l, err := s.mutateLedger(ctx, req.Msg.GroupID, func(group *models.Group, l *ledger.Ledger) (ledgerChange, error) {
		if !group.HasMember(caller) {
			return ledgerChange{}, connect.NewError(connect.CodePermissionDenied, errNotMember)
		}
		var err error
		applied, status, err = l.RecordPayment(caller, req.Msg.ToUserID, amount)
		if err != nil || status != ledger.StatusOK {
			return ledgerChange{}, err
		}
		return ledgerChange{op: "payment"}, nil
	})
	if err != nil {
		slog.Warn("RecordPayment failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, err
	}

	if applied > 0 {
		s.recordSettlement(ctx, &models.Settlement{
			GroupID:    req.Msg.GroupID,
			Kind:       models.SettlementPayment,
			FromUserID: caller,
			ToUserID:   req.Msg.ToUserID,
			Amount:     applied,
			CreatedBy:  caller,
			Note:       req.Msg.Note,
		})
	}

	slog.Info("Payment recorded", "group_id", req.Msg.GroupID, "applied", applied, "status", status)
	return connect.NewResponse(&api.RecordPaymentResponse{
		Status:  string(status),
		Applied: applied.String(),
		Debt:    debtBetween(l, caller, req.Msg.ToUserID),
	}), nil
}

// recordSettlement appends to the settlement history. The ledger is already
// persisted, so a failure here is logged and not returned.
func (s *ExpenseService) recordSettlement(ctx context.Context, settlement *models.Settlement) {
	settlement.ID = uuid.New().String()
	settlement.CreatedAt = time.Now().Unix()
	if err := s.store.CreateSettlement(context.WithoutCancel(ctx), settlement); err != nil {
		slog.Error("Failed to record settlement",
			"group_id", settlement.GroupID,
			"kind", settlement.Kind,
			"error", err,
		)
	}
}

// memberExpense loads an expense and checks the caller belongs to its group.
func (s *ExpenseService) memberExpense(ctx context.Context, expenseID string) (*models.Expense, string, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, "", err
	}
	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, "", toConnectError(err)
	}
	ok, err := s.store.IsMember(ctx, expense.GroupID, caller)
	if err != nil {
		return nil, "", toConnectError(err)
	}
	if !ok {
		return nil, "", connect.NewError(connect.CodePermissionDenied, errNotMember)
	}
	return expense, caller, nil
}
