// Package service implements the Connect RPC services: expenses and
// settlements, groups and members, and authentication.
//
// Every operation that changes a group's ledger holds that group's lock for
// the whole load, mutate and persist cycle. Cache invalidation happens after
// the lock is released and never fails the request.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/contri/internal/auth"
	"github.com/mmynk/contri/internal/cache"
	"github.com/mmynk/contri/internal/calculator"
	"github.com/mmynk/contri/internal/ledger"
	"github.com/mmynk/contri/internal/metrics"
	"github.com/mmynk/contri/internal/middleware"
	"github.com/mmynk/contri/internal/models"
	"github.com/mmynk/contri/internal/money"
	"github.com/mmynk/contri/internal/storage"
)

var (
	errNotMember  = errors.New("caller is not a member of this group")
	errNotCreator = errors.New("only the group creator can do this")
)

// invalidateTimeout bounds the background cache invalidation.
const invalidateTimeout = 2 * time.Second

// groupLocks serializes ledger read-modify-write cycles per group. Entries
// are reference counted and dropped once no goroutine holds or waits on them.
type groupLocks struct {
	mu    sync.Mutex
	locks map[string]*groupLock
}

type groupLock struct {
	mu   sync.Mutex
	refs int
}

func newGroupLocks() *groupLocks {
	return &groupLocks{locks: make(map[string]*groupLock)}
}

// lock blocks until the caller holds groupID's lock and returns its release
// function.
func (g *groupLocks) lock(groupID string) func() {
	g.mu.Lock()
	l, ok := g.locks[groupID]
	if !ok {
		l = &groupLock{}
		g.locks[groupID] = l
	}
	l.refs++
	g.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		g.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(g.locks, groupID)
		}
		g.mu.Unlock()
	}
}

// Services holds the RPC services. They share one set of group locks, so
// all ledger writes for a group are serialized no matter which service makes
// them.
type Services struct {
	Expenses *ExpenseService
	Groups   *GroupService
	Auth     *AuthService
}

// NewServices wires the services onto a store and group view cache.
func NewServices(store storage.Store, groupCache cache.GroupCache, authenticator auth.Authenticator, jwtManager *auth.JWTManager) *Services {
	state := &ledgerState{store: store, cache: groupCache, locks: newGroupLocks()}
	return &Services{
		Expenses: &ExpenseService{ledgerState: state},
		Groups:   &GroupService{ledgerState: state},
		Auth:     &AuthService{ledgerState: state, authenticator: authenticator, jwtManager: jwtManager},
	}
}

// ledgerState bundles what the ledger-mutating services share.
type ledgerState struct {
	store storage.Store
	cache cache.GroupCache
	locks *groupLocks
}

// invalidate drops the group's cached view in the background. Failures are
// logged and counted only.
func (s *ledgerState) invalidate(groupID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), invalidateTimeout)
		defer cancel()
		if err := s.cache.Invalidate(ctx, groupID); err != nil {
			metrics.CacheInvalidationFailures.Inc()
			slog.Warn("Cache invalidation failed", "group_id", groupID, "error", err)
		}
	}()
}

// memberGroup loads a group and checks the caller belongs to it.
func (s *ledgerState) memberGroup(ctx context.Context, groupID string) (*models.Group, string, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, "", err
	}
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, "", toConnectError(err)
	}
	if !group.HasMember(caller) {
		return nil, "", connect.NewError(connect.CodePermissionDenied, errNotMember)
	}
	return group, caller, nil
}

// ledgerChange describes what a mutation did.
type ledgerChange struct {
	// op labels the change for metrics and logs. Empty means nothing changed
	// and nothing is written.
	op string
	// undo reverts record writes made by the mutation when the ledger itself
	// cannot be persisted. May be nil.
	undo func(context.Context) error
}

// mutateLedger runs fn against the group's ledger under the group lock,
// persists the result and then invalidates the cached view.
func (s *ledgerState) mutateLedger(ctx context.Context, groupID string, fn func(*models.Group, *ledger.Ledger) (ledgerChange, error)) (*models.Group, *ledger.Ledger, error) {
	group, l, changed, err := s.mutateLocked(ctx, groupID, fn)
	if changed {
		s.invalidate(groupID)
	}
	return group, l, err
}

func (s *ledgerState) mutateLocked(ctx context.Context, groupID string, fn func(*models.Group, *ledger.Ledger) (ledgerChange, error)) (*models.Group, *ledger.Ledger, bool, error) {
	unlock := s.locks.lock(groupID)
	defer unlock()

	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, nil, false, toConnectError(err)
	}
	l, err := group.Ledger()
	if err != nil {
		slog.Error("Stored ledger is corrupt", "group_id", groupID, "error", err)
		return nil, nil, false, toConnectError(err)
	}

	change, err := fn(group, l)
	if err != nil {
		return nil, nil, false, toConnectError(err)
	}
	if change.op == "" {
		return group, l, false, nil
	}

	group.SetLedger(l)
	if err := s.store.UpdateGroup(ctx, group); err != nil {
		slog.Error("Failed to persist ledger", "group_id", groupID, "op", change.op, "error", err)
		if change.undo != nil {
			if uerr := change.undo(context.WithoutCancel(ctx)); uerr != nil {
				slog.Error("Failed to undo record write", "group_id", groupID, "op", change.op, "error", uerr)
			}
		}
		return nil, nil, false, toConnectError(err)
	}

	metrics.LedgerMutations.WithLabelValues(change.op).Inc()
	slog.Info("Ledger updated", "group_id", groupID, "op", change.op, "entries", l.Len())
	return group, l, true, nil
}

// replaceExpense swaps old for next under the same ID. If next cannot be
// written, old is put back.
func (s *ledgerState) replaceExpense(ctx context.Context, old, next *models.Expense) error {
	if err := s.store.DeleteExpense(ctx, old.ID); err != nil {
		return err
	}
	if err := s.store.CreateExpense(ctx, next); err != nil {
		if rerr := s.store.CreateExpense(context.WithoutCancel(ctx), old); rerr != nil {
			slog.Error("Failed to restore expense", "expense_id", old.ID, "error", rerr)
		}
		return err
	}
	return nil
}

// logResult reports reversal inconsistencies. They are not errors: the
// reversal proceeds for every other pair.
func logResult(groupID, expenseID string, res ledger.Result) {
	for _, k := range res.Missing {
		metrics.LedgerInconsistencies.WithLabelValues("missing").Inc()
		slog.Warn("Ledger inconsistency: reversal found no entry",
			"group_id", groupID, "expense_id", expenseID, "user1", k.Low, "user2", k.High)
	}
	for _, k := range res.SkippedSettled {
		metrics.LedgerInconsistencies.WithLabelValues("settled").Inc()
		slog.Warn("Ledger inconsistency: reversal skipped settled pair",
			"group_id", groupID, "expense_id", expenseID, "user1", k.Low, "user2", k.High)
	}
}

func callerID(ctx context.Context) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, errors.New("authentication required"))
	}
	return userID, nil
}

// toConnectError maps domain and storage errors onto Connect codes.
func toConnectError(err error) error {
	if err == nil {
		return nil
	}
	var cerr *connect.Error
	if errors.As(err, &cerr) {
		return cerr
	}

	switch {
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, storage.ErrAlreadyExists):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, money.ErrTooPrecise),
		errors.Is(err, calculator.ErrInvalidAmount),
		errors.Is(err, calculator.ErrNoParticipants),
		errors.Is(err, calculator.ErrInvalidParticipant),
		errors.Is(err, calculator.ErrInvalidManualSplit),
		errors.Is(err, calculator.ErrEmptyRemainderSet),
		errors.Is(err, ledger.ErrInvalidDelta),
		errors.Is(err, ledger.ErrInvalidPayment):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, ledger.ErrNoSuchDebt),
		errors.Is(err, ledger.ErrPaymentDirection),
		errors.Is(err, ledger.ErrBalanceOverflow),
		errors.Is(err, ledger.ErrRemapConflict):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, ledger.ErrCorruptEntry),
		errors.Is(err, ledger.ErrDuplicatePair),
		errors.Is(err, models.ErrUnknownMemberKind):
		return connect.NewError(connect.CodeDataLoss, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}
