package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/contri/internal/auth"
	"github.com/mmynk/contri/internal/ledger"
	"github.com/mmynk/contri/internal/models"
	"github.com/mmynk/contri/pkg/api"
	"github.com/mmynk/contri/pkg/api/apiconnect"
)

// AuthService implements the AuthService RPC interface.
type AuthService struct {
	*ledgerState
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
}

var _ apiconnect.AuthServiceHandler = (*AuthService)(nil)

// Register creates a new user account. When the phone number matches
// placeholders, the account takes over their group memberships and debts.
func (s *AuthService) Register(ctx context.Context, req *connect.Request[api.RegisterRequest]) (*connect.Response[api.RegisterResponse], error) {
	slog.Info("Register request", "email", req.Msg.Email)
	if err := requests.check(req.Msg); err != nil {
		return nil, err
	}

	user, err := s.authenticator.Register(ctx, auth.Registration{
		Email:       req.Msg.Email,
		DisplayName: req.Msg.DisplayName,
		Phone:       req.Msg.Phone,
		Password:    req.Msg.Password,
	})
	if err != nil {
		slog.Error("Registration failed", "email", req.Msg.Email, "error", err)
		switch {
		case errors.Is(err, auth.ErrEmailExists):
			return nil, connect.NewError(connect.CodeAlreadyExists, err)
		case errors.Is(err, auth.ErrWeakPassword):
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	var claimed []string
	if user.Phone != "" {
		claimed = s.claimPlaceholders(ctx, user)
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		slog.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	slog.Info("User registered successfully", "user_id", user.ID, "email", user.Email, "claimed_groups", len(claimed))
	return connect.NewResponse(&api.RegisterResponse{
		User:          toAPIUser(user),
		Token:         token,
		ClaimedGroups: claimed,
	}), nil
}

// Login authenticates a user and returns a JWT token.
func (s *AuthService) Login(ctx context.Context, req *connect.Request[api.LoginRequest]) (*connect.Response[api.LoginResponse], error) {
	slog.Info("Login request", "email", req.Msg.Email)
	if err := requests.check(req.Msg); err != nil {
		return nil, err
	}

	user, err := s.authenticator.Authenticate(ctx, req.Msg.Email, req.Msg.Password)
	if err != nil {
		slog.Warn("Login failed", "email", req.Msg.Email, "error", err)
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidCredentials)
	}

	token, err := s.jwtManager.Generate(user)
	if err != nil {
		slog.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	slog.Info("User logged in successfully", "user_id", user.ID, "email", user.Email)
	return connect.NewResponse(&api.LoginResponse{User: toAPIUser(user), Token: token}), nil
}

// GetCurrentUser returns the authenticated caller's account.
func (s *AuthService) GetCurrentUser(ctx context.Context, req *connect.Request[api.GetCurrentUserRequest]) (*connect.Response[api.GetCurrentUserResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("GetCurrentUser request", "user_id", userID)

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		slog.Error("GetCurrentUser failed", "user_id", userID, "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.GetCurrentUserResponse{User: toAPIUser(user)}), nil
}

// claimPlaceholders replaces every placeholder with user's phone number by
// the user, one group at a time. A group that fails is logged and skipped;
// the placeholder is only deleted once all of its groups were claimed.
// Returns the IDs of the groups that were claimed.
func (s *AuthService) claimPlaceholders(ctx context.Context, user *models.User) []string {
	placeholders, err := s.store.ListPlaceholdersByPhone(ctx, user.Phone)
	if err != nil {
		slog.Error("Failed to look up placeholders", "user_id", user.ID, "error", err)
		return nil
	}

	var claimed []string
	for _, p := range placeholders {
		groups, err := s.store.ListGroupsByMember(ctx, p.ID)
		if err != nil {
			slog.Error("Failed to list placeholder groups", "placeholder_id", p.ID, "error", err)
			continue
		}

		complete := true
		for _, g := range groups {
			if err := s.claimInGroup(ctx, g.ID, p.ID, user); err != nil {
				complete = false
				slog.Error("Failed to claim placeholder",
					"placeholder_id", p.ID,
					"user_id", user.ID,
					"group_id", g.ID,
					"error", err,
				)
				continue
			}
			claimed = append(claimed, g.ID)
		}

		if !complete {
			continue
		}
		if err := s.store.DeletePlaceholder(ctx, p.ID); err != nil {
			slog.Warn("Failed to delete claimed placeholder", "placeholder_id", p.ID, "error", err)
		}
	}
	return claimed
}

// claimInGroup moves a placeholder's membership, ledger entries and expense
// references in one group onto user.
func (s *AuthService) claimInGroup(ctx context.Context, groupID, placeholderID string, user *models.User) error {
	_, _, err := s.mutateLedger(ctx, groupID, func(group *models.Group, l *ledger.Ledger) (ledgerChange, error) {
		member, ok := group.Member(placeholderID)
		if !ok {
			return ledgerChange{}, nil
		}
		ref, err := member.Ref()
		if err != nil {
			return ledgerChange{}, err
		}
		if _, ok := ref.(models.Placeholder); !ok {
			return ledgerChange{}, fmt.Errorf("%w: %s is not a placeholder", ledger.ErrRemapConflict, placeholderID)
		}
		if group.HasMember(user.ID) {
			return ledgerChange{}, fmt.Errorf("%w: %s is already a member", ledger.ErrRemapConflict, user.ID)
		}

		moved, err := l.RemapMember(placeholderID, user.ID)
		if err != nil {
			return ledgerChange{}, err
		}
		for i, m := range group.Members {
			if m.ID == placeholderID {
				group.Members[i] = models.MemberFromRef(models.Registered{ID: user.ID}, user.DisplayName)
			}
		}

		rewrites, err := s.remapExpenses(ctx, groupID, placeholderID, user.ID)
		if err != nil {
			return ledgerChange{}, err
		}
		slog.Info("Placeholder claimed",
			"group_id", groupID,
			"placeholder_id", placeholderID,
			"user_id", user.ID,
			"debts_moved", moved,
			"expenses_rewritten", len(rewrites),
		)
		return ledgerChange{
			op: "claim_placeholder",
			undo: func(ctx context.Context) error {
				return s.restoreExpenses(ctx, rewrites)
			},
		}, nil
	})
	return err
}

// expenseRewrite is an expense together with the version that replaced it.
type expenseRewrite struct {
	prev, next *models.Expense
}

// remapExpenses rewrites the group's expenses that mention from so that
// reversing them later hits the remapped ledger entries. On failure every
// expense already rewritten is put back.
func (s *AuthService) remapExpenses(ctx context.Context, groupID, from, to string) ([]expenseRewrite, error) {
	expenses, err := s.store.ListExpensesByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}

	var done []expenseRewrite
	for _, e := range expenses {
		remapped, changed := remapExpense(e, from, to)
		if !changed {
			continue
		}
		if err := s.replaceExpense(ctx, e, remapped); err != nil {
			if rerr := s.restoreExpenses(ctx, done); rerr != nil {
				slog.Error("Failed to restore rewritten expenses", "group_id", groupID, "error", rerr)
			}
			return nil, fmt.Errorf("failed to rewrite expense %s: %w", e.ID, err)
		}
		done = append(done, expenseRewrite{prev: e, next: remapped})
	}
	return done, nil
}

// restoreExpenses puts back the original of each rewrite, newest rewrite first.
func (s *AuthService) restoreExpenses(ctx context.Context, rewrites []expenseRewrite) error {
	ctx = context.WithoutCancel(ctx)
	var errs []error
	for i := len(rewrites) - 1; i >= 0; i-- {
		r := rewrites[i]
		if err := s.replaceExpense(ctx, r.next, r.prev); err != nil {
			errs = append(errs, fmt.Errorf("expense %s: %w", r.prev.ID, err))
		}
	}
	return errors.Join(errs...)
}

func remapExpense(e *models.Expense, from, to string) (*models.Expense, bool) {
	swap := func(id string) string {
		if id == from {
			return to
		}
		return id
	}

	out := *e
	out.PaidBy = swap(e.PaidBy)
	changed := out.PaidBy != e.PaidBy
	out.Splits = make([]ledger.Delta, len(e.Splits))
	for i, d := range e.Splits {
		out.Splits[i] = ledger.Delta{Creditor: swap(d.Creditor), Debtor: swap(d.Debtor), Amount: d.Amount}
		if out.Splits[i] != d {
			changed = true
		}
	}
	return &out, changed
}
