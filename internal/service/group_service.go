package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/contri/internal/calculator"
	"github.com/mmynk/contri/internal/id"
	"github.com/mmynk/contri/internal/ledger"
	"github.com/mmynk/contri/internal/models"
	"github.com/mmynk/contri/pkg/api"
	"github.com/mmynk/contri/pkg/api/apiconnect"
)

var (
	errInvalidMembers   = errors.New("some members are not registered users")
	errNoNewMembers     = errors.New("all members are already part of the group")
	errNothingToAdd     = errors.New("no members given")
	errMemberNotInGroup = errors.New("member not found in the group")
	errRemoveCreator    = errors.New("the group creator cannot be removed; delete the group instead")
)

// GroupService implements the Connect GroupService
type GroupService struct {
	*ledgerState
}

var _ apiconnect.GroupServiceHandler = (*GroupService)(nil)

// CreateGroup creates a new group with the caller as creator and first member.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	slog.Info("CreateGroup request received",
		"name", req.Msg.Name,
		"members_count", len(req.Msg.MemberIDs),
		"placeholders_count", len(req.Msg.Placeholders),
	)
	if err := requests.check(req.Msg); err != nil {
		return nil, err
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	creator, err := s.store.GetUserByID(ctx, caller)
	if err != nil {
		slog.Error("CreateGroup: failed to load creator", "user_id", caller, "error", err)
		return nil, toConnectError(err)
	}
	members := []models.Member{models.MemberFromRef(models.Registered{ID: creator.ID}, creator.DisplayName)}

	registered, err := s.registeredMembers(ctx, req.Msg.MemberIDs)
	if err != nil {
		return nil, err
	}
	members = appendNew(members, registered)

	placeholders, err := s.createPlaceholders(ctx, caller, req.Msg.Placeholders)
	if err != nil {
		return nil, err
	}
	members = append(members, placeholders...)

	group := &models.Group{
		ID:        id.NewGroupID(),
		Name:      req.Msg.Name,
		CreatedBy: caller,
		Members:   members,
	}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		slog.Error("CreateGroup failed", "error", err)
		s.dropPlaceholders(ctx, placeholders)
		return nil, toConnectError(err)
	}

	slog.Info("Group created", "group_id", group.ID, "members_count", len(group.Members))
	return connect.NewResponse(&api.CreateGroupResponse{Group: toAPIGroup(group)}), nil
}

// GetGroup returns a group with its expenses, debts and member balances.
// The view is served from the group cache.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	slog.Info("GetGroup request received", "group_id", req.Msg.GroupID)
	if err := requests.check(req.Msg); err != nil {
		return nil, err
	}
	view, err := s.memberView(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, err
	}

	expenses := make([]api.Expense, len(view.Expenses))
	for i := range view.Expenses {
		expenses[i] = toAPIExpense(&view.Expenses[i])
	}

	slog.Info("GetGroup successful", "group_id", view.Group.ID, "name", view.Group.Name)
	return connect.NewResponse(&api.GetGroupResponse{
		Group:     toAPIGroup(&view.Group),
		Expenses:  expenses,
		Debts:     toAPIDebts(view.Group.Debts),
		Balances:  toAPIBalances(view.Balances),
		Suggested: toAPIEdges(view.Suggested),
	}), nil
}

// ListUserGroups returns the groups the caller belongs to.
func (s *GroupService) ListUserGroups(ctx context.Context, req *connect.Request[api.ListUserGroupsRequest]) (*connect.Response[api.ListUserGroupsResponse], error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	groups, err := s.store.ListGroupsByMember(ctx, caller)
	if err != nil {
		slog.Error("ListUserGroups failed", "user_id", caller, "error", err)
		return nil, toConnectError(err)
	}

	out := make([]api.Group, len(groups))
	for i, g := range groups {
		out[i] = toAPIGroup(g)
	}
	slog.Info("ListUserGroups successful", "user_id", caller, "count", len(out))
	return connect.NewResponse(&api.ListUserGroupsResponse{Groups: out}), nil
}

// AddMembers adds registered users and placeholders to a group. Members that
// are already in the group are skipped.
func (s *GroupService) AddMembers(ctx context.Context, req *connect.Request[api.AddMembersRequest]) (*connect.Response[api.AddMembersResponse], error) {
	slog.Info("AddMembers request received",
		"group_id", req.Msg.GroupID,
		"members_count", len(req.Msg.UserIDs),
		"placeholders_count", len(req.Msg.Placeholders),
	)
	if err := requests.check(req.Msg); err != nil {
		return nil, err
	}
	if len(req.Msg.UserIDs) == 0 && len(req.Msg.Placeholders) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errNothingToAdd)
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	registered, err := s.registeredMembers(ctx, req.Msg.UserIDs)
	if err != nil {
		return nil, err
	}

	var placeholders []models.Member
	group, _, err := s.mutateLedger(ctx, req.Msg.GroupID, func(group *models.Group, _ *ledger.Ledger) (ledgerChange, error) {
		if !group.HasMember(caller) {
			return ledgerChange{}, connect.NewError(connect.CodePermissionDenied, errNotMember)
		}
		added := appendNew(nil, filterMembers(registered, group))
		if len(added) == 0 && len(req.Msg.Placeholders) == 0 {
			return ledgerChange{}, connect.NewError(connect.CodeInvalidArgument, errNoNewMembers)
		}

		var err error
		placeholders, err = s.createPlaceholders(ctx, caller, req.Msg.Placeholders)
		if err != nil {
			return ledgerChange{}, err
		}
		group.Members = append(group.Members, added...)
		group.Members = append(group.Members, placeholders...)
		return ledgerChange{
			op: "add_members",
			undo: func(ctx context.Context) error {
				s.dropPlaceholders(ctx, placeholders)
				return nil
			},
		}, nil
	})
	if err != nil {
		slog.Error("AddMembers failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, err
	}

	slog.Info("Members added", "group_id", group.ID, "members_count", len(group.Members))
	return connect.NewResponse(&api.AddMembersResponse{Group: toAPIGroup(group)}), nil
}

// RemoveMember removes a member and every ledger entry involving them.
// Outstanding balances of the removed member are dropped, not redistributed.
// Only the group creator may remove members.
func (s *GroupService) RemoveMember(ctx context.Context, req *connect.Request[api.RemoveMemberRequest]) (*connect.Response[api.RemoveMemberResponse], error) {
	slog.Info("RemoveMember request received", "group_id", req.Msg.GroupID, "member_id", req.Msg.MemberID)
	if err := requests.check(req.Msg); err != nil {
		return nil, err
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	var purged int
	group, _, err := s.mutateLedger(ctx, req.Msg.GroupID, func(group *models.Group, l *ledger.Ledger) (ledgerChange, error) {
		if group.CreatedBy != caller {
			return ledgerChange{}, connect.NewError(connect.CodePermissionDenied, errNotCreator)
		}
		if req.Msg.MemberID == group.CreatedBy {
			return ledgerChange{}, connect.NewError(connect.CodeFailedPrecondition, errRemoveCreator)
		}
		if !group.HasMember(req.Msg.MemberID) {
			return ledgerChange{}, connect.NewError(connect.CodeNotFound, errMemberNotInGroup)
		}

		kept := group.Members[:0]
		for _, m := range group.Members {
			if m.ID != req.Msg.MemberID {
				kept = append(kept, m)
			}
		}
		group.Members = kept
		purged = l.PurgeMember(req.Msg.MemberID)
		return ledgerChange{op: "remove_member"}, nil
	})
	if err != nil {
		slog.Error("RemoveMember failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, err
	}

	slog.Info("Member removed", "group_id", group.ID, "member_id", req.Msg.MemberID, "purged_debts", purged)
	return connect.NewResponse(&api.RemoveMemberResponse{
		Group:       toAPIGroup(group),
		PurgedDebts: purged,
	}), nil
}

// DeleteGroup removes a group with all of its expenses and debts. Only the
// group creator may delete it.
func (s *GroupService) DeleteGroup(ctx context.Context, req *connect.Request[api.DeleteGroupRequest]) (*connect.Response[api.DeleteGroupResponse], error) {
	slog.Info("DeleteGroup request received", "group_id", req.Msg.GroupID)
	if err := requests.check(req.Msg); err != nil {
		return nil, err
	}
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.deleteGroup(ctx, req.Msg.GroupID, caller); err != nil {
		slog.Error("DeleteGroup failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, err
	}
	s.invalidate(req.Msg.GroupID)

	slog.Info("Group deleted", "group_id", req.Msg.GroupID)
	return connect.NewResponse(&api.DeleteGroupResponse{}), nil
}

func (s *GroupService) deleteGroup(ctx context.Context, groupID, caller string) error {
	unlock := s.locks.lock(groupID)
	defer unlock()

	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return toConnectError(err)
	}
	if group.CreatedBy != caller {
		return connect.NewError(connect.CodePermissionDenied, errNotCreator)
	}
	if err := s.store.DeleteGroup(ctx, groupID); err != nil {
		return toConnectError(err)
	}
	return nil
}

// GetGroupDebts returns the group's pairwise ledger entries.
func (s *GroupService) GetGroupDebts(ctx context.Context, req *connect.Request[api.GetGroupDebtsRequest]) (*connect.Response[api.GetGroupDebtsResponse], error) {
	if err := requests.check(req.Msg); err != nil {
		return nil, err
	}
	group, _, err := s.memberGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, err
	}
	l, err := group.Ledger()
	if err != nil {
		slog.Error("Stored ledger is corrupt", "group_id", group.ID, "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.GetGroupDebtsResponse{Debts: toAPIDebts(l.Entries())}), nil
}

// GetGroupBalances returns each member's net position, the outstanding
// pairwise debts and a minimal set of payments that would clear them.
func (s *GroupService) GetGroupBalances(ctx context.Context, req *connect.Request[api.GetGroupBalancesRequest]) (*connect.Response[api.GetGroupBalancesResponse], error) {
	if err := requests.check(req.Msg); err != nil {
		return nil, err
	}
	view, err := s.memberView(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&api.GetGroupBalancesResponse{
		Balances:    toAPIBalances(view.Balances),
		Outstanding: toAPIEdges(calculator.OutstandingDebts(view.Group.Debts)),
		Suggested:   toAPIEdges(view.Suggested),
	}), nil
}

// ListSettlements returns the group's settlement history, newest first.
func (s *GroupService) ListSettlements(ctx context.Context, req *connect.Request[api.ListSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error) {
	if err := requests.check(req.Msg); err != nil {
		return nil, err
	}
	if _, _, err := s.memberGroup(ctx, req.Msg.GroupID); err != nil {
		return nil, err
	}
	settlements, err := s.store.ListSettlementsByGroup(ctx, req.Msg.GroupID)
	if err != nil {
		slog.Error("ListSettlements failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(err)
	}
	out := make([]api.Settlement, len(settlements))
	for i, st := range settlements {
		out[i] = toAPISettlement(st)
	}
	return connect.NewResponse(&api.ListSettlementsResponse{Settlements: out}), nil
}

// memberView returns the cached group view after checking the caller is a
// member.
func (s *GroupService) memberView(ctx context.Context, groupID string) (*models.GroupView, error) {
	caller, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.cache.Get(ctx, groupID, func(ctx context.Context) (*models.GroupView, error) {
		return s.buildView(ctx, groupID)
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	if !view.Group.HasMember(caller) {
		return nil, connect.NewError(connect.CodePermissionDenied, errNotMember)
	}
	return view, nil
}

// buildView assembles the read model of a group from the store.
func (s *GroupService) buildView(ctx context.Context, groupID string) (*models.GroupView, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	l, err := group.Ledger()
	if err != nil {
		return nil, err
	}
	group.SetLedger(l)

	expenses, err := s.store.ListExpensesByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	view := &models.GroupView{
		Group:    *group,
		Expenses: make([]models.Expense, len(expenses)),
		BuiltAt:  time.Now().Unix(),
	}
	for i, e := range expenses {
		view.Expenses[i] = *e
	}
	view.Balances = calculator.MemberBalances(group.Debts, group.MemberIDs())
	view.Suggested = calculator.SimplifyDebts(view.Balances)
	return view, nil
}

// registeredMembers resolves user IDs to members. Every ID must belong to a
// registered user.
func (s *GroupService) registeredMembers(ctx context.Context, userIDs []string) ([]models.Member, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	users, err := s.store.GetUsersByIDs(ctx, userIDs)
	if err != nil {
		return nil, toConnectError(err)
	}
	members := make([]models.Member, 0, len(userIDs))
	for _, uid := range userIDs {
		u, ok := users[uid]
		if !ok {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("%w: %s", errInvalidMembers, uid))
		}
		members = append(members, models.MemberFromRef(models.Registered{ID: u.ID}, u.DisplayName))
	}
	return members, nil
}

// createPlaceholders stores a placeholder for each new person and returns
// them as members.
func (s *GroupService) createPlaceholders(ctx context.Context, caller string, in []api.NewPlaceholder) ([]models.Member, error) {
	members := make([]models.Member, 0, len(in))
	for _, np := range in {
		p := &models.PlaceholderUser{
			ID:        id.NewPlaceholderID(),
			Name:      np.Name,
			Phone:     np.Phone,
			CreatedBy: caller,
		}
		if err := s.store.CreatePlaceholder(ctx, p); err != nil {
			s.dropPlaceholders(ctx, members)
			return nil, fmt.Errorf("failed to create placeholder: %w", err)
		}
		members = append(members, models.MemberFromRef(models.Placeholder{ID: p.ID}, p.Name))
	}
	return members, nil
}

// dropPlaceholders deletes placeholders created for a write that failed.
func (s *GroupService) dropPlaceholders(ctx context.Context, members []models.Member) {
	ctx = context.WithoutCancel(ctx)
	for _, m := range members {
		if err := s.store.DeletePlaceholder(ctx, m.ID); err != nil {
			slog.Warn("Failed to delete orphaned placeholder", "placeholder_id", m.ID, "error", err)
		}
	}
}

// filterMembers returns the candidates not already in the group.
func filterMembers(candidates []models.Member, group *models.Group) []models.Member {
	var out []models.Member
	for _, m := range candidates {
		if !group.HasMember(m.ID) {
			out = append(out, m)
		}
	}
	return out
}

// appendNew appends members whose IDs are not yet in list.
func appendNew(list, members []models.Member) []models.Member {
	seen := make(map[string]bool, len(list))
	for _, m := range list {
		seen[m.ID] = true
	}
	for _, m := range members {
		if !seen[m.ID] {
			seen[m.ID] = true
			list = append(list, m)
		}
	}
	return list
}
