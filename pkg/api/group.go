package api

type CreateGroupRequest struct {
	Name         string           `json:"name" validate:"required,max=100"`
	MemberIDs    []string         `json:"member_ids,omitempty" validate:"dive,required"`
	Placeholders []NewPlaceholder `json:"placeholders,omitempty" validate:"dive"`
}

type CreateGroupResponse struct {
	Group Group `json:"group"`
}

type GetGroupRequest struct {
	GroupID string `json:"group_id" validate:"required"`
}

type GetGroupResponse struct {
	Group     Group           `json:"group"`
	Expenses  []Expense       `json:"expenses"`
	Debts     []Debt          `json:"debts"`
	Balances  []MemberBalance `json:"balances"`
	Suggested []DebtEdge      `json:"suggested"`
}

type ListUserGroupsRequest struct{}

type ListUserGroupsResponse struct {
	Groups []Group `json:"groups"`
}

type AddMembersRequest struct {
	GroupID      string           `json:"group_id" validate:"required"`
	UserIDs      []string         `json:"user_ids,omitempty" validate:"dive,required"`
	Placeholders []NewPlaceholder `json:"placeholders,omitempty" validate:"dive"`
}

type AddMembersResponse struct {
	Group Group `json:"group"`
}

type RemoveMemberRequest struct {
	GroupID  string `json:"group_id" validate:"required"`
	MemberID string `json:"member_id" validate:"required"`
}

type RemoveMemberResponse struct {
	Group Group `json:"group"`
	// PurgedDebts is how many ledger entries involving the member were dropped.
	PurgedDebts int `json:"purged_debts"`
}

type DeleteGroupRequest struct {
	GroupID string `json:"group_id" validate:"required"`
}

type DeleteGroupResponse struct{}

type GetGroupDebtsRequest struct {
	GroupID string `json:"group_id" validate:"required"`
}

type GetGroupDebtsResponse struct {
	Debts []Debt `json:"debts"`
}

type GetGroupBalancesRequest struct {
	GroupID string `json:"group_id" validate:"required"`
}

type GetGroupBalancesResponse struct {
	Balances []MemberBalance `json:"balances"`
	// Outstanding lists every unsettled pair as a directed edge.
	Outstanding []DebtEdge `json:"outstanding"`
	// Suggested is a minimal set of payments that would clear all balances.
	Suggested []DebtEdge `json:"suggested"`
}

type ListSettlementsRequest struct {
	GroupID string `json:"group_id" validate:"required"`
}

type ListSettlementsResponse struct {
	Settlements []Settlement `json:"settlements"`
}
