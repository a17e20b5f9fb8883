package models

import (
	"github.com/mmynk/contri/internal/ledger"
)

// Group is a set of members who share expenses, together with their netted
// pairwise debts.
type Group struct {
	// ID is the unique identifier for the group ("grp_..." format).
	ID string `json:"id"`

	// Name is the display name of the group (e.g., "Roommates", "Trip").
	Name string `json:"name"`

	// CreatedBy is the registered user who created the group. Only the
	// creator may remove members or delete the group.
	CreatedBy string `json:"created_by"`

	// Members lists everyone in the group, including placeholders.
	Members []Member `json:"members"`

	// Debts is the group's ledger in stored form.
	Debts []ledger.Entry `json:"debts"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// MemberIDs returns the identifiers of all members in stored order.
func (g *Group) MemberIDs() []string {
	ids := make([]string, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.ID
	}
	return ids
}

// HasMember reports whether id is a member of the group.
func (g *Group) HasMember(id string) bool {
	_, ok := g.Member(id)
	return ok
}

// Member returns the member with the given id.
func (g *Group) Member(id string) (Member, bool) {
	for _, m := range g.Members {
		if m.ID == id {
			return m, true
		}
	}
	return Member{}, false
}

// Ledger loads the stored debts into a ledger.
func (g *Group) Ledger() (*ledger.Ledger, error) {
	return ledger.FromEntries(g.Debts)
}

// SetLedger replaces the stored debts with the ledger's current entries.
func (g *Group) SetLedger(l *ledger.Ledger) {
	g.Debts = l.Entries()
}
