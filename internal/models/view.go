package models

import (
	"github.com/mmynk/contri/internal/calculator"
)

// GroupView is the precomputed read model of a group served from the cache.
type GroupView struct {
	Group    Group                      `json:"group"`
	Expenses []Expense                  `json:"expenses"`
	Balances []calculator.MemberBalance `json:"balances"`
	// Suggested is a minimal set of payments that would clear all balances.
	Suggested []calculator.DebtEdge `json:"suggested"`
	BuiltAt   int64                 `json:"built_at"`
}
