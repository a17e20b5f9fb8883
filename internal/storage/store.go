// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/contri/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrAlreadyExists is returned when a unique key is taken.
	ErrAlreadyExists = errors.New("storage: already exists")
)

// GroupStore persists groups, their members and their ledgers.
type GroupStore interface {
	// CreateGroup persists a new group. The ID and timestamps are filled in
	// when empty.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group including members and debts.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// UpdateGroup replaces the group's name, members and debts.
	UpdateGroup(ctx context.Context, group *models.Group) error

	// DeleteGroup removes the group together with its expenses and
	// settlement records.
	DeleteGroup(ctx context.Context, groupID string) error

	// ListGroupsByMember returns every group memberID belongs to, newest first.
	ListGroupsByMember(ctx context.Context, memberID string) ([]*models.Group, error)

	// ListMembers returns the group's members in stored order.
	ListMembers(ctx context.Context, groupID string) ([]models.Member, error)

	// IsMember reports whether memberID belongs to the group.
	IsMember(ctx context.Context, groupID, memberID string) (bool, error)
}

// ExpenseStore persists expenses. Expenses are immutable once created.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, expense *models.Expense) error
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)
	ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error)
	DeleteExpense(ctx context.Context, expenseID string) error
}

// UserStore persists registered accounts and placeholders.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	// GetUsersByIDs returns the users that exist, keyed by ID.
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)

	CreatePlaceholder(ctx context.Context, p *models.PlaceholderUser) error
	ListPlaceholdersByPhone(ctx context.Context, phone string) ([]*models.PlaceholderUser, error)
	DeletePlaceholder(ctx context.Context, id string) error
}

// SettlementStore keeps the append-only settlement history.
type SettlementStore interface {
	CreateSettlement(ctx context.Context, settlement *models.Settlement) error
	ListSettlementsByGroup(ctx context.Context, groupID string) ([]*models.Settlement, error)
}

// Store is the full persistence surface used by the services.
// This abstraction allows swapping storage backends (SQLite, MongoDB)
// without changing the service layer.
type Store interface {
	GroupStore
	ExpenseStore
	UserStore
	SettlementStore

	// Ping checks the backing database is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
