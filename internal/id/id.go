// Package id generates prefixed, K-sortable identifiers ("grp_01h2xc...")
// for every stored entity. The prefix records the entity type, which lets a
// member identifier be told apart from a placeholder identifier at a glance.
package id

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in an identifier.
type Prefix string

const (
	PrefixGroup       Prefix = "grp"
	PrefixExpense     Prefix = "exp"
	PrefixUser        Prefix = "user"
	PrefixPlaceholder Prefix = "temp"
)

// New generates a new identifier with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) string {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return tid.String()
}

// NewGroupID generates a new group identifier.
func NewGroupID() string { return New(PrefixGroup) }

// NewExpenseID generates a new expense identifier.
func NewExpenseID() string { return New(PrefixExpense) }

// NewUserID generates a new registered-account identifier.
func NewUserID() string { return New(PrefixUser) }

// NewPlaceholderID generates a new placeholder-member identifier.
func NewPlaceholderID() string { return New(PrefixPlaceholder) }

// PrefixOf parses s and returns its prefix.
func PrefixOf(s string) (Prefix, error) {
	if s == "" {
		return "", fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("id: parse %q: %w", s, err)
	}
	return Prefix(tid.Prefix()), nil
}

// Validate checks that s is a well-formed identifier carrying the expected prefix.
func Validate(s string, expected Prefix) error {
	prefix, err := PrefixOf(s)
	if err != nil {
		return err
	}
	if prefix != expected {
		return fmt.Errorf("id: expected prefix %q, got %q", expected, prefix)
	}
	return nil
}
