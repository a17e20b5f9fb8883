// Package models defines the domain records shared by the services and the
// storage backends.
//
// # Members
//
// A group member is either a registered account or a placeholder created by
// another member before that person signed up. Both are referenced by an
// opaque identifier; [MemberRef] distinguishes the two. When a placeholder's
// owner registers, every reference to the placeholder is remapped to the new
// account (see the service package).
//
// # Ledger ownership
//
// A [Group] owns its debts. They are stored as plain [ledger.Entry] values and
// turned into a [ledger.Ledger] only while a mutation is in progress. An
// [Expense] records the deltas it contributed so that deleting it can undo
// exactly what adding it did.
//
// Relationships use ID strings instead of pointers.
package models
