package models

import (
	"errors"
	"fmt"
)

// MemberKind tags how a member is backed.
type MemberKind string

const (
	KindRegistered  MemberKind = "registered"
	KindPlaceholder MemberKind = "placeholder"
)

// ErrUnknownMemberKind reports a stored member whose kind is neither
// registered nor placeholder.
var ErrUnknownMemberKind = errors.New("unknown member kind")

// MemberRef identifies a group member. It is implemented only by
// [Registered] and [Placeholder].
type MemberRef interface {
	MemberID() string
	Kind() MemberKind
	isMemberRef()
}

// Registered refers to a user account.
type Registered struct{ ID string }

// Placeholder refers to a person added by name and phone who has no account yet.
type Placeholder struct{ ID string }

func (r Registered) MemberID() string { return r.ID }
func (r Registered) Kind() MemberKind { return KindRegistered }
func (Registered) isMemberRef()       {}

func (p Placeholder) MemberID() string { return p.ID }
func (p Placeholder) Kind() MemberKind { return KindPlaceholder }
func (Placeholder) isMemberRef()       {}

// NewMemberRef rebuilds a reference from its stored form.
func NewMemberRef(kind MemberKind, id string) (MemberRef, error) {
	switch kind {
	case KindRegistered:
		return Registered{ID: id}, nil
	case KindPlaceholder:
		return Placeholder{ID: id}, nil
	}
	return nil, fmt.Errorf("%w %q for %s", ErrUnknownMemberKind, kind, id)
}

// Member is a group member as stored on the group record.
type Member struct {
	ID          string     `json:"id"`
	Kind        MemberKind `json:"kind"`
	DisplayName string     `json:"display_name"`
}

// Ref returns the typed reference for m.
func (m Member) Ref() (MemberRef, error) {
	return NewMemberRef(m.Kind, m.ID)
}

// MemberFromRef builds a stored member from a reference.
func MemberFromRef(ref MemberRef, displayName string) Member {
	return Member{ID: ref.MemberID(), Kind: ref.Kind(), DisplayName: displayName}
}
