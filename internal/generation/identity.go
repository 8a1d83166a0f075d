// Package generation names backup generations and orders them into restore chains.
package generation

import (
	"time"
)

// Role tells which half of a generation an artifact holds.
type Role string

const (
	RoleContent    Role = "content"
	RoleSignatures Role = "signatures"
)

// Kind tells whether a generation is self-contained or depends on its predecessors.
type Kind string

const (
	KindFull        Kind = "full"
	KindIncremental Kind = "inc"
)

// Identity is the decoded form of a stored generation name.
type Identity struct {
	Prefix string
	Role   Role
	Kind   Kind
	Time   time.Time
}

// NewIdentity normalizes t to UTC at second precision, the resolution names can carry.
func NewIdentity(prefix string, role Role, kind Kind, t time.Time) Identity {
	return Identity{
		Prefix: prefix,
		Role:   role,
		Kind:   kind,
		Time:   normalizeTime(t),
	}
}

func (id Identity) IsFull() bool {
	return id.Kind == KindFull
}

func (id Identity) Equal(other Identity) bool {
	return id.Prefix == other.Prefix &&
		id.Role == other.Role &&
		id.Kind == other.Kind &&
		id.Time.Equal(other.Time)
}

// WithRole returns the identity of the other half of the same generation.
func (id Identity) WithRole(role Role) Identity {
	id.Role = role
	return id
}

func (r Role) valid() bool {
	return r == RoleContent || r == RoleSignatures
}

func (k Kind) valid() bool {
	return k == KindFull || k == KindIncremental
}

func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
