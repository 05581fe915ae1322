// Package registry models the organizational hierarchy and the signature
// records attached to it.
package registry

import (
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes organizations from individuals. Entity names are unique
// globally, across both kinds.
type Kind string

const (
	KindOrg    Kind = "org"
	KindPerson Kind = "person"
)

// Valid reports whether k is one of the two known kinds.
func (k Kind) Valid() bool {
	return k == KindOrg || k == KindPerson
}

// Group is a node in the organizational hierarchy. Parent pointers form a
// forest; root groups have a nil parent. Deleting a parent nulls the pointer
// on its children rather than cascading.
type Group struct {
	ID       uuid.UUID
	Name     string
	ParentID *uuid.UUID
}

// Entity is an organization or individual tracked in the registry.
type Entity struct {
	ID      uuid.UUID
	Name    string
	Kind    Kind
	GroupID *uuid.UUID
}

// Signature is a time-bounded credential record owned by exactly one entity.
// At most one signature per entity is active at a time.
type Signature struct {
	ID        uuid.UUID
	EntityID  uuid.UUID
	Expiry    time.Time
	Note      *string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EntityRow is an entity joined with its active signature, if any. Expiry is
// nil when the entity has no active signature.
type EntityRow struct {
	ID     uuid.UUID
	Name   string
	Kind   Kind
	Expiry *time.Time
	Note   *string
}

// HasSignature reports whether the row carries an active signature.
func (r EntityRow) HasSignature() bool { return r.Expiry != nil }

// DateOnly truncates t to a calendar date in its own location. Expiry
// comparisons are date-granular throughout.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
