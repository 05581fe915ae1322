package registry

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence boundary for the registry. Implementations return
// sentinel.ErrNotFound when a referenced id is absent and sentinel.ErrConflict
// on uniqueness violations; callers translate those into domain errors.
//
// Every operation that touches more than one row executes as a single atomic
// unit so concurrent readers never observe partial state.
type Store interface {
	// UpsertGroup is idempotent by name: an existing group is reparented if
	// its parent differs, otherwise a new group is created.
	UpsertGroup(ctx context.Context, name string, parentID *uuid.UUID) (uuid.UUID, error)

	// GetGroup resolves a group by id.
	GetGroup(ctx context.Context, id uuid.UUID) (Group, error)

	// ListGroups returns the direct children of parentID ordered by name, or
	// the root groups when parentID is nil.
	ListGroups(ctx context.Context, parentID *uuid.UUID) ([]Group, error)

	// EnsureOrgEntity is idempotent by name: it forces kind=org and group
	// membership on an existing entity, or creates one. Used by bootstrap
	// seeding, not by interactive registration.
	EnsureOrgEntity(ctx context.Context, groupID uuid.UUID, name string) (uuid.UUID, error)

	// CreateEntity registers a new entity; conflicts on a taken name.
	CreateEntity(ctx context.Context, name string, kind Kind, groupID *uuid.UUID) (uuid.UUID, error)

	// DeleteEntity removes an entity and hard-deletes all its signatures.
	DeleteEntity(ctx context.Context, id uuid.UUID) error

	// GetEntityWithSignature returns the entity joined with its active
	// signature (nil expiry/note when there is none).
	GetEntityWithSignature(ctx context.Context, id uuid.UUID) (EntityRow, error)

	// ListGroupPersons returns the person-kind entities of a group with their
	// active signatures, case-insensitively ordered by name.
	ListGroupPersons(ctx context.Context, groupID uuid.UUID) ([]EntityRow, error)

	// GetGroupLegalEntity returns the (at most one) org-kind entity directly
	// owned by a group.
	GetGroupLegalEntity(ctx context.Context, groupID uuid.UUID) (Entity, error)

	// UpsertSignature replaces the entity's single active signature in place
	// if one exists, else inserts a new active one. Always stamps updated_at.
	UpsertSignature(ctx context.Context, entityID uuid.UUID, expiry time.Time, note *string) error

	// DeactivateSignature soft-deletes the entity's active signature; no-op
	// when there is none.
	DeactivateSignature(ctx context.Context, entityID uuid.UUID) error

	// ListUpcomingSignatures returns active signatures with expiry >= from,
	// ascending by expiry, capped at limit.
	ListUpcomingSignatures(ctx context.Context, limit int, from time.Time) ([]EntityRow, error)

	// ListAllEntities returns every entity with its active signature if any,
	// org-kind first, then case-insensitively by name.
	ListAllEntities(ctx context.Context) ([]EntityRow, error)

	// ListSignaturesExpiringOn returns active signatures whose expiry date is
	// in dates, ascending by date then name. Backs the reminder sweep.
	ListSignaturesExpiringOn(ctx context.Context, dates []time.Time) ([]EntityRow, error)

	// ListSubscribers returns every subscribed chat id.
	ListSubscribers(ctx context.Context) ([]int64, error)

	// AddSubscriber registers a chat for reminders; inserting an existing id
	// is a no-op.
	AddSubscriber(ctx context.Context, chatID int64) error
}
