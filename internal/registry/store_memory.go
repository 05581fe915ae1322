package registry

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"sigreg/pkg/platform/sentinel"
)

// InMemoryStore keeps the registry in process memory. It backs unit tests and
// keeps the domain logic runnable without PostgreSQL.
type InMemoryStore struct {
	mu          sync.RWMutex
	groups      map[uuid.UUID]Group
	entities    map[uuid.UUID]Entity
	signatures  map[uuid.UUID]Signature
	subscribers map[int64]struct{}
	now         func() time.Time
}

// NewInMemoryStore constructs an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		groups:      make(map[uuid.UUID]Group),
		entities:    make(map[uuid.UUID]Entity),
		signatures:  make(map[uuid.UUID]Signature),
		subscribers: make(map[int64]struct{}),
		now:         time.Now,
	}
}

// WithClock overrides the timestamp source; tests pin it for deterministic
// created_at/updated_at assertions.
func (s *InMemoryStore) WithClock(now func() time.Time) *InMemoryStore {
	s.now = now
	return s
}

func (s *InMemoryStore) UpsertGroup(_ context.Context, name string, parentID *uuid.UUID) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, g := range s.groups {
		if g.Name == name {
			if !uuidPtrEqual(g.ParentID, parentID) {
				g.ParentID = parentID
				s.groups[id] = g
			}
			return id, nil
		}
	}

	id := uuid.New()
	s.groups[id] = Group{ID: id, Name: name, ParentID: parentID}
	return id, nil
}

func (s *InMemoryStore) GetGroup(_ context.Context, id uuid.UUID) (Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[id]
	if !ok {
		return Group{}, sentinel.ErrNotFound
	}
	return g, nil
}

func (s *InMemoryStore) ListGroups(_ context.Context, parentID *uuid.UUID) ([]Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Group
	for _, g := range s.groups {
		if uuidPtrEqual(g.ParentID, parentID) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *InMemoryStore) EnsureOrgEntity(_ context.Context, groupID uuid.UUID, name string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entities {
		if e.Name == name {
			e.Kind = KindOrg
			gid := groupID
			e.GroupID = &gid
			s.entities[id] = e
			return id, nil
		}
	}

	id := uuid.New()
	gid := groupID
	s.entities[id] = Entity{ID: id, Name: name, Kind: KindOrg, GroupID: &gid}
	return id, nil
}

func (s *InMemoryStore) CreateEntity(_ context.Context, name string, kind Kind, groupID *uuid.UUID) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entities {
		if e.Name == name {
			return uuid.Nil, sentinel.ErrConflict
		}
	}

	id := uuid.New()
	s.entities[id] = Entity{ID: id, Name: name, Kind: kind, GroupID: groupID}
	return id, nil
}

func (s *InMemoryStore) DeleteEntity(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.entities, id)
	for sigID, sig := range s.signatures {
		if sig.EntityID == id {
			delete(s.signatures, sigID)
		}
	}
	return nil
}

func (s *InMemoryStore) GetEntityWithSignature(_ context.Context, id uuid.UUID) (EntityRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entities[id]
	if !ok {
		return EntityRow{}, sentinel.ErrNotFound
	}
	return s.rowForLocked(e), nil
}

func (s *InMemoryStore) ListGroupPersons(_ context.Context, groupID uuid.UUID) ([]EntityRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []EntityRow
	for _, e := range s.entities {
		if e.Kind == KindPerson && e.GroupID != nil && *e.GroupID == groupID {
			out = append(out, s.rowForLocked(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (s *InMemoryStore) GetGroupLegalEntity(_ context.Context, groupID uuid.UUID) (Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entities {
		if e.Kind == KindOrg && e.GroupID != nil && *e.GroupID == groupID {
			return e, nil
		}
	}
	return Entity{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) UpsertSignature(_ context.Context, entityID uuid.UUID, expiry time.Time, note *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[entityID]; !ok {
		return sentinel.ErrNotFound
	}

	now := s.now()
	expiry = DateOnly(expiry)

	for id, sig := range s.signatures {
		if sig.EntityID == entityID && sig.Active {
			sig.Expiry = expiry
			sig.Note = note
			sig.UpdatedAt = now
			s.signatures[id] = sig
			return nil
		}
	}

	id := uuid.New()
	s.signatures[id] = Signature{
		ID:        id,
		EntityID:  entityID,
		Expiry:    expiry,
		Note:      note,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (s *InMemoryStore) DeactivateSignature(_ context.Context, entityID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sig := range s.signatures {
		if sig.EntityID == entityID && sig.Active {
			sig.Active = false
			sig.UpdatedAt = s.now()
			s.signatures[id] = sig
		}
	}
	return nil
}

func (s *InMemoryStore) ListUpcomingSignatures(_ context.Context, limit int, from time.Time) ([]EntityRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	from = DateOnly(from)
	var out []EntityRow
	for _, sig := range s.signatures {
		if !sig.Active || sig.Expiry.Before(from) {
			continue
		}
		e, ok := s.entities[sig.EntityID]
		if !ok {
			continue
		}
		out = append(out, s.rowForLocked(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Expiry.Equal(*out[j].Expiry) {
			return out[i].Expiry.Before(*out[j].Expiry)
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) ListAllEntities(_ context.Context) ([]EntityRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]EntityRow, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, s.rowForLocked(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind == KindOrg
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (s *InMemoryStore) ListSignaturesExpiringOn(_ context.Context, dates []time.Time) ([]EntityRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[time.Time]struct{}, len(dates))
	for _, d := range dates {
		wanted[DateOnly(d)] = struct{}{}
	}

	var out []EntityRow
	for _, sig := range s.signatures {
		if !sig.Active {
			continue
		}
		if _, ok := wanted[sig.Expiry]; !ok {
			continue
		}
		e, ok := s.entities[sig.EntityID]
		if !ok {
			continue
		}
		out = append(out, s.rowForLocked(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Expiry.Equal(*out[j].Expiry) {
			return out[i].Expiry.Before(*out[j].Expiry)
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (s *InMemoryStore) ListSubscribers(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]int64, 0, len(s.subscribers))
	for id := range s.subscribers {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *InMemoryStore) AddSubscriber(_ context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers[chatID] = struct{}{}
	return nil
}

// rowForLocked joins an entity with its active signature. Caller holds s.mu.
func (s *InMemoryStore) rowForLocked(e Entity) EntityRow {
	row := EntityRow{ID: e.ID, Name: e.Name, Kind: e.Kind}
	for _, sig := range s.signatures {
		if sig.EntityID == e.ID && sig.Active {
			expiry := sig.Expiry
			row.Expiry = &expiry
			row.Note = sig.Note
			break
		}
	}
	return row
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
