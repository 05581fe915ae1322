package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"sigreg/pkg/platform/sentinel"
	txcontext "sigreg/pkg/platform/tx"
)

// PostgresStore persists the registry in PostgreSQL. Multi-row mutations run
// in a single transaction; the partial unique index on active signatures
// backs up the single-active invariant against concurrent writers.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgres constructs a PostgreSQL-backed registry store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) UpsertGroup(ctx context.Context, name string, parentID *uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		ex := s.execer(ctx)

		var existingParent *uuid.UUID
		err := ex.QueryRowContext(ctx, `SELECT id, parent_id FROM groups WHERE name = $1`, name).
			Scan(&id, &existingParent)
		switch {
		case err == nil:
			if !uuidPtrEqual(existingParent, parentID) {
				if _, err := ex.ExecContext(ctx, `UPDATE groups SET parent_id = $1 WHERE id = $2`, parentID, id); err != nil {
					return fmt.Errorf("reparent group: %w", err)
				}
			}
			return nil
		case errors.Is(err, sql.ErrNoRows):
			id = uuid.New()
			if _, err := ex.ExecContext(ctx,
				`INSERT INTO groups (id, name, parent_id) VALUES ($1, $2, $3)`,
				id, name, parentID); err != nil {
				return fmt.Errorf("insert group: %w", mapConstraint(err))
			}
			return nil
		default:
			return fmt.Errorf("find group by name: %w", err)
		}
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (s *PostgresStore) GetGroup(ctx context.Context, id uuid.UUID) (Group, error) {
	var g Group
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT id, name, parent_id FROM groups WHERE id = $1`, id).
		Scan(&g.ID, &g.Name, &g.ParentID)
	if errors.Is(err, sql.ErrNoRows) {
		return Group{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Group{}, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

func (s *PostgresStore) ListGroups(ctx context.Context, parentID *uuid.UUID) ([]Group, error) {
	query := `SELECT id, name, parent_id FROM groups WHERE parent_id IS NULL ORDER BY name`
	args := []any{}
	if parentID != nil {
		query = `SELECT id, name, parent_id FROM groups WHERE parent_id = $1 ORDER BY name`
		args = append(args, *parentID)
	}

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var out []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.ParentID); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *PostgresStore) EnsureOrgEntity(ctx context.Context, groupID uuid.UUID, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		ex := s.execer(ctx)

		err := ex.QueryRowContext(ctx, `SELECT id FROM entities WHERE name = $1`, name).Scan(&id)
		switch {
		case err == nil:
			if _, err := ex.ExecContext(ctx,
				`UPDATE entities SET kind = $1, group_id = $2 WHERE id = $3`,
				KindOrg, groupID, id); err != nil {
				return fmt.Errorf("update org entity: %w", err)
			}
			return nil
		case errors.Is(err, sql.ErrNoRows):
			id = uuid.New()
			if _, err := ex.ExecContext(ctx,
				`INSERT INTO entities (id, name, kind, group_id) VALUES ($1, $2, $3, $4)`,
				id, name, KindOrg, groupID); err != nil {
				return fmt.Errorf("insert org entity: %w", mapConstraint(err))
			}
			return nil
		default:
			return fmt.Errorf("find entity by name: %w", err)
		}
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (s *PostgresStore) CreateEntity(ctx context.Context, name string, kind Kind, groupID *uuid.UUID) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.execer(ctx).ExecContext(ctx,
		`INSERT INTO entities (id, name, kind, group_id) VALUES ($1, $2, $3, $4)`,
		id, name, kind, groupID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("create entity: %w", mapConstraint(err))
	}
	return id, nil
}

func (s *PostgresStore) DeleteEntity(ctx context.Context, id uuid.UUID) error {
	// Signatures go with it via ON DELETE CASCADE.
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM entities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete entity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entity: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

const entityRowSelect = `
	SELECT e.id, e.name, e.kind, s.expiry, s.note
	FROM entities e
	LEFT JOIN signatures s ON s.entity_id = e.id AND s.active
`

func (s *PostgresStore) GetEntityWithSignature(ctx context.Context, id uuid.UUID) (EntityRow, error) {
	row, err := scanEntityRow(s.execer(ctx).QueryRowContext(ctx, entityRowSelect+` WHERE e.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return EntityRow{}, sentinel.ErrNotFound
	}
	if err != nil {
		return EntityRow{}, fmt.Errorf("get entity with signature: %w", err)
	}
	return row, nil
}

func (s *PostgresStore) ListGroupPersons(ctx context.Context, groupID uuid.UUID) ([]EntityRow, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		entityRowSelect+` WHERE e.group_id = $1 AND e.kind = $2 ORDER BY lower(e.name)`,
		groupID, KindPerson)
	if err != nil {
		return nil, fmt.Errorf("list group persons: %w", err)
	}
	return collectEntityRows(rows)
}

func (s *PostgresStore) GetGroupLegalEntity(ctx context.Context, groupID uuid.UUID) (Entity, error) {
	var e Entity
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT id, name, kind, group_id FROM entities WHERE group_id = $1 AND kind = $2`,
		groupID, KindOrg).
		Scan(&e.ID, &e.Name, &e.Kind, &e.GroupID)
	if errors.Is(err, sql.ErrNoRows) {
		return Entity{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Entity{}, fmt.Errorf("get group legal entity: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) UpsertSignature(ctx context.Context, entityID uuid.UUID, expiry time.Time, note *string) error {
	expiry = DateOnly(expiry)
	now := s.now()

	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		ex := s.execer(ctx)

		var exists bool
		if err := ex.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM entities WHERE id = $1)`, entityID).Scan(&exists); err != nil {
			return fmt.Errorf("check entity: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}

		res, err := ex.ExecContext(ctx,
			`UPDATE signatures SET expiry = $1, note = $2, updated_at = $3 WHERE entity_id = $4 AND active`,
			expiry, note, now, entityID)
		if err != nil {
			return fmt.Errorf("update signature: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update signature: %w", err)
		}
		if affected > 0 {
			return nil
		}

		if _, err := ex.ExecContext(ctx,
			`INSERT INTO signatures (id, entity_id, expiry, note, active, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, TRUE, $5, $5)`,
			uuid.New(), entityID, expiry, note, now); err != nil {
			return fmt.Errorf("insert signature: %w", mapConstraint(err))
		}
		return nil
	})
}

func (s *PostgresStore) DeactivateSignature(ctx context.Context, entityID uuid.UUID) error {
	_, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE signatures SET active = FALSE, updated_at = $1 WHERE entity_id = $2 AND active`,
		s.now(), entityID)
	if err != nil {
		return fmt.Errorf("deactivate signature: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListUpcomingSignatures(ctx context.Context, limit int, from time.Time) ([]EntityRow, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		entityRowSelect+` WHERE s.expiry >= $1 ORDER BY s.expiry, lower(e.name) LIMIT $2`,
		DateOnly(from), limit)
	if err != nil {
		return nil, fmt.Errorf("list upcoming signatures: %w", err)
	}
	return collectEntityRows(rows)
}

func (s *PostgresStore) ListAllEntities(ctx context.Context) ([]EntityRow, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		entityRowSelect+` ORDER BY CASE WHEN e.kind = 'org' THEN 0 ELSE 1 END, lower(e.name)`)
	if err != nil {
		return nil, fmt.Errorf("list all entities: %w", err)
	}
	return collectEntityRows(rows)
}

func (s *PostgresStore) ListSignaturesExpiringOn(ctx context.Context, dates []time.Time) ([]EntityRow, error) {
	if len(dates) == 0 {
		return nil, nil
	}
	normalized := make([]time.Time, len(dates))
	for i, d := range dates {
		normalized[i] = DateOnly(d)
	}

	rows, err := s.execer(ctx).QueryContext(ctx,
		entityRowSelect+` WHERE s.expiry = ANY($1) ORDER BY s.expiry, lower(e.name)`,
		pq.Array(normalized))
	if err != nil {
		return nil, fmt.Errorf("list signatures expiring on: %w", err)
	}
	return collectEntityRows(rows)
}

func (s *PostgresStore) ListSubscribers(ctx context.Context) ([]int64, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `SELECT chat_id FROM subscribers ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AddSubscriber(ctx context.Context, chatID int64) error {
	_, err := s.execer(ctx).ExecContext(ctx,
		`INSERT INTO subscribers (chat_id) VALUES ($1) ON CONFLICT (chat_id) DO NOTHING`, chatID)
	if err != nil {
		return fmt.Errorf("add subscriber: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntityRow(r rowScanner) (EntityRow, error) {
	var (
		row    EntityRow
		expiry sql.NullTime
		note   sql.NullString
	)
	if err := r.Scan(&row.ID, &row.Name, &row.Kind, &expiry, &note); err != nil {
		return EntityRow{}, err
	}
	if expiry.Valid {
		d := DateOnly(expiry.Time)
		row.Expiry = &d
	}
	if note.Valid {
		n := note.String
		row.Note = &n
	}
	return row, nil
}

func collectEntityRows(rows *sql.Rows) ([]EntityRow, error) {
	defer rows.Close()

	var out []EntityRow
	for rows.Next() {
		row, err := scanEntityRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// mapConstraint translates unique violations into the conflict sentinel so
// services stay free of driver details.
func mapConstraint(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return sentinel.ErrConflict
	}
	return err
}
