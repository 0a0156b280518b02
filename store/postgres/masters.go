package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/foreman"
	"github.com/xraph/foreman/master"
)

// GetMaster returns the master with the given id.
func (s *Store) GetMaster(ctx context.Context, masterID int64) (*master.Master, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, active, last_active
		FROM foreman_masters
		WHERE id = $1`,
		masterID,
	)

	m, err := scanMaster(row)
	if err != nil {
		if isNoRows(err) {
			return nil, foreman.ErrMasterNotFound
		}
		return nil, fmt.Errorf("foreman/postgres: get master: %w", err)
	}
	return m, nil
}

// ListMasters returns all registered masters ordered by id.
func (s *Store) ListMasters(ctx context.Context) ([]*master.Master, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, active, last_active
		FROM foreman_masters
		ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("foreman/postgres: list masters: %w", err)
	}
	defer rows.Close()

	var masters []*master.Master
	for rows.Next() {
		m, scanErr := scanMaster(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("foreman/postgres: scan master row: %w", scanErr)
		}
		masters = append(masters, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("foreman/postgres: iterate master rows: %w", err)
	}
	return masters, nil
}

// EnsureMaster finds the master with the given name, creating an
// inactive record on first registration.
func (s *Store) EnsureMaster(ctx context.Context, name string) (*master.Master, error) {
	// The no-op conflict update makes RETURNING yield the row on both
	// the insert and the already-exists path.
	row := s.pool.QueryRow(ctx, `
		INSERT INTO foreman_masters (name)
		VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, active, last_active`,
		name,
	)

	m, err := scanMaster(row)
	if err != nil {
		return nil, fmt.Errorf("foreman/postgres: ensure master: %w", err)
	}
	return m, nil
}

// SetMasterState atomically sets the active flag and reports whether it
// changed. Activation refreshes last_active even without a transition;
// last_active never moves backward.
func (s *Store) SetMasterState(ctx context.Context, masterID int64, active bool) (bool, error) {
	// FOR UPDATE in the subquery locks the row, so concurrent callers
	// serialize here and old.active is the latest committed flag rather
	// than the statement's snapshot. Two racing deactivations of the
	// same master must not both observe prior=true.
	var prior bool
	err := s.pool.QueryRow(ctx, `
		UPDATE foreman_masters t
		SET active = $2,
		    last_active = CASE WHEN $2 THEN GREATEST(t.last_active, NOW()) ELSE t.last_active END
		FROM (
			SELECT id, active
			FROM foreman_masters
			WHERE id = $1
			FOR UPDATE
		) old
		WHERE t.id = old.id
		RETURNING old.active`,
		masterID, active,
	).Scan(&prior)
	if err != nil {
		if isNoRows(err) {
			// Unknown id: no transition occurred, and that is not an error.
			return false, nil
		}
		return false, fmt.Errorf("foreman/postgres: set master state: %w", err)
	}
	return prior != active, nil
}

// scanMaster scans a single master row.
func scanMaster(row pgx.Row) (*master.Master, error) {
	var m master.Master
	err := row.Scan(&m.ID, &m.Name, &m.Active, &m.LastActive)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
