package postgres

import (
	"context"
	"fmt"

	"github.com/xraph/foreman"
	"github.com/xraph/foreman/changesource"
)

// CreateChangeSource persists a new unowned change source and returns
// its id.
func (s *Store) CreateChangeSource(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO foreman_changesources (name) VALUES ($1) RETURNING id`,
		name,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("foreman/postgres: create change source: %w", err)
	}
	return id, nil
}

// ListChangeSources returns all change sources ordered by id.
func (s *Store) ListChangeSources(ctx context.Context) ([]*changesource.ChangeSource, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, master_id
		FROM foreman_changesources
		ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("foreman/postgres: list change sources: %w", err)
	}
	defer rows.Close()

	var sources []*changesource.ChangeSource
	for rows.Next() {
		var cs changesource.ChangeSource
		if scanErr := rows.Scan(&cs.ID, &cs.Name, &cs.MasterID); scanErr != nil {
			return nil, fmt.Errorf("foreman/postgres: scan change source row: %w", scanErr)
		}
		sources = append(sources, &cs)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("foreman/postgres: iterate change source rows: %w", err)
	}
	return sources, nil
}

// ClaimChangeSource atomically makes the master the source's owner.
// Claims held by another master are not stolen.
func (s *Store) ClaimChangeSource(ctx context.Context, changeSourceID, masterID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE foreman_changesources
		SET master_id = $2
		WHERE id = $1 AND (master_id IS NULL OR master_id = $2)`,
		changeSourceID, masterID,
	)
	if err != nil {
		return false, fmt.Errorf("foreman/postgres: claim change source: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if checkErr := s.checkExists(ctx, "foreman_changesources", changeSourceID, foreman.ErrChangeSourceNotFound); checkErr != nil {
			return false, checkErr
		}
		return false, nil
	}
	return true, nil
}

// ReleaseChangeSources clears ownership of every change source owned by
// the given master and returns the number released.
func (s *Store) ReleaseChangeSources(ctx context.Context, masterID int64) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE foreman_changesources SET master_id = NULL WHERE master_id = $1`,
		masterID,
	)
	if err != nil {
		return 0, fmt.Errorf("foreman/postgres: release change sources: %w", err)
	}
	return tag.RowsAffected(), nil
}
