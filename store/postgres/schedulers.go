package postgres

import (
	"context"
	"fmt"

	"github.com/xraph/foreman"
	"github.com/xraph/foreman/scheduler"
)

// CreateScheduler persists a new unowned scheduler and returns its id.
func (s *Store) CreateScheduler(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO foreman_schedulers (name) VALUES ($1) RETURNING id`,
		name,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("foreman/postgres: create scheduler: %w", err)
	}
	return id, nil
}

// ListSchedulers returns all schedulers ordered by id.
func (s *Store) ListSchedulers(ctx context.Context) ([]*scheduler.Scheduler, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, master_id
		FROM foreman_schedulers
		ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("foreman/postgres: list schedulers: %w", err)
	}
	defer rows.Close()

	var schedulers []*scheduler.Scheduler
	for rows.Next() {
		var sc scheduler.Scheduler
		if scanErr := rows.Scan(&sc.ID, &sc.Name, &sc.MasterID); scanErr != nil {
			return nil, fmt.Errorf("foreman/postgres: scan scheduler row: %w", scanErr)
		}
		schedulers = append(schedulers, &sc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("foreman/postgres: iterate scheduler rows: %w", err)
	}
	return schedulers, nil
}

// ClaimScheduler atomically makes the master the scheduler's owner.
// Claims held by another master are not stolen.
func (s *Store) ClaimScheduler(ctx context.Context, schedulerID, masterID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE foreman_schedulers
		SET master_id = $2
		WHERE id = $1 AND (master_id IS NULL OR master_id = $2)`,
		schedulerID, masterID,
	)
	if err != nil {
		return false, fmt.Errorf("foreman/postgres: claim scheduler: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if checkErr := s.checkExists(ctx, "foreman_schedulers", schedulerID, foreman.ErrSchedulerNotFound); checkErr != nil {
			return false, checkErr
		}
		return false, nil
	}
	return true, nil
}

// ReleaseSchedulers clears ownership of every scheduler owned by the
// given master and returns the number released.
func (s *Store) ReleaseSchedulers(ctx context.Context, masterID int64) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE foreman_schedulers SET master_id = NULL WHERE master_id = $1`,
		masterID,
	)
	if err != nil {
		return 0, fmt.Errorf("foreman/postgres: release schedulers: %w", err)
	}
	return tag.RowsAffected(), nil
}
