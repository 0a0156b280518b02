package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/foreman"
	"github.com/xraph/foreman/request"
)

// CreateBuildRequest persists a new unclaimed request and returns its id.
func (s *Store) CreateBuildRequest(ctx context.Context, r *request.BuildRequest) (int64, error) {
	submittedAt := r.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now().UTC()
	}

	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO foreman_buildrequests (builder_id, submitted_at)
		VALUES ($1, $2)
		RETURNING id`,
		r.BuilderID, submittedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("foreman/postgres: create build request: %w", err)
	}
	return id, nil
}

// ClaimBuildRequests atomically claims the given requests for a master.
// The claim is all-or-nothing: if any request is missing or held by
// another master, no request in the batch is touched.
func (s *Store) ClaimBuildRequests(ctx context.Context, masterID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("foreman/postgres: begin claim: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Lock the batch so a competing claim serializes behind us.
	rows, err := tx.Query(ctx, `
		SELECT id, claimed_by
		FROM foreman_buildrequests
		WHERE id = ANY($1)
		FOR UPDATE`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("foreman/postgres: lock requests: %w", err)
	}

	found := 0
	for rows.Next() {
		var (
			id        int64
			claimedBy *int64
		)
		if scanErr := rows.Scan(&id, &claimedBy); scanErr != nil {
			rows.Close()
			return fmt.Errorf("foreman/postgres: scan request row: %w", scanErr)
		}
		if claimedBy != nil && *claimedBy != masterID {
			rows.Close()
			return foreman.ErrAlreadyClaimed
		}
		found++
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return fmt.Errorf("foreman/postgres: iterate request rows: %w", err)
	}
	if found != len(ids) {
		return foreman.ErrRequestNotFound
	}

	_, err = tx.Exec(ctx, `
		UPDATE foreman_buildrequests
		SET claimed_by = $1, claimed_at = COALESCE(claimed_at, NOW())
		WHERE id = ANY($2)`,
		masterID, ids,
	)
	if err != nil {
		return fmt.Errorf("foreman/postgres: claim requests: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("foreman/postgres: commit claim: %w", err)
	}
	return nil
}

// ClaimedBuildRequests returns the incomplete requests claimed by a
// master, ordered by id.
func (s *Store) ClaimedBuildRequests(ctx context.Context, masterID int64) ([]*request.BuildRequest, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, builder_id, claimed_by, claimed_at, complete, submitted_at
		FROM foreman_buildrequests
		WHERE claimed_by = $1 AND complete = FALSE
		ORDER BY id ASC`,
		masterID,
	)
	if err != nil {
		return nil, fmt.Errorf("foreman/postgres: claimed requests: %w", err)
	}
	defer rows.Close()

	var requests []*request.BuildRequest
	for rows.Next() {
		var r request.BuildRequest
		scanErr := rows.Scan(
			&r.ID, &r.BuilderID, &r.ClaimedBy, &r.ClaimedAt,
			&r.Complete, &r.SubmittedAt,
		)
		if scanErr != nil {
			return nil, fmt.Errorf("foreman/postgres: scan request row: %w", scanErr)
		}
		requests = append(requests, &r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("foreman/postgres: iterate request rows: %w", err)
	}
	return requests, nil
}

// UnclaimBuildRequests releases the claim on the given requests in a
// single statement. Unknown or already-unclaimed ids are skipped.
func (s *Store) UnclaimBuildRequests(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := s.pool.Exec(ctx, `
		UPDATE foreman_buildrequests
		SET claimed_by = NULL, claimed_at = NULL
		WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("foreman/postgres: unclaim requests: %w", err)
	}
	return nil
}
