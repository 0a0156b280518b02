package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/foreman"
	"github.com/xraph/foreman/build"
)

// CreateBuild persists a new incomplete build and returns its id.
func (s *Store) CreateBuild(ctx context.Context, b *build.Build) (int64, error) {
	startedAt := b.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO foreman_builds (builder_id, master_id, request_id, started_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		b.BuilderID, b.MasterID, b.RequestID, startedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("foreman/postgres: create build: %w", err)
	}
	return id, nil
}

// CreateStep persists a new open step and returns its id.
func (s *Store) CreateStep(ctx context.Context, st *build.Step) (int64, error) {
	startedAt := st.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}

	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO foreman_steps (build_id, name, started_at)
		VALUES ($1, $2, $3)
		RETURNING id`,
		st.BuildID, st.Name, startedAt,
	).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, foreman.ErrBuildNotFound
		}
		return 0, fmt.Errorf("foreman/postgres: create step: %w", err)
	}
	return id, nil
}

// CreateLog persists a new open log and returns its id.
func (s *Store) CreateLog(ctx context.Context, l *build.Log) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO foreman_logs (step_id, name, num_lines)
		VALUES ($1, $2, $3)
		RETURNING id`,
		l.StepID, l.Name, l.NumLines,
	).Scan(&id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, foreman.ErrStepNotFound
		}
		return 0, fmt.Errorf("foreman/postgres: create log: %w", err)
	}
	return id, nil
}

// IncompleteBuilds returns the incomplete builds owned by a master,
// ordered by id.
func (s *Store) IncompleteBuilds(ctx context.Context, masterID int64) ([]*build.Build, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, builder_id, master_id, request_id, complete, results, started_at, complete_at
		FROM foreman_builds
		WHERE master_id = $1 AND complete = FALSE
		ORDER BY id ASC`,
		masterID,
	)
	if err != nil {
		return nil, fmt.Errorf("foreman/postgres: incomplete builds: %w", err)
	}
	defer rows.Close()

	var builds []*build.Build
	for rows.Next() {
		b, scanErr := scanBuild(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("foreman/postgres: scan build row: %w", scanErr)
		}
		builds = append(builds, b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("foreman/postgres: iterate build rows: %w", err)
	}
	return builds, nil
}

// OpenSteps returns the steps of a build whose results are unset,
// ordered by id.
func (s *Store) OpenSteps(ctx context.Context, buildID int64) ([]*build.Step, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, build_id, name, results, hidden, started_at, complete_at
		FROM foreman_steps
		WHERE build_id = $1 AND results IS NULL
		ORDER BY id ASC`,
		buildID,
	)
	if err != nil {
		return nil, fmt.Errorf("foreman/postgres: open steps: %w", err)
	}
	defer rows.Close()

	var steps []*build.Step
	for rows.Next() {
		st, scanErr := scanStep(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("foreman/postgres: scan step row: %w", scanErr)
		}
		steps = append(steps, st)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("foreman/postgres: iterate step rows: %w", err)
	}
	return steps, nil
}

// OpenLogs returns the incomplete logs of a step, ordered by id.
func (s *Store) OpenLogs(ctx context.Context, stepID int64) ([]*build.Log, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, step_id, name, complete, num_lines
		FROM foreman_logs
		WHERE step_id = $1 AND complete = FALSE
		ORDER BY id ASC`,
		stepID,
	)
	if err != nil {
		return nil, fmt.Errorf("foreman/postgres: open logs: %w", err)
	}
	defer rows.Close()

	var logs []*build.Log
	for rows.Next() {
		var l build.Log
		if scanErr := rows.Scan(&l.ID, &l.StepID, &l.Name, &l.Complete, &l.NumLines); scanErr != nil {
			return nil, fmt.Errorf("foreman/postgres: scan log row: %w", scanErr)
		}
		logs = append(logs, &l)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("foreman/postgres: iterate log rows: %w", err)
	}
	return logs, nil
}

// FinishLog marks a log complete. Already-complete logs are untouched.
func (s *Store) FinishLog(ctx context.Context, logID int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE foreman_logs SET complete = TRUE WHERE id = $1`,
		logID,
	)
	if err != nil {
		return fmt.Errorf("foreman/postgres: finish log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return foreman.ErrLogNotFound
	}
	return nil
}

// FinishStep records a step's results. Already-finished steps are
// untouched.
func (s *Store) FinishStep(ctx context.Context, stepID int64, results build.Results, hidden bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE foreman_steps
		SET results = $2, hidden = $3, complete_at = NOW()
		WHERE id = $1 AND results IS NULL`,
		stepID, int(results), hidden,
	)
	if err != nil {
		return fmt.Errorf("foreman/postgres: finish step: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.checkExists(ctx, "foreman_steps", stepID, foreman.ErrStepNotFound)
	}
	return nil
}

// FinishBuild marks a build complete with the given results.
// Already-complete builds are untouched.
func (s *Store) FinishBuild(ctx context.Context, buildID int64, results build.Results) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE foreman_builds
		SET complete = TRUE, results = $2, complete_at = NOW()
		WHERE id = $1 AND complete = FALSE`,
		buildID, int(results),
	)
	if err != nil {
		return fmt.Errorf("foreman/postgres: finish build: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.checkExists(ctx, "foreman_builds", buildID, foreman.ErrBuildNotFound)
	}
	return nil
}

// checkExists distinguishes a guarded no-op update from a missing row.
func (s *Store) checkExists(ctx context.Context, table string, id int64, notFound error) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM `+table+` WHERE id = $1)`,
		id,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("foreman/postgres: check %s row: %w", table, err)
	}
	if !exists {
		return notFound
	}
	return nil
}

// scanBuild scans a single build row.
func scanBuild(row pgx.Row) (*build.Build, error) {
	var (
		b       build.Build
		results *int32
	)
	err := row.Scan(
		&b.ID, &b.BuilderID, &b.MasterID, &b.RequestID,
		&b.Complete, &results, &b.StartedAt, &b.CompleteAt,
	)
	if err != nil {
		return nil, err
	}
	if results != nil {
		r := build.Results(*results)
		b.Results = &r
	}
	return &b, nil
}

// scanStep scans a single step row.
func scanStep(row pgx.Row) (*build.Step, error) {
	var (
		st      build.Step
		results *int32
	)
	err := row.Scan(
		&st.ID, &st.BuildID, &st.Name, &results,
		&st.Hidden, &st.StartedAt, &st.CompleteAt,
	)
	if err != nil {
		return nil, err
	}
	if results != nil {
		r := build.Results(*results)
		st.Results = &r
	}
	return &st, nil
}
