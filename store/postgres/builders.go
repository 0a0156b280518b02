package postgres

import (
	"context"
	"fmt"

	"github.com/xraph/foreman"
	"github.com/xraph/foreman/builder"
)

// CreateBuilder persists a new builder and returns its id.
func (s *Store) CreateBuilder(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO foreman_builders (name) VALUES ($1) RETURNING id`,
		name,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("foreman/postgres: create builder: %w", err)
	}
	return id, nil
}

// GetBuilder returns the builder with the given id, including its
// master associations.
func (s *Store) GetBuilder(ctx context.Context, builderID int64) (*builder.Builder, error) {
	var b builder.Builder
	err := s.pool.QueryRow(ctx,
		`SELECT id, name FROM foreman_builders WHERE id = $1`,
		builderID,
	).Scan(&b.ID, &b.Name)
	if err != nil {
		if isNoRows(err) {
			return nil, foreman.ErrBuilderNotFound
		}
		return nil, fmt.Errorf("foreman/postgres: get builder: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(array_agg(master_id ORDER BY master_id), '{}')
		FROM foreman_builder_masters
		WHERE builder_id = $1`,
		builderID,
	).Scan(&b.MasterIDs)
	if err != nil {
		return nil, fmt.Errorf("foreman/postgres: get builder masters: %w", err)
	}
	return &b, nil
}

// AddBuilderMaster associates a builder with a master. Duplicate
// associations are a no-op.
func (s *Store) AddBuilderMaster(ctx context.Context, builderID, masterID int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO foreman_builder_masters (builder_id, master_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		builderID, masterID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return foreman.ErrBuilderNotFound
		}
		return fmt.Errorf("foreman/postgres: add builder master: %w", err)
	}
	return nil
}

// RemoveBuilderMasters drops every builder association for the given
// master and returns the number removed.
func (s *Store) RemoveBuilderMasters(ctx context.Context, masterID int64) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM foreman_builder_masters WHERE master_id = $1`,
		masterID,
	)
	if err != nil {
		return 0, fmt.Errorf("foreman/postgres: remove builder masters: %w", err)
	}
	return tag.RowsAffected(), nil
}
