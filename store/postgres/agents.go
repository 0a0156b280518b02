package postgres

import (
	"context"
	"fmt"

	"github.com/xraph/foreman"
	"github.com/xraph/foreman/agent"
)

// CreateAgent persists a new agent and returns its id.
func (s *Store) CreateAgent(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO foreman_agents (name) VALUES ($1) RETURNING id`,
		name,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("foreman/postgres: create agent: %w", err)
	}
	return id, nil
}

// GetAgent returns the agent with the given id, including its master
// connections.
func (s *Store) GetAgent(ctx context.Context, agentID int64) (*agent.Agent, error) {
	var a agent.Agent
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, registered_at FROM foreman_agents WHERE id = $1`,
		agentID,
	).Scan(&a.ID, &a.Name, &a.RegisteredAt)
	if err != nil {
		if isNoRows(err) {
			return nil, foreman.ErrAgentNotFound
		}
		return nil, fmt.Errorf("foreman/postgres: get agent: %w", err)
	}

	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(array_agg(master_id ORDER BY master_id), '{}')
		FROM foreman_connected_agents
		WHERE agent_id = $1`,
		agentID,
	).Scan(&a.ConnectedTo)
	if err != nil {
		return nil, fmt.Errorf("foreman/postgres: get agent connections: %w", err)
	}
	return &a, nil
}

// ConnectAgent records a connection between an agent and a master.
// Duplicate connections are a no-op.
func (s *Store) ConnectAgent(ctx context.Context, agentID, masterID int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO foreman_connected_agents (agent_id, master_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		agentID, masterID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return foreman.ErrAgentNotFound
		}
		return fmt.Errorf("foreman/postgres: connect agent: %w", err)
	}
	return nil
}

// DisconnectAgents drops every agent connection to the given master and
// returns the number disconnected.
func (s *Store) DisconnectAgents(ctx context.Context, masterID int64) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM foreman_connected_agents WHERE master_id = $1`,
		masterID,
	)
	if err != nil {
		return 0, fmt.Errorf("foreman/postgres: disconnect agents: %w", err)
	}
	return tag.RowsAffected(), nil
}
