// Package agent tracks worker agents and their connections to masters.
// Its observer drops the connections of a deactivated master so the
// affected agents can attach to surviving masters.
package agent

import (
	"context"
	"time"
)

// Agent is a worker process in the pool. An agent may be connected to
// several masters at once.
type Agent struct {
	ID   int64
	Name string

	// ConnectedTo lists the ids of the masters the agent is currently
	// attached to.
	ConnectedTo []int64

	RegisteredAt time.Time
}

// Store defines the persistence contract for agent connections.
type Store interface {
	// CreateAgent persists a new agent and returns its id.
	CreateAgent(ctx context.Context, name string) (int64, error)

	// GetAgent returns the agent with the given id, or
	// foreman.ErrAgentNotFound.
	GetAgent(ctx context.Context, agentID int64) (*Agent, error)

	// ConnectAgent records a connection between an agent and a master.
	// Re-connecting an already-connected pair is a no-op.
	ConnectAgent(ctx context.Context, agentID, masterID int64) error

	// DisconnectAgents drops every agent connection to the given master
	// and returns the number of connections removed. Unknown master ids
	// remove nothing.
	DisconnectAgents(ctx context.Context, masterID int64) (int64, error)
}
