package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/foreman/ext"
)

// Compile-time interface checks.
var (
	_ ext.Extension         = (*Observer)(nil)
	_ ext.MasterDeactivated = (*Observer)(nil)
)

// Observer releases agent connections held by a deactivated master.
// The release is a single bulk delete keyed by master id, so repeating
// it is a no-op.
type Observer struct {
	store  Store
	logger *slog.Logger
}

// NewObserver creates the agent-pool observer.
func NewObserver(store Store, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{store: store, logger: logger}
}

// Name implements ext.Extension.
func (o *Observer) Name() string { return "agent-pool" }

// OnMasterDeactivated implements ext.MasterDeactivated.
func (o *Observer) OnMasterDeactivated(ctx context.Context, masterID int64) error {
	n, err := o.store.DisconnectAgents(ctx, masterID)
	if err != nil {
		return fmt.Errorf("agent: disconnect agents from master %d: %w", masterID, err)
	}
	if n > 0 {
		o.logger.Info("disconnected agents from deactivated master",
			slog.Int64("master_id", masterID),
			slog.Int64("connections", n),
		)
	}
	return nil
}
