package changesource

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

// Observer releases the change sources owned by a deactivated master.
type Observer struct {
	store  Store
	logger *slog.Logger
}

// NewObserver creates the change-source-registry observer.
func NewObserver(store Store, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{store: store, logger: logger}
}

// Name implements ext.Extension.
func (o *Observer) Name() string { return "changesource-registry" }

// OnMasterDeactivated implements ext.MasterDeactivated.
func (o *Observer) OnMasterDeactivated(ctx context.Context, masterID int64) error {
	n, err := o.store.ReleaseChangeSources(ctx, masterID)
	if err != nil {
		return fmt.Errorf("changesource: release sources for master %d: %w", masterID, err)
	}
	if n > 0 {
		o.logger.Info("released change sources owned by deactivated master",
			slog.Int64("master_id", masterID),
			slog.Int64("sources", n),
		)
	}
	return nil
}
