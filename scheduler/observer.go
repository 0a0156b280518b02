package scheduler

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

// Observer releases the schedulers owned by a deactivated master.
type Observer struct {
	store  Store
	logger *slog.Logger
}

// NewObserver creates the scheduler-registry observer.
func NewObserver(store Store, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{store: store, logger: logger}
}

// Name implements ext.Extension.
func (o *Observer) Name() string { return "scheduler-registry" }

// OnMasterDeactivated implements ext.MasterDeactivated.
func (o *Observer) OnMasterDeactivated(ctx context.Context, masterID int64) error {
	n, err := o.store.ReleaseSchedulers(ctx, masterID)
	if err != nil {
		return fmt.Errorf("scheduler: release schedulers for master %d: %w", masterID, err)
	}
	if n > 0 {
		o.logger.Info("released schedulers owned by deactivated master",
			slog.Int64("master_id", masterID),
			slog.Int64("schedulers", n),
		)
	}
	return nil
}
