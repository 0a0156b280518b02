// Package ext defines the extension system for Foreman.
// Extensions are notified of membership lifecycle events (master
// activated, master deactivated, shutdown) and can react to them —
// resource cleanup, metrics, auditing, etc.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about. The MasterDeactivated hook is the
// resource-type observer capability: any collaborator that holds state
// keyed by master id implements it to release that state when the master
// dies.
package ext

import "context"

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// MasterActivated is called after a master transitions to active.
type MasterActivated interface {
	OnMasterActivated(ctx context.Context, masterID int64, name string) error
}

// MasterDeactivated is called during the deactivation cascade, before any
// builds or requests owned by the master are released.
//
// Implementations must be idempotent (safe to call multiple times for the
// same id), must not assume the master still exists in the registry, and
// must leave their own state valid and re-processable if they fail partway.
type MasterDeactivated interface {
	OnMasterDeactivated(ctx context.Context, masterID int64) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
