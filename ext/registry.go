package ext

import (
	"context"
	"log/slog"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type masterActivatedEntry struct {
	name string
	hook MasterActivated
}

type masterDeactivatedEntry struct {
	name string
	hook MasterDeactivated
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
//
// Extensions are notified in registration order. The order is fixed so
// the deactivation fan-out is deterministic, but extensions must stay
// independent: no extension may depend on another having run.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	masterActivated   []masterActivatedEntry
	masterDeactivated []masterDeactivatedEntry
	shutdown          []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(MasterActivated); ok {
		r.masterActivated = append(r.masterActivated, masterActivatedEntry{name, h})
	}
	if h, ok := e.(MasterDeactivated); ok {
		r.masterDeactivated = append(r.masterDeactivated, masterDeactivatedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// EmitMasterActivated notifies all extensions that implement
// MasterActivated.
func (r *Registry) EmitMasterActivated(ctx context.Context, masterID int64, name string) {
	for _, e := range r.masterActivated {
		if err := e.hook.OnMasterActivated(ctx, masterID, name); err != nil {
			r.logHookError("OnMasterActivated", e.name, masterID, err)
		}
	}
}

// EmitMasterDeactivated notifies all extensions that implement
// MasterDeactivated, in registration order. A failing hook is logged and
// the remaining hooks still run: leaving one observer's state stale is
// less harmful than leaving builds and requests permanently unreleased.
func (r *Registry) EmitMasterDeactivated(ctx context.Context, masterID int64) {
	for _, e := range r.masterDeactivated {
		if err := e.hook.OnMasterDeactivated(ctx, masterID); err != nil {
			r.logHookError("OnMasterDeactivated", e.name, masterID, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logger.Warn("extension hook error",
				slog.String("hook", "OnShutdown"),
				slog.String("extension", e.name),
				slog.String("error", err.Error()),
			)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block the cascade.
func (r *Registry) logHookError(hook, extName string, masterID int64, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.Int64("master_id", masterID),
		slog.String("error", err.Error()),
	)
}
