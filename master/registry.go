package master

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/foreman/build"
	"github.com/xraph/foreman/builder"
	"github.com/xraph/foreman/event"
	"github.com/xraph/foreman/ext"
	"github.com/xraph/foreman/request"
)

// instrumentationName is the OTel instrumentation scope for the master
// subsystem.
const instrumentationName = "github.com/xraph/foreman/master"

// Registry is the in-process façade over master membership state. It owns
// the semantic operations: heartbeat registration, stop recording, forced
// housekeeping, and lookups. All state transitions go through the store's
// compare-and-set, so concurrent callers across processes agree on which
// call caused a transition.
type Registry struct {
	masters  Store
	builds   build.Store
	requests request.Store
	builders builder.Store

	exts   *ext.Registry
	bus    *event.Bus
	logger *slog.Logger

	tracer trace.Tracer

	activations     metric.Int64Counter
	deactivations   metric.Int64Counter
	cascadeDuration metric.Float64Histogram
	cascadeFailures metric.Int64Counter
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithBuilderStore sets the builder store used by ListForBuilder.
func WithBuilderStore(s builder.Store) RegistryOption {
	return func(r *Registry) { r.builders = s }
}

// WithTracerProvider sets a custom OTel TracerProvider for cascade spans.
// If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) RegistryOption {
	return func(r *Registry) { r.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets a custom OTel MeterProvider for registry metrics.
// If not set, the global otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) RegistryOption {
	return func(r *Registry) { r.initInstruments(mp.Meter(instrumentationName)) }
}

// NewRegistry creates a master registry.
func NewRegistry(
	masters Store,
	builds build.Store,
	requests request.Store,
	exts *ext.Registry,
	bus *event.Bus,
	logger *slog.Logger,
	opts ...RegistryOption,
) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		masters:  masters,
		builds:   builds,
		requests: requests,
		exts:     exts,
		bus:      bus,
		logger:   logger,
		tracer:   otel.Tracer(instrumentationName),
	}
	r.initInstruments(otel.Meter(instrumentationName))
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// initInstruments creates the registry's metric instruments. The OTel API
// guarantees noop fallbacks on error, so the errors are discarded.
func (r *Registry) initInstruments(meter metric.Meter) {
	r.activations, _ = meter.Int64Counter(
		"foreman.master.activations",
		metric.WithDescription("Total master activations (real transitions only)"),
		metric.WithUnit("{transition}"),
	)
	r.deactivations, _ = meter.Int64Counter(
		"foreman.master.deactivations",
		metric.WithDescription("Total master deactivations (real transitions only)"),
		metric.WithUnit("{transition}"),
	)
	r.cascadeDuration, _ = meter.Float64Histogram(
		"foreman.cascade.duration",
		metric.WithDescription("Duration of the deactivation cascade in seconds"),
		metric.WithUnit("s"),
	)
	r.cascadeFailures, _ = meter.Int64Counter(
		"foreman.cascade.failures",
		metric.WithDescription("Deactivation cascades that stopped on a store failure"),
		metric.WithUnit("{failure}"),
	)
}

// Ensure finds the master with the given name, creating an inactive
// record on first registration.
func (r *Registry) Ensure(ctx context.Context, name string) (*Master, error) {
	return r.masters.EnsureMaster(ctx, name)
}

// RegisterHeartbeat atomically marks the master active and refreshes its
// last_active timestamp. It returns whether the master was previously
// inactive — a real transition. On a real transition an "activated"
// notification is published. An unknown id is a harmless no-op: the
// caller cannot distinguish "never existed" from "already in the desired
// state", and idempotency wins over strict validation here.
func (r *Registry) RegisterHeartbeat(ctx context.Context, name string, masterID int64) (bool, error) {
	activated, err := r.masters.SetMasterState(ctx, masterID, true)
	if err != nil {
		return false, fmt.Errorf("master: register heartbeat for %d: %w", masterID, err)
	}
	if !activated {
		return false, nil
	}

	r.logger.Info("master activated",
		slog.Int64("master_id", masterID),
		slog.String("name", name),
	)
	r.activations.Add(ctx, 1)
	r.exts.EmitMasterActivated(ctx, masterID, name)
	r.bus.Publish(event.TopicActivated, event.Message{
		MasterID: masterID,
		Name:     name,
		Active:   true,
	})
	return true, nil
}

// RecordStop atomically marks the master inactive. On a real transition
// the full deactivation cascade runs before RecordStop returns, and a
// "deactivated" notification is published once the cascade completes.
//
// If the cascade fails partway, the master stays inactive (the transition
// is not reversed), no notification is published, and the error is
// returned; forced housekeeping on a later scan is the recovery path.
func (r *Registry) RecordStop(ctx context.Context, name string, masterID int64) (bool, error) {
	deactivated, err := r.masters.SetMasterState(ctx, masterID, false)
	if err != nil {
		return false, fmt.Errorf("master: record stop for %d: %w", masterID, err)
	}
	if !deactivated {
		return false, nil
	}

	r.logger.Info("master deactivated",
		slog.Int64("master_id", masterID),
		slog.String("name", name),
	)
	r.deactivations.Add(ctx, 1)

	if err := r.cascade(ctx, masterID, name, false); err != nil {
		return true, err
	}

	r.bus.Publish(event.TopicDeactivated, event.Message{
		MasterID: masterID,
		Name:     name,
		Active:   false,
	})
	return true, nil
}

// Housekeep re-runs the deactivation cascade for a master that is already
// inactive, without publishing a notification. The cascade is idempotent,
// so forced re-execution is safe; it is the sole durability mechanism
// against cascades interrupted by a crash.
func (r *Registry) Housekeep(ctx context.Context, masterID int64, name string) error {
	r.logger.Info("housekeeping for master",
		slog.Int64("master_id", masterID),
		slog.String("name", name),
	)
	return r.cascade(ctx, masterID, name, true)
}

// List returns all registered masters.
func (r *Registry) List(ctx context.Context) ([]*Master, error) {
	return r.masters.ListMasters(ctx)
}

// GetByID returns the master with the given id, or
// foreman.ErrMasterNotFound.
func (r *Registry) GetByID(ctx context.Context, masterID int64) (*Master, error) {
	return r.masters.GetMaster(ctx, masterID)
}

// ListForBuilder returns the masters associated with the given builder.
// It requires a builder store (see WithBuilderStore).
func (r *Registry) ListForBuilder(ctx context.Context, builderID int64) ([]*Master, error) {
	if r.builders == nil {
		return nil, fmt.Errorf("master: no builder store configured")
	}
	b, err := r.builders.GetBuilder(ctx, builderID)
	if err != nil {
		return nil, err
	}

	linked := make(map[int64]struct{}, len(b.MasterIDs))
	for _, id := range b.MasterIDs {
		linked[id] = struct{}{}
	}

	all, err := r.masters.ListMasters(ctx)
	if err != nil {
		return nil, err
	}
	var result []*Master
	for _, m := range all {
		if _, ok := linked[m.ID]; ok {
			result = append(result, m)
		}
	}
	return result, nil
}
