package engine

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/foreman"
	"github.com/xraph/foreman/agent"
	"github.com/xraph/foreman/build"
	"github.com/xraph/foreman/builder"
	"github.com/xraph/foreman/changesource"
	"github.com/xraph/foreman/event"
	"github.com/xraph/foreman/ext"
	"github.com/xraph/foreman/master"
	"github.com/xraph/foreman/observability"
	"github.com/xraph/foreman/request"
	"github.com/xraph/foreman/scheduler"
)

// Engine wraps a Coordinator with typed subsystem access.
// Use Build() to create one from a Coordinator.
type Engine struct {
	c          *foreman.Coordinator
	extensions *ext.Registry
	registry   *master.Registry
	scanner    *master.Scanner
	eventBus   *event.Bus
	logger     *slog.Logger

	// Subsystem stores, type-asserted from the coordinator's store.
	masterStore       master.Store
	buildStore        build.Store
	requestStore      request.Store
	schedulerStore    scheduler.Store
	changeSourceStore changesource.Store
	builderStore      builder.Store
	agentStore        agent.Store

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	// Scanner tuning beyond the coordinator's config.
	scannerOpts []master.ScannerOption
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) {
		eng.extensions.Register(e)
	}
}

// WithScannerOptions appends extra scanner options, applied after the
// ones derived from the coordinator's config.
func WithScannerOptions(opts ...master.ScannerOption) Option {
	return func(eng *Engine) {
		eng.scannerOpts = append(eng.scannerOpts, opts...)
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// When set, cascade spans use this provider instead of the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) {
		eng.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the engine.
// When set, both the registry metrics and the observability extension
// use this provider instead of the global one.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) {
		eng.meterProvider = mp
	}
}

// Build creates an Engine from an existing Coordinator.
// The Coordinator's store must implement every subsystem store
// interface; store.Store does.
func Build(c *foreman.Coordinator, opts ...Option) (*Engine, error) {
	logger := c.Logger()
	store := c.Store()

	if store == nil {
		return nil, foreman.ErrNoStore
	}

	// Type-assert the store into each subsystem interface.
	ms, ok := store.(master.Store)
	if !ok {
		return nil, fmt.Errorf("foreman: store does not implement master.Store")
	}
	bs, ok := store.(build.Store)
	if !ok {
		return nil, fmt.Errorf("foreman: store does not implement build.Store")
	}
	rs, ok := store.(request.Store)
	if !ok {
		return nil, fmt.Errorf("foreman: store does not implement request.Store")
	}
	ss, ok := store.(scheduler.Store)
	if !ok {
		return nil, fmt.Errorf("foreman: store does not implement scheduler.Store")
	}
	css, ok := store.(changesource.Store)
	if !ok {
		return nil, fmt.Errorf("foreman: store does not implement changesource.Store")
	}
	bds, ok := store.(builder.Store)
	if !ok {
		return nil, fmt.Errorf("foreman: store does not implement builder.Store")
	}
	as, ok := store.(agent.Store)
	if !ok {
		return nil, fmt.Errorf("foreman: store does not implement agent.Store")
	}

	eng := &Engine{
		c:                 c,
		extensions:        ext.NewRegistry(logger),
		logger:            logger,
		masterStore:       ms,
		buildStore:        bs,
		requestStore:      rs,
		schedulerStore:    ss,
		changeSourceStore: css,
		builderStore:      bds,
		agentStore:        as,
	}

	for _, opt := range opts {
		opt(eng)
	}

	config := c.Config()

	// Register the default deactivation observers. Order matters: the
	// cascade notifies them in registration order, agent pool first.
	eng.extensions.Register(agent.NewObserver(as, logger))
	eng.extensions.Register(builder.NewObserver(bds, logger))
	eng.extensions.Register(scheduler.NewObserver(ss, logger))
	eng.extensions.Register(changesource.NewObserver(css, logger))

	// Register the observability metrics extension.
	var obsExt *observability.MetricsExtension
	if eng.meterProvider != nil {
		meter := eng.meterProvider.Meter("github.com/xraph/foreman/observability")
		obsExt = observability.NewMetricsExtensionWithMeter(meter)
	} else {
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions.Register(obsExt)

	// Create the event bus.
	busOpts := []event.BusOption{}
	if config.EventBuffer > 0 {
		busOpts = append(busOpts, event.WithBuffer(config.EventBuffer))
	}
	eng.eventBus = event.NewBus(busOpts...)

	// Create the master registry.
	regOpts := []master.RegistryOption{
		master.WithBuilderStore(bds),
	}
	if eng.tracerProvider != nil {
		regOpts = append(regOpts, master.WithTracerProvider(eng.tracerProvider))
	}
	if eng.meterProvider != nil {
		regOpts = append(regOpts, master.WithMeterProvider(eng.meterProvider))
	}
	eng.registry = master.NewRegistry(ms, bs, rs, eng.extensions, eng.eventBus, logger, regOpts...)

	// Create the liveness scanner from the coordinator's config.
	scanOpts := []master.ScannerOption{
		master.WithExpiry(config.ExpiryThreshold),
		master.WithInterval(config.ScanInterval),
		master.WithForcedHousekeeping(config.ForceHousekeeping),
		master.WithStartupSweep(config.ForceHousekeepingOnStartup),
	}
	scanOpts = append(scanOpts, eng.scannerOpts...)
	eng.scanner = master.NewScanner(eng.registry, logger, scanOpts...)

	// Wire back into the Coordinator.
	c.SetScanner(eng.scanner)
	c.SetExtensions(eng.extensions)

	return eng, nil
}

// Start begins liveness scanning.
func (eng *Engine) Start(ctx context.Context) error {
	return eng.c.Start(ctx)
}

// Stop gracefully shuts down the engine. The event bus is closed after
// the scanner stops so subscribers see every notification from the
// final scan.
func (eng *Engine) Stop(ctx context.Context) error {
	err := eng.c.Stop(ctx)
	eng.eventBus.Close()
	return err
}

// Coordinator returns the underlying Coordinator.
func (eng *Engine) Coordinator() *foreman.Coordinator { return eng.c }

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Registry returns the master registry.
func (eng *Engine) Registry() *master.Registry { return eng.registry }

// Scanner returns the liveness scanner.
func (eng *Engine) Scanner() *master.Scanner { return eng.scanner }

// EventBus returns the event bus.
func (eng *Engine) EventBus() *event.Bus { return eng.eventBus }
