package foreman

import (
	"context"
	"log/slog"
	"time"
)

// Option configures a Coordinator.
type Option func(*Coordinator) error

// Storer is the minimal store interface held by the Coordinator.
// It covers lifecycle operations only. The full composite interface
// (store.Store) is used in subsystem layers that don't create import
// cycles. Implementations satisfy store.Store which embeds all
// subsystem stores.
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// scannerRunner is an internal interface for liveness scanner lifecycle.
type scannerRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// extensionEmitter is an internal interface for extension lifecycle events.
type extensionEmitter interface {
	EmitShutdown(ctx context.Context)
}

// Coordinator is the central handle for master liveness tracking and
// deactivation-cascade coordination.
//
// Create one with New() and functional options. The Coordinator holds
// references to subsystem components via internal interfaces to avoid
// import cycles. Use engine.Build to wire everything together.
type Coordinator struct {
	config     Config
	logger     *slog.Logger
	store      Storer
	extensions extensionEmitter
	scanner    scannerRunner

	// started tracks whether Start has been called.
	started bool
}

// New creates a new Coordinator with the given options.
func New(opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Logger returns the coordinator's logger.
func (c *Coordinator) Logger() *slog.Logger { return c.logger }

// Store returns the coordinator's store.
func (c *Coordinator) Store() Storer { return c.store }

// Config returns a copy of the coordinator's configuration.
func (c *Coordinator) Config() Config { return c.config }

// SetScanner sets the liveness scanner (called by the engine package).
func (c *Coordinator) SetScanner(s scannerRunner) { c.scanner = s }

// SetExtensions sets the extension emitter (called by the engine package).
func (c *Coordinator) SetExtensions(e extensionEmitter) { c.extensions = e }

// Start begins liveness scanning. It returns ErrNotWired when the
// subsystem components have not been attached via engine.Build.
func (c *Coordinator) Start(ctx context.Context) error {
	if c.scanner == nil {
		return ErrNotWired
	}
	if err := c.scanner.Start(ctx); err != nil {
		return err
	}
	c.started = true
	return nil
}

// Stop gracefully shuts down the coordinator. An in-flight cascade is
// allowed to finish rather than be aborted mid-resource.
func (c *Coordinator) Stop(ctx context.Context) error {
	if c.scanner != nil && c.started {
		if err := c.scanner.Stop(ctx); err != nil {
			c.logger.Error("scanner stop error", "error", err)
		}
	}
	if c.extensions != nil {
		c.extensions.EmitShutdown(ctx)
	}
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

// WithStore sets the persistence backend for the coordinator.
// The store must implement Storer at minimum; typically it will be a
// store.Store which embeds all subsystem store interfaces.
func WithStore(s Storer) Option {
	return func(c *Coordinator) error {
		c.store = s
		return nil
	}
}

// WithLogger sets the structured logger for the coordinator.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) error {
		c.logger = l
		return nil
	}
}

// WithExpiryThreshold sets how long a master may go without a heartbeat
// before it is marked inactive.
func WithExpiryThreshold(d time.Duration) Option {
	return func(c *Coordinator) error {
		c.config.ExpiryThreshold = d
		return nil
	}
}

// WithScanInterval sets how often the liveness scanner runs.
func WithScanInterval(d time.Duration) Option {
	return func(c *Coordinator) error {
		c.config.ScanInterval = d
		return nil
	}
}

// WithForceHousekeeping enables forced re-execution of the deactivation
// cascade for already-inactive masters with stale heartbeats.
func WithForceHousekeeping(force bool) Option {
	return func(c *Coordinator) error {
		c.config.ForceHousekeeping = force
		return nil
	}
}

// WithForceHousekeepingOnStartup makes the scanner sweep all inactive
// masters once at startup, repairing any cascade left incomplete by a
// prior crash.
func WithForceHousekeepingOnStartup(force bool) Option {
	return func(c *Coordinator) error {
		c.config.ForceHousekeepingOnStartup = force
		return nil
	}
}

// WithEventBuffer sets the channel buffer size for event subscriptions.
func WithEventBuffer(n int) Option {
	return func(c *Coordinator) error {
		c.config.EventBuffer = n
		return nil
	}
}
