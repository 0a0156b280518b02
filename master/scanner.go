package master

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Scanner periodically compares each master's last heartbeat against an
// expiry threshold and records a stop for stale entries. A master that
// crashes without an orderly shutdown leaves no explicit stop signal;
// staleness detection is the only way the cluster notices.
//
// In forced-housekeeping mode the scanner also re-runs the cascade for
// stale masters that are already inactive, repairing cleanups a prior
// process abandoned between flipping the state and finishing the cascade.
type Scanner struct {
	registry *Registry
	logger   *slog.Logger

	expiry         time.Duration
	interval       time.Duration
	force          bool
	sweepOnStartup bool
	limiter        *rate.Limiter
	now            func() time.Time

	wg sync.WaitGroup

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithExpiry sets how long a master may go without a heartbeat before it
// is treated as expired. A master whose last_active is exactly at
// now − expiry is not expired; one instant past it, it is.
func WithExpiry(d time.Duration) ScannerOption {
	return func(s *Scanner) { s.expiry = d }
}

// WithInterval sets the scan period.
func WithInterval(d time.Duration) ScannerOption {
	return func(s *Scanner) { s.interval = d }
}

// WithForcedHousekeeping enables cascade re-execution for stale masters
// that are already inactive.
func WithForcedHousekeeping(force bool) ScannerOption {
	return func(s *Scanner) { s.force = force }
}

// WithStartupSweep makes Start run forced housekeeping once for every
// currently-inactive master before the periodic loop begins.
func WithStartupSweep(sweep bool) ScannerOption {
	return func(s *Scanner) { s.sweepOnStartup = sweep }
}

// WithDeactivationLimit bounds how many deactivations the scanner may
// trigger per second. When many masters expire at once — a network
// partition healing, say — each deactivation fans a cascade out over the
// shared store, and the limiter keeps that from stampeding it.
func WithDeactivationLimit(perSecond rate.Limit, burst int) ScannerOption {
	return func(s *Scanner) { s.limiter = rate.NewLimiter(perSecond, burst) }
}

// WithClock overrides the scanner's time source. Intended for tests that
// need deterministic expiry boundaries.
func WithClock(now func() time.Time) ScannerOption {
	return func(s *Scanner) { s.now = now }
}

// NewScanner creates a liveness scanner over the given registry.
func NewScanner(registry *Registry, logger *slog.Logger, opts ...ScannerOption) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scanner{
		registry: registry,
		logger:   logger,
		expiry:   10 * time.Minute,
		interval: 1 * time.Minute,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the startup sweep if configured, then launches the periodic
// scan goroutine. It returns after the sweep completes. A stopped
// scanner may be started again.
func (s *Scanner) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	// Fresh channel per run so a restart does not reuse one a prior
	// Stop already closed.
	s.stopCh = make(chan struct{})
	stop := s.stopCh
	s.mu.Unlock()

	if s.sweepOnStartup {
		s.startupSweep(ctx)
	}

	s.wg.Add(1)
	go s.scanLoop(stop)

	s.logger.Info("liveness scanner started",
		slog.Duration("expiry", s.expiry),
		slog.Duration("interval", s.interval),
		slog.Bool("forced_housekeeping", s.force),
	)
	return nil
}

// Stop signals the scanner to stop and waits for the scan goroutine to
// finish. An in-flight scan is allowed to complete rather than be aborted
// mid-cascade.
func (s *Scanner) Stop(_ context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stop := s.stopCh
	s.mu.Unlock()

	close(stop)
	s.wg.Wait()
	s.logger.Info("liveness scanner stopped")
	return nil
}

func (s *Scanner) scanLoop(stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Scan(context.Background())
		}
	}
}

// Scan performs one expiry pass. Exported so callers can trigger a pass
// outside the periodic schedule — process startup, tests, admin tooling.
func (s *Scanner) Scan(ctx context.Context) {
	masters, err := s.registry.List(ctx)
	if err != nil {
		s.logger.Error("liveness scan: list masters", slog.String("error", err.Error()))
		return
	}

	cutoff := s.now().Add(-s.expiry)
	for _, m := range masters {
		// Strict inequality: a heartbeat exactly at the cutoff keeps
		// the master alive.
		if !m.LastActive.Before(cutoff) {
			continue
		}

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
		}

		changed, err := s.registry.RecordStop(ctx, m.Name, m.ID)
		if err != nil {
			s.logger.Error("liveness scan: record stop",
				slog.Int64("master_id", m.ID),
				slog.String("name", m.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		if changed {
			s.logger.Info("expired stale master",
				slog.Int64("master_id", m.ID),
				slog.String("name", m.Name),
				slog.Time("last_active", m.LastActive),
			)
			continue
		}

		// Already inactive. In forced mode, re-run the cascade anyway
		// in case a prior process died between the state flip and the
		// end of its cleanup.
		if s.force {
			if err := s.registry.Housekeep(ctx, m.ID, m.Name); err != nil {
				s.logger.Error("liveness scan: housekeeping",
					slog.Int64("master_id", m.ID),
					slog.String("name", m.Name),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// startupSweep runs forced housekeeping for every currently-inactive
// master, regardless of heartbeat age.
func (s *Scanner) startupSweep(ctx context.Context) {
	masters, err := s.registry.List(ctx)
	if err != nil {
		s.logger.Error("startup sweep: list masters", slog.String("error", err.Error()))
		return
	}
	for _, m := range masters {
		if m.Active {
			continue
		}
		if err := s.registry.Housekeep(ctx, m.ID, m.Name); err != nil {
			s.logger.Error("startup sweep: housekeeping",
				slog.Int64("master_id", m.ID),
				slog.String("name", m.Name),
				slog.String("error", err.Error()),
			)
		}
	}
}
