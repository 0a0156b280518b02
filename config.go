package foreman

import "time"

// Config holds configuration for the Coordinator.
type Config struct {
	// ExpiryThreshold is how long a master may go without a heartbeat
	// before the liveness scanner marks it inactive. A master whose
	// last_active is exactly at the threshold is still considered alive.
	ExpiryThreshold time.Duration

	// ScanInterval is how often the liveness scanner checks for stale
	// masters.
	ScanInterval time.Duration

	// ForceHousekeeping makes the scanner re-run the deactivation cascade
	// for masters that are already inactive but whose heartbeat is stale.
	// This repairs cascades left incomplete by a prior crash.
	ForceHousekeeping bool

	// ForceHousekeepingOnStartup makes the scanner run the cascade once
	// for every currently-inactive master when it starts.
	ForceHousekeepingOnStartup bool

	// EventBuffer is the channel buffer size for event bus subscriptions.
	EventBuffer int

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ExpiryThreshold: 10 * time.Minute,
		ScanInterval:    1 * time.Minute,
		EventBuffer:     16,
		ShutdownTimeout: 30 * time.Second,
	}
}
