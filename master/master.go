// Package master implements the master liveness tracker and
// deactivation-cascade coordinator. A master is one coordinator process
// in the cluster; it owns builds and claimed build requests while active.
// The Registry flips a master's membership state exactly once per real
// transition, the Scanner notices masters whose heartbeats have gone
// stale, and the deactivation cascade releases everything a dead master
// owned so surviving masters can resume the work.
package master

import "time"

// Master is one coordinator process registered in the cluster.
// ID and Name are immutable; Active and LastActive change only through
// the store's atomic state transition.
type Master struct {
	ID   int64
	Name string

	// Active reports cluster membership. It changes only through an
	// atomic compare-and-set in the store; callers must never assume
	// their call caused the change.
	Active bool

	// LastActive is the time of the master's most recent heartbeat.
	// It never moves backward while the master is active.
	LastActive time.Time
}
