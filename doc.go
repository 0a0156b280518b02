// Package foreman provides cluster membership and failure recovery for
// multi-master build orchestration. Several coordinator processes ("masters")
// share one persistent store and jointly schedule builds across a pool of
// worker agents; foreman decides when a master is no longer alive, flips its
// membership state exactly once, and releases everything it owned so
// surviving masters can resume the work.
//
// Foreman is designed as a library, not a service. Import it, configure a
// store, and start the coordinator.
//
// # Quick Start
//
//	c, err := foreman.New(
//	    foreman.WithStore(pgStore),
//	    foreman.WithExpiryThreshold(10*time.Minute),
//	)
//
// # Architecture
//
// Foreman follows a composable store pattern where each subsystem (master,
// build, request, scheduler, changesource, builder, agent) defines its own
// store interface. A single backend implements all of them.
//
// When a master transitions to inactive — through an explicit stop or the
// liveness scanner noticing a stale heartbeat — the deactivation cascade
// runs: resource-type observers are notified in a fixed order, open logs,
// steps, and builds owned by the master are finished with the Retry result,
// and claimed build requests are released. The cascade is idempotent, so it
// can be re-run at any time to repair a cleanup interrupted by a crash.
package foreman
