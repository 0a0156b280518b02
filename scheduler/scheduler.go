// Package scheduler tracks scheduler ownership. Each scheduler is owned
// by at most one master at a time; its observer releases the schedulers a
// deactivated master owned so surviving masters can claim them.
package scheduler

import "context"

// Scheduler is a named scheduling policy instance. MasterID is the id of
// the master currently running it, or nil if unowned.
type Scheduler struct {
	ID   int64
	Name string

	MasterID *int64
}

// Store defines the persistence contract for scheduler ownership.
type Store interface {
	// CreateScheduler persists a new unowned scheduler and returns
	// its id.
	CreateScheduler(ctx context.Context, name string) (int64, error)

	// ListSchedulers returns all schedulers.
	ListSchedulers(ctx context.Context) ([]*Scheduler, error)

	// ClaimScheduler atomically makes the master the scheduler's owner
	// and reports whether the claim succeeded. Claiming a scheduler the
	// master already owns succeeds; claiming one owned by another
	// master does not.
	ClaimScheduler(ctx context.Context, schedulerID, masterID int64) (bool, error)

	// ReleaseSchedulers clears ownership of every scheduler owned by
	// the given master and returns the number released.
	ReleaseSchedulers(ctx context.Context, masterID int64) (int64, error)
}
