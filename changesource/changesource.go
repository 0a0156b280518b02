// Package changesource tracks change-source ownership. A change source
// feeds canonical change records into the cluster and is polled by at
// most one master at a time; its observer releases the sources a
// deactivated master owned.
package changesource

import "context"

// ChangeSource is a named source of version-control changes. MasterID is
// the id of the master currently polling it, or nil if unowned.
type ChangeSource struct {
	ID   int64
	Name string

	MasterID *int64
}

// Store defines the persistence contract for change-source ownership.
type Store interface {
	// CreateChangeSource persists a new unowned change source and
	// returns its id.
	CreateChangeSource(ctx context.Context, name string) (int64, error)

	// ListChangeSources returns all change sources.
	ListChangeSources(ctx context.Context) ([]*ChangeSource, error)

	// ClaimChangeSource atomically makes the master the source's owner
	// and reports whether the claim succeeded. Claiming a source the
	// master already owns succeeds; claiming one owned by another
	// master does not.
	ClaimChangeSource(ctx context.Context, changeSourceID, masterID int64) (bool, error)

	// ReleaseChangeSources clears ownership of every change source
	// owned by the given master and returns the number released.
	ReleaseChangeSources(ctx context.Context, masterID int64) (int64, error)
}
