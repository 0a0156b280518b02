package master

import "context"

// Store defines the persistence contract for master membership state.
type Store interface {
	// GetMaster returns the master with the given id, or
	// foreman.ErrMasterNotFound.
	GetMaster(ctx context.Context, masterID int64) (*Master, error)

	// ListMasters returns all registered masters.
	ListMasters(ctx context.Context) ([]*Master, error)

	// EnsureMaster finds the master with the given name, creating an
	// inactive record on first registration, and returns it.
	EnsureMaster(ctx context.Context, name string) (*Master, error)

	// SetMasterState atomically sets the master's active flag and
	// reports whether the flag actually changed (compare-and-set).
	// Activation always refreshes last_active, even when the master was
	// already active; last_active never moves backward. An unknown id
	// is not an error: it reports no change occurred.
	SetMasterState(ctx context.Context, masterID int64, active bool) (bool, error)
}
