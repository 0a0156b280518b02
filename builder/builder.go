// Package builder tracks builders — named build types — and which masters
// are currently configured to run them. Its observer removes the
// associations of a deactivated master.
package builder

import "context"

// Builder is a named build type. A builder is associated with the masters
// currently able to run it.
type Builder struct {
	ID   int64
	Name string

	// MasterIDs lists the masters the builder is associated with.
	MasterIDs []int64
}

// Store defines the persistence contract for builder↔master associations.
type Store interface {
	// CreateBuilder persists a new builder and returns its id.
	CreateBuilder(ctx context.Context, name string) (int64, error)

	// GetBuilder returns the builder with the given id, or
	// foreman.ErrBuilderNotFound.
	GetBuilder(ctx context.Context, builderID int64) (*Builder, error)

	// AddBuilderMaster associates a builder with a master. Re-adding an
	// existing association is a no-op.
	AddBuilderMaster(ctx context.Context, builderID, masterID int64) error

	// RemoveBuilderMasters drops every builder association for the
	// given master and returns the number removed.
	RemoveBuilderMasters(ctx context.Context, masterID int64) (int64, error)
}
