package request

import "context"

// Store defines the persistence contract for build requests.
type Store interface {
	// CreateBuildRequest persists a new unclaimed request and returns
	// its id.
	CreateBuildRequest(ctx context.Context, r *BuildRequest) (int64, error)

	// ClaimBuildRequests atomically claims the given requests for a
	// master. The claim is all-or-nothing: if any request is already
	// claimed by another master, no request is claimed and
	// foreman.ErrAlreadyClaimed is returned. Re-claiming requests the
	// master already holds is a no-op.
	ClaimBuildRequests(ctx context.Context, masterID int64, ids []int64) error

	// ClaimedBuildRequests returns all incomplete requests claimed by
	// the given master.
	ClaimedBuildRequests(ctx context.Context, masterID int64) ([]*BuildRequest, error)

	// UnclaimBuildRequests releases the claim on the given requests in
	// one bulk operation, making them eligible for claiming by any
	// master. Unknown or already-unclaimed ids are skipped.
	UnclaimBuildRequests(ctx context.Context, ids []int64) error
}
