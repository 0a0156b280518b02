package foreman

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("foreman: no store configured")
	ErrStoreClosed = errors.New("foreman: store closed")

	// Lifecycle errors.
	ErrNotWired = errors.New("foreman: coordinator not wired, use engine.Build")

	// Not found errors.
	ErrMasterNotFound       = errors.New("foreman: master not found")
	ErrBuildNotFound        = errors.New("foreman: build not found")
	ErrStepNotFound         = errors.New("foreman: step not found")
	ErrLogNotFound          = errors.New("foreman: log not found")
	ErrRequestNotFound      = errors.New("foreman: build request not found")
	ErrSchedulerNotFound    = errors.New("foreman: scheduler not found")
	ErrChangeSourceNotFound = errors.New("foreman: change source not found")
	ErrBuilderNotFound      = errors.New("foreman: builder not found")
	ErrAgentNotFound        = errors.New("foreman: agent not found")

	// Conflict errors.
	ErrAlreadyClaimed = errors.New("foreman: build request already claimed")
)
