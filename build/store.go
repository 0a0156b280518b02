package build

import "context"

// Store defines the persistence contract for builds, steps, and logs.
//
// The query methods exclude already-finished rows and the finish methods
// are no-ops on rows that are already finished, so a caller can repeat
// the query-then-finish sequence any number of times — repeated
// finalization is the defined steady state, not an error.
type Store interface {
	// CreateBuild persists a new incomplete build and returns its id.
	CreateBuild(ctx context.Context, b *Build) (int64, error)

	// CreateStep persists a new open step and returns its id.
	CreateStep(ctx context.Context, s *Step) (int64, error)

	// CreateLog persists a new open log and returns its id.
	CreateLog(ctx context.Context, l *Log) (int64, error)

	// IncompleteBuilds returns all builds owned by the given master
	// that have not completed.
	IncompleteBuilds(ctx context.Context, masterID int64) ([]*Build, error)

	// OpenSteps returns the steps of a build whose results are unset.
	OpenSteps(ctx context.Context, buildID int64) ([]*Step, error)

	// OpenLogs returns the logs of a step that are not complete.
	OpenLogs(ctx context.Context, stepID int64) ([]*Log, error)

	// FinishLog marks a log complete. Finishing an already-complete
	// log touches nothing.
	FinishLog(ctx context.Context, logID int64) error

	// FinishStep records the step's results and hidden flag. All of the
	// step's logs must be finished first. Finishing an already-finished
	// step touches nothing.
	FinishStep(ctx context.Context, stepID int64, results Results, hidden bool) error

	// FinishBuild marks a build complete with the given results.
	// Finishing an already-complete build touches nothing.
	FinishBuild(ctx context.Context, buildID int64, results Results) error
}
