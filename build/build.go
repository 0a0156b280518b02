// Package build defines the build, step, and log entities owned by a
// master while it executes work, together with the store contract used
// to query and finish them.
package build

import "time"

// Results is the outcome code recorded when a build or step finishes.
type Results int

// Result codes, ordered by severity.
const (
	// Success means the work completed without problems.
	Success Results = 0
	// Warnings means the work completed but produced warnings.
	Warnings Results = 1
	// Failure means the work completed and failed.
	Failure Results = 2
	// Skipped means the work was not performed.
	Skipped Results = 3
	// Exception means the work raised an internal error.
	Exception Results = 4
	// Retry means the run produced no verdict because the master
	// executing it died. Work finished with Retry is eligible for
	// automatic re-run and must not be treated as a failing change.
	Retry Results = 5
	// Cancelled means the work was stopped by an external request.
	Cancelled Results = 6
)

// String returns the lowercase name of the result code.
func (r Results) String() string {
	switch r {
	case Success:
		return "success"
	case Warnings:
		return "warnings"
	case Failure:
		return "failure"
	case Skipped:
		return "skipped"
	case Exception:
		return "exception"
	case Retry:
		return "retry"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Build is one execution of a builder, claimed and run by a single master.
// Ownership transfers implicitly when that master is deactivated: the
// deactivation cascade finishes the build with Retry so any surviving
// master can re-run the underlying request.
type Build struct {
	ID        int64
	BuilderID int64
	MasterID  int64
	RequestID int64

	Complete bool
	Results  *Results

	StartedAt  time.Time
	CompleteAt *time.Time
}

// Step is one unit of work within a build. A nil Results means the step
// is still open.
type Step struct {
	ID      int64
	BuildID int64
	Name    string

	Results *Results
	Hidden  bool

	StartedAt  time.Time
	CompleteAt *time.Time
}

// Log is an output stream attached to a step.
type Log struct {
	ID     int64
	StepID int64
	Name   string

	Complete bool
	NumLines int64
}
