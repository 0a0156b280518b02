// Package request defines build requests — units of schedulable work that
// masters claim before executing. Requests claimed by a deactivated master
// are released by the cascade so surviving masters can claim them.
package request

import "time"

// BuildRequest is a unit of schedulable work. A request is claimed by at
// most one master at a time; unclaimed incomplete requests are eligible
// for claiming by any master.
type BuildRequest struct {
	ID        int64
	BuilderID int64

	// ClaimedBy is the id of the master currently responsible for the
	// request, or nil if the request is unclaimed.
	ClaimedBy *int64
	ClaimedAt *time.Time

	Complete    bool
	SubmittedAt time.Time
}

// Claimed reports whether the request is currently claimed by a master.
func (r *BuildRequest) Claimed() bool { return r.ClaimedBy != nil }
