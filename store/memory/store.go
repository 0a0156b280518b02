package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/foreman"
	"github.com/xraph/foreman/agent"
	"github.com/xraph/foreman/build"
	"github.com/xraph/foreman/builder"
	"github.com/xraph/foreman/changesource"
	"github.com/xraph/foreman/master"
	"github.com/xraph/foreman/request"
	"github.com/xraph/foreman/scheduler"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ master.Store       = (*Store)(nil)
	_ build.Store        = (*Store)(nil)
	_ request.Store      = (*Store)(nil)
	_ scheduler.Store    = (*Store)(nil)
	_ changesource.Store = (*Store)(nil)
	_ builder.Store      = (*Store)(nil)
	_ agent.Store        = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
type Store struct {
	mu sync.RWMutex

	masters       map[int64]*master.Master
	builds        map[int64]*build.Build
	steps         map[int64]*build.Step
	logs          map[int64]*build.Log
	requests      map[int64]*request.BuildRequest
	schedulers    map[int64]*scheduler.Scheduler
	changeSources map[int64]*changesource.ChangeSource
	builders      map[int64]*builder.Builder
	agents        map[int64]*agent.Agent

	// seq assigns ids across all tables; ids only need to be unique
	// within a table, so one counter is enough.
	seq int64
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		masters:       make(map[int64]*master.Master),
		builds:        make(map[int64]*build.Build),
		steps:         make(map[int64]*build.Step),
		logs:          make(map[int64]*build.Log),
		requests:      make(map[int64]*request.BuildRequest),
		schedulers:    make(map[int64]*scheduler.Scheduler),
		changeSources: make(map[int64]*changesource.ChangeSource),
		builders:      make(map[int64]*builder.Builder),
		agents:        make(map[int64]*agent.Agent),
	}
}

// next assigns the next id. Callers must hold mu.
func (m *Store) next() int64 {
	m.seq++
	return m.seq
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Master Store
// ──────────────────────────────────────────────────

// GetMaster returns the master with the given id.
func (m *Store) GetMaster(_ context.Context, masterID int64) (*master.Master, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.masters[masterID]
	if !ok {
		return nil, foreman.ErrMasterNotFound
	}
	cp := *rec
	return &cp, nil
}

// ListMasters returns all registered masters ordered by id.
func (m *Store) ListMasters(_ context.Context) ([]*master.Master, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*master.Master, 0, len(m.masters))
	for _, rec := range m.masters {
		cp := *rec
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, k int) bool { return result[i].ID < result[k].ID })
	return result, nil
}

// EnsureMaster finds the master with the given name, creating an inactive
// record on first registration.
func (m *Store) EnsureMaster(_ context.Context, name string) (*master.Master, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.masters {
		if rec.Name == name {
			cp := *rec
			return &cp, nil
		}
	}

	rec := &master.Master{
		ID:   m.next(),
		Name: name,
	}
	m.masters[rec.ID] = rec
	cp := *rec
	return &cp, nil
}

// PutMaster inserts or replaces a master record verbatim. Seeding helper
// for tests; not part of the master.Store contract.
func (m *Store) PutMaster(rec *master.Master) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *rec
	m.masters[cp.ID] = &cp
	if cp.ID > m.seq {
		m.seq = cp.ID
	}
}

// SetMasterState atomically sets the active flag and reports whether it
// changed. Activation refreshes last_active even without a transition;
// last_active never moves backward.
func (m *Store) SetMasterState(_ context.Context, masterID int64, active bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.masters[masterID]
	if !ok {
		// Unknown id: no transition occurred, and that is not an error.
		return false, nil
	}

	changed := rec.Active != active
	rec.Active = active
	if active {
		if now := time.Now().UTC(); now.After(rec.LastActive) {
			rec.LastActive = now
		}
	}
	return changed, nil
}

// ──────────────────────────────────────────────────
// Build Store
// ──────────────────────────────────────────────────

// CreateBuild persists a new incomplete build.
func (m *Store) CreateBuild(_ context.Context, b *build.Build) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *b
	cp.ID = m.next()
	cp.Complete = false
	cp.Results = nil
	if cp.StartedAt.IsZero() {
		cp.StartedAt = time.Now().UTC()
	}
	m.builds[cp.ID] = &cp
	return cp.ID, nil
}

// CreateStep persists a new open step.
func (m *Store) CreateStep(_ context.Context, s *build.Step) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.builds[s.BuildID]; !ok {
		return 0, foreman.ErrBuildNotFound
	}
	cp := *s
	cp.ID = m.next()
	cp.Results = nil
	if cp.StartedAt.IsZero() {
		cp.StartedAt = time.Now().UTC()
	}
	m.steps[cp.ID] = &cp
	return cp.ID, nil
}

// CreateLog persists a new open log.
func (m *Store) CreateLog(_ context.Context, l *build.Log) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.steps[l.StepID]; !ok {
		return 0, foreman.ErrStepNotFound
	}
	cp := *l
	cp.ID = m.next()
	cp.Complete = false
	m.logs[cp.ID] = &cp
	return cp.ID, nil
}

// IncompleteBuilds returns the incomplete builds owned by a master,
// ordered by id.
func (m *Store) IncompleteBuilds(_ context.Context, masterID int64) ([]*build.Build, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*build.Build
	for _, b := range m.builds {
		if b.Complete || b.MasterID != masterID {
			continue
		}
		cp := *b
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, k int) bool { return result[i].ID < result[k].ID })
	return result, nil
}

// OpenSteps returns the steps of a build whose results are unset,
// ordered by id.
func (m *Store) OpenSteps(_ context.Context, buildID int64) ([]*build.Step, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*build.Step
	for _, s := range m.steps {
		if s.BuildID != buildID || s.Results != nil {
			continue
		}
		cp := *s
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, k int) bool { return result[i].ID < result[k].ID })
	return result, nil
}

// OpenLogs returns the incomplete logs of a step, ordered by id.
func (m *Store) OpenLogs(_ context.Context, stepID int64) ([]*build.Log, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*build.Log
	for _, l := range m.logs {
		if l.StepID != stepID || l.Complete {
			continue
		}
		cp := *l
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, k int) bool { return result[i].ID < result[k].ID })
	return result, nil
}

// FinishLog marks a log complete. Already-complete logs are untouched.
func (m *Store) FinishLog(_ context.Context, logID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.logs[logID]
	if !ok {
		return foreman.ErrLogNotFound
	}
	l.Complete = true
	return nil
}

// FinishStep records a step's results. Already-finished steps are
// untouched.
func (m *Store) FinishStep(_ context.Context, stepID int64, results build.Results, hidden bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.steps[stepID]
	if !ok {
		return foreman.ErrStepNotFound
	}
	if s.Results != nil {
		return nil
	}
	r := results
	s.Results = &r
	s.Hidden = hidden
	now := time.Now().UTC()
	s.CompleteAt = &now
	return nil
}

// FinishBuild marks a build complete with the given results.
// Already-complete builds are untouched.
func (m *Store) FinishBuild(_ context.Context, buildID int64, results build.Results) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.builds[buildID]
	if !ok {
		return foreman.ErrBuildNotFound
	}
	if b.Complete {
		return nil
	}
	r := results
	b.Complete = true
	b.Results = &r
	now := time.Now().UTC()
	b.CompleteAt = &now
	return nil
}

// GetBuild returns the build with the given id. Inspection helper for
// tests; not part of the build.Store contract.
func (m *Store) GetBuild(_ context.Context, buildID int64) (*build.Build, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.builds[buildID]
	if !ok {
		return nil, foreman.ErrBuildNotFound
	}
	cp := *b
	return &cp, nil
}

// GetStep returns the step with the given id. Inspection helper for
// tests.
func (m *Store) GetStep(_ context.Context, stepID int64) (*build.Step, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.steps[stepID]
	if !ok {
		return nil, foreman.ErrStepNotFound
	}
	cp := *s
	return &cp, nil
}

// GetLog returns the log with the given id. Inspection helper for tests.
func (m *Store) GetLog(_ context.Context, logID int64) (*build.Log, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.logs[logID]
	if !ok {
		return nil, foreman.ErrLogNotFound
	}
	cp := *l
	return &cp, nil
}

// ──────────────────────────────────────────────────
// Request Store
// ──────────────────────────────────────────────────

// CreateBuildRequest persists a new unclaimed request.
func (m *Store) CreateBuildRequest(_ context.Context, r *request.BuildRequest) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *r
	cp.ID = m.next()
	cp.ClaimedBy = nil
	cp.ClaimedAt = nil
	cp.Complete = false
	if cp.SubmittedAt.IsZero() {
		cp.SubmittedAt = time.Now().UTC()
	}
	m.requests[cp.ID] = &cp
	return cp.ID, nil
}

// ClaimBuildRequests atomically claims the given requests for a master,
// all-or-nothing.
func (m *Store) ClaimBuildRequests(_ context.Context, masterID int64, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate every id before touching anything.
	for _, id := range ids {
		r, ok := m.requests[id]
		if !ok {
			return foreman.ErrRequestNotFound
		}
		if r.ClaimedBy != nil && *r.ClaimedBy != masterID {
			return foreman.ErrAlreadyClaimed
		}
	}

	now := time.Now().UTC()
	for _, id := range ids {
		r := m.requests[id]
		mid := masterID
		r.ClaimedBy = &mid
		if r.ClaimedAt == nil {
			at := now
			r.ClaimedAt = &at
		}
	}
	return nil
}

// ClaimedBuildRequests returns the incomplete requests claimed by a
// master, ordered by id.
func (m *Store) ClaimedBuildRequests(_ context.Context, masterID int64) ([]*request.BuildRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*request.BuildRequest
	for _, r := range m.requests {
		if r.Complete || r.ClaimedBy == nil || *r.ClaimedBy != masterID {
			continue
		}
		cp := *r
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, k int) bool { return result[i].ID < result[k].ID })
	return result, nil
}

// UnclaimBuildRequests releases the claim on the given requests.
// Unknown or already-unclaimed ids are skipped.
func (m *Store) UnclaimBuildRequests(_ context.Context, ids []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		r, ok := m.requests[id]
		if !ok {
			continue
		}
		r.ClaimedBy = nil
		r.ClaimedAt = nil
	}
	return nil
}

// GetBuildRequest returns the request with the given id. Inspection
// helper for tests.
func (m *Store) GetBuildRequest(_ context.Context, requestID int64) (*request.BuildRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.requests[requestID]
	if !ok {
		return nil, foreman.ErrRequestNotFound
	}
	cp := *r
	return &cp, nil
}

// ──────────────────────────────────────────────────
// Scheduler Store
// ──────────────────────────────────────────────────

// CreateScheduler persists a new unowned scheduler.
func (m *Store) CreateScheduler(_ context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &scheduler.Scheduler{ID: m.next(), Name: name}
	m.schedulers[s.ID] = s
	return s.ID, nil
}

// ListSchedulers returns all schedulers ordered by id.
func (m *Store) ListSchedulers(_ context.Context) ([]*scheduler.Scheduler, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*scheduler.Scheduler, 0, len(m.schedulers))
	for _, s := range m.schedulers {
		cp := *s
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, k int) bool { return result[i].ID < result[k].ID })
	return result, nil
}

// ClaimScheduler atomically makes the master the scheduler's owner.
func (m *Store) ClaimScheduler(_ context.Context, schedulerID, masterID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.schedulers[schedulerID]
	if !ok {
		return false, foreman.ErrSchedulerNotFound
	}
	if s.MasterID != nil && *s.MasterID != masterID {
		return false, nil
	}
	mid := masterID
	s.MasterID = &mid
	return true, nil
}

// ReleaseSchedulers clears ownership of every scheduler owned by the
// given master.
func (m *Store) ReleaseSchedulers(_ context.Context, masterID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, s := range m.schedulers {
		if s.MasterID != nil && *s.MasterID == masterID {
			s.MasterID = nil
			count++
		}
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// ChangeSource Store
// ──────────────────────────────────────────────────

// CreateChangeSource persists a new unowned change source.
func (m *Store) CreateChangeSource(_ context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cs := &changesource.ChangeSource{ID: m.next(), Name: name}
	m.changeSources[cs.ID] = cs
	return cs.ID, nil
}

// ListChangeSources returns all change sources ordered by id.
func (m *Store) ListChangeSources(_ context.Context) ([]*changesource.ChangeSource, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*changesource.ChangeSource, 0, len(m.changeSources))
	for _, cs := range m.changeSources {
		cp := *cs
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, k int) bool { return result[i].ID < result[k].ID })
	return result, nil
}

// ClaimChangeSource atomically makes the master the source's owner.
func (m *Store) ClaimChangeSource(_ context.Context, changeSourceID, masterID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cs, ok := m.changeSources[changeSourceID]
	if !ok {
		return false, foreman.ErrChangeSourceNotFound
	}
	if cs.MasterID != nil && *cs.MasterID != masterID {
		return false, nil
	}
	mid := masterID
	cs.MasterID = &mid
	return true, nil
}

// ReleaseChangeSources clears ownership of every change source owned by
// the given master.
func (m *Store) ReleaseChangeSources(_ context.Context, masterID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, cs := range m.changeSources {
		if cs.MasterID != nil && *cs.MasterID == masterID {
			cs.MasterID = nil
			count++
		}
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Builder Store
// ──────────────────────────────────────────────────

// CreateBuilder persists a new builder.
func (m *Store) CreateBuilder(_ context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := &builder.Builder{ID: m.next(), Name: name}
	m.builders[b.ID] = b
	return b.ID, nil
}

// GetBuilder returns the builder with the given id.
func (m *Store) GetBuilder(_ context.Context, builderID int64) (*builder.Builder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.builders[builderID]
	if !ok {
		return nil, foreman.ErrBuilderNotFound
	}
	cp := *b
	cp.MasterIDs = append([]int64(nil), b.MasterIDs...)
	return &cp, nil
}

// AddBuilderMaster associates a builder with a master.
func (m *Store) AddBuilderMaster(_ context.Context, builderID, masterID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.builders[builderID]
	if !ok {
		return foreman.ErrBuilderNotFound
	}
	for _, id := range b.MasterIDs {
		if id == masterID {
			return nil
		}
	}
	b.MasterIDs = append(b.MasterIDs, masterID)
	return nil
}

// RemoveBuilderMasters drops every builder association for the given
// master.
func (m *Store) RemoveBuilderMasters(_ context.Context, masterID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, b := range m.builders {
		kept := b.MasterIDs[:0]
		for _, id := range b.MasterIDs {
			if id == masterID {
				count++
				continue
			}
			kept = append(kept, id)
		}
		b.MasterIDs = kept
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Agent Store
// ──────────────────────────────────────────────────

// CreateAgent persists a new agent.
func (m *Store) CreateAgent(_ context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := &agent.Agent{ID: m.next(), Name: name, RegisteredAt: time.Now().UTC()}
	m.agents[a.ID] = a
	return a.ID, nil
}

// GetAgent returns the agent with the given id.
func (m *Store) GetAgent(_ context.Context, agentID int64) (*agent.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.agents[agentID]
	if !ok {
		return nil, foreman.ErrAgentNotFound
	}
	cp := *a
	cp.ConnectedTo = append([]int64(nil), a.ConnectedTo...)
	return &cp, nil
}

// ConnectAgent records a connection between an agent and a master.
func (m *Store) ConnectAgent(_ context.Context, agentID, masterID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.agents[agentID]
	if !ok {
		return foreman.ErrAgentNotFound
	}
	for _, id := range a.ConnectedTo {
		if id == masterID {
			return nil
		}
	}
	a.ConnectedTo = append(a.ConnectedTo, masterID)
	return nil
}

// DisconnectAgents drops every agent connection to the given master.
func (m *Store) DisconnectAgents(_ context.Context, masterID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, a := range m.agents {
		kept := a.ConnectedTo[:0]
		for _, id := range a.ConnectedTo {
			if id == masterID {
				count++
				continue
			}
			kept = append(kept, id)
		}
		a.ConnectedTo = kept
	}
	return count, nil
}
