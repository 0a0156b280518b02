package master_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/foreman/build"
	"github.com/xraph/foreman/event"
	"github.com/xraph/foreman/ext"
	"github.com/xraph/foreman/master"
	"github.com/xraph/foreman/request"
	"github.com/xraph/foreman/store/memory"
)

func newTestScanner(t *testing.T, st *memory.Store, now time.Time, opts ...master.ScannerOption) (*master.Scanner, *event.Bus) {
	t.Helper()

	bus := event.NewBus()
	t.Cleanup(bus.Close)
	reg := master.NewRegistry(st, st, st, ext.NewRegistry(slog.Default()), bus, slog.Default())

	opts = append([]master.ScannerOption{
		master.WithExpiry(10 * time.Minute),
		master.WithClock(func() time.Time { return now }),
	}, opts...)
	return master.NewScanner(reg, slog.Default(), opts...), bus
}

func TestScan_ExpiresOnlyStaleMasters(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	now := time.Now().UTC()

	st.PutMaster(&master.Master{ID: 7, Name: "A", Active: true, LastActive: now.Add(-11 * time.Minute)})
	st.PutMaster(&master.Master{ID: 8, Name: "B", Active: true, LastActive: now.Add(-1 * time.Minute)})

	s, bus := newTestScanner(t, st, now)
	sub := bus.Subscribe(event.TopicDeactivated)

	s.Scan(ctx)

	msg := expectMessage(t, sub)
	if msg.MasterID != 7 || msg.Name != "A" {
		t.Errorf("deactivated message = %+v, want master 7 %q", msg, "A")
	}
	expectNoMessage(t, sub)

	a, err := st.GetMaster(ctx, 7)
	if err != nil {
		t.Fatalf("GetMaster: %v", err)
	}
	if a.Active {
		t.Error("stale master should be inactive after scan")
	}
	b, err := st.GetMaster(ctx, 8)
	if err != nil {
		t.Fatalf("GetMaster: %v", err)
	}
	if !b.Active {
		t.Error("fresh master should stay active")
	}
}

func TestScan_ExactCutoffIsNotStale(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	now := time.Now().UTC()

	// A heartbeat exactly at now − expiry keeps the master alive; one
	// nanosecond past it does not.
	st.PutMaster(&master.Master{ID: 1, Name: "edge", Active: true, LastActive: now.Add(-10 * time.Minute)})
	st.PutMaster(&master.Master{ID: 2, Name: "past", Active: true, LastActive: now.Add(-10*time.Minute - time.Nanosecond)})

	s, _ := newTestScanner(t, st, now)
	s.Scan(ctx)

	edge, err := st.GetMaster(ctx, 1)
	if err != nil {
		t.Fatalf("GetMaster: %v", err)
	}
	if !edge.Active {
		t.Error("master at the exact cutoff should stay active")
	}
	past, err := st.GetMaster(ctx, 2)
	if err != nil {
		t.Fatalf("GetMaster: %v", err)
	}
	if past.Active {
		t.Error("master past the cutoff should be inactive")
	}
}

func TestScan_ExpiryRunsFullCascade(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	now := time.Now().UTC()

	st.PutMaster(&master.Master{ID: 7, Name: "A", Active: true, LastActive: now.Add(-11 * time.Minute)})
	st.PutMaster(&master.Master{ID: 8, Name: "B", Active: true, LastActive: now})

	buildID, err := st.CreateBuild(ctx, &build.Build{BuilderID: 1, MasterID: 7})
	if err != nil {
		t.Fatalf("CreateBuild: %v", err)
	}
	stepID, err := st.CreateStep(ctx, &build.Step{BuildID: buildID, Name: "compile"})
	if err != nil {
		t.Fatalf("CreateStep: %v", err)
	}
	logID, err := st.CreateLog(ctx, &build.Log{StepID: stepID, Name: "stdio"})
	if err != nil {
		t.Fatalf("CreateLog: %v", err)
	}
	reqID, err := st.CreateBuildRequest(ctx, &request.BuildRequest{BuilderID: 1})
	if err != nil {
		t.Fatalf("CreateBuildRequest: %v", err)
	}
	if err = st.ClaimBuildRequests(ctx, 7, []int64{reqID}); err != nil {
		t.Fatalf("ClaimBuildRequests: %v", err)
	}
	otherReqID, err := st.CreateBuildRequest(ctx, &request.BuildRequest{BuilderID: 1})
	if err != nil {
		t.Fatalf("CreateBuildRequest: %v", err)
	}
	if err = st.ClaimBuildRequests(ctx, 8, []int64{otherReqID}); err != nil {
		t.Fatalf("ClaimBuildRequests: %v", err)
	}

	s, bus := newTestScanner(t, st, now)
	sub := bus.Subscribe(event.TopicDeactivated)

	s.Scan(ctx)

	// Exactly one notification for exactly one expiry.
	expectMessage(t, sub)
	expectNoMessage(t, sub)

	l, err := st.GetLog(ctx, logID)
	if err != nil {
		t.Fatalf("GetLog: %v", err)
	}
	if !l.Complete {
		t.Error("log should be finished")
	}
	step, err := st.GetStep(ctx, stepID)
	if err != nil {
		t.Fatalf("GetStep: %v", err)
	}
	if step.Results == nil || *step.Results != build.Retry {
		t.Errorf("step results = %v, want retry", step.Results)
	}
	b, err := st.GetBuild(ctx, buildID)
	if err != nil {
		t.Fatalf("GetBuild: %v", err)
	}
	if !b.Complete || *b.Results != build.Retry {
		t.Errorf("build = %+v, want complete with retry results", b)
	}
	r, err := st.GetBuildRequest(ctx, reqID)
	if err != nil {
		t.Fatalf("GetBuildRequest: %v", err)
	}
	if r.Claimed() {
		t.Error("request should be unclaimed")
	}
	// The live master's claim is untouched.
	other, err := st.GetBuildRequest(ctx, otherReqID)
	if err != nil {
		t.Fatalf("GetBuildRequest: %v", err)
	}
	if !other.Claimed() || *other.ClaimedBy != 8 {
		t.Errorf("other master's request = %+v, want still claimed by 8", other)
	}

	// A second scan finds nothing to do and publishes nothing.
	s.Scan(ctx)
	expectNoMessage(t, sub)
}

func TestScanner_Restart(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	now := time.Now().UTC()

	s, bus := newTestScanner(t, st, now, master.WithInterval(5*time.Millisecond))
	sub := bus.Subscribe(event.TopicDeactivated)

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// The second run must tick on its own loop, not the stopped one.
	st.PutMaster(&master.Master{ID: 7, Name: "A", Active: true, LastActive: now.Add(-11 * time.Minute)})
	if err := s.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	expectMessage(t, sub)
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestScan_ForcedHousekeepingRepairsAbandonedCascade(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	now := time.Now().UTC()

	// Already inactive with a stale heartbeat, but cleanup never ran:
	// the mark of a process that died mid-cascade.
	st.PutMaster(&master.Master{ID: 7, Name: "A", Active: false, LastActive: now.Add(-11 * time.Minute)})
	buildID, err := st.CreateBuild(ctx, &build.Build{BuilderID: 1, MasterID: 7})
	if err != nil {
		t.Fatalf("CreateBuild: %v", err)
	}

	// Without forced housekeeping the leftover build is untouched.
	plain, _ := newTestScanner(t, st, now)
	plain.Scan(ctx)
	b, err := st.GetBuild(ctx, buildID)
	if err != nil {
		t.Fatalf("GetBuild: %v", err)
	}
	if b.Complete {
		t.Fatal("scan without forced housekeeping should not touch builds")
	}

	forced, bus := newTestScanner(t, st, now, master.WithForcedHousekeeping(true))
	sub := bus.Subscribe(event.TopicDeactivated)
	forced.Scan(ctx)

	b, err = st.GetBuild(ctx, buildID)
	if err != nil {
		t.Fatalf("GetBuild: %v", err)
	}
	if !b.Complete || *b.Results != build.Retry {
		t.Errorf("build = %+v, want complete with retry results", b)
	}
	// Housekeeping repairs state without claiming the transition.
	expectNoMessage(t, sub)
}

func TestScanner_StartupSweep(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	now := time.Now().UTC()

	// Inactive but fresh: the periodic expiry pass would skip it, only
	// the startup sweep picks it up.
	st.PutMaster(&master.Master{ID: 3, Name: "C", Active: false, LastActive: now})
	buildID, err := st.CreateBuild(ctx, &build.Build{BuilderID: 1, MasterID: 3})
	if err != nil {
		t.Fatalf("CreateBuild: %v", err)
	}

	s, _ := newTestScanner(t, st, now,
		master.WithInterval(time.Hour),
		master.WithStartupSweep(true),
	)
	if err = s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(ctx)

	b, err := st.GetBuild(ctx, buildID)
	if err != nil {
		t.Fatalf("GetBuild: %v", err)
	}
	if !b.Complete {
		t.Error("startup sweep should finish builds of inactive masters")
	}
}
