package master_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/xraph/foreman/build"
	"github.com/xraph/foreman/event"
	"github.com/xraph/foreman/ext"
	"github.com/xraph/foreman/master"
	"github.com/xraph/foreman/store/memory"
)

// recordingBuildStore wraps a build.Store and records each finish
// operation in call order.
type recordingBuildStore struct {
	build.Store

	mu              sync.Mutex
	ops             []string
	failFinishBuild bool
}

func (r *recordingBuildStore) record(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *recordingBuildStore) Ops() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

func (r *recordingBuildStore) FinishLog(ctx context.Context, logID int64) error {
	r.record(fmt.Sprintf("log:%d", logID))
	return r.Store.FinishLog(ctx, logID)
}

func (r *recordingBuildStore) FinishStep(ctx context.Context, stepID int64, results build.Results, hidden bool) error {
	r.record(fmt.Sprintf("step:%d:%s", stepID, results))
	return r.Store.FinishStep(ctx, stepID, results, hidden)
}

func (r *recordingBuildStore) FinishBuild(ctx context.Context, buildID int64, results build.Results) error {
	if r.failFinishBuild {
		return errors.New("store unavailable")
	}
	r.record(fmt.Sprintf("build:%d:%s", buildID, results))
	return r.Store.FinishBuild(ctx, buildID, results)
}

// failingObserver always errors on deactivation.
type failingObserver struct{}

func (failingObserver) Name() string { return "failing-observer" }
func (failingObserver) OnMasterDeactivated(context.Context, int64) error {
	return errors.New("observer broke")
}

func TestCascade_FinishesLogsThenStepsThenBuild(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	rec := &recordingBuildStore{Store: st}

	bus := event.NewBus()
	defer bus.Close()
	reg := master.NewRegistry(st, rec, st, ext.NewRegistry(slog.Default()), bus, slog.Default())

	m, err := reg.Ensure(ctx, "master-a")
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if _, err = reg.RegisterHeartbeat(ctx, m.Name, m.ID); err != nil {
		t.Fatalf("RegisterHeartbeat: %v", err)
	}

	buildID, err := st.CreateBuild(ctx, &build.Build{BuilderID: 1, MasterID: m.ID})
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

	if _, err = reg.RecordStop(ctx, m.Name, m.ID); err != nil {
		t.Fatalf("RecordStop: %v", err)
	}

	want := []string{
		fmt.Sprintf("log:%d", logID),
		fmt.Sprintf("step:%d:retry", stepID),
		fmt.Sprintf("build:%d:retry", buildID),
	}
	got := rec.Ops()
	if len(got) != len(want) {
		t.Fatalf("finish ops = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("finish ops = %v, want %v", got, want)
		}
	}
}

func TestCascade_SecondRunTouchesNothing(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	rec := &recordingBuildStore{Store: st}

	bus := event.NewBus()
	defer bus.Close()
	reg := master.NewRegistry(st, rec, st, ext.NewRegistry(slog.Default()), bus, slog.Default())

	m, err := reg.Ensure(ctx, "master-a")
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if _, err = reg.RegisterHeartbeat(ctx, m.Name, m.ID); err != nil {
		t.Fatalf("RegisterHeartbeat: %v", err)
	}
	if _, err = st.CreateBuild(ctx, &build.Build{BuilderID: 1, MasterID: m.ID}); err != nil {
		t.Fatalf("CreateBuild: %v", err)
	}

	if _, err = reg.RecordStop(ctx, m.Name, m.ID); err != nil {
		t.Fatalf("RecordStop: %v", err)
	}
	firstRun := len(rec.Ops())
	if firstRun == 0 {
		t.Fatal("cascade should have finished the build")
	}

	// Forced housekeeping against an already-clean master mutates nothing.
	if err = reg.Housekeep(ctx, m.ID, m.Name); err != nil {
		t.Fatalf("Housekeep: %v", err)
	}
	if n := len(rec.Ops()); n != firstRun {
		t.Errorf("second cascade performed %d extra finish ops", n-firstRun)
	}
}

func TestCascade_ObserverFailureDoesNotStopCleanup(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	exts := ext.NewRegistry(slog.Default())
	exts.Register(failingObserver{})

	bus := event.NewBus()
	defer bus.Close()
	sub := bus.Subscribe(event.TopicDeactivated)
	reg := master.NewRegistry(st, st, st, exts, bus, slog.Default())

	m, err := reg.Ensure(ctx, "master-a")
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if _, err = reg.RegisterHeartbeat(ctx, m.Name, m.ID); err != nil {
		t.Fatalf("RegisterHeartbeat: %v", err)
	}
	buildID, err := st.CreateBuild(ctx, &build.Build{BuilderID: 1, MasterID: m.ID})
	if err != nil {
		t.Fatalf("CreateBuild: %v", err)
	}

	changed, err := reg.RecordStop(ctx, m.Name, m.ID)
	if err != nil {
		t.Fatalf("RecordStop: %v", err)
	}
	if !changed {
		t.Fatal("stop should report a transition")
	}

	// The observer error was swallowed: the build still got finished and
	// the notification still fired.
	b, err := st.GetBuild(ctx, buildID)
	if err != nil {
		t.Fatalf("GetBuild: %v", err)
	}
	if !b.Complete {
		t.Error("build should be finished despite observer failure")
	}
	expectMessage(t, sub)
}

func TestCascade_StoreFailureKeepsMasterInactive(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	rec := &recordingBuildStore{Store: st, failFinishBuild: true}

	bus := event.NewBus()
	defer bus.Close()
	sub := bus.Subscribe(event.TopicDeactivated)
	reg := master.NewRegistry(st, rec, st, ext.NewRegistry(slog.Default()), bus, slog.Default())

	m, err := reg.Ensure(ctx, "master-a")
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if _, err = reg.RegisterHeartbeat(ctx, m.Name, m.ID); err != nil {
		t.Fatalf("RegisterHeartbeat: %v", err)
	}
	buildID, err := st.CreateBuild(ctx, &build.Build{BuilderID: 1, MasterID: m.ID})
	if err != nil {
		t.Fatalf("CreateBuild: %v", err)
	}

	changed, err := reg.RecordStop(ctx, m.Name, m.ID)
	if !changed {
		t.Fatal("the state transition itself succeeded and must be reported")
	}
	if err == nil {
		t.Fatal("RecordStop should surface the cascade failure")
	}
	// No notification on a failed cascade.
	expectNoMessage(t, sub)

	// The master stays inactive; the transition is not reversed.
	got, getErr := reg.GetByID(ctx, m.ID)
	if getErr != nil {
		t.Fatalf("GetByID: %v", getErr)
	}
	if got.Active {
		t.Error("master should remain inactive after a failed cascade")
	}

	// Forced housekeeping is the recovery path once the store is healthy.
	rec.failFinishBuild = false
	if err = reg.Housekeep(ctx, m.ID, m.Name); err != nil {
		t.Fatalf("Housekeep: %v", err)
	}
	b, err := st.GetBuild(ctx, buildID)
	if err != nil {
		t.Fatalf("GetBuild: %v", err)
	}
	if !b.Complete || *b.Results != build.Retry {
		t.Errorf("build after recovery = %+v, want complete with retry results", b)
	}
}
