package agent_test

import (
	"context"
	"testing"

	"github.com/xraph/foreman/agent"
	"github.com/xraph/foreman/store/memory"
)

func TestObserver_ReleasesOnlyTheDeactivatedMaster(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	obs := agent.NewObserver(st, nil)

	shared, err := st.CreateAgent(ctx, "shared")
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	for _, masterID := range []int64{1, 2} {
		if err = st.ConnectAgent(ctx, shared, masterID); err != nil {
			t.Fatalf("ConnectAgent: %v", err)
		}
	}

	if err = obs.OnMasterDeactivated(ctx, 1); err != nil {
		t.Fatalf("OnMasterDeactivated: %v", err)
	}

	a, err := st.GetAgent(ctx, shared)
	if err != nil {
		t.Fatalf("GetAgent: %v", err)
	}
	if len(a.ConnectedTo) != 1 || a.ConnectedTo[0] != 2 {
		t.Errorf("ConnectedTo = %v, want [2]", a.ConnectedTo)
	}

	// Repeating the release is a no-op.
	if err = obs.OnMasterDeactivated(ctx, 1); err != nil {
		t.Fatalf("repeated OnMasterDeactivated: %v", err)
	}
}
