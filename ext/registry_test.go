package ext_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/xraph/foreman/ext"
)

// orderedObserver records its name into a shared slice when notified.
type orderedObserver struct {
	name  string
	calls *[]string
	err   error
}

func (o *orderedObserver) Name() string { return o.name }

func (o *orderedObserver) OnMasterDeactivated(context.Context, int64) error {
	*o.calls = append(*o.calls, o.name)
	return o.err
}

// activationObserver implements only the activation hook.
type activationObserver struct {
	gotID   int64
	gotName string
}

func (o *activationObserver) Name() string { return "activation-only" }

func (o *activationObserver) OnMasterActivated(_ context.Context, masterID int64, name string) error {
	o.gotID = masterID
	o.gotName = name
	return nil
}

func TestRegistry_DeactivationRunsInRegistrationOrder(t *testing.T) {
	reg := ext.NewRegistry(slog.Default())

	var calls []string
	for _, name := range []string{"agents", "builders", "schedulers"} {
		reg.Register(&orderedObserver{name: name, calls: &calls})
	}

	reg.EmitMasterDeactivated(context.Background(), 7)

	want := []string{"agents", "builders", "schedulers"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
	}
}

func TestRegistry_FailingHookDoesNotStopFanOut(t *testing.T) {
	reg := ext.NewRegistry(slog.Default())

	var calls []string
	reg.Register(&orderedObserver{name: "first", calls: &calls, err: errors.New("boom")})
	reg.Register(&orderedObserver{name: "second", calls: &calls})

	reg.EmitMasterDeactivated(context.Background(), 7)

	if len(calls) != 2 || calls[1] != "second" {
		t.Fatalf("calls = %v, want both observers notified", calls)
	}
}

func TestRegistry_HooksAreTypeFiltered(t *testing.T) {
	reg := ext.NewRegistry(slog.Default())

	act := &activationObserver{}
	var calls []string
	reg.Register(act)
	reg.Register(&orderedObserver{name: "deactivation-only", calls: &calls})

	reg.EmitMasterActivated(context.Background(), 7, "A")
	if act.gotID != 7 || act.gotName != "A" {
		t.Errorf("activation hook got (%d, %q), want (7, %q)", act.gotID, act.gotName, "A")
	}
	if len(calls) != 0 {
		t.Errorf("deactivation hooks ran on activation: %v", calls)
	}

	reg.EmitMasterDeactivated(context.Background(), 7)
	if len(calls) != 1 {
		t.Errorf("deactivation calls = %v, want one", calls)
	}
	if act.gotID != 7 {
		t.Error("activation observer state should be untouched by deactivation")
	}
}
