package foreman_test

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/foreman"
)

func TestDefaultConfig(t *testing.T) {
	cfg := foreman.DefaultConfig()

	if cfg.ExpiryThreshold != 10*time.Minute {
		t.Errorf("ExpiryThreshold = %v, want 10m", cfg.ExpiryThreshold)
	}
	if cfg.ScanInterval != time.Minute {
		t.Errorf("ScanInterval = %v, want 1m", cfg.ScanInterval)
	}
	if cfg.EventBuffer != 16 {
		t.Errorf("EventBuffer = %d, want 16", cfg.EventBuffer)
	}
}

func TestNew_OptionsApply(t *testing.T) {
	c, err := foreman.New(
		foreman.WithExpiryThreshold(5*time.Minute),
		foreman.WithScanInterval(30*time.Second),
		foreman.WithForceHousekeeping(true),
		foreman.WithForceHousekeepingOnStartup(true),
		foreman.WithEventBuffer(64),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cfg := c.Config()
	if cfg.ExpiryThreshold != 5*time.Minute {
		t.Errorf("ExpiryThreshold = %v, want 5m", cfg.ExpiryThreshold)
	}
	if cfg.ScanInterval != 30*time.Second {
		t.Errorf("ScanInterval = %v, want 30s", cfg.ScanInterval)
	}
	if !cfg.ForceHousekeeping {
		t.Error("ForceHousekeeping should be enabled")
	}
	if !cfg.ForceHousekeepingOnStartup {
		t.Error("ForceHousekeepingOnStartup should be enabled")
	}
	if cfg.EventBuffer != 64 {
		t.Errorf("EventBuffer = %d, want 64", cfg.EventBuffer)
	}
}

func TestCoordinator_StartWithoutWiring(t *testing.T) {
	c, err := foreman.New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := c.Start(context.Background()); err != foreman.ErrNotWired {
		t.Errorf("Start error = %v, want ErrNotWired", err)
	}
}
