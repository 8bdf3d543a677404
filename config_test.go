package ttlog

import (
	"os"
	"testing"
	"time"
)

func TestNewConfigDefaults(t *testing.T) {
	c := NewConfig("svc", 1024)
	if c.Capacity != 1024 || c.ServiceName != "svc" {
		t.Fatalf("unexpected required fields: %+v", c)
	}
	if !c.InstallPanicHook || !c.InstallSignalHooks {
		t.Fatal("hooks should default to installed")
	}
	if c.PeriodicInterval != DefaultPeriodicInterval {
		t.Fatalf("periodic interval = %v, want %v", c.PeriodicInterval, DefaultPeriodicInterval)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	if err := (Config{}).Validate(); err == nil {
		t.Fatal("expected error for empty config")
	}
	if err := (Config{Capacity: 1}).Validate(); err == nil {
		t.Fatal("expected error for missing service name")
	}
	if err := (Config{ServiceName: "svc"}).Validate(); err == nil {
		t.Fatal("expected error for zero capacity")
	}
}

func TestApplyEnvOverridesFields(t *testing.T) {
	t.Setenv(EnvSnapshotDir, "/tmp/ttlog-test-dir")
	t.Setenv(EnvFlushIntervalS, "5")
	t.Setenv(EnvLevel, "warn")

	c := NewConfig("svc", 8).ApplyEnv()
	if c.StoragePath != "/tmp/ttlog-test-dir" {
		t.Fatalf("storage path = %q", c.StoragePath)
	}
	if c.PeriodicInterval != 5*time.Second {
		t.Fatalf("periodic interval = %v", c.PeriodicInterval)
	}
	if c.MinLevel != Warn {
		t.Fatalf("min level = %v", c.MinLevel)
	}
}

func TestApplyEnvIgnoresUnsetVars(t *testing.T) {
	os.Unsetenv(EnvSnapshotDir)
	os.Unsetenv(EnvFlushIntervalS)
	os.Unsetenv(EnvLevel)

	base := NewConfig("svc", 8)
	c := base.ApplyEnv()
	if c != base {
		t.Fatalf("config changed with no env vars set: %+v vs %+v", c, base)
	}
}
