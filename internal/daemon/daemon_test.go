package daemon

import (
	"context"
	"testing"

	"scriber/internal/testsupport"
	"scriber/internal/workflow"
)

func TestDaemonLifecycleAndLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	d, err := New(cfg, store, nil, workflow.NewManager(cfg, store, nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	if d.APIAddr() == "" {
		t.Fatal("api address empty after start")
	}
	status := d.Status(context.Background())
	if !status.Running || !status.Workers {
		t.Fatalf("status = %+v, want running", status)
	}

	// A second instance against the same lock file must be refused.
	secondStore := testsupport.MustOpenStore(t, cfg)
	second, err := New(cfg, secondStore, nil, workflow.NewManager(cfg, secondStore, nil))
	if err != nil {
		t.Fatalf("New second: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second daemon acquired the lock")
	}

	d.Stop()
	if d.Status(context.Background()).Running {
		t.Fatal("daemon still reports running after Stop")
	}
}
