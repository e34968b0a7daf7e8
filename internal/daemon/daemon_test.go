package daemon_test

import (
	"context"
	"strings"
	"testing"

	"savesync/internal/config"
	"savesync/internal/daemon"
	"savesync/internal/logging"
	"savesync/internal/orchestrator"
	"savesync/internal/testsupport"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	// Netlink monitoring needs a live socket; daemon tests only exercise
	// lifecycle and locking.
	cfg.Features.NetworkMonitoring = false
	return cfg
}

func TestStartStopLifecycle(t *testing.T) {
	cfg := newTestConfig(t)
	d, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	status, err := d.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !status.IsInitialized {
		t.Fatalf("daemon started without initialization: %+v", status)
	}

	st := d.Status()
	if !st.Running {
		t.Fatal("status must report running")
	}
	if st.Phase != orchestrator.PhaseReady {
		t.Fatalf("unexpected phase: %s", st.Phase)
	}
	if st.QueueDBPath != cfg.QueueDatabasePath() {
		t.Fatalf("queue db path mismatch: %s", st.QueueDBPath)
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("status must report stopped")
	}
}

func TestSecondInstanceIsRejected(t *testing.T) {
	cfg := newTestConfig(t)

	first, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = first.Close() })
	if _, err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	second, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = second.Close() })

	_, err = second.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock contention error, got %v", err)
	}

	// Releasing the first instance frees the lock for the second.
	first.Stop()
	if _, err := second.Start(context.Background()); err != nil {
		t.Fatalf("restart after release: %v", err)
	}
}

func TestStartTwiceOnSameDaemonFails(t *testing.T) {
	d, err := daemon.New(newTestConfig(t), logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if _, err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := d.Start(context.Background()); err == nil {
		t.Fatal("second Start on a running daemon must fail")
	}
}
