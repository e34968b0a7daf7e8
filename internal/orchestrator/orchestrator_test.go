package orchestrator_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"savesync/internal/clock"
	"savesync/internal/netmon"
	"savesync/internal/orchestrator"
	"savesync/internal/provider"
	"savesync/internal/testsupport"
)

func newTestOrchestrator(t *testing.T, opts orchestrator.Options) *orchestrator.Orchestrator {
	t.Helper()
	if opts.Config == nil {
		opts.Config = testsupport.NewConfig(t)
	}
	if opts.Passive == nil {
		opts.Passive = netmon.NewManualSource()
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewManual(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	}
	opts.SkipPreflight = true
	o := orchestrator.New(opts)
	t.Cleanup(func() { _ = o.Cleanup() })
	return o
}

func TestInitializeBuildsAllServices(t *testing.T) {
	var phases []orchestrator.Phase
	var mu sync.Mutex
	o := newTestOrchestrator(t, orchestrator.Options{
		Callbacks: orchestrator.Callbacks{
			OnPhase: func(phase orchestrator.Phase) {
				mu.Lock()
				phases = append(phases, phase)
				mu.Unlock()
			},
		},
	})

	status, err := o.Initialize(context.Background())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !status.IsInitialized || !status.IsConfigured || !status.IsConnected {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.Provider != "none" {
		t.Fatalf("expected the in-memory provider, got %s", status.Provider)
	}
	if !o.IsReady() {
		t.Fatal("orchestrator should be ready")
	}

	services := o.GetServices()
	if services == nil {
		t.Fatal("services missing after initialization")
	}
	if services.Provider == nil || services.Monitor == nil || services.Queue == nil || services.Store == nil || services.Codec == nil {
		t.Fatalf("incomplete services: %+v", services)
	}

	want := []orchestrator.Phase{
		orchestrator.PhaseLoadingConfig,
		orchestrator.PhaseValidatingConfig,
		orchestrator.PhaseInitializingServices,
		orchestrator.PhaseTestingConnections,
		orchestrator.PhaseFinalizing,
		orchestrator.PhaseReady,
	}
	mu.Lock()
	defer mu.Unlock()
	if len(phases) != len(want) {
		t.Fatalf("phase sequence %v, want %v", phases, want)
	}
	for i, phase := range want {
		if phases[i] != phase {
			t.Fatalf("phase sequence %v, want %v", phases, want)
		}
	}
}

func TestInitializeIsSingleFlight(t *testing.T) {
	o := newTestOrchestrator(t, orchestrator.Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]*orchestrator.Services, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := o.Initialize(ctx); err != nil {
				t.Errorf("Initialize: %v", err)
				return
			}
			results[i] = o.GetServices()
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent initializers must share one service set")
		}
	}

	// A later call returns without rebuilding.
	if _, err := o.Initialize(ctx); err != nil {
		t.Fatalf("repeat Initialize: %v", err)
	}
	if o.GetServices() != results[0] {
		t.Fatal("repeat initialization must not rebuild services")
	}
}

func TestInitializeFailsOnInvalidConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Provider.Name = "gdrive"
	cfg.Provider.Enabled = true

	o := newTestOrchestrator(t, orchestrator.Options{Config: cfg})
	_, err := o.Initialize(context.Background())
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if o.Phase() != orchestrator.PhaseFailed {
		t.Fatalf("expected failed phase, got %s", o.Phase())
	}
	if o.GetServices() != nil {
		t.Fatal("no services should survive a failed initialization")
	}
}

func TestConnectivityFailureDegradesToQueueOnlyMode(t *testing.T) {
	failing := provider.NewMemoryClient()
	failing.FailWith = provider.Wrap(provider.ErrUnavailable, "none", "test connection", "unreachable", errors.New("dial timeout"))

	var warnings []string
	o := newTestOrchestrator(t, orchestrator.Options{
		Provider: failing,
		Callbacks: orchestrator.Callbacks{
			OnWarning: func(message string) { warnings = append(warnings, message) },
		},
	})

	status, err := o.Initialize(context.Background())
	if err != nil {
		t.Fatalf("Initialize must not fail on connectivity problems: %v", err)
	}
	if !status.IsInitialized || status.IsConnected {
		t.Fatalf("expected degraded startup, got %+v", status)
	}
	found := false
	for _, warning := range warnings {
		if strings.Contains(warning, "queue-only mode") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a queue-only warning, got %v", warnings)
	}
	if services := o.GetServices(); services == nil || services.Queue == nil {
		t.Fatal("queue must be available in degraded mode")
	}
}

func TestCleanupReleasesServices(t *testing.T) {
	o := newTestOrchestrator(t, orchestrator.Options{})
	if _, err := o.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := o.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if o.GetServices() != nil {
		t.Fatal("services must be released")
	}
	if o.Phase() != orchestrator.PhaseIdle {
		t.Fatalf("expected idle phase after cleanup, got %s", o.Phase())
	}
}

func TestConfigurationSummaryRedactsCredentials(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Provider.Name = "supabase"
	cfg.Provider.Enabled = true
	cfg.Provider.Supabase.URL = "https://example.supabase.co"
	cfg.Provider.Supabase.APIKey = "secret-key"

	o := newTestOrchestrator(t, orchestrator.Options{
		Config:   cfg,
		Provider: provider.NewMemoryClient(),
	})
	if _, err := o.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	summary, ok := o.GetConfigurationSummary()
	if !ok {
		t.Fatal("summary should be available once ready")
	}
	if summary.Provider != "supabase" || !summary.HasCredentials {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}
