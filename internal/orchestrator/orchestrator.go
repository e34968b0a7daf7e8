// Package orchestrator drives multi-phase startup: load configuration,
// validate it, build services, test connectivity, finalize. Connectivity
// failures degrade to queue-only mode instead of failing startup.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"savesync/internal/clock"
	"savesync/internal/compress"
	"savesync/internal/config"
	"savesync/internal/logging"
	"savesync/internal/netmon"
	"savesync/internal/preflight"
	"savesync/internal/provider"
	"savesync/internal/queue"
)

// Callbacks observe startup progress. All fields are optional and are
// invoked synchronously from the initializing goroutine.
type Callbacks struct {
	OnPhase   func(phase Phase)
	OnWarning func(message string)
	OnError   func(err error)
}

// Options configures an Orchestrator. Either Config or ConfigPath must be
// usable; a nil Config is loaded from ConfigPath during initialization.
type Options struct {
	ConfigPath string
	Config     *config.Config

	// Passive overrides the passive connectivity source. Nil selects the
	// netlink source on hosts that support it.
	Passive netmon.PassiveSource

	// Provider overrides the configured backend. Tests inject fakes here.
	Provider provider.Client

	Clock      clock.Clock
	HTTPClient *http.Client
	Logger     *slog.Logger
	Callbacks  Callbacks

	// SkipPreflight bypasses host environment checks. Tests use it.
	SkipPreflight bool
}

type initRun struct {
	done   chan struct{}
	status InitializationStatus
	err    error
}

// Orchestrator owns service lifecycle. Initialize is single-flight:
// concurrent callers share one attempt and its result.
type Orchestrator struct {
	opts   Options
	clk    clock.Clock
	logger *slog.Logger

	mu          sync.Mutex
	phase       Phase
	services    *Services
	status      InitializationStatus
	run         *initRun
	unsubscribe func()
}

// New constructs an orchestrator in the idle phase.
func New(opts Options) *Orchestrator {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		opts:   opts,
		clk:    clk,
		logger: logging.NewComponentLogger(logger, "orchestrator"),
		phase:  PhaseIdle,
	}
}

// Phase returns the current startup phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// IsReady reports whether services are initialized and usable.
func (o *Orchestrator) IsReady() bool {
	return o.Phase() == PhaseReady
}

// GetServices returns the live services, or nil before successful
// initialization.
func (o *Orchestrator) GetServices() *Services {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.services
}

// Status returns the outcome of the most recent initialization attempt.
func (o *Orchestrator) Status() InitializationStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Initialize runs the startup sequence. A second call while one is in
// flight waits for it and returns the shared result; calling after a
// successful startup returns the existing result without re-running.
func (o *Orchestrator) Initialize(ctx context.Context) (InitializationStatus, error) {
	o.mu.Lock()
	if o.phase == PhaseReady {
		status := o.status
		o.mu.Unlock()
		return status, nil
	}
	if run := o.run; run != nil {
		o.mu.Unlock()
		select {
		case <-run.done:
			return run.status, run.err
		case <-ctx.Done():
			return InitializationStatus{}, ctx.Err()
		}
	}
	run := &initRun{done: make(chan struct{})}
	o.run = run
	o.mu.Unlock()

	status, err := o.initialize(ctx)

	o.mu.Lock()
	run.status, run.err = status, err
	o.status = status
	o.run = nil
	o.mu.Unlock()
	close(run.done)
	return status, err
}

func (o *Orchestrator) initialize(ctx context.Context) (InitializationStatus, error) {
	status := InitializationStatus{Timestamp: o.clk.Now().UTC()}

	fail := func(phase Phase, err error) (InitializationStatus, error) {
		status.Errors = append(status.Errors, err.Error())
		o.setPhase(PhaseFailed)
		o.logger.Error("initialization failed",
			logging.Error(err),
			logging.String(logging.FieldPhase, string(phase)),
			logging.String(logging.FieldEventType, "init_failed"),
			logging.String(logging.FieldErrorHint, "fix the reported problem and reinitialize"),
			logging.String(logging.FieldImpact, "savesync is not running"),
		)
		if o.opts.Callbacks.OnError != nil {
			o.opts.Callbacks.OnError(err)
		}
		return status, err
	}
	warn := func(message string) {
		status.Warnings = append(status.Warnings, message)
		o.logger.Warn(message, logging.String(logging.FieldEventType, "init_warning"))
		if o.opts.Callbacks.OnWarning != nil {
			o.opts.Callbacks.OnWarning(message)
		}
	}

	// Phase: loading-config.
	o.setPhase(PhaseLoadingConfig)
	cfg := o.opts.Config
	if cfg == nil {
		loaded, path, found, err := config.Load(o.opts.ConfigPath)
		if err != nil {
			return fail(PhaseLoadingConfig, fmt.Errorf("load config: %w", err))
		}
		if !found {
			warn(fmt.Sprintf("no config file at %s; using defaults", path))
		}
		cfg = loaded
	}

	// Phase: validating-config.
	o.setPhase(PhaseValidatingConfig)
	if err := cfg.Validate(); err != nil {
		return fail(PhaseValidatingConfig, fmt.Errorf("validate config: %w", err))
	}
	status.IsConfigured = true
	status.Provider = cfg.Provider.Name
	status.Features = cfg.Features

	if !o.opts.SkipPreflight {
		for _, result := range preflight.Run(ctx, cfg) {
			if !result.Passed {
				warn(fmt.Sprintf("preflight %s: %s", result.Name, result.Detail))
			}
		}
	}

	// Phase: initializing-services.
	o.setPhase(PhaseInitializingServices)
	services := &Services{Config: cfg}

	client := o.opts.Provider
	if client == nil {
		built, err := buildProvider(ctx, cfg)
		if err != nil {
			return fail(PhaseInitializingServices, fmt.Errorf("build provider: %w", err))
		}
		client = built
	}
	services.Provider = client

	if cfg.Features.Compression {
		codec, err := compress.NewCodec()
		if err != nil {
			o.teardown(services)
			return fail(PhaseInitializingServices, fmt.Errorf("build codec: %w", err))
		}
		services.Codec = codec
	}

	if cfg.Features.NetworkMonitoring {
		passive := o.opts.Passive
		if passive == nil {
			passive = netmon.NewNetlinkSource(o.logger)
		}
		services.Monitor = netmon.New(netmon.Options{
			PingURL:       cfg.Network.PingURL,
			PingInterval:  time.Duration(cfg.Network.PingIntervalMS) * time.Millisecond,
			PingTimeout:   time.Duration(cfg.Network.PingTimeoutMS) * time.Millisecond,
			RetryAttempts: cfg.Network.RetryAttempts,
			SaveData:      cfg.Network.SaveData,
			Passive:       passive,
			Clock:         o.clk,
			HTTPClient:    o.opts.HTTPClient,
			Logger:        o.logger,
		})
	}

	if cfg.Features.OfflineQueue {
		store, err := queue.OpenStore(cfg)
		if err != nil {
			o.teardown(services)
			return fail(PhaseInitializingServices, fmt.Errorf("open queue store: %w", err))
		}
		services.Store = store

		var gate queue.Gate
		if services.Monitor != nil {
			gate = services.Monitor
		}
		q, err := queue.New(queue.Options{
			Store:         store,
			Clock:         o.clk,
			Logger:        o.logger,
			MaxQueueSize:  cfg.Queue.MaxQueueSize,
			MaxRetries:    cfg.Queue.MaxRetries,
			RetryDelay:    time.Duration(cfg.Queue.RetryDelayMS) * time.Millisecond,
			MaxRetryDelay: time.Duration(cfg.Queue.MaxRetryDelayMS) * time.Millisecond,
			Concurrency:   cfg.Queue.ProcessingConcurrency,
			Executors:     buildExecutors(client, services.Codec),
			Gate:          gate,
			AutoRetry:     cfg.Features.AutoRetry,
		})
		if err != nil {
			o.teardown(services)
			return fail(PhaseInitializingServices, fmt.Errorf("build queue: %w", err))
		}
		services.Queue = q
	}

	// Phase: testing-connections. Failures degrade, never abort.
	o.setPhase(PhaseTestingConnections)
	if err := client.TestConnection(ctx); err != nil {
		warn(fmt.Sprintf("provider connectivity test failed; continuing in queue-only mode: %v", err))
	} else {
		status.IsConnected = true
	}

	// Phase: finalizing. Start background loops and wire auto-drain.
	o.setPhase(PhaseFinalizing)
	if services.Monitor != nil {
		services.Monitor.Start(ctx)
		if services.Queue != nil && cfg.Queue.DrainOnlineTransitions {
			o.wireAutoDrain(services)
		}
	}

	o.mu.Lock()
	o.services = services
	o.mu.Unlock()
	o.setPhase(PhaseReady)

	status.IsInitialized = true
	o.logger.Info("initialization complete",
		logging.String(logging.FieldProvider, status.Provider),
		logging.Bool("connected", status.IsConnected),
		logging.Int("warnings", len(status.Warnings)),
	)
	return status, nil
}

// wireAutoDrain drains the queue whenever connectivity transitions from
// offline to online.
func (o *Orchestrator) wireAutoDrain(services *Services) {
	wasOnline := services.Monitor.IsOnline()
	var transitionMu sync.Mutex
	unsubscribe := services.Monitor.AddListener(func(st netmon.Status) {
		transitionMu.Lock()
		cameOnline := st.IsOnline && !wasOnline
		wasOnline = st.IsOnline
		transitionMu.Unlock()
		if !cameOnline {
			return
		}
		go func() {
			if _, err := services.Queue.ProcessQueue(context.Background()); err != nil {
				o.logger.Warn("auto-drain failed", logging.Error(err))
			}
		}()
	})

	o.mu.Lock()
	o.unsubscribe = unsubscribe
	o.mu.Unlock()
}

func (o *Orchestrator) setPhase(phase Phase) {
	o.mu.Lock()
	o.phase = phase
	o.mu.Unlock()
	o.logger.Debug("phase changed", logging.String(logging.FieldPhase, string(phase)))
	if o.opts.Callbacks.OnPhase != nil {
		o.opts.Callbacks.OnPhase(phase)
	}
}

// Reinitialize tears everything down and runs the startup sequence again.
func (o *Orchestrator) Reinitialize(ctx context.Context) (InitializationStatus, error) {
	if err := o.Cleanup(); err != nil {
		return InitializationStatus{}, err
	}
	return o.Initialize(ctx)
}

// Cleanup stops background loops and releases every service. It is safe to
// call in any phase.
func (o *Orchestrator) Cleanup() error {
	o.mu.Lock()
	if o.run != nil {
		run := o.run
		o.mu.Unlock()
		<-run.done
		o.mu.Lock()
	}
	services := o.services
	o.services = nil
	unsubscribe := o.unsubscribe
	o.unsubscribe = nil
	o.phase = PhaseIdle
	o.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	o.teardown(services)
	return nil
}

func (o *Orchestrator) teardown(services *Services) {
	if services == nil {
		return
	}
	if services.Monitor != nil {
		services.Monitor.Destroy()
	}
	if services.Queue != nil {
		_ = services.Queue.Close()
	}
	if services.Store != nil {
		_ = services.Store.Close()
	}
	if services.Provider != nil {
		_ = services.Provider.Close()
	}
	if services.Codec != nil {
		services.Codec.Close()
	}
}

// GetConfigurationSummary returns a redacted view of the active
// configuration. It is available once configuration has been validated.
func (o *Orchestrator) GetConfigurationSummary() (ConfigurationSummary, bool) {
	o.mu.Lock()
	services := o.services
	o.mu.Unlock()
	if services == nil || services.Config == nil {
		return ConfigurationSummary{}, false
	}
	cfg := services.Config
	return ConfigurationSummary{
		Provider:        cfg.Provider.Name,
		ProviderEnabled: cfg.Provider.Enabled,
		Features:        cfg.Features,
		MaxQueueSize:    cfg.Queue.MaxQueueSize,
		MaxRetries:      cfg.Queue.MaxRetries,
		PingURL:         cfg.Network.PingURL,
		DataDir:         cfg.Paths.DataDir,
		HasCredentials:  hasCredentials(cfg),
	}, true
}

func hasCredentials(cfg *config.Config) bool {
	switch cfg.Provider.Name {
	case "firebase":
		return cfg.Provider.Firebase.APIKey != ""
	case "supabase":
		return cfg.Provider.Supabase.APIKey != ""
	case "s3":
		return cfg.Provider.S3.SecretAccessKey != ""
	default:
		return false
	}
}
