// Package daemon ties the orchestrator to the host: it enforces
// single-instance execution with a file lock and owns the background
// lifecycle between Start and Stop.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gofrs/flock"

	"savesync/internal/config"
	"savesync/internal/logging"
	"savesync/internal/netmon"
	"savesync/internal/orchestrator"
	"savesync/internal/queue"
)

type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	orch   *orchestrator.Orchestrator

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Phase        orchestrator.Phase
	Queue        queue.Status
	Network      *netmon.Status
	QueueDBPath  string
	LockFilePath string
}

// New constructs a daemon with an orchestrator bound to cfg.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		orch:     orchestrator.New(orchestrator.Options{Config: cfg, Logger: logger}),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and runs the initialization sequence.
func (d *Daemon) Start(ctx context.Context) (orchestrator.InitializationStatus, error) {
	if d.running.Load() {
		return orchestrator.InitializationStatus{}, errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return orchestrator.InitializationStatus{}, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return orchestrator.InitializationStatus{}, errors.New("another savesync instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	status, err := d.orch.Initialize(runCtx)
	if err != nil {
		cancel()
		d.cancel = nil
		_ = d.lock.Unlock()
		return status, err
	}

	d.running.Store(true)
	d.logger.Info("savesync daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldProvider, status.Provider),
	)
	return status, nil
}

// Stop tears services down and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	_ = d.orch.Cleanup()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("savesync daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Orchestrator exposes the startup coordinator for status queries.
func (d *Daemon) Orchestrator() *orchestrator.Orchestrator {
	return d.orch
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	st := Status{
		Running:      d.running.Load(),
		Phase:        d.orch.Phase(),
		QueueDBPath:  d.cfg.QueueDatabasePath(),
		LockFilePath: d.lockPath,
	}
	if services := d.orch.GetServices(); services != nil {
		if services.Queue != nil {
			st.Queue = services.Queue.GetStatus()
		}
		if services.Monitor != nil {
			network := services.Monitor.GetStatus()
			st.Network = &network
		}
	}
	return st
}
