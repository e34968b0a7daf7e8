package netmon

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"savesync/internal/clock"
	"savesync/internal/events"
	"savesync/internal/logging"
)

// Options describes monitor construction parameters.
type Options struct {
	PingURL       string
	PingInterval  time.Duration
	PingTimeout   time.Duration
	RetryAttempts int
	SaveData      bool

	// Passive supplies interface up/down signals. Nil disables passive
	// monitoring; the probe alone then drives the online flag.
	Passive PassiveSource

	Clock      clock.Clock
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Monitor tracks connectivity state for the rest of savesync.
//
// Precedence when passive and probe signals disagree: a passive offline
// signal is trusted immediately; a probe failure while passively online
// flips the monitor offline; a probe success while passively offline never
// raises the online flag. Cloud-operation suitability additionally requires
// a recent probe success and no save-data constraint.
type Monitor struct {
	prober *prober
	clk    clock.Clock
	logger *slog.Logger

	passive PassiveSource
	hub     *events.Hub[Status]

	interval time.Duration

	mu            sync.Mutex
	status        Status
	passiveOnline bool
	probeOK       bool
	probeRan      bool
	started       bool
	destroyed     bool
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// New constructs a monitor. The monitor assumes it is passively online
// until a signal or probe says otherwise.
func New(opts Options) *Monitor {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	interval := opts.PingInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Monitor{
		prober:   newProber(opts.PingURL, timeout, opts.RetryAttempts, opts.HTTPClient, clk),
		clk:      clk,
		logger:   logging.NewComponentLogger(opts.Logger, "netmon"),
		passive:  opts.Passive,
		hub:      events.NewHub[Status](),
		interval: interval,
		status: Status{
			IsOnline:       true,
			ConnectionType: "unknown",
			EffectiveType:  "unknown",
			SaveData:       opts.SaveData,
		},
		passiveOnline: true,
	}
}

// Start launches the periodic probe loop and, when configured, the passive
// signal loop. Starting twice is an error-free no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started || m.destroyed {
		m.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.started = true
	m.mu.Unlock()

	m.wg.Add(1)
	go m.probeLoop(runCtx)

	if m.passive != nil {
		m.wg.Add(1)
		go m.passiveLoop(runCtx)
	}
}

// Destroy stops background work and drops all listeners.
func (m *Monitor) Destroy() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	if m.passive != nil {
		_ = m.passive.Close()
	}
	m.hub.Close()
}

// GetStatus returns a copy of the current connectivity snapshot.
func (m *Monitor) GetStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// IsOnline reports the passive-signal-driven online flag.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status.IsOnline
}

// IsOffline is the negation of IsOnline.
func (m *Monitor) IsOffline() bool { return !m.IsOnline() }

// ConnectionQuality classifies the current link.
func (m *Monitor) ConnectionQuality() Quality {
	m.mu.Lock()
	defer m.mu.Unlock()
	return classify(m.status.IsOnline, m.status.EffectiveType, m.status.RTT, m.status.DownlinkMbps)
}

// IsSuitableForCloudOperations reports whether remote work should be
// attempted now. Save-data mode always answers false.
func (m *Monitor) IsSuitableForCloudOperations() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status.SaveData {
		return false
	}
	if !m.status.IsOnline || !m.probeOK {
		return false
	}
	quality := classify(true, m.status.EffectiveType, m.status.RTT, m.status.DownlinkMbps)
	return quality != QualityPoor
}

// CheckConnectivity forces an active probe now and reports its outcome.
func (m *Monitor) CheckConnectivity(ctx context.Context) bool {
	result := m.prober.run(ctx)
	m.applyProbe(result)
	return result.ok
}

// AddListener registers a status listener; the returned function
// unsubscribes it.
func (m *Monitor) AddListener(fn func(Status)) func() {
	return m.hub.Subscribe(fn)
}

func (m *Monitor) probeLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.clk.After(m.interval):
		}
		result := m.prober.run(ctx)
		if ctx.Err() != nil {
			return
		}
		m.applyProbe(result)
	}
}

func (m *Monitor) passiveLoop(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-m.passive.Events():
			if !ok {
				return
			}
			m.applyPassive(event)
		}
	}
}

// applyPassive folds an interface up/down signal into the state. The
// offline direction is trusted immediately; the online direction raises the
// flag but leaves suitability gated on the next probe success.
func (m *Monitor) applyPassive(event PassiveEvent) {
	m.mu.Lock()
	m.passiveOnline = event.Online
	if event.ConnectionType != "" {
		m.status.ConnectionType = event.ConnectionType
	}
	if event.Online {
		// A fresh link invalidates any stale probe verdict; the raw flag
		// follows the passive signal until the next probe cycle reports.
		m.probeRan = false
		m.probeOK = false
	} else {
		m.probeOK = false
	}
	changed := m.recomputeLocked()
	status := m.status
	m.mu.Unlock()

	if changed {
		m.logger.Info("connectivity changed",
			logging.String("source", "passive"),
			logging.Bool("online", status.IsOnline),
			logging.String("connection_type", status.ConnectionType),
		)
		m.hub.Publish(status)
	}
}

func (m *Monitor) applyProbe(result probeResult) {
	m.mu.Lock()
	m.probeOK = result.ok
	m.probeRan = true
	if result.ok {
		m.status.RTT = result.rtt
		m.status.EffectiveType = effectiveTypeFor(result.rtt)
		m.status.DownlinkMbps = nominalDownlink(m.status.EffectiveType)
	}
	changed := m.recomputeLocked()
	status := m.status
	m.mu.Unlock()

	if changed {
		if result.err != nil {
			m.logger.Warn("connectivity changed",
				logging.Error(result.err),
				logging.String("source", "probe"),
				logging.Bool("online", status.IsOnline),
				logging.String(logging.FieldEventType, "probe_failed"),
				logging.String(logging.FieldErrorHint, "check the ping endpoint and local network"),
				logging.String(logging.FieldImpact, "queued operations will wait for connectivity"),
			)
		} else {
			m.logger.Info("connectivity changed",
				logging.String("source", "probe"),
				logging.Bool("online", status.IsOnline),
				logging.Duration("rtt", status.RTT),
			)
		}
		m.hub.Publish(status)
	}
}

// recomputeLocked derives the public online flag and stamps transition
// times. It reports whether a genuine transition occurred.
func (m *Monitor) recomputeLocked() bool {
	// Before the first probe completes the passive signal stands alone, so
	// a freshly constructed monitor does not report a spurious offline.
	online := m.passiveOnline && (m.probeOK || !m.probeRan)

	if online == m.status.IsOnline {
		return false
	}
	now := m.clk.Now()
	m.status.IsOnline = online
	if online {
		m.status.LastOnline = &now
	} else {
		m.status.LastOffline = &now
	}
	return true
}
