package netmon_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"savesync/internal/clock"
	"savesync/internal/netmon"
)

type stubTransport struct {
	mu   sync.Mutex
	fail bool
	rtt  time.Duration
}

func (s *stubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errors.New("connection refused")
	}
	return &http.Response{
		StatusCode: http.StatusNoContent,
		Body:       io.NopCloser(strings.NewReader("")),
		Request:    req,
	}, nil
}

func (s *stubTransport) setFail(fail bool) {
	s.mu.Lock()
	s.fail = fail
	s.mu.Unlock()
}

func newTestMonitor(t *testing.T, transport *stubTransport, source netmon.PassiveSource) *netmon.Monitor {
	t.Helper()
	m := netmon.New(netmon.Options{
		PingURL:       "http://probe.invalid/generate_204",
		PingTimeout:   time.Second,
		RetryAttempts: 1,
		Passive:       source,
		Clock:         clock.NewManual(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)),
		HTTPClient:    &http.Client{Transport: transport},
	})
	t.Cleanup(m.Destroy)
	return m
}

func TestMonitorStartsOnline(t *testing.T) {
	m := newTestMonitor(t, &stubTransport{}, nil)
	if !m.IsOnline() {
		t.Fatal("a fresh monitor must assume online until told otherwise")
	}
	if m.IsSuitableForCloudOperations() {
		t.Fatal("suitability requires a probe success first")
	}
}

func TestProbeFailureEmitsExactlyOneOfflineNotification(t *testing.T) {
	transport := &stubTransport{fail: true}
	m := newTestMonitor(t, transport, nil)

	offline := 0
	unsubscribe := m.AddListener(func(st netmon.Status) {
		if !st.IsOnline {
			offline++
		}
	})
	defer unsubscribe()

	if ok := m.CheckConnectivity(context.Background()); ok {
		t.Fatal("probe should fail")
	}
	if m.IsOnline() {
		t.Fatal("probe failure must flip the monitor offline")
	}
	if offline != 1 {
		t.Fatalf("expected exactly one offline notification, got %d", offline)
	}

	// A second failed probe is not a transition.
	_ = m.CheckConnectivity(context.Background())
	if offline != 1 {
		t.Fatalf("repeated failures must not renotify, got %d", offline)
	}
}

func TestProbeSuccessRestoresSuitability(t *testing.T) {
	transport := &stubTransport{fail: true}
	m := newTestMonitor(t, transport, nil)

	_ = m.CheckConnectivity(context.Background())
	if m.IsSuitableForCloudOperations() {
		t.Fatal("offline monitor cannot be suitable")
	}

	transport.setFail(false)
	if ok := m.CheckConnectivity(context.Background()); !ok {
		t.Fatal("probe should succeed")
	}
	if !m.IsOnline() {
		t.Fatal("probe success while passively online must restore the flag")
	}
	if !m.IsSuitableForCloudOperations() {
		t.Fatal("online with a probe success should be suitable")
	}
}

func TestProbeSuccessEstimatesDownlink(t *testing.T) {
	m := newTestMonitor(t, &stubTransport{}, nil)

	if ok := m.CheckConnectivity(context.Background()); !ok {
		t.Fatal("probe should succeed")
	}

	st := m.GetStatus()
	if st.EffectiveType != "4g" {
		t.Fatalf("expected a 4g-grade link for a local stub, got %s", st.EffectiveType)
	}
	if st.DownlinkMbps <= 0 {
		t.Fatalf("downlink estimate missing: %v", st.DownlinkMbps)
	}
	if got := m.ConnectionQuality(); got != netmon.QualityExcellent {
		t.Fatalf("expected excellent quality, got %s", got)
	}
}

func TestPassiveOfflineTrustedImmediately(t *testing.T) {
	source := netmon.NewManualSource()
	m := newTestMonitor(t, &stubTransport{}, source)
	m.Start(context.Background())

	_ = m.CheckConnectivity(context.Background())
	if !m.IsOnline() {
		t.Fatal("expected online after probe success")
	}

	source.Emit(netmon.PassiveEvent{Online: false, ConnectionType: "wifi"})
	waitFor(t, func() bool { return !m.IsOnline() })

	if m.IsSuitableForCloudOperations() {
		t.Fatal("passively offline can never be suitable")
	}
	if got := m.GetStatus().ConnectionType; got != "wifi" {
		t.Fatalf("connection type not recorded: %s", got)
	}
}

func TestProbeSuccessNeverOverridesPassiveOffline(t *testing.T) {
	source := netmon.NewManualSource()
	m := newTestMonitor(t, &stubTransport{}, source)
	m.Start(context.Background())

	source.Emit(netmon.PassiveEvent{Online: false})
	waitFor(t, func() bool { return !m.IsOnline() })

	if ok := m.CheckConnectivity(context.Background()); !ok {
		t.Fatal("probe should succeed")
	}
	if m.IsOnline() {
		t.Fatal("probe success must not raise the flag while passively offline")
	}
}

func TestSaveDataBlocksSuitability(t *testing.T) {
	m := netmon.New(netmon.Options{
		PingURL:       "http://probe.invalid/generate_204",
		PingTimeout:   time.Second,
		RetryAttempts: 1,
		SaveData:      true,
		Clock:         clock.NewManual(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)),
		HTTPClient:    &http.Client{Transport: &stubTransport{}},
	})
	t.Cleanup(m.Destroy)

	_ = m.CheckConnectivity(context.Background())
	if !m.IsOnline() {
		t.Fatal("save-data mode does not affect the online flag")
	}
	if m.IsSuitableForCloudOperations() {
		t.Fatal("save-data mode must block cloud operations")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
