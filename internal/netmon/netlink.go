package netmon

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"savesync/internal/logging"
)

// NetlinkSource listens for kernel uevents on the net subsystem and maps
// interface add/remove events to passive connectivity signals. Loopback
// interfaces are ignored. Connecting to the netlink socket requires Linux
// and the right permissions; a failed connection is non-fatal and simply
// yields a source that never emits.
type NetlinkSource struct {
	logger *slog.Logger

	mu     sync.Mutex
	conn   *netlink.UEventConn
	events chan PassiveEvent
	quit   chan struct{}
	closed bool
}

// NewNetlinkSource connects to the udev netlink socket and begins
// translating net-subsystem events.
func NewNetlinkSource(logger *slog.Logger) *NetlinkSource {
	s := &NetlinkSource{
		logger: logging.NewComponentLogger(logger, "netlink-source"),
		events: make(chan PassiveEvent, 8),
		quit:   make(chan struct{}),
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		s.logger.Warn("failed to connect to netlink socket; passive connectivity signals unavailable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the process may access netlink sockets"),
			logging.String(logging.FieldImpact, "connectivity relies on active probing only"),
		)
		return s
	}

	s.conn = conn
	go s.monitorLoop()
	return s
}

func (s *NetlinkSource) Events() <-chan PassiveEvent { return s.events }

// Close stops the netlink subscription and closes the event channel.
func (s *NetlinkSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.quit)
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	return nil
}

func (s *NetlinkSource) monitorLoop() {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	monitorQuit := s.conn.Monitor(queue, errs, buildNetMatcher())
	defer close(s.events)

	for {
		select {
		case <-s.quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			s.handleEvent(uevent)
		case err := <-errs:
			s.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "passive connectivity signals may be delayed"),
			)
		}
	}
}

// buildNetMatcher matches interface lifecycle events:
// SUBSYSTEM=net, ACTION=add|remove|move.
func buildNetMatcher() netlink.Matcher {
	action := "add|remove|move"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "net",
		},
	})
	return rules
}

func (s *NetlinkSource) handleEvent(uevent netlink.UEvent) {
	name := uevent.Env["INTERFACE"]
	if name == "" {
		name = uevent.Env["DEVPATH"]
	}
	if name == "lo" || strings.HasSuffix(name, "/lo") {
		return
	}

	event := PassiveEvent{
		Online:         string(uevent.Action) != "remove",
		ConnectionType: connectionTypeFor(name),
	}

	s.logger.Debug("net interface event",
		logging.String("interface", name),
		logging.String("action", string(uevent.Action)),
		logging.Bool("online", event.Online),
	)

	select {
	case s.events <- event:
	default:
		// Listener is behind; drop rather than block the netlink loop.
	}
}

func connectionTypeFor(name string) string {
	base := name
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	switch {
	case strings.HasPrefix(base, "wl"):
		return "wifi"
	case strings.HasPrefix(base, "en"), strings.HasPrefix(base, "eth"):
		return "ethernet"
	case strings.HasPrefix(base, "ww"), strings.HasPrefix(base, "usb"):
		return "cellular"
	default:
		return "unknown"
	}
}
