package netmon

// PassiveEvent is an interface-level connectivity signal observed without
// touching the network.
type PassiveEvent struct {
	Online         bool
	ConnectionType string
}

// PassiveSource emits passive connectivity signals. Close releases any
// underlying subscription; the Events channel closes afterwards.
type PassiveSource interface {
	Events() <-chan PassiveEvent
	Close() error
}

// ManualSource is a channel-backed PassiveSource for tests and for hosts
// where kernel events are unavailable.
type ManualSource struct {
	ch chan PassiveEvent
}

// NewManualSource constructs an empty manual source.
func NewManualSource() *ManualSource {
	return &ManualSource{ch: make(chan PassiveEvent, 8)}
}

// Emit publishes a passive signal.
func (s *ManualSource) Emit(event PassiveEvent) {
	s.ch <- event
}

func (s *ManualSource) Events() <-chan PassiveEvent { return s.ch }

func (s *ManualSource) Close() error {
	close(s.ch)
	return nil
}
