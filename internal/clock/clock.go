// Package clock abstracts wall-clock time so backoff schedules and probe
// intervals are testable without real waits.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock is the time surface savesync components depend on.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer mirrors the subset of *time.Timer the queue needs.
type Timer interface {
	Stop() bool
}

// Real returns the wall clock.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) AfterFunc(d time.Duration, fn func()) Timer { return time.AfterFunc(d, fn) }

// Manual is a test clock advanced explicitly with Advance.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*manualWaiter
}

type manualWaiter struct {
	at      time.Time
	ch      chan time.Time
	fn      func()
	stopped bool
}

// NewManual constructs a manual clock starting at now.
func NewManual(now time.Time) *Manual {
	return &Manual{now: now}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) After(d time.Duration) <-chan time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := &manualWaiter{at: m.now.Add(d), ch: make(chan time.Time, 1)}
	m.waiters = append(m.waiters, w)
	return w.ch
}

func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := &manualWaiter{at: m.now.Add(d), fn: fn}
	m.waiters = append(m.waiters, w)
	return w
}

func (w *manualWaiter) Stop() bool {
	was := w.stopped
	w.stopped = true
	return !was
}

// Advance moves the clock forward, firing timers in deadline order.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now

	var due []*manualWaiter
	remaining := m.waiters[:0]
	for _, w := range m.waiters {
		if !w.stopped && !w.at.After(now) {
			due = append(due, w)
		} else {
			remaining = append(remaining, w)
		}
	}
	m.waiters = remaining
	m.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, w := range due {
		if w.ch != nil {
			w.ch <- now
		}
		if w.fn != nil {
			w.fn()
		}
	}
}
