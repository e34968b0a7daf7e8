package events

import "sync"

// Listener receives published values. Listeners run synchronously on the
// publishing goroutine and must not block.
type Listener[T any] func(T)

// Hub fans a value out to registered listeners.
type Hub[T any] struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener[T]
	closed    bool
}

// NewHub constructs an empty hub.
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{listeners: make(map[int]Listener[T])}
}

// Subscribe registers a listener and returns its unsubscribe function.
// Unsubscribing twice is harmless.
func (h *Hub[T]) Subscribe(fn Listener[T]) func() {
	if h == nil || fn == nil {
		return func() {}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return func() {}
	}
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

// Publish delivers value to every registered listener.
func (h *Hub[T]) Publish(value T) {
	if h == nil {
		return
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	fns := make([]Listener[T], 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(value)
	}
}

// Len reports the number of registered listeners.
func (h *Hub[T]) Len() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

// Close drops all listeners; later Subscribe and Publish calls are no-ops.
func (h *Hub[T]) Close() {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.closed = true
	h.listeners = map[int]Listener[T]{}
	h.mu.Unlock()
}
