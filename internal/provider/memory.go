package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryClient stores saves in process memory. It backs the "none" provider
// so the rest of the system runs unchanged without cloud credentials, and
// doubles as the test stand-in for remote backends.
type MemoryClient struct {
	mu    sync.Mutex
	slots map[string]map[int]memoryEntry

	// FailWith, when set, is returned by every call. Tests use it to
	// exercise retry paths.
	FailWith error
}

type memoryEntry struct {
	data      []byte
	updatedAt time.Time
}

// NewMemoryClient constructs an empty in-memory backend.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{slots: make(map[string]map[int]memoryEntry)}
}

func (c *MemoryClient) Name() string { return "none" }

func (c *MemoryClient) Save(_ context.Context, ownerID string, slot int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailWith != nil {
		return c.FailWith
	}
	owner, ok := c.slots[ownerID]
	if !ok {
		owner = make(map[int]memoryEntry)
		c.slots[ownerID] = owner
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	owner[slot] = memoryEntry{data: stored, updatedAt: time.Now().UTC()}
	return nil
}

func (c *MemoryClient) Load(_ context.Context, ownerID string, slot int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailWith != nil {
		return nil, c.FailWith
	}
	entry, ok := c.slots[ownerID][slot]
	if !ok {
		return nil, Wrap(ErrNotFound, "none", "load", fmt.Sprintf("owner %s slot %d", ownerID, slot), nil)
	}
	out := make([]byte, len(entry.data))
	copy(out, entry.data)
	return out, nil
}

func (c *MemoryClient) Delete(_ context.Context, ownerID string, slot int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailWith != nil {
		return c.FailWith
	}
	delete(c.slots[ownerID], slot)
	return nil
}

func (c *MemoryClient) List(_ context.Context, ownerID string) ([]SlotInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailWith != nil {
		return nil, c.FailWith
	}
	var out []SlotInfo
	for slot, entry := range c.slots[ownerID] {
		out = append(out, SlotInfo{Slot: slot, Size: int64(len(entry.data)), UpdatedAt: entry.updatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out, nil
}

func (c *MemoryClient) TestConnection(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.FailWith
}

func (c *MemoryClient) Close() error { return nil }
