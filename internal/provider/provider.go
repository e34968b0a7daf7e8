// Package provider defines the cloud storage client surface and its
// concrete backends. Clients move opaque payload bytes; validation and
// compression happen above this layer.
package provider

import (
	"context"
	"time"
)

// SlotInfo describes one stored save slot.
type SlotInfo struct {
	Slot      int
	Size      int64
	UpdatedAt time.Time
}

// Client is a cloud save backend. Implementations are safe for concurrent
// use and return sentinel-tagged errors for status classification.
type Client interface {
	Name() string
	Save(ctx context.Context, ownerID string, slot int, data []byte) error
	Load(ctx context.Context, ownerID string, slot int) ([]byte, error)
	Delete(ctx context.Context, ownerID string, slot int) error
	List(ctx context.Context, ownerID string) ([]SlotInfo, error)
	TestConnection(ctx context.Context) error
	Close() error
}
