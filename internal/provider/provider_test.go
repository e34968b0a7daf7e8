package provider_test

import (
	"context"
	"errors"
	"testing"

	"savesync/internal/provider"
)

func TestWrapTagsSentinelForClassification(t *testing.T) {
	err := provider.Wrap(provider.ErrAuth, "firebase", "save", "unexpected status 401", nil)
	if !errors.Is(err, provider.ErrAuth) {
		t.Fatalf("marker lost: %v", err)
	}
	if provider.Retryable(err) {
		t.Fatal("authentication failures must not be retryable")
	}

	wrapped := provider.Wrap(provider.ErrUnavailable, "s3", "load", "request failed", errors.New("dial timeout"))
	if !provider.Retryable(wrapped) {
		t.Fatal("unavailability must be retryable")
	}
}

func TestMarkerForHTTPStatus(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{401, provider.ErrAuth},
		{403, provider.ErrAuth},
		{404, provider.ErrNotFound},
		{429, provider.ErrTimeout},
		{500, provider.ErrUnavailable},
	}
	for _, tc := range cases {
		if got := provider.MarkerForHTTPStatus(tc.status); !errors.Is(got, tc.want) {
			t.Fatalf("status %d: got %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestMemoryClientRoundTrip(t *testing.T) {
	client := provider.NewMemoryClient()
	ctx := context.Background()

	if err := client.Save(ctx, "player-1", 0, []byte("slot zero")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := client.Save(ctx, "player-1", 2, []byte("slot two")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := client.Load(ctx, "player-1", 2)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(data) != "slot two" {
		t.Fatalf("unexpected payload: %s", data)
	}

	slots, err := client.List(ctx, "player-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(slots) != 2 || slots[0].Slot != 0 || slots[1].Slot != 2 {
		t.Fatalf("unexpected slots: %+v", slots)
	}

	if err := client.Delete(ctx, "player-1", 2); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err = client.Load(ctx, "player-1", 2)
	if !errors.Is(err, provider.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryClientIsolatesStoredBytes(t *testing.T) {
	client := provider.NewMemoryClient()
	ctx := context.Background()

	payload := []byte("original")
	if err := client.Save(ctx, "player-1", 0, payload); err != nil {
		t.Fatalf("Save: %v", err)
	}
	payload[0] = 'X'

	data, err := client.Load(ctx, "player-1", 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(data) != "original" {
		t.Fatalf("stored bytes aliased caller buffer: %s", data)
	}
}
