package queue_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"savesync/internal/queue"
	"savesync/internal/testsupport"
)

func TestStoreRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	slot := 2
	next := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	op := &queue.Operation{
		ID:         "op-1",
		Type:       queue.TypeSave,
		CreatedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		RetryCount: 1,
		MaxRetries: 3,
		Priority:   5,
		Payload:    json.RawMessage(`{"data":{"level":3}}`),
		Metadata: queue.Metadata{
			OwnerID:     "player-1",
			SlotNumber:  &slot,
			Description: "autosave",
		},
		NextAttemptAt: &next,
	}
	if err := store.Insert(ctx, op); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	ops, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("expected 1 operation, got %d", len(ops))
	}
	got := ops[0]
	if got.ID != op.ID || got.Type != op.Type || got.Priority != 5 || got.RetryCount != 1 {
		t.Fatalf("unexpected operation: %#v", got)
	}
	if !got.CreatedAt.Equal(op.CreatedAt) {
		t.Fatalf("created_at mismatch: %v != %v", got.CreatedAt, op.CreatedAt)
	}
	if got.Metadata.SlotNumber == nil || *got.Metadata.SlotNumber != 2 {
		t.Fatalf("slot number not preserved: %#v", got.Metadata)
	}
	if got.NextAttemptAt == nil || !got.NextAttemptAt.Equal(next) {
		t.Fatalf("next_attempt_at not preserved: %v", got.NextAttemptAt)
	}
	if string(got.Payload) != `{"data":{"level":3}}` {
		t.Fatalf("payload not preserved: %s", got.Payload)
	}
}

func TestStoreLoadAllDispatchOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	insert := func(id string, priority int, offset time.Duration) {
		t.Helper()
		op := &queue.Operation{
			ID:         id,
			Type:       queue.TypeSync,
			CreatedAt:  base.Add(offset),
			MaxRetries: 3,
			Priority:   priority,
			Metadata:   queue.Metadata{OwnerID: "player-1"},
		}
		if err := store.Insert(ctx, op); err != nil {
			t.Fatalf("Insert %s failed: %v", id, err)
		}
	}
	insert("low", 1, 0)
	insert("high-late", 9, 2*time.Minute)
	insert("high-early", 9, time.Minute)

	ops, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	want := []string{"high-early", "high-late", "low"}
	for i, id := range want {
		if ops[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, ops[i].ID)
		}
	}
}

func TestStoreDeleteFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	fresh := &queue.Operation{ID: "fresh", Type: queue.TypeSave, CreatedAt: time.Now().UTC(), MaxRetries: 3}
	failed := &queue.Operation{ID: "failed", Type: queue.TypeSave, CreatedAt: time.Now().UTC(), MaxRetries: 3, RetryCount: 2}
	for _, op := range []*queue.Operation{fresh, failed} {
		if err := store.Insert(ctx, op); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	if err := store.DeleteFailed(ctx); err != nil {
		t.Fatalf("DeleteFailed failed: %v", err)
	}
	ops, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(ops) != 1 || ops[0].ID != "fresh" {
		t.Fatalf("expected only the fresh operation to remain, got %#v", ops)
	}
}
