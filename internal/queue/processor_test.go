package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"savesync/internal/clock"
	"savesync/internal/queue"
)

func TestProcessQueueDispatchesInPriorityOrder(t *testing.T) {
	var mu sync.Mutex
	var order []int

	q := newTestQueue(t, queue.Options{
		Concurrency: 1,
		Executors: map[queue.Type]queue.Executor{
			queue.TypeSave: func(ctx context.Context, op *queue.Operation, progress func(string, float64)) (json.RawMessage, error) {
				mu.Lock()
				order = append(order, op.Priority)
				mu.Unlock()
				return nil, nil
			},
		},
	})
	ctx := context.Background()

	for _, priority := range []int{1, 9, 5} {
		if _, err := q.Enqueue(ctx, queue.Request{Type: queue.TypeSave, Priority: priority}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	outcome, err := q.ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessQueue: %v", err)
	}
	if outcome.Succeeded != 3 {
		t.Fatalf("expected 3 successes, got %+v", outcome)
	}
	want := []int{9, 5, 1}
	for i, priority := range want {
		if order[i] != priority {
			t.Fatalf("dispatch order %v, want %v", order, want)
		}
	}
}

func TestRetryUsesCappedExponentialBackoff(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	failures := 3
	attempts := 0

	q := newTestQueue(t, queue.Options{
		Clock:         clk,
		MaxRetries:    5,
		RetryDelay:    100 * time.Millisecond,
		MaxRetryDelay: 250 * time.Millisecond,
		Executors: map[queue.Type]queue.Executor{
			queue.TypeSave: func(context.Context, *queue.Operation, func(string, float64)) (json.RawMessage, error) {
				attempts++
				if attempts <= failures {
					return nil, errors.New("remote down")
				}
				return nil, nil
			},
		},
	})
	ctx := context.Background()

	op, err := q.Enqueue(ctx, queue.Request{Type: queue.TypeSave})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	expectDelay := func(want time.Duration) {
		t.Helper()
		stored, found := q.Get(op.ID)
		if !found {
			t.Fatal("operation missing")
		}
		if stored.NextAttemptAt == nil {
			t.Fatal("expected a scheduled next attempt")
		}
		if got := stored.NextAttemptAt.Sub(clk.Now()); got != want {
			t.Fatalf("backoff delay %v, want %v", got, want)
		}
	}

	// Attempt 1 fails: delay 100ms.
	if _, err := q.ProcessQueue(ctx); err != nil {
		t.Fatalf("ProcessQueue: %v", err)
	}
	expectDelay(100 * time.Millisecond)

	// Not yet due; the drain must not pick it up.
	outcome, err := q.ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessQueue: %v", err)
	}
	if outcome.Processed != 0 {
		t.Fatalf("expected nothing eligible, got %+v", outcome)
	}

	// Attempt 2 fails: delay doubles to 200ms.
	clk.Advance(100 * time.Millisecond)
	if _, err := q.ProcessQueue(ctx); err != nil {
		t.Fatalf("ProcessQueue: %v", err)
	}
	expectDelay(200 * time.Millisecond)

	// Attempt 3 fails: delay caps at 250ms.
	clk.Advance(200 * time.Millisecond)
	if _, err := q.ProcessQueue(ctx); err != nil {
		t.Fatalf("ProcessQueue: %v", err)
	}
	expectDelay(250 * time.Millisecond)

	// Attempt 4 succeeds.
	clk.Advance(250 * time.Millisecond)
	outcome, err = q.ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessQueue: %v", err)
	}
	if outcome.Succeeded != 1 {
		t.Fatalf("expected success after backoff, got %+v", outcome)
	}
	if attempts != 4 {
		t.Fatalf("expected 4 attempts, got %d", attempts)
	}
}

func TestOnErrorFiresExactlyOnceAtExhaustion(t *testing.T) {
	clk := clock.NewManual(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	q := newTestQueue(t, queue.Options{
		Clock:      clk,
		MaxRetries: 2,
		RetryDelay: 50 * time.Millisecond,
		Executors: map[queue.Type]queue.Executor{
			queue.TypeSave: func(context.Context, *queue.Operation, func(string, float64)) (json.RawMessage, error) {
				return nil, errors.New("remote down")
			},
		},
	})
	ctx := context.Background()

	errorCalls := 0
	var lastErr error
	op, err := q.Enqueue(ctx, queue.Request{
		Type: queue.TypeSave,
		Callbacks: queue.Callbacks{OnError: func(err error) {
			errorCalls++
			lastErr = err
		}},
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if _, err := q.ProcessQueue(ctx); err != nil {
		t.Fatalf("ProcessQueue: %v", err)
	}
	if errorCalls != 0 {
		t.Fatalf("OnError fired before exhaustion: %d", errorCalls)
	}

	clk.Advance(50 * time.Millisecond)
	if _, err := q.ProcessQueue(ctx); err != nil {
		t.Fatalf("ProcessQueue: %v", err)
	}
	if errorCalls != 1 {
		t.Fatalf("expected OnError exactly once, got %d", errorCalls)
	}
	var opErr *queue.OperationError
	if !errors.As(lastErr, &opErr) {
		t.Fatalf("expected OperationError, got %v", lastErr)
	}
	if opErr.OperationID != op.ID || opErr.Attempts != 2 {
		t.Fatalf("unexpected operation error: %+v", opErr)
	}
	if _, found := q.Get(op.ID); found {
		t.Fatal("exhausted operation should be removed")
	}
}

func TestPermanentErrorSkipsRetries(t *testing.T) {
	attempts := 0
	q := newTestQueue(t, queue.Options{
		MaxRetries: 5,
		Executors: map[queue.Type]queue.Executor{
			queue.TypeSave: func(context.Context, *queue.Operation, func(string, float64)) (json.RawMessage, error) {
				attempts++
				return nil, queue.Permanent(errors.New("credentials rejected"))
			},
		},
	})
	ctx := context.Background()

	errorCalls := 0
	if _, err := q.Enqueue(ctx, queue.Request{
		Type:      queue.TypeSave,
		Callbacks: queue.Callbacks{OnError: func(error) { errorCalls++ }},
	}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	outcome, err := q.ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessQueue: %v", err)
	}
	if outcome.Failed != 1 || attempts != 1 || errorCalls != 1 {
		t.Fatalf("expected one terminal failure, outcome %+v attempts %d errors %d", outcome, attempts, errorCalls)
	}
	if st := q.GetStatus(); st.Total != 0 {
		t.Fatalf("expected empty queue, got %+v", st)
	}
}

func TestUnknownTypeFailsPermanently(t *testing.T) {
	q := newTestQueue(t, queue.Options{
		Executors: map[queue.Type]queue.Executor{},
	})
	ctx := context.Background()

	var gotErr error
	if _, err := q.Enqueue(ctx, queue.Request{
		Type:      queue.TypeCustom,
		Callbacks: queue.Callbacks{OnError: func(err error) { gotErr = err }},
	}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := q.ProcessQueue(ctx); err != nil {
		t.Fatalf("ProcessQueue: %v", err)
	}
	if !errors.Is(gotErr, queue.ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", gotErr)
	}
}

func TestProcessQueueIsSingleFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	q := newTestQueue(t, queue.Options{
		Executors: map[queue.Type]queue.Executor{
			queue.TypeSave: func(context.Context, *queue.Operation, func(string, float64)) (json.RawMessage, error) {
				close(started)
				<-release
				return nil, nil
			},
		},
	})
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, queue.Request{Type: queue.TypeSave}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	type result struct {
		outcome queue.Outcome
		err     error
	}
	results := make(chan result, 2)
	go func() {
		outcome, err := q.ProcessQueue(ctx)
		results <- result{outcome, err}
	}()
	<-started
	go func() {
		outcome, err := q.ProcessQueue(ctx)
		results <- result{outcome, err}
	}()

	close(release)
	first := <-results
	second := <-results
	for _, r := range []result{first, second} {
		if r.err != nil {
			t.Fatalf("ProcessQueue: %v", r.err)
		}
		if r.outcome.Succeeded != 1 {
			t.Fatalf("both callers must share one drain outcome, got %+v", r.outcome)
		}
	}
}

type staticGate struct{ suitable bool }

func (g *staticGate) IsSuitableForCloudOperations() bool { return g.suitable }

func TestDrainSkippedWhenGateUnsuitable(t *testing.T) {
	gate := &staticGate{suitable: false}
	executed := 0
	q := newTestQueue(t, queue.Options{
		Gate: gate,
		Executors: map[queue.Type]queue.Executor{
			queue.TypeSave: func(context.Context, *queue.Operation, func(string, float64)) (json.RawMessage, error) {
				executed++
				return nil, nil
			},
		},
	})
	ctx := context.Background()

	if _, err := q.Enqueue(ctx, queue.Request{Type: queue.TypeSave}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	outcome, err := q.ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessQueue: %v", err)
	}
	if !outcome.Skipped || executed != 0 {
		t.Fatalf("expected skipped drain, outcome %+v executed %d", outcome, executed)
	}

	gate.suitable = true
	outcome, err = q.ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessQueue: %v", err)
	}
	if outcome.Succeeded != 1 {
		t.Fatalf("expected drain after gate opened, got %+v", outcome)
	}
}
