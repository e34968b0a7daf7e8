package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"savesync/internal/clock"
	"savesync/internal/events"
	"savesync/internal/logging"
)

// evictionPriorityCeiling bounds which operations may be dropped to make
// room at capacity. Anything above it is never evicted.
const evictionPriorityCeiling = 1

// Executor performs the remote work for one operation type.
type Executor func(ctx context.Context, op *Operation, progress func(stage string, percent float64)) (json.RawMessage, error)

// Gate answers whether conditions currently permit cloud operations. The
// network monitor satisfies it.
type Gate interface {
	IsSuitableForCloudOperations() bool
}

// Options configures a Queue. Store is required; zero tunables fall back to
// conservative defaults.
type Options struct {
	Store         *Store
	Clock         clock.Clock
	Logger        *slog.Logger
	MaxQueueSize  int
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	Concurrency   int
	Executors     map[Type]Executor
	Gate          Gate
	AutoRetry     bool
}

// Queue is the durable offline operation queue. All mutations are written
// through to the store before listeners observe them.
type Queue struct {
	store         *Store
	clk           clock.Clock
	logger        *slog.Logger
	maxSize       int
	maxRetries    int
	retryDelay    time.Duration
	maxRetryDelay time.Duration
	concurrency   int
	executors     map[Type]Executor
	gate          Gate
	autoRetry     bool

	hub *events.Hub[Status]

	mu       sync.Mutex
	ops      map[string]*Operation
	handles  map[string]Callbacks
	inFlight map[string]struct{}
	closed   bool

	drain      *drainRun
	retryTimer clock.Timer
}

// New constructs a Queue and reloads any operations persisted by previous
// runs. Reloaded operations carry no callbacks.
func New(opts Options) (*Queue, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("queue store is required")
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.MaxQueueSize <= 0 {
		opts.MaxQueueSize = 100
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if opts.MaxRetryDelay < opts.RetryDelay {
		opts.MaxRetryDelay = 30 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	q := &Queue{
		store:         opts.Store,
		clk:           clk,
		logger:        logging.NewComponentLogger(logger, "queue"),
		maxSize:       opts.MaxQueueSize,
		maxRetries:    opts.MaxRetries,
		retryDelay:    opts.RetryDelay,
		maxRetryDelay: opts.MaxRetryDelay,
		concurrency:   opts.Concurrency,
		executors:     opts.Executors,
		gate:          opts.Gate,
		autoRetry:     opts.AutoRetry,
		hub:           events.NewHub[Status](),
		ops:           make(map[string]*Operation),
		handles:       make(map[string]Callbacks),
		inFlight:      make(map[string]struct{}),
	}

	persisted, err := opts.Store.LoadAll(context.Background())
	if err != nil {
		return nil, fmt.Errorf("reload queue: %w", err)
	}
	for _, op := range persisted {
		q.ops[op.ID] = op
	}
	if len(persisted) > 0 {
		q.logger.Info("restored persisted operations",
			logging.Int("count", len(persisted)),
		)
	}
	return q, nil
}

// Request describes one operation to enqueue.
type Request struct {
	Type       Type
	Payload    json.RawMessage
	Metadata   Metadata
	Priority   int
	MaxRetries int
	Callbacks  Callbacks
}

// Enqueue persists a new operation, evicting the oldest low-priority entry
// if the queue is at capacity. It returns ErrQueueFull when nothing is
// evictable.
func (q *Queue) Enqueue(ctx context.Context, req Request) (*Operation, error) {
	if _, ok := ParseType(string(req.Type)); !ok {
		return nil, fmt.Errorf("enqueue: unknown operation type %q", req.Type)
	}
	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = q.maxRetries
	}

	op := &Operation{
		ID:         uuid.NewString(),
		Type:       req.Type,
		CreatedAt:  q.clk.Now().UTC(),
		MaxRetries: maxRetries,
		Priority:   req.Priority,
		Payload:    req.Payload,
		Metadata:   req.Metadata,
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrClosed
	}

	var evicted *Operation
	if len(q.ops) >= q.maxSize {
		evicted = q.evictableLocked()
		if evicted == nil {
			q.mu.Unlock()
			return nil, fmt.Errorf("enqueue %s: %w", req.Type, ErrQueueFull)
		}
	}

	// Persist before touching in-memory state: a failed insert must leave
	// the queue untouched, eviction candidate included, and the operation
	// must not be claimable by a concurrent drain until it is durable.
	if err := q.store.Insert(ctx, op); err != nil {
		q.mu.Unlock()
		return nil, fmt.Errorf("persist operation: %w", err)
	}

	var evictedCallbacks Callbacks
	if evicted != nil {
		evictedCallbacks = q.handles[evicted.ID]
		delete(q.ops, evicted.ID)
		delete(q.handles, evicted.ID)
	}
	q.ops[op.ID] = op
	if req.Callbacks.OnSuccess != nil || req.Callbacks.OnError != nil || req.Callbacks.OnProgress != nil {
		q.handles[op.ID] = req.Callbacks
	}
	q.mu.Unlock()

	if evicted != nil {
		if err := q.store.Delete(ctx, evicted.ID); err != nil {
			q.logger.Warn("failed to delete evicted operation",
				logging.Error(err),
				logging.String(logging.FieldOperationID, evicted.ID),
			)
		}
		q.logger.Warn("evicted oldest low-priority operation to make room",
			logging.String(logging.FieldOperationID, evicted.ID),
			logging.String(logging.FieldOpType, string(evicted.Type)),
			logging.String(logging.FieldEventType, "queue_eviction"),
			logging.String(logging.FieldErrorHint, "raise max_queue_size or drain more often"),
			logging.String(logging.FieldImpact, "one queued operation was dropped"),
		)
		if evictedCallbacks.OnError != nil {
			evictedCallbacks.OnError(fmt.Errorf("operation %s: %w", evicted.ID, ErrEvicted))
		}
	}

	q.logger.Info("operation enqueued",
		logging.String(logging.FieldOperationID, op.ID),
		logging.String(logging.FieldOpType, string(op.Type)),
		logging.Int("priority", op.Priority),
		logging.String(logging.FieldOwnerID, op.Metadata.OwnerID),
	)
	q.notifyListeners()
	return op, nil
}

// evictableLocked returns the oldest operation at or below the eviction
// priority ceiling that is not currently executing.
func (q *Queue) evictableLocked() *Operation {
	var candidate *Operation
	for _, op := range q.ops {
		if op.Priority > evictionPriorityCeiling {
			continue
		}
		if _, busy := q.inFlight[op.ID]; busy {
			continue
		}
		if candidate == nil || op.CreatedAt.Before(candidate.CreatedAt) {
			candidate = op
		}
	}
	return candidate
}

// Dequeue removes an operation that has not started executing.
func (q *Queue) Dequeue(ctx context.Context, id string) (bool, error) {
	q.mu.Lock()
	op, ok := q.ops[id]
	if !ok {
		q.mu.Unlock()
		return false, nil
	}
	if _, busy := q.inFlight[id]; busy {
		q.mu.Unlock()
		return false, fmt.Errorf("dequeue %s: operation is executing", id)
	}
	delete(q.ops, id)
	delete(q.handles, id)
	q.mu.Unlock()

	if err := q.store.Delete(ctx, op.ID); err != nil {
		return false, fmt.Errorf("delete operation: %w", err)
	}
	q.notifyListeners()
	return true, nil
}

// Get returns a copy of the operation with the given identifier.
func (q *Queue) Get(id string) (*Operation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	op, ok := q.ops[id]
	if !ok {
		return nil, false
	}
	clone := *op
	return &clone, true
}

// List returns all operations in dispatch order: priority descending, then
// oldest first.
func (q *Queue) List() []*Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sortedLocked(nil)
}

// ListByType returns operations of one type in dispatch order.
func (q *Queue) ListByType(t Type) []*Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sortedLocked(func(op *Operation) bool { return op.Type == t })
}

// ListByOwner returns operations whose metadata names the given owner.
func (q *Queue) ListByOwner(ownerID string) []*Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sortedLocked(func(op *Operation) bool { return op.Metadata.OwnerID == ownerID })
}

func (q *Queue) sortedLocked(keep func(*Operation) bool) []*Operation {
	out := make([]*Operation, 0, len(q.ops))
	for _, op := range q.ops {
		if keep != nil && !keep(op) {
			continue
		}
		clone := *op
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// GetStatus recomputes a queue health snapshot.
func (q *Queue) GetStatus() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.statusLocked()
}

func (q *Queue) statusLocked() Status {
	st := Status{
		Total:        len(q.ops),
		Processing:   len(q.inFlight),
		IsProcessing: q.drain != nil,
	}
	for _, op := range q.ops {
		if _, busy := q.inFlight[op.ID]; busy {
			continue
		}
		if op.Failed() {
			st.Failed++
		} else {
			st.Pending++
		}
	}
	return st
}

// Clear removes every operation, including failed ones.
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	if len(q.inFlight) > 0 {
		q.mu.Unlock()
		return fmt.Errorf("clear: %d operation(s) executing", len(q.inFlight))
	}
	q.ops = make(map[string]*Operation)
	q.handles = make(map[string]Callbacks)
	q.mu.Unlock()

	if err := q.store.DeleteAll(ctx); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	q.logger.Info("queue cleared")
	q.notifyListeners()
	return nil
}

// ClearFailed removes operations that have failed at least once.
func (q *Queue) ClearFailed(ctx context.Context) (int, error) {
	q.mu.Lock()
	removed := 0
	for id, op := range q.ops {
		if _, busy := q.inFlight[id]; busy {
			continue
		}
		if op.Failed() {
			delete(q.ops, id)
			delete(q.handles, id)
			removed++
		}
	}
	q.mu.Unlock()

	if err := q.store.DeleteFailed(ctx); err != nil {
		return removed, fmt.Errorf("clear failed operations: %w", err)
	}
	if removed > 0 {
		q.notifyListeners()
	}
	return removed, nil
}

// RetryFailed resets the retry bookkeeping of failed operations so the next
// drain attempts them immediately.
func (q *Queue) RetryFailed(ctx context.Context) (int, error) {
	q.mu.Lock()
	var reset []*Operation
	for id, op := range q.ops {
		if _, busy := q.inFlight[id]; busy {
			continue
		}
		if op.Failed() {
			op.RetryCount = 0
			op.NextAttemptAt = nil
			clone := *op
			reset = append(reset, &clone)
		}
	}
	q.mu.Unlock()

	for _, op := range reset {
		if err := q.store.Update(ctx, op); err != nil {
			return len(reset), fmt.Errorf("reset operation %s: %w", op.ID, err)
		}
	}
	if len(reset) > 0 {
		q.notifyListeners()
	}
	return len(reset), nil
}

// AddListener registers a status listener and returns its unsubscribe
// function. Listeners run synchronously after every mutation.
func (q *Queue) AddListener(fn func(Status)) func() {
	return q.hub.Subscribe(fn)
}

func (q *Queue) notifyListeners() {
	q.hub.Publish(q.GetStatus())
}

// Close stops retry scheduling and releases listeners. The store is owned
// by the caller and stays open.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	timer := q.retryTimer
	q.retryTimer = nil
	q.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	q.hub.Close()
	return nil
}
