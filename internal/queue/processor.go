package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"savesync/internal/logging"
)

// Outcome summarizes one drain of the queue. Concurrent ProcessQueue
// callers share the outcome of the single in-flight drain.
type Outcome struct {
	Processed int
	Succeeded int
	Failed    int
	Requeued  int
	Skipped   bool
}

type drainRun struct {
	done    chan struct{}
	outcome Outcome
	err     error
}

type execResult int

const (
	resultSucceeded execResult = iota
	resultFailed
	resultRequeued
)

// ProcessQueue drains eligible operations. Only one drain runs at a time;
// callers that arrive while one is in flight wait for it and receive its
// outcome rather than starting another.
func (q *Queue) ProcessQueue(ctx context.Context) (Outcome, error) {
	ctx = ensureContext(ctx)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return Outcome{}, ErrClosed
	}
	if run := q.drain; run != nil {
		q.mu.Unlock()
		select {
		case <-run.done:
			return run.outcome, run.err
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		}
	}
	run := &drainRun{done: make(chan struct{})}
	q.drain = run
	q.mu.Unlock()
	q.notifyListeners()

	outcome, err := q.drainLoop(ctx)

	q.mu.Lock()
	run.outcome, run.err = outcome, err
	q.drain = nil
	q.mu.Unlock()
	close(run.done)
	q.notifyListeners()
	return outcome, err
}

func (q *Queue) drainLoop(ctx context.Context) (Outcome, error) {
	var outcome Outcome

	if q.gate != nil && !q.gate.IsSuitableForCloudOperations() {
		outcome.Skipped = true
		q.logger.Debug("drain skipped; conditions unsuitable for cloud operations")
		return outcome, nil
	}

	sem := semaphore.NewWeighted(int64(q.concurrency))
	for {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
		if q.gate != nil && !q.gate.IsSuitableForCloudOperations() {
			q.logger.Info("drain paused; connectivity no longer suitable",
				logging.String(logging.FieldEventType, "drain_paused"),
				logging.String(logging.FieldImpact, "remaining operations stay queued"),
			)
			break
		}

		batch := q.claimEligible()
		if len(batch) == 0 {
			break
		}

		results := make(chan execResult, len(batch))
		var wg sync.WaitGroup
		launched := 0
		for _, op := range batch {
			// Acquiring before launch preserves priority order across
			// the bounded workers.
			if err := sem.Acquire(ctx, 1); err != nil {
				for _, rest := range batch[launched:] {
					q.releaseClaim(rest.ID)
				}
				wg.Wait()
				close(results)
				q.collect(results, &outcome)
				return outcome, err
			}
			launched++
			wg.Add(1)
			go func(op *Operation) {
				defer wg.Done()
				defer sem.Release(1)
				results <- q.execute(ctx, op)
			}(op)
		}
		wg.Wait()
		close(results)
		q.collect(results, &outcome)
	}
	return outcome, nil
}

func (q *Queue) collect(results <-chan execResult, outcome *Outcome) {
	for r := range results {
		outcome.Processed++
		switch r {
		case resultSucceeded:
			outcome.Succeeded++
		case resultFailed:
			outcome.Failed++
		case resultRequeued:
			outcome.Requeued++
		}
	}
}

// claimEligible marks every dispatchable operation in flight and returns
// them in dispatch order.
func (q *Queue) claimEligible() []*Operation {
	now := q.clk.Now()
	q.mu.Lock()
	defer q.mu.Unlock()

	var batch []*Operation
	for _, op := range q.ops {
		if _, busy := q.inFlight[op.ID]; busy {
			continue
		}
		if !op.eligibleAt(now) {
			continue
		}
		batch = append(batch, op)
	}
	sortOperations(batch)
	for _, op := range batch {
		q.inFlight[op.ID] = struct{}{}
	}
	return batch
}

func sortOperations(ops []*Operation) {
	for i := 1; i < len(ops); i++ {
		for j := i; j > 0 && operationBefore(ops[j], ops[j-1]); j-- {
			ops[j], ops[j-1] = ops[j-1], ops[j]
		}
	}
}

func operationBefore(a, b *Operation) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func (q *Queue) releaseClaim(id string) {
	q.mu.Lock()
	delete(q.inFlight, id)
	q.mu.Unlock()
}

func (q *Queue) execute(ctx context.Context, op *Operation) execResult {
	q.mu.Lock()
	exec, ok := q.executors[op.Type]
	cb := q.handles[op.ID]
	q.mu.Unlock()

	if !ok {
		return q.finishFailure(ctx, op.ID, fmt.Errorf("%w: %s", ErrUnknownType, op.Type), true)
	}

	progress := func(stage string, percent float64) {
		if cb.OnProgress != nil {
			cb.OnProgress(stage, percent)
		}
	}

	snapshot := *op
	result, err := exec(ctx, &snapshot, progress)
	if err == nil {
		q.finishSuccess(ctx, op.ID, cb, result)
		return resultSucceeded
	}
	if IsPermanent(err) {
		return q.finishFailure(ctx, op.ID, err, true)
	}
	return q.finishFailure(ctx, op.ID, err, false)
}

func (q *Queue) finishSuccess(ctx context.Context, id string, cb Callbacks, result []byte) {
	q.mu.Lock()
	op := q.ops[id]
	delete(q.ops, id)
	delete(q.handles, id)
	delete(q.inFlight, id)
	q.mu.Unlock()

	if err := q.store.Delete(ctx, id); err != nil {
		q.logger.Warn("failed to delete completed operation",
			logging.Error(err),
			logging.String(logging.FieldOperationID, id),
		)
	}
	if op != nil {
		q.logger.Info("operation completed",
			logging.String(logging.FieldOperationID, id),
			logging.String(logging.FieldOpType, string(op.Type)),
			logging.Int("attempts", op.RetryCount+1),
		)
	}
	if cb.OnSuccess != nil {
		cb.OnSuccess(result)
	}
	q.notifyListeners()
}

// finishFailure handles a failed attempt. Retryable failures are requeued
// with capped exponential backoff; permanent and exhausted operations are
// removed, and their error callback fires exactly once.
func (q *Queue) finishFailure(ctx context.Context, id string, cause error, permanent bool) execResult {
	q.mu.Lock()
	op := q.ops[id]
	if op == nil {
		delete(q.inFlight, id)
		q.mu.Unlock()
		return resultFailed
	}
	op.RetryCount++

	if permanent || op.Exhausted() {
		cb := q.handles[id]
		attempts := op.RetryCount
		opType := op.Type
		delete(q.ops, id)
		delete(q.handles, id)
		delete(q.inFlight, id)
		q.mu.Unlock()

		if err := q.store.Delete(ctx, id); err != nil {
			q.logger.Warn("failed to delete exhausted operation",
				logging.Error(err),
				logging.String(logging.FieldOperationID, id),
			)
		}
		q.logger.Error("operation failed permanently",
			logging.Error(cause),
			logging.String(logging.FieldOperationID, id),
			logging.String(logging.FieldOpType, string(opType)),
			logging.Int("attempts", attempts),
			logging.String(logging.FieldEventType, "operation_failed"),
			logging.String(logging.FieldErrorHint, "inspect the provider error and re-enqueue if appropriate"),
			logging.String(logging.FieldImpact, "queued data was not synchronized"),
		)
		if cb.OnError != nil {
			cb.OnError(&OperationError{OperationID: id, Type: opType, Attempts: attempts, Err: cause})
		}
		q.notifyListeners()
		return resultFailed
	}

	delay := backoffDelay(q.retryDelay, q.maxRetryDelay, op.RetryCount)
	next := q.clk.Now().Add(delay)
	op.NextAttemptAt = &next
	delete(q.inFlight, id)
	clone := *op
	q.mu.Unlock()

	if err := q.store.Update(ctx, &clone); err != nil {
		q.logger.Warn("failed to persist retry bookkeeping",
			logging.Error(err),
			logging.String(logging.FieldOperationID, id),
		)
	}
	q.logger.Warn("operation failed; retry scheduled",
		logging.Error(cause),
		logging.String(logging.FieldOperationID, id),
		logging.String(logging.FieldOpType, string(clone.Type)),
		logging.Int("retry_count", clone.RetryCount),
		logging.Duration("delay", delay),
	)
	q.scheduleRedrain(delay)
	q.notifyListeners()
	return resultRequeued
}

// backoffDelay computes base * 2^(retryCount-1), capped at max.
func backoffDelay(base, max time.Duration, retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	delay := base
	for i := 1; i < retryCount; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

// scheduleRedrain arms a timer that drains the queue again once the
// earliest scheduled retry comes due. A single timer is kept; each drain
// reschedules as needed.
func (q *Queue) scheduleRedrain(delay time.Duration) {
	if !q.autoRetry {
		return
	}
	q.mu.Lock()
	if q.closed || q.retryTimer != nil {
		q.mu.Unlock()
		return
	}
	q.retryTimer = q.clk.AfterFunc(delay, q.redrainDue)
	q.mu.Unlock()
}

func (q *Queue) redrainDue() {
	q.mu.Lock()
	q.retryTimer = nil
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return
	}
	if q.gate != nil && !q.gate.IsSuitableForCloudOperations() {
		return
	}
	go func() {
		_, _ = q.ProcessQueue(context.Background())
	}()
}
