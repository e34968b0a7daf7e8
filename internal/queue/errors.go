package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueFull is returned when the queue is at capacity and no
	// low-priority operation can be evicted to make room.
	ErrQueueFull = errors.New("queue full and no evictable low-priority operation")

	// ErrUnknownType is returned when no executor is registered for an
	// operation's type.
	ErrUnknownType = errors.New("no executor registered for operation type")

	// ErrClosed is returned for operations on a destroyed queue.
	ErrClosed = errors.New("queue closed")

	// ErrEvicted is delivered to the error callback of an operation that
	// was dropped to make room at capacity.
	ErrEvicted = errors.New("evicted from full queue")
)

// permanentError marks an executor failure as non-retryable; the processor
// removes the operation without consuming further retry budget.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the processor will not retry it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err carries the non-retryable classification.
func IsPermanent(err error) bool {
	var marker *permanentError
	return errors.As(err, &marker)
}

// OperationError is the normalized wrapper surfaced through OnError when an
// operation fails for good.
type OperationError struct {
	OperationID string
	Type        Type
	Attempts    int
	Err         error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("operation %s (%s) failed after %d attempt(s): %v", e.OperationID, e.Type, e.Attempts, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }
