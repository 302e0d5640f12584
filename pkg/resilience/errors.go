package resilience

import (
	"fmt"
	"time"
)

// BulkheadReason identifies which admission stage rejected a task.
type BulkheadReason string

const (
	// ReasonWaitTimeout means no admission permit became available within
	// the admission wait.
	ReasonWaitTimeout BulkheadReason = "wait timeout"

	// ReasonQueueFull means no queue slot became available within the
	// admission wait, or the pool rejected a late submission outright.
	ReasonQueueFull BulkheadReason = "capacity exceeded"
)

// BulkheadError reports that a task was rejected by a bulkhead before it
// could start. It is retryable: the retry loop treats it like any other
// attempt failure.
type BulkheadError struct {
	PoolID string
	Reason BulkheadReason
	Err    error
}

// Error implements the error interface.
func (e *BulkheadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bulkhead %q rejected task: %s: %v", e.PoolID, e.Reason, e.Err)
	}
	return fmt.Sprintf("bulkhead %q rejected task: %s", e.PoolID, e.Reason)
}

// Unwrap returns the underlying cause, if any.
func (e *BulkheadError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that a task exceeded its configured time limit. The
// task's context has been cancelled; the computation itself may still be
// running if it ignores cancellation.
type TimeoutError struct {
	PoolID string
	Limit  time.Duration
	Err    error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task on pool %q exceeded time limit %v", e.PoolID, e.Limit)
}

// Unwrap returns the originating timeout condition.
func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// PoolNotFoundError reports an attempt to attach to a pool id that was never
// created. It indicates a programming error (attach before create) and is
// returned by Run before any attempt starts; it never participates in retry.
type PoolNotFoundError struct {
	PoolID string
}

// Error implements the error interface.
func (e *PoolNotFoundError) Error() string {
	return fmt.Sprintf("no bulkhead pool registered under id %q", e.PoolID)
}
