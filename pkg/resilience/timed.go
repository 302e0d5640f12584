package resilience

import (
	"context"
	"time"
)

// runWithDeadline executes task on pool and waits at most limit for its
// result. On expiry the task's context is cancelled and a TimeoutError is
// returned; the library does not wait for the carrier to acknowledge, so a
// task that ignores cancellation runs to natural completion unobserved.
//
// A limit of zero or below means no deadline: the task runs inline on the
// current carrier with no submission. Otherwise the task always runs on the
// pool, because holding the timer requires a carrier separate from the one
// doing the work.
func runWithDeadline[T any](ctx context.Context, pool *WorkerPool, task Task[T], limit time.Duration) (T, error) {
	var zero T
	if limit <= 0 {
		return task(ctx)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so an abandoned task can settle after we have returned.
	out := make(chan outcome[T], 1)
	if err := pool.Submit(settle(runCtx, task, out)); err != nil {
		return zero, err
	}

	timer := time.NewTimer(limit)
	defer timer.Stop()

	select {
	case res := <-out:
		return res.value, res.err
	case <-timer.C:
		return zero, &TimeoutError{PoolID: pool.id, Limit: limit, Err: context.DeadlineExceeded}
	}
}
