// Package resilience executes user-supplied computations under a composed
// policy of retry, bulkhead isolation and time limits, with an optional
// fallback that converts terminal failure into a value.
//
// The package is built from small cooperating pieces:
//
//   - Executor: the fluent façade. Composes the pipeline
//     retry(admission(enqueue(pool, deadline(task)))) under a single
//     terminal Run.
//   - PoolRegistry: process-wide mapping from pool id to a shared
//     (WorkerPool, AdmissionGate) pair; lazy, atomic get-or-create with
//     first-writer-wins capacities.
//   - WorkerPool: bounded-concurrency execution fed from a bounded FIFO
//     ingress queue with an abort-on-overflow policy.
//   - AdmissionGate: counting permits with time-bounded acquisition,
//     bounding in-flight tasks independently of queue capacity.
//
// Admission is two-staged: a task first acquires a permit (concurrency),
// then a queue slot (pending work). Both stages share one wait budget, so
// the worst-case admission latency of an attempt is twice the configured
// admission wait. Exhausting either stage rejects the attempt with a
// BulkheadError, which participates in retry like any other failure.
//
// Time limits are cooperative. When an attempt's deadline expires the
// caller gets a TimeoutError immediately and the task's context is
// cancelled; a computation that ignores its context keeps its carrier busy
// until it finishes naturally. Interrupt-aware tasks should select on
// ctx.Done.
//
// Executors that never configure a bulkhead share a default pool whose
// concurrency, queue and wait bounds are practical infinities, so user
// tasks always run off the calling goroutine.
//
// Minimal usage:
//
//	greet := func(ctx context.Context) (string, error) { return "ok", nil }
//	value, err := resilience.New[string](greet).Run(ctx)
//
// Full composition:
//
//	value, err := resilience.New[string](callBackend).
//		WithRetry(3, 100*time.Millisecond).
//		WithBulkhead("backend", 8, 32, 250*time.Millisecond).
//		WithTimeLimit(2 * time.Second).
//		WithFallback(func(err error) (string, error) {
//			return "service degraded", nil
//		}).
//		Run(ctx)
package resilience
