package resilience

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/fortresslabs/bastion/pkg/common/logging"
)

// Defaults applied by Run when no bulkhead is configured. The default pool
// is shared across every caller that never configured one; its bounds are
// the host's practical infinities and are not special-cased anywhere.
const (
	DefaultPoolID = "Default-Pool-Id"

	DefaultMaxConcurrent int64 = math.MaxInt64
	DefaultMaxQueue      int64 = math.MaxInt64

	DefaultAdmissionWait = time.Duration(math.MaxInt64)
)

// Task is a user-supplied computation. The context is the cancellation
// carrier: it is cancelled when a configured time limit expires, and tasks
// that ignore it run to natural completion without further observation.
type Task[T any] func(ctx context.Context) (T, error)

// Fallback converts the last attempt failure into a value. It is invoked at
// most once per Run, only after the final attempt has failed; an error it
// returns is handed to the caller unchanged.
type Fallback[T any] func(err error) (T, error)

type outcome[T any] struct {
	value T
	err   error
}

// settle wraps task into a pool work item that always delivers exactly one
// outcome, converting panics into errors so the awaiting caller settles on
// every exit path.
func settle[T any](ctx context.Context, task Task[T], out chan<- outcome[T]) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				out <- outcome[T]{value: zero, err: fmt.Errorf("task panicked: %v", r)}
			}
		}()
		value, err := task(ctx)
		out <- outcome[T]{value: value, err: err}
	}
}

type poolSpec struct {
	id            string
	maxConcurrent int64
	maxQueue      int64
	maxWait       time.Duration
	attachOnly    bool
}

// Executor composes retry, bulkhead isolation, a time limit and a fallback
// around a single task. It is a fluent builder: configuration methods return
// the receiver, and the configuration is fixed once Run begins.
//
//	value, err := resilience.New[string](fetchQuote).
//		WithRetry(3, 10*time.Millisecond).
//		WithBulkhead("quotes", 4, 16, 50*time.Millisecond).
//		WithTimeLimit(100 * time.Millisecond).
//		WithFallback(func(error) (string, error) { return "no quote", nil }).
//		Run(ctx)
//
// An Executor is not safe for concurrent configuration; configure it on one
// goroutine, then call Run. Run itself may be called repeatedly.
type Executor[T any] struct {
	task      Task[T]
	fallback  Fallback[T]
	attempts  int
	delay     time.Duration
	timeLimit time.Duration
	pool      *poolSpec
	registry  *PoolRegistry
	logger    *logging.Logger
}

// New starts a configuration around task. Without further configuration Run
// performs a single attempt on the shared default pool with no deadline and
// no fallback.
func New[T any](task Task[T]) *Executor[T] {
	return &Executor[T]{
		task:     task,
		attempts: 1,
		registry: DefaultRegistry(),
		logger:   logging.GetGlobalLogger().WithComponent("executor"),
	}
}

// WithRegistry directs the executor at a specific pool registry instead of
// the process-wide one. Intended for tests and embedders that need isolated
// pool namespaces.
func (e *Executor[T]) WithRegistry(registry *PoolRegistry) *Executor[T] {
	e.registry = registry
	return e
}

// WithFallback records the fallback handler.
func (e *Executor[T]) WithFallback(fallback Fallback[T]) *Executor[T] {
	e.fallback = fallback
	return e
}

// WithRetry records the retry policy: up to attempts total invocations with
// a fixed delay between them. Attempts below one clamp to one; negative
// delays clamp to zero.
func (e *Executor[T]) WithRetry(attempts int, delay time.Duration) *Executor[T] {
	if attempts < 1 {
		attempts = 1
	}
	if delay < 0 {
		delay = 0
	}
	e.attempts = attempts
	e.delay = delay
	return e
}

// WithBulkhead get-or-creates the pool entry for poolID with the given
// concurrency ceiling, queue capacity and admission wait. If the id already
// exists the original capacities are kept; the first writer wins.
func (e *Executor[T]) WithBulkhead(poolID string, maxConcurrent, maxQueue int, maxWait time.Duration) *Executor[T] {
	if maxWait < 0 {
		maxWait = 0
	}
	e.pool = &poolSpec{
		id:            poolID,
		maxConcurrent: int64(maxConcurrent),
		maxQueue:      int64(maxQueue),
		maxWait:       maxWait,
	}
	return e
}

// WithExistingBulkhead attaches to a pool some earlier caller created with
// WithBulkhead. Run fails with a PoolNotFoundError if the id is absent; the
// admission wait is the unbounded default.
func (e *Executor[T]) WithExistingBulkhead(poolID string) *Executor[T] {
	e.pool = &poolSpec{
		id:         poolID,
		maxWait:    DefaultAdmissionWait,
		attachOnly: true,
	}
	return e
}

// WithTimeLimit records the deadline for each attempt. A limit of zero or
// below disables it.
func (e *Executor[T]) WithTimeLimit(limit time.Duration) *Executor[T] {
	e.timeLimit = limit
	return e
}

// Run executes the task under the composed policy and blocks the caller
// until the pipeline settles. It returns the task's value, the fallback's
// value after the final attempt fails, or the last failure when no fallback
// is configured.
func (e *Executor[T]) Run(ctx context.Context) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}

	spec := e.pool
	if spec == nil {
		spec = &poolSpec{
			id:            DefaultPoolID,
			maxConcurrent: DefaultMaxConcurrent,
			maxQueue:      DefaultMaxQueue,
			maxWait:       DefaultAdmissionWait,
		}
	}

	var entry *PoolEntry
	if spec.attachOnly {
		found, err := e.registry.Get(spec.id)
		if err != nil {
			return zero, err
		}
		entry = found
	} else {
		entry = e.registry.GetOrCreate(spec.id, spec.maxConcurrent, spec.maxQueue)
	}

	inner := e.task
	if e.timeLimit > 0 {
		task, pool, limit := e.task, entry.Pool, e.timeLimit
		inner = func(ctx context.Context) (T, error) {
			return runWithDeadline(ctx, pool, task, limit)
		}
	}

	value, err := runWithRetry(ctx, e.attempts, e.delay, func(n int) (T, error) {
		v, attemptErr := e.runAttempt(ctx, entry, spec.maxWait, inner)
		if attemptErr != nil && e.logger.IsEnabled(logging.DebugLevel) {
			e.logger.Debug("attempt failed", map[string]interface{}{
				"pool_id": entry.ID,
				"attempt": n,
				"error":   attemptErr.Error(),
			})
		}
		return v, attemptErr
	})
	if err == nil {
		return value, nil
	}

	if e.fallback != nil {
		return e.fallback(err)
	}
	return zero, err
}

// runAttempt performs one admission-and-execute cycle: acquire a permit,
// timed-enqueue the work item, await its outcome unconditionally. The permit
// is released in a deferred scope so every exit path pairs the acquire with
// exactly one release.
func (e *Executor[T]) runAttempt(ctx context.Context, entry *PoolEntry, maxWait time.Duration, inner Task[T]) (T, error) {
	var zero T

	if !entry.Gate.TryAcquire(ctx, maxWait) {
		return zero, &BulkheadError{PoolID: entry.ID, Reason: ReasonWaitTimeout}
	}
	defer entry.Gate.Release()

	out := make(chan outcome[T], 1)
	if !entry.Pool.TryEnqueue(ctx, settle(ctx, inner, out), maxWait) {
		return zero, &BulkheadError{PoolID: entry.ID, Reason: ReasonQueueFull}
	}

	// No second deadline here: when a time limit is configured the inner
	// callable already encodes it.
	res := <-out
	return res.value, res.err
}
