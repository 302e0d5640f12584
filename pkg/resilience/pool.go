package resilience

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/fortresslabs/bastion/pkg/common/logging"
)

// WorkerPool executes submitted work items on carrier goroutines, bounded by
// a concurrency ceiling and fed from a bounded FIFO ingress queue.
//
// A single dispatcher goroutine dequeues items in FIFO order, acquires one of
// the pool's execution slots, and hands the item to its own carrier. A carrier
// is started per item and exits when the item returns; the pool itself has no
// stop API and lives for the remainder of the process.
type WorkerPool struct {
	id            string
	maxConcurrent int64
	queue         *ingressQueue
	slots         *semaphore.Weighted
	logger        *logging.Logger

	running   atomic.Int64
	completed atomic.Int64
}

func newWorkerPool(id string, maxConcurrent, maxQueue int64) *WorkerPool {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	p := &WorkerPool{
		id:            id,
		maxConcurrent: maxConcurrent,
		queue:         newIngressQueue(maxQueue),
		slots:         semaphore.NewWeighted(maxConcurrent),
		logger:        logging.GetGlobalLogger().WithComponent("pool"),
	}
	go p.dispatch()
	return p
}

// ID returns the pool identifier.
func (p *WorkerPool) ID() string {
	return p.id
}

// TryEnqueue offers fn to the ingress queue, blocking up to wait for a slot.
// It returns false if the queue stayed full for the whole wait or the
// caller's context was cancelled.
func (p *WorkerPool) TryEnqueue(ctx context.Context, fn func(), wait time.Duration) bool {
	return p.queue.offer(ctx, fn, wait)
}

// Submit offers fn to the ingress queue without waiting. A full queue yields
// a BulkheadError with reason "capacity exceeded" (the abort policy).
func (p *WorkerPool) Submit(fn func()) error {
	if !p.queue.tryOffer(fn) {
		return &BulkheadError{PoolID: p.id, Reason: ReasonQueueFull}
	}
	return nil
}

func (p *WorkerPool) dispatch() {
	for {
		// The slot is claimed before the dequeue; taking an item first would
		// free its queue slot while the item sat waiting for a carrier,
		// silently growing the effective queue capacity by one.
		//
		// Background context: an execution slot always frees eventually, and
		// the pool has no shutdown to race against.
		_ = p.slots.Acquire(context.Background(), 1)
		fn := p.queue.take()
		go p.runItem(fn)
	}
}

func (p *WorkerPool) runItem(fn func()) {
	defer p.slots.Release(1)
	defer p.completed.Add(1)
	defer p.running.Add(-1)
	p.running.Add(1)

	defer func() {
		// Work items delivered by the executor recover their own panics and
		// settle the waiter; this is the backstop for raw submissions.
		if r := recover(); r != nil {
			p.logger.WithField("pool_id", p.id).WithField("panic", r).Error("work item panicked")
		}
	}()

	fn()
}

// PoolStats is a point-in-time snapshot of pool activity.
type PoolStats struct {
	MaxConcurrent int64
	Running       int64
	Queued        int
	Completed     int64
}

// Stats returns a snapshot of the pool's current activity.
func (p *WorkerPool) Stats() PoolStats {
	return PoolStats{
		MaxConcurrent: p.maxConcurrent,
		Running:       p.running.Load(),
		Queued:        p.queue.depth(),
		Completed:     p.completed.Load(),
	}
}
