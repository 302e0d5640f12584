package resilience

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ingressQueue is the bounded FIFO of pending work items feeding a pool's
// dispatcher. Capacity is enforced with a weighted semaphore rather than a
// buffered channel so that practically infinite capacities require no
// allocation. A slot is held from successful offer until the item is
// dequeued, so the queued-but-not-started count never exceeds capacity.
type ingressQueue struct {
	slots *semaphore.Weighted

	mu    sync.Mutex
	ready *sync.Cond
	items []func()
}

func newIngressQueue(capacity int64) *ingressQueue {
	if capacity < 1 {
		capacity = 1
	}
	q := &ingressQueue{slots: semaphore.NewWeighted(capacity)}
	q.ready = sync.NewCond(&q.mu)
	return q
}

// offer appends fn to the queue if a slot frees within wait. It returns
// false on overflow or caller-context cancellation.
func (q *ingressQueue) offer(ctx context.Context, fn func(), wait time.Duration) bool {
	if !acquireWithin(ctx, q.slots, wait) {
		return false
	}
	q.push(fn)
	return true
}

// tryOffer appends fn only if a slot is free right now.
func (q *ingressQueue) tryOffer(fn func()) bool {
	if !q.slots.TryAcquire(1) {
		return false
	}
	q.push(fn)
	return true
}

func (q *ingressQueue) push(fn func()) {
	q.mu.Lock()
	q.items = append(q.items, fn)
	q.ready.Signal()
	q.mu.Unlock()
}

// take blocks until an item is available and dequeues it FIFO, releasing its
// slot.
func (q *ingressQueue) take() func() {
	q.mu.Lock()
	for len(q.items) == 0 {
		q.ready.Wait()
	}
	fn := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	q.mu.Unlock()

	q.slots.Release(1)
	return fn
}

// depth returns the number of queued-but-not-started items.
func (q *ingressQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
