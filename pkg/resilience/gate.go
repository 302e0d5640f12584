package resilience

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// AdmissionGate bounds the number of in-flight tasks attached to a pool. It
// is a counting permit set with time-bounded acquisition; acquisition order
// is not fair and starvation avoidance is not promised.
type AdmissionGate struct {
	sem *semaphore.Weighted
}

// NewAdmissionGate creates a gate with the given number of permits.
func NewAdmissionGate(permits int64) *AdmissionGate {
	if permits < 1 {
		permits = 1
	}
	return &AdmissionGate{sem: semaphore.NewWeighted(permits)}
}

// TryAcquire obtains one permit, blocking up to wait. It returns false if no
// permit became available in time or the caller's context was cancelled.
// Every true return must be paired with exactly one Release.
func (g *AdmissionGate) TryAcquire(ctx context.Context, wait time.Duration) bool {
	return acquireWithin(ctx, g.sem, wait)
}

// Release returns one permit to the gate.
func (g *AdmissionGate) Release() {
	g.sem.Release(1)
}

// acquireWithin acquires one unit from sem, waiting at most wait. A wait of
// zero degenerates to a non-blocking attempt. The timer is armed directly
// rather than through context.WithTimeout so that "practically infinite"
// waits (time.Duration math.MaxInt64) do not overflow deadline arithmetic.
func acquireWithin(ctx context.Context, sem *semaphore.Weighted, wait time.Duration) bool {
	if sem.TryAcquire(1) {
		return true
	}
	if wait <= 0 {
		return false
	}

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	timer := time.AfterFunc(wait, cancel)
	defer timer.Stop()

	return sem.Acquire(waitCtx, 1) == nil
}
