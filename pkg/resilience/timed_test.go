package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeadlineNormalCompletion(t *testing.T) {
	pool := newWorkerPool("deadline-ok", 4, 16)

	value, err := runWithDeadline(context.Background(), pool, func(ctx context.Context) (string, error) {
		return "done", nil
	}, time.Second)

	require.NoError(t, err)
	assert.Equal(t, "done", value)
}

func TestDeadlinePropagatesTaskFailure(t *testing.T) {
	pool := newWorkerPool("deadline-err", 4, 16)
	errTask := errors.New("task broke")

	_, err := runWithDeadline(context.Background(), pool, func(ctx context.Context) (int, error) {
		return 0, errTask
	}, time.Second)

	assert.ErrorIs(t, err, errTask, "failures inside the deadline pass through unwrapped")
}

func TestDeadlineExpiryCancelsTask(t *testing.T) {
	pool := newWorkerPool("deadline-expired", 4, 16)

	observed := make(chan struct{}, 1)
	started := time.Now()
	_, err := runWithDeadline(context.Background(), pool, func(ctx context.Context) (string, error) {
		select {
		case <-ctx.Done():
			observed <- struct{}{}
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
			return "too late", nil
		}
	}, 50*time.Millisecond)

	elapsed := time.Since(started)
	var timedOut *TimeoutError
	require.True(t, errors.As(err, &timedOut))
	assert.Equal(t, 50*time.Millisecond, timedOut.Limit)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, elapsed, time.Second, "the caller must not wait for the task to acknowledge")

	select {
	case <-observed:
	case <-time.After(time.Second):
		t.Fatal("task context was never cancelled")
	}
}

func TestDeadlineUninterruptibleTaskDoesNotDelayCaller(t *testing.T) {
	pool := newWorkerPool("deadline-stubborn", 4, 16)

	started := time.Now()
	_, err := runWithDeadline(context.Background(), pool, func(ctx context.Context) (string, error) {
		time.Sleep(500 * time.Millisecond) // ignores cancellation on purpose
		return "eventually", nil
	}, 50*time.Millisecond)

	var timedOut *TimeoutError
	require.True(t, errors.As(err, &timedOut))
	assert.Less(t, time.Since(started), 400*time.Millisecond)
}

func TestNoLimitRunsInline(t *testing.T) {
	pool := newWorkerPool("deadline-none", 1, 1)

	// Saturate the pool: if the task were submitted instead of run inline,
	// this call could not complete.
	release := make(chan struct{})
	defer close(release)
	require.NoError(t, pool.Submit(func() { <-release }))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, pool.Submit(func() {}))

	value, err := runWithDeadline(context.Background(), pool, func(ctx context.Context) (string, error) {
		return "inline", nil
	}, 0)

	require.NoError(t, err)
	assert.Equal(t, "inline", value)
}

func TestDeadlineLateRejectionBecomesCapacityError(t *testing.T) {
	pool := newWorkerPool("deadline-full", 1, 1)

	release := make(chan struct{})
	defer close(release)
	require.NoError(t, pool.Submit(func() { <-release }))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, pool.Submit(func() {}))

	_, err := runWithDeadline(context.Background(), pool, func(ctx context.Context) (string, error) {
		return "never runs", nil
	}, time.Second)

	var rejected *BulkheadError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, ReasonQueueFull, rejected.Reason)
}
