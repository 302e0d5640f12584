package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryReturnsFirstSuccess(t *testing.T) {
	calls := 0
	value, err := runWithRetry(context.Background(), 3, 0, func(n int) (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", value)
	assert.Equal(t, 1, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	errFirst := errors.New("first")
	errLast := errors.New("last")

	calls := 0
	_, err := runWithRetry(context.Background(), 3, 0, func(n int) (string, error) {
		calls++
		assert.Equal(t, calls, n, "the counter increments before the attempt")
		if calls < 3 {
			return "", errFirst
		}
		return "", errLast
	})

	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, errLast, "only the last failure surfaces")
}

func TestRetrySucceedsMidway(t *testing.T) {
	calls := 0
	value, err := runWithRetry(context.Background(), 5, 0, func(n int) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, value)
	assert.Equal(t, 3, calls)
}

func TestRetrySleepsBetweenAttempts(t *testing.T) {
	started := time.Now()
	_, err := runWithRetry(context.Background(), 3, 10*time.Millisecond, func(n int) (string, error) {
		return "", errors.New("always")
	})

	require.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(started), 20*time.Millisecond, "two sleeps separate three attempts")
}

func TestRetryCancelledSleepProceedsWithNextAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	calls := 0
	started := time.Now()
	_, err := runWithRetry(ctx, 3, 10*time.Second, func(n int) (string, error) {
		calls++
		return "", errors.New("always")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls, "cancellation cuts the sleep short, it does not abort the loop")
	assert.Less(t, time.Since(started), 2*time.Second)
}
