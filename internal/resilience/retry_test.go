package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	}, 3, time.Millisecond, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryExhaustsAttemptsAndReturnsLastError(t *testing.T) {
	calls := 0
	errBoom := errors.New("boom")

	var observed []int
	err := Retry(context.Background(), func(ctx context.Context) error {
		calls++
		return errBoom
	}, 3, time.Millisecond, func(attempt int, err error) {
		observed = append(observed, attempt)
	})

	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 3, calls)
	// 最后一次失败后不再等待,也不再通知观察者
	assert.Equal(t, []int{1, 2}, observed)
}

func TestRetryRecoversMidway(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, 5, time.Millisecond, nil)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryLinearBackoff(t *testing.T) {
	start := time.Now()
	base := 10 * time.Millisecond

	_ = Retry(context.Background(), func(ctx context.Context) error {
		return errors.New("always")
	}, 3, base, nil)

	// 等待 base*1 + base*2 = 30ms
	assert.GreaterOrEqual(t, time.Since(start), 3*base)
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := Retry(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("transient")
	}, 5, time.Hour, nil)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
