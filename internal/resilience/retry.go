package resilience

import (
	"context"
	"time"
)

// RetryObserver 在每次重试等待前被调用
type RetryObserver func(attempt int, err error)

// Retry 以线性退避重试 op: 第 n 次失败后等待 baseDelay * n 再重试。
// 重试耗尽后返回最后一次的错误; context 取消时立即返回。
func Retry(ctx context.Context, op func(ctx context.Context) error, maxAttempts int, baseDelay time.Duration, onRetry RetryObserver) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}

		if onRetry != nil {
			onRetry(attempt, lastErr)
		}
		if err := sleep(ctx, baseDelay*time.Duration(attempt)); err != nil {
			return err
		}
	}
	return lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
