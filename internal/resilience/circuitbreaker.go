package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen 熔断器打开期间所有调用立即失败并返回此错误
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State 熔断器状态
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the string representation of the circuit state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker 保护对外部依赖的调用。连续失败达到阈值后打开,
// 打开期间的调用不执行被保护操作; 恢复时间到达后进入半开状态,
// 只放行一次试探调用: 成功则关闭并清零失败计数, 失败则立即重新打开。
// 并发安全。
type CircuitBreaker struct {
	mu sync.Mutex

	failureThreshold int
	recoveryTime     time.Duration

	state       State
	failures    int
	nextAttempt time.Time

	now func() time.Time
}

// NewCircuitBreaker 创建熔断器
func NewCircuitBreaker(failureThreshold int, recoveryTime time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	if recoveryTime <= 0 {
		recoveryTime = 15 * time.Second
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		recoveryTime:     recoveryTime,
		state:            StateClosed,
		now:              time.Now,
	}
}

// Fire 执行被保护的操作。无论操作内部重试多少次,
// 熔断器只观察每次 Fire 的最终结果。
func (cb *CircuitBreaker) Fire(ctx context.Context, op func(ctx context.Context) error) error {
	if err := cb.allow(); err != nil {
		return err
	}

	if err := op(ctx); err != nil {
		cb.onFailure()
		return err
	}
	cb.onSuccess()
	return nil
}

// State 返回当前状态 (打开且恢复时间已到时报告半开)
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && !cb.now().Before(cb.nextAttempt) {
		return StateHalfOpen
	}
	return cb.state
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.now().Before(cb.nextAttempt) {
			return ErrCircuitOpen
		}
		// 恢复时间已到,进入半开,放行本次试探
		cb.state = StateHalfOpen
		return nil
	case StateHalfOpen:
		// 半开期间已有一次试探在途,其余调用直接拒绝
		return ErrCircuitOpen
	}
	return nil
}

func (cb *CircuitBreaker) onSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
}

func (cb *CircuitBreaker) onFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		// 试探失败,立即重新打开
		cb.state = StateOpen
		cb.nextAttempt = cb.now().Add(cb.recoveryTime)
		return
	}

	cb.failures++
	if cb.failures >= cb.failureThreshold {
		cb.state = StateOpen
		cb.nextAttempt = cb.now().Add(cb.recoveryTime)
	}
}
