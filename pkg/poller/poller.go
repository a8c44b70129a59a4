// Package poller 提供带超时的条件轮询原语
// 所有长时间运行的工作流都通过它等待 fabric 或 guest 状态收敛
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPollTimeout 轮询超时错误
// 调用方通过 errors.Is 区分超时和其他失败
var ErrPollTimeout = errors.New("poll timeout")

// TimeoutError 携带超时上下文的错误
type TimeoutError struct {
	// What 描述等待的条件（用于日志）
	What string
	// Timeout 本次轮询的总时限
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("poll timeout after %s waiting for %s", e.Timeout, e.What)
}

// Is 实现 errors.Is，所有 TimeoutError 都匹配 ErrPollTimeout
func (e *TimeoutError) Is(target error) bool {
	return target == ErrPollTimeout
}

// Probe 幂等的状态读取函数
// 瞬时错误直接向上传播，Poll 不会重试失败的 probe
type Probe[T any] func(ctx context.Context) (T, error)

// Predicate 对 probe 结果的纯判定函数
type Predicate[T any] func(value T) bool

// Poll 以 sleep 为间隔调用 probe，直到 predicate 为真或超时
// 返回最后一次 probe 的值；超时返回 *TimeoutError（匹配 ErrPollTimeout）
// probe 的错误原样返回，不做隐式重试
func Poll[T any](ctx context.Context, what string, probe Probe[T], pred Predicate[T], sleep, timeout time.Duration) (T, error) {
	var zero T

	deadline := time.Now().Add(timeout)
	for {
		value, err := probe(ctx)
		if err != nil {
			return zero, err
		}
		if pred(value) {
			return value, nil
		}
		if time.Now().After(deadline) {
			return value, &TimeoutError{What: what, Timeout: timeout}
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(sleep):
		}
	}
}
