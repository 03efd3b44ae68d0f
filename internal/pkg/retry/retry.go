package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted 重试次数用尽仍未成功
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy 重试策略
type Policy struct {
	MaxAttempts int           // 最大尝试次数(含首次)
	Interval    time.Duration // 初始间隔
	MaxInterval time.Duration // 间隔上限
	Multiplier  float64       // 退避倍数
}

// DefaultPolicy 默认策略:最多 10 次,2s 起步,指数退避,上限 30s
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 10,
		Interval:    2 * time.Second,
		MaxInterval: 30 * time.Second,
		Multiplier:  2,
	}
}

// Do 按策略重复执行 fn,直到成功、上下文取消或次数用尽。
// fn 返回 (true, nil) 表示完成;(false, nil) 表示还未就绪,继续等待。
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) (done bool, err error)) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.Multiplier < 1 {
		policy.Multiplier = 1
	}

	interval := policy.Interval
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		done, err := fn(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		lastErr = fmt.Errorf("attempt %d not ready", attempt)

		if attempt == policy.MaxAttempts {
			break
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		interval = time.Duration(float64(interval) * policy.Multiplier)
		if policy.MaxInterval > 0 && interval > policy.MaxInterval {
			interval = policy.MaxInterval
		}
	}

	return fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}
