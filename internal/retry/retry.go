// Package retry 提供统一的“操作 + 有限次重试 + 固定/线性间隔”封装。
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rangdl/FN-AQ/internal/config"
)

type Policy struct {
	Attempts int
	Wait     time.Duration
	// Step 为每次重试额外增加的等待；0 即固定间隔。
	Step    time.Duration
	MaxWait time.Duration
	// Sleep 为空时使用 SleepContext。
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry 在每次失败且还会再试之前调用。
	OnRetry func(attempt int, err error, wait time.Duration)
}

func FromConfig(c config.RetryPolicyCfg) Policy {
	return Policy{
		Attempts: c.Count,
		Wait:     c.Wait(),
		Step:     c.Step(),
		MaxWait:  c.MaxWait(),
	}
}

// Backoff 返回第 attempt 次失败（从 1 开始）之后的等待时长。
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.Wait + time.Duration(attempt-1)*p.Step
	if p.MaxWait > 0 && d > p.MaxWait {
		d = p.MaxWait
	}
	if d < 0 {
		d = 0
	}
	return d
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent 包装的错误不会再重试。
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// ExhaustedError 表示已用完全部尝试次数。
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Do 最多执行 p.Attempts 次 op（至少 1 次），两次之间同步等待。
func Do(ctx context.Context, p Policy, op func(ctx context.Context, attempt int) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if last == nil {
				return err
			}
			return fmt.Errorf("%w (last error: %v)", err, last)
		}
		err := op(ctx, attempt)
		if err == nil {
			return nil
		}
		last = err
		if IsPermanent(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		wait := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
		if err := sleep(ctx, wait); err != nil {
			return fmt.Errorf("%w (last error: %v)", err, last)
		}
	}
	return &ExhaustedError{Attempts: attempts, Last: last}
}

func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
