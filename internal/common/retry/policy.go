// Package retry holds the backoff policy used for transient partner failures
// and a combinator that runs an operation under it.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	retrygo "github.com/avast/retry-go/v4"
)

// Policy describes how many times an operation runs and how long to wait
// between runs. The wait after failed attempt n is min(BaseDelay·2^(n-1), MaxDelay).
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	IsRetryable func(error) bool
}

// Delay returns the wait that follows failed attempt n (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.BaseDelay <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			break
		}
		d *= 2
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// ShouldRetry applies IsRetryable; a nil predicate retries everything except
// context cancellation.
func (p Policy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if p.IsRetryable != nil {
		return p.IsRetryable(err)
	}
	return !errors.Is(err, context.Canceled)
}

// Validate rejects policies that would never run or never stop.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry policy: max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.BaseDelay < 0 || p.MaxDelay < 0 {
		return fmt.Errorf("retry policy: delays must not be negative")
	}
	if p.MaxDelay > 0 && p.MaxDelay < p.BaseDelay {
		return fmt.Errorf("retry policy: max delay %s is below base delay %s", p.MaxDelay, p.BaseDelay)
	}
	return nil
}

type settings struct {
	timer   retrygo.Timer
	onRetry func(attempt int, delay time.Duration, err error)
}

type Option func(*settings)

// WithTimer swaps the clock used for waits; tests use it to record delays
// without sleeping.
func WithTimer(t retrygo.Timer) Option {
	return func(s *settings) { s.timer = t }
}

// WithOnRetry is called after each retryable failure with the wait that follows.
func WithOnRetry(fn func(attempt int, delay time.Duration, err error)) Option {
	return func(s *settings) { s.onRetry = fn }
}

// Do runs op until it succeeds, returns a non-retryable error, or the policy
// runs out of attempts. Attempts run sequentially. It returns the number of
// attempts made and the last error.
func Do(ctx context.Context, p Policy, op func(ctx context.Context, attempt int) error, opts ...Option) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	attempt := 0
	retryOpts := []retrygo.Option{
		retrygo.Context(ctx),
		retrygo.Attempts(uint(p.MaxAttempts)),
		retrygo.LastErrorOnly(true),
		retrygo.RetryIf(p.ShouldRetry),
		retrygo.DelayType(func(_ uint, err error, _ *retrygo.Config) time.Duration {
			d := p.Delay(attempt)
			if s.onRetry != nil {
				s.onRetry(attempt, d, err)
			}
			return d
		}),
	}
	if s.timer != nil {
		retryOpts = append(retryOpts, retrygo.WithTimer(s.timer))
	}

	err := retrygo.Do(func() error {
		attempt++
		return op(ctx, attempt)
	}, retryOpts...)

	return attempt, err
}
