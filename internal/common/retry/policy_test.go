package retry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingTimer fires immediately and remembers every requested wait.
type recordingTimer struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingTimer) After(d time.Duration) <-chan time.Time {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (r *recordingTimer) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func submissionPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 5 * time.Second}
}

func TestPolicy_Delay(t *testing.T) {
	p := submissionPolicy()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{10, 5 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestPolicy_DelayNeverDecreases(t *testing.T) {
	p := Policy{MaxAttempts: 20, BaseDelay: 300 * time.Millisecond, MaxDelay: 5 * time.Second}
	prev := time.Duration(0)
	for n := 1; n <= 20; n++ {
		d := p.Delay(n)
		assert.GreaterOrEqual(t, d, prev)
		assert.LessOrEqual(t, d, p.MaxDelay)
		prev = d
	}
}

func TestPolicy_Validate(t *testing.T) {
	assert.Error(t, Policy{}.Validate())
	assert.Error(t, Policy{MaxAttempts: 1, BaseDelay: 2 * time.Second, MaxDelay: time.Second}.Validate())
	assert.Error(t, Policy{MaxAttempts: 1, BaseDelay: -1}.Validate())
	assert.NoError(t, submissionPolicy().Validate())
}

func TestPolicy_ShouldRetry(t *testing.T) {
	p := submissionPolicy()
	assert.False(t, p.ShouldRetry(nil))
	assert.True(t, p.ShouldRetry(errors.New("boom")))
	assert.False(t, p.ShouldRetry(context.Canceled))

	permanent := errors.New("permanent")
	p.IsRetryable = func(err error) bool { return !errors.Is(err, permanent) }
	assert.False(t, p.ShouldRetry(permanent))
	assert.True(t, p.ShouldRetry(errors.New("transient")))
}

// ==========================
// Do
// ==========================

func TestDo_SucceedsAfterRetries(t *testing.T) {
	timer := &recordingTimer{}
	var seen []int

	attempts, err := Do(context.Background(), submissionPolicy(), func(_ context.Context, attempt int) error {
		seen = append(seen, attempt)
		if attempt < 3 {
			return errors.New("503")
		}
		return nil
	}, WithTimer(timer))

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{1, 2, 3}, seen)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, timer.recorded())
}

func TestDo_ExhaustsAttemptsAndReturnsLastError(t *testing.T) {
	timer := &recordingTimer{}
	var retried []int

	attempts, err := Do(context.Background(), submissionPolicy(), func(_ context.Context, attempt int) error {
		return errors.New("failure " + string(rune('0'+attempt)))
	}, WithTimer(timer), WithOnRetry(func(attempt int, _ time.Duration, _ error) {
		retried = append(retried, attempt)
	}))

	require.Error(t, err)
	assert.Equal(t, "failure 3", err.Error())
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, timer.recorded())
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_StopsOnNonRetryableError(t *testing.T) {
	timer := &recordingTimer{}
	permanent := errors.New("401")
	p := submissionPolicy()
	p.IsRetryable = func(err error) bool { return !errors.Is(err, permanent) }

	attempts, err := Do(context.Background(), p, func(context.Context, int) error {
		return permanent
	}, WithTimer(timer))

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, timer.recorded())
}

func TestDo_RealTimerHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 3, BaseDelay: time.Hour, MaxDelay: time.Hour}

	start := time.Now()
	attempts, err := Do(ctx, p, func(context.Context, int) error {
		cancel()
		return errors.New("transient")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDo_InvalidPolicy(t *testing.T) {
	attempts, err := Do(context.Background(), Policy{}, func(context.Context, int) error { return nil })
	assert.Error(t, err)
	assert.Equal(t, 0, attempts)
}
