package camunda

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "loangenius/internal/common/errors"
	"loangenius/internal/common/logger"
	"loangenius/internal/common/retry"
	"loangenius/internal/common/validation"
)

// ==========================
// Helpers
// ==========================

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

type echoInput struct {
	Name string `json:"name"`
}

type echoOutput struct {
	Greeting string `json:"greeting"`
}

func echo(_ context.Context, in *echoInput) (*echoOutput, error) {
	return &echoOutput{Greeting: "hello " + in.Name}, nil
}

// ==========================
// Retry and error mapping
// ==========================

func TestExecuteWithRetry_RetriesTransientErrors(t *testing.T) {
	timer := &recordingTimer{}
	calls := 0
	err := executeWithRetry(context.Background(), DefaultRetryConfig, logger.NewTestLogger(t), "topology",
		func(context.Context) error {
			calls++
			if calls < 3 {
				return stderrors.New("rpc error: code = Unavailable desc = connection refused")
			}
			return nil
		}, retry.WithTimer(timer))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, timer.delays)
}

func TestExecuteWithRetry_StopsOnPermanentErrors(t *testing.T) {
	calls := 0
	err := executeWithRetry(context.Background(), DefaultRetryConfig, logger.NewNoOpLogger(), "deploy",
		func(context.Context) error {
			calls++
			return stderrors.New("rpc error: code = PermissionDenied desc = unauthorized")
		}, retry.WithTimer(&recordingTimer{}))

	assert.Equal(t, 1, calls)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeAuthentication))
}

func TestExecuteWithRetry_ExhaustionMapsError(t *testing.T) {
	calls := 0
	err := executeWithRetry(context.Background(), DefaultRetryConfig, logger.NewNoOpLogger(), "topology",
		func(context.Context) error {
			calls++
			return stderrors.New("context deadline exceeded")
		}, retry.WithTimer(&recordingTimer{}))

	assert.Equal(t, DefaultRetryConfig.MaxRetries+1, calls)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeRequestTimeout))
	std, _ := apperrors.AsStandard(err)
	assert.Contains(t, std.Details, "after 4 attempts")
}

func TestMapZeebeError(t *testing.T) {
	tests := []struct {
		msg  string
		code apperrors.ErrorCode
	}{
		{"connection reset by peer", apperrors.ErrCodeNetwork},
		{"i/o timeout", apperrors.ErrCodeRequestTimeout},
		{"process not found", apperrors.ErrCodeInvalidInput},
		{"unauthorized", apperrors.ErrCodeAuthentication},
		{"weird failure", apperrors.ErrCodeNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := mapZeebeError(stderrors.New(tt.msg), "op", 1)
			assert.True(t, apperrors.HasCode(err, tt.code), err)
		})
	}
}

func TestIsRetryableZeebeError(t *testing.T) {
	assert.True(t, isRetryableZeebeError(stderrors.New("Unavailable: broker unreachable")))
	assert.False(t, isRetryableZeebeError(stderrors.New("invalid argument")))
}

// ==========================
// Runner
// ==========================

func TestRunner_Process(t *testing.T) {
	schema, err := validation.Compile(map[string]interface{}{
		"type":       "object",
		"required":   []interface{}{"name"},
		"properties": map[string]interface{}{"name": map[string]interface{}{"type": "string", "minLength": 1}},
	})
	require.NoError(t, err)

	r := NewRunner("echo-name", echo, RunnerOptions{Schema: schema, Logger: logger.NewTestLogger(t)})
	assert.Equal(t, "echo-name", r.TaskType())

	out, err := r.Process(context.Background(), `{"name":"Asha"}`)
	require.NoError(t, err)
	assert.Equal(t, "hello Asha", out.Greeting)

	_, err = r.Process(context.Background(), `{"name":""}`)
	require.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))
	std, _ := apperrors.AsStandard(err)
	assert.Contains(t, std.Details, "name")

	_, err = r.Process(context.Background(), "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))
}

func TestRunner_Process_WithoutSchema(t *testing.T) {
	r := NewRunner("echo-name", echo, RunnerOptions{})

	_, err := r.Process(context.Background(), `{"name": 5}`)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))

	out, err := r.Process(context.Background(), `{}`)
	require.NoError(t, err)
	assert.Equal(t, "hello ", out.Greeting)
}

func TestRunner_Process_AppliesTimeout(t *testing.T) {
	var deadline time.Time
	r := NewRunner("wait-for-it", func(ctx context.Context, _ *echoInput) (*echoOutput, error) {
		deadline, _ = ctx.Deadline()
		return &echoOutput{}, nil
	}, RunnerOptions{Timeout: 2 * time.Second})

	before := time.Now()
	_, err := r.Process(context.Background(), `{}`)
	require.NoError(t, err)
	assert.WithinDuration(t, before.Add(2*time.Second), deadline, time.Second)
}

func TestRunner_Process_PropagatesExecutorErrors(t *testing.T) {
	r := NewRunner("always-fail", func(context.Context, *echoInput) (*echoOutput, error) {
		return nil, apperrors.NewDuplicateLeadError("L1")
	}, RunnerOptions{})

	_, err := r.Process(context.Background(), `{}`)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDuplicateLead))
}
