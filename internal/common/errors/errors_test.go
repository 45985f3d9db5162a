package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Constructors
// ==========================

func TestNewUpstreamStatusError(t *testing.T) {
	tests := []struct {
		status    int
		code      ErrorCode
		retryable bool
		message   string
	}{
		{http.StatusBadGateway, ErrCodeUpstreamBadGateway, true, "Server temporarily unavailable (502). Please try again in a few moments."},
		{http.StatusServiceUnavailable, ErrCodeUpstreamUnavailable, true, "Service temporarily unavailable (503). Please try again later."},
		{http.StatusGatewayTimeout, ErrCodeUpstreamGatewayTimeout, true, "Request timeout (504). Please try again."},
		{http.StatusUnauthorized, ErrCodeAuthentication, false, "Failed to submit lead: 401 Unauthorized"},
		{http.StatusInternalServerError, ErrCodeUpstreamStatus, true, "Failed to submit lead: 500 Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := NewUpstreamStatusError("submit lead", tt.status, "  body  ")
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, "body", err.Details)
			assert.Equal(t, tt.status, err.StatusCode())
		})
	}
}

func TestOTPErrors(t *testing.T) {
	assert.Equal(t, "Invalid OTP. 2 attempts remaining.", NewOTPInvalidError(2).Message)
	assert.Equal(t, "Invalid OTP. 1 attempt remaining.", NewOTPInvalidError(1).Message)
	assert.Contains(t, NewOTPMaxAttemptsError(3).Message, "Maximum attempts (3) reached")

	cooldown := NewOTPResendCooldownError(1500 * time.Millisecond)
	assert.Equal(t, "Please wait 2 seconds before requesting a new OTP.", cooldown.Message)
	assert.Equal(t, 2, cooldown.Metadata["secondsRemaining"])
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("pan", "Invalid PAN format (e.g., ABCDE1234F)")
	assert.Equal(t, "pan", err.Details)
	assert.Equal(t, "StandardError[VALIDATION_FAILED]: Invalid PAN format (e.g., ABCDE1234F)", err.Error())
	assert.False(t, err.Retryable)
}

// ==========================
// Wrapping
// ==========================

func TestWrappedCauses(t *testing.T) {
	cause := stderrors.New("dial tcp: connection refused")
	err := NewNetworkError("partner", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsRetryable(err))

	wrapped := fmt.Errorf("lead create: %w", NewLeadCreateError(err))
	assert.True(t, HasCode(wrapped, ErrCodeLeadCreateFailed))
	assert.False(t, IsRetryable(wrapped))
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "Failed to create lead", UserMessage(wrapped))
}

func TestPartnerTokenErrorInheritsRetryability(t *testing.T) {
	assert.True(t, NewPartnerTokenError(NewUpstreamStatusError("token", 503, "")).Retryable)
	assert.False(t, NewPartnerTokenError(NewUpstreamStatusError("token", 401, "")).Retryable)
	assert.False(t, NewPartnerTokenError(stderrors.New("plain")).Retryable)
}

func TestNormalizeAndUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "Something went wrong. Please try again.", UserMessage(stderrors.New("boom")))

	std := Normalize(stderrors.New("boom"))
	assert.Equal(t, ErrCodeInternal, std.Code)
	assert.Equal(t, "boom", std.Details)

	dup := NewDuplicateLeadError("LEAD-1")
	assert.Same(t, dup, Normalize(dup))
}

// ==========================
// BPMN conversion
// ==========================

func TestConvertToBPMNError(t *testing.T) {
	t.Run("retryable keeps the recommended count", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewUpstreamStatusError("submit lead", 503, ""))
		assert.Equal(t, 3, bpmn.Retries)
		assert.True(t, bpmn.Retryable)
	})

	t.Run("non-retryable copy gets none", func(t *testing.T) {
		err := NewUpstreamStatusError("submit lead", 503, "")
		err.Retryable = false
		assert.Equal(t, 0, ConvertToBPMNError(err).Retries)
	})

	t.Run("variables", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewInvalidInputError("step must be 1-4"))
		vars := bpmn.ToErrorVariables()
		assert.Equal(t, "INVALID_INPUT", vars["errorCode"])
		assert.Equal(t, "INVALID_INPUT", vars["originalErrorCode"])
		assert.Equal(t, false, vars["retryable"])
		require.Contains(t, vars, "timestamp")
	})
}

func TestErrorCodeHelpers(t *testing.T) {
	assert.True(t, IsRetryableErrorCode(ErrCodeDatabaseInsert))
	assert.False(t, IsRetryableErrorCode(ErrCodeDuplicateLead))

	assert.Equal(t, "AUTH", GetErrorCategory(ErrCodeOTPInvalid))
	assert.Equal(t, "AUTH", GetErrorCategory(ErrCodePartnerTokenFailed))
	assert.Equal(t, "TRANSIENT", GetErrorCategory(ErrCodeUpstreamUnavailable))
	assert.Equal(t, "SUBMISSION", GetErrorCategory(ErrCodeDuplicateLead))
	assert.Equal(t, "LOOKUP", GetErrorCategory(ErrCodeLookupFailed))
	assert.Equal(t, "STORAGE", GetErrorCategory(ErrCodeDatabaseInsert))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeMalformedResponse))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}
