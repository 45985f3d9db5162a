// internal/workers/loan/validate-questionnaire-step/handler_test.go
package validatequestionnairestep

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loangenius/internal/common/config"
	apperrors "loangenius/internal/common/errors"
	"loangenius/internal/common/logger"
	"loangenius/internal/loan/application"
)

// ==========================
// Test Helper Functions
// ==========================

func newTestHandler(t *testing.T) *Handler {
	return NewHandler(LoadConfig(config.WorkerConfig{}), nil, nil, logger.NewTestLogger(t))
}

func personalForm() application.Form {
	f := application.NewForm()
	f.FirstName, f.LastName = "Asha", "Rao"
	f.DOB, f.Gender = "1994-06-01", application.GenderFemale
	f.PAN, f.Email = "ABCDE1234F", "asha@example.com"
	return f
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_ValidStepAdvances(t *testing.T) {
	h := newTestHandler(t)

	out, err := h.Execute(context.Background(), &Input{Step: 1, Form: personalForm()})

	require.NoError(t, err)
	assert.True(t, out.Valid)
	assert.Empty(t, out.Errors)
	assert.Equal(t, 2, out.NextStep)
	assert.False(t, out.ReadyToSubmit)
	assert.Equal(t, 50, out.ProgressPercent)
}

func TestHandler_Execute_InvalidStepStays(t *testing.T) {
	h := newTestHandler(t)
	f := personalForm()
	f.PAN = "ABC"
	f.Email = ""

	out, err := h.Execute(context.Background(), &Input{Step: 1, Form: f})

	require.NoError(t, err)
	assert.False(t, out.Valid)
	assert.Equal(t, 1, out.NextStep)
	assert.Equal(t, "pan", out.FirstInvalidField)
	assert.Equal(t, "Invalid PAN format (e.g., ABCDE1234F)", out.Errors["pan"])
	assert.Equal(t, "Email address is required", out.Errors["email"])
	assert.Equal(t, 25, out.ProgressPercent)
}

func TestHandler_Execute_LastStepIsReadyToSubmit(t *testing.T) {
	h := newTestHandler(t)
	f := application.NewForm()
	f.InhandIncome, f.SalaryReceivedIn = "85000", application.SalaryBank
	f.Pincode, f.OfficePincode = "560001", "560100"
	f.CreditRange = "750"

	out, err := h.Execute(context.Background(), &Input{Step: 4, Form: f})

	require.NoError(t, err)
	assert.True(t, out.Valid)
	assert.True(t, out.ReadyToSubmit)
	assert.Equal(t, 4, out.NextStep)
	assert.Equal(t, 100, out.ProgressPercent)
}

func TestHandler_Execute_OutOfRangeStep(t *testing.T) {
	h := newTestHandler(t)

	for _, step := range []int{0, 5, -1} {
		_, err := h.Execute(context.Background(), &Input{Step: step})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput), "step %d", step)
	}
}

func TestLoadConfig_Default(t *testing.T) {
	assert.Equal(t, "5s", LoadConfig(config.WorkerConfig{}).Timeout.String())
	assert.Equal(t, "2s", LoadConfig(config.WorkerConfig{Timeout: 2000}).Timeout.String())
}
