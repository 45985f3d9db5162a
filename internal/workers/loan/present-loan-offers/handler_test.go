// internal/workers/loan/present-loan-offers/handler_test.go
package presentloanoffers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loangenius/internal/common/config"
	apperrors "loangenius/internal/common/errors"
	"loangenius/internal/common/logger"
	"loangenius/internal/loan/offers"
)

// ==========================
// Test Helper Functions
// ==========================

const payload = `{
	"data": {
		"isEligible": [
			{"lender_id": 1, "lender_name": "Alpha", "lender_category": "NBFC", "minimum_interest_rate": "14.5", "loan_tags": [{"id": 7, "name": "Instant Approval"}]},
			{"lender_id": 2, "lender_name": "Beta", "lender_category": "Bank", "minimum_interest_rate": "10.99"}
		],
		"inEligibleOffers": [
			{"lender_id": 3, "lender_name": "Gamma", "pincodeReject": true}
		]
	}
}`

func createTestHandler(t *testing.T) *Handler {
	return NewHandler(LoadConfig(config.WorkerConfig{}), nil, nil, logger.NewTestLogger(t))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Recommended(t *testing.T) {
	out, err := createTestHandler(t).Execute(context.Background(), &Input{Offers: json.RawMessage(payload)})

	require.NoError(t, err)
	assert.True(t, out.HasOffers)
	assert.Equal(t, "Alpha", out.TopLender)
	assert.Equal(t, 3, out.Presentation.Total)
	require.Len(t, out.Presentation.Ineligible, 1)
	require.NotNil(t, out.Presentation.Ineligible[0].Explanation)
	assert.Contains(t, out.Presentation.Ineligible[0].Explanation.Reason, "pincode")
}

func TestHandler_Execute_SortAndFilter(t *testing.T) {
	h := createTestHandler(t)

	out, err := h.Execute(context.Background(), &Input{
		Offers: json.RawMessage(payload),
		View:   ViewInput{Sort: string(offers.SortInterestRate)},
	})
	require.NoError(t, err)
	assert.Equal(t, "Beta", out.TopLender)

	out, err = h.Execute(context.Background(), &Input{
		Offers: json.RawMessage(payload),
		View:   ViewInput{Selection: offers.Selection{Categories: []string{"NBFC"}}},
	})
	require.NoError(t, err)
	require.Len(t, out.Presentation.Eligible, 1)
	assert.Equal(t, "Alpha", out.TopLender)
	assert.Len(t, out.Presentation.Facets.Categories, 2)
}

func TestHandler_Execute_NoOffers(t *testing.T) {
	out, err := createTestHandler(t).Execute(context.Background(), &Input{})

	require.NoError(t, err)
	assert.False(t, out.HasOffers)
	assert.Empty(t, out.TopLender)
	assert.Equal(t, 0, out.Presentation.Total)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_Errors(t *testing.T) {
	h := createTestHandler(t)

	_, err := h.Execute(context.Background(), &Input{Offers: json.RawMessage(payload), View: ViewInput{Sort: "cheapest"}})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))

	_, err = h.Execute(context.Background(), &Input{Offers: json.RawMessage(`[1,2]`)})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMalformedResponse))
}
