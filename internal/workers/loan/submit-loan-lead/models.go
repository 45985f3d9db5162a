// internal/workers/loan/submit-loan-lead/models.go
package submitloanlead

import (
	"encoding/json"

	"loangenius/internal/loan/application"
)

type Input struct {
	Form        application.Form `json:"form"`
	BearerToken string           `json:"bearerToken"`
}

// Output feeds record-loan-lead and present-loan-offers downstream.
type Output struct {
	Success  bool            `json:"success"`
	LeadID   string          `json:"leadId"`
	ExitID   string          `json:"exitId"`
	Vendor   string          `json:"vendor"`
	Offers   json.RawMessage `json:"offers"`
	Attempts int             `json:"attempts"`
}
