// internal/workers/loan/record-loan-lead/models.go
package recordloanlead

import "encoding/json"

type Input struct {
	LeadID string          `json:"leadId"`
	ExitID string          `json:"exitId"`
	Vendor string          `json:"vendor"`
	Mobile string          `json:"mobile"`
	Offers json.RawMessage `json:"offers"`
}

type Output struct {
	Recorded        bool   `json:"recorded"`
	LeadID          string `json:"leadId"`
	EligibleCount   int    `json:"eligibleCount"`
	IneligibleCount int    `json:"ineligibleCount"`
	CreatedAt       string `json:"createdAt"`
}
