// internal/models/lead.go
package models

import (
	"encoding/json"
	"time"
)

// LeadRecord is one row of loan_leads: the audit trail of a successful
// partner submission.
type LeadRecord struct {
	LeadID          string          `json:"leadId" db:"lead_id"`
	ExitID          string          `json:"exitId" db:"exit_id"`
	Vendor          string          `json:"vendor" db:"vendor"`
	Mobile          string          `json:"mobile,omitempty" db:"mobile"`
	EligibleCount   int             `json:"eligibleCount" db:"eligible_count"`
	IneligibleCount int             `json:"ineligibleCount" db:"ineligible_count"`
	Offers          json.RawMessage `json:"offers,omitempty" db:"offers"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
}
