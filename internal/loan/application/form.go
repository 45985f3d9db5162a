// internal/loan/application/form.go
package application

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"

	TimelineInstant  = "instant"
	TimelineWeek     = "week"
	TimelineFlexible = "flexible"

	EmploymentSalaried     = "salaried"
	EmploymentSelfEmployed = "self_employed"
	EmploymentStudent      = "student"

	SalaryBank   = "bank"
	SalaryCash   = "cash"
	SalaryCheque = "cheque"
	SalaryUPI    = "upi"
)

// Form is the applicant record driving the questionnaire. JSON names are the
// partner backend's vocabulary and double as error-map keys.
type Form struct {
	// Personal
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Gender    string `json:"gender"`
	DOB       string `json:"dob"` // YYYY-MM-DD
	PAN       string `json:"pan"`
	Email     string `json:"email"`

	// Loan requirements
	LoanAmountRequired    string `json:"loan_amount_required"`
	Timeline              string `json:"timeline"`
	AlreadyExistingCredit *bool  `json:"already_existing_credit"`

	// Employment
	EmploymentStatus string `json:"employmentStatus"`
	CompanyName      string `json:"company_name"`

	// Income and location
	InhandIncome     string `json:"inhandIncome"`
	SalaryReceivedIn string `json:"salary_recieved_in"`
	Pincode          string `json:"pincode"`
	OfficePincode    string `json:"office_pincode"`
	City             string `json:"city"`
	State            string `json:"state"`
	OfficeCity       string `json:"office_city"`
	OfficeState      string `json:"office_state"`

	// Credit
	FetchCreditConsent  bool   `json:"fetch_credit_consent"`
	KnowYourCreditScore bool   `json:"know_your_credit_score"`
	CreditRange         string `json:"credit_range"`
	TotalEMIs           int    `json:"total_emis"`
}

// NewForm returns an empty form with the credit defaults switched on.
func NewForm() Form {
	return Form{
		FetchCreditConsent:  true,
		KnowYourCreditScore: true,
	}
}

// Clone returns a deep copy.
func (f Form) Clone() Form {
	if f.AlreadyExistingCredit != nil {
		v := *f.AlreadyExistingCredit
		f.AlreadyExistingCredit = &v
	}
	return f
}

// Patch is a partial update keyed by JSON field name.
type Patch map[string]interface{}

// Keys returns the field names present in the patch.
func (p Patch) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	return keys
}

// Apply shallow-merges p into f. Unknown keys or values of the wrong type are
// rejected and f is left unchanged.
func (f *Form) Apply(p Patch) error {
	if len(p) == 0 {
		return nil
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode patch: %w", err)
	}

	next := f.Clone()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&next); err != nil {
		return fmt.Errorf("invalid patch: %w", err)
	}

	*f = next
	return nil
}

// Bool is a convenience for the nullable yes/no fields.
func Bool(v bool) *bool {
	return &v
}
