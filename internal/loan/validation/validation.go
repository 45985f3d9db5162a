// Package validation holds the pure field and step rules of the loan
// questionnaire. Nothing here performs I/O.
package validation

import (
	"sort"
	"strconv"
	"strings"

	"github.com/asaskevich/govalidator"

	"loangenius/internal/loan/application"
)

const (
	MinLoanAmount  = 10000
	MinCreditScore = 300
	MaxCreditScore = 850
)

// Errors maps a form field (JSON name) to its single message.
type Errors map[string]string

// Valid reports whether no field failed.
func (e Errors) Valid() bool {
	return len(e) == 0
}

// First returns the failed field that appears earliest in the questionnaire.
func (e Errors) First() string {
	return FirstInvalidField(e)
}

// ValidateStep checks the fields owned by step. Fields of other steps are
// ignored, so later pages may still be empty.
func ValidateStep(step application.Step, f application.Form) Errors {
	errs := Errors{}

	switch step {
	case application.StepPersonal:
		if strings.TrimSpace(f.FirstName) == "" {
			errs["first_name"] = "First name is required"
		}
		if strings.TrimSpace(f.LastName) == "" {
			errs["last_name"] = "Last name is required"
		}
		if f.DOB == "" {
			errs["dob"] = "Date of birth is required"
		}
		if f.Gender == "" {
			errs["gender"] = "Gender selection is required"
		}
		if msg := ValidatePAN(f.PAN); msg != "" {
			errs["pan"] = msg
		}
		if msg := ValidateEmail(f.Email); msg != "" {
			errs["email"] = msg
		}

	case application.StepLoanRequirements:
		if strings.TrimSpace(f.LoanAmountRequired) == "" {
			errs["loan_amount_required"] = "Loan amount is required"
		} else if amount, ok := parseAmount(f.LoanAmountRequired); !ok || amount < MinLoanAmount {
			errs["loan_amount_required"] = "Minimum loan amount is ₹10,000"
		}
		if f.Timeline == "" {
			errs["timeline"] = "Please select when you need the loan"
		}
		if f.AlreadyExistingCredit == nil {
			errs["already_existing_credit"] = "Please select your credit experience"
		}

	case application.StepEmployment:
		if f.EmploymentStatus == "" {
			errs["employmentStatus"] = "Employment status is required"
		}
		if strings.TrimSpace(f.CompanyName) == "" {
			errs["company_name"] = "Company name is required"
		}

	case application.StepIncomeLocation:
		if strings.TrimSpace(f.InhandIncome) == "" {
			errs["inhandIncome"] = "Monthly income is required"
		}
		if f.SalaryReceivedIn == "" {
			errs["salary_recieved_in"] = "Payment method is required"
		}
		if f.Pincode == "" {
			errs["pincode"] = "Residential pincode is required"
		} else if !IsSixDigitPincode(f.Pincode) {
			errs["pincode"] = "Pincode must be 6 digits"
		}
		if f.OfficePincode == "" {
			errs["office_pincode"] = "Office pincode is required"
		} else if !IsSixDigitPincode(f.OfficePincode) {
			errs["office_pincode"] = "Pincode must be 6 digits"
		}
		if f.KnowYourCreditScore {
			if strings.TrimSpace(f.CreditRange) == "" {
				errs["credit_range"] = "Credit score range is required"
			} else if score, ok := parseWhole(f.CreditRange); !ok || score < MinCreditScore || score > MaxCreditScore {
				errs["credit_range"] = "Credit score must be between 300 and 850"
			}
		}
	}

	return errs
}

// ValidateAll runs every step and merges the results.
func ValidateAll(f application.Form) Errors {
	all := Errors{}
	for _, step := range application.Steps() {
		for field, msg := range ValidateStep(step, f) {
			all[field] = msg
		}
	}
	return all
}

// FirstInvalidField returns the failed field with the lowest questionnaire
// order, or "" when errs is empty. Keys outside the form sort last.
func FirstInvalidField(errs Errors) string {
	if len(errs) == 0 {
		return ""
	}
	for _, field := range application.FieldOrder() {
		if _, ok := errs[field]; ok {
			return field
		}
	}
	rest := make([]string, 0, len(errs))
	for k := range errs {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	return rest[0]
}

// IsSixDigitPincode reports whether code is exactly six ASCII digits.
func IsSixDigitPincode(code string) bool {
	return len(code) == 6 && govalidator.IsNumeric(code)
}

func parseAmount(s string) (int64, bool) {
	return parseWhole(strings.ReplaceAll(s, ",", ""))
}

// parseWhole accepts base-10 digits only. Leading zeros are fine.
func parseWhole(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !govalidator.IsNumeric(s) {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
