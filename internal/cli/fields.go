// internal/cli/fields.go
package cli

import (
	"loangenius/internal/loan/application"
	"loangenius/internal/loan/lookup"
)

type fieldKind int

const (
	kindText fieldKind = iota
	kindSelect
	kindYesNo
	kindToggle
	kindCompany
	kindPincode
)

// fieldPrompt describes how one form field is asked for.
type fieldPrompt struct {
	Field   string
	Label   string
	Kind    fieldKind
	Options []Option
	Target  lookup.Target
	// When reports whether the field applies to the current form.
	When func(application.Form) bool
}

var (
	genderOptions = []Option{
		{application.GenderMale, "Male"},
		{application.GenderFemale, "Female"},
		{application.GenderOther, "Other"},
	}
	timelineOptions = []Option{
		{application.TimelineInstant, "Today (Instant approval)"},
		{application.TimelineWeek, "This week (Quick processing)"},
		{application.TimelineFlexible, "I'm flexible (Best rates)"},
	}
	creditOptions = []Option{
		{"true", "Yes, I have credit experience"},
		{"false", "No, this is my first loan"},
	}
	employmentOptions = []Option{
		{application.EmploymentSalaried, "Salaried Employee"},
		{application.EmploymentSelfEmployed, "Self-Employed/Business Owner"},
		{application.EmploymentStudent, "Student"},
	}
	salaryOptions = []Option{
		{application.SalaryBank, "Bank Transfer"},
		{application.SalaryCash, "Cash"},
		{application.SalaryCheque, "Cheque"},
		{application.SalaryUPI, "UPI/Digital"},
	}
)

var stepPrompts = map[application.Step][]fieldPrompt{
	application.StepPersonal: {
		{Field: "first_name", Label: "First name"},
		{Field: "last_name", Label: "Last name"},
		{Field: "dob", Label: "Date of birth (YYYY-MM-DD)"},
		{Field: "gender", Label: "Gender", Kind: kindSelect, Options: genderOptions},
		{Field: "pan", Label: "PAN card number (ABCDE1234F)"},
		{Field: "email", Label: "Email address"},
	},
	application.StepLoanRequirements: {
		{Field: "loan_amount_required", Label: "Loan amount required (₹)"},
		{Field: "timeline", Label: "When do you need the loan?", Kind: kindSelect, Options: timelineOptions},
		{Field: "already_existing_credit", Label: "Have you taken a loan or credit card before?", Kind: kindYesNo, Options: creditOptions},
	},
	application.StepEmployment: {
		{Field: "employmentStatus", Label: "Employment status", Kind: kindSelect, Options: employmentOptions},
		{Field: "company_name", Label: "Company name", Kind: kindCompany},
	},
	application.StepIncomeLocation: {
		{Field: "inhandIncome", Label: "Monthly in-hand income (₹)"},
		{Field: "salary_recieved_in", Label: "How do you receive your salary?", Kind: kindSelect, Options: salaryOptions},
		{Field: "pincode", Label: "Residential pincode", Kind: kindPincode, Target: lookup.Residential},
		{Field: "office_pincode", Label: "Office pincode", Kind: kindPincode, Target: lookup.Office},
		{Field: "know_your_credit_score", Label: "Do you know your credit score", Kind: kindToggle},
		{
			Field: "credit_range",
			Label: "Credit score (300-850)",
			When:  func(f application.Form) bool { return f.KnowYourCreditScore },
		},
	},
}

// promptsFor returns the prompts of step, restricted to only when it is
// non-empty.
func promptsFor(step application.Step, only []string) []fieldPrompt {
	all := stepPrompts[step]
	if len(only) == 0 {
		return all
	}
	want := make(map[string]struct{}, len(only))
	for _, f := range only {
		want[f] = struct{}{}
	}
	var out []fieldPrompt
	for _, p := range all {
		if _, ok := want[p.Field]; ok {
			out = append(out, p)
		}
	}
	return out
}
