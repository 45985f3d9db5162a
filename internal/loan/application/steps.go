package application

// Step is a 1-based questionnaire page.
type Step int

const (
	StepPersonal Step = iota + 1
	StepLoanRequirements
	StepEmployment
	StepIncomeLocation
)

// TotalSteps is the number of questionnaire pages.
const TotalSteps = 4

var stepFields = map[Step][]string{
	StepPersonal:         {"first_name", "last_name", "dob", "gender", "pan", "email"},
	StepLoanRequirements: {"loan_amount_required", "timeline", "already_existing_credit"},
	StepEmployment:       {"employmentStatus", "company_name"},
	StepIncomeLocation:   {"inhandIncome", "salary_recieved_in", "pincode", "office_pincode", "credit_range"},
}

var stepTitles = map[Step]string{
	StepPersonal:         "Personal Details",
	StepLoanRequirements: "Loan Requirements",
	StepEmployment:       "Employment Info",
	StepIncomeLocation:   "Income & Location",
}

func (s Step) Valid() bool {
	return s >= StepPersonal && s <= StepIncomeLocation
}

func (s Step) Title() string {
	return stepTitles[s]
}

// Fields returns the validated fields of s in display order.
func (s Step) Fields() []string {
	return append([]string(nil), stepFields[s]...)
}

// FieldOrder lists every validated field, step by step.
func FieldOrder() []string {
	var order []string
	for s := StepPersonal; s <= StepIncomeLocation; s++ {
		order = append(order, stepFields[s]...)
	}
	return order
}

// Steps lists all steps in order.
func Steps() []Step {
	return []Step{StepPersonal, StepLoanRequirements, StepEmployment, StepIncomeLocation}
}

// StepOf returns the step that validates field.
func StepOf(field string) (Step, bool) {
	for _, s := range Steps() {
		for _, f := range stepFields[s] {
			if f == field {
				return s, true
			}
		}
	}
	return 0, false
}
