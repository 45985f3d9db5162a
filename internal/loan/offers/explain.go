package offers

import "strings"

// Explanation says why a lender turned the applicant down and what to try.
type Explanation struct {
	Reason     string `json:"reason"`
	Suggestion string `json:"suggestion"`
}

// FlagRule maps one backend rejection flag to its sentences.
type FlagRule struct {
	Name       string
	Set        func(Offer) bool
	Reason     string
	Suggestion string
}

// Rule matches the lower-cased free-text rejection reason.
type Rule struct {
	Name       string
	Match      func(reason string) bool
	Reason     string
	Suggestion string
}

const (
	reasonPincode = "You are rejected because the lender is not serviceable at your pincode. This lender does not provide loans in your area."
	reasonCompany = "You are rejected due to the lender's internal company policy. Your profile does not match their current lending criteria."
	reasonAge     = "You do not meet the age criteria for this lender. Your age is outside their acceptable range."
	reasonAmount  = "The requested loan amount is not supported by this lender. It may be too high or too low for their lending range."
	reasonCredit  = "Your credit score does not meet the lender's requirements. They need a higher credit score for loan approval."

	suggestPincode = "Try other lenders who service your area, or consider lenders with wider geographical coverage."
	suggestCompany = "Try other lenders with different company policies, or work on improving your overall profile to meet their criteria."
	suggestAmount  = "Try adjusting your loan amount to fit within this lender's range, or explore other lenders with different amount criteria."
	suggestCredit  = "Work on improving your credit score by paying bills on time, reducing debt, and checking your credit report for errors. Try lenders who accept lower credit scores."
	suggestGeneric = "Try other lenders with different eligibility criteria, or work on improving your profile (income, credit score, employment) before reapplying."
)

// FlagRules are applied in this order; every set flag contributes.
var FlagRules = []FlagRule{
	{
		Name:       "age",
		Set:        func(o Offer) bool { return bool(o.AgeRejected) },
		Reason:     reasonAge,
		Suggestion: "Try other lenders with different age criteria, or consider adding a co-applicant within the acceptable age range.",
	},
	{
		Name:       "salary",
		Set:        func(o Offer) bool { return bool(o.SalaryRejected) },
		Reason:     "Your salary does not meet the minimum income requirements for this lender. They require a higher monthly income.",
		Suggestion: "Consider applying for a smaller loan amount, try lenders with lower income requirements, or wait to increase your income before reapplying.",
	},
	{
		Name:       "loan_amount",
		Set:        func(o Offer) bool { return bool(o.LoanAmountRejected) },
		Reason:     reasonAmount,
		Suggestion: suggestAmount,
	},
	{
		Name:       "employment_type",
		Set:        func(o Offer) bool { return bool(o.EmploymentTypeRejected) },
		Reason:     "Your employment type does not meet the lender's criteria. They may not accept your current job category or employment status.",
		Suggestion: "Try lenders who accept your employment type, or consider lenders that work with freelancers, self-employed, or different job categories.",
	},
	{
		Name:       "salary_mode",
		Set:        func(o Offer) bool { return bool(o.SalaryModeRejected) },
		Reason:     "Your salary payment method (cash/bank transfer) does not meet the lender's requirements. They may require bank salary credits.",
		Suggestion: "Try lenders who accept cash salary or different payment modes, or consider switching to bank salary credits if possible.",
	},
	{
		Name:       "pincode",
		Set:        func(o Offer) bool { return bool(o.PincodeReject) },
		Reason:     reasonPincode,
		Suggestion: suggestPincode,
	},
	{
		Name:       "dedupe",
		Set:        func(o Offer) bool { return bool(o.DedupeReject) },
		Reason:     "You have already applied with this lender recently or have an existing application. They don't allow duplicate applications.",
		Suggestion: "Wait for your existing application to be processed, or try other lenders where you haven't applied recently.",
	},
	{
		Name:       "credit_score",
		Set:        func(o Offer) bool { return bool(o.CreditScoreReject) },
		Reason:     reasonCredit,
		Suggestion: suggestCredit,
	},
	{
		Name:       "company_category",
		Set:        func(o Offer) bool { return bool(o.BRE2CompanyCatReject) },
		Reason:     reasonCompany,
		Suggestion: suggestCompany,
	},
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// TextRules are tried in order against the lower-cased rejectedReason when
// no flag is set; the first match wins.
var TextRules = []Rule{
	{
		Name: "pincode_bre",
		Match: func(r string) bool {
			return strings.Contains(r, "bre rejected at pincode") ||
				(strings.Contains(r, "pincode") && strings.Contains(r, "office_pincode"))
		},
		Reason:     reasonPincode,
		Suggestion: suggestPincode,
	},
	{
		Name:       "location",
		Match:      func(r string) bool { return containsAny(r, "pincode", "office_pincode", "location") },
		Reason:     "Service not available at your location. This lender does not operate in your area.",
		Suggestion: suggestPincode,
	},
	{
		Name:       "company_policy",
		Match:      func(r string) bool { return containsAny(r, "bre 2 rejected", "company rejected") },
		Reason:     reasonCompany,
		Suggestion: suggestCompany,
	},
	{
		Name:       "bre",
		Match:      func(r string) bool { return containsAny(r, "bre rejected", "bre 1 rejected") },
		Reason:     "You do not meet the lender's eligibility criteria. This could be due to income, employment, or credit requirements.",
		Suggestion: suggestGeneric,
	},
	{
		Name:       "income",
		Match:      func(r string) bool { return containsAny(r, "income", "salary") },
		Reason:     "Your income does not meet the minimum requirements for this lender. They require a higher monthly income.",
		Suggestion: "Consider applying for a smaller loan amount, or try lenders with lower income requirements. You can also wait to increase your income before reapplying.",
	},
	{
		Name:       "credit",
		Match:      func(r string) bool { return containsAny(r, "credit", "cibil") },
		Reason:     reasonCredit,
		Suggestion: suggestCredit,
	},
	{
		Name:       "age",
		Match:      func(r string) bool { return containsAny(r, "age", "too young", "too old") },
		Reason:     reasonAge,
		Suggestion: "Try other lenders with different age criteria, or consider co-applicant options if available.",
	},
	{
		Name:       "employment",
		Match:      func(r string) bool { return containsAny(r, "employment", "job", "work experience") },
		Reason:     "Your employment details do not meet the lender's criteria. They may require different job type or work experience.",
		Suggestion: "Try lenders who accept your employment type, or consider improving your work experience. Some lenders accept freelancers or different job categories.",
	},
	{
		Name:       "loan_amount",
		Match:      func(r string) bool { return containsAny(r, "loan amount", "amount too high", "amount too low") },
		Reason:     reasonAmount,
		Suggestion: suggestAmount,
	},
}

var (
	// GenericExplanation is used when the reason text matches no rule.
	GenericExplanation = Explanation{
		Reason:     "You do not meet this lender's eligibility criteria. This could be due to various factors like income, credit score, location, or employment details.",
		Suggestion: suggestGeneric,
	}
	// UnknownExplanation is used when there is neither a flag nor a reason.
	UnknownExplanation = Explanation{
		Reason:     "Eligibility criteria not met",
		Suggestion: "Try other lenders that may have different eligibility criteria.",
	}
)

// Explain is deterministic: flags beat the free-text reason, and the text
// rules are a fixed ordered list.
func Explain(o Offer) Explanation {
	var reasons, suggestions []string
	for _, rule := range FlagRules {
		if rule.Set(o) {
			reasons = append(reasons, rule.Reason)
			suggestions = append(suggestions, rule.Suggestion)
		}
	}
	if len(reasons) > 0 {
		return Explanation{
			Reason:     strings.Join(reasons, " "),
			Suggestion: strings.Join(suggestions, " "),
		}
	}

	reason := strings.ToLower(strings.TrimSpace(o.RejectedReason))
	if reason == "" {
		return UnknownExplanation
	}
	for _, rule := range TextRules {
		if rule.Match(reason) {
			return Explanation{Reason: rule.Reason, Suggestion: rule.Suggestion}
		}
	}
	return GenericExplanation
}
