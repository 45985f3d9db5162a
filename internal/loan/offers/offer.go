// Package offers turns the partner's offer payload into what the applicant
// sees: a canonical eligible/ineligible partition, facets, filtering,
// sorting, rank badges and rejection explanations.
package offers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a numeric offer field the backend sends either as a number or
// as a string. Unparsable values are kept as text and report !Valid().
type Amount struct {
	value decimal.Decimal
	text  string
	valid bool
}

func NewAmount(s string) Amount {
	var a Amount
	a.set(s)
	return a
}

func (a *Amount) set(s string) {
	a.text = strings.TrimSpace(s)
	d, err := decimal.NewFromString(a.text)
	a.value, a.valid = d, err == nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	*a = Amount{}
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		a.set(s)
		return nil
	case b[0] == '-' || (b[0] >= '0' && b[0] <= '9'):
		a.set(string(b))
		return nil
	default:
		// booleans, objects and arrays carry no amount
		a.text = string(b)
		return nil
	}
}

func (a Amount) MarshalJSON() ([]byte, error) {
	switch {
	case a.valid:
		return []byte(a.value.String()), nil
	case a.text == "":
		return []byte("null"), nil
	default:
		return json.Marshal(a.text)
	}
}

// Present reports whether the backend sent a value at all.
func (a Amount) Present() bool { return a.text != "" }

func (a Amount) Valid() bool { return a.valid }

func (a Amount) Decimal() decimal.Decimal { return a.value }

// Or returns the amount, or def when it is missing or unparsable.
func (a Amount) Or(def decimal.Decimal) decimal.Decimal {
	if !a.valid {
		return def
	}
	return a.value
}

// String is the value as the backend wrote it.
func (a Amount) String() string { return a.text }

// Flag is a rejection flag. Only JSON true, "true" and 1 count as set.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	switch strings.ToLower(strings.Trim(string(bytes.TrimSpace(b)), `"`)) {
	case "true", "1":
		*f = true
	default:
		*f = false
	}
	return nil
}

// Tag is a feature tag such as "Instant Approval". IDs are compared as
// strings so numeric and string ids from different lenders line up.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (t *Tag) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID   json.RawMessage `json:"id"`
		Name string          `json:"name"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	t.ID = idString(raw.ID)
	t.Name = raw.Name
	return nil
}

func idString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return strings.TrimSpace(s)
		}
		return ""
	}
	if n, err := strconv.ParseFloat(string(raw), 64); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return ""
}

// TagList decodes a tag array, skipping malformed entries. Anything other
// than an array decodes as nil.
type TagList []Tag

func (l *TagList) UnmarshalJSON(b []byte) error {
	*l = nil
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil || items == nil {
		return nil
	}
	out := make(TagList, 0, len(items))
	for _, item := range items {
		var t Tag
		if err := json.Unmarshal(item, &t); err == nil {
			out = append(out, t)
		}
	}
	*l = out
	return nil
}

// ID is an identifier the backend sends as a number or a string.
type ID string

func (i *ID) UnmarshalJSON(b []byte) error {
	*i = ID(idString(b))
	return nil
}

// Offer is one lender offer. Raw keeps the record exactly as received and
// is what MarshalJSON writes back.
type Offer struct {
	LenderID       ID     `json:"lender_id"`
	OfferID        ID     `json:"offer_id"`
	LenderName     string `json:"lender_name"`
	LenderImage    string `json:"lender_image"`
	LenderCategory string `json:"lender_category"`

	LoanOfferedUpto     Amount `json:"loan_offered_upto"`
	MinimumInterestRate Amount `json:"minimum_interest_rate"`
	MaximumInterestRate Amount `json:"maximum_interest_rate"`
	MaximumLoanTenure   Amount `json:"maximum_loan_tenure"`
	MaxLoanAllowed      Amount `json:"max_loan_allowed"`
	ProcessingFee       Amount `json:"processing_fee"`
	ProcessingFees      Amount `json:"processingFees"`
	MonthlyInstallment  Amount `json:"monthly_installment"`
	TotalPayableAmount  Amount `json:"total_payable_amount"`

	LoanTags TagList `json:"loan_tags"`
	LoanTag  TagList `json:"loan_tag"`
	ApplyURL string  `json:"apply_url"`

	RejectedReason         string `json:"rejectedReason"`
	AgeRejected            Flag   `json:"ageRejected"`
	SalaryRejected         Flag   `json:"salaryRejected"`
	LoanAmountRejected     Flag   `json:"loanAmountRejected"`
	EmploymentTypeRejected Flag   `json:"employmentTypeRejected"`
	SalaryModeRejected     Flag   `json:"salaryModeRejected"`
	PincodeReject          Flag   `json:"pincodeReject"`
	DedupeReject           Flag   `json:"dedupeReject"`
	CreditScoreReject      Flag   `json:"creditScoreReject"`
	BRE2CompanyCatReject   Flag   `json:"bre2CompanyCatReject"`

	Raw json.RawMessage `json:"-"`
}

// offerFields avoids recursing into Offer.UnmarshalJSON.
type offerFields Offer

func (o *Offer) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return fmt.Errorf("offer must be a JSON object")
	}

	var f offerFields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*o = Offer(f)
	o.Raw = append(json.RawMessage(nil), b...)
	return nil
}

func (o Offer) MarshalJSON() ([]byte, error) {
	if len(o.Raw) > 0 {
		return o.Raw, nil
	}
	return json.Marshal(offerFields(o))
}

// Tags returns loan_tags when the backend sent that key, else loan_tag.
func (o Offer) Tags() TagList {
	if o.LoanTags != nil {
		return o.LoanTags
	}
	return o.LoanTag
}

// HasTag reports whether any tag has one of ids.
func (o Offer) HasTag(ids map[string]struct{}) bool {
	for _, t := range o.Tags() {
		if _, ok := ids[t.ID]; ok && t.ID != "" {
			return true
		}
	}
	return false
}

// Instant reports whether a tag name contains "instant", any case.
func (o Offer) Instant() bool {
	for _, t := range o.Tags() {
		if strings.Contains(strings.ToLower(t.Name), "instant") {
			return true
		}
	}
	return false
}
