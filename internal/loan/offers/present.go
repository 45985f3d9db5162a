package offers

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

type SortKey string

const (
	SortRecommended    SortKey = "recommended"
	SortTotalPayable   SortKey = "totalPayable"
	SortLoanAmount     SortKey = "loanAmount"
	SortTenure         SortKey = "tenure"
	SortInterestRate   SortKey = "interestRate"
	SortProcessingFees SortKey = "processingFees"
)

// SortKeys lists every key with the label shown to the applicant.
var SortKeys = []struct {
	Key   SortKey
	Label string
}{
	{SortRecommended, "Recommended"},
	{SortTotalPayable, "Total Payable (Lowest to Highest)"},
	{SortLoanAmount, "Loan Amount (Highest to Lowest)"},
	{SortTenure, "Tenure (Longest to Shortest)"},
	{SortInterestRate, "Interest Rate (Lowest to Highest)"},
	{SortProcessingFees, "Processing Fees (Lowest to Highest)"},
}

func ParseSortKey(s string) (SortKey, error) {
	if s == "" {
		return SortRecommended, nil
	}
	for _, k := range SortKeys {
		if string(k.Key) == s {
			return k.Key, nil
		}
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// missingRate sorts offers without an interest rate after every real rate.
var missingRate = decimal.NewFromInt(999)

// Facets are the filter choices offered for a result set.
type Facets struct {
	Features   []Tag    `json:"features"`
	Categories []string `json:"categories"`
}

// ExtractFacets scans eligible then ineligible offers once and collects
// tags unique by id and categories unique by string, in first-seen order.
// Tags without both an id and a name are skipped.
func ExtractFacets(p Partition) Facets {
	f := Facets{Features: []Tag{}, Categories: []string{}}
	seenTags := map[string]struct{}{}
	seenCats := map[string]struct{}{}

	for _, o := range p.All() {
		for _, t := range o.Tags() {
			if t.ID == "" || t.Name == "" {
				continue
			}
			if _, ok := seenTags[t.ID]; ok {
				continue
			}
			seenTags[t.ID] = struct{}{}
			f.Features = append(f.Features, t)
		}
		if c := o.LenderCategory; c != "" {
			if _, ok := seenCats[c]; !ok {
				seenCats[c] = struct{}{}
				f.Categories = append(f.Categories, c)
			}
		}
	}
	return f
}

// Selection is the applicant's filter state. Empty lists select everything.
type Selection struct {
	FeatureIDs []string `json:"featureIds,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// Filter keeps offers carrying any selected tag and belonging to any
// selected category. The input is not modified.
func Filter(offers []Offer, sel Selection) []Offer {
	ids := make(map[string]struct{}, len(sel.FeatureIDs))
	for _, id := range sel.FeatureIDs {
		ids[id] = struct{}{}
	}
	cats := make(map[string]struct{}, len(sel.Categories))
	for _, c := range sel.Categories {
		cats[c] = struct{}{}
	}

	out := make([]Offer, 0, len(offers))
	for _, o := range offers {
		if len(ids) > 0 && !o.HasTag(ids) {
			continue
		}
		if len(cats) > 0 {
			if _, ok := cats[o.LenderCategory]; !ok {
				continue
			}
		}
		out = append(out, o)
	}
	return out
}

// Sort returns a stably sorted copy. SortRecommended and unknown keys keep
// the backend order.
func Sort(offers []Offer, key SortKey) []Offer {
	out := append([]Offer(nil), offers...)
	if out == nil {
		out = []Offer{}
	}

	var value func(Offer) decimal.Decimal
	ascending := true
	switch key {
	case SortTotalPayable:
		value = func(o Offer) decimal.Decimal { return o.TotalPayableAmount.Or(decimal.Zero) }
	case SortLoanAmount:
		value = func(o Offer) decimal.Decimal { return o.LoanOfferedUpto.Or(decimal.Zero) }
		ascending = false
	case SortTenure:
		value = func(o Offer) decimal.Decimal { return o.MaximumLoanTenure.Or(decimal.Zero) }
		ascending = false
	case SortInterestRate:
		value = interestRateValue
	case SortProcessingFees:
		value = processingFeeValue
	default:
		return out
	}

	keys := make([]decimal.Decimal, len(out))
	for i, o := range out {
		keys[i] = value(o)
	}
	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if ascending {
			return keys[idx[a]].LessThan(keys[idx[b]])
		}
		return keys[idx[a]].GreaterThan(keys[idx[b]])
	})

	sorted := make([]Offer, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return sorted
}

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// interestRateValue reads the number a rate starts with, so "10.5%" and
// "12 % p.a." sort as 10.5 and 12. No leading number means missing.
func interestRateValue(o Offer) decimal.Decimal {
	rate := o.MinimumInterestRate
	if rate.Valid() {
		return rate.Decimal()
	}
	m := leadingNumber.FindString(rate.String())
	if m == "" {
		return missingRate
	}
	d, err := decimal.NewFromString(m)
	if err != nil {
		return missingRate
	}
	return d
}

// processingFeeValue strips everything but digits and dots from
// processingFees ("₹1,999 + GST" sorts as 1999).
func processingFeeValue(o Offer) decimal.Decimal {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, o.ProcessingFees.String())
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// View is the applicant's sort and filter choice.
type View struct {
	Sort      SortKey   `json:"sort"`
	Selection Selection `json:"selection"`
}

const (
	BadgeInstant = "INSTANT"
	topPicks     = 3
)

// Card is an offer ready to render.
type Card struct {
	Offer Offer `json:"offer"`
	// Rank is the 1-based position among eligible offers; 0 for ineligible.
	Rank        int          `json:"rank,omitempty"`
	Badges      []string     `json:"badges"`
	Explanation *Explanation `json:"explanation,omitempty"`
}

// Pick reports whether the card carries a "#N PICK" badge.
func (c Card) Pick() bool {
	return c.Rank > 0 && c.Rank <= topPicks
}

type Presentation struct {
	Eligible   []Card `json:"eligible"`
	Ineligible []Card `json:"ineligible"`
	Facets     Facets `json:"facets"`
	Total      int    `json:"total"`
}

// Present filters and sorts each partition independently and annotates the
// result. Facets always describe the unfiltered partition.
func Present(p Partition, v View) Presentation {
	eligible := Sort(Filter(p.Eligible, v.Selection), v.Sort)
	ineligible := Sort(Filter(p.Ineligible, v.Selection), v.Sort)

	out := Presentation{
		Eligible:   make([]Card, 0, len(eligible)),
		Ineligible: make([]Card, 0, len(ineligible)),
		Facets:     ExtractFacets(p),
		Total:      len(eligible) + len(ineligible),
	}

	for i, o := range eligible {
		c := Card{Offer: o, Rank: i + 1, Badges: []string{}}
		if c.Pick() {
			c.Badges = append(c.Badges, fmt.Sprintf("#%d PICK", c.Rank))
		}
		if o.Instant() {
			c.Badges = append(c.Badges, BadgeInstant)
		}
		out.Eligible = append(out.Eligible, c)
	}
	for _, o := range ineligible {
		exp := Explain(o)
		c := Card{Offer: o, Badges: []string{}, Explanation: &exp}
		if o.Instant() {
			c.Badges = append(c.Badges, BadgeInstant)
		}
		out.Ineligible = append(out.Ineligible, c)
	}
	return out
}
