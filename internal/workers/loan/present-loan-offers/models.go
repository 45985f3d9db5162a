// internal/workers/loan/present-loan-offers/models.go
package presentloanoffers

import (
	"encoding/json"

	"loangenius/internal/loan/offers"
)

// ViewInput carries the sort key as text so an unknown key can be reported.
type ViewInput struct {
	Sort      string           `json:"sort"`
	Selection offers.Selection `json:"selection"`
}

type Input struct {
	Offers json.RawMessage `json:"offers"`
	View   ViewInput       `json:"view"`
}

type Output struct {
	Presentation offers.Presentation `json:"presentation"`
	HasOffers    bool                `json:"hasOffers"`
	TopLender    string              `json:"topLender,omitempty"`
}
