package submission

import (
	"context"
	"encoding/json"

	"loangenius/internal/common/errors"
	"loangenius/internal/common/partner"
	"loangenius/internal/loan/store"
)

// Stored is the last successful submission as read back from a KV.
type Stored struct {
	Offers json.RawMessage
	Lead   partner.LeadRef
}

// SaveResult writes a successful result under loanOffers and leadInfo.
func SaveResult(ctx context.Context, kv store.KV, r *Result) error {
	if r == nil || !r.Success {
		return nil
	}
	lead, err := json.Marshal(partner.LeadRef{LeadID: r.LeadID, ExitID: r.ExitID, Vendor: r.Vendor})
	if err != nil {
		return errors.NewStorageError("encode lead info", err)
	}
	offers := r.Offers
	if len(offers) == 0 {
		offers = json.RawMessage("null")
	}
	if err := kv.Set(ctx, store.KeyLoanOffers, string(offers)); err != nil {
		return err
	}
	return kv.Set(ctx, store.KeyLeadInfo, string(lead))
}

// LoadLastResult reads back what SaveResult wrote. ok is false when nothing
// usable is stored.
func LoadLastResult(ctx context.Context, kv store.KV) (*Stored, bool, error) {
	rawOffers, ok, err := kv.Get(ctx, store.KeyLoanOffers)
	if err != nil || !ok {
		return nil, false, err
	}
	if !json.Valid([]byte(rawOffers)) {
		return nil, false, nil
	}

	out := &Stored{Offers: json.RawMessage(rawOffers)}
	rawLead, ok, err := kv.Get(ctx, store.KeyLeadInfo)
	if err != nil {
		return nil, false, err
	}
	if ok {
		// A damaged leadInfo still leaves the offers usable.
		_ = json.Unmarshal([]byte(rawLead), &out.Lead)
	}
	return out, true, nil
}

// ClearLastResult drops the persisted offers and lead identifiers.
func ClearLastResult(ctx context.Context, kv store.KV) error {
	return kv.Delete(ctx, store.KeyLoanOffers, store.KeyLeadInfo)
}
