package offers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnrecognizedPayload is returned for JSON that is not an object.
var ErrUnrecognizedPayload = errors.New("offer payload is not a JSON object")

// Partition is the canonical shape every backend variant is normalized to.
// An offer is in exactly one of the two lists.
type Partition struct {
	Eligible   []Offer `json:"eligible"`
	Ineligible []Offer `json:"ineligible"`
}

// All returns the eligible offers followed by the ineligible ones.
func (p Partition) All() []Offer {
	out := make([]Offer, 0, len(p.Eligible)+len(p.Ineligible))
	out = append(out, p.Eligible...)
	return append(out, p.Ineligible...)
}

func (p Partition) Empty() bool {
	return len(p.Eligible) == 0 && len(p.Ineligible) == 0
}

// Normalize accepts every offer payload shape the partner is known to send:
//
//	{"isEligible": [...], "inEligibleOffers": [...]}
//	{"offers": [...], "inEligibleOffers": [...]}
//	{"data": {<either of the above>}}
//	{"offers": {"isEligible": [...], "inEligibleOffers": [...]}}
//
// Eligible offers come from the first array found among offers, isEligible,
// data.isEligible, data.offers and offers.isEligible. Ineligible offers come
// from inEligibleOffers, data.inEligibleOffers or offers.inEligibleOffers.
// Keys holding something other than an array are ignored, and so are array
// entries that are not objects. A null or empty payload is an empty
// partition.
func Normalize(raw json.RawMessage) (Partition, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Partition{}, nil
	}

	var root map[string]json.RawMessage
	if err := json.Unmarshal(raw, &root); err != nil {
		if json.Valid(raw) {
			return Partition{}, ErrUnrecognizedPayload
		}
		return Partition{}, fmt.Errorf("decode offer payload: %w", err)
	}

	data := object(root["data"])
	nested := object(root["offers"])

	var p Partition
	for _, candidate := range []json.RawMessage{
		root["offers"],
		root["isEligible"],
		data["isEligible"],
		data["offers"],
		nested["isEligible"],
	} {
		if list, ok := array(candidate); ok {
			p.Eligible = list
			break
		}
	}
	for _, candidate := range []json.RawMessage{
		root["inEligibleOffers"],
		data["inEligibleOffers"],
		nested["inEligibleOffers"],
	} {
		if list, ok := array(candidate); ok {
			p.Ineligible = list
			break
		}
	}
	return p, nil
}

func object(raw json.RawMessage) map[string]json.RawMessage {
	var m map[string]json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &m) != nil {
		return nil
	}
	return m
}

func array(raw json.RawMessage) ([]Offer, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	out := make([]Offer, 0, len(items))
	for _, item := range items {
		var o Offer
		if err := json.Unmarshal(item, &o); err == nil {
			out = append(out, o)
		}
	}
	return out, true
}
