// internal/loan/lookup/pincode.go
package lookup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"loangenius/internal/common/logger"
	"loangenius/internal/common/metrics"
	"loangenius/internal/common/partner"
	"loangenius/internal/loan/validation"
)

var (
	ErrIncompletePincode   = errors.New("pincode must be exactly 6 digits")
	ErrPincodeNotFound     = errors.New("pincode not found")
	ErrPincodeLookupFailed = errors.New("pincode lookup failed")
)

// FieldMessage is the field-level sentence for a Resolve error, or "" when
// the error should not be shown.
func FieldMessage(err error) string {
	switch {
	case errors.Is(err, ErrPincodeNotFound):
		return "Invalid pincode"
	case errors.Is(err, ErrPincodeLookupFailed):
		return "Failed to validate pincode"
	default:
		return ""
	}
}

// Target is the form field a pincode lookup fills in.
type Target int

const (
	Residential Target = iota
	Office
)

func (t Target) String() string {
	if t == Office {
		return "office"
	}
	return "residential"
}

// Fields returns the pincode, city and state field names for t.
func (t Target) Fields() (pincode, city, state string) {
	if t == Office {
		return "office_pincode", "office_city", "office_state"
	}
	return "pincode", "city", "state"
}

// Resolution is the city and state for a pincode.
type Resolution struct {
	Pincode string
	City    string
	State   string
}

// PincodeSource is the backend half of pincode resolution.
type PincodeSource interface {
	SearchPincode(ctx context.Context, pincode string) ([]partner.PincodeRecord, error)
}

// PincodeResolver keeps one debouncer per target so residential and office
// lookups never supersede each other.
type PincodeResolver struct {
	debouncers map[Target]*Debouncer[string, *Resolution]
	logger     logger.Logger
}

func NewPincodeResolver(src PincodeSource, debounce time.Duration, log logger.Logger) *PincodeResolver {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	r := &PincodeResolver{
		debouncers: map[Target]*Debouncer[string, *Resolution]{},
		logger:     log.WithFields(map[string]interface{}{"lookup": "pincode"}),
	}

	query := func(ctx context.Context, code string) (*Resolution, error) {
		records, err := src.SearchPincode(ctx, code)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %v", ErrPincodeLookupFailed, err)
		}
		if len(records) == 0 {
			return nil, ErrPincodeNotFound
		}
		return &Resolution{Pincode: code, City: records[0].City, State: records[0].State}, nil
	}

	for _, t := range []Target{Residential, Office} {
		r.debouncers[t] = NewDebouncer[string, *Resolution](debounce, query)
	}
	return r
}

// Resolve looks up code for target. Codes that are not exactly six digits
// return ErrIncompletePincode without I/O.
func (r *PincodeResolver) Resolve(ctx context.Context, target Target, code string) (*Resolution, error) {
	d, ok := r.debouncers[target]
	if !ok {
		return nil, fmt.Errorf("unknown pincode target %d", target)
	}

	code = strings.TrimSpace(code)
	if !validation.IsSixDigitPincode(code) {
		d.Cancel()
		return nil, ErrIncompletePincode
	}

	res, err := d.Do(ctx, code)
	switch {
	case err == nil:
		metrics.LookupRequests.WithLabelValues("pincode", "ok").Inc()
	case errors.Is(err, ErrSuperseded):
		metrics.LookupRequests.WithLabelValues("pincode", "superseded").Inc()
	case errors.Is(err, ErrPincodeNotFound):
		metrics.LookupRequests.WithLabelValues("pincode", "not_found").Inc()
	case errors.Is(err, ErrPincodeLookupFailed):
		metrics.LookupRequests.WithLabelValues("pincode", "failed").Inc()
		r.logger.Warn("Pincode lookup failed", map[string]interface{}{
			"target":  target.String(),
			"pincode": code,
			"error":   err.Error(),
		})
	}
	return res, err
}
