// Package submission sends a completed application to the partner in two
// phases: create the lead shell, then submit the applicant details.
package submission

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"loangenius/internal/common/errors"
	"loangenius/internal/common/logger"
	"loangenius/internal/common/metrics"
	"loangenius/internal/common/observability"
	"loangenius/internal/common/partner"
	"loangenius/internal/common/retry"
	"loangenius/internal/loan/application"
	"loangenius/internal/loan/store"
	"loangenius/internal/loan/validation"
)

const (
	DefaultMaxAttempts    = 3
	DefaultBaseDelay      = time.Second
	DefaultMaxDelay       = 5 * time.Second
	DefaultAttemptTimeout = 30 * time.Second
)

// LeadAPI is the partner surface the orchestrator needs.
type LeadAPI interface {
	CreateLead(ctx context.Context, authToken string) (*partner.LeadRef, error)
	SubmitLeadDetails(ctx context.Context, authToken string, details partner.LeadDetails) (json.RawMessage, error)
}

type Options struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration

	// Store, when set, receives the offers and lead identifiers of a
	// successful submission.
	Store         store.KV
	Observability *observability.Observability
	Logger        logger.Logger
	RetryOptions  []retry.Option
}

// Result is the outcome of Submit. Offers is the partner's data payload,
// untouched.
type Result struct {
	Success  bool            `json:"success"`
	LeadID   string          `json:"leadId,omitempty"`
	ExitID   string          `json:"exitId,omitempty"`
	Vendor   string          `json:"vendor,omitempty"`
	Offers   json.RawMessage `json:"offers,omitempty"`
	Error    string          `json:"error,omitempty"`
	Attempts int             `json:"attempts"`

	Err error `json:"-"`
}

type Orchestrator struct {
	api    LeadAPI
	opts   Options
	policy retry.Policy
	logger logger.Logger
}

func NewOrchestrator(api LeadAPI, opts Options) *Orchestrator {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultMaxDelay
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = DefaultAttemptTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}

	return &Orchestrator{
		api:  api,
		opts: opts,
		policy: retry.Policy{
			MaxAttempts: opts.MaxAttempts,
			BaseDelay:   opts.BaseDelay,
			MaxDelay:    opts.MaxDelay,
		},
		logger: opts.Logger.WithFields(map[string]interface{}{"component": "submission"}),
	}
}

// Submit runs both phases for form. It never returns nil; failures are
// reported through Result.Success, Result.Error and Result.Err.
func (o *Orchestrator) Submit(ctx context.Context, form application.Form, bearerToken string) *Result {
	started := time.Now()
	ctx, span := o.opts.Observability.StartSpan(ctx, "lead.submit")
	defer span.End()

	result := o.submit(ctx, form, bearerToken)

	outcome := "success"
	if !result.Success {
		outcome = "failed"
		span.SetStatus(codes.Error, result.Error)
	}
	span.SetAttributes(attribute.Int("attempts", result.Attempts))
	metrics.LeadSubmissions.WithLabelValues(outcome).Inc()
	o.opts.Observability.RecordSubmission(ctx, time.Since(started), outcome)
	return result
}

func (o *Orchestrator) submit(ctx context.Context, form application.Form, bearerToken string) *Result {
	if bearerToken == "" {
		err := errors.NewAuthenticationError("missing bearer token")
		return &Result{Error: errors.UserMessage(err), Err: err}
	}

	ref, err := o.createLead(ctx, bearerToken)
	if err != nil {
		o.logger.Error("Lead creation failed", map[string]interface{}{"error": err.Error()})
		return &Result{Error: errors.UserMessage(err), Err: errors.NewLeadCreateError(err)}
	}

	log := o.logger.WithFields(map[string]interface{}{"leadId": ref.LeadID})
	log.Info("Lead created", map[string]interface{}{"vendor": ref.Vendor})

	details := BuildLeadDetails(form, *ref)
	offers, attempts, err := o.submitDetails(ctx, bearerToken, details, log)

	result := &Result{
		LeadID:   ref.LeadID,
		ExitID:   ref.ExitID,
		Vendor:   ref.Vendor,
		Attempts: attempts,
	}
	if err != nil {
		log.Error("Lead details submission failed", map[string]interface{}{
			"attempts": attempts,
			"error":    err.Error(),
		})
		result.Error = errors.UserMessage(err)
		result.Err = err
		return result
	}

	result.Success = true
	result.Offers = offers
	log.Info("Lead details submitted", map[string]interface{}{"attempts": attempts})

	if o.opts.Store != nil {
		if err := SaveResult(ctx, o.opts.Store, result); err != nil {
			log.Warn("Failed to persist submission result", map[string]interface{}{"error": err.Error()})
		}
	}
	return result
}

func (o *Orchestrator) createLead(ctx context.Context, bearerToken string) (*partner.LeadRef, error) {
	ctx, span := o.opts.Observability.StartSpan(ctx, "lead.create")
	defer span.End()

	attemptCtx, cancel := context.WithTimeout(ctx, o.opts.AttemptTimeout)
	defer cancel()

	ref, err := o.api.CreateLead(attemptCtx, bearerToken)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if ref == nil || ref.LeadID == "" {
		err := errors.NewMalformedResponseError("create lead", "missing lead_id")
		err.Message = "Failed to create lead"
		span.SetStatus(codes.Error, err.Details)
		return nil, err
	}
	return ref, nil
}

func (o *Orchestrator) submitDetails(ctx context.Context, bearerToken string, details partner.LeadDetails, log logger.Logger) (json.RawMessage, int, error) {
	ctx, span := o.opts.Observability.StartSpan(ctx, "lead.submit_details")
	defer span.End()

	policy := o.policy
	policy.IsRetryable = func(err error) bool {
		if ctx.Err() != nil {
			return false
		}
		return !errors.HasCode(err, errors.ErrCodeAuthentication)
	}

	opts := append([]retry.Option{
		retry.WithOnRetry(func(attempt int, delay time.Duration, err error) {
			log.Warn("Lead details attempt failed, retrying", map[string]interface{}{
				"attempt": attempt,
				"delay":   delay.String(),
				"error":   err.Error(),
			})
		}),
	}, o.opts.RetryOptions...)

	var offers json.RawMessage
	attempts, err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) error {
		attemptCtx, cancel := context.WithTimeout(ctx, o.opts.AttemptTimeout)
		defer cancel()

		data, err := o.api.SubmitLeadDetails(attemptCtx, bearerToken, details)
		if err != nil {
			if ctx.Err() == nil && stderrors.Is(attemptCtx.Err(), context.DeadlineExceeded) && !errors.HasCode(err, errors.ErrCodeRequestTimeout) {
				err = errors.NewRequestTimeoutError("submit lead details", err)
			}
			metrics.LeadSubmitAttempts.WithLabelValues(attemptLabel(err)).Inc()
			return err
		}
		metrics.LeadSubmitAttempts.WithLabelValues("ok").Inc()
		offers = data
		return nil
	}, opts...)

	span.SetAttributes(attribute.Int("attempts", attempts))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, attempts, err
	}
	return offers, attempts, nil
}

func attemptLabel(err error) string {
	if stdErr, ok := errors.AsStandard(err); ok {
		return string(stdErr.Code)
	}
	if stderrors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "error"
}

// BuildLeadDetails maps the questionnaire onto the phase-two payload.
func BuildLeadDetails(form application.Form, ref partner.LeadRef) partner.LeadDetails {
	creditRange := form.CreditRange
	if creditRange == "" {
		creditRange = "850"
	}
	totalEMIs := form.TotalEMIs
	if totalEMIs < 0 {
		totalEMIs = 0
	}
	existingCredit := false
	if form.AlreadyExistingCredit != nil {
		existingCredit = *form.AlreadyExistingCredit
	}

	return partner.LeadDetails{
		LeadID:                ref.LeadID,
		ExitID:                ref.ExitID,
		Vendor:                ref.Vendor,
		BREFlag:               true,
		GenerateExit:          true,
		FirstName:             form.FirstName,
		LastName:              form.LastName,
		Gender:                form.Gender,
		DOB:                   form.DOB,
		LoanAmountRequired:    form.LoanAmountRequired,
		AlreadyExistingCredit: existingCredit,
		EmploymentStatus:      form.EmploymentStatus,
		InhandIncome:          form.InhandIncome,
		SalaryReceivedIn:      form.SalaryReceivedIn,
		CompanyName:           form.CompanyName,
		Pincode:               form.Pincode,
		OfficePincode:         form.OfficePincode,
		City:                  form.City,
		State:                 form.State,
		PAN:                   validation.NormalizePAN(form.PAN),
		Email:                 form.Email,
		FetchCreditConsent:    form.FetchCreditConsent,
		KnowYourCreditScore:   form.KnowYourCreditScore,
		CreditRange:           creditRange,
		TotalEMIs:             totalEMIs,
	}
}
