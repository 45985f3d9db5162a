// internal/workers/loan/submit-loan-lead/handler.go
package submitloanlead

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"loangenius/internal/common/camunda"
	"loangenius/internal/common/errors"
	"loangenius/internal/common/logger"
	"loangenius/internal/common/observability"
	commonvalidation "loangenius/internal/common/validation"
	"loangenius/internal/loan/application"
	"loangenius/internal/loan/submission"
	"loangenius/internal/loan/validation"
)

const (
	TaskType = "submit-loan-lead"
)

// Submitter is satisfied by *submission.Orchestrator.
type Submitter interface {
	Submit(ctx context.Context, form application.Form, bearerToken string) *submission.Result
}

type Handler struct {
	config    *Config
	submitter Submitter
	runner    *camunda.Runner[Input, Output]
	logger    logger.Logger
}

func NewHandler(config *Config, submitter Submitter, schema *commonvalidation.Schema, obs *observability.Observability, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	h := &Handler{
		config:    config,
		submitter: submitter,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
	h.runner = camunda.NewRunner(TaskType, h.Execute, camunda.RunnerOptions{
		Timeout:       config.Timeout,
		Schema:        schema,
		Observability: obs,
		Logger:        log,
	})
	return h
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.runner.Handle(client, job)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if errs := validation.ValidateAll(input.Form); !errs.Valid() {
		field := errs.First()
		return nil, errors.NewValidationError(field, errs[field])
	}

	result := h.submitter.Submit(ctx, input.Form, input.BearerToken)
	if !result.Success {
		h.logger.Warn("lead submission failed", map[string]interface{}{
			"attempts": result.Attempts,
			"error":    result.Error,
		})
		return nil, finalFailure(result)
	}

	h.logger.Info("lead submitted", map[string]interface{}{
		"leadId":   result.LeadID,
		"vendor":   result.Vendor,
		"attempts": result.Attempts,
	})

	return &Output{
		Success:  true,
		LeadID:   result.LeadID,
		ExitID:   result.ExitID,
		Vendor:   result.Vendor,
		Offers:   result.Offers,
		Attempts: result.Attempts,
	}, nil
}

// finalFailure stops Zeebe from retrying a submission the orchestrator has
// already retried; another job attempt would create a second lead.
func finalFailure(result *submission.Result) error {
	var stdErr *errors.StandardError
	if result.Err != nil {
		stdErr = errors.Normalize(result.Err)
	} else {
		stdErr = errors.NewBusinessRuleError(result.Error, "submission failed without a cause")
	}
	final := *stdErr
	final.Retryable = false
	return &final
}
