// internal/workers/loan/validate-questionnaire-step/handler.go
package validatequestionnairestep

import (
	"context"
	"fmt"
	"math"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"loangenius/internal/common/camunda"
	"loangenius/internal/common/errors"
	"loangenius/internal/common/logger"
	"loangenius/internal/common/observability"
	commonvalidation "loangenius/internal/common/validation"
	"loangenius/internal/loan/application"
	"loangenius/internal/loan/validation"
)

const (
	TaskType = "validate-questionnaire-step"
)

type Handler struct {
	runner *camunda.Runner[Input, Output]
	logger logger.Logger
}

func NewHandler(config *Config, schema *commonvalidation.Schema, obs *observability.Observability, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	h := &Handler{logger: log.WithFields(map[string]interface{}{"taskType": TaskType})}
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

// Execute validates the fields of one step. It never fails for an invalid
// form; that is reported in the output so the process can loop back.
func (h *Handler) Execute(_ context.Context, input *Input) (*Output, error) {
	step := application.Step(input.Step)
	if !step.Valid() {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("step must be between 1 and %d, got %d", application.TotalSteps, input.Step))
	}

	errs := validation.ValidateStep(step, input.Form)
	out := &Output{
		Valid:    errs.Valid(),
		Errors:   errs,
		NextStep: int(step),
	}

	switch {
	case !out.Valid:
		out.FirstInvalidField = validation.FirstInvalidField(errs)
	case step == application.StepIncomeLocation:
		out.ReadyToSubmit = true
	default:
		out.NextStep = int(step) + 1
	}
	out.ProgressPercent = int(math.Round(float64(out.NextStep) / float64(application.TotalSteps) * 100))

	h.logger.Debug("step validated", map[string]interface{}{
		"step":  input.Step,
		"valid": out.Valid,
		"field": out.FirstInvalidField,
	})
	return out, nil
}
