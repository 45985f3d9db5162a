// internal/workers/loan/present-loan-offers/handler.go
package presentloanoffers

import (
	"context"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"loangenius/internal/common/camunda"
	"loangenius/internal/common/errors"
	"loangenius/internal/common/logger"
	"loangenius/internal/common/observability"
	commonvalidation "loangenius/internal/common/validation"
	"loangenius/internal/loan/offers"
)

const (
	TaskType = "present-loan-offers"
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

func (h *Handler) Execute(_ context.Context, input *Input) (*Output, error) {
	key, err := offers.ParseSortKey(input.View.Sort)
	if err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}

	partition, err := offers.Normalize(input.Offers)
	if err != nil {
		return nil, errors.NewMalformedResponseError("offers", err.Error())
	}

	p := offers.Present(partition, offers.View{Sort: key, Selection: input.View.Selection})
	out := &Output{
		Presentation: p,
		HasOffers:    !partition.Empty(),
	}
	if len(p.Eligible) > 0 {
		out.TopLender = p.Eligible[0].Offer.LenderName
	}

	h.logger.Debug("offers presented", map[string]interface{}{
		"sort":       string(key),
		"eligible":   len(p.Eligible),
		"ineligible": len(p.Ineligible),
	})
	return out, nil
}
