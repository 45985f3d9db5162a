// cmd/worker-manager/workers.go
package main

import (
	"database/sql"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"loangenius/internal/common/config"
	"loangenius/internal/common/logger"
	"loangenius/internal/common/observability"
	"loangenius/internal/common/validation"
	"loangenius/pkg/registry"

	pl "loangenius/internal/workers/loan/present-loan-offers"
	rl "loangenius/internal/workers/loan/record-loan-lead"
	sl "loangenius/internal/workers/loan/submit-loan-lead"
	vq "loangenius/internal/workers/loan/validate-questionnaire-step"
)

type deps struct {
	cfg        *config.Config
	reg        *registry.ActivityRegistry
	db         *sql.DB
	submitter  sl.Submitter
	leadEvents rl.Publisher
	obs        *observability.Observability
	log        logger.Logger
}

// buildHandlers creates one handler per loan task type, each guarded by the
// input schema its registry entry declares.
func buildHandlers(d deps) (map[string]worker.JobHandler, error) {
	schemas := map[string]*validation.Schema{}
	for _, taskType := range []string{vq.TaskType, sl.TaskType, pl.TaskType, rl.TaskType} {
		activity, ok := d.reg.Find(taskType)
		if !ok {
			return nil, fmt.Errorf("task type %q is missing from the activity registry", taskType)
		}
		schema, err := activity.InputValidator()
		if err != nil {
			return nil, fmt.Errorf("input schema of %q: %w", taskType, err)
		}
		schemas[taskType] = schema
	}

	wc := func(taskType string) config.WorkerConfig {
		return config.GetWorkerConfig(d.cfg, taskType)
	}

	var recordOpts []rl.Option
	if d.leadEvents != nil {
		recordOpts = append(recordOpts, rl.WithLeadEvents(d.leadEvents, d.cfg.Notify.LeadTopicARN))
	}

	return map[string]worker.JobHandler{
		vq.TaskType: vq.NewHandler(vq.LoadConfig(wc(vq.TaskType)), schemas[vq.TaskType], d.obs, d.log).Handle,
		sl.TaskType: sl.NewHandler(sl.LoadConfig(wc(sl.TaskType)), d.submitter, schemas[sl.TaskType], d.obs, d.log).Handle,
		pl.TaskType: pl.NewHandler(pl.LoadConfig(wc(pl.TaskType)), schemas[pl.TaskType], d.obs, d.log).Handle,
		rl.TaskType: rl.NewHandler(rl.LoadConfig(wc(rl.TaskType)), d.db, schemas[rl.TaskType], d.obs, d.log, recordOpts...).Handle,
	}, nil
}
