// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"loangenius/internal/common/config"
	"loangenius/internal/common/errors"
	"loangenius/internal/common/logger"
	"loangenius/internal/common/metrics"
	"loangenius/internal/common/observability"
	"loangenius/internal/common/validation"
)

// Executor is the business half of a job worker.
type Executor[I, O any] func(ctx context.Context, input *I) (*O, error)

type RunnerOptions struct {
	// Timeout bounds one job execution; zero means 30s.
	Timeout       time.Duration
	Schema        *validation.Schema
	Observability *observability.Observability
	Logger        logger.Logger
}

// Runner turns an Executor into a Zeebe job handler: it checks the job
// variables against the input schema, decodes them, runs the executor and
// completes the job, or hands the error to errors.ErrorHandler.
type Runner[I, O any] struct {
	taskType string
	exec     Executor[I, O]
	timeout  time.Duration
	schema   *validation.Schema
	obs      *observability.Observability
	errors   *errors.ErrorHandler
	logger   logger.Logger
}

func NewRunner[I, O any](taskType string, exec Executor[I, O], opts RunnerOptions) *Runner[I, O] {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithFields(map[string]interface{}{"taskType": taskType})
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Runner[I, O]{
		taskType: taskType,
		exec:     exec,
		timeout:  timeout,
		schema:   opts.Schema,
		obs:      opts.Observability,
		errors:   errors.NewErrorHandler(log),
		logger:   log,
	}
}

func (r *Runner[I, O]) TaskType() string {
	return r.taskType
}

// Process validates and decodes variables and runs the executor under the
// job timeout.
func (r *Runner[I, O]) Process(ctx context.Context, variables string) (*O, error) {
	if strings.TrimSpace(variables) == "" {
		variables = "{}"
	}

	if r.schema != nil {
		res, err := r.schema.ValidateJSON(variables)
		if err != nil {
			return nil, errors.NewInvalidInputError(err.Error())
		}
		if !res.Valid {
			return nil, errors.NewInvalidInputError(strings.Join(res.GetErrorMessages(), "; "))
		}
	}

	var input I
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, errors.NewInvalidInputError("parse input: " + err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.exec(ctx, &input)
}

// Handle satisfies worker.JobHandler.
func (r *Runner[I, O]) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	ctx, span := r.obs.StartSpan(context.Background(), "job."+r.taskType,
		attribute.Int64("job.key", job.Key),
		attribute.Int64("process.instance.key", job.ProcessInstanceKey),
	)
	defer span.End()

	r.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	output, err := r.Process(ctx, job.Variables)
	if err != nil {
		stdErr := errors.Normalize(err)
		span.SetStatus(codes.Error, string(stdErr.Code))
		metrics.WorkerJobsFailed.WithLabelValues(r.taskType, string(stdErr.Code)).Inc()
		r.obs.RecordJobProcessed(ctx, "failed")
		r.obs.RecordJobDuration(ctx, time.Since(start), "failed")
		r.errors.HandleJobError(ctx, client, job, stdErr)
		return
	}

	r.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(r.taskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(r.taskType).Observe(time.Since(start).Seconds())
	r.obs.RecordJobProcessed(ctx, "completed")
	r.obs.RecordJobDuration(ctx, time.Since(start), "completed")
}

func (r *Runner[I, O]) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *O) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		r.logger.Error("failed to create complete job command", map[string]interface{}{"error": err.Error()})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		r.logger.Error("failed to send complete job command", map[string]interface{}{"error": err.Error()})
		return
	}
	r.logger.Info("job completed successfully", map[string]interface{}{"jobKey": job.Key})
}

// Pool owns the open job workers so they can be closed together.
type Pool struct {
	client  zbc.Client
	logger  logger.Logger
	mu      sync.Mutex
	workers map[string]worker.JobWorker
}

func NewPool(client zbc.Client, log logger.Logger) *Pool {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Pool{client: client, logger: log, workers: map[string]worker.JobWorker{}}
}

// Start opens a worker for taskType unless cfg disables it.
func (p *Pool) Start(taskType string, cfg config.WorkerConfig, handler worker.JobHandler) bool {
	if !cfg.Enabled {
		p.logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return false
	}

	w := p.client.NewJobWorker().
		JobType(taskType).
		Handler(handler).
		MaxJobsActive(cfg.MaxJobsActive).
		Timeout(config.GetDuration(cfg.Timeout)).
		Open()

	p.mu.Lock()
	p.workers[taskType] = w
	p.mu.Unlock()

	p.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": cfg.MaxJobsActive,
		"timeout_ms":    cfg.Timeout,
	})
	return true
}

// Running lists the task types with an open worker.
func (p *Pool) Running() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.workers))
	for t := range p.workers {
		out = append(out, t)
	}
	return out
}

// Close stops polling and waits for in-flight jobs.
func (p *Pool) Close() {
	p.mu.Lock()
	workers := p.workers
	p.workers = map[string]worker.JobWorker{}
	p.mu.Unlock()

	for taskType, w := range workers {
		p.logger.Info("stopping worker", map[string]interface{}{"taskType": taskType})
		w.Close()
		w.AwaitClose()
	}
}
