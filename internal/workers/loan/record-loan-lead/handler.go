// internal/workers/loan/record-loan-lead/handler.go
package recordloanlead

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"loangenius/internal/common/camunda"
	"loangenius/internal/common/errors"
	"loangenius/internal/common/logger"
	"loangenius/internal/common/observability"
	commonvalidation "loangenius/internal/common/validation"
	"loangenius/internal/loan/offers"
	"loangenius/internal/models"
)

const (
	TaskType = "record-loan-lead"
)

// Publisher announces recorded leads to downstream consumers.
type Publisher interface {
	PublishJSON(ctx context.Context, topicARN, eventType string, event interface{}) (string, error)
}

type Handler struct {
	db        *sql.DB
	now       func() time.Time
	publisher Publisher
	topicARN  string
	runner    *camunda.Runner[Input, Output]
	logger    logger.Logger
}

type Option func(*Handler)

// WithLeadEvents publishes a lead_recorded event to topicARN after each insert.
func WithLeadEvents(p Publisher, topicARN string) Option {
	return func(h *Handler) {
		h.publisher = p
		h.topicARN = topicARN
	}
}

func NewHandler(config *Config, db *sql.DB, schema *commonvalidation.Schema, obs *observability.Observability, log logger.Logger, opts ...Option) *Handler {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	h := &Handler{
		db:     db,
		now:    func() time.Time { return time.Now().UTC() },
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
	for _, opt := range opts {
		opt(h)
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
	var exists bool
	err := h.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM loan_leads WHERE lead_id = $1)`, input.LeadID).Scan(&exists)
	if err != nil {
		return nil, errors.NewDatabaseInsertError(fmt.Errorf("duplicate check failed: %w", err))
	}
	if exists {
		return nil, errors.NewDuplicateLeadError(input.LeadID)
	}

	// Counts are informational; an unreadable payload is stored as-is.
	partition, err := offers.Normalize(input.Offers)
	if err != nil {
		h.logger.Warn("offer payload not recognized", map[string]interface{}{
			"leadId": input.LeadID,
			"error":  err.Error(),
		})
	}

	rec := models.LeadRecord{
		LeadID:          input.LeadID,
		ExitID:          input.ExitID,
		Vendor:          input.Vendor,
		Mobile:          input.Mobile,
		EligibleCount:   len(partition.Eligible),
		IneligibleCount: len(partition.Ineligible),
		Offers:          input.Offers,
		CreatedAt:       h.now(),
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO loan_leads (
			lead_id, exit_id, vendor, mobile,
			eligible_count, ineligible_count, offers, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.LeadID,
		rec.ExitID,
		rec.Vendor,
		nullable(rec.Mobile),
		rec.EligibleCount,
		rec.IneligibleCount,
		jsonbArg(rec.Offers),
		rec.CreatedAt,
	)
	if err != nil {
		return nil, errors.NewDatabaseInsertError(fmt.Errorf("insert failed: %w", err))
	}

	h.audit(ctx, rec)
	h.publish(ctx, rec)

	h.logger.Info("loan lead recorded", map[string]interface{}{
		"leadId":   rec.LeadID,
		"vendor":   rec.Vendor,
		"eligible": rec.EligibleCount,
	})

	return &Output{
		Recorded:        true,
		LeadID:          rec.LeadID,
		EligibleCount:   rec.EligibleCount,
		IneligibleCount: rec.IneligibleCount,
		CreatedAt:       rec.CreatedAt.Format(time.RFC3339),
	}, nil
}

// audit failures are logged, never returned.
func (h *Handler) audit(ctx context.Context, rec models.LeadRecord) {
	details, err := json.Marshal(map[string]interface{}{
		"exitId":          rec.ExitID,
		"vendor":          rec.Vendor,
		"eligibleCount":   rec.EligibleCount,
		"ineligibleCount": rec.IneligibleCount,
	})
	if err != nil {
		details = []byte("{}")
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO audit_log (event_type, resource_type, resource_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		"lead_recorded",
		"loan_lead",
		rec.LeadID,
		details,
		rec.CreatedAt,
	)
	if err != nil {
		h.logger.Warn("audit log insert failed", map[string]interface{}{
			"error":  err.Error(),
			"leadId": rec.LeadID,
		})
	}
}

// publish failures are logged; the lead is already stored.
func (h *Handler) publish(ctx context.Context, rec models.LeadRecord) {
	if h.publisher == nil {
		return
	}
	_, err := h.publisher.PublishJSON(ctx, h.topicARN, "lead_recorded", map[string]interface{}{
		"leadId":          rec.LeadID,
		"exitId":          rec.ExitID,
		"vendor":          rec.Vendor,
		"eligibleCount":   rec.EligibleCount,
		"ineligibleCount": rec.IneligibleCount,
		"createdAt":       rec.CreatedAt.Format(time.RFC3339),
	})
	if err != nil {
		h.logger.Warn("lead event publish failed", map[string]interface{}{
			"error":  err.Error(),
			"leadId": rec.LeadID,
		})
	}
}

// jsonbArg writes an absent payload as SQL NULL.
func jsonbArg(raw json.RawMessage) interface{} {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return string(raw)
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
