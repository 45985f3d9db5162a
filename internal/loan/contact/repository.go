// Package contact stores "contact us" messages.
package contact

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"loangenius/internal/common/errors"
	"loangenius/internal/common/logger"
	"loangenius/internal/loan/validation"
	"loangenius/internal/models"
)

// Input is what the applicant types into the contact form.
type Input struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// Validate returns one message per failing field.
func Validate(in Input) validation.Errors {
	errs := validation.Errors{}
	if strings.TrimSpace(in.Name) == "" {
		errs["name"] = "Name is required"
	}
	if msg := validation.ValidateEmail(in.Email); msg != "" {
		errs["email"] = msg
	}
	if _, msg := validation.NormalizePhone(in.Phone); msg != "" {
		errs["phone"] = msg
	}
	if strings.TrimSpace(in.Message) == "" {
		errs["message"] = "Message is required"
	}
	return errs
}

// fieldOrder is the on-screen order, used to pick the error to report.
var fieldOrder = []string{"name", "email", "phone", "message"}

// Mailer delivers the support notification for a new message.
type Mailer interface {
	SendText(ctx context.Context, from string, to []string, subject, body string) (string, error)
}

type Repository struct {
	db     *sql.DB
	now    func() time.Time
	newID  func() string
	mailer Mailer
	from   string
	to     []string
	logger logger.Logger
}

type Option func(*Repository)

// WithNotification mails every stored message to the support inbox.
func WithNotification(m Mailer, from string, to []string) Option {
	return func(r *Repository) {
		r.mailer = m
		r.from = from
		r.to = to
	}
}

// WithClock fixes created_at; tests use it.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithIDs replaces the uuid generator.
func WithIDs(newID func() string) Option {
	return func(r *Repository) { r.newID = newID }
}

func NewRepository(db *sql.DB, log logger.Logger, opts ...Option) *Repository {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	r := &Repository{
		db:     db,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
		logger: log.WithFields(map[string]interface{}{"component": "contact"}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit validates in and inserts it into contact_messages. The stored
// phone is the 10-digit national number.
func (r *Repository) Submit(ctx context.Context, in Input) (*models.ContactMessage, error) {
	if errs := Validate(in); !errs.Valid() {
		for _, f := range fieldOrder {
			if msg, ok := errs[f]; ok {
				return nil, errors.NewValidationError(f, msg)
			}
		}
	}

	phone, _ := validation.NormalizePhone(in.Phone)
	msg := &models.ContactMessage{
		ID:        r.newID(),
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.TrimSpace(in.Email),
		Phone:     phone,
		Message:   strings.TrimSpace(in.Message),
		CreatedAt: r.now(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contact_messages (id, name, email, phone, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.Name, msg.Email, msg.Phone, msg.Message, msg.CreatedAt,
	)
	if err != nil {
		r.logger.Error("contact message insert failed", map[string]interface{}{"error": err.Error()})
		return nil, errors.NewDatabaseInsertError(err)
	}

	r.logger.Info("contact message stored", map[string]interface{}{"id": msg.ID})
	r.notify(ctx, msg)
	return msg, nil
}

// notify never fails Submit; the message is already stored.
func (r *Repository) notify(ctx context.Context, msg *models.ContactMessage) {
	if r.mailer == nil {
		return
	}
	body := fmt.Sprintf("Name: %s\nEmail: %s\nPhone: %s\n\n%s\n", msg.Name, msg.Email, msg.Phone, msg.Message)
	id, err := r.mailer.SendText(ctx, r.from, r.to, "New contact message from "+msg.Name, body)
	if err != nil {
		r.logger.Warn("contact notification failed", map[string]interface{}{
			"id":    msg.ID,
			"error": err.Error(),
		})
		return
	}
	r.logger.Debug("contact notification sent", map[string]interface{}{"id": msg.ID, "messageId": id})
}

// Recent returns the newest messages first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]models.ContactMessage, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, phone, message, created_at
		FROM contact_messages
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, errors.NewStorageError("query", err)
	}
	defer rows.Close()

	var out []models.ContactMessage
	for rows.Next() {
		var m models.ContactMessage
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.Message, &m.CreatedAt); err != nil {
			return nil, errors.NewStorageError("scan", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("query", err)
	}
	return out, nil
}
