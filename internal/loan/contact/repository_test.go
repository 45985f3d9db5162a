package contact

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "loangenius/internal/common/errors"
	"loangenius/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestRepository(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewRepository(db, logger.NewTestLogger(t),
		WithClock(func() time.Time { return fixedNow }),
		WithIDs(func() string { return "6f1c1f2e-0000-4000-8000-000000000001" }),
	)
	return repo, mock
}

func validInput() Input {
	return Input{
		Name:    " Asha Rao ",
		Email:   "asha@example.com",
		Phone:   "+91 98765 43210",
		Message: "Please call me back about my application.",
	}
}

// ==========================
// Validation
// ==========================

func TestValidate(t *testing.T) {
	assert.Empty(t, Validate(validInput()))

	errs := Validate(Input{Phone: "12345"})
	assert.Equal(t, "Name is required", errs["name"])
	assert.Equal(t, "Email address is required", errs["email"])
	assert.Equal(t, "Please enter a valid 10-digit phone number", errs["phone"])
	assert.Equal(t, "Message is required", errs["message"])
}

// ==========================
// Submit
// ==========================

func TestRepository_Submit_Success(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectExec(`INSERT INTO contact_messages`).
		WithArgs(
			"6f1c1f2e-0000-4000-8000-000000000001",
			"Asha Rao",
			"asha@example.com",
			"9876543210",
			"Please call me back about my application.",
			fixedNow,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	msg, err := repo.Submit(context.Background(), validInput())

	require.NoError(t, err)
	assert.Equal(t, "9876543210", msg.Phone)
	assert.Equal(t, fixedNow, msg.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Submit_ValidationFailsBeforeInsert(t *testing.T) {
	repo, mock := newTestRepository(t)

	in := validInput()
	in.Email = "asha@"
	_, err := repo.Submit(context.Background(), in)

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidationFailed))
	std, _ := apperrors.AsStandard(err)
	assert.Equal(t, "email", std.Details)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Submit_InsertError(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectExec(`INSERT INTO contact_messages`).
		WillReturnError(stderrors.New("connection reset"))

	_, err := repo.Submit(context.Background(), validInput())

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDatabaseInsert))
	assert.True(t, apperrors.IsRetryable(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

type recordingMailer struct {
	from, subject, body string
	to                  []string
	err                 error
}

func (m *recordingMailer) SendText(_ context.Context, from string, to []string, subject, body string) (string, error) {
	m.from, m.to, m.subject, m.body = from, to, subject, body
	return "msg-1", m.err
}

func TestRepository_Submit_Notifies(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mailer := &recordingMailer{}
	repo := NewRepository(db, logger.NewTestLogger(t),
		WithNotification(mailer, "no-reply@loangenius.in", []string{"support@loangenius.in"}))
	mock.ExpectExec(`INSERT INTO contact_messages`).WillReturnResult(sqlmock.NewResult(1, 1))

	_, err = repo.Submit(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, "no-reply@loangenius.in", mailer.from)
	assert.Equal(t, []string{"support@loangenius.in"}, mailer.to)
	assert.Equal(t, "New contact message from Asha Rao", mailer.subject)
	assert.Contains(t, mailer.body, "Phone: 9876543210")
}

func TestRepository_Submit_NotificationFailureIsIgnored(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db, logger.NewTestLogger(t),
		WithNotification(&recordingMailer{err: stderrors.New("ses down")}, "a@b.co", []string{"c@d.co"}))
	mock.ExpectExec(`INSERT INTO contact_messages`).WillReturnResult(sqlmock.NewResult(1, 1))

	msg, err := repo.Submit(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", msg.Name)
}

func TestRepository_Submit_NoNotificationWhenInsertFails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mailer := &recordingMailer{}
	repo := NewRepository(db, logger.NewTestLogger(t), WithNotification(mailer, "a@b.co", []string{"c@d.co"}))
	mock.ExpectExec(`INSERT INTO contact_messages`).WillReturnError(stderrors.New("boom"))

	_, err = repo.Submit(context.Background(), validInput())
	require.Error(t, err)
	assert.Empty(t, mailer.subject)
}

// ==========================
// Recent
// ==========================

func TestRepository_Recent(t *testing.T) {
	repo, mock := newTestRepository(t)

	rows := sqlmock.NewRows([]string{"id", "name", "email", "phone", "message", "created_at"}).
		AddRow("b", "Ravi", "ravi@example.com", "9123456780", "Hi", fixedNow).
		AddRow("a", "Asha", "asha@example.com", "9876543210", "Hello", fixedNow.Add(-time.Hour))
	mock.ExpectQuery(`SELECT id, name, email, phone, message, created_at`).
		WithArgs(20).
		WillReturnRows(rows)

	got, err := repo.Recent(context.Background(), 0)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Recent_QueryError(t *testing.T) {
	repo, mock := newTestRepository(t)
	mock.ExpectQuery(`SELECT id`).WillReturnError(stderrors.New("boom"))

	_, err := repo.Recent(context.Background(), 5)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeStorage))
}
