// Package session owns the phone + OTP login state and its persistence.
package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"loangenius/internal/common/errors"
	"loangenius/internal/common/logger"
	"loangenius/internal/common/metrics"
	"loangenius/internal/common/partner"
	"loangenius/internal/loan/store"
	"loangenius/internal/loan/validation"
)

type State string

const (
	StateAnonymous     State = "anonymous"
	StateOTPPending    State = "otp_pending"
	StateAuthenticated State = "authenticated"
)

const (
	DefaultResendCooldown = 30 * time.Second
	DefaultMaxAttempts    = 3
)

// Authenticator is the partner half of the OTP exchange.
type Authenticator interface {
	SendOTP(ctx context.Context, mobile string) (*partner.OTPChallenge, error)
	VerifyOTP(ctx context.Context, mobile, otp, challengeToken string) (*partner.Verification, error)
}

type Options struct {
	ResendCooldown time.Duration
	MaxAttempts    int
	Now            func() time.Time
	Logger         logger.Logger
}

// Session is the authenticated user record and bearer token.
type Session struct {
	User  map[string]interface{}
	Token string
}

// Manager drives anonymous -> otp_pending -> authenticated. Operations are
// serialized; accessors may be called concurrently with them.
type Manager struct {
	auth     Authenticator
	kv       store.KV
	cooldown time.Duration
	max      int
	now      func() time.Time
	logger   logger.Logger

	opMu sync.Mutex

	mu        sync.RWMutex
	state     State
	phone     string
	challenge string
	attempts  int
	lastSent  time.Time
	user      map[string]interface{}
	token     string
}

func NewManager(auth Authenticator, kv store.KV, opts Options) *Manager {
	if opts.ResendCooldown <= 0 {
		opts.ResendCooldown = DefaultResendCooldown
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	if kv == nil {
		kv = store.NewMemory()
	}

	return &Manager{
		auth:     auth,
		kv:       kv,
		cooldown: opts.ResendCooldown,
		max:      opts.MaxAttempts,
		now:      opts.Now,
		logger:   opts.Logger.WithFields(map[string]interface{}{"component": "session"}),
		state:    StateAnonymous,
	}
}

// RequestOTP sends a one-time password to phone. A resend while a challenge
// is pending is refused until the cooldown has elapsed.
func (m *Manager) RequestOTP(ctx context.Context, phone string) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	mobile, msg := validation.NormalizePhone(phone)
	if msg != "" {
		return errors.NewValidationError("mobile", msg)
	}

	if wait := m.ResendIn(); wait > 0 {
		metrics.OTPEvents.WithLabelValues("cooldown").Inc()
		return errors.NewOTPResendCooldownError(wait)
	}

	challenge, err := m.auth.SendOTP(ctx, mobile)
	if err != nil {
		metrics.OTPEvents.WithLabelValues("send_failed").Inc()
		m.logger.Warn("Failed to send OTP", map[string]interface{}{"error": err.Error()})
		return err
	}

	m.mu.Lock()
	m.state = StateOTPPending
	m.phone = mobile
	m.challenge = challenge.Token
	m.attempts = 0
	m.lastSent = m.now()
	m.mu.Unlock()

	metrics.OTPEvents.WithLabelValues("sent").Inc()
	m.logger.Info("OTP sent", map[string]interface{}{"newUser": challenge.NewUser})
	return nil
}

// VerifyOTP checks code against the pending challenge. Malformed codes are
// rejected locally and do not count as an attempt.
func (m *Manager) VerifyOTP(ctx context.Context, code string) (map[string]interface{}, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	state, phone, challenge := m.state, m.phone, m.challenge
	m.mu.RUnlock()

	if state != StateOTPPending {
		return nil, errors.NewOTPNotRequestedError()
	}
	if msg := validation.ValidateOTP(code); msg != "" {
		return nil, errors.NewValidationError("otp", msg)
	}
	code = strings.TrimSpace(code)

	verified, err := m.auth.VerifyOTP(ctx, phone, code, challenge)
	if err != nil {
		if ctx.Err() != nil && stderrors.Is(err, ctx.Err()) {
			return nil, err
		}
		return nil, m.failAttempt(err)
	}

	if err := m.persist(ctx, verified.User, verified.Token); err != nil {
		m.logger.Warn("Session could not be persisted, continuing in memory", map[string]interface{}{"error": err.Error()})
	}

	m.mu.Lock()
	m.state = StateAuthenticated
	m.challenge = ""
	m.attempts = 0
	m.lastSent = time.Time{}
	m.user = verified.User
	m.token = verified.Token
	m.mu.Unlock()

	metrics.OTPEvents.WithLabelValues("verified").Inc()
	m.logger.Info("OTP verified", nil)
	return copyUser(verified.User), nil
}

func (m *Manager) failAttempt(cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempts++
	m.logger.Warn("OTP verification failed", map[string]interface{}{
		"attempt": m.attempts,
		"error":   cause.Error(),
	})

	if m.attempts >= m.max {
		metrics.OTPEvents.WithLabelValues("locked_out").Inc()
		m.state = StateAnonymous
		m.phone = ""
		m.challenge = ""
		m.attempts = 0
		m.lastSent = time.Time{}
		return errors.NewOTPMaxAttemptsError(m.max)
	}

	metrics.OTPEvents.WithLabelValues("rejected").Inc()
	return errors.NewOTPInvalidError(m.max - m.attempts)
}

// Logout clears the session in memory and in storage.
func (m *Manager) Logout(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.reset()
	if err := m.kv.Delete(ctx, store.KeyUserData, store.KeyAuthToken); err != nil {
		return err
	}
	m.logger.Info("Logged out", nil)
	return nil
}

// UpdateUser merges patch into the user record and persists it. It is a
// no-op when nobody is logged in.
func (m *Manager) UpdateUser(ctx context.Context, patch map[string]interface{}) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	if m.state != StateAuthenticated || m.user == nil {
		m.mu.RUnlock()
		return nil
	}
	merged := copyUser(m.user)
	token := m.token
	m.mu.RUnlock()

	for k, v := range patch {
		merged[k] = v
	}
	if err := m.persist(ctx, merged, token); err != nil {
		return err
	}

	m.mu.Lock()
	m.user = merged
	m.mu.Unlock()
	return nil
}

// Restore loads a persisted session. Missing or unreadable data leaves the
// manager anonymous and clears both keys; it reports whether a session was
// restored.
func (m *Manager) Restore(ctx context.Context) bool {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	rawUser, okUser, errUser := m.kv.Get(ctx, store.KeyUserData)
	token, okToken, errToken := m.kv.Get(ctx, store.KeyAuthToken)

	var user map[string]interface{}
	valid := errUser == nil && errToken == nil && okUser && okToken && token != ""
	if valid {
		if err := json.Unmarshal([]byte(rawUser), &user); err != nil || user == nil {
			valid = false
		}
	}

	if !valid {
		m.reset()
		if err := m.kv.Delete(ctx, store.KeyUserData, store.KeyAuthToken); err != nil {
			m.logger.Warn("Failed to clear stale session", map[string]interface{}{"error": err.Error()})
		}
		return false
	}

	m.mu.Lock()
	m.state = StateAuthenticated
	m.user = user
	m.token = token
	m.mu.Unlock()
	return true
}

// ResendIn is the time left before another OTP may be requested.
func (m *Manager) ResendIn() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateOTPPending || m.lastSent.IsZero() {
		return 0
	}
	left := m.lastSent.Add(m.cooldown).Sub(m.now())
	if left < 0 {
		return 0
	}
	return left
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Phone is the normalized number of the pending challenge.
func (m *Manager) Phone() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phone
}

// User returns a copy of the user record, or nil when anonymous.
func (m *Manager) User() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	return copyUser(m.user)
}

func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Current returns the session, or nil when not authenticated.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateAuthenticated {
		return nil
	}
	return &Session{User: copyUser(m.user), Token: m.token}
}

func (m *Manager) persist(ctx context.Context, user map[string]interface{}, token string) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return errors.NewStorageError("encode user", err)
	}
	if err := m.kv.Set(ctx, store.KeyUserData, string(raw)); err != nil {
		return err
	}
	return m.kv.Set(ctx, store.KeyAuthToken, token)
}

func (m *Manager) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateAnonymous
	m.phone = ""
	m.challenge = ""
	m.attempts = 0
	m.lastSent = time.Time{}
	m.user = nil
	m.token = ""
}

func copyUser(u map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(u))
	for k, v := range u {
		out[k] = v
	}
	return out
}
