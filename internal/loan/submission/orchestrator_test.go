package submission

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "loangenius/internal/common/errors"
	"loangenius/internal/common/logger"
	"loangenius/internal/common/partner"
	"loangenius/internal/common/partner/partnertest"
	"loangenius/internal/common/retry"
	"loangenius/internal/loan/application"
	"loangenius/internal/loan/store"
)

// recordingTimer fires immediately and remembers every requested wait.
type recordingTimer struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingTimer) After(d time.Duration) <-chan time.Time {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (r *recordingTimer) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func completeForm() application.Form {
	f := application.NewForm()
	f.FirstName = "Asha"
	f.LastName = "Rao"
	f.Gender = application.GenderFemale
	f.DOB = "1994-06-01"
	f.PAN = "abcde1234f"
	f.Email = "asha@example.com"
	f.LoanAmountRequired = "250000"
	f.Timeline = application.TimelineWeek
	f.AlreadyExistingCredit = application.Bool(true)
	f.EmploymentStatus = application.EmploymentSalaried
	f.CompanyName = "Infosys"
	f.InhandIncome = "85000"
	f.SalaryReceivedIn = application.SalaryBank
	f.Pincode = "560001"
	f.OfficePincode = "560100"
	f.City = "Bengaluru"
	f.State = "Karnataka"
	return f
}

func newOrchestrator(t *testing.T, srv *partnertest.Server, opts Options) (*Orchestrator, *recordingTimer) {
	t.Helper()
	timer := &recordingTimer{}
	opts.Logger = logger.NewTestLogger(t)
	opts.RetryOptions = append(opts.RetryOptions, retry.WithTimer(timer))
	return NewOrchestrator(srv.Client(), opts), timer
}

func errorReply(status int) partnertest.Reply {
	return partnertest.Reply{Status: status, Body: map[string]string{"message": http.StatusText(status)}}
}

// ==========================
// Happy path
// ==========================

func TestSubmit_Success(t *testing.T) {
	srv := partnertest.NewServer()
	defer srv.Close()
	kv := store.NewMemory()
	o, timer := newOrchestrator(t, srv, Options{Store: kv})

	res := o.Submit(context.Background(), completeForm(), "bearer-1")

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "LEAD-1", res.LeadID)
	assert.Equal(t, "EXIT-1", res.ExitID)
	assert.Equal(t, "bankkaro", res.Vendor)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, res.Error)
	assert.NoError(t, res.Err)
	assert.Contains(t, string(res.Offers), "Alpha Finance")
	assert.Empty(t, timer.recorded())

	create := srv.Requests("create-lead")
	require.Len(t, create, 1)
	assert.Equal(t, "bearer-1", create[0].Header.Get("Authorization"))
	assert.Equal(t, "PL", create[0].Payload["leadType"])
	assert.Equal(t, map[string]interface{}{"generateExit": true}, create[0].Payload["payload"])

	submit := srv.Requests("submit-lead")
	require.Len(t, submit, 1)
	payload := submit[0].Payload["payload"].(map[string]interface{})
	assert.Equal(t, "LEAD-1", payload["lead_id"])
	assert.Equal(t, "ABCDE1234F", payload["pan"])
	assert.Equal(t, "850", payload["credit_range"])
	assert.Equal(t, true, payload["breFlag"])
	assert.Equal(t, true, payload["know_your_credit_score"])
	assert.Equal(t, float64(0), payload["total_emis"])

	stored, ok, err := LoadLastResult(context.Background(), kv)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, string(res.Offers), string(stored.Offers))
	assert.Equal(t, partner.LeadRef{LeadID: "LEAD-1", ExitID: "EXIT-1", Vendor: "bankkaro"}, stored.Lead)
}

func TestSubmit_MissingBearerToken(t *testing.T) {
	srv := partnertest.NewServer()
	defer srv.Close()
	o, _ := newOrchestrator(t, srv, Options{})

	res := o.Submit(context.Background(), completeForm(), "")
	assert.False(t, res.Success)
	assert.True(t, apperrors.HasCode(res.Err, apperrors.ErrCodeAuthentication))
	assert.Zero(t, srv.Count("create-lead"))
}

// ==========================
// Phase one
// ==========================

func TestSubmit_CreateLeadFailureIsNotRetried(t *testing.T) {
	srv := partnertest.NewServer()
	defer srv.Close()
	srv.QueueCreateLead(errorReply(http.StatusInternalServerError))
	kv := store.NewMemory()
	o, _ := newOrchestrator(t, srv, Options{Store: kv})

	res := o.Submit(context.Background(), completeForm(), "bearer-1")

	assert.False(t, res.Success)
	assert.Equal(t, "Failed to create lead: 500 Internal Server Error", res.Error)
	assert.True(t, apperrors.HasCode(res.Err, apperrors.ErrCodeLeadCreateFailed))
	assert.Equal(t, 1, srv.Count("create-lead"))
	assert.Zero(t, srv.Count("submit-lead"))

	_, ok, _ := LoadLastResult(context.Background(), kv)
	assert.False(t, ok)
}

func TestSubmit_CreateLeadWithoutLeadID(t *testing.T) {
	srv := partnertest.NewServer()
	defer srv.Close()
	srv.QueueCreateLead(partnertest.Reply{Body: map[string]interface{}{
		"status": "success",
		"data":   map[string]interface{}{"success": 1},
	}})
	o, _ := newOrchestrator(t, srv, Options{})

	res := o.Submit(context.Background(), completeForm(), "bearer-1")

	assert.False(t, res.Success)
	assert.Equal(t, "Failed to create lead", res.Error)
	assert.Zero(t, srv.Count("submit-lead"))
}

// ==========================
// Phase two retries
// ==========================

func TestSubmit_RetriesTransientFailures(t *testing.T) {
	srv := partnertest.NewServer()
	defer srv.Close()
	srv.QueueSubmit(errorReply(http.StatusServiceUnavailable), errorReply(http.StatusBadGateway))
	o, timer := newOrchestrator(t, srv, Options{})

	res := o.Submit(context.Background(), completeForm(), "bearer-1")

	require.True(t, res.Success, res.Error)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 1, srv.Count("create-lead"))
	assert.Equal(t, 3, srv.Count("submit-lead"))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, timer.recorded())
}

func TestSubmit_StatusMessagesAfterExhaustion(t *testing.T) {
	cases := []struct {
		status  int
		message string
	}{
		{http.StatusBadGateway, "Server temporarily unavailable (502). Please try again in a few moments."},
		{http.StatusServiceUnavailable, "Service temporarily unavailable (503). Please try again later."},
		{http.StatusGatewayTimeout, "Request timeout (504). Please try again."},
		{http.StatusInternalServerError, "Failed to submit lead details: 500 Internal Server Error"},
	}

	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := partnertest.NewServer()
			defer srv.Close()
			srv.QueueSubmit(errorReply(tc.status), errorReply(tc.status), errorReply(tc.status))
			o, timer := newOrchestrator(t, srv, Options{})

			res := o.Submit(context.Background(), completeForm(), "bearer-1")

			assert.False(t, res.Success)
			assert.Equal(t, tc.message, res.Error)
			assert.Equal(t, 3, res.Attempts)
			assert.Equal(t, "LEAD-1", res.LeadID)
			assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, timer.recorded())
		})
	}
}

func TestSubmit_AuthFailuresAreNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			srv := partnertest.NewServer()
			defer srv.Close()
			srv.QueueSubmit(errorReply(status))
			o, timer := newOrchestrator(t, srv, Options{})

			res := o.Submit(context.Background(), completeForm(), "bearer-1")

			assert.False(t, res.Success)
			assert.Equal(t, 1, res.Attempts)
			assert.Equal(t, 1, srv.Count("submit-lead"))
			assert.Empty(t, timer.recorded())
		})
	}
}

func TestSubmit_AttemptTimeout(t *testing.T) {
	srv := partnertest.NewServer()
	defer srv.Close()
	slow := partnertest.Reply{Delay: 300 * time.Millisecond, Body: map[string]string{"status": "success"}}
	srv.QueueSubmit(slow, slow, slow)
	o, _ := newOrchestrator(t, srv, Options{AttemptTimeout: 50 * time.Millisecond})

	res := o.Submit(context.Background(), completeForm(), "bearer-1")

	assert.False(t, res.Success)
	assert.Equal(t, "Request timeout. Please try again.", res.Error)
	assert.True(t, apperrors.HasCode(res.Err, apperrors.ErrCodeRequestTimeout))
	assert.Equal(t, 3, res.Attempts)
}

func TestSubmit_AttemptTimeoutGovernsSlowPartner(t *testing.T) {
	srv := partnertest.NewServer()
	defer srv.Close()
	slow := partnertest.SuccessfulSubmit()
	slow.Delay = 200 * time.Millisecond
	srv.QueueSubmit(slow)

	popts := srv.Options()
	popts.Timeout = 150 * time.Millisecond
	o := NewOrchestrator(partner.NewClient(popts), Options{
		AttemptTimeout: 300 * time.Millisecond,
		Logger:         logger.NewTestLogger(t),
		RetryOptions:   []retry.Option{retry.WithTimer(&recordingTimer{})},
	})

	res := o.Submit(context.Background(), completeForm(), "bearer-1")

	require.True(t, res.Success, res.Error)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 1, srv.Count("submit-lead"))
}

func TestSubmit_BusinessFailureIsRetried(t *testing.T) {
	srv := partnertest.NewServer()
	defer srv.Close()
	rejected := partnertest.Reply{Body: map[string]interface{}{"status": "error", "message": "Lead already processed"}}
	srv.QueueSubmit(rejected, rejected, rejected)
	o, _ := newOrchestrator(t, srv, Options{})

	res := o.Submit(context.Background(), completeForm(), "bearer-1")

	assert.False(t, res.Success)
	assert.Equal(t, "Lead already processed", res.Error)
	assert.Equal(t, 3, res.Attempts)
}

// cancellingAPI cancels the caller's context during phase two.
type cancellingAPI struct {
	cancel context.CancelFunc
	calls  int
}

func (c *cancellingAPI) CreateLead(context.Context, string) (*partner.LeadRef, error) {
	return &partner.LeadRef{LeadID: "L"}, nil
}

func (c *cancellingAPI) SubmitLeadDetails(ctx context.Context, _ string, _ partner.LeadDetails) (json.RawMessage, error) {
	c.calls++
	c.cancel()
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSubmit_ParentCancellationStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	api := &cancellingAPI{cancel: cancel}
	o := NewOrchestrator(api, Options{RetryOptions: []retry.Option{retry.WithTimer(&recordingTimer{})}})

	res := o.Submit(ctx, completeForm(), "bearer-1")

	assert.False(t, res.Success)
	assert.Equal(t, 1, api.calls)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

// ==========================
// Payload mapping
// ==========================

func TestBuildLeadDetails(t *testing.T) {
	f := completeForm()
	f.CreditRange = "720"
	f.TotalEMIs = -2
	f.AlreadyExistingCredit = nil

	d := BuildLeadDetails(f, partner.LeadRef{LeadID: "L1", ExitID: "E1", Vendor: "v"})

	assert.Equal(t, "L1", d.LeadID)
	assert.Equal(t, "E1", d.ExitID)
	assert.Equal(t, "720", d.CreditRange)
	assert.Equal(t, 0, d.TotalEMIs)
	assert.False(t, d.AlreadyExistingCredit)
	assert.True(t, d.BREFlag)
	assert.True(t, d.GenerateExit)
	assert.True(t, d.FetchCreditConsent)
	assert.Equal(t, "ABCDE1234F", d.PAN)
	assert.Equal(t, "salary_recieved_in", jsonKeyOf(t, d, "bank"))
}

func jsonKeyOf(t *testing.T, d partner.LeadDetails, value string) string {
	t.Helper()
	raw, err := json.Marshal(d)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &m))
	for k, v := range m {
		if v == value {
			return k
		}
	}
	return ""
}

// ==========================
// Persisted result
// ==========================

func TestLoadLastResult(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing stored", func(t *testing.T) {
		_, ok, err := LoadLastResult(ctx, store.NewMemory())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("corrupt offers", func(t *testing.T) {
		kv := store.NewMemory()
		require.NoError(t, kv.Set(ctx, store.KeyLoanOffers, "{oops"))
		_, ok, err := LoadLastResult(ctx, kv)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("clear", func(t *testing.T) {
		kv := store.NewMemory()
		require.NoError(t, SaveResult(ctx, kv, &Result{Success: true, LeadID: "L", Offers: json.RawMessage(`{"offers":[]}`)}))
		require.NoError(t, ClearLastResult(ctx, kv))
		_, ok, _ := LoadLastResult(ctx, kv)
		assert.False(t, ok)
	})

	t.Run("failed results are not saved", func(t *testing.T) {
		kv := store.NewMemory()
		require.NoError(t, SaveResult(ctx, kv, &Result{Success: false}))
		_, ok, _ := LoadLastResult(ctx, kv)
		assert.False(t, ok)
	})
}
