// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loangenius/internal/common/camunda"
	"loangenius/internal/common/config"
	"loangenius/internal/common/database"
	apperrors "loangenius/internal/common/errors"
	"loangenius/internal/common/logger"
	"loangenius/internal/common/partner"
	"loangenius/internal/common/partner/partnertest"
	"loangenius/internal/loan/application"
	"loangenius/internal/loan/lookup"
	"loangenius/internal/loan/questionnaire"
	"loangenius/internal/loan/session"
	"loangenius/internal/loan/store"
	"loangenius/internal/loan/submission"
	"loangenius/pkg/registry"

	presentloanoffers "loangenius/internal/workers/loan/present-loan-offers"
	recordloanlead "loangenius/internal/workers/loan/record-loan-lead"
	submitloanlead "loangenius/internal/workers/loan/submit-loan-lead"
	validatestep "loangenius/internal/workers/loan/validate-questionnaire-step"
)

const registryPath = "../../" + registry.DefaultPath

// env is one applicant journey's backends: a fake partner, a Redis-backed
// client store and a mocked Postgres.
type env struct {
	ctx     context.Context
	log     logger.Logger
	partner *partnertest.Server
	kv      store.KV
	reg     *registry.ActivityRegistry
}

func newEnv(t *testing.T) *env {
	t.Helper()

	srv := partnertest.NewServer()
	t.Cleanup(srv.Close)
	srv.SetCompanies(partner.Company{ID: 1, Name: "Infosys"}, partner.Company{ID: 2, Name: "Infoedge"})
	srv.SetPincode("560001", partner.PincodeRecord{ID: 1, Pincode: "560001", City: "Bengaluru", State: "Karnataka"})
	srv.SetPincode("560100", partner.PincodeRecord{ID: 2, Pincode: "560100", City: "Bengaluru", State: "Karnataka"})

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := database.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	reg, err := registry.LoadRegistry(registryPath)
	require.NoError(t, err)
	require.NoError(t, reg.Validate())

	return &env{
		ctx:     context.Background(),
		log:     logger.NewTestLogger(t),
		partner: srv,
		kv:      store.NewRedis(rdb, "e2e", time.Hour),
		reg:     reg,
	}
}

// checkJobVariables validates v against the registry input schema of taskType,
// the same check the job runner applies before decoding.
func (e *env) checkJobVariables(t *testing.T, taskType string, v interface{}) {
	t.Helper()
	a, ok := e.reg.Find(taskType)
	require.True(t, ok, taskType)
	schema, err := a.InputValidator()
	require.NoError(t, err)

	raw, err := json.Marshal(v)
	require.NoError(t, err)
	res, err := schema.ValidateJSON(string(raw))
	require.NoError(t, err)
	assert.True(t, res.Valid, "%s: %v", taskType, res.GetErrorMessages())
}

func (e *env) orchestrator() *submission.Orchestrator {
	return submission.NewOrchestrator(e.partner.Client(), submission.Options{
		MaxAttempts:    3,
		BaseDelay:      time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		AttemptTimeout: 5 * time.Second,
		Store:          e.kv,
		Logger:         e.log,
	})
}

// ==========================
// 1. Sign in
// ==========================

func signIn(t *testing.T, e *env) string {
	t.Helper()
	m := session.NewManager(e.partner.Client(), e.kv, session.Options{
		ResendCooldown: 30 * time.Second,
		MaxAttempts:    3,
		Logger:         e.log,
	})

	require.NoError(t, m.RequestOTP(e.ctx, "+91 98765 43210"))
	_, err := m.VerifyOTP(e.ctx, "000000")
	require.True(t, apperrors.HasCode(err, apperrors.ErrCodeOTPInvalid))

	user, err := m.VerifyOTP(e.ctx, partnertest.ValidOTP)
	require.NoError(t, err)
	assert.Equal(t, "Test User", user["name"])
	require.NoError(t, m.UpdateUser(e.ctx, map[string]interface{}{"mobile": m.Phone()}))

	restored := session.NewManager(e.partner.Client(), e.kv, session.Options{Logger: e.log})
	require.True(t, restored.Restore(e.ctx), "session survives in the shared store")
	assert.Equal(t, "9876543210", restored.User()["mobile"])
	return restored.Token()
}

// ==========================
// 2. Questionnaire
// ==========================

var stepAnswers = map[application.Step]application.Patch{
	application.StepPersonal: {
		"first_name": "Asha", "last_name": "Rao", "dob": "1994-06-01",
		"gender": application.GenderFemale, "pan": "abcde1234f", "email": "asha@example.com",
	},
	application.StepLoanRequirements: {
		"loan_amount_required": "250000", "timeline": application.TimelineWeek, "already_existing_credit": true,
	},
	application.StepEmployment: {
		"employmentStatus": application.EmploymentSalaried,
	},
	application.StepIncomeLocation: {
		"inhandIncome": "85000", "salary_recieved_in": application.SalaryBank,
		"pincode": "560001", "office_pincode": "560100", "credit_range": "760",
	},
}

func fillQuestionnaire(t *testing.T, e *env) application.Form {
	t.Helper()
	st := questionnaire.NewStore(e.log)
	validator := validatestep.NewHandler(validatestep.LoadConfig(config.WorkerConfig{}), nil, nil, e.log)
	companies := lookup.NewCompanySearch(e.partner.Client(), lookup.CompanyOptions{MinQueryLength: 2, CacheSize: 8, CacheTTL: time.Minute}, e.log)
	pincodes := lookup.NewPincodeResolver(e.partner.Client(), 0, e.log)

	for _, step := range application.Steps() {
		require.Equal(t, step, st.CurrentStep())
		require.NoError(t, st.Patch(stepAnswers[step]))

		switch step {
		case application.StepEmployment:
			matches, err := companies.Search(e.ctx, "info")
			require.NoError(t, err)
			require.Len(t, matches, 2)
			require.NoError(t, st.Patch(application.Patch{"company_name": matches[0].Name}))
		case application.StepIncomeLocation:
			for target, code := range map[lookup.Target]string{lookup.Residential: "560001", lookup.Office: "560100"} {
				res, err := pincodes.Resolve(e.ctx, target, code)
				require.NoError(t, err)
				st.ApplyPincode(target, res, err)
			}
		}

		in := &validatestep.Input{Step: int(step), Form: st.Form()}
		e.checkJobVariables(t, validatestep.TaskType, in)
		out, err := validator.Execute(e.ctx, in)
		require.NoError(t, err)
		require.True(t, out.Valid, "step %d: %v", step, out.Errors)

		adv := st.Advance()
		assert.Equal(t, out.ReadyToSubmit, adv.ReadyToSubmit)
		if !adv.ReadyToSubmit {
			assert.Equal(t, out.NextStep, int(st.CurrentStep()))
			assert.Equal(t, out.ProgressPercent, st.ProgressPercent())
		}
	}

	form := st.Form()
	assert.Equal(t, "Bengaluru", form.City)
	assert.Equal(t, "Karnataka", form.OfficeState)
	return form
}

// ==========================
// 3. Full journey
// ==========================

func TestLoanJourney(t *testing.T) {
	e := newEnv(t)

	token := signIn(t, e)
	require.Equal(t, partnertest.AuthToken, token)

	form := fillQuestionnaire(t, e)

	// The first details submission hits a 503 and is retried.
	e.partner.QueueSubmit(partnertest.Reply{Status: 503, Body: map[string]string{"message": "busy"}})

	submitIn := &submitloanlead.Input{Form: form, BearerToken: token}
	e.checkJobVariables(t, submitloanlead.TaskType, submitIn)
	submitter := submitloanlead.NewHandler(submitloanlead.LoadConfig(config.WorkerConfig{}), e.orchestrator(), nil, nil, e.log)
	submitted, err := submitter.Execute(e.ctx, submitIn)
	require.NoError(t, err)
	assert.True(t, submitted.Success)
	assert.Equal(t, "LEAD-1", submitted.LeadID)
	assert.Equal(t, 2, submitted.Attempts)
	assert.Equal(t, 1, e.partner.Count("create-lead"))
	assert.Equal(t, 2, e.partner.Count("submit-lead"))

	stored, ok, err := submission.LoadLastResult(e.ctx, e.kv)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "EXIT-1", stored.Lead.ExitID)
	assert.JSONEq(t, string(submitted.Offers), string(stored.Offers))

	// Record the lead.
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery(`SELECT EXISTS`).WithArgs("LEAD-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO loan_leads`).
		WithArgs("LEAD-1", "EXIT-1", "bankkaro", "9876543210", 1, 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO audit_log`).WillReturnResult(sqlmock.NewResult(1, 1))

	recordIn := &recordloanlead.Input{
		LeadID: submitted.LeadID, ExitID: submitted.ExitID, Vendor: submitted.Vendor,
		Mobile: "9876543210", Offers: submitted.Offers,
	}
	e.checkJobVariables(t, recordloanlead.TaskType, recordIn)
	recorder := recordloanlead.NewHandler(recordloanlead.LoadConfig(config.WorkerConfig{}), db, nil, nil, e.log)
	recorded, err := recorder.Execute(e.ctx, recordIn)
	require.NoError(t, err)
	assert.True(t, recorded.Recorded)
	assert.NoError(t, mock.ExpectationsWereMet())

	// Present the offers.
	presentIn := &presentloanoffers.Input{Offers: stored.Offers, View: presentloanoffers.ViewInput{Sort: "interestRate"}}
	e.checkJobVariables(t, presentloanoffers.TaskType, presentIn)
	presenter := presentloanoffers.NewHandler(presentloanoffers.LoadConfig(config.WorkerConfig{}), nil, nil, e.log)
	presented, err := presenter.Execute(e.ctx, presentIn)
	require.NoError(t, err)
	assert.True(t, presented.HasOffers)
	assert.Equal(t, "Alpha Finance", presented.TopLender)
	require.Len(t, presented.Presentation.Ineligible, 1)
	assert.Contains(t, presented.Presentation.Ineligible[0].Explanation.Reason, "salary")
}

func TestLoanJourney_SubmissionExhausted(t *testing.T) {
	e := newEnv(t)
	token := signIn(t, e)
	form := fillQuestionnaire(t, e)

	busy := partnertest.Reply{Status: 503, Body: map[string]string{"message": "busy"}}
	e.partner.QueueSubmit(busy, busy, busy)

	submitter := submitloanlead.NewHandler(submitloanlead.LoadConfig(config.WorkerConfig{}), e.orchestrator(), nil, nil, e.log)
	_, err := submitter.Execute(e.ctx, &submitloanlead.Input{Form: form, BearerToken: token})

	require.True(t, apperrors.HasCode(err, apperrors.ErrCodeUpstreamUnavailable))
	assert.False(t, apperrors.IsRetryable(err), "a lead is never submitted twice by job retries")
	assert.Equal(t, 3, e.partner.Count("submit-lead"))

	_, ok, err := submission.LoadLastResult(e.ctx, e.kv)
	require.NoError(t, err)
	assert.False(t, ok)
}

// ==========================
// 4. Broker connectivity
// ==========================

// TestBrokerConnectivity runs only when LOANGENIUS_E2E_ZEEBE names a gateway,
// e.g. localhost:26500.
func TestBrokerConnectivity(t *testing.T) {
	addr := os.Getenv("LOANGENIUS_E2E_ZEEBE")
	if addr == "" {
		t.Skip("LOANGENIUS_E2E_ZEEBE not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
		GatewayAddress:         addr,
		UsePlaintextConnection: true,
		ConnectionTimeout:      10 * time.Second,
		RequestTimeout:         5 * time.Second,
	}, logger.NewTestLogger(t))
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.HealthCheck(ctx))
}

// ==========================
// Benchmarks
// ==========================

func BenchmarkHandler_ValidateQuestionnaireStep(b *testing.B) {
	h := validatestep.NewHandler(validatestep.LoadConfig(config.WorkerConfig{}), nil, nil, logger.NewNoOpLogger())
	form := application.NewForm()
	for _, p := range stepAnswers {
		_ = form.Apply(p)
	}
	in := &validatestep.Input{Step: int(application.StepIncomeLocation), Form: form}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = h.Execute(ctx, in)
	}
}

func BenchmarkHandler_PresentLoanOffers(b *testing.B) {
	h := presentloanoffers.NewHandler(presentloanoffers.LoadConfig(config.WorkerConfig{}), nil, nil, logger.NewNoOpLogger())
	raw, _ := json.Marshal(partnertest.SuccessfulSubmit().Body)
	in := &presentloanoffers.Input{Offers: raw}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = h.Execute(ctx, in)
	}
}
