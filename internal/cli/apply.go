// internal/cli/apply.go
package cli

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"loangenius/internal/common/errors"
	"loangenius/internal/loan/application"
	"loangenius/internal/loan/lookup"
	"loangenius/internal/loan/questionnaire"
	"loangenius/internal/loan/session"
	"loangenius/internal/loan/submission"
	"loangenius/internal/loan/validation"
)

const maxCompanySuggestions = 8

func newApplyCommand(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Sign in, fill in the loan questionnaire and see your offers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd.Context(), st.app)
		},
	}
}

func runApply(ctx context.Context, app *App) error {
	sessions := app.Sessions()
	if err := login(ctx, app, sessions); err != nil {
		return err
	}

	w := &wizard{
		app:       app,
		store:     questionnaire.NewStore(app.Logger),
		companies: app.Companies(),
		pincodes:  app.Pincodes(),
	}
	result, err := w.run(ctx, sessions.Token())
	if err != nil {
		return err
	}

	if mobile := sessions.Phone(); mobile != "" {
		if err := sessions.UpdateUser(ctx, map[string]interface{}{"mobile": mobile}); err != nil {
			app.Logger.Warn("failed to update user record", map[string]interface{}{"error": err.Error()})
		}
	}

	app.printf("\nApplication submitted. Lead %s (%d attempt(s)).\n", result.LeadID, result.Attempts)
	return browseOffers(app, result.Offers)
}

// login restores a saved session or walks the applicant through the OTP
// exchange. Running out of OTP attempts starts over at the mobile number.
func login(ctx context.Context, app *App, m *session.Manager) error {
	if m.Restore(ctx) {
		app.printf("Welcome back.\n")
		return nil
	}

	for {
		if err := requestOTP(ctx, app, m); err != nil {
			return err
		}
		app.printf("OTP sent to +91 %s\n", m.Phone())

		err := verifyOTP(ctx, app, m)
		if err == nil {
			app.printf("Signed in.\n")
			return nil
		}
		if !errors.HasCode(err, errors.ErrCodeOTPMaxAttempts) {
			return err
		}
		app.printf("%s\n", errors.UserMessage(err))
	}
}

func requestOTP(ctx context.Context, app *App, m *session.Manager) error {
	for {
		phone, err := app.Prompt.Input("Mobile number", "", func(s string) error {
			if _, msg := validation.NormalizePhone(s); msg != "" {
				return stderrors.New(msg)
			}
			return nil
		})
		if err != nil {
			return err
		}
		err = m.RequestOTP(ctx, phone)
		if err == nil {
			return nil
		}
		if !errors.HasCode(err, errors.ErrCodeValidationFailed) && !errors.HasCode(err, errors.ErrCodeOTPResendCooldown) {
			return err
		}
		app.printf("%s\n", errors.UserMessage(err))
	}
}

// verifyOTP prompts until the code is accepted. An empty answer asks for a
// new code, subject to the resend cooldown.
func verifyOTP(ctx context.Context, app *App, m *session.Manager) error {
	for {
		code, err := app.Prompt.Input("Enter the 6-digit OTP (blank to resend)", "", func(s string) error {
			if strings.TrimSpace(s) == "" {
				return nil
			}
			if msg := validation.ValidateOTP(s); msg != "" {
				return stderrors.New(msg)
			}
			return nil
		})
		if err != nil {
			return err
		}

		if strings.TrimSpace(code) == "" {
			if wait := m.ResendIn(); wait > 0 {
				app.printf("%s\n", errors.UserMessage(errors.NewOTPResendCooldownError(wait)))
				continue
			}
			if err := m.RequestOTP(ctx, m.Phone()); err != nil {
				if !errors.HasCode(err, errors.ErrCodeOTPResendCooldown) {
					return err
				}
				app.printf("%s\n", errors.UserMessage(err))
				continue
			}
			app.printf("OTP re-sent to +91 %s\n", m.Phone())
			continue
		}

		_, err = m.VerifyOTP(ctx, code)
		switch {
		case err == nil:
			return nil
		case errors.HasCode(err, errors.ErrCodeOTPInvalid), errors.HasCode(err, errors.ErrCodeValidationFailed):
			app.printf("%s\n", errors.UserMessage(err))
		default:
			return err
		}
	}
}

type wizard struct {
	app       *App
	store     *questionnaire.Store
	companies *lookup.CompanySearch
	pincodes  *lookup.PincodeResolver
}

// run collects every step and submits. Invalid fields are asked for again
// until the step passes; a failed submission can be retried.
func (w *wizard) run(ctx context.Context, token string) (*submission.Result, error) {
	var only []string
	for {
		step := w.store.CurrentStep()
		w.app.printf("\nStep %d of %d: %s (%d%%)\n", step, w.store.TotalSteps(), step.Title(), w.store.ProgressPercent())

		if err := w.collect(ctx, step, only); err != nil {
			return nil, err
		}

		adv := w.store.Advance()
		if !adv.ReadyToSubmit {
			only = w.report(adv.Errors, step)
			continue
		}

		result, err := w.submit(ctx, token)
		if err != nil {
			if !errors.HasCode(err, errors.ErrCodeValidationFailed) {
				return nil, err
			}
			only = w.report(w.store.Errors(), w.store.CurrentStep())
			continue
		}
		return result, nil
	}
}

// submit sends the form, offering a retry after each failed submission.
func (w *wizard) submit(ctx context.Context, token string) (*submission.Result, error) {
	for {
		w.app.printf("Submitting your application...\n")
		result, err := w.store.Submit(ctx, w.app.Orchestrator(), token)
		if err != nil {
			return nil, err
		}
		if result.Success {
			return result, nil
		}

		w.app.printf("Submission failed: %s\n", result.Error)
		again, err := w.app.Prompt.Confirm("Try again", true)
		if err != nil {
			return nil, err
		}
		if !again {
			if result.Err != nil {
				return nil, result.Err
			}
			return nil, stderrors.New(result.Error)
		}
	}
}

// report prints the errors of step and returns its failed fields, or nil
// when nothing on step failed.
func (w *wizard) report(errs validation.Errors, step application.Step) []string {
	var fields []string
	for _, f := range step.Fields() {
		if msg, ok := errs[f]; ok {
			w.app.printf("  ✗ %s\n", msg)
			fields = append(fields, f)
		}
	}
	return fields
}

func (w *wizard) collect(ctx context.Context, step application.Step, only []string) error {
	for _, p := range promptsFor(step, only) {
		if err := w.collectField(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// collectField asks for one field and patches it in. An unknown pincode is
// asked for again.
func (w *wizard) collectField(ctx context.Context, p fieldPrompt) error {
	for {
		form := w.store.Form()
		if p.When != nil && !p.When(form) {
			return nil
		}

		value, err := w.ask(ctx, p, fieldValue(form, p.Field))
		if err != nil {
			return err
		}
		if err := w.store.Patch(application.Patch{p.Field: value}); err != nil {
			return err
		}
		if p.Kind != kindPincode || !w.resolvePincode(ctx, p.Target, value.(string)) {
			return nil
		}
	}
}

func (w *wizard) ask(ctx context.Context, p fieldPrompt, current string) (interface{}, error) {
	switch p.Kind {
	case kindSelect:
		o, err := w.app.Prompt.Select(p.Label, p.Options)
		return o.Value, err
	case kindYesNo:
		o, err := w.app.Prompt.Select(p.Label, p.Options)
		return o.Value == "true", err
	case kindToggle:
		return w.app.Prompt.Confirm(p.Label, current != "false")
	case kindCompany:
		return w.askCompany(ctx, p, current)
	default:
		return w.app.Prompt.Input(p.Label, current, nil)
	}
}

func (w *wizard) askCompany(ctx context.Context, p fieldPrompt, current string) (interface{}, error) {
	query, err := w.app.Prompt.Input(p.Label, current, nil)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)

	companies, err := w.companies.Search(ctx, query)
	if err != nil || len(companies) == 0 {
		return query, nil
	}
	if len(companies) > maxCompanySuggestions {
		companies = companies[:maxCompanySuggestions]
	}

	options := make([]Option, 0, len(companies)+1)
	for _, c := range companies {
		options = append(options, Option{Value: c.Name, Label: c.Name})
	}
	options = append(options, Option{Value: query, Label: fmt.Sprintf("Use %q", query)})

	o, err := w.app.Prompt.Select("Select your company", options)
	return o.Value, err
}

// resolvePincode fills city and state. It reports whether the pincode
// should be asked for again.
func (w *wizard) resolvePincode(ctx context.Context, target lookup.Target, code string) bool {
	res, err := w.pincodes.Resolve(ctx, target, code)
	w.store.ApplyPincode(target, res, err)

	switch {
	case err == nil:
		w.app.printf("  → %s, %s\n", res.City, res.State)
	case stderrors.Is(err, lookup.ErrPincodeNotFound):
		w.app.printf("  ✗ %s\n", lookup.FieldMessage(err))
		return true
	case stderrors.Is(err, lookup.ErrPincodeLookupFailed):
		w.app.printf("  ! %s\n", lookup.FieldMessage(err))
	}
	return false
}

// fieldValue renders the current value of field for use as a default.
func fieldValue(f application.Form, field string) string {
	data, err := json.Marshal(f)
	if err != nil {
		return ""
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return ""
	}
	switch v := m[field].(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
