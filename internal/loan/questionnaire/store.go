// Package questionnaire holds the four-step application wizard state: the
// form, the current step, per-field errors and the submission gate.
package questionnaire

import (
	"context"
	stderrors "errors"
	"math"
	"sync"

	"loangenius/internal/common/errors"
	"loangenius/internal/common/logger"
	"loangenius/internal/loan/application"
	"loangenius/internal/loan/lookup"
	"loangenius/internal/loan/submission"
	"loangenius/internal/loan/validation"
)

var (
	ErrFormLocked           = stderrors.New("form already submitted")
	ErrSubmissionInProgress = stderrors.New("submission already in progress")
)

type EventKind string

const (
	EventStepChanged      EventKind = "step_changed"
	EventValidationFailed EventKind = "validation_failed"
	EventReadyToSubmit    EventKind = "ready_to_submit"
	EventFieldsChanged    EventKind = "fields_changed"
	EventSubmitting       EventKind = "submitting"
	EventSubmitted        EventKind = "submitted"
	EventSubmitFailed     EventKind = "submit_failed"
	EventReset            EventKind = "reset"
)

// Event tells subscribers what changed. StepChanged doubles as the
// scroll-to-top hook; ValidationFailed names the field to focus.
type Event struct {
	Kind   EventKind
	Step   application.Step
	Field  string
	Fields []string
	Result *submission.Result
}

// AdvanceResult reports what Advance did.
type AdvanceResult struct {
	Moved         bool
	Step          application.Step
	ReadyToSubmit bool
	Errors        validation.Errors
	FirstInvalid  string
}

// Submitter runs the lead submission.
type Submitter interface {
	Submit(ctx context.Context, form application.Form, bearerToken string) *submission.Result
}

// Store is safe for concurrent use. Subscribers are called after the
// state change, outside the lock, in subscription order.
type Store struct {
	mu         sync.Mutex
	form       application.Form
	step       application.Step
	errs       validation.Errors
	submitting bool
	locked     bool
	generation int

	subMu  sync.Mutex
	subs   map[int]func(Event)
	order  []int
	nextID int

	logger logger.Logger
}

func NewStore(log logger.Logger) *Store {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Store{
		form:   application.NewForm(),
		step:   application.StepPersonal,
		errs:   validation.Errors{},
		subs:   map[int]func(Event){},
		logger: log.WithFields(map[string]interface{}{"component": "questionnaire"}),
	}
}

// Subscribe registers fn for every event and returns its cancel func.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.order = append(s.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			delete(s.subs, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (s *Store) emit(events ...Event) {
	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.order))
	for _, id := range s.order {
		fns = append(fns, s.subs[id])
	}
	s.subMu.Unlock()

	for _, e := range events {
		for _, fn := range fns {
			fn(e)
		}
	}
}

// Advance validates the current step. On success it clears that step's
// errors and moves forward, or reports ReadyToSubmit on the last step.
func (s *Store) Advance() AdvanceResult {
	s.mu.Lock()
	step := s.step
	errs := validation.ValidateStep(step, s.form)

	if !errs.Valid() {
		for _, f := range step.Fields() {
			delete(s.errs, f)
		}
		for f, msg := range errs {
			s.errs[f] = msg
		}
		first := validation.FirstInvalidField(errs)
		s.mu.Unlock()

		s.logger.Debug("Step validation failed", map[string]interface{}{"step": int(step), "field": first})
		s.emit(Event{Kind: EventValidationFailed, Step: step, Field: first})
		return AdvanceResult{Step: step, Errors: errs, FirstInvalid: first}
	}

	for _, f := range step.Fields() {
		delete(s.errs, f)
	}
	if step >= application.TotalSteps {
		s.mu.Unlock()
		s.emit(Event{Kind: EventReadyToSubmit, Step: step})
		return AdvanceResult{Step: step, ReadyToSubmit: true, Errors: validation.Errors{}}
	}
	s.step = step + 1
	next := s.step
	s.mu.Unlock()

	s.emit(Event{Kind: EventStepChanged, Step: next})
	return AdvanceResult{Moved: true, Step: next, Errors: validation.Errors{}}
}

// Retreat moves back one step without validating.
func (s *Store) Retreat() bool {
	s.mu.Lock()
	if s.step <= application.StepPersonal {
		s.mu.Unlock()
		return false
	}
	s.step--
	step := s.step
	s.mu.Unlock()

	s.emit(Event{Kind: EventStepChanged, Step: step})
	return true
}

// Patch merges p into the form and drops the error of every key in p, even
// when the new value is still invalid.
func (s *Store) Patch(p application.Patch) error {
	if len(p) == 0 {
		return nil
	}

	s.mu.Lock()
	if s.locked {
		s.mu.Unlock()
		return ErrFormLocked
	}
	if err := s.form.Apply(p); err != nil {
		s.mu.Unlock()
		return errors.NewInvalidInputError(err.Error())
	}
	keys := p.Keys()
	for _, k := range keys {
		delete(s.errs, k)
	}
	step := s.step
	s.mu.Unlock()

	s.emit(Event{Kind: EventFieldsChanged, Step: step, Fields: keys})
	return nil
}

// Reset restores defaults: empty form, step 1, no errors, unlocked.
func (s *Store) Reset() {
	s.mu.Lock()
	s.form = application.NewForm()
	s.step = application.StepPersonal
	s.errs = validation.Errors{}
	s.locked = false
	s.submitting = false
	s.generation++
	s.mu.Unlock()

	s.emit(Event{Kind: EventReset, Step: application.StepPersonal})
}

// SetFieldError records msg for field; an empty msg clears it.
func (s *Store) SetFieldError(field, msg string) {
	s.mu.Lock()
	if msg == "" {
		delete(s.errs, field)
	} else {
		s.errs[field] = msg
	}
	s.mu.Unlock()
}

// ApplyPincode folds a lookup result into the form. Superseded, cancelled
// and incomplete lookups are ignored, as is a result for a pincode the
// applicant has since changed. Failures set the pincode field error and
// leave city and state alone.
func (s *Store) ApplyPincode(target lookup.Target, res *lookup.Resolution, err error) {
	pinField, cityField, stateField := target.Fields()
	if s.Locked() {
		return
	}

	if err != nil {
		msg := lookup.FieldMessage(err)
		if msg == "" {
			return
		}
		s.SetFieldError(pinField, msg)
		return
	}
	if res == nil {
		return
	}

	s.mu.Lock()
	current := s.form.Pincode
	if target == lookup.Office {
		current = s.form.OfficePincode
	}
	if s.locked || (current != "" && current != res.Pincode) {
		s.mu.Unlock()
		return
	}
	if target == lookup.Office {
		s.form.OfficeCity, s.form.OfficeState = res.City, res.State
	} else {
		s.form.City, s.form.State = res.City, res.State
	}
	delete(s.errs, pinField)
	step := s.step
	s.mu.Unlock()

	s.emit(Event{Kind: EventFieldsChanged, Step: step, Fields: []string{cityField, stateField}})
}

// Submit validates every step and hands the form to sub. While a submission
// is running further calls return ErrSubmissionInProgress. A successful
// submission locks the form until Reset. A submission still running when
// Reset is called returns its result without touching the new form.
func (s *Store) Submit(ctx context.Context, sub Submitter, bearerToken string) (*submission.Result, error) {
	s.mu.Lock()
	if s.submitting {
		s.mu.Unlock()
		return nil, ErrSubmissionInProgress
	}
	if s.locked {
		s.mu.Unlock()
		return nil, ErrFormLocked
	}

	if errs := validation.ValidateAll(s.form); !errs.Valid() {
		s.errs = validation.Errors{}
		for f, msg := range errs {
			s.errs[f] = msg
		}
		first := validation.FirstInvalidField(errs)
		events := []Event{}
		if step, ok := application.StepOf(first); ok && step != s.step {
			s.step = step
			events = append(events, Event{Kind: EventStepChanged, Step: step})
		}
		step := s.step
		s.mu.Unlock()

		events = append(events, Event{Kind: EventValidationFailed, Step: step, Field: first})
		s.emit(events...)
		return nil, errors.NewValidationError(first, errs[first])
	}

	s.submitting = true
	gen := s.generation
	form := s.form.Clone()
	step := s.step
	s.mu.Unlock()

	s.emit(Event{Kind: EventSubmitting, Step: step})

	result := sub.Submit(ctx, form, bearerToken)
	if result == nil {
		result = &submission.Result{Error: errors.UserMessage(errors.NewInternalError(stderrors.New("no submission result")))}
	}

	s.mu.Lock()
	stale := gen != s.generation
	if !stale {
		s.submitting = false
		if result.Success {
			s.locked = true
		}
	}
	s.mu.Unlock()

	if stale {
		s.logger.Info("Discarding submission result after reset", map[string]interface{}{"success": result.Success})
		return result, nil
	}

	if result.Success {
		s.logger.Info("Application submitted", map[string]interface{}{"leadId": result.LeadID})
		s.emit(Event{Kind: EventSubmitted, Step: step, Result: result})
	} else {
		s.logger.Warn("Application submission failed", map[string]interface{}{"error": result.Error})
		s.emit(Event{Kind: EventSubmitFailed, Step: step, Result: result})
	}
	return result, nil
}

func (s *Store) CurrentStep() application.Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

func (s *Store) TotalSteps() int {
	return application.TotalSteps
}

// ProgressPercent is round(step / total * 100).
func (s *Store) ProgressPercent() int {
	step := s.CurrentStep()
	return int(math.Round(float64(step) / float64(application.TotalSteps) * 100))
}

// Form returns a copy of the form.
func (s *Store) Form() application.Form {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form.Clone()
}

// Errors returns a copy of the error map.
func (s *Store) Errors() validation.Errors {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(validation.Errors, len(s.errs))
	for k, v := range s.errs {
		out[k] = v
	}
	return out
}

func (s *Store) FirstInvalidField() string {
	return validation.FirstInvalidField(s.Errors())
}

func (s *Store) IsSubmitting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitting
}

// Locked reports whether a successful submission has frozen the form.
func (s *Store) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}
