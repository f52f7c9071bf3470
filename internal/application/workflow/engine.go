// Package workflow drives the application record through its statuses. It
// evaluates transition guards against the current record and writes every
// status change through the record store.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/visaflow/internal/application/bypass"
	"github.com/garyjia/visaflow/internal/application/dispatcher"
	"github.com/garyjia/visaflow/internal/application/validation"
	"github.com/garyjia/visaflow/internal/domain/entity"
	"github.com/garyjia/visaflow/internal/domain/event"
	domainwf "github.com/garyjia/visaflow/internal/domain/workflow"
)

// ErrMissingRequired is returned by Submit when the coarse required-field
// check fails
var ErrMissingRequired = errors.New("required fields missing")

// ErrBlockingFindings is returned by Proceed while findings remain unbypassed
var ErrBlockingFindings = errors.New("findings still blocking")

// ErrValidationRequired is returned when a status patch targets a validation
// outcome without carrying the findings of a validation run
var ErrValidationRequired = errors.New("validation outcome requires findings")

// RecordStore is the part of the record store the engine needs
type RecordStore interface {
	Current() entity.ApplicationRecord
	Update(ctx context.Context, patch entity.ApplicationPatch) (entity.ApplicationRecord, error)
	Clear(ctx context.Context) (entity.ApplicationRecord, error)
}

// Transition is one applied status change
type Transition struct {
	From    domainwf.State
	To      domainwf.State
	Trigger domainwf.Trigger
	At      time.Time
}

// Engine applies workflow triggers to the session's record
type Engine struct {
	store      RecordStore
	dispatcher dispatcher.Dispatcher
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	history []Transition
}

// EngineOption configures the workflow engine
type EngineOption func(*Engine)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *Engine) {
		e.dispatcher = d
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides the time source for transition timestamps
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a new workflow engine over store
func NewEngine(store RecordStore, opts ...EngineOption) *Engine {
	e := &Engine{
		store:  store,
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// CanTransition reports whether any trigger can move a record from one status
// to another, ignoring guards
func CanTransition(from, to entity.Status) bool {
	if !from.IsValid() || !to.IsValid() {
		return false
	}
	machine := BuildApplicationStateMachine(domainwf.State(from), Guards{})
	for _, trigger := range machine.PermittedTriggers() {
		for _, target := range machine.Targets(trigger) {
			if target == domainwf.State(to) {
				return true
			}
		}
	}
	return false
}

// GuardedTransition is the record store's transition policy. It fires the
// trigger leading from -> merged.Status on a machine whose guards read the
// merged record, so a status patch passes the same checks as Submit, Proceed
// and CompleteValidation. A patch into validated or requires_review must carry
// the findings that decide between them.
func GuardedTransition(ctx context.Context, from entity.Status, patch entity.ApplicationPatch, merged entity.ApplicationRecord) error {
	to := merged.Status
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", domainwf.ErrInvalidTransition, from, to)
	}
	if (to == entity.StatusValidated || to == entity.StatusRequiresReview) && patch.ValidationErrors == nil {
		return fmt.Errorf("%w: %s", ErrValidationRequired, to)
	}

	outcome := validation.Result{
		IsValid: len(merged.ValidationErrors) == 0,
		Errors:  merged.ValidationErrors,
	}
	guards := guardsFor(merged, &outcome)
	edges := BuildApplicationStateMachine(domainwf.State(from), Guards{})

	var lastErr error
	for _, trigger := range edges.PermittedTriggers() {
		if !slices.Contains(edges.Targets(trigger), domainwf.State(to)) {
			continue
		}
		machine := BuildApplicationStateMachine(domainwf.State(from), guards)
		if err := machine.Fire(ctx, trigger); err != nil {
			if trigger == domainwf.TriggerSubmit {
				if submitErr := CheckSubmission(merged); submitErr != nil {
					err = submitErr
				}
			}
			lastErr = err
			continue
		}
		if machine.State() == domainwf.State(to) {
			return nil
		}
		lastErr = fmt.Errorf("%w: %s leads to %s, not %s", domainwf.ErrGuardFailed, trigger, machine.State(), to)
	}
	return lastErr
}

// MissingForSubmission returns the required fields that are blank. This is the
// coarse check gating submission, independent of the validation rules.
func MissingForSubmission(rec entity.ApplicationRecord) []string {
	required := []struct {
		field string
		value string
	}{
		{"fullName", rec.FullName},
		{"dateOfBirth", rec.DateOfBirth},
		{"nationality", rec.Nationality},
		{"passportNumber", rec.PassportNumber},
		{"email", rec.Email},
		{"employerName", rec.EmployerName},
		{"jobTitle", rec.JobTitle},
	}

	missing := make([]string, 0)
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.field)
		}
	}
	return missing
}

// CheckSubmission returns an error naming the blank required fields, or nil
func CheckSubmission(rec entity.ApplicationRecord) error {
	missing := MissingForSubmission(rec)
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w: %s", domainwf.ErrGuardFailed, ErrMissingRequired, strings.Join(missing, ", "))
}

// State returns the current workflow state of the record
func (e *Engine) State() domainwf.State {
	return domainwf.State(e.store.Current().Status)
}

// CanFire reports whether trigger is configured for the record's current
// status. Guards are not evaluated.
func (e *Engine) CanFire(trigger domainwf.Trigger) bool {
	return e.machineFor(e.store.Current(), Guards{}).CanFire(trigger)
}

// PermittedTriggers lists the triggers whose guards currently pass
func (e *Engine) PermittedTriggers(ctx context.Context) []domainwf.Trigger {
	rec := e.store.Current()
	machine := e.machineFor(rec, guardsFor(rec, nil))

	permitted := make([]domainwf.Trigger, 0)
	for _, trigger := range machine.PermittedTriggers() {
		if machine.CanFireWith(ctx, trigger) {
			permitted = append(permitted, trigger)
		}
	}
	return permitted
}

// Submit moves a draft to pending_review once the coarse required fields are
// present, stamping submittedAt and the reference number
func (e *Engine) Submit(ctx context.Context, referenceNumber string) (entity.ApplicationRecord, error) {
	rec := e.store.Current()
	if rec.Status == entity.StatusDraft {
		if err := CheckSubmission(rec); err != nil {
			return rec, err
		}
	}

	at := e.now()
	return e.apply(ctx, rec, domainwf.TriggerSubmit, guardsFor(rec, nil), entity.ApplicationPatch{
		SubmittedAt:     &at,
		ReferenceNumber: &referenceNumber,
	})
}

// CompleteValidation stores the findings of a validation run and moves the
// record to validated or requires_review
func (e *Engine) CompleteValidation(ctx context.Context, result validation.Result) (entity.ApplicationRecord, error) {
	rec := e.store.Current()
	findings := append([]entity.Finding{}, result.Errors...)

	return e.apply(ctx, rec, domainwf.TriggerCompleteValidation, guardsFor(rec, &result), entity.ApplicationPatch{
		ValidationErrors: &findings,
	})
}

// Proceed moves a validated or reviewed record to ready_for_review once every
// finding of the last run is bypassed
func (e *Engine) Proceed(ctx context.Context) (entity.ApplicationRecord, error) {
	rec := e.store.Current()
	if remaining := Remaining(rec); len(remaining) > 0 && e.machineFor(rec, Guards{}).CanFire(domainwf.TriggerProceed) {
		return rec, fmt.Errorf("%w: %w: %d finding(s) on %s", domainwf.ErrGuardFailed, ErrBlockingFindings, len(remaining), strings.Join(fieldsOf(remaining), ", "))
	}

	return e.apply(ctx, rec, domainwf.TriggerProceed, guardsFor(rec, nil), entity.ApplicationPatch{})
}

// Approve moves a record under review to approved and stamps approvedAt
func (e *Engine) Approve(ctx context.Context) (entity.ApplicationRecord, error) {
	rec := e.store.Current()
	at := e.now()
	return e.apply(ctx, rec, domainwf.TriggerApprove, guardsFor(rec, nil), entity.ApplicationPatch{
		ApprovedAt: &at,
	})
}

// Reset destroys the record from any state and starts a fresh draft
func (e *Engine) Reset(ctx context.Context) (entity.ApplicationRecord, error) {
	previous := e.store.Current()
	fresh, err := e.store.Clear(ctx)
	if err != nil {
		return previous, err
	}
	e.record(ctx, domainwf.State(previous.Status), domainwf.StateDraft, domainwf.TriggerReset)
	return fresh, nil
}

// History returns the transitions applied during this session
func (e *Engine) History() []Transition {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Transition{}, e.history...)
}

// Remaining returns the findings of the record's last validation run that are
// not covered by its bypass ledger
func Remaining(rec entity.ApplicationRecord) []entity.Finding {
	return bypass.RemainingBlocking(rec.ValidationErrors, bypass.NewLedger(rec.ValidationBypass))
}

func guardsFor(rec entity.ApplicationRecord, result *validation.Result) Guards {
	return Guards{
		RequiredPresent: func(ctx context.Context) bool {
			return len(MissingForSubmission(rec)) == 0
		},
		ValidationPassed: func(ctx context.Context) bool {
			return result != nil && result.IsValid
		},
		NothingBlocking: func(ctx context.Context) bool {
			return len(Remaining(rec)) == 0
		},
	}
}

func (e *Engine) machineFor(rec entity.ApplicationRecord, guards Guards) domainwf.StateMachine {
	state := domainwf.State(rec.Status)
	if !state.IsValid() {
		state = domainwf.StateDraft
	}
	return BuildApplicationStateMachine(state, guards)
}

// apply fires trigger against rec and writes the new status together with
// patch through the store
func (e *Engine) apply(ctx context.Context, rec entity.ApplicationRecord, trigger domainwf.Trigger, guards Guards, patch entity.ApplicationPatch) (entity.ApplicationRecord, error) {
	machine := e.machineFor(rec, guards)
	previous := machine.State()

	if err := machine.Fire(ctx, trigger); err != nil {
		return rec, fmt.Errorf("state machine fire failed: %w", err)
	}

	next := entity.Status(machine.State())
	patch.Status = &next

	updated, err := e.store.Update(ctx, patch)
	if err != nil {
		return rec, fmt.Errorf("failed to update record status: %w", err)
	}

	e.record(ctx, previous, machine.State(), trigger)
	return updated, nil
}

func (e *Engine) record(ctx context.Context, from, to domainwf.State, trigger domainwf.Trigger) {
	e.mu.Lock()
	e.history = append(e.history, Transition{From: from, To: to, Trigger: trigger, At: e.now()})
	e.mu.Unlock()

	e.logger.Info("Application status changed",
		zap.String("previous_status", from.String()),
		zap.String("new_status", to.String()),
		zap.String("trigger", trigger.String()))

	if e.dispatcher != nil {
		statusEvent := event.NewEvent(event.TypeStatusChanged, to.String(), map[string]interface{}{
			"previous_status": from.String(),
			"new_status":      to.String(),
			"trigger":         trigger.String(),
		})
		if err := e.dispatcher.Dispatch(ctx, statusEvent); err != nil {
			e.logger.Warn("Status change handler failed", zap.Error(err))
		}
	}
}

func fieldsOf(findings []entity.Finding) []string {
	seen := make(map[string]bool, len(findings))
	fields := make([]string, 0, len(findings))
	for _, f := range findings {
		if !seen[f.Field] {
			seen[f.Field] = true
			fields = append(fields, f.Field)
		}
	}
	return fields
}
