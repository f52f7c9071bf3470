// Package service exposes the operations the presentation layer invokes on
// the session's application record. Service calls simulate latency with
// fixed, cancellable delays.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/visaflow/internal/application/bypass"
	"github.com/garyjia/visaflow/internal/application/checklist"
	"github.com/garyjia/visaflow/internal/application/dispatcher"
	"github.com/garyjia/visaflow/internal/application/port"
	"github.com/garyjia/visaflow/internal/application/store"
	"github.com/garyjia/visaflow/internal/application/validation"
	"github.com/garyjia/visaflow/internal/application/workflow"
	"github.com/garyjia/visaflow/internal/domain/entity"
	"github.com/garyjia/visaflow/internal/domain/event"
	domainwf "github.com/garyjia/visaflow/internal/domain/workflow"
)

// Operation names used for delays and metrics
const (
	OpSubmit   = "submit"
	OpValidate = "validate"
	OpApprove  = "approve"
	OpGenerate = "generate"
)

// Delays holds the simulated latency of each service call
type Delays struct {
	Submission time.Duration
	Validation time.Duration
	Approval   time.Duration
	Generation time.Duration
}

// DefaultDelays mirrors the latency the workflow was designed around
func DefaultDelays() Delays {
	return Delays{
		Submission: 1000 * time.Millisecond,
		Validation: 1500 * time.Millisecond,
		Approval:   800 * time.Millisecond,
		Generation: 2000 * time.Millisecond,
	}
}

// OperationObserver records how long a simulated operation took
type OperationObserver interface {
	ObserveOperation(operation string, d time.Duration)
}

// SubmissionReceipt is returned by Submit
type SubmissionReceipt struct {
	ReferenceNumber string    `json:"referenceNumber"`
	SubmittedAt     time.Time `json:"submittedAt"`
}

// ValidationOutcome is returned by Validate
type ValidationOutcome struct {
	Result    validation.Result        `json:"result"`
	Status    entity.Status            `json:"status"`
	Remaining []entity.Finding         `json:"remaining"`
	Record    entity.ApplicationRecord `json:"-"`
}

// ApplicationService drives one application record through its lifecycle
type ApplicationService interface {
	Current() entity.ApplicationRecord
	UpdateRecord(ctx context.Context, patch entity.ApplicationPatch) (entity.ApplicationRecord, error)
	UploadDocuments(ctx context.Context, docType entity.DocumentType, uploads []checklist.Upload) (entity.ApplicationRecord, error)
	RemoveDocument(ctx context.Context, id string) (entity.ApplicationRecord, error)
	Checklist() []checklist.Entry

	Submit(ctx context.Context) (*SubmissionReceipt, error)
	Validate(ctx context.Context) (*ValidationOutcome, error)
	Bypass(ctx context.Context, field string) (entity.ApplicationRecord, error)
	Remaining() []entity.Finding
	Proceed(ctx context.Context) (entity.ApplicationRecord, error)
	Approve(ctx context.Context) (entity.ApplicationRecord, error)
	Generate(ctx context.Context) (*GeneratedDocument, error)
	StartNew(ctx context.Context) (entity.ApplicationRecord, error)

	PermittedTriggers(ctx context.Context) []domainwf.Trigger
}

// Dependencies wires the service to its collaborators. Dispatcher, Metrics,
// Storage and Renderer are optional.
type Dependencies struct {
	Store      *store.Store
	Workflow   *workflow.Engine
	Validator  *validation.Engine
	Uploads    *checklist.Validator
	Dispatcher dispatcher.Dispatcher
	Metrics    OperationObserver
	Storage    port.FileStorage
	Renderer   port.SummaryRenderer
	Logger     *zap.Logger
}

// Option configures the service
type Option func(*applicationService)

// WithDelays overrides the simulated latencies
func WithDelays(d Delays) Option {
	return func(s *applicationService) {
		s.delays = d
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *applicationService) {
		s.now = now
	}
}

// WithVisaType sets the visa type stamped on new applications
func WithVisaType(visaType string) Option {
	return func(s *applicationService) {
		if visaType != "" {
			s.visaType = visaType
		}
	}
}

// WithDefaultCountry sets the address country stamped on new applications
func WithDefaultCountry(country string) Option {
	return func(s *applicationService) {
		if country != "" {
			s.country = country
		}
	}
}

type applicationService struct {
	deps     Dependencies
	logger   *zap.Logger
	delays   Delays
	now      func() time.Time
	visaType string
	country  string
}

// NewApplicationService creates a new ApplicationService
func NewApplicationService(deps Dependencies, opts ...Option) ApplicationService {
	s := &applicationService{
		deps:     deps,
		logger:   deps.Logger,
		delays:   DefaultDelays(),
		now:      func() time.Time { return time.Now().UTC() },
		visaType: entity.DefaultVisaType,
		country:  entity.DefaultCountry,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.deps.Uploads == nil {
		s.deps.Uploads = checklist.NewValidator(0)
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Current returns the session's record
func (s *applicationService) Current() entity.ApplicationRecord {
	return s.deps.Store.Current()
}

// UpdateRecord merges a form edit into the record. A draft without a visa
// type picks up the configured defaults.
func (s *applicationService) UpdateRecord(ctx context.Context, patch entity.ApplicationPatch) (entity.ApplicationRecord, error) {
	if s.deps.Store.Current().VisaType == "" {
		s.stampDefaults(&patch)
	}
	return s.deps.Store.Update(ctx, patch)
}

func (s *applicationService) stampDefaults(patch *entity.ApplicationPatch) {
	if patch.VisaType == nil {
		patch.VisaType = &s.visaType
	}
	var addr entity.AddressPatch
	if patch.Address != nil {
		addr = *patch.Address
	}
	if addr.Country == nil {
		addr.Country = &s.country
	}
	patch.Address = &addr
}

// UploadDocuments validates and records a batch of files for one document type.
// Passport, resume and employment uploads replace the previous file.
func (s *applicationService) UploadDocuments(ctx context.Context, docType entity.DocumentType, uploads []checklist.Upload) (entity.ApplicationRecord, error) {
	if err := s.deps.Uploads.Check(docType, uploads); err != nil {
		return s.Current(), err
	}

	current := s.Current()
	refs := checklist.NewRefs(docType, uploads, s.now())
	docs := checklist.ApplyUpload(current.Documents, docType, refs)

	rec, err := s.deps.Store.Update(ctx, entity.ApplicationPatch{Documents: &docs})
	if err != nil {
		return current, err
	}

	s.logger.Info("Documents uploaded",
		zap.String("type", string(docType)),
		zap.Int("files", len(uploads)),
		zap.Int("total_documents", len(rec.Documents)))
	s.emit(ctx, event.TypeDocumentUploaded, rec, map[string]interface{}{
		"type":  string(docType),
		"files": len(uploads),
	})
	return rec, nil
}

// RemoveDocument drops a document by id
func (s *applicationService) RemoveDocument(ctx context.Context, id string) (entity.ApplicationRecord, error) {
	current := s.Current()
	docs, ok := checklist.Remove(current.Documents, id)
	if !ok {
		return current, fmt.Errorf("document %s not found", id)
	}
	return s.deps.Store.Update(ctx, entity.ApplicationPatch{Documents: &docs})
}

// Checklist summarises uploaded documents per type
func (s *applicationService) Checklist() []checklist.Entry {
	return checklist.Summary(s.Current().Documents)
}

// Submit sends the draft for review after the simulated submission delay
func (s *applicationService) Submit(ctx context.Context) (*SubmissionReceipt, error) {
	if !s.deps.Workflow.CanFire(domainwf.TriggerSubmit) {
		return nil, fmt.Errorf("%w: cannot submit a %s application", domainwf.ErrInvalidTransition, s.Current().Status)
	}
	if err := workflow.CheckSubmission(s.Current()); err != nil {
		return nil, err
	}

	if err := s.simulate(ctx, OpSubmit, s.delays.Submission); err != nil {
		return nil, err
	}

	reference := referenceNumber(s.now())
	rec, err := s.deps.Workflow.Submit(ctx, reference)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Application submitted", zap.String("reference_number", reference))
	return &SubmissionReceipt{
		ReferenceNumber: rec.ReferenceNumber,
		SubmittedAt:     *rec.SubmittedAt,
	}, nil
}

// Validate runs the validation engine, stores the findings and moves the
// record to validated or requires_review
func (s *applicationService) Validate(ctx context.Context) (*ValidationOutcome, error) {
	if !s.deps.Workflow.CanFire(domainwf.TriggerCompleteValidation) {
		return nil, fmt.Errorf("%w: cannot validate a %s application", domainwf.ErrInvalidTransition, s.Current().Status)
	}

	if err := s.simulate(ctx, OpValidate, s.delays.Validation); err != nil {
		return nil, err
	}

	result := s.deps.Validator.Validate(s.Current())
	rec, err := s.deps.Workflow.CompleteValidation(ctx, result)
	if err != nil {
		return nil, err
	}

	errorCount := result.CountBySeverity(entity.SeverityError)
	warningCount := result.CountBySeverity(entity.SeverityWarning)
	s.logger.Info("Validation completed",
		zap.Bool("is_valid", result.IsValid),
		zap.Int("errors", errorCount),
		zap.Int("warnings", warningCount))
	s.emit(ctx, event.TypeValidationCompleted, rec, map[string]interface{}{
		"is_valid": result.IsValid,
		"errors":   errorCount,
		"warnings": warningCount,
	})

	return &ValidationOutcome{
		Result:    result,
		Status:    rec.Status,
		Remaining: workflow.Remaining(rec),
		Record:    rec,
	}, nil
}

// Bypass overrides every finding currently reported for field
func (s *applicationService) Bypass(ctx context.Context, field string) (entity.ApplicationRecord, error) {
	current := s.Current()

	if bypass.Blocked(current.ValidationErrors, field) {
		return current, fmt.Errorf("%w: %s", ErrNotBypassable, field)
	}
	if !hasFinding(current.ValidationErrors, field) {
		return current, fmt.Errorf("%w: %s", ErrNoFinding, field)
	}

	ledger := bypass.NewLedger(current.ValidationBypass)
	if !ledger.Bypass(field) {
		return current, nil
	}

	fields := ledger.Fields()
	rec, err := s.deps.Store.Update(ctx, entity.ApplicationPatch{ValidationBypass: &fields})
	if err != nil {
		return current, err
	}

	s.logger.Info("Finding bypassed", zap.String("field", field), zap.Int("bypassed", ledger.Len()))
	s.emit(ctx, event.TypeFindingBypassed, rec, map[string]interface{}{"field": field})
	return rec, nil
}

// Remaining returns the findings that still block Proceed
func (s *applicationService) Remaining() []entity.Finding {
	return workflow.Remaining(s.Current())
}

// Proceed moves the record on to final review
func (s *applicationService) Proceed(ctx context.Context) (entity.ApplicationRecord, error) {
	return s.deps.Workflow.Proceed(ctx)
}

// Approve approves the record after the simulated approval delay
func (s *applicationService) Approve(ctx context.Context) (entity.ApplicationRecord, error) {
	if !s.deps.Workflow.CanFire(domainwf.TriggerApprove) {
		return s.Current(), fmt.Errorf("%w: cannot approve a %s application", domainwf.ErrInvalidTransition, s.Current().Status)
	}

	if err := s.simulate(ctx, OpApprove, s.delays.Approval); err != nil {
		return s.Current(), err
	}

	return s.deps.Workflow.Approve(ctx)
}

// StartNew destroys the current record and starts a fresh draft
func (s *applicationService) StartNew(ctx context.Context) (entity.ApplicationRecord, error) {
	if _, err := s.deps.Workflow.Reset(ctx); err != nil {
		return s.Current(), err
	}
	var patch entity.ApplicationPatch
	s.stampDefaults(&patch)
	return s.deps.Store.Update(ctx, patch)
}

// PermittedTriggers lists the workflow actions available now
func (s *applicationService) PermittedTriggers(ctx context.Context) []domainwf.Trigger {
	return s.deps.Workflow.PermittedTriggers(ctx)
}

// simulate waits d, or until ctx is done
func (s *applicationService) simulate(ctx context.Context, op string, d time.Duration) error {
	start := time.Now()
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			s.logger.Warn("Simulated operation interrupted", zap.String("operation", op), zap.Error(ctx.Err()))
			return fmt.Errorf("%w: %s: %w", ErrOperationInterrupted, op, ctx.Err())
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOperationInterrupted, op, err)
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveOperation(op, time.Since(start))
	}
	return nil
}

func (s *applicationService) emit(ctx context.Context, eventType event.Type, rec entity.ApplicationRecord, payload map[string]interface{}) {
	if s.deps.Dispatcher == nil {
		return
	}
	if err := s.deps.Dispatcher.Dispatch(ctx, event.NewEvent(eventType, rec.Status.String(), payload)); err != nil {
		s.logger.Warn("Event handler failed", zap.String("event_type", eventType.String()), zap.Error(err))
	}
}

// referenceNumber is "VF" followed by the last six digits of the unix
// millisecond timestamp
func referenceNumber(now time.Time) string {
	return fmt.Sprintf("VF%06d", now.UnixMilli()%1_000_000)
}

func hasFinding(findings []entity.Finding, field string) bool {
	for _, f := range findings {
		if f.Field == field {
			return true
		}
	}
	return false
}
