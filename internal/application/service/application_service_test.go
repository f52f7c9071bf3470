package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

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

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type mapBackend struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func (m *mapBackend) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.entries[key]; ok {
		return p, nil
	}
	return nil, port.ErrNotFound
}

func (m *mapBackend) Put(ctx context.Context, key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = payload
	return nil
}

func (m *mapBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *mapBackend) Close() error { return nil }

type recordingObserver struct {
	ops []string
}

func (r *recordingObserver) ObserveOperation(op string, d time.Duration) {
	r.ops = append(r.ops, op)
}

type fakeStorage struct {
	files map[string][]byte
	err   error
}

func (f *fakeStorage) Save(ctx context.Context, path string, content []byte) error {
	if f.err != nil {
		return f.err
	}
	f.files[path] = content
	return nil
}

func (f *fakeStorage) Read(ctx context.Context, path string) ([]byte, error) {
	return f.files[path], nil
}

func (f *fakeStorage) Exists(ctx context.Context, path string) bool {
	_, ok := f.files[path]
	return ok
}

func (f *fakeStorage) Delete(ctx context.Context, path string) error {
	delete(f.files, path)
	return nil
}

func (f *fakeStorage) GetFullPath(relativePath string) string {
	return filepath.Join("/out", relativePath)
}

type fakeRenderer struct {
	rendered []entity.ApplicationRecord
}

func (f *fakeRenderer) Render(rec entity.ApplicationRecord) ([]byte, error) {
	f.rendered = append(f.rendered, rec)
	return []byte("workbook"), nil
}

func (f *fakeRenderer) Extension() string { return ".xlsx" }

type harness struct {
	svc        ApplicationService
	store      *store.Store
	observer   *recordingObserver
	storage    *fakeStorage
	renderer   *fakeRenderer
	dispatched *[]event.Type
}

func newHarness(t *testing.T, rules ...validation.Rule) *harness {
	t.Helper()

	d := dispatcher.NewDispatcher()
	var mu sync.Mutex
	var dispatched []event.Type
	d.Subscribe(dispatcher.AllEvents, "recorder", func(ctx context.Context, evt *event.Event) error {
		mu.Lock()
		defer mu.Unlock()
		dispatched = append(dispatched, evt.Type)
		return nil
	})

	s := store.New(&mapBackend{entries: make(map[string][]byte)},
		store.WithClock(clock),
		store.WithTransitionPolicy(workflow.GuardedTransition),
		store.WithDispatcher(d),
	)
	s.Load(context.Background())

	validatorOpts := []validation.Option{validation.WithClock(clock)}
	if len(rules) > 0 {
		validatorOpts = append(validatorOpts, validation.WithRules(rules))
	}

	h := &harness{
		store:      s,
		observer:   &recordingObserver{},
		storage:    &fakeStorage{files: make(map[string][]byte)},
		renderer:   &fakeRenderer{},
		dispatched: &dispatched,
	}
	h.svc = NewApplicationService(Dependencies{
		Store:      s,
		Workflow:   workflow.NewEngine(s, workflow.WithClock(clock), workflow.WithDispatcher(d)),
		Validator:  validation.NewEngine(validatorOpts...),
		Dispatcher: d,
		Metrics:    h.observer,
		Storage:    h.storage,
		Renderer:   h.renderer,
		Logger:     zap.NewNop(),
	}, WithDelays(Delays{}), WithClock(clock))
	return h
}

func (h *harness) fillForm(t *testing.T) {
	t.Helper()
	_, err := h.svc.UpdateRecord(context.Background(), entity.ApplicationPatch{
		FullName:       entity.Ptr("Jane  Doe"),
		DateOfBirth:    entity.Ptr("1990-05-20"),
		Nationality:    entity.Ptr("Canada"),
		PassportNumber: entity.Ptr("P1234567"),
		Email:          entity.Ptr("jane@example.com"),
		EmployerName:   entity.Ptr("Acme"),
		JobTitle:       entity.Ptr("Engineer"),
	})
	require.NoError(t, err)
}

func TestApplicationService_FullLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fillForm(t)

	rec, err := h.svc.UploadDocuments(ctx, entity.DocumentTypePassport, []checklist.Upload{{FileName: "passport.pdf", SizeBytes: 1024}})
	require.NoError(t, err)
	assert.Equal(t, entity.DefaultVisaType, rec.VisaType)

	receipt, err := h.svc.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("VF%06d", fixedNow.UnixMilli()%1_000_000), receipt.ReferenceNumber)
	assert.Equal(t, fixedNow, receipt.SubmittedAt)

	outcome, err := h.svc.Validate(ctx)
	require.NoError(t, err)
	assert.True(t, outcome.Result.IsValid)
	assert.Equal(t, entity.StatusValidated, outcome.Status)
	assert.Empty(t, outcome.Remaining)

	_, err = h.svc.Proceed(ctx)
	require.NoError(t, err)

	_, err = h.svc.Generate(ctx)
	assert.ErrorIs(t, err, ErrNotApproved)

	rec, err = h.svc.Approve(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, rec.Status)

	doc, err := h.svc.Generate(ctx)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("VISA_482_Jane_Doe_%d.pdf", fixedNow.UnixMilli()), doc.FileName)
	assert.Equal(t, "2.4 MB", doc.Size)
	assert.Equal(t, 8, doc.PageCount)
	assert.Equal(t, fixedNow, doc.GeneratedAt)
	assert.Equal(t, filepath.Join("/out", "summaries", fmt.Sprintf("VISA_482_Jane_Doe_%d.xlsx", fixedNow.UnixMilli())), doc.SummaryPath)
	require.Len(t, h.renderer.rendered, 1)
	assert.Equal(t, entity.StatusApproved, h.renderer.rendered[0].Status)

	assert.Equal(t, []string{OpSubmit, OpValidate, OpApprove, OpGenerate}, h.observer.ops)
	assert.Contains(t, *h.dispatched, event.TypeDocumentGenerated)
	assert.Contains(t, *h.dispatched, event.TypeValidationCompleted)
	assert.Equal(t, []domainwf.Trigger{domainwf.TriggerReset}, h.svc.PermittedTriggers(ctx))
}

func TestApplicationService_SubmitRequiresFields(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.svc.UpdateRecord(ctx, entity.ApplicationPatch{FullName: entity.Ptr("Jane")})
	require.NoError(t, err)

	_, err = h.svc.Submit(ctx)

	assert.ErrorIs(t, err, workflow.ErrMissingRequired)
	assert.Empty(t, h.observer.ops, "no simulated call for a rejected submission")
	assert.Equal(t, entity.StatusDraft, h.svc.Current().Status)
}

func TestApplicationService_ValidateRequiresSubmission(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Validate(context.Background())

	assert.ErrorIs(t, err, domainwf.ErrInvalidTransition)
}

func TestApplicationService_BypassFlow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fillForm(t)
	_, err := h.svc.Submit(ctx)
	require.NoError(t, err)

	outcome, err := h.svc.Validate(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRequiresReview, outcome.Status)
	require.Len(t, outcome.Remaining, 2, "both document findings")

	_, err = h.svc.Proceed(ctx)
	assert.ErrorIs(t, err, workflow.ErrBlockingFindings)

	_, err = h.svc.Bypass(ctx, "email")
	assert.ErrorIs(t, err, ErrNoFinding)

	rec, err := h.svc.Bypass(ctx, "documents")
	require.NoError(t, err)
	assert.Equal(t, []string{"documents"}, rec.ValidationBypass)
	assert.Empty(t, h.svc.Remaining())

	rec, err = h.svc.Bypass(ctx, "documents")
	require.NoError(t, err)
	assert.Equal(t, []string{"documents"}, rec.ValidationBypass)

	// re-validation keeps the ledger
	outcome, err = h.svc.Validate(ctx)
	require.NoError(t, err)
	assert.Empty(t, outcome.Remaining)

	rec, err = h.svc.Proceed(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusReadyForReview, rec.Status)

	count := 0
	for _, typ := range *h.dispatched {
		if typ == event.TypeFindingBypassed {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestApplicationService_NonBypassableFinding(t *testing.T) {
	ctx := context.Background()
	rules := validation.DefaultRules()
	for i := range rules {
		if rules[i].Name == "passport_document" {
			rules[i].AllowBypass = false
		}
	}
	h := newHarness(t, rules...)
	h.fillForm(t)
	_, err := h.svc.Submit(ctx)
	require.NoError(t, err)
	_, err = h.svc.Validate(ctx)
	require.NoError(t, err)

	_, err = h.svc.Bypass(ctx, "documents")
	assert.ErrorIs(t, err, ErrNotBypassable)
	assert.Empty(t, h.svc.Current().ValidationBypass)
}

func TestApplicationService_InterruptedDelayIsRetryable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fillForm(t)
	svc := h.svc.(*applicationService)
	svc.delays = Delays{Submission: time.Hour}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := svc.Submit(cancelled)

	require.ErrorIs(t, err, ErrOperationInterrupted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(ErrNotApproved))
	assert.Equal(t, entity.StatusDraft, h.svc.Current().Status)

	svc.delays = Delays{}
	_, err = svc.Submit(ctx)
	assert.NoError(t, err, "retrying the whole operation succeeds")
}

func TestApplicationService_DelayIsHonoured(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	h := newHarness(t)
	h.fillForm(t)
	svc := h.svc.(*applicationService)
	svc.delays = Delays{Submission: time.Second}

	start := time.Now()
	_, err := svc.Submit(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestApplicationService_UploadDocuments(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.svc.UploadDocuments(ctx, entity.DocumentTypeResume, []checklist.Upload{{FileName: "cv-v1.pdf", SizeBytes: 10}})
	require.NoError(t, err)
	rec, err := h.svc.UploadDocuments(ctx, entity.DocumentTypeResume, []checklist.Upload{{FileName: "cv-v2.docx", SizeBytes: 10}})
	require.NoError(t, err)

	resumes := checklist.ByType(rec.Documents, entity.DocumentTypeResume)
	require.Len(t, resumes, 1)
	assert.Equal(t, "cv-v2.docx", resumes[0].FileName)

	_, err = h.svc.UploadDocuments(ctx, entity.DocumentTypeSupporting, []checklist.Upload{{FileName: "a.png", SizeBytes: 10}})
	require.NoError(t, err)
	rec, err = h.svc.UploadDocuments(ctx, entity.DocumentTypeSupporting, []checklist.Upload{{FileName: "b.png", SizeBytes: 10}})
	require.NoError(t, err)
	assert.Len(t, checklist.ByType(rec.Documents, entity.DocumentTypeSupporting), 2)

	_, err = h.svc.UploadDocuments(ctx, entity.DocumentTypeResume, []checklist.Upload{{FileName: "cv.exe", SizeBytes: 10}})
	assert.ErrorIs(t, err, checklist.ErrInvalidUpload)

	_, err = h.svc.UploadDocuments(ctx, entity.DocumentTypePassport, []checklist.Upload{{FileName: "p.pdf", SizeBytes: checklist.DefaultMaxUploadBytes + 1}})
	assert.ErrorIs(t, err, checklist.ErrInvalidUpload)

	rec, err = h.svc.RemoveDocument(ctx, resumes[0].ID)
	require.NoError(t, err)
	assert.Empty(t, checklist.ByType(rec.Documents, entity.DocumentTypeResume))

	_, err = h.svc.RemoveDocument(ctx, "missing")
	assert.Error(t, err)

	entries := h.svc.Checklist()
	require.Len(t, entries, len(entity.DocumentTypes))
	assert.Equal(t, entity.DocumentTypePassport, entries[0].Type)
	assert.Zero(t, entries[0].Count)
}

func TestApplicationService_StartNew(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fillForm(t)
	_, err := h.svc.Submit(ctx)
	require.NoError(t, err)

	rec, err := h.svc.StartNew(ctx)
	require.NoError(t, err)

	assert.Equal(t, entity.StatusDraft, rec.Status)
	assert.Empty(t, rec.FullName)
	assert.Nil(t, rec.SubmittedAt)
	assert.Equal(t, entity.DefaultVisaType, rec.VisaType)
	assert.Contains(t, *h.dispatched, event.TypeRecordCleared)
}

func TestApplicationService_GenerateStorageFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.fillForm(t)
	_, err := h.svc.UploadDocuments(ctx, entity.DocumentTypePassport, []checklist.Upload{{FileName: "p.pdf", SizeBytes: 1}})
	require.NoError(t, err)
	_, err = h.svc.Submit(ctx)
	require.NoError(t, err)
	_, err = h.svc.Validate(ctx)
	require.NoError(t, err)
	_, err = h.svc.Proceed(ctx)
	require.NoError(t, err)
	_, err = h.svc.Approve(ctx)
	require.NoError(t, err)

	h.storage.err = errors.New("disk full")
	_, err = h.svc.Generate(ctx)

	assert.ErrorContains(t, err, "failed to store summary")
}

func TestDocumentFileName(t *testing.T) {
	tests := []struct {
		name     string
		rec      entity.ApplicationRecord
		expected string
	}{
		{"collapses whitespace", entity.ApplicationRecord{VisaType: "482", FullName: "Jane   Mary Doe"}, "VISA_482_Jane_Mary_Doe_1000.pdf"},
		{"defaults visa type", entity.ApplicationRecord{FullName: "Jane"}, "VISA_482_Jane_1000.pdf"},
		{"strips separators", entity.ApplicationRecord{VisaType: "482", FullName: "a/b"}, "VISA_482_ab_1000.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DocumentFileName(tt.rec, time.UnixMilli(1000)))
		})
	}
}

func TestReferenceNumber(t *testing.T) {
	assert.Equal(t, "VF000042", referenceNumber(time.UnixMilli(42)))
	assert.Equal(t, "VF654321", referenceNumber(time.UnixMilli(1_700_000_654_321)))
}

func TestApplicationService_ConfiguredDefaults(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	svc := h.svc.(*applicationService)
	WithVisaType("186")(svc)
	WithDefaultCountry("New Zealand")(svc)

	rec, err := h.svc.UpdateRecord(ctx, entity.ApplicationPatch{FullName: entity.Ptr("Jane")})
	require.NoError(t, err)
	assert.Equal(t, "186", rec.VisaType)
	assert.Equal(t, "New Zealand", rec.Address.Country)

	rec, err = h.svc.UpdateRecord(ctx, entity.ApplicationPatch{Address: &entity.AddressPatch{Country: entity.Ptr("Fiji")}})
	require.NoError(t, err)
	assert.Equal(t, "Fiji", rec.Address.Country, "later edits are not overwritten")

	rec, err = h.svc.StartNew(ctx)
	require.NoError(t, err)
	assert.Equal(t, "New Zealand", rec.Address.Country)
	assert.Equal(t, "186", rec.VisaType)
}
