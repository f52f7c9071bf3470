// Package store owns the single application record of a session and keeps it
// persisted through a RecordBackend.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/visaflow/internal/application/dispatcher"
	"github.com/garyjia/visaflow/internal/application/port"
	"github.com/garyjia/visaflow/internal/domain/entity"
	"github.com/garyjia/visaflow/internal/domain/event"
)

// DefaultKey is the key the record is stored under
const DefaultKey = "visaflow-application"

// Persist reasons reported on record.persisted events
const (
	ReasonUpdate   = "update"
	ReasonAutosave = "autosave"
	ReasonFlush    = "flush"
)

var (
	// ErrTransitionRejected is returned when a patch moves status along an edge
	// the transition policy does not allow
	ErrTransitionRejected = errors.New("status transition rejected")

	// ErrInvalidStatus is returned when a patch carries an unknown status
	ErrInvalidStatus = errors.New("invalid status")
)

// TransitionPolicy vets a status change. It receives the status being left,
// the patch and the record the patch would produce, and refuses the change by
// returning an error.
type TransitionPolicy func(ctx context.Context, from entity.Status, patch entity.ApplicationPatch, merged entity.ApplicationRecord) error

// Store holds the in-memory record and writes it through on every mutation
type Store struct {
	mu      sync.Mutex
	current entity.ApplicationRecord

	backend    port.RecordBackend
	key        string
	logger     *zap.Logger
	now        func() time.Time
	policy     TransitionPolicy
	dispatcher dispatcher.Dispatcher
}

// Option configures the store
type Option func(*Store)

// WithKey overrides the storage key
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock overrides the time source used for default records
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithTransitionPolicy makes Update reject status patches the policy refuses
func WithTransitionPolicy(policy TransitionPolicy) Option {
	return func(s *Store) {
		s.policy = policy
	}
}

// WithDispatcher sets the dispatcher that receives record events
func WithDispatcher(d dispatcher.Dispatcher) Option {
	return func(s *Store) {
		s.dispatcher = d
	}
}

// New creates a store over backend. The in-memory record starts as a default
// record until Load is called.
func New(backend port.RecordBackend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		key:     DefaultKey,
		logger:  zap.NewNop(),
		now:     func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(s)
	}

	s.current = entity.NewDefaultRecord(s.now())
	return s
}

// Key returns the storage key
func (s *Store) Key() string {
	return s.key
}

// Load reads the persisted record. A missing, unreadable or malformed entry
// yields a fresh default record; Load never fails.
func (s *Store) Load(ctx context.Context) entity.ApplicationRecord {
	s.mu.Lock()
	rec, found := s.read(ctx)
	if !found {
		rec = entity.NewDefaultRecord(s.now())
	}
	s.current = rec
	out := rec.Clone()
	s.mu.Unlock()

	if !found {
		s.emit(ctx, event.TypeRecordCreated, out, nil)
	}
	return out
}

func (s *Store) read(ctx context.Context) (entity.ApplicationRecord, bool) {
	payload, err := s.backend.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, port.ErrNotFound) {
			s.logger.Warn("Failed to read persisted record, starting fresh",
				zap.String("key", s.key), zap.Error(err))
		}
		return entity.ApplicationRecord{}, false
	}

	var rec entity.ApplicationRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		s.logger.Warn("Persisted record is malformed, starting fresh",
			zap.String("key", s.key), zap.Error(err))
		return entity.ApplicationRecord{}, false
	}
	if rec.Status != "" && !rec.Status.IsValid() {
		s.logger.Warn("Persisted record has unknown status, starting fresh",
			zap.String("key", s.key), zap.String("status", rec.Status.String()))
		return entity.ApplicationRecord{}, false
	}

	rec.Normalize()
	return rec, true
}

// Current returns a copy of the in-memory record
func (s *Store) Current() entity.ApplicationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Update merges patch onto the current record, persists the result and
// returns it. On any error the in-memory record is left unchanged.
func (s *Store) Update(ctx context.Context, patch entity.ApplicationPatch) (entity.ApplicationRecord, error) {
	s.mu.Lock()

	from := s.current.Status
	merged := entity.Merge(s.current, patch)
	merged.Normalize()

	if patch.Status != nil && *patch.Status != from {
		to := *patch.Status
		if !to.IsValid() {
			s.mu.Unlock()
			return entity.ApplicationRecord{}, fmt.Errorf("%w: %q", ErrInvalidStatus, to)
		}
		if s.policy != nil {
			if err := s.policy(ctx, from, patch, merged); err != nil {
				s.mu.Unlock()
				return entity.ApplicationRecord{}, fmt.Errorf("%w: %s -> %s: %w", ErrTransitionRejected, from, to, err)
			}
		}
	}

	if err := s.write(ctx, merged); err != nil {
		s.mu.Unlock()
		return entity.ApplicationRecord{}, err
	}
	s.current = merged
	out := merged.Clone()
	s.mu.Unlock()

	s.emit(ctx, event.TypeRecordUpdated, out, nil)
	s.emit(ctx, event.TypeRecordPersisted, out, map[string]interface{}{"reason": ReasonUpdate})
	return out, nil
}

// Clear deletes the persisted record and replaces it with a fresh default
func (s *Store) Clear(ctx context.Context) (entity.ApplicationRecord, error) {
	s.mu.Lock()
	if err := s.backend.Delete(ctx, s.key); err != nil && !errors.Is(err, port.ErrNotFound) {
		s.mu.Unlock()
		return entity.ApplicationRecord{}, fmt.Errorf("failed to clear record: %w", err)
	}
	previous := s.current.Status
	s.current = entity.NewDefaultRecord(s.now())
	out := s.current.Clone()
	s.mu.Unlock()

	s.logger.Info("Application record cleared", zap.String("previous_status", previous.String()))
	s.emit(ctx, event.TypeRecordCleared, out, map[string]interface{}{"previous_status": previous.String()})
	return out, nil
}

// Persist rewrites the current record without changing any field
func (s *Store) Persist(ctx context.Context) error {
	s.mu.Lock()
	rec := s.current
	err := s.write(ctx, rec)
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.emit(ctx, event.TypeRecordPersisted, rec.Clone(), map[string]interface{}{"reason": ReasonFlush})
	return nil
}

// Autosave persists the current record only while it is in draft. It reports
// whether a write happened.
func (s *Store) Autosave(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.current.Status != entity.StatusDraft {
		s.mu.Unlock()
		return false, nil
	}
	rec := s.current
	err := s.write(ctx, rec)
	s.mu.Unlock()

	if err != nil {
		return false, err
	}
	s.emit(ctx, event.TypeRecordPersisted, rec.Clone(), map[string]interface{}{"reason": ReasonAutosave})
	return true, nil
}

func (s *Store) write(ctx context.Context, rec entity.ApplicationRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if err := s.backend.Put(ctx, s.key, payload); err != nil {
		return fmt.Errorf("failed to persist record: %w", err)
	}
	return nil
}

func (s *Store) emit(ctx context.Context, eventType event.Type, rec entity.ApplicationRecord, payload map[string]interface{}) {
	if s.dispatcher == nil {
		return
	}
	evt := event.NewEvent(eventType, rec.Status.String(), payload)
	if err := s.dispatcher.Dispatch(ctx, evt); err != nil {
		s.logger.Warn("Event handler failed",
			zap.String("event_type", eventType.String()), zap.Error(err))
	}
}
