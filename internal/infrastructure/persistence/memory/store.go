// Package memory keeps the application record in process memory. Nothing
// survives a restart; it backs tests and the "memory" storage backend.
package memory

import (
	"context"
	"sync"

	"github.com/garyjia/visaflow/internal/application/port"
)

// RecordStore implements port.RecordBackend over a map
type RecordStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

var _ port.RecordBackend = (*RecordStore)(nil)

// NewRecordStore creates an empty store
func NewRecordStore() *RecordStore {
	return &RecordStore{entries: make(map[string][]byte)}
}

// Get returns a copy of the payload stored under key
func (s *RecordStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.entries[key]
	if !ok {
		return nil, port.ErrNotFound
	}
	return append([]byte(nil), payload...), nil
}

// Put stores a copy of payload under key
func (s *RecordStore) Put(ctx context.Context, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = append([]byte(nil), payload...)
	return nil
}

// Delete removes key
func (s *RecordStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Close is a no-op
func (s *RecordStore) Close() error {
	return nil
}

// Health always succeeds
func (s *RecordStore) Health(ctx context.Context) error {
	return nil
}
