package port

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a RecordBackend when the key holds no entry
var ErrNotFound = errors.New("record not found")

// RecordBackend persists the serialized application record under a key.
// Implementations store the payload opaquely.
type RecordBackend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, payload []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
