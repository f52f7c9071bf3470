package port

import (
	"context"

	"github.com/garyjia/visaflow/internal/domain/entity"
)

// FileStorage defines file storage operations
type FileStorage interface {
	Save(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	Delete(ctx context.Context, path string) error
	GetFullPath(relativePath string) string
}

// SummaryRenderer formats an application record into a document
type SummaryRenderer interface {
	Render(rec entity.ApplicationRecord) ([]byte, error)
	Extension() string
}
