package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/visaflow/internal/application/port"
	"github.com/garyjia/visaflow/pkg/database"
)

// RecordRepository implements port.RecordBackend
type RecordRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewRecordRepository creates a record repository over a migrated database
func NewRecordRepository(db *database.DB, logger *zap.Logger) *RecordRepository {
	return &RecordRepository{
		db:     db,
		logger: logger,
	}
}

var _ port.RecordBackend = (*RecordRepository)(nil)

// Get returns the payload stored under key
func (r *RecordRepository) Get(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT payload FROM application_records WHERE key = ?`

	var payload []byte
	err := r.db.QueryRowContext(ctx, query, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to read record", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	return payload, nil
}

// Put inserts or replaces the payload stored under key
func (r *RecordRepository) Put(ctx context.Context, key string, payload []byte) error {
	query := `
		INSERT INTO application_records (key, payload, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, key, payload); err != nil {
		r.logger.Error("Failed to write record", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Delete removes the entry stored under key. Deleting a missing key is not an error.
func (r *RecordRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM application_records WHERE key = ?`, key); err != nil {
		r.logger.Error("Failed to delete record", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (r *RecordRepository) Close() error {
	return r.db.Close()
}

// Health pings the database
func (r *RecordRepository) Health(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
