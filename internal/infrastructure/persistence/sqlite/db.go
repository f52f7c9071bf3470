// Package sqlite stores the application record in a single-row key/value
// table on a local SQLite database.
package sqlite

import (
	"context"
	"embed"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/visaflow/pkg/database"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open connects to the database at cfg.Path, applies pending migrations and
// returns a record backend over it
func Open(ctx context.Context, cfg database.Config, logger *zap.Logger) (*RecordRepository, error) {
	db, err := database.New(cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).RunMigrations(ctx, migrationsFS, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return NewRecordRepository(db, logger), nil
}
