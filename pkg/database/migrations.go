package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strconv"

	"go.uber.org/zap"
)

// migration files are named NNN_description.sql
var migrationName = regexp.MustCompile(`^(\d+)_([^.]+)\.sql$`)

// Migration is one schema change read from a migrations directory
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrator applies schema changes and records them in schema_migrations
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

// NewMigrator creates a new migrator
func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{
		db:     db,
		logger: logger,
	}
}

// RunMigrations applies every migration under dir in fsys that has not been
// recorded yet, in version order. Each one runs in its own transaction.
func (m *Migrator) RunMigrations(ctx context.Context, fsys fs.FS, dir string) error {
	pending, err := m.Pending(ctx, fsys, dir)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		m.logger.Debug("Schema is up to date", zap.String("dir", dir))
		return nil
	}

	for _, mig := range pending {
		m.logger.Info("Applying migration",
			zap.Int("version", mig.Version),
			zap.String("name", mig.Name))

		if err := m.apply(ctx, mig); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", mig.Version, err)
		}
	}

	m.logger.Info("Database migrations completed", zap.Int("applied", len(pending)))
	return nil
}

// Pending returns the migrations under dir that have not been applied
func (m *Migrator) Pending(ctx context.Context, fsys fs.FS, dir string) ([]Migration, error) {
	if _, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}

	all, err := readMigrations(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	return slices.DeleteFunc(all, func(mig Migration) bool {
		_, done := applied[mig.Version]
		return done
	}), nil
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[int]struct{}, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]struct{})
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = struct{}{}
	}
	return applied, rows.Err()
}

func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	return m.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
			return fmt.Errorf("failed to execute migration SQL: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`,
			mig.Version, mig.Name); err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}
		return nil
	})
}

// readMigrations loads the .sql files directly under dir sorted by version
func readMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	files, err := fs.Glob(fsys, path.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}

	migrations := make([]Migration, 0, len(files))
	seen := make(map[int]string, len(files))
	for _, file := range files {
		base := path.Base(file)
		match := migrationName.FindStringSubmatch(base)
		if match == nil {
			return nil, fmt.Errorf("invalid migration filename format: %s", base)
		}
		version, err := strconv.Atoi(match[1])
		if err != nil {
			return nil, fmt.Errorf("invalid migration version in %s: %w", base, err)
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %d: %s and %s", version, prev, base)
		}
		seen[version] = base

		content, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", base, err)
		}
		migrations = append(migrations, Migration{Version: version, Name: match[2], SQL: string(content)})
	}

	slices.SortFunc(migrations, func(a, b Migration) int { return a.Version - b.Version })
	return migrations, nil
}
