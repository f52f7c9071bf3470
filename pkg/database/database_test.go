package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{
		Path:         filepath.Join(t.TempDir(), "nested", "test.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunMigrations_AppliesInOrderOnce(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	fsys := fstest.MapFS{
		"migrations/002_add_column.sql": {Data: []byte("ALTER TABLE widgets ADD COLUMN colour TEXT;")},
		"migrations/001_widgets.sql":    {Data: []byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY);")},
		"migrations/README.md":          {Data: []byte("ignored")},
	}
	m := NewMigrator(db, zap.NewNop())

	require.NoError(t, m.RunMigrations(ctx, fsys, "migrations"))
	require.NoError(t, m.RunMigrations(ctx, fsys, "migrations"))

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 2, count)

	_, err := db.ExecContext(ctx, "INSERT INTO widgets (id, colour) VALUES (1, 'red')")
	assert.NoError(t, err)
}

func TestRunMigrations_FailedMigrationIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	fsys := fstest.MapFS{
		"migrations/001_broken.sql": {Data: []byte("CREATE TABLE (")},
	}

	err := NewMigrator(db, zap.NewNop()).RunMigrations(ctx, fsys, "migrations")
	require.Error(t, err)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Zero(t, count)
}

func TestRunMigrations_InvalidFilename(t *testing.T) {
	db := openTestDB(t)
	fsys := fstest.MapFS{
		"migrations/widgets.sql": {Data: []byte("SELECT 1;")},
	}

	err := NewMigrator(db, zap.NewNop()).RunMigrations(context.Background(), fsys, "migrations")
	assert.ErrorContains(t, err, "invalid migration filename")
}

func TestPending_ListsOnlyUnappliedMigrations(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	m := NewMigrator(db, zap.NewNop())
	first := fstest.MapFS{
		"migrations/001_widgets.sql": {Data: []byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY);")},
	}
	require.NoError(t, m.RunMigrations(ctx, first, "migrations"))

	second := fstest.MapFS{
		"migrations/001_widgets.sql": first["migrations/001_widgets.sql"],
		"migrations/010_gadgets.sql": {Data: []byte("CREATE TABLE gadgets (id INTEGER PRIMARY KEY);")},
	}
	pending, err := m.Pending(ctx, second, "migrations")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 10, pending[0].Version)
	assert.Equal(t, "gadgets", pending[0].Name)
}

func TestReadMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/001_a.sql":  {Data: []byte("SELECT 1;")},
		"migrations/0001_b.sql": {Data: []byte("SELECT 1;")},
	}

	_, err := readMigrations(fsys, "migrations")

	assert.ErrorContains(t, err, "duplicate migration version 1")
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	_, err := db.ExecContext(ctx, "CREATE TABLE notes (body TEXT)")
	require.NoError(t, err)

	err = db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO notes (body) VALUES ('draft')"); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.EqualError(t, err, "abort")

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notes").Scan(&count))
	assert.Zero(t, count)
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New(Config{}, zap.NewNop())
	assert.Error(t, err)
}
