package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/visaflow/internal/application/port"
	"github.com/garyjia/visaflow/pkg/database"
)

func openRepo(t *testing.T, path string) *RecordRepository {
	t.Helper()
	repo, err := Open(context.Background(), database.Config{Path: path, MaxOpenConns: 1}, zap.NewNop())
	require.NoError(t, err)
	return repo
}

func TestRecordRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := openRepo(t, filepath.Join(t.TempDir(), "visaflow.db"))
	defer repo.Close()

	_, err := repo.Get(ctx, "visaflow-application")
	assert.ErrorIs(t, err, port.ErrNotFound)

	require.NoError(t, repo.Put(ctx, "visaflow-application", []byte(`{"status":"draft"}`)))
	require.NoError(t, repo.Put(ctx, "visaflow-application", []byte(`{"status":"pending_review"}`)))

	payload, err := repo.Get(ctx, "visaflow-application")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"pending_review"}`, string(payload))

	require.NoError(t, repo.Delete(ctx, "visaflow-application"))
	require.NoError(t, repo.Delete(ctx, "visaflow-application"))
	_, err = repo.Get(ctx, "visaflow-application")
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func TestRecordRepository_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "visaflow.db")

	repo := openRepo(t, path)
	require.NoError(t, repo.Put(ctx, "k", []byte("v")))
	require.NoError(t, repo.Close())

	reopened := openRepo(t, path)
	defer reopened.Close()

	payload, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), payload)
}
