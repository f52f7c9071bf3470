package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/visaflow/internal/application/port"
)

func TestRecordStore(t *testing.T) {
	ctx := context.Background()
	s := NewRecordStore()

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, port.ErrNotFound)

	payload := []byte("v1")
	require.NoError(t, s.Put(ctx, "k", payload))
	payload[0] = 'x'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got, "stored payload is isolated from the caller's slice")

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, port.ErrNotFound)
	assert.NoError(t, s.Close())
}
