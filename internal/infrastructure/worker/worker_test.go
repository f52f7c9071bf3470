package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingSaver struct {
	calls atomic.Int64
	draft atomic.Bool
	err   error
}

func (c *countingSaver) Autosave(ctx context.Context) (bool, error) {
	c.calls.Add(1)
	if c.err != nil {
		return false, c.err
	}
	return c.draft.Load(), nil
}

func TestAutosaveWorker_PersistsOnInterval(t *testing.T) {
	saver := &countingSaver{}
	saver.draft.Store(true)
	w := NewAutosaveWorker(saver, 5*time.Millisecond, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Eventually(t, func() bool { return w.Saves() >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())

	calls := saver.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, saver.calls.Load(), "no autosave after Stop returns")
}

func TestAutosaveWorker_CountsOnlyWrites(t *testing.T) {
	saver := &countingSaver{}
	w := NewAutosaveWorker(saver, 5*time.Millisecond, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Eventually(t, func() bool { return saver.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())

	assert.Zero(t, w.Saves())
}

func TestAutosaveWorker_ErrorsDoNotStopLoop(t *testing.T) {
	saver := &countingSaver{err: errors.New("disk full")}
	w := NewAutosaveWorker(saver, 5*time.Millisecond, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Eventually(t, func() bool { return saver.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())
}

func TestAutosaveWorker_Lifecycle(t *testing.T) {
	w := NewAutosaveWorker(&countingSaver{}, 0, zap.NewNop())
	assert.Equal(t, DefaultAutosaveInterval, w.interval)

	assert.NoError(t, w.Stop(), "stopping a stopped worker is a no-op")
	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())
	require.NoError(t, w.Start(context.Background()), "worker can be restarted")
	require.NoError(t, w.Stop())
}

func TestAutosaveWorker_StopsWhenParentCancelled(t *testing.T) {
	saver := &countingSaver{}
	w := NewAutosaveWorker(saver, time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, w.Start(ctx))
	cancel()

	done := make(chan struct{})
	go func() {
		_ = w.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after parent cancellation")
	}
}

type fakeWorker struct {
	name    string
	startErr error
	stopErr error
	log     *[]string
	mu      *sync.Mutex
}

func (f *fakeWorker) Start(ctx context.Context) error {
	f.record("start:" + f.name)
	return f.startErr
}

func (f *fakeWorker) Stop() error {
	f.record("stop:" + f.name)
	return f.stopErr
}

func (f *fakeWorker) Name() string { return f.name }

func (f *fakeWorker) record(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	*f.log = append(*f.log, s)
}

func TestWorkerManager_StartStopOrder(t *testing.T) {
	var log []string
	var mu sync.Mutex
	m := NewWorkerManager(zap.NewNop())
	m.Register(&fakeWorker{name: "a", log: &log, mu: &mu})
	m.Register(&fakeWorker{name: "b", log: &log, mu: &mu, startErr: errors.New("boom")})
	m.Register(&fakeWorker{name: "c", log: &log, mu: &mu})

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	assert.Error(t, m.StartAll(context.Background()))

	require.NoError(t, m.StopAll())
	assert.False(t, m.IsRunning())
	assert.NoError(t, m.StopAll())

	assert.Equal(t, []string{"start:a", "start:b", "start:c", "stop:c", "stop:a"}, log, "b never started so it is not stopped")
	assert.Equal(t, 3, m.GetWorkerCount())
}

func TestWorkerManager_StopErrorsAreJoined(t *testing.T) {
	var log []string
	var mu sync.Mutex
	stopErr := errors.New("stuck")
	m := NewWorkerManager(zap.NewNop())
	m.Register(&fakeWorker{name: "a", log: &log, mu: &mu, stopErr: stopErr})

	require.NoError(t, m.StartAll(context.Background()))
	err := m.StopAll()

	assert.ErrorIs(t, err, stopErr)
}
