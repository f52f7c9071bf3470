package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/visaflow/internal/domain/event"
)

func newTestDispatcher() Dispatcher {
	return NewDispatcher(WithLogger(zap.NewNop().Sugar()))
}

func TestDispatch_CallsMatchingHandlersInOrder(t *testing.T) {
	d := newTestDispatcher()
	var order []string

	d.Subscribe(event.TypeStatusChanged, "first", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "first")
		return nil
	})
	d.Subscribe(AllEvents, "wildcard", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "wildcard")
		return nil
	})
	d.Subscribe(event.TypeStatusChanged, "second", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "second")
		return nil
	})
	d.Subscribe(event.TypeRecordCleared, "other", func(ctx context.Context, evt *event.Event) error {
		order = append(order, "other")
		return nil
	})

	err := d.Dispatch(context.Background(), event.NewEvent(event.TypeStatusChanged, "validated", nil))

	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "wildcard"}, order)
}

func TestDispatch_JoinsHandlerErrorsAndRecoversPanics(t *testing.T) {
	d := newTestDispatcher()
	boom := errors.New("boom")
	var ran atomic.Int32

	d.Subscribe(event.TypeRecordUpdated, "fails", func(ctx context.Context, evt *event.Event) error {
		ran.Add(1)
		return boom
	})
	d.Subscribe(event.TypeRecordUpdated, "panics", func(ctx context.Context, evt *event.Event) error {
		ran.Add(1)
		panic("unexpected")
	})
	d.Subscribe(event.TypeRecordUpdated, "ok", func(ctx context.Context, evt *event.Event) error {
		ran.Add(1)
		return nil
	})

	err := d.Dispatch(context.Background(), event.NewEvent(event.TypeRecordUpdated, "draft", nil))

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "handler panic")
	assert.Equal(t, int32(3), ran.Load(), "a failing handler does not stop the others")
}

func TestSubscribe_AutoNameAndUnsubscribe(t *testing.T) {
	d := newTestDispatcher()
	noop := func(ctx context.Context, evt *event.Event) error { return nil }

	d.Subscribe(event.TypeRecordCreated, "", noop)
	d.Subscribe(event.TypeRecordCreated, "named", noop)

	handlers := d.ListHandlers(event.TypeRecordCreated)
	require.Len(t, handlers, 2)
	assert.Equal(t, "handler-0", handlers[0].Name)
	assert.Nil(t, handlers[0].Handler)

	d.Unsubscribe(event.TypeRecordCreated, "named")
	assert.Len(t, d.ListHandlers(event.TypeRecordCreated), 1)
}

func TestDispatchAsync_CloseWaitsForHandlers(t *testing.T) {
	d := newTestDispatcher()
	var mu sync.Mutex
	received := 0

	for i := 0; i < 5; i++ {
		d.Subscribe(event.TypeDocumentGenerated, "", func(ctx context.Context, evt *event.Event) error {
			mu.Lock()
			defer mu.Unlock()
			received++
			return nil
		})
	}

	d.DispatchAsync(context.Background(), event.NewEvent(event.TypeDocumentGenerated, "approved", nil))
	require.NoError(t, d.Close())

	mu.Lock()
	assert.Equal(t, 5, received)
	mu.Unlock()
}

func TestClose(t *testing.T) {
	d := newTestDispatcher()

	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.Close(), ErrClosed)
	assert.ErrorIs(t, d.Dispatch(context.Background(), event.NewEvent(event.TypeRecordUpdated, "draft", nil)), ErrClosed)

	// Async dispatch after close is dropped silently
	d.DispatchAsync(context.Background(), event.NewEvent(event.TypeRecordUpdated, "draft", nil))
}
