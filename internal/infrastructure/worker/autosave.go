package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultAutosaveInterval is how often a draft record is re-persisted
const DefaultAutosaveInterval = 30 * time.Second

// Autosaver persists the current record if it is still a draft and reports
// whether it wrote anything
type Autosaver interface {
	Autosave(ctx context.Context) (bool, error)
}

// AutosaveWorker re-persists the draft record on a fixed interval so that
// unsaved edits survive process loss
type AutosaveWorker struct {
	store    Autosaver
	interval time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}

	saves atomic.Int64
}

// NewAutosaveWorker creates an autosave worker. A non-positive interval uses
// DefaultAutosaveInterval.
func NewAutosaveWorker(store Autosaver, interval time.Duration, logger *zap.Logger) *AutosaveWorker {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	return &AutosaveWorker{
		store:    store,
		interval: interval,
		logger:   logger,
	}
}

// Start launches the autosave loop
func (w *AutosaveWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return fmt.Errorf("autosave worker is already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("AutosaveWorker started", zap.Duration("interval", w.interval))

	go w.loop(loopCtx, w.done)
	return nil
}

// Stop cancels the loop and waits for it to exit. No write happens after
// Stop returns.
func (w *AutosaveWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.logger.Info("AutosaveWorker stopped", zap.Int64("saves", w.saves.Load()))
	return nil
}

// Name returns the worker name for identification
func (w *AutosaveWorker) Name() string {
	return "AutosaveWorker"
}

// Saves returns how many ticks resulted in a write
func (w *AutosaveWorker) Saves() int64 {
	return w.saves.Load()
}

func (w *AutosaveWorker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Autosave loop context cancelled")
			return

		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *AutosaveWorker) tick(ctx context.Context) {
	saved, err := w.store.Autosave(ctx)
	if err != nil {
		w.logger.Error("Autosave failed", zap.Error(err))
		return
	}
	if saved {
		w.saves.Add(1)
		w.logger.Debug("Draft record autosaved")
	}
}
