package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/garyjia/visaflow/internal/application/dispatcher"
	"github.com/garyjia/visaflow/internal/application/port"
	"github.com/garyjia/visaflow/internal/application/service"
	"github.com/garyjia/visaflow/internal/application/store"
	"github.com/garyjia/visaflow/internal/application/workflow"
	"github.com/garyjia/visaflow/internal/config"
	"github.com/garyjia/visaflow/internal/infrastructure/metrics"
	"github.com/garyjia/visaflow/internal/infrastructure/worker"
)

// flushTimeout bounds the final write on Close
const flushTimeout = 5 * time.Second

// Container manages all application dependencies and lifecycle.
// Components start in dependency order and are torn down in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger
	clock  func() time.Time

	// Infrastructure
	backend  port.RecordBackend
	storage  *StorageBundle
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	// Application
	dispatcher dispatcher.Dispatcher
	app        *ApplicationBundle

	// Workers
	workers *worker.WorkerManager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

type healthChecker interface {
	Health(ctx context.Context) error
}

// Option configures the container
type Option func(*Container)

// WithBackend supplies a record backend instead of opening the configured one
func WithBackend(backend port.RecordBackend) Option {
	return func(c *Container) {
		c.backend = backend
	}
}

// WithClock overrides the time source of every component
func WithClock(now func() time.Time) Option {
	return func(c *Container) {
		c.clock = now
	}
}

// NewContainer creates a new container from configuration.
// It does not initialize components; call Start to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Container{
		config: cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start initializes all components:
// 1. Record backend
// 2. Summary storage
// 3. Dispatcher and metrics
// 4. Store, workflow, validator and service
// 5. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	// Step 1: Record backend
	if c.backend == nil {
		backend, err := ProvideBackend(c.ctx, c.config, c.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize backend: %w", err)
		}
		c.backend = backend
	}

	// Step 2: Summary storage
	storageBundle, err := ProvideStorage(&c.config.Documents, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.storage = storageBundle

	// Step 3: Dispatcher and metrics
	c.dispatcher = ProvideDispatcher(c.logger)
	c.registry = prometheus.NewRegistry()
	c.metrics = ProvideMetrics(c.registry, c.dispatcher)

	// Step 4: Application
	app, err := ProvideApplication(c.ctx, &ApplicationDeps{
		Config:     c.config,
		Backend:    c.backend,
		Dispatcher: c.dispatcher,
		Metrics:    c.metrics,
		Storage:    c.storage,
		Clock:      c.clock,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	c.app = app

	// Step 5: Workers
	c.workers = ProvideWorkers(&c.config.Autosave, c.app.Store, c.logger)
	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close stops the workers, flushes the record and shuts down in reverse order
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	var errs []error

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}

	// Final flush so the record survives even with autosave disabled
	if c.app != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		if err := c.app.Store.Persist(flushCtx); err != nil {
			errs = append(errs, fmt.Errorf("flush record: %w", err))
		}
		cancel()
	}

	if c.cancel != nil {
		c.cancel()
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if c.backend != nil {
		if err := c.backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close backend: %w", err))
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		err := errors.Join(errs...)
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)), zap.Error(err))
		return err
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, h ComponentHealth) {
		status.Components[name] = h
		if !h.Healthy {
			status.Overall = false
		}
	}

	switch b := c.backend.(type) {
	case nil:
		set("backend", ComponentHealth{Message: "not initialized"})
	case healthChecker:
		if err := b.Health(ctx); err != nil {
			set("backend", ComponentHealth{Message: fmt.Sprintf("health check failed: %v", err)})
		} else {
			set("backend", ComponentHealth{Healthy: true})
		}
	default:
		set("backend", ComponentHealth{Healthy: true})
	}

	if c.workers != nil {
		set("workers", ComponentHealth{
			Healthy: c.workers.IsRunning(),
			Message: fmt.Sprintf("worker count: %d", c.workers.GetWorkerCount()),
		})
	} else {
		set("workers", ComponentHealth{Message: "not initialized"})
	}

	if c.dispatcher != nil {
		set("dispatcher", ComponentHealth{Healthy: true})
	} else {
		set("dispatcher", ComponentHealth{Message: "not initialized"})
	}

	return status
}

// Service returns the application service
func (c *Container) Service() service.ApplicationService {
	if c.app == nil {
		return nil
	}
	return c.app.Service
}

// Store returns the record store
func (c *Container) Store() *store.Store {
	if c.app == nil {
		return nil
	}
	return c.app.Store
}

// Workflow returns the workflow engine
func (c *Container) Workflow() *workflow.Engine {
	if c.app == nil {
		return nil
	}
	return c.app.Workflow
}

// Dispatcher returns the event dispatcher
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Registry returns the prometheus registry holding the lifecycle metrics
func (c *Container) Registry() *prometheus.Registry {
	return c.registry
}

// Workers returns the worker manager
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Logger returns the container's logger
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration
func (c *Container) Config() *config.Config {
	return c.config
}
