// Package container wires the application record, its backend and the
// supporting infrastructure, and manages their lifecycle.
package container

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/garyjia/visaflow/internal/application/checklist"
	"github.com/garyjia/visaflow/internal/application/dispatcher"
	"github.com/garyjia/visaflow/internal/application/port"
	"github.com/garyjia/visaflow/internal/application/service"
	"github.com/garyjia/visaflow/internal/application/store"
	"github.com/garyjia/visaflow/internal/application/validation"
	"github.com/garyjia/visaflow/internal/application/workflow"
	"github.com/garyjia/visaflow/internal/config"
	"github.com/garyjia/visaflow/internal/infrastructure/metrics"
	"github.com/garyjia/visaflow/internal/infrastructure/persistence/memory"
	"github.com/garyjia/visaflow/internal/infrastructure/persistence/redis"
	"github.com/garyjia/visaflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/visaflow/internal/infrastructure/storage"
	"github.com/garyjia/visaflow/internal/infrastructure/summary"
	"github.com/garyjia/visaflow/internal/infrastructure/worker"
	"github.com/garyjia/visaflow/pkg/database"
)

// StorageBundle holds the summary output components
type StorageBundle struct {
	FileStorage port.FileStorage
	Renderer    port.SummaryRenderer
}

// ApplicationBundle holds the record and the components driving it
type ApplicationBundle struct {
	Store     *store.Store
	Workflow  *workflow.Engine
	Validator *validation.Engine
	Service   service.ApplicationService
}

// ApplicationDeps are the inputs of ProvideApplication
type ApplicationDeps struct {
	Config     *config.Config
	Backend    port.RecordBackend
	Dispatcher dispatcher.Dispatcher
	Metrics    *metrics.Metrics
	Storage    *StorageBundle
	Clock      func() time.Time
	Logger     *zap.Logger
}

// ProvideBackend opens the record backend named by cfg.Storage.Backend
func ProvideBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (port.RecordBackend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		repo, err := sqlite.Open(ctx, database.Config{
			Path:            cfg.Database.Path,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		}, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Using sqlite record backend", zap.String("path", cfg.Database.Path))
		return repo, nil

	case config.BackendRedis:
		rs, err := redis.Open(ctx, redis.Config{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			KeyPrefix:   cfg.Redis.KeyPrefix,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("Using redis record backend", zap.String("addr", cfg.Redis.Addr))
		return rs, nil

	case config.BackendMemory:
		logger.Info("Using in-memory record backend")
		return memory.NewRecordStore(), nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// ProvideStorage creates the summary file storage and renderer
func ProvideStorage(cfg *config.DocumentsConfig, logger *zap.Logger) (*StorageBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("documents config is required")
	}
	return &StorageBundle{
		FileStorage: storage.NewLocalFileStorage(cfg.OutputDir, logger),
		Renderer:    summary.NewWorkbookRenderer(logger),
	}, nil
}

// ProvideDispatcher creates the event dispatcher
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	return dispatcher.NewDispatcher(dispatcher.WithLogger(logger.Sugar()))
}

// ProvideMetrics registers the lifecycle metrics with reg and subscribes
// them to d
func ProvideMetrics(reg prometheus.Registerer, d dispatcher.Dispatcher) *metrics.Metrics {
	m := metrics.New(reg)
	m.Subscribe(d)
	return m
}

// ProvideApplication builds the store, loads the persisted record and wires
// the workflow, validator and service around it
func ProvideApplication(ctx context.Context, deps *ApplicationDeps) (*ApplicationBundle, error) {
	if deps == nil || deps.Config == nil || deps.Backend == nil {
		return nil, fmt.Errorf("config and backend are required")
	}
	cfg := deps.Config
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	st := store.New(deps.Backend,
		store.WithKey(cfg.Storage.Key),
		store.WithLogger(deps.Logger),
		store.WithClock(clock),
		store.WithTransitionPolicy(workflow.GuardedTransition),
		store.WithDispatcher(deps.Dispatcher),
	)
	rec := st.Load(ctx)
	deps.Logger.Info("Application record loaded",
		zap.String("key", st.Key()),
		zap.String("status", rec.Status.String()))

	engine := workflow.NewEngine(st,
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithLogger(deps.Logger),
		workflow.WithClock(clock),
	)
	validator := validation.NewEngine(validation.WithClock(clock))

	svcDeps := service.Dependencies{
		Store:      st,
		Workflow:   engine,
		Validator:  validator,
		Uploads:    checklist.NewValidator(cfg.Documents.MaxUploadBytes),
		Dispatcher: deps.Dispatcher,
		Logger:     deps.Logger,
	}
	if deps.Metrics != nil {
		svcDeps.Metrics = deps.Metrics
	}
	if deps.Storage != nil {
		svcDeps.Storage = deps.Storage.FileStorage
		svcDeps.Renderer = deps.Storage.Renderer
	}

	svc := service.NewApplicationService(svcDeps,
		service.WithDelays(service.Delays{
			Submission: cfg.Simulation.SubmissionDelay,
			Validation: cfg.Simulation.ValidationDelay,
			Approval:   cfg.Simulation.ApprovalDelay,
			Generation: cfg.Simulation.GenerationDelay,
		}),
		service.WithClock(clock),
		service.WithVisaType(cfg.Application.VisaType),
		service.WithDefaultCountry(cfg.Application.DefaultCountry),
	)

	return &ApplicationBundle{
		Store:     st,
		Workflow:  engine,
		Validator: validator,
		Service:   svc,
	}, nil
}

// ProvideWorkers registers the background workers. Autosave is skipped when
// its interval is zero.
func ProvideWorkers(cfg *config.AutosaveConfig, st *store.Store, logger *zap.Logger) *worker.WorkerManager {
	manager := worker.NewWorkerManager(logger)
	if cfg != nil && cfg.Interval > 0 {
		manager.Register(worker.NewAutosaveWorker(st, cfg.Interval, logger))
	}
	return manager
}
