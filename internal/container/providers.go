package container

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/garyjia/sales-crm/internal/application/port"
	"github.com/garyjia/sales-crm/internal/application/statussync"
	"github.com/garyjia/sales-crm/internal/application/workflow"
	"github.com/garyjia/sales-crm/internal/domain/entity"
	"github.com/garyjia/sales-crm/internal/infrastructure/catalog"
	"github.com/garyjia/sales-crm/internal/infrastructure/export"
	"github.com/garyjia/sales-crm/internal/infrastructure/metrics"
	"github.com/garyjia/sales-crm/internal/infrastructure/persistence/repository"
	"github.com/garyjia/sales-crm/internal/infrastructure/persistence/sqlite"
	httpapi "github.com/garyjia/sales-crm/internal/interfaces/http"
	"github.com/garyjia/sales-crm/migrations"
	"github.com/garyjia/sales-crm/pkg/database"

	_ "github.com/mattn/go-sqlite3"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Conn           *database.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the SQLite store and applies pending migrations.
// Migrations come from cfg.MigrationsDir when set, otherwise from the binary.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(conn, logger)
	if cfg.MigrationsDir != "" {
		err = migrator.RunMigrations(cfg.MigrationsDir)
	} else {
		err = migrator.RunMigrationsFS(migrations.FS)
	}
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Conn:           conn,
		TransactionMgr: sqlite.NewDB(conn.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Definition: repository.NewDefinitionRepository(sqlDB, logger),
		Instance:   repository.NewInstanceRepository(sqlDB, logger),
		History:    repository.NewHistoryRepository(sqlDB, logger),
	}, nil
}

// ProvideMetrics creates the Prometheus recorder on a private registry.
// It returns nil when metrics are disabled.
func ProvideMetrics(cfg *MetricsConfig) *metrics.Recorder {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return metrics.NewRecorder(registry)
}

// WorkflowDeps holds dependencies for creating the workflow engine.
type WorkflowDeps struct {
	Repos     *RepositoryBundle
	TxManager port.TransactionManager
	Recorder  *metrics.Recorder
	Config    *WorkflowConfig
	Logger    *zap.Logger
}

// ProvideWorkflowEngine creates the workflow engine.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.WorkflowEngine, error) {
	if deps == nil || deps.Repos == nil || deps.TxManager == nil || deps.Config == nil {
		return nil, fmt.Errorf("workflow dependencies are incomplete")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	opts := []workflow.EngineOption{
		workflow.WithLogger(&zapLoggerAdapter{logger: deps.Logger.Named("workflow")}),
		workflow.WithConcurrentInstances(deps.Config.AllowConcurrentInstances),
	}
	if deps.Recorder != nil {
		opts = append(opts, workflow.WithRecorder(deps.Recorder))
	}

	return workflow.NewEngine(
		deps.Repos.Definition,
		deps.Repos.Instance,
		deps.Repos.History,
		deps.TxManager,
		opts...,
	), nil
}

// ProvideCatalog loads the workflow definitions named by cfg.CatalogPath.
// It returns no definitions when no catalog is configured.
func ProvideCatalog(cfg *WorkflowConfig) ([]*entity.WorkflowDefinition, error) {
	if cfg == nil || cfg.CatalogPath == "" {
		return nil, nil
	}
	defs, err := catalog.Load(cfg.CatalogPath, cfg.DefaultTenant)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow catalog: %w", err)
	}
	return defs, nil
}

// ProvideStatusSync creates the status-sync registry and registers a
// logging hook for every record type the catalog governs.
func ProvideStatusSync(defs []*entity.WorkflowDefinition, logger *zap.Logger) statussync.Registry {
	adapter := &zapLoggerAdapter{logger: logger.Named("statussync")}
	registry := statussync.NewRegistry(statussync.WithLogger(adapter))

	for _, def := range defs {
		registry.Register(def.RecordType, "log", statussync.LogHook(adapter))
	}
	return registry
}

// ServerDeps holds dependencies for creating the HTTP server.
type ServerDeps struct {
	Config     *ServerConfig
	Metrics    *MetricsConfig
	Engine     workflow.WorkflowEngine
	Repos      *RepositoryBundle
	StatusSync statussync.Registry
	Exporter   *export.HistoryExporter
	Recorder   *metrics.Recorder
	Health     func(ctx context.Context) error
	Logger     *zap.Logger
}

// ProvideHTTPServer creates the HTTP adapter over the engine.
func ProvideHTTPServer(deps *ServerDeps) (*httpapi.Server, error) {
	if deps == nil || deps.Config == nil || deps.Engine == nil || deps.Repos == nil {
		return nil, fmt.Errorf("server dependencies are incomplete")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serverCfg := httpapi.ServerConfig{
		Host:         deps.Config.Host,
		Port:         deps.Config.Port,
		ReadTimeout:  deps.Config.ReadTimeout,
		WriteTimeout: deps.Config.WriteTimeout,
	}
	if deps.Metrics != nil {
		serverCfg.MetricsPath = deps.Metrics.Path
	}

	httpDeps := httpapi.Dependencies{
		Engine:      deps.Engine,
		Definitions: deps.Repos.Definition,
		StatusSync:  deps.StatusSync,
		Exporter:    deps.Exporter,
		Health:      deps.Health,
		Logger:      &zapLoggerAdapter{logger: deps.Logger.Named("http")},
	}
	// a typed nil would mount the metrics route
	if deps.Recorder != nil {
		httpDeps.Metrics = deps.Recorder
	}

	return httpapi.NewServer(serverCfg, httpDeps), nil
}
