package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/sales-crm/internal/application/port"
	"github.com/garyjia/sales-crm/internal/application/statussync"
	"github.com/garyjia/sales-crm/internal/application/workflow"
	"github.com/garyjia/sales-crm/internal/domain/entity"
	"github.com/garyjia/sales-crm/internal/infrastructure/catalog"
	"github.com/garyjia/sales-crm/internal/infrastructure/export"
	"github.com/garyjia/sales-crm/internal/infrastructure/metrics"
	"github.com/garyjia/sales-crm/internal/infrastructure/persistence/sqlite"
	httpapi "github.com/garyjia/sales-crm/internal/interfaces/http"
	"github.com/garyjia/sales-crm/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	conn         *database.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	// Infrastructure - Catalog and observability
	definitions []*entity.WorkflowDefinition
	seeder      *catalog.Seeder
	recorder    *metrics.Recorder
	exporter    *export.HistoryExporter

	// Application
	workflow   workflow.WorkflowEngine
	statusSync statussync.Registry

	// Interfaces
	server *httpapi.Server

	// Lifecycle
	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Definition port.DefinitionRepository
	Instance   port.InstanceRepository
	History    port.HistoryRepository
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components.
// Components are initialized in dependency order:
// 1. Database, migrations and repositories
// 2. Workflow catalog (seeded when configured)
// 3. Metrics, workflow engine and status sync
// 4. HTTP server (not listening until Server().Start)
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	// Step 1: Initialize database and repositories
	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	// Step 2: Load and seed the workflow catalog
	if err := c.initCatalog(ctx); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize catalog: %w", err)
	}
	c.logger.Info("Workflow catalog loaded", zap.Int("definitions", len(c.definitions)))

	// Step 3: Initialize workflow engine and status sync
	if err := c.initWorkflow(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize workflow engine: %w", err)
	}
	c.logger.Info("Workflow engine initialized")

	// Step 4: Initialize HTTP server
	if err := c.initServer(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	// Step 1: Stop HTTP server (reverse of step 4)
	if c.server != nil {
		if err := c.server.Stop(); err != nil {
			c.logger.Error("Failed to stop HTTP server", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop server: %w", err))
		}
	}

	// Steps 2-3 hold no resources

	// Step 4: Close database (reverse of step 1)
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Ping reports whether the store is reachable
func (c *Container) Ping(ctx context.Context) error {
	if c.conn == nil {
		return fmt.Errorf("database not initialized")
	}
	return c.conn.PingContext(ctx)
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	check := func(name string, healthy bool, message string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: message}
		if !healthy {
			status.Overall = false
		}
	}

	if err := c.Ping(ctx); err != nil {
		check("database", false, fmt.Sprintf("ping failed: %v", err))
	} else {
		check("database", true, "")
	}

	if c.workflow != nil {
		check("workflow", true, "")
	} else {
		check("workflow", false, "not initialized")
	}

	check("catalog", true, fmt.Sprintf("definitions: %d", len(c.definitions)))

	return status
}

// Seed loads the catalog at path and upserts it into the store
func (c *Container) Seed(ctx context.Context, path string) ([]*entity.WorkflowDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.seeder == nil {
		return nil, fmt.Errorf("container not started")
	}
	return c.seeder.SeedFile(ctx, path, c.config.Workflow.DefaultTenant)
}

// initDatabase initializes the database and all repositories using providers.
func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.conn = bundle.Conn
	c.db = bundle.TransactionMgr

	repos, err := ProvideRepositories(c.conn.DB, c.logger)
	if err != nil {
		c.closeDatabase()
		return err
	}

	c.repositories = repos
	return nil
}

// initCatalog loads the configured catalog and seeds it when asked to.
func (c *Container) initCatalog(ctx context.Context) error {
	c.seeder = catalog.NewSeeder(c.repositories.Definition, c.db, &zapLoggerAdapter{logger: c.logger.Named("catalog")})

	defs, err := ProvideCatalog(&c.config.Workflow)
	if err != nil {
		return err
	}
	c.definitions = defs

	if c.config.Workflow.SeedOnStart && len(defs) > 0 {
		if err := c.seeder.Seed(ctx, defs); err != nil {
			return err
		}
	}
	return nil
}

// initWorkflow initializes metrics, the engine and the status-sync registry.
func (c *Container) initWorkflow() error {
	c.recorder = ProvideMetrics(&c.config.Metrics)

	engine, err := ProvideWorkflowEngine(&WorkflowDeps{
		Repos:     c.repositories,
		TxManager: c.db,
		Recorder:  c.recorder,
		Config:    &c.config.Workflow,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}
	c.workflow = engine

	c.statusSync = ProvideStatusSync(c.definitions, c.logger)
	c.exporter = export.NewHistoryExporter(c.config.Export.SheetName, c.logger.Named("export"))
	return nil
}

func (c *Container) initServer() error {
	server, err := ProvideHTTPServer(&ServerDeps{
		Config:     &c.config.Server,
		Metrics:    &c.config.Metrics,
		Engine:     c.workflow,
		Repos:      c.repositories,
		StatusSync: c.statusSync,
		Exporter:   c.exporter,
		Recorder:   c.recorder,
		Health:     c.Ping,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.server = server
	return nil
}

func (c *Container) closeDatabase() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil {
		c.logger.Error("Failed to close database", zap.Error(err))
	}
	c.conn = nil
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// WorkflowEngine returns the workflow engine.
func (c *Container) WorkflowEngine() workflow.WorkflowEngine {
	return c.workflow
}

// StatusSync returns the status-sync registry.
func (c *Container) StatusSync() statussync.Registry {
	return c.statusSync
}

// Definitions returns the catalog definitions loaded at start.
func (c *Container) Definitions() []*entity.WorkflowDefinition {
	return c.definitions
}

// Server returns the HTTP server.
func (c *Container) Server() *httpapi.Server {
	return c.server
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the key-value Logger interfaces
// of the workflow, statussync, catalog and http packages.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Info(msg, fields...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Error(msg, fields...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
