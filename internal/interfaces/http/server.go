// Package http provides HTTP server adapter for the workflow engine.
// This is a thin adapter layer that translates HTTP requests to engine calls.
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/sales-crm/internal/application/statussync"
	"github.com/garyjia/sales-crm/internal/application/workflow"
	"github.com/garyjia/sales-crm/internal/domain/entity"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// DefinitionReader is the read side of the definition store
type DefinitionReader interface {
	GetByID(ctx context.Context, tenantID, id string) (*entity.WorkflowDefinition, error)
	GetByRecordType(ctx context.Context, tenantID, recordType string) (*entity.WorkflowDefinition, error)
	GetByCode(ctx context.Context, tenantID, code string) (*entity.WorkflowDefinition, error)
}

// HistoryWriter renders an audit trail as a downloadable document
type HistoryWriter interface {
	Write(w io.Writer, instance *entity.WorkflowInstance, history []*entity.ApprovalHistory) error
}

// RequestObserver receives per-request measurements
type RequestObserver interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
	Handler() http.Handler
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MetricsPath  string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		MetricsPath:  "/metrics",
	}
}

// Dependencies are the collaborators the handlers call into
type Dependencies struct {
	Engine      workflow.WorkflowEngine
	Definitions DefinitionReader
	StatusSync  statussync.Registry
	Exporter    HistoryWriter
	// Metrics is optional; when nil no /metrics route is mounted
	Metrics RequestObserver
	// Health is optional and reports storage reachability
	Health func(ctx context.Context) error
	Logger Logger
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	deps       Dependencies
	logger     Logger
}

// NewServer creates a new HTTP server
func NewServer(config ServerConfig, deps Dependencies) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	server := &Server{
		config: config,
		router: router,
		deps:   deps,
		logger: deps.Logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	if s.deps.Metrics != nil {
		s.router.Use(s.metricsMiddleware())
	}
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
			"tenant_id", c.GetHeader(HeaderTenantID),
		)
	}
}

func (s *Server) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.deps.Metrics.ObserveRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.deps)

	s.router.GET("/health", handlers.HealthCheck)
	if s.deps.Metrics != nil {
		path := s.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.router.GET(path, gin.WrapH(s.deps.Metrics.Handler()))
	}

	api := s.router.Group("/api", tenantMiddleware())
	{
		// Definitions
		api.GET("/definitions", handlers.FindDefinition)
		api.GET("/definitions/:id", handlers.GetDefinition)

		// Instances
		api.POST("/instances", handlers.StartInstance)
		api.GET("/instances", handlers.ListInstances)
		api.GET("/instances/:id", handlers.GetInstance)
		api.GET("/instances/:id/current-step", handlers.GetCurrentStep)
		api.GET("/instances/:id/history", handlers.GetHistory)
		api.GET("/instances/:id/history.xlsx", handlers.ExportHistory)
		api.GET("/instances/:id/permissions", handlers.GetPermissions)
		api.GET("/instances/:id/steps/:stepId/parallel", handlers.GetParallelStatus)
		api.POST("/instances/:id/actions", handlers.ExecuteAction)

		// Business records
		api.GET("/records/:table/:id/instance", handlers.GetRecordInstance)
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}
	s.httpServer = nil

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
