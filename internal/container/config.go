// Package container provides dependency injection and lifecycle management
// for the sales CRM workflow service.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Server configuration
	Server ServerConfig

	// Workflow engine and catalog configuration
	Workflow WorkflowConfig

	Export  ExportConfig
	Metrics MetricsConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// MigrationsDir is the path to migration files. Empty uses the
	// migrations embedded in the binary.
	MigrationsDir string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host to bind to
	Host string

	// Port to listen on
	Port int

	// ReadTimeout for HTTP server
	ReadTimeout time.Duration

	// WriteTimeout for HTTP server
	WriteTimeout time.Duration
}

// WorkflowConfig holds workflow engine settings.
type WorkflowConfig struct {
	// AllowConcurrentInstances lets a record run more than one in-progress instance
	AllowConcurrentInstances bool

	// CatalogPath is a YAML file or directory of workflow definitions
	CatalogPath string

	// DefaultTenant owns catalog definitions that do not name a tenant
	DefaultTenant string

	// SeedOnStart upserts the catalog into the store during Start
	SeedOnStart bool
}

// ExportConfig holds approval history export settings.
type ExportConfig struct {
	SheetName string
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/sales_crm.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Workflow: WorkflowConfig{
			AllowConcurrentInstances: true,
			CatalogPath:              "configs/workflows",
			DefaultTenant:            "default",
			SeedOnStart:              true,
		},
		Export: ExportConfig{
			SheetName: "Approval History",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Workflow.DefaultTenant == "" {
		return fmt.Errorf("workflow.default_tenant is required")
	}

	if c.Workflow.SeedOnStart && c.Workflow.CatalogPath == "" {
		return fmt.Errorf("workflow.catalog_path is required when seeding on start")
	}

	return nil
}
