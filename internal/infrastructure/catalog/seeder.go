package catalog

import (
	"context"
	"fmt"

	"github.com/garyjia/sales-crm/internal/application/port"
	"github.com/garyjia/sales-crm/internal/domain/entity"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Seeder writes catalog definitions to the definition store
type Seeder struct {
	definitions port.DefinitionRepository
	txManager   port.TransactionManager
	logger      Logger
}

// NewSeeder creates a seeder
func NewSeeder(definitions port.DefinitionRepository, txManager port.TransactionManager, logger Logger) *Seeder {
	return &Seeder{
		definitions: definitions,
		txManager:   txManager,
		logger:      logger,
	}
}

// Seed upserts all definitions in a single transaction
func (s *Seeder) Seed(ctx context.Context, definitions []*entity.WorkflowDefinition) error {
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, def := range definitions {
			if err := s.definitions.Save(txCtx, def); err != nil {
				return fmt.Errorf("seed %s/%s: %w", def.TenantID, def.Code, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to seed workflow definitions", "error", err)
		return err
	}

	for _, def := range definitions {
		s.logger.Info("Workflow definition seeded",
			"tenant_id", def.TenantID,
			"code", def.Code,
			"record_type", def.RecordType,
			"steps", len(def.Steps),
		)
	}
	return nil
}

// SeedFile loads a catalog file or directory and seeds it
func (s *Seeder) SeedFile(ctx context.Context, path, defaultTenant string) ([]*entity.WorkflowDefinition, error) {
	definitions, err := Load(path, defaultTenant)
	if err != nil {
		return nil, err
	}
	if err := s.Seed(ctx, definitions); err != nil {
		return nil, err
	}
	return definitions, nil
}
