package port

import (
	"context"

	"github.com/garyjia/sales-crm/internal/domain/entity"
)

// DefinitionRepository reads externally authored workflow definitions.
// Lookups return nil, nil when nothing matches.
type DefinitionRepository interface {
	// GetByID returns the definition with its active steps ordered by sort order
	GetByID(ctx context.Context, tenantID, id string) (*entity.WorkflowDefinition, error)

	// GetByRecordType returns the active definition governing a record type
	GetByRecordType(ctx context.Context, tenantID, recordType string) (*entity.WorkflowDefinition, error)

	// GetByCode returns the definition with the given business code
	GetByCode(ctx context.Context, tenantID, code string) (*entity.WorkflowDefinition, error)

	// GetStep returns an active step by ID
	GetStep(ctx context.Context, stepID string) (*entity.WorkflowStep, error)

	// GetStepByCode returns an active step of a definition by its code
	GetStepByCode(ctx context.Context, definitionID, code string) (*entity.WorkflowStep, error)

	// Save inserts or replaces a definition and its steps. Only used by catalog seeding.
	Save(ctx context.Context, def *entity.WorkflowDefinition) error
}

// InstanceFilter narrows instance listings
type InstanceFilter struct {
	Status      entity.Status
	RecordTable string
	Limit       int
	Offset      int
}

// InstanceRepository persists workflow instances
type InstanceRepository interface {
	Create(ctx context.Context, instance *entity.WorkflowInstance) error
	GetByID(ctx context.Context, tenantID, id string) (*entity.WorkflowInstance, error)

	// GetLatestByRecord returns the most recently started instance for a record
	GetLatestByRecord(ctx context.Context, tenantID, recordID, recordTable string) (*entity.WorkflowInstance, error)

	// ExistsInProgress reports whether a record has an in-progress instance
	ExistsInProgress(ctx context.Context, tenantID, recordID, recordTable string) (bool, error)

	// UpdateState writes current step, status and completion time if the stored
	// version still equals instance.Version, then increments the version.
	// Returns false when the version check fails.
	UpdateState(ctx context.Context, instance *entity.WorkflowInstance) (bool, error)

	List(ctx context.Context, tenantID string, filter InstanceFilter) ([]*entity.WorkflowInstance, error)
}

// HistoryRepository is the append-only audit log
type HistoryRepository interface {
	// Append stores a new entry, assigning its sequence and an ID when empty
	Append(ctx context.Context, entry *entity.ApprovalHistory) error

	// GetByInstanceID returns entries in sequence order
	GetByInstanceID(ctx context.Context, tenantID, instanceID string) ([]*entity.ApprovalHistory, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
