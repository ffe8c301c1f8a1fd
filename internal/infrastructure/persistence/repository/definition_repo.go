package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/sales-crm/internal/application/port"
	"github.com/garyjia/sales-crm/internal/domain/entity"
	"github.com/garyjia/sales-crm/internal/infrastructure/persistence/sqlite"
)

// DefinitionRepository implements port.DefinitionRepository
type DefinitionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDefinitionRepository creates a new definition repository
func NewDefinitionRepository(db *sql.DB, logger *zap.Logger) *DefinitionRepository {
	return &DefinitionRepository{
		db:     db,
		logger: logger,
	}
}

const definitionColumns = `id, tenant_id, code, name, record_type, is_active, created_at, updated_at`

const stepColumns = `id, definition_id, code, name, kind, assignee, actions, next_steps, sort_order, is_active`

// GetByID retrieves a definition with its active steps
func (r *DefinitionRepository) GetByID(ctx context.Context, tenantID, id string) (*entity.WorkflowDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM workflow_definitions WHERE tenant_id = ? AND id = ?`
	return r.getOne(ctx, query, tenantID, id)
}

// GetByRecordType retrieves the active definition governing a record type
func (r *DefinitionRepository) GetByRecordType(ctx context.Context, tenantID, recordType string) (*entity.WorkflowDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM workflow_definitions
		WHERE tenant_id = ? AND record_type = ? AND is_active = 1
		ORDER BY updated_at DESC
		LIMIT 1`
	return r.getOne(ctx, query, tenantID, recordType)
}

// GetByCode retrieves a definition by its business code
func (r *DefinitionRepository) GetByCode(ctx context.Context, tenantID, code string) (*entity.WorkflowDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM workflow_definitions WHERE tenant_id = ? AND code = ?`
	return r.getOne(ctx, query, tenantID, code)
}

// GetStep retrieves an active step by ID
func (r *DefinitionRepository) GetStep(ctx context.Context, stepID string) (*entity.WorkflowStep, error) {
	query := `SELECT ` + stepColumns + ` FROM workflow_steps WHERE id = ? AND is_active = 1`
	step, err := scanStep(r.getExecutor(ctx).QueryRowContext(ctx, query, stepID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get step", zap.String("step_id", stepID), zap.Error(err))
		return nil, fmt.Errorf("failed to get step: %w", err)
	}
	return step, nil
}

// GetStepByCode retrieves an active step of a definition by its code
func (r *DefinitionRepository) GetStepByCode(ctx context.Context, definitionID, code string) (*entity.WorkflowStep, error) {
	query := `SELECT ` + stepColumns + ` FROM workflow_steps WHERE definition_id = ? AND code = ? AND is_active = 1`
	step, err := scanStep(r.getExecutor(ctx).QueryRowContext(ctx, query, definitionID, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get step by code",
			zap.String("definition_id", definitionID),
			zap.String("code", code),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get step: %w", err)
	}
	return step, nil
}

// Save upserts a definition keyed by (tenant, code) and replaces its steps.
// Steps whose code disappears are deactivated rather than deleted so that
// instances still pointing at them surface ErrStepNotFound.
func (r *DefinitionRepository) Save(ctx context.Context, def *entity.WorkflowDefinition) error {
	exec := r.getExecutor(ctx)

	var existingID string
	err := exec.QueryRowContext(ctx,
		`SELECT id FROM workflow_definitions WHERE tenant_id = ? AND code = ?`,
		def.TenantID, def.Code,
	).Scan(&existingID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("failed to look up definition: %w", err)
	default:
		def.ID = existingID
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO workflow_definitions (`+definitionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			record_type = excluded.record_type,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		def.ID, def.TenantID, def.Code, def.Name, def.RecordType, def.IsActive, def.CreatedAt, def.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to save definition", zap.String("code", def.Code), zap.Error(err))
		return fmt.Errorf("failed to save definition: %w", err)
	}

	if _, err := exec.ExecContext(ctx, `UPDATE workflow_steps SET is_active = 0 WHERE definition_id = ?`, def.ID); err != nil {
		return fmt.Errorf("failed to deactivate steps: %w", err)
	}

	for i := range def.Steps {
		step := &def.Steps[i]
		step.DefinitionID = def.ID
		if err := r.saveStep(ctx, exec, step); err != nil {
			r.logger.Error("Failed to save step",
				zap.String("definition", def.Code),
				zap.String("step", step.Code),
				zap.Error(err))
			return fmt.Errorf("failed to save step %s: %w", step.Code, err)
		}
	}

	return nil
}

func (r *DefinitionRepository) saveStep(ctx context.Context, exec sqlite.Executor, step *entity.WorkflowStep) error {
	assignee, err := json.Marshal(step.Assignee)
	if err != nil {
		return err
	}
	actions, err := json.Marshal(step.Actions)
	if err != nil {
		return err
	}
	nextSteps, err := json.Marshal(step.NextSteps)
	if err != nil {
		return err
	}

	// Keep the stored ID of a step whose code already exists so instances stay valid
	var existingID string
	err = exec.QueryRowContext(ctx,
		`SELECT id FROM workflow_steps WHERE definition_id = ? AND code = ?`,
		step.DefinitionID, step.Code,
	).Scan(&existingID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return err
	default:
		step.ID = existingID
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO workflow_steps (`+stepColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			assignee = excluded.assignee,
			actions = excluded.actions,
			next_steps = excluded.next_steps,
			sort_order = excluded.sort_order,
			is_active = excluded.is_active`,
		step.ID, step.DefinitionID, step.Code, step.Name, step.Kind,
		string(assignee), string(actions), string(nextSteps), step.SortOrder, step.IsActive,
	)
	return err
}

func (r *DefinitionRepository) getOne(ctx context.Context, query string, args ...interface{}) (*entity.WorkflowDefinition, error) {
	var def entity.WorkflowDefinition
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, args...).Scan(
		&def.ID,
		&def.TenantID,
		&def.Code,
		&def.Name,
		&def.RecordType,
		&def.IsActive,
		&def.CreatedAt,
		&def.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get definition", zap.Any("args", args), zap.Error(err))
		return nil, fmt.Errorf("failed to get definition: %w", err)
	}

	steps, err := r.listActiveSteps(ctx, def.ID)
	if err != nil {
		return nil, err
	}
	def.Steps = steps
	return &def, nil
}

func (r *DefinitionRepository) listActiveSteps(ctx context.Context, definitionID string) ([]entity.WorkflowStep, error) {
	query := `SELECT ` + stepColumns + ` FROM workflow_steps
		WHERE definition_id = ? AND is_active = 1
		ORDER BY sort_order ASC`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, definitionID)
	if err != nil {
		r.logger.Error("Failed to list steps", zap.String("definition_id", definitionID), zap.Error(err))
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	var steps []entity.WorkflowStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		steps = append(steps, *step)
	}
	return steps, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStep(row rowScanner) (*entity.WorkflowStep, error) {
	var (
		step                         entity.WorkflowStep
		assignee, actions, nextSteps string
	)
	if err := row.Scan(
		&step.ID,
		&step.DefinitionID,
		&step.Code,
		&step.Name,
		&step.Kind,
		&assignee,
		&actions,
		&nextSteps,
		&step.SortOrder,
		&step.IsActive,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(assignee), &step.Assignee); err != nil {
		return nil, fmt.Errorf("decode assignee of step %s: %w", step.ID, err)
	}
	if err := json.Unmarshal([]byte(actions), &step.Actions); err != nil {
		return nil, fmt.Errorf("decode actions of step %s: %w", step.ID, err)
	}
	step.NextSteps = make(map[entity.Action]string)
	if err := json.Unmarshal([]byte(nextSteps), &step.NextSteps); err != nil {
		return nil, fmt.Errorf("decode next steps of step %s: %w", step.ID, err)
	}
	return &step, nil
}

func (r *DefinitionRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

var _ port.DefinitionRepository = (*DefinitionRepository)(nil)
