package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/sales-crm/internal/application/port"
	"github.com/garyjia/sales-crm/internal/domain/entity"
	"github.com/garyjia/sales-crm/internal/infrastructure/persistence/sqlite"
)

// InstanceRepository implements port.InstanceRepository
type InstanceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInstanceRepository creates a new instance repository
func NewInstanceRepository(db *sql.DB, logger *zap.Logger) *InstanceRepository {
	return &InstanceRepository{
		db:     db,
		logger: logger,
	}
}

const instanceColumns = `id, definition_id, tenant_id, record_id, record_table, current_step_id,
	status, started_by, started_at, completed_at, payload, version, updated_at`

// Create inserts a new workflow instance
func (r *InstanceRepository) Create(ctx context.Context, instance *entity.WorkflowInstance) error {
	query := `INSERT INTO workflow_instances (` + instanceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	payload := string(instance.Payload)
	if payload == "" {
		payload = "{}"
	}

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		instance.ID,
		instance.DefinitionID,
		instance.TenantID,
		instance.RecordID,
		instance.RecordTable,
		nullString(instance.CurrentStepID),
		instance.Status,
		instance.StartedBy,
		instance.StartedAt,
		nullTime(instance.CompletedAt),
		payload,
		instance.Version,
		instance.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create instance", zap.String("record_id", instance.RecordID), zap.Error(err))
		return fmt.Errorf("failed to create instance: %w", err)
	}

	return nil
}

// GetByID retrieves an instance by ID within a tenant
func (r *InstanceRepository) GetByID(ctx context.Context, tenantID, id string) (*entity.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances WHERE tenant_id = ? AND id = ?`

	instance, err := scanInstance(r.getExecutor(ctx).QueryRowContext(ctx, query, tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get instance by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}
	return instance, nil
}

// GetLatestByRecord retrieves the most recently started instance for a record
func (r *InstanceRepository) GetLatestByRecord(ctx context.Context, tenantID, recordID, recordTable string) (*entity.WorkflowInstance, error) {
	query := `SELECT ` + instanceColumns + ` FROM workflow_instances
		WHERE tenant_id = ? AND record_id = ? AND record_table = ?
		ORDER BY started_at DESC, rowid DESC
		LIMIT 1`

	instance, err := scanInstance(r.getExecutor(ctx).QueryRowContext(ctx, query, tenantID, recordID, recordTable))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get instance by record",
			zap.String("record_id", recordID),
			zap.String("record_table", recordTable),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}
	return instance, nil
}

// ExistsInProgress reports whether a record has an in-progress instance
func (r *InstanceRepository) ExistsInProgress(ctx context.Context, tenantID, recordID, recordTable string) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM workflow_instances
		WHERE tenant_id = ? AND record_id = ? AND record_table = ? AND status = ?
	)`

	var exists bool
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, tenantID, recordID, recordTable, entity.StatusInProgress).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check in-progress instance", zap.String("record_id", recordID), zap.Error(err))
		return false, fmt.Errorf("failed to check in-progress instance: %w", err)
	}
	return exists, nil
}

// UpdateState writes the mutable fields if the stored version still matches,
// then bumps instance.Version. It reports false when another writer got there first.
func (r *InstanceRepository) UpdateState(ctx context.Context, instance *entity.WorkflowInstance) (bool, error) {
	query := `
		UPDATE workflow_instances
		SET current_step_id = ?, status = ?, completed_at = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND tenant_id = ? AND version = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		nullString(instance.CurrentStepID),
		instance.Status,
		nullTime(instance.CompletedAt),
		instance.UpdatedAt,
		instance.ID,
		instance.TenantID,
		instance.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update instance", zap.String("id", instance.ID), zap.Error(err))
		return false, fmt.Errorf("failed to update instance: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		r.logger.Info("Instance version check failed",
			zap.String("id", instance.ID),
			zap.Int64("version", instance.Version))
		return false, nil
	}

	instance.Version++
	return true, nil
}

// List retrieves instances of a tenant, newest first
func (r *InstanceRepository) List(ctx context.Context, tenantID string, filter port.InstanceFilter) ([]*entity.WorkflowInstance, error) {
	conditions := []string{"tenant_id = ?"}
	args := []interface{}{tenantID}

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.RecordTable != "" {
		conditions = append(conditions, "record_table = ?")
		args = append(args, filter.RecordTable)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, filter.Offset)

	query := `SELECT ` + instanceColumns + ` FROM workflow_instances
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY started_at DESC, rowid DESC
		LIMIT ? OFFSET ?`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list instances", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	var instances []*entity.WorkflowInstance
	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			r.logger.Error("Failed to scan instance", zap.Error(err))
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		instances = append(instances, instance)
	}

	return instances, rows.Err()
}

func scanInstance(row rowScanner) (*entity.WorkflowInstance, error) {
	var (
		instance      entity.WorkflowInstance
		currentStepID sql.NullString
		completedAt   sql.NullTime
		payload       string
	)

	err := row.Scan(
		&instance.ID,
		&instance.DefinitionID,
		&instance.TenantID,
		&instance.RecordID,
		&instance.RecordTable,
		&currentStepID,
		&instance.Status,
		&instance.StartedBy,
		&instance.StartedAt,
		&completedAt,
		&payload,
		&instance.Version,
		&instance.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if currentStepID.Valid {
		instance.CurrentStepID = &currentStepID.String
	}
	if completedAt.Valid {
		instance.CompletedAt = &completedAt.Time
	}
	instance.Payload = json.RawMessage(payload)

	return &instance, nil
}

func (r *InstanceRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

var _ port.InstanceRepository = (*InstanceRepository)(nil)
