package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/sales-crm/internal/application/port"
	"github.com/garyjia/sales-crm/internal/domain/entity"
	"github.com/garyjia/sales-crm/internal/infrastructure/persistence/sqlite"
)

// HistoryRepository implements port.HistoryRepository.
// The table rejects UPDATE and DELETE through triggers.
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

const historyColumns = `id, instance_id, tenant_id, step_id, step_code, action,
	actor_id, actor_name, actor_role, comment, sequence, created_at`

// Append inserts an entry with the next per-instance sequence number
func (r *HistoryRepository) Append(ctx context.Context, entry *entity.ApprovalHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	query := `INSERT INTO approval_history (` + historyColumns + `)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(MAX(sequence), 0) + 1, ?
		FROM approval_history WHERE instance_id = ?
		RETURNING sequence`

	err := r.getExecutor(ctx).QueryRowContext(ctx, query,
		entry.ID,
		entry.InstanceID,
		entry.TenantID,
		entry.StepID,
		entry.StepCode,
		entry.Action,
		entry.ActorID,
		entry.ActorName,
		entry.ActorRole,
		entry.Comment,
		entry.CreatedAt,
		entry.InstanceID,
	).Scan(&entry.Sequence)
	if err != nil {
		r.logger.Error("Failed to append history",
			zap.String("instance_id", entry.InstanceID),
			zap.String("action", entry.Action.String()),
			zap.Error(err))
		return fmt.Errorf("failed to append history: %w", err)
	}

	return nil
}

// GetByInstanceID retrieves the audit trail of an instance in sequence order.
// created_at comes from the caller's clock and may be out of order.
func (r *HistoryRepository) GetByInstanceID(ctx context.Context, tenantID, instanceID string) ([]*entity.ApprovalHistory, error) {
	query := `SELECT ` + historyColumns + ` FROM approval_history
		WHERE tenant_id = ? AND instance_id = ?
		ORDER BY sequence ASC`

	return r.query(ctx, query, tenantID, instanceID)
}

func (r *HistoryRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.ApprovalHistory, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query history", zap.Error(err))
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []*entity.ApprovalHistory{}
	for rows.Next() {
		var entry entity.ApprovalHistory
		if err := rows.Scan(
			&entry.ID,
			&entry.InstanceID,
			&entry.TenantID,
			&entry.StepID,
			&entry.StepCode,
			&entry.Action,
			&entry.ActorID,
			&entry.ActorName,
			&entry.ActorRole,
			&entry.Comment,
			&entry.Sequence,
			&entry.CreatedAt,
		); err != nil {
			r.logger.Error("Failed to scan history", zap.Error(err))
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

func (r *HistoryRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

var _ port.HistoryRepository = (*HistoryRepository)(nil)
