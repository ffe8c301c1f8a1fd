package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/sales-crm/internal/domain/entity"
	"github.com/garyjia/sales-crm/internal/domain/workflow"
	"github.com/garyjia/sales-crm/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/sales-crm/migrations"
	"github.com/garyjia/sales-crm/pkg/database"
)

const tenant = "tenant-1"

type testStore struct {
	db          *sqlite.DB
	definitions *DefinitionRepository
	instances   *InstanceRepository
	history     *HistoryRepository
}

func setupStore(t *testing.T) *testStore {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "crm.db"), MaxOpenConns: 4}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrationsFS(migrations.FS))

	return &testStore{
		db:          sqlite.NewDB(db.DB, logger),
		definitions: NewDefinitionRepository(db.DB, logger),
		instances:   NewInstanceRepository(db.DB, logger),
		history:     NewHistoryRepository(db.DB, logger),
	}
}

func contractDefinition(tenantID string) *entity.WorkflowDefinition {
	return workflow.NewBuilder(tenantID, "contract_request_approval", "contract_requests").
		Named("Contract request approval").
		Step("draft", entity.StepKindSingleApproval).AssignCreator().
		Permit(entity.ActionSubmit, "pending_leader").Terminate(entity.ActionReject).
		Step("pending_leader", entity.StepKindSingleApproval).AssignRole("sales_leader").
		Permit(entity.ActionApprove, "pending_managers").Terminate(entity.ActionReject).
		Step("pending_managers", entity.StepKindParallelApproval).RequireRoles("design_manager", "construction_manager").
		Permit(entity.ActionApprove, "approved").Terminate(entity.ActionReject).
		Step("approved", entity.StepKindTerminal).
		MustBuild()
}

func (s *testStore) saveDefinition(t *testing.T, def *entity.WorkflowDefinition) *entity.WorkflowDefinition {
	t.Helper()
	require.NoError(t, s.definitions.Save(context.Background(), def))
	return def
}

func newInstance(def *entity.WorkflowDefinition, recordID string, startedAt time.Time) *entity.WorkflowInstance {
	stepID := def.Steps[0].ID
	return &entity.WorkflowInstance{
		ID:            "inst-" + recordID + "-" + startedAt.Format("150405.000"),
		DefinitionID:  def.ID,
		TenantID:      def.TenantID,
		RecordID:      recordID,
		RecordTable:   def.RecordType,
		CurrentStepID: &stepID,
		Status:        entity.StatusInProgress,
		StartedBy:     "sales-1",
		StartedAt:     startedAt,
		Payload:       []byte(`{"amount":1200}`),
		Version:       1,
		UpdatedAt:     startedAt,
	}
}
