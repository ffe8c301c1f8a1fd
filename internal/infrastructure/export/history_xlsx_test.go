package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/sales-crm/internal/domain/entity"
)

func TestHistoryExporter_Write(t *testing.T) {
	started := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	completed := started.Add(2 * time.Hour)
	instance := &entity.WorkflowInstance{
		ID:          "inst-1",
		RecordID:    "cr-7",
		RecordTable: "contract_requests",
		Status:      entity.StatusCompleted,
		StartedBy:   "sales-1",
		StartedAt:   started,
		CompletedAt: &completed,
	}
	history := []*entity.ApprovalHistory{
		{Sequence: 1, CreatedAt: started, StepCode: "draft", Action: entity.ActionSubmit, ActorID: "sales-1", ActorName: "Lan", ActorRole: "sales", Comment: "ready"},
		{Sequence: 2, CreatedAt: completed, StepCode: "pending_leader", Action: entity.ActionApprove, ActorID: "leader-1", ActorName: "Minh", ActorRole: "sales_leader"},
	}

	var buf bytes.Buffer
	exporter := NewHistoryExporter("History", zap.NewNop())
	require.NoError(t, exporter.Write(&buf, instance, history))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"History"}, f.GetSheetList())

	rows, err := f.GetRows("History")
	require.NoError(t, err)
	require.Len(t, rows, 10)

	assert.Equal(t, []string{"Instance", "inst-1"}, rows[0])
	assert.Equal(t, []string{"Record", "contract_requests/cr-7"}, rows[1])
	assert.Equal(t, []string{"Status", "completed"}, rows[2])
	assert.Equal(t, []string{"Completed At", "2026-05-04 10:00:00"}, rows[5])
	assert.Empty(t, rows[6])
	assert.Equal(t, "Actor Role", rows[7][6])
	assert.Equal(t, []string{"1", "2026-05-04 08:00:00", "draft", "submit", "sales-1", "Lan", "sales", "ready"}, rows[8])
	assert.Equal(t, []string{"2", "2026-05-04 10:00:00", "pending_leader", "approve", "leader-1", "Minh", "sales_leader"}, rows[9])
}

func TestHistoryExporter_DefaultSheetAndEmptyHistory(t *testing.T) {
	instance := &entity.WorkflowInstance{ID: "inst-2", Status: entity.StatusInProgress, StartedAt: time.Now()}

	var buf bytes.Buffer
	require.NoError(t, NewHistoryExporter("", zap.NewNop()).Write(&buf, instance, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Approval History")
	require.NoError(t, err)
	require.Len(t, rows, 8, "summary, blank line and header")
	assert.Equal(t, []string{"Completed At"}, rows[5])
}
