package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/sales-crm/internal/domain/entity"
)

func historyEntry(instance *entity.WorkflowInstance, step entity.WorkflowStep, action entity.Action, actorID, role string, at time.Time) *entity.ApprovalHistory {
	return &entity.ApprovalHistory{
		InstanceID: instance.ID,
		TenantID:   instance.TenantID,
		StepID:     step.ID,
		StepCode:   step.Code,
		Action:     action,
		ActorID:    actorID,
		ActorName:  actorID,
		ActorRole:  role,
		CreatedAt:  at,
	}
}

func TestHistoryRepository_AppendAssignsSequence(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	def := store.saveDefinition(t, contractDefinition(tenant))
	now := time.Now().UTC()

	a := newInstance(def, "cr-1", now)
	b := newInstance(def, "cr-2", now)
	require.NoError(t, store.instances.Create(ctx, a))
	require.NoError(t, store.instances.Create(ctx, b))

	first := historyEntry(a, def.Steps[0], entity.ActionSubmit, "sales-1", "sales", now)
	require.NoError(t, store.history.Append(ctx, first))
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, int64(1), first.Sequence)

	second := historyEntry(a, def.Steps[1], entity.ActionApprove, "leader-1", "sales_leader", now)
	require.NoError(t, store.history.Append(ctx, second))
	assert.Equal(t, int64(2), second.Sequence)

	other := historyEntry(b, def.Steps[0], entity.ActionSubmit, "sales-1", "sales", now)
	require.NoError(t, store.history.Append(ctx, other))
	assert.Equal(t, int64(1), other.Sequence, "sequence is per instance")
}

func TestHistoryRepository_Reads(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	def := store.saveDefinition(t, contractDefinition(tenant))
	now := time.Now().UTC()
	instance := newInstance(def, "cr-1", now)
	require.NoError(t, store.instances.Create(ctx, instance))

	managers := def.Steps[2]
	entries := []*entity.ApprovalHistory{
		historyEntry(instance, def.Steps[0], entity.ActionSubmit, "sales-1", "sales", now),
		historyEntry(instance, managers, entity.ActionApprove, "design-1", "design_manager", now),
		historyEntry(instance, managers, entity.ActionReject, "construct-1", "construction_manager", now),
	}
	entries[0].Comment = "please review"
	for _, entry := range entries {
		require.NoError(t, store.history.Append(ctx, entry))
	}

	all, err := store.history.GetByInstanceID(ctx, tenant, instance.ID)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, entry := range all {
		assert.Equal(t, int64(i+1), entry.Sequence)
	}
	assert.Equal(t, "please review", all[0].Comment)
	assert.Equal(t, "design_manager", all[1].ActorRole)
	assert.Equal(t, entity.ActionReject, all[2].Action)

	foreign, err := store.history.GetByInstanceID(ctx, "tenant-2", instance.ID)
	require.NoError(t, err)
	assert.Empty(t, foreign)
}

func TestHistoryRepository_OrdersBySequenceNotTimestamp(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	def := store.saveDefinition(t, contractDefinition(tenant))
	now := time.Now().UTC()
	instance := newInstance(def, "cr-1", now)
	require.NoError(t, store.instances.Create(ctx, instance))

	// A skewed clock stamps the later entry earlier.
	submitted := historyEntry(instance, def.Steps[0], entity.ActionSubmit, "sales-1", "sales", now)
	approved := historyEntry(instance, def.Steps[1], entity.ActionApprove, "leader-1", "sales_leader", now.Add(-time.Hour))
	require.NoError(t, store.history.Append(ctx, submitted))
	require.NoError(t, store.history.Append(ctx, approved))

	all, err := store.history.GetByInstanceID(ctx, tenant, instance.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, submitted.ID, all[0].ID)
	assert.Equal(t, approved.ID, all[1].ID)
	assert.Equal(t, []int64{1, 2}, []int64{all[0].Sequence, all[1].Sequence})
}

func TestHistoryRepository_AppendOnly(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	def := store.saveDefinition(t, contractDefinition(tenant))
	instance := newInstance(def, "cr-1", time.Now().UTC())
	require.NoError(t, store.instances.Create(ctx, instance))

	entry := historyEntry(instance, def.Steps[0], entity.ActionSubmit, "sales-1", "sales", time.Now().UTC())
	require.NoError(t, store.history.Append(ctx, entry))

	_, err := store.db.ExecContext(ctx, "UPDATE approval_history SET comment = 'edited' WHERE id = ?", entry.ID)
	assert.ErrorContains(t, err, "append-only")

	_, err = store.db.ExecContext(ctx, "DELETE FROM approval_history WHERE id = ?", entry.ID)
	assert.ErrorContains(t, err, "append-only")
}

func TestHistoryRepository_RolledBackWithTransaction(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	def := store.saveDefinition(t, contractDefinition(tenant))
	instance := newInstance(def, "cr-1", time.Now().UTC())
	require.NoError(t, store.instances.Create(ctx, instance))

	abort := errors.New("abort")
	err := store.db.WithTransaction(ctx, func(txCtx context.Context) error {
		entry := historyEntry(instance, def.Steps[0], entity.ActionSubmit, "sales-1", "sales", time.Now().UTC())
		if err := store.history.Append(txCtx, entry); err != nil {
			return err
		}
		return abort
	})
	require.ErrorIs(t, err, abort)

	entries, err := store.history.GetByInstanceID(ctx, tenant, instance.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
