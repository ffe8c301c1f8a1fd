package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/sales-crm/internal/application/port"
	"github.com/garyjia/sales-crm/internal/domain/entity"
)

func TestInstanceRepository_CreateAndGet(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	def := store.saveDefinition(t, contractDefinition(tenant))
	started := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	instance := newInstance(def, "cr-1", started)
	require.NoError(t, store.instances.Create(ctx, instance))

	got, err := store.instances.GetByID(ctx, tenant, instance.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, def.ID, got.DefinitionID)
	assert.Equal(t, "cr-1", got.RecordID)
	assert.Equal(t, "contract_requests", got.RecordTable)
	require.NotNil(t, got.CurrentStepID)
	assert.Equal(t, def.Steps[0].ID, *got.CurrentStepID)
	assert.Equal(t, entity.StatusInProgress, got.Status)
	assert.Equal(t, "sales-1", got.StartedBy)
	assert.True(t, started.Equal(got.StartedAt))
	assert.Nil(t, got.CompletedAt)
	assert.JSONEq(t, `{"amount":1200}`, string(got.Payload))
	assert.Equal(t, int64(1), got.Version)

	other, err := store.instances.GetByID(ctx, "tenant-2", instance.ID)
	assert.NoError(t, err)
	assert.Nil(t, other)
}

func TestInstanceRepository_UpdateStateChecksVersion(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	def := store.saveDefinition(t, contractDefinition(tenant))
	instance := newInstance(def, "cr-1", time.Now().UTC())
	require.NoError(t, store.instances.Create(ctx, instance))

	stale := *instance

	nextID := def.Steps[1].ID
	instance.CurrentStepID = &nextID
	ok, err := store.instances.UpdateState(ctx, instance)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(2), instance.Version)

	completed := time.Now().UTC()
	stale.CurrentStepID = nil
	stale.Status = entity.StatusCompleted
	stale.CompletedAt = &completed
	ok, err = store.instances.UpdateState(ctx, &stale)
	require.NoError(t, err)
	assert.False(t, ok, "stale version must lose")
	assert.Equal(t, int64(1), stale.Version)

	got, err := store.instances.GetByID(ctx, tenant, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusInProgress, got.Status)
	assert.Equal(t, nextID, *got.CurrentStepID)
	assert.Equal(t, int64(2), got.Version)

	got.CurrentStepID = nil
	got.Status = entity.StatusCompleted
	got.CompletedAt = &completed
	ok, err = store.instances.UpdateState(ctx, got)
	require.NoError(t, err)
	assert.True(t, ok)

	final, err := store.instances.GetByID(ctx, tenant, instance.ID)
	require.NoError(t, err)
	assert.Nil(t, final.CurrentStepID)
	require.NotNil(t, final.CompletedAt)
	assert.True(t, completed.Equal(*final.CompletedAt))
}

func TestInstanceRepository_StatusRequiresMatchingStep(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	def := store.saveDefinition(t, contractDefinition(tenant))

	instance := newInstance(def, "cr-1", time.Now().UTC())
	instance.CurrentStepID = nil
	assert.Error(t, store.instances.Create(ctx, instance), "in_progress without a current step")
}

func TestInstanceRepository_RecordLookups(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	def := store.saveDefinition(t, contractDefinition(tenant))
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first := newInstance(def, "cr-1", base)
	first.Status = entity.StatusRejected
	first.CurrentStepID = nil
	require.NoError(t, store.instances.Create(ctx, first))

	exists, err := store.instances.ExistsInProgress(ctx, tenant, "cr-1", "contract_requests")
	require.NoError(t, err)
	assert.False(t, exists)

	second := newInstance(def, "cr-1", base.Add(time.Hour))
	require.NoError(t, store.instances.Create(ctx, second))

	exists, err = store.instances.ExistsInProgress(ctx, tenant, "cr-1", "contract_requests")
	require.NoError(t, err)
	assert.True(t, exists)

	latest, err := store.instances.GetLatestByRecord(ctx, tenant, "cr-1", "contract_requests")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)

	none, err := store.instances.GetLatestByRecord(ctx, tenant, "cr-2", "contract_requests")
	assert.NoError(t, err)
	assert.Nil(t, none)
}

func TestInstanceRepository_List(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	def := store.saveDefinition(t, contractDefinition(tenant))
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, record := range []string{"cr-1", "cr-2", "cr-3"} {
		instance := newInstance(def, record, base.Add(time.Duration(i)*time.Minute))
		if record == "cr-2" {
			instance.Status = entity.StatusCompleted
			instance.CurrentStepID = nil
		}
		require.NoError(t, store.instances.Create(ctx, instance))
	}

	all, err := store.instances.List(ctx, tenant, port.InstanceFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "cr-3", all[0].RecordID, "newest first")

	running, err := store.instances.List(ctx, tenant, port.InstanceFilter{Status: entity.StatusInProgress})
	require.NoError(t, err)
	assert.Len(t, running, 2)

	page, err := store.instances.List(ctx, tenant, port.InstanceFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "cr-2", page[0].RecordID)

	other, err := store.instances.List(ctx, tenant, port.InstanceFilter{RecordTable: "fund_plans"})
	require.NoError(t, err)
	assert.Empty(t, other)
}
