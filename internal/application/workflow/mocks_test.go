package workflow

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/garyjia/sales-crm/internal/application/port"
	"github.com/garyjia/sales-crm/internal/domain/entity"
)

// Mock implementations

type mockDefinitionRepo struct {
	definitions map[string]*entity.WorkflowDefinition
	getErr      error
}

func newMockDefinitionRepo(defs ...*entity.WorkflowDefinition) *mockDefinitionRepo {
	m := &mockDefinitionRepo{definitions: make(map[string]*entity.WorkflowDefinition)}
	for _, def := range defs {
		m.definitions[def.ID] = def
	}
	return m
}

func (m *mockDefinitionRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.WorkflowDefinition, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	def, ok := m.definitions[id]
	if !ok || def.TenantID != tenantID {
		return nil, nil
	}
	return def, nil
}

func (m *mockDefinitionRepo) GetByRecordType(ctx context.Context, tenantID, recordType string) (*entity.WorkflowDefinition, error) {
	for _, def := range m.definitions {
		if def.TenantID == tenantID && def.RecordType == recordType && def.IsActive {
			return def, nil
		}
	}
	return nil, nil
}

func (m *mockDefinitionRepo) GetByCode(ctx context.Context, tenantID, code string) (*entity.WorkflowDefinition, error) {
	for _, def := range m.definitions {
		if def.TenantID == tenantID && def.Code == code {
			return def, nil
		}
	}
	return nil, nil
}

func (m *mockDefinitionRepo) GetStep(ctx context.Context, stepID string) (*entity.WorkflowStep, error) {
	for _, def := range m.definitions {
		for i := range def.Steps {
			if def.Steps[i].ID == stepID && def.Steps[i].IsActive {
				step := def.Steps[i]
				return &step, nil
			}
		}
	}
	return nil, nil
}

func (m *mockDefinitionRepo) GetStepByCode(ctx context.Context, definitionID, code string) (*entity.WorkflowStep, error) {
	def, ok := m.definitions[definitionID]
	if !ok {
		return nil, nil
	}
	if step := def.StepByCode(code); step != nil {
		copied := *step
		return &copied, nil
	}
	return nil, nil
}

func (m *mockDefinitionRepo) Save(ctx context.Context, def *entity.WorkflowDefinition) error {
	m.definitions[def.ID] = def
	return nil
}

type mockInstanceRepo struct {
	mu        sync.Mutex
	instances map[string]*entity.WorkflowInstance
	order     []string
	createErr error
	updateErr error
	// staleUpdates makes UpdateState report a lost version check
	staleUpdates bool
}

func newMockInstanceRepo() *mockInstanceRepo {
	return &mockInstanceRepo{instances: make(map[string]*entity.WorkflowInstance)}
}

func (m *mockInstanceRepo) Create(ctx context.Context, instance *entity.WorkflowInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	copied := *instance
	m.instances[instance.ID] = &copied
	m.order = append(m.order, instance.ID)
	return nil
}

func (m *mockInstanceRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.WorkflowInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	instance, ok := m.instances[id]
	if !ok || instance.TenantID != tenantID {
		return nil, nil
	}
	copied := *instance
	return &copied, nil
}

func (m *mockInstanceRepo) GetLatestByRecord(ctx context.Context, tenantID, recordID, recordTable string) (*entity.WorkflowInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.order) - 1; i >= 0; i-- {
		instance := m.instances[m.order[i]]
		if instance.TenantID == tenantID && instance.RecordID == recordID && instance.RecordTable == recordTable {
			copied := *instance
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockInstanceRepo) ExistsInProgress(ctx context.Context, tenantID, recordID, recordTable string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, instance := range m.instances {
		if instance.TenantID == tenantID && instance.RecordID == recordID &&
			instance.RecordTable == recordTable && instance.Status == entity.StatusInProgress {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockInstanceRepo) UpdateState(ctx context.Context, instance *entity.WorkflowInstance) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return false, m.updateErr
	}
	stored, ok := m.instances[instance.ID]
	if !ok {
		return false, errors.New("instance not found")
	}
	if m.staleUpdates || stored.Version != instance.Version {
		return false, nil
	}
	instance.Version++
	copied := *instance
	m.instances[instance.ID] = &copied
	return true, nil
}

func (m *mockInstanceRepo) List(ctx context.Context, tenantID string, filter port.InstanceFilter) ([]*entity.WorkflowInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*entity.WorkflowInstance
	for _, id := range m.order {
		instance := m.instances[id]
		if instance.TenantID != tenantID {
			continue
		}
		if filter.Status != "" && instance.Status != filter.Status {
			continue
		}
		copied := *instance
		result = append(result, &copied)
	}
	return result, nil
}

func (m *mockInstanceRepo) stored(id string) *entity.WorkflowInstance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.instances[id]
}

type mockHistoryRepo struct {
	mu        sync.Mutex
	entries   []*entity.ApprovalHistory
	appendErr error
}

func (m *mockHistoryRepo) Append(ctx context.Context, entry *entity.ApprovalHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	var seq int64
	for _, e := range m.entries {
		if e.InstanceID == entry.InstanceID {
			seq++
		}
	}
	entry.Sequence = seq + 1
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockHistoryRepo) GetByInstanceID(ctx context.Context, tenantID, instanceID string) ([]*entity.ApprovalHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*entity.ApprovalHistory
	for _, e := range m.entries {
		if e.InstanceID == instanceID && e.TenantID == tenantID {
			result = append(result, e)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Sequence < result[j].Sequence })
	return result, nil
}

func (m *mockHistoryRepo) count(instanceID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.InstanceID == instanceID {
			n++
		}
	}
	return n
}

type mockTxManager struct {
	commitErr error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	return fn(ctx)
}

type mockRecorder struct {
	mu       sync.Mutex
	started  []string
	outcomes []string
}

func (m *mockRecorder) InstanceStarted(definitionCode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, definitionCode)
}

func (m *mockRecorder) ActionExecuted(action entity.Action, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, string(action)+":"+outcome)
}

func portFilter(status entity.Status) port.InstanceFilter {
	return port.InstanceFilter{Status: status}
}
