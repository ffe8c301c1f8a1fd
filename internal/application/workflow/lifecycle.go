package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/garyjia/sales-crm/internal/application/port"
	"github.com/garyjia/sales-crm/internal/domain/entity"
	domainwf "github.com/garyjia/sales-crm/internal/domain/workflow"
)

// Start creates a new instance on the definition's first step
func (e *engineImpl) Start(ctx context.Context, req StartRequest) (*entity.WorkflowInstance, error) {
	if err := validateStartRequest(req); err != nil {
		return nil, err
	}

	def, err := e.definitionRepo.GetByID(ctx, req.TenantID, req.DefinitionID)
	if err != nil {
		return nil, fmt.Errorf("load definition: %w", err)
	}

	return e.startDefinition(ctx, def, req)
}

// StartForRecordType starts the active definition governing req.RecordTable
func (e *engineImpl) StartForRecordType(ctx context.Context, req StartRequest) (*entity.WorkflowInstance, error) {
	if err := validateStartRequest(req); err != nil {
		return nil, err
	}

	def, err := e.definitionRepo.GetByRecordType(ctx, req.TenantID, req.RecordTable)
	if err != nil {
		return nil, fmt.Errorf("load definition: %w", err)
	}
	if def == nil {
		return nil, fmt.Errorf("%w: no active definition for record table %s", domainwf.ErrDefinitionNotFound, req.RecordTable)
	}
	req.DefinitionID = def.ID

	return e.startDefinition(ctx, def, req)
}

func (e *engineImpl) startDefinition(ctx context.Context, def *entity.WorkflowDefinition, req StartRequest) (*entity.WorkflowInstance, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: %s", domainwf.ErrDefinitionNotFound, req.DefinitionID)
	}
	if !def.IsActive {
		return nil, fmt.Errorf("%w: %s", domainwf.ErrDefinitionInactive, def.Code)
	}

	first := def.FirstStep()
	if first == nil {
		return nil, fmt.Errorf("%w: %s", domainwf.ErrDefinitionEmpty, def.Code)
	}

	payload := req.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	now := e.now()
	firstStepID := first.ID
	instance := &entity.WorkflowInstance{
		ID:            uuid.NewString(),
		DefinitionID:  def.ID,
		TenantID:      req.TenantID,
		RecordID:      req.RecordID,
		RecordTable:   req.RecordTable,
		CurrentStepID: &firstStepID,
		Status:        entity.StatusInProgress,
		StartedBy:     req.StartedBy,
		StartedAt:     now,
		Payload:       payload,
		Version:       1,
		UpdatedAt:     now,
	}

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if !e.allowConcurrentInstances {
			exists, err := e.instanceRepo.ExistsInProgress(txCtx, req.TenantID, req.RecordID, req.RecordTable)
			if err != nil {
				return fmt.Errorf("check active instance: %w", err)
			}
			if exists {
				return fmt.Errorf("%w: %s/%s", domainwf.ErrActiveInstanceExists, req.RecordTable, req.RecordID)
			}
		}

		if err := e.instanceRepo.Create(txCtx, instance); err != nil {
			return fmt.Errorf("create instance: %w", err)
		}
		return nil
	})
	if err != nil {
		e.logger.Error("Failed to start workflow", "error", err, "definition", def.Code, "record_id", req.RecordID)
		return nil, err
	}

	e.recorder.InstanceStarted(def.Code)
	e.logger.Info("Workflow started",
		"instance_id", instance.ID,
		"definition", def.Code,
		"record_table", req.RecordTable,
		"record_id", req.RecordID,
		"step", first.Code,
	)
	return instance, nil
}

// GetInstance retrieves an instance by ID
func (e *engineImpl) GetInstance(ctx context.Context, tenantID, instanceID string) (*entity.WorkflowInstance, error) {
	return e.loadInstance(ctx, tenantID, instanceID)
}

// GetInstanceByRecord retrieves the most recent instance for a record
func (e *engineImpl) GetInstanceByRecord(ctx context.Context, tenantID, recordID, recordTable string) (*entity.WorkflowInstance, error) {
	instance, err := e.instanceRepo.GetLatestByRecord(ctx, tenantID, recordID, recordTable)
	if err != nil {
		return nil, fmt.Errorf("load instance: %w", err)
	}
	if instance == nil {
		return nil, fmt.Errorf("%w: %s/%s", domainwf.ErrInstanceNotFound, recordTable, recordID)
	}
	return instance, nil
}

// ListInstances retrieves a filtered page of instances
func (e *engineImpl) ListInstances(ctx context.Context, tenantID string, filter port.InstanceFilter) ([]*entity.WorkflowInstance, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", domainwf.ErrInvalidRequest, filter.Status)
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return e.instanceRepo.List(ctx, tenantID, filter)
}

// GetCurrentStep returns the step the instance is waiting on
func (e *engineImpl) GetCurrentStep(ctx context.Context, tenantID, instanceID string) (*entity.WorkflowStep, error) {
	instance, err := e.loadInstance(ctx, tenantID, instanceID)
	if err != nil {
		return nil, err
	}
	if instance.IsTerminal() {
		return nil, nil
	}
	return e.loadCurrentStep(ctx, instance)
}

// GetApprovalHistory returns the ordered audit trail of an instance
func (e *engineImpl) GetApprovalHistory(ctx context.Context, tenantID, instanceID string) ([]*entity.ApprovalHistory, error) {
	if _, err := e.loadInstance(ctx, tenantID, instanceID); err != nil {
		return nil, err
	}

	entries, err := e.historyRepo.GetByInstanceID(ctx, tenantID, instanceID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return entries, nil
}

func (e *engineImpl) loadInstance(ctx context.Context, tenantID, instanceID string) (*entity.WorkflowInstance, error) {
	instance, err := e.instanceRepo.GetByID(ctx, tenantID, instanceID)
	if err != nil {
		return nil, fmt.Errorf("load instance: %w", err)
	}
	if instance == nil {
		return nil, fmt.Errorf("%w: %s", domainwf.ErrInstanceNotFound, instanceID)
	}
	return instance, nil
}

func (e *engineImpl) loadCurrentStep(ctx context.Context, instance *entity.WorkflowInstance) (*entity.WorkflowStep, error) {
	if instance.CurrentStepID == nil {
		return nil, fmt.Errorf("%w: instance %s has no current step", domainwf.ErrStepNotFound, instance.ID)
	}

	step, err := e.definitionRepo.GetStep(ctx, *instance.CurrentStepID)
	if err != nil {
		return nil, fmt.Errorf("load step: %w", err)
	}
	if step == nil || step.DefinitionID != instance.DefinitionID {
		return nil, fmt.Errorf("%w: %s", domainwf.ErrStepNotFound, *instance.CurrentStepID)
	}
	return step, nil
}

func validateStartRequest(req StartRequest) error {
	switch {
	case req.TenantID == "":
		return fmt.Errorf("%w: tenant_id is required", domainwf.ErrInvalidRequest)
	case req.RecordID == "":
		return fmt.Errorf("%w: record_id is required", domainwf.ErrInvalidRequest)
	case req.RecordTable == "":
		return fmt.Errorf("%w: record_table is required", domainwf.ErrInvalidRequest)
	case req.StartedBy == "":
		return fmt.Errorf("%w: started_by is required", domainwf.ErrInvalidRequest)
	case len(req.Payload) > 0 && !json.Valid(req.Payload):
		return fmt.Errorf("%w: payload is not valid JSON", domainwf.ErrInvalidRequest)
	}
	return nil
}
