package workflow

import (
	"context"
	"fmt"

	"github.com/garyjia/sales-crm/internal/domain/entity"
	domainwf "github.com/garyjia/sales-crm/internal/domain/workflow"
)

// CheckParallelApproval reports which required roles have approved a step
func (e *engineImpl) CheckParallelApproval(ctx context.Context, tenantID, instanceID, stepID string) (*domainwf.ParallelApprovalStatus, error) {
	instance, err := e.loadInstance(ctx, tenantID, instanceID)
	if err != nil {
		return nil, err
	}

	step, err := e.definitionRepo.GetStep(ctx, stepID)
	if err != nil {
		return nil, fmt.Errorf("load step: %w", err)
	}
	if step == nil || step.DefinitionID != instance.DefinitionID {
		return nil, fmt.Errorf("%w: %s", domainwf.ErrStepNotFound, stepID)
	}

	entries, err := e.stepRound(ctx, instance, step)
	if err != nil {
		return nil, err
	}

	return domainwf.EvaluateParallel(step, entries), nil
}

// stepRound loads the history of the latest visit to step
func (e *engineImpl) stepRound(ctx context.Context, instance *entity.WorkflowInstance, step *entity.WorkflowStep) ([]*entity.ApprovalHistory, error) {
	history, err := e.historyRepo.GetByInstanceID(ctx, instance.TenantID, instance.ID)
	if err != nil {
		return nil, fmt.Errorf("load step approvals: %w", err)
	}
	resting := instance.CurrentStepID != nil && *instance.CurrentStepID == step.ID
	return domainwf.CurrentRound(step.ID, history, resting), nil
}
