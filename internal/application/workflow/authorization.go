package workflow

import (
	"context"

	"github.com/garyjia/sales-crm/internal/domain/entity"
	domainwf "github.com/garyjia/sales-crm/internal/domain/workflow"
)

// CanActOnStep resolves whether a user may act on the instance's current step.
// It is advisory; ExecuteAction applies the same predicate itself.
func (e *engineImpl) CanActOnStep(ctx context.Context, tenantID, instanceID, userRole, userID string) (*Authorization, error) {
	instance, err := e.loadInstance(ctx, tenantID, instanceID)
	if err != nil {
		return nil, err
	}
	if instance.IsTerminal() {
		return &Authorization{AvailableActions: []entity.Action{}}, nil
	}

	step, err := e.loadCurrentStep(ctx, instance)
	if err != nil {
		return nil, err
	}

	alreadyApproved := false
	if step.IsParallel() {
		entries, err := e.stepRound(ctx, instance, step)
		if err != nil {
			return nil, err
		}
		alreadyApproved = domainwf.HasApproved(step.ID, userID, entries)
	}

	actor := domainwf.Actor{ID: userID, Role: userRole}
	permitted := domainwf.Permits(step, instance, actor, alreadyApproved)

	return &Authorization{
		CanAct:           permitted,
		AvailableActions: domainwf.AvailableActions(step, permitted),
	}, nil
}
