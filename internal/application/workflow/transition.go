package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/garyjia/sales-crm/internal/domain/entity"
	domainwf "github.com/garyjia/sales-crm/internal/domain/workflow"
)

// ExecuteAction validates an action against the instance's current step, records
// it in the audit log and advances or terminates the instance.
//
// Validation failures leave no trace. Once the action is accepted its history
// entry is committed even if resolving the next step fails; in that case the
// instance is left on its current step and the fatal error is returned.
func (e *engineImpl) ExecuteAction(ctx context.Context, req ActionRequest) (*ActionResult, error) {
	if req.TenantID == "" || req.InstanceID == "" || req.ActorID == "" {
		return nil, fmt.Errorf("%w: tenant_id, instance_id and actor_id are required", domainwf.ErrInvalidRequest)
	}

	var (
		result   *ActionResult
		fatalErr error
	)

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		result, fatalErr, err = e.applyAction(txCtx, req)
		return err
	})

	switch {
	case err != nil:
		e.recordFailure(req, err)
		return nil, err
	case fatalErr != nil:
		e.recorder.ActionExecuted(req.Action, OutcomeFatal)
		e.logger.Error("Workflow definition is misconfigured",
			"error", fatalErr,
			"instance_id", req.InstanceID,
			"action", req.Action,
		)
		return nil, fatalErr
	}

	e.recorder.ActionExecuted(req.Action, outcomeOf(result))
	e.logger.Info("Workflow action executed",
		"instance_id", req.InstanceID,
		"action", req.Action,
		"actor_id", req.ActorID,
		"status", result.Instance.Status,
		"advanced", result.Advanced,
	)
	return result, nil
}

// applyAction runs inside the transaction. A non-nil error rolls everything back;
// fatalErr keeps the history entry and leaves the instance untouched.
func (e *engineImpl) applyAction(ctx context.Context, req ActionRequest) (result *ActionResult, fatalErr error, err error) {
	instance, err := e.loadInstance(ctx, req.TenantID, req.InstanceID)
	if err != nil {
		return nil, nil, err
	}
	if instance.IsTerminal() {
		return nil, nil, fmt.Errorf("%w: %s is %s", domainwf.ErrInstanceTerminal, instance.ID, instance.Status)
	}

	step, err := e.loadCurrentStep(ctx, instance)
	if err != nil {
		return nil, nil, err
	}
	if !step.Allows(req.Action) {
		return nil, nil, fmt.Errorf("%w: %q on step %s", domainwf.ErrActionNotAllowed, req.Action, step.Code)
	}

	actor := domainwf.Actor{ID: req.ActorID, Name: req.ActorName, Role: req.ActorRole}
	var stepApprovals []*entity.ApprovalHistory
	if step.IsParallel() {
		stepApprovals, err = e.stepRound(ctx, instance, step)
		if err != nil {
			return nil, nil, err
		}
	}
	if !domainwf.Permits(step, instance, actor, domainwf.HasApproved(step.ID, actor.ID, stepApprovals)) {
		return nil, nil, fmt.Errorf("%w: %s (%s) on step %s", domainwf.ErrUnauthorized, actor.ID, actor.Role, step.Code)
	}

	entry := &entity.ApprovalHistory{
		ID:         uuid.NewString(),
		InstanceID: instance.ID,
		TenantID:   instance.TenantID,
		StepID:     step.ID,
		StepCode:   step.Code,
		Action:     req.Action,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		ActorRole:  actor.Role,
		Comment:    req.Comment,
		CreatedAt:  e.now(),
	}
	if err := e.historyRepo.Append(ctx, entry); err != nil {
		return nil, nil, fmt.Errorf("append history: %w", err)
	}

	result = &ActionResult{Instance: instance, HistoryEntry: entry}

	if step.IsParallel() && req.Action == entity.ActionApprove {
		result.Parallel = domainwf.EvaluateParallel(step, append(stepApprovals, entry))
		if !result.Parallel.AllApproved {
			// Bump the version so a concurrent approval on the same step conflicts
			// instead of both holding.
			instance.UpdatedAt = e.now()
			if err := e.saveInstance(ctx, instance); err != nil {
				return nil, nil, err
			}
			result.NextStep = step
			return result, nil, nil
		}
	}

	next, err := e.resolveNextStep(ctx, instance, step, req.Action)
	if err != nil {
		if domainwf.IsFatal(err) {
			return nil, err, nil
		}
		return nil, nil, err
	}

	now := e.now()
	if next == nil || next.Kind == entity.StepKindTerminal {
		instance.CurrentStepID = nil
		instance.CompletedAt = &now
		instance.Status = entity.StatusCompleted
		if req.Action.IsRejection() {
			instance.Status = entity.StatusRejected
		}
		next = nil
	} else {
		nextID := next.ID
		instance.CurrentStepID = &nextID
	}
	instance.UpdatedAt = now

	if err := e.saveInstance(ctx, instance); err != nil {
		return nil, nil, err
	}

	result.NextStep = next
	result.Advanced = true
	return result, nil, nil
}

// resolveNextStep returns the step the action leads to, or nil if it terminates
func (e *engineImpl) resolveNextStep(ctx context.Context, instance *entity.WorkflowInstance, step *entity.WorkflowStep, action entity.Action) (*entity.WorkflowStep, error) {
	code, ok := step.NextStepCode(action)
	if !ok {
		return nil, nil
	}

	next, err := e.definitionRepo.GetStepByCode(ctx, instance.DefinitionID, code)
	if err != nil {
		return nil, fmt.Errorf("load next step: %w", err)
	}
	if next == nil {
		return nil, fmt.Errorf("%w: step %s action %q names %q", domainwf.ErrNextStepNotFound, step.Code, action, code)
	}
	return next, nil
}

func (e *engineImpl) saveInstance(ctx context.Context, instance *entity.WorkflowInstance) error {
	ok, err := e.instanceRepo.UpdateState(ctx, instance)
	if err != nil {
		return fmt.Errorf("update instance: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", domainwf.ErrConcurrentModification, instance.ID)
	}
	return nil
}

func (e *engineImpl) recordFailure(req ActionRequest, err error) {
	switch {
	case errors.Is(err, domainwf.ErrActionNotAllowed),
		errors.Is(err, domainwf.ErrUnauthorized),
		errors.Is(err, domainwf.ErrInstanceTerminal),
		errors.Is(err, domainwf.ErrInstanceNotFound):
		e.recorder.ActionExecuted(req.Action, OutcomeDenied)
		e.logger.Info("Workflow action refused", "instance_id", req.InstanceID, "action", req.Action, "reason", err.Error())
	case domainwf.IsFatal(err):
		e.recorder.ActionExecuted(req.Action, OutcomeFatal)
		e.logger.Error("Workflow instance is corrupted", "error", err, "instance_id", req.InstanceID)
	default:
		e.recorder.ActionExecuted(req.Action, OutcomeError)
		e.logger.Error("Workflow action failed", "error", err, "instance_id", req.InstanceID, "action", req.Action)
	}
}

func outcomeOf(result *ActionResult) string {
	switch {
	case !result.Advanced:
		return OutcomeHeld
	case result.Instance.Status == entity.StatusCompleted:
		return OutcomeCompleted
	case result.Instance.Status == entity.StatusRejected:
		return OutcomeRejected
	default:
		return OutcomeAdvanced
	}
}
