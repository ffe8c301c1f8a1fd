package workflow

import (
	"slices"

	"github.com/garyjia/sales-crm/internal/domain/entity"
)

// ParallelApprovalStatus summarizes the approvals recorded against a step
type ParallelApprovalStatus struct {
	AllApproved   bool     `json:"all_approved"`
	Approvers     []string `json:"approvers"`
	ApprovedRoles []string `json:"approved_roles"`
	PendingRoles  []string `json:"pending_roles"`
}

// EvaluateParallel computes the completion condition of a step from its approve
// entries. Each actor is counted once, with the role stored on its first entry.
// For a parallel step every required role needs at least one approver; any other
// step is satisfied by a single approver.
func EvaluateParallel(step *entity.WorkflowStep, entries []*entity.ApprovalHistory) *ParallelApprovalStatus {
	status := &ParallelApprovalStatus{
		Approvers:     []string{},
		ApprovedRoles: []string{},
		PendingRoles:  []string{},
	}

	seenActors := make(map[string]bool)
	roles := make(map[string]bool)
	for _, entry := range entries {
		if entry.Action != entity.ActionApprove || entry.StepID != step.ID {
			continue
		}
		if seenActors[entry.ActorID] {
			continue
		}
		seenActors[entry.ActorID] = true
		status.Approvers = append(status.Approvers, entry.ActorID)
		if entry.ActorRole != "" && !roles[entry.ActorRole] {
			roles[entry.ActorRole] = true
			status.ApprovedRoles = append(status.ApprovedRoles, entry.ActorRole)
		}
	}

	if !step.IsParallel() {
		status.AllApproved = len(status.Approvers) > 0
		return status
	}

	for _, role := range step.Assignee.RequiredRoles {
		if !roles[role] {
			status.PendingRoles = append(status.PendingRoles, role)
		}
	}
	status.AllApproved = len(step.Assignee.RequiredRoles) > 0 && len(status.PendingRoles) == 0
	return status
}

// HasApproved reports whether actorID already recorded an approve on the step
func HasApproved(stepID, actorID string, entries []*entity.ApprovalHistory) bool {
	return slices.ContainsFunc(entries, func(entry *entity.ApprovalHistory) bool {
		return entry.StepID == stepID && entry.ActorID == actorID && entry.Action == entity.ActionApprove
	})
}

// CurrentRound returns the entries of the latest visit to a step, so approvals
// given before a return or loop back into the step no longer count. history
// must be ordered by sequence. While the instance rests on the step the visit is
// the trailing run of approves on it; otherwise it is the last contiguous run of
// entries recorded against the step, including the action that left it.
func CurrentRound(stepID string, history []*entity.ApprovalHistory, resting bool) []*entity.ApprovalHistory {
	end := len(history)
	if !resting {
		for end > 0 && history[end-1].StepID != stepID {
			end--
		}
	}

	start := end
	for start > 0 {
		entry := history[start-1]
		if entry.StepID != stepID {
			break
		}
		if entry.Action != entity.ActionApprove && (resting || start != end) {
			break
		}
		start--
	}
	return slices.Clone(history[start:end])
}
