package workflow

import (
	"slices"

	"github.com/garyjia/sales-crm/internal/domain/entity"
)

// Actor identifies the user attempting to act on an instance
type Actor struct {
	ID   string
	Name string
	Role string
}

// Permits is the single authorization predicate shared by the resolver and the
// transition engine. alreadyApproved is only consulted for parallel steps and
// must report whether the actor has a recorded approve entry on this step.
func Permits(step *entity.WorkflowStep, instance *entity.WorkflowInstance, actor Actor, alreadyApproved bool) bool {
	if step == nil || instance == nil || instance.IsTerminal() {
		return false
	}

	if step.IsParallel() {
		return slices.Contains(step.Assignee.RequiredRoles, actor.Role) && !alreadyApproved
	}

	switch step.Assignee.Kind {
	case entity.AssigneeRole:
		return actor.Role != "" && actor.Role == step.Assignee.Role
	case entity.AssigneeUser:
		return actor.ID != "" && actor.ID == step.Assignee.UserID
	case entity.AssigneeCreator:
		return actor.ID != "" && actor.ID == instance.StartedBy
	default:
		return false
	}
}

// AvailableActions returns the actions the actor may take; empty when not permitted
func AvailableActions(step *entity.WorkflowStep, permitted bool) []entity.Action {
	if !permitted || step == nil {
		return []entity.Action{}
	}
	return append([]entity.Action{}, step.Actions...)
}
