package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garyjia/sales-crm/internal/domain/entity"
)

func TestPermits(t *testing.T) {
	running := &entity.WorkflowInstance{StartedBy: "creator-1", Status: entity.StatusInProgress}
	finished := &entity.WorkflowInstance{StartedBy: "creator-1", Status: entity.StatusCompleted}

	roleStep := &entity.WorkflowStep{Kind: entity.StepKindSingleApproval, Assignee: entity.Assignee{Kind: entity.AssigneeRole, Role: "sales_leader"}}
	userStep := &entity.WorkflowStep{Kind: entity.StepKindSingleApproval, Assignee: entity.Assignee{Kind: entity.AssigneeUser, UserID: "user-7"}}
	creatorStep := &entity.WorkflowStep{Kind: entity.StepKindSingleApproval, Assignee: entity.Assignee{Kind: entity.AssigneeCreator}}
	parallelStep := &entity.WorkflowStep{Kind: entity.StepKindParallelApproval, Assignee: entity.Assignee{Kind: entity.AssigneeRoles, RequiredRoles: []string{"design_manager", "construction_manager"}}}
	unassigned := &entity.WorkflowStep{Kind: entity.StepKindNotification}

	tests := []struct {
		name     string
		step     *entity.WorkflowStep
		instance *entity.WorkflowInstance
		actor    Actor
		approved bool
		want     bool
	}{
		{"role matches", roleStep, running, Actor{ID: "u", Role: "sales_leader"}, false, true},
		{"role differs", roleStep, running, Actor{ID: "u", Role: "sales"}, false, false},
		{"empty role", roleStep, running, Actor{ID: "u"}, false, false},
		{"user matches", userStep, running, Actor{ID: "user-7"}, false, true},
		{"user differs", userStep, running, Actor{ID: "user-8", Role: "sales_leader"}, false, false},
		{"creator matches", creatorStep, running, Actor{ID: "creator-1"}, false, true},
		{"creator differs", creatorStep, running, Actor{ID: "creator-2"}, false, false},
		{"parallel role in set", parallelStep, running, Actor{ID: "d", Role: "design_manager"}, false, true},
		{"parallel role already approved", parallelStep, running, Actor{ID: "d", Role: "design_manager"}, true, false},
		{"parallel role outside set", parallelStep, running, Actor{ID: "s", Role: "sales_leader"}, false, false},
		{"terminal instance", roleStep, finished, Actor{ID: "u", Role: "sales_leader"}, false, false},
		{"no assignee", unassigned, running, Actor{ID: "u", Role: "sales_leader"}, false, false},
		{"nil step", nil, running, Actor{ID: "u"}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Permits(tt.step, tt.instance, tt.actor, tt.approved))
		})
	}
}

func TestAvailableActions(t *testing.T) {
	step := &entity.WorkflowStep{Actions: []entity.Action{entity.ActionApprove, entity.ActionReject}}

	assert.Equal(t, []entity.Action{entity.ActionApprove, entity.ActionReject}, AvailableActions(step, true))
	assert.Equal(t, []entity.Action{}, AvailableActions(step, false))

	actions := AvailableActions(step, true)
	actions[0] = entity.ActionSubmit
	assert.Equal(t, entity.ActionApprove, step.Actions[0], "result must not alias the step")
}
