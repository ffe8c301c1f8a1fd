package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garyjia/sales-crm/internal/domain/entity"
)

func approval(stepID, actorID, role string) *entity.ApprovalHistory {
	return &entity.ApprovalHistory{StepID: stepID, ActorID: actorID, ActorRole: role, Action: entity.ActionApprove}
}

func TestEvaluateParallel(t *testing.T) {
	step := &entity.WorkflowStep{
		ID:       "s1",
		Kind:     entity.StepKindParallelApproval,
		Assignee: entity.Assignee{Kind: entity.AssigneeRoles, RequiredRoles: []string{"A", "B"}},
	}

	t.Run("no approvals", func(t *testing.T) {
		status := EvaluateParallel(step, nil)
		assert.False(t, status.AllApproved)
		assert.Empty(t, status.Approvers)
		assert.Equal(t, []string{"A", "B"}, status.PendingRoles)
	})

	t.Run("one role approved", func(t *testing.T) {
		status := EvaluateParallel(step, []*entity.ApprovalHistory{approval("s1", "a1", "A")})
		assert.False(t, status.AllApproved)
		assert.Equal(t, []string{"a1"}, status.Approvers)
		assert.Equal(t, []string{"B"}, status.PendingRoles)
	})

	t.Run("duplicate approval counted once", func(t *testing.T) {
		status := EvaluateParallel(step, []*entity.ApprovalHistory{
			approval("s1", "a1", "A"),
			approval("s1", "a1", "A"),
		})
		assert.Equal(t, []string{"a1"}, status.Approvers)
		assert.False(t, status.AllApproved)
	})

	t.Run("actor role taken from first entry", func(t *testing.T) {
		status := EvaluateParallel(step, []*entity.ApprovalHistory{
			approval("s1", "a1", "A"),
			approval("s1", "a1", "B"),
		})
		assert.False(t, status.AllApproved)
		assert.Equal(t, []string{"A"}, status.ApprovedRoles)
	})

	t.Run("all roles approved", func(t *testing.T) {
		status := EvaluateParallel(step, []*entity.ApprovalHistory{
			approval("s1", "a1", "A"),
			approval("s1", "a2", "A"),
			approval("s1", "b1", "B"),
		})
		assert.True(t, status.AllApproved)
		assert.Equal(t, []string{"a1", "a2", "b1"}, status.Approvers)
		assert.Empty(t, status.PendingRoles)
	})

	t.Run("other steps and actions ignored", func(t *testing.T) {
		reject := approval("s1", "b1", "B")
		reject.Action = entity.ActionReject
		status := EvaluateParallel(step, []*entity.ApprovalHistory{
			approval("s1", "a1", "A"),
			approval("s2", "b2", "B"),
			reject,
		})
		assert.False(t, status.AllApproved)
		assert.Equal(t, []string{"a1"}, status.Approvers)
	})

	t.Run("single approval step", func(t *testing.T) {
		single := &entity.WorkflowStep{ID: "s3", Kind: entity.StepKindSingleApproval}
		assert.False(t, EvaluateParallel(single, nil).AllApproved)
		assert.True(t, EvaluateParallel(single, []*entity.ApprovalHistory{approval("s3", "x", "")}).AllApproved)
	})
}

func TestHasApproved(t *testing.T) {
	entries := []*entity.ApprovalHistory{approval("s1", "a1", "A")}

	assert.True(t, HasApproved("s1", "a1", entries))
	assert.False(t, HasApproved("s1", "b1", entries))
	assert.False(t, HasApproved("s2", "a1", entries))
}

func TestCurrentRound(t *testing.T) {
	returned := approval("s2", "lead", "sales_leader")
	returned.Action = entity.ActionReturn
	rejected := approval("s1", "b1", "B")
	rejected.Action = entity.ActionReject

	history := []*entity.ApprovalHistory{
		approval("s0", "lead", "sales_leader"),
		approval("s1", "a1", "A"),
		returned,
		approval("s0", "lead", "sales_leader"),
		approval("s1", "b1", "B"),
	}

	t.Run("resting step ignores approvals before re-entry", func(t *testing.T) {
		round := CurrentRound("s1", history, true)
		assert.Equal(t, []*entity.ApprovalHistory{history[4]}, round)
		assert.False(t, HasApproved("s1", "a1", round))
		assert.True(t, HasApproved("s1", "b1", round))
	})

	t.Run("resting step without approvals", func(t *testing.T) {
		assert.Empty(t, CurrentRound("s1", history[:4], true))
	})

	t.Run("left step keeps its last visit", func(t *testing.T) {
		left := append(append([]*entity.ApprovalHistory{}, history...), rejected)
		round := CurrentRound("s1", left, false)
		assert.Equal(t, []*entity.ApprovalHistory{history[4], rejected}, round)
		assert.Equal(t, []string{"b1"}, EvaluateParallel(&entity.WorkflowStep{ID: "s1"}, round).Approvers)
	})

	t.Run("step never visited", func(t *testing.T) {
		assert.Empty(t, CurrentRound("s9", history, false))
	})

	t.Run("result does not alias history", func(t *testing.T) {
		round := CurrentRound("s1", history, true)
		round = append(round, approval("s1", "x", "A"))
		assert.Len(t, history, 5)
		assert.Equal(t, "b1", history[4].ActorID)
	})
}
