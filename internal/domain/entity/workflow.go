package entity

import (
	"encoding/json"
	"time"
)

// WorkflowDefinition is an externally authored template governing one kind of record
type WorkflowDefinition struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenant_id"`
	Code       string         `json:"code"`
	Name       string         `json:"name"`
	RecordType string         `json:"record_type"`
	IsActive   bool           `json:"is_active"`
	Steps      []WorkflowStep `json:"steps"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// FirstStep returns the step with the lowest sort order, or nil if there are none.
// Steps are expected to be loaded in sort order.
func (d *WorkflowDefinition) FirstStep() *WorkflowStep {
	if len(d.Steps) == 0 {
		return nil
	}
	first := &d.Steps[0]
	for i := range d.Steps {
		if d.Steps[i].SortOrder < first.SortOrder {
			first = &d.Steps[i]
		}
	}
	return first
}

// StepByCode returns the active step with the given code
func (d *WorkflowDefinition) StepByCode(code string) *WorkflowStep {
	for i := range d.Steps {
		if d.Steps[i].Code == code && d.Steps[i].IsActive {
			return &d.Steps[i]
		}
	}
	return nil
}

// Assignee specifies who may act on a step
type Assignee struct {
	Kind          AssigneeKind `json:"kind" yaml:"kind"`
	Role          string       `json:"role,omitempty" yaml:"role,omitempty"`
	UserID        string       `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	RequiredRoles []string     `json:"required_roles,omitempty" yaml:"required_roles,omitempty"`
}

// WorkflowStep is one stage of a definition
type WorkflowStep struct {
	ID           string            `json:"id"`
	DefinitionID string            `json:"definition_id"`
	Code         string            `json:"code"`
	Name         string            `json:"name"`
	Kind         StepKind          `json:"kind"`
	Assignee     Assignee          `json:"assignee"`
	Actions      []Action          `json:"actions"`
	NextSteps    map[Action]string `json:"next_steps"`
	SortOrder    int               `json:"sort_order"`
	IsActive     bool              `json:"is_active"`
}

// Allows returns true if the action is in the step's legal action set
func (s *WorkflowStep) Allows(action Action) bool {
	for _, a := range s.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// NextStepCode returns the code of the step the action leads to.
// ok is false when the action terminates the workflow.
func (s *WorkflowStep) NextStepCode(action Action) (code string, ok bool) {
	code, ok = s.NextSteps[action]
	if ok && code == "" {
		return "", false
	}
	return code, ok
}

// IsParallel returns true for steps that need approval from every required role
func (s *WorkflowStep) IsParallel() bool {
	return s.Kind == StepKindParallelApproval
}

// WorkflowInstance is one execution of a definition against one business record
type WorkflowInstance struct {
	ID            string          `json:"id"`
	DefinitionID  string          `json:"definition_id"`
	TenantID      string          `json:"tenant_id"`
	RecordID      string          `json:"record_id"`
	RecordTable   string          `json:"record_table"`
	CurrentStepID *string         `json:"current_step_id,omitempty"`
	Status        Status          `json:"status"`
	StartedBy     string          `json:"started_by"`
	StartedAt     time.Time       `json:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	Version       int64           `json:"version"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// IsTerminal returns true if the instance accepts no further actions
func (i *WorkflowInstance) IsTerminal() bool {
	return i.Status.IsTerminal()
}

// ApprovalHistory is one immutable entry of an instance's audit trail
type ApprovalHistory struct {
	ID         string    `json:"id"`
	InstanceID string    `json:"instance_id"`
	TenantID   string    `json:"tenant_id"`
	StepID     string    `json:"step_id"`
	StepCode   string    `json:"step_code"`
	Action     Action    `json:"action"`
	ActorID    string    `json:"actor_id"`
	ActorName  string    `json:"actor_name"`
	ActorRole  string    `json:"actor_role"`
	Comment    string    `json:"comment,omitempty"`
	Sequence   int64     `json:"sequence"`
	CreatedAt  time.Time `json:"created_at"`
}
