package workflow

import (
	"context"
	"encoding/json"

	"github.com/garyjia/sales-crm/internal/application/port"
	"github.com/garyjia/sales-crm/internal/domain/entity"
	domainwf "github.com/garyjia/sales-crm/internal/domain/workflow"
)

// WorkflowEngine drives workflow instances through their definitions
type WorkflowEngine interface {
	// Start creates an in-progress instance positioned on the definition's first step
	Start(ctx context.Context, req StartRequest) (*entity.WorkflowInstance, error)

	// StartForRecordType resolves the definition governing req.RecordTable and starts it
	StartForRecordType(ctx context.Context, req StartRequest) (*entity.WorkflowInstance, error)

	// ExecuteAction validates and applies an action to the instance's current step
	ExecuteAction(ctx context.Context, req ActionRequest) (*ActionResult, error)

	// GetInstance returns an instance by ID
	GetInstance(ctx context.Context, tenantID, instanceID string) (*entity.WorkflowInstance, error)

	// GetInstanceByRecord returns the most recent instance for a business record
	GetInstanceByRecord(ctx context.Context, tenantID, recordID, recordTable string) (*entity.WorkflowInstance, error)

	// ListInstances returns instances matching filter, newest first
	ListInstances(ctx context.Context, tenantID string, filter port.InstanceFilter) ([]*entity.WorkflowInstance, error)

	// GetCurrentStep returns the instance's current step, nil once terminal
	GetCurrentStep(ctx context.Context, tenantID, instanceID string) (*entity.WorkflowStep, error)

	// GetApprovalHistory returns the instance's audit trail in order
	GetApprovalHistory(ctx context.Context, tenantID, instanceID string) ([]*entity.ApprovalHistory, error)

	// CheckParallelApproval reports whether every required role has approved a step
	CheckParallelApproval(ctx context.Context, tenantID, instanceID, stepID string) (*domainwf.ParallelApprovalStatus, error)

	// CanActOnStep reports whether a user may act on the instance's current step
	CanActOnStep(ctx context.Context, tenantID, instanceID, userRole, userID string) (*Authorization, error)
}

// StartRequest carries the arguments of Start
type StartRequest struct {
	TenantID     string          `json:"tenant_id"`
	DefinitionID string          `json:"definition_id"`
	RecordID     string          `json:"record_id"`
	RecordTable  string          `json:"record_table"`
	StartedBy    string          `json:"started_by"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// ActionRequest carries the arguments of ExecuteAction
type ActionRequest struct {
	TenantID   string        `json:"tenant_id"`
	InstanceID string        `json:"instance_id"`
	Action     entity.Action `json:"action"`
	ActorID    string        `json:"actor_id"`
	ActorName  string        `json:"actor_name"`
	ActorRole  string        `json:"actor_role"`
	Comment    string        `json:"comment,omitempty"`
}

// ActionResult describes the outcome of an accepted action
type ActionResult struct {
	Instance *entity.WorkflowInstance `json:"instance"`

	// NextStep is the step now awaiting action, nil when the instance terminated
	NextStep *entity.WorkflowStep `json:"next_step,omitempty"`

	// Advanced is false when a parallel step is still waiting for other roles
	Advanced bool `json:"advanced"`

	HistoryEntry *entity.ApprovalHistory           `json:"history_entry"`
	Parallel     *domainwf.ParallelApprovalStatus `json:"parallel,omitempty"`
}

// Authorization is the result of CanActOnStep
type Authorization struct {
	CanAct           bool            `json:"can_act"`
	AvailableActions []entity.Action `json:"available_actions"`
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Recorder receives engine outcomes for metrics
type Recorder interface {
	InstanceStarted(definitionCode string)
	ActionExecuted(action entity.Action, outcome string)
}

// Outcomes reported to Recorder.ActionExecuted
const (
	OutcomeAdvanced  = "advanced"
	OutcomeHeld      = "held"
	OutcomeCompleted = "completed"
	OutcomeRejected  = "rejected"
	OutcomeDenied    = "denied"
	OutcomeFatal     = "fatal"
	OutcomeError     = "error"
)
