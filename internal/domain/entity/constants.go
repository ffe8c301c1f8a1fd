package entity

// Status is the lifecycle status of a WorkflowInstance
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
)

var validStatuses = map[Status]bool{
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusRejected:   true,
}

// IsTerminal returns true if no further actions are accepted in this status
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRejected
}

// IsValid returns true if the status is a known instance status
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// Action is the closed set of action names a step may declare
type Action string

const (
	ActionSubmit      Action = "submit"
	ActionApprove     Action = "approve"
	ActionReject      Action = "reject"
	ActionReturn      Action = "return"
	ActionAcknowledge Action = "acknowledge"
)

var validActions = map[Action]bool{
	ActionSubmit:      true,
	ActionApprove:     true,
	ActionReject:      true,
	ActionReturn:      true,
	ActionAcknowledge: true,
}

// IsValid returns true if the action is one of the known action names
func (a Action) IsValid() bool {
	return validActions[a]
}

// IsRejection reports whether terminating on this action marks the instance rejected
func (a Action) IsRejection() bool {
	return a == ActionReject
}

// String returns the string representation of the action
func (a Action) String() string {
	return string(a)
}

// StepKind describes how a step is completed
type StepKind string

const (
	StepKindSingleApproval   StepKind = "single_approval"
	StepKindParallelApproval StepKind = "parallel_approval"
	StepKindNotification     StepKind = "notification"
	StepKindTerminal         StepKind = "terminal"
)

// IsValid returns true if the step kind is known
func (k StepKind) IsValid() bool {
	switch k {
	case StepKindSingleApproval, StepKindParallelApproval, StepKindNotification, StepKindTerminal:
		return true
	}
	return false
}

// AssigneeKind selects which rule decides who may act on a step
type AssigneeKind string

const (
	AssigneeRole    AssigneeKind = "role"
	AssigneeUser    AssigneeKind = "user"
	AssigneeCreator AssigneeKind = "creator"
	// AssigneeRoles is used by parallel steps: every role in the set must approve
	AssigneeRoles AssigneeKind = "roles"
)

// IsValid returns true if the assignee kind is known
func (k AssigneeKind) IsValid() bool {
	switch k {
	case AssigneeRole, AssigneeUser, AssigneeCreator, AssigneeRoles:
		return true
	}
	return false
}
