package workflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/sales-crm/internal/domain/entity"
)

// DefinitionBuilder assembles a workflow definition step by step
type DefinitionBuilder struct {
	def   *entity.WorkflowDefinition
	steps []*StepConfiguration
}

// StepConfiguration configures a single step of the definition being built
type StepConfiguration struct {
	builder *DefinitionBuilder
	step    entity.WorkflowStep
}

// NewBuilder creates a builder for an active definition
func NewBuilder(tenantID, code, recordType string) *DefinitionBuilder {
	now := time.Now().UTC()
	return &DefinitionBuilder{
		def: &entity.WorkflowDefinition{
			ID:         uuid.NewString(),
			TenantID:   tenantID,
			Code:       code,
			Name:       code,
			RecordType: recordType,
			IsActive:   true,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}
}

// Named sets the display name of the definition
func (b *DefinitionBuilder) Named(name string) *DefinitionBuilder {
	b.def.Name = name
	return b
}

// Step adds a step; steps are ordered by the order in which they are added
func (b *DefinitionBuilder) Step(code string, kind entity.StepKind) *StepConfiguration {
	cfg := &StepConfiguration{
		builder: b,
		step: entity.WorkflowStep{
			ID:           uuid.NewString(),
			DefinitionID: b.def.ID,
			Code:         code,
			Name:         code,
			Kind:         kind,
			NextSteps:    make(map[entity.Action]string),
			SortOrder:    len(b.steps) + 1,
			IsActive:     true,
		},
	}
	b.steps = append(b.steps, cfg)
	return cfg
}

// Build validates and returns the definition
func (b *DefinitionBuilder) Build() (*entity.WorkflowDefinition, error) {
	def := *b.def
	def.Steps = make([]entity.WorkflowStep, 0, len(b.steps))
	for _, cfg := range b.steps {
		step := cfg.step
		step.Actions = append([]entity.Action{}, cfg.step.Actions...)
		step.NextSteps = make(map[entity.Action]string, len(cfg.step.NextSteps))
		for action, next := range cfg.step.NextSteps {
			step.NextSteps[action] = next
		}
		def.Steps = append(def.Steps, step)
	}

	if err := Validate(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// MustBuild is like Build but panics on an invalid definition
func (b *DefinitionBuilder) MustBuild() *entity.WorkflowDefinition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}

// Step starts the next step, for chaining
func (c *StepConfiguration) Step(code string, kind entity.StepKind) *StepConfiguration {
	return c.builder.Step(code, kind)
}

// Build finishes the definition, for chaining
func (c *StepConfiguration) Build() (*entity.WorkflowDefinition, error) {
	return c.builder.Build()
}

// MustBuild finishes the definition, for chaining
func (c *StepConfiguration) MustBuild() *entity.WorkflowDefinition {
	return c.builder.MustBuild()
}

// Named sets the display name of the step
func (c *StepConfiguration) Named(name string) *StepConfiguration {
	c.step.Name = name
	return c
}

// AssignRole lets any user holding role act on the step
func (c *StepConfiguration) AssignRole(role string) *StepConfiguration {
	c.step.Assignee = entity.Assignee{Kind: entity.AssigneeRole, Role: role}
	return c
}

// AssignUser lets a single fixed user act on the step
func (c *StepConfiguration) AssignUser(userID string) *StepConfiguration {
	c.step.Assignee = entity.Assignee{Kind: entity.AssigneeUser, UserID: userID}
	return c
}

// AssignCreator lets the user who started the instance act on the step
func (c *StepConfiguration) AssignCreator() *StepConfiguration {
	c.step.Assignee = entity.Assignee{Kind: entity.AssigneeCreator}
	return c
}

// RequireRoles sets the role set that must all approve a parallel step
func (c *StepConfiguration) RequireRoles(roles ...string) *StepConfiguration {
	c.step.Assignee = entity.Assignee{Kind: entity.AssigneeRoles, RequiredRoles: append([]string{}, roles...)}
	return c
}

// Permit declares action legal and routes it to the step with code toStep
func (c *StepConfiguration) Permit(action entity.Action, toStep string) *StepConfiguration {
	c.addAction(action)
	c.step.NextSteps[action] = toStep
	return c
}

// Terminate declares action legal; taking it ends the workflow
func (c *StepConfiguration) Terminate(action entity.Action) *StepConfiguration {
	c.addAction(action)
	delete(c.step.NextSteps, action)
	return c
}

func (c *StepConfiguration) addAction(action entity.Action) {
	if !c.step.Allows(action) {
		c.step.Actions = append(c.step.Actions, action)
	}
}

// Validate checks a definition for authoring errors: unknown kinds or actions,
// terminal steps that carry actions or a terminal entry step, transitions keyed
// by illegal actions, and next-step codes that do not resolve to an active step
// of the same definition.
func Validate(def *entity.WorkflowDefinition) error {
	if def == nil {
		return fmt.Errorf("%w: definition is nil", ErrInvalidDefinition)
	}
	if def.Code == "" {
		return fmt.Errorf("%w: code is required", ErrInvalidDefinition)
	}
	if len(def.Steps) == 0 {
		return fmt.Errorf("%w: %s has no steps", ErrInvalidDefinition, def.Code)
	}

	codes := make(map[string]bool, len(def.Steps))
	for _, step := range def.Steps {
		if step.Code == "" {
			return fmt.Errorf("%w: %s has a step without code", ErrInvalidDefinition, def.Code)
		}
		if codes[step.Code] {
			return fmt.Errorf("%w: duplicate step code %s", ErrInvalidDefinition, step.Code)
		}
		codes[step.Code] = true
	}

	if first := def.FirstStep(); first.Kind == entity.StepKindTerminal {
		return fmt.Errorf("%w: %s starts on terminal step %s", ErrInvalidDefinition, def.Code, first.Code)
	}

	for i := range def.Steps {
		step := &def.Steps[i]
		if err := validateStep(def, step); err != nil {
			return fmt.Errorf("%w: step %s: %v", ErrInvalidDefinition, step.Code, err)
		}
	}

	return nil
}

func validateStep(def *entity.WorkflowDefinition, step *entity.WorkflowStep) error {
	if !step.Kind.IsValid() {
		return fmt.Errorf("unknown step kind %q", step.Kind)
	}

	switch {
	case step.Kind == entity.StepKindTerminal:
		if len(step.Actions) > 0 || len(step.NextSteps) > 0 {
			return fmt.Errorf("terminal step cannot carry actions")
		}
	case step.IsParallel():
		if len(step.Assignee.RequiredRoles) == 0 {
			return fmt.Errorf("parallel step requires at least one role")
		}
	default:
		switch step.Assignee.Kind {
		case entity.AssigneeRole:
			if step.Assignee.Role == "" {
				return fmt.Errorf("role assignee without role")
			}
		case entity.AssigneeUser:
			if step.Assignee.UserID == "" {
				return fmt.Errorf("user assignee without user id")
			}
		case entity.AssigneeCreator:
		default:
			return fmt.Errorf("unknown assignee kind %q", step.Assignee.Kind)
		}
	}

	for _, action := range step.Actions {
		if !action.IsValid() {
			return fmt.Errorf("unknown action %q", action)
		}
	}

	for action, next := range step.NextSteps {
		if !step.Allows(action) {
			return fmt.Errorf("transition on %q which is not a legal action", action)
		}
		if next == "" {
			continue
		}
		if def.StepByCode(next) == nil {
			return fmt.Errorf("action %q leads to unknown step %q", action, next)
		}
	}

	return nil
}
