package workflow

import "errors"

// Caller errors: reported to the caller, no state change.
var (
	// ErrDefinitionNotFound is returned when a definition does not exist for the tenant
	ErrDefinitionNotFound = errors.New("workflow definition not found")

	// ErrDefinitionInactive is returned when starting an instance of a disabled definition
	ErrDefinitionInactive = errors.New("workflow definition is inactive")

	// ErrDefinitionEmpty is returned when a definition has no active steps
	ErrDefinitionEmpty = errors.New("workflow definition has no steps")

	// ErrInstanceNotFound is returned when an instance does not exist for the tenant
	ErrInstanceNotFound = errors.New("workflow instance not found")

	// ErrInstanceTerminal is returned when acting on a completed or rejected instance
	ErrInstanceTerminal = errors.New("workflow instance is terminal")

	// ErrActionNotAllowed is returned when the action is not legal on the current step
	ErrActionNotAllowed = errors.New("action not allowed on current step")

	// ErrUnauthorized is returned when the actor may not act on the current step
	ErrUnauthorized = errors.New("actor not permitted on current step")

	// ErrActiveInstanceExists is returned by Start when the record already has a running instance
	// and concurrent instances are disabled
	ErrActiveInstanceExists = errors.New("record already has an in-progress workflow instance")

	// ErrConcurrentModification is returned when another transition committed first
	ErrConcurrentModification = errors.New("workflow instance was modified concurrently")
)

// Integrity errors: the definition or instance data is broken.
var (
	// ErrStepNotFound is returned when an instance points at a missing or inactive step
	ErrStepNotFound = errors.New("current step not found")

	// ErrNextStepNotFound is returned when a transition names a step that does not resolve
	ErrNextStepNotFound = errors.New("next step not found")

	// ErrInvalidDefinition is returned by Validate for a misauthored definition
	ErrInvalidDefinition = errors.New("invalid workflow definition")
)

// IsFatal reports whether err indicates a misconfigured definition or corrupted instance
func IsFatal(err error) bool {
	return errors.Is(err, ErrStepNotFound) ||
		errors.Is(err, ErrNextStepNotFound) ||
		errors.Is(err, ErrInvalidDefinition)
}

// ErrInvalidRequest is returned when a request is missing required fields
var ErrInvalidRequest = errors.New("invalid workflow request")
