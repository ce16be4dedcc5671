package engine

import (
	"errors"
	"fmt"
	"strings"
)

// EngineError is the structured error type for engine lifecycle and
// execution failures. Every error carries a stable code for programmatic
// handling plus the run coordinates (engine, recipe, group, step, action,
// option) known at the point of failure.
type EngineError struct {
	// Code is the stable error code for programmatic handling.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Engine is the engine name, when known.
	Engine string `json:"engine,omitempty"`

	// Recipe is the recipe name, when known.
	Recipe string `json:"recipe,omitempty"`

	// Group is the step group alias, when the failure is group-scoped.
	Group string `json:"group,omitempty"`

	// Step is the step name, when the failure is step-scoped.
	Step string `json:"step,omitempty"`

	// Action is the action name, when the failure is action-scoped.
	Action string `json:"action,omitempty"`

	// Option is the action option name, for option-level failures.
	Option string `json:"option,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)

	var scope []string
	if e.Engine != "" {
		scope = append(scope, "engine="+e.Engine)
	}
	if e.Recipe != "" {
		scope = append(scope, "recipe="+e.Recipe)
	}
	if e.Group != "" {
		scope = append(scope, "group="+e.Group)
	}
	if e.Step != "" {
		scope = append(scope, "step="+e.Step)
	}
	if e.Action != "" {
		scope = append(scope, "action="+e.Action)
	}
	if e.Option != "" {
		scope = append(scope, "option="+e.Option)
	}
	if len(scope) > 0 {
		msg += " (" + strings.Join(scope, ", ") + ")"
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is; two engine errors
// are equal when their codes match.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithEngine adds the engine name to the error.
func (e *EngineError) WithEngine(engine string) *EngineError {
	e.Engine = engine
	return e
}

// WithRecipe adds the recipe name to the error.
func (e *EngineError) WithRecipe(recipe string) *EngineError {
	e.Recipe = recipe
	return e
}

// WithGroup adds the step group alias to the error.
func (e *EngineError) WithGroup(alias string) *EngineError {
	e.Group = alias
	return e
}

// WithStep adds the step name to the error.
func (e *EngineError) WithStep(step string) *EngineError {
	e.Step = step
	return e
}

// WithAction adds the action name to the error.
func (e *EngineError) WithAction(action string) *EngineError {
	e.Action = action
	return e
}

// WithCause attaches the underlying error.
func (e *EngineError) WithCause(err error) *EngineError {
	e.Err = err
	return e
}

// NewNotInitializedError creates an error for an operation that requires a
// fully initialized engine.
func NewNotInitializedError(message string) *EngineError {
	return &EngineError{Code: ErrCodeNotInitialized, Message: message}
}

// NewValidationError creates an error for a failed engine validation check.
func NewValidationError(message string) *EngineError {
	return &EngineError{Code: ErrCodeValidation, Message: message}
}

// NewUnknownActionError creates an error for a step whose action name has
// no registration in the engine's action registry.
func NewUnknownActionError(action string) *EngineError {
	return &EngineError{
		Code:    ErrCodeUnknownAction,
		Message: fmt.Sprintf("no action registered under %q", action),
		Action:  action,
	}
}

// NewMissingOptionError creates an error for a step invocation missing an
// option its action requires.
func NewMissingOptionError(action, option string) *EngineError {
	return &EngineError{
		Code:    ErrCodeMissingOption,
		Message: fmt.Sprintf("action %q requires option %q", action, option),
		Action:  action,
		Option:  option,
	}
}

// NewNoStepsError creates an error for a step group with an empty steps
// list. Empty groups are rejected at plan compilation regardless of skip
// rules.
func NewNoStepsError(group string) *EngineError {
	return &EngineError{
		Code:    ErrCodeNoSteps,
		Message: fmt.Sprintf("step group %q has no steps", group),
		Group:   group,
	}
}

// NewUnexpectedResultShapeError creates an error for a run whose propagated
// result was not a well-formed engine result in error status.
func NewUnexpectedResultShapeError(message string, err error) *EngineError {
	return &EngineError{Code: ErrCodeUnexpectedResultShape, Message: message, Err: err}
}

// NewUnknownTargetOrgError creates an error for a target org selection that
// matches none of the recipe's declared orgs.
func NewUnknownTargetOrgError(alias string) *EngineError {
	return &EngineError{
		Code:    ErrCodeUnknownTargetOrg,
		Message: fmt.Sprintf("recipe declares no target org with alias %q", alias),
	}
}

// NewUnknownVariableError creates an error for step option placeholders
// that resolved to no variable. All unresolved names are reported at once.
func NewUnknownVariableError(names []string) *EngineError {
	return &EngineError{
		Code:    ErrCodeUnknownVariable,
		Message: "unresolved variable references: " + strings.Join(names, ", "),
	}
}

// NewPolicyBlockedError creates an error for a run denied by the admission
// policy gate before the first step.
func NewPolicyBlockedError(message string, err error) *EngineError {
	return &EngineError{Code: ErrCodePolicyBlocked, Message: message, Err: err}
}

// AsEngineError extracts an EngineError from anywhere in an error chain.
func AsEngineError(err error) (*EngineError, bool) {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}

// IsNotInitialized returns true if the error reports a use-before-initialize.
func IsNotInitialized(err error) bool {
	return hasCode(err, ErrCodeNotInitialized)
}

// IsValidation returns true if the error reports a failed engine validation.
func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

// IsUnknownAction returns true if the error reports an unregistered action
// name.
func IsUnknownAction(err error) bool {
	return hasCode(err, ErrCodeUnknownAction)
}

// IsMissingOption returns true if the error reports a missing required
// option.
func IsMissingOption(err error) bool {
	return hasCode(err, ErrCodeMissingOption)
}

// IsNoSteps returns true if the error reports an empty step group.
func IsNoSteps(err error) bool {
	return hasCode(err, ErrCodeNoSteps)
}

// IsUnexpectedResultShape returns true if the error reports a malformed
// engine result.
func IsUnexpectedResultShape(err error) bool {
	return hasCode(err, ErrCodeUnexpectedResultShape)
}

// IsUnknownTargetOrg returns true if the error reports an unmatched target
// org alias.
func IsUnknownTargetOrg(err error) bool {
	return hasCode(err, ErrCodeUnknownTargetOrg)
}

// IsUnknownVariable returns true if the error reports unresolved option
// placeholders.
func IsUnknownVariable(err error) bool {
	return hasCode(err, ErrCodeUnknownVariable)
}

// IsPolicyBlocked returns true if the error reports a policy-denied run.
func IsPolicyBlocked(err error) bool {
	return hasCode(err, ErrCodePolicyBlocked)
}

func hasCode(err error, code string) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}

// Error codes for programmatic handling.
const (
	// ErrCodeNotInitialized indicates a lifecycle operation ran before the
	// engine finished initializing.
	ErrCodeNotInitialized = "ENGINE_NOT_INITIALIZED"

	// ErrCodeValidation indicates the engine failed its post-initialization
	// validation checks.
	ErrCodeValidation = "ENGINE_VALIDATION"

	// ErrCodeUnknownAction indicates a step referenced an unregistered
	// action name.
	ErrCodeUnknownAction = "UNKNOWN_ACTION"

	// ErrCodeMissingOption indicates a step omitted an option its action
	// requires.
	ErrCodeMissingOption = "MISSING_OPTION"

	// ErrCodeNoSteps indicates a step group declared an empty steps list.
	ErrCodeNoSteps = "NO_STEPS"

	// ErrCodeUnexpectedResultShape indicates a failed run did not propagate
	// a well-formed engine result.
	ErrCodeUnexpectedResultShape = "UNEXPECTED_RESULT_SHAPE"

	// ErrCodeUnknownTargetOrg indicates the selected target org alias is
	// not declared by the recipe.
	ErrCodeUnknownTargetOrg = "UNKNOWN_TARGET_ORG"

	// ErrCodeUnknownVariable indicates step options referenced variables
	// the context does not define.
	ErrCodeUnknownVariable = "UNKNOWN_VARIABLE"

	// ErrCodePolicyBlocked indicates the admission policy denied the run.
	ErrCodePolicyBlocked = "POLICY_BLOCKED"
)
