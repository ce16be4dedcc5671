package results

import (
	"encoding/json"
	"fmt"
)

// Type identifies the layer of the execution pipeline a node belongs to.
type Type string

const (
	// TypeCommand is the outermost node owned by a command-line invocation.
	TypeCommand Type = "command"

	// TypeRecipe is the node owned by one recipe read/compile/execute cycle.
	TypeRecipe Type = "recipe"

	// TypeEngine is the node owned by a concrete recipe engine run.
	TypeEngine Type = "engine"

	// TypeAction is the node owned by a single dispatched action.
	TypeAction Type = "action"

	// TypeExecutor is the node owned by one low-level executor call.
	TypeExecutor Type = "executor"

	// TypeUnknown marks a node synthesized from a foreign failure value.
	TypeUnknown Type = "unknown"
)

// Validate returns an error if the type is not a known value.
func (t Type) Validate() error {
	switch t {
	case TypeCommand, TypeRecipe, TypeEngine, TypeAction, TypeExecutor, TypeUnknown:
		return nil
	}
	return fmt.Errorf("invalid result type: %s", t)
}

// depth returns the nesting level of the type within the command hierarchy,
// or -1 for the unknown type.
func (t Type) depth() int {
	switch t {
	case TypeCommand:
		return 0
	case TypeRecipe:
		return 1
	case TypeEngine:
		return 2
	case TypeAction:
		return 3
	case TypeExecutor:
		return 4
	}
	return -1
}

// CanParent reports whether a node of type c may be attached under a node of
// type t. A child must sit at the same level or exactly one level deeper.
// Unknown-typed nodes may attach anywhere: they are normalization artifacts,
// not part of the declared hierarchy.
func (t Type) CanParent(c Type) bool {
	if t == TypeUnknown || c == TypeUnknown {
		return true
	}
	pd, cd := t.depth(), c.depth()
	return cd == pd || cd == pd+1
}

// Status is the lifecycle state of a node.
type Status string

const (
	// StatusInitialized is the state of a freshly created node.
	StatusInitialized Status = "initialized"

	// StatusRunning indicates the owning unit of work has started.
	StatusRunning Status = "running"

	// StatusSuccess is the terminal state for completed work.
	StatusSuccess Status = "success"

	// StatusError is the terminal state for work that ended with an error;
	// the only state in which a node carries an error value.
	StatusError Status = "error"

	// StatusFailure is the terminal state for a non-error negative outcome.
	StatusFailure Status = "failure"

	// StatusWarning is the terminal state for degraded but acceptable work.
	StatusWarning Status = "warning"
)

// IsTerminal returns true once the status can no longer change.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusError, StatusFailure, StatusWarning:
		return true
	}
	return false
}

// IsActive returns true while the node may still receive a terminal
// transition.
func (s Status) IsActive() bool {
	return s == StatusInitialized || s == StatusRunning
}

// Validate returns an error if the status is not a known value.
func (s Status) Validate() error {
	switch s {
	case StatusInitialized, StatusRunning, StatusSuccess, StatusError, StatusFailure, StatusWarning:
		return nil
	}
	return fmt.Errorf("invalid result status: %s", s)
}

// MarshalJSON implements json.Marshaler.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler and rejects unknown statuses.
func (s *Status) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	status := Status(v)
	if err := status.Validate(); err != nil {
		return err
	}
	*s = status
	return nil
}

// Decision tells an AddChild caller how to proceed with remaining siblings.
type Decision string

const (
	// DecisionContinue means the child was recorded and siblings run as usual.
	DecisionContinue Decision = "continue"

	// DecisionAbort means the child's terminal status propagated to the
	// parent and the remaining siblings must be abandoned.
	DecisionAbort Decision = "abort"
)

// Outcome is the explicit propagate/continue result of AddChild.
type Outcome struct {
	// Decision is continue or abort.
	Decision Decision `json:"decision"`

	// Cause is the child whose status propagated; set only on abort.
	Cause *Node `json:"cause,omitempty"`
}

// ShouldAbort reports whether the caller must abandon remaining siblings.
func (o Outcome) ShouldAbort() bool {
	return o.Decision == DecisionAbort
}

// Continue builds the outcome that lets sibling processing proceed.
func Continue() Outcome {
	return Outcome{Decision: DecisionContinue}
}

// Abort builds the outcome that stops sibling processing, recording the
// child that caused the propagation.
func Abort(cause *Node) Outcome {
	return Outcome{Decision: DecisionAbort, Cause: cause}
}
