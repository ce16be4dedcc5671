package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/orgforge/orgforge/pkg/executors"
	"github.com/orgforge/orgforge/pkg/results"
)

// Descriptor describes an action: its name, the executor kind it
// dispatches through, and the options steps must supply.
type Descriptor struct {
	// Name is the action name steps reference.
	Name string `json:"name"`

	// Description is a human-readable summary of what the action does.
	Description string `json:"description,omitempty"`

	// Executor is the executor kind the action dispatches through.
	Executor executors.Kind `json:"executor"`

	// RequiredOptions lists the option keys every step invoking this
	// action must supply.
	RequiredOptions []string `json:"required_options,omitempty"`

	// Timeout bounds a single invocation. Zero means no bound beyond
	// the run context.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Action is a unit of work an engine can run as a step. Implementations
// return a terminal result node describing the outcome; the node becomes
// a child of the engine result.
type Action interface {
	// Descriptor returns the action's metadata.
	Descriptor() Descriptor

	// ValidateOptions checks the step options before execution.
	ValidateOptions(options map[string]any) error

	// Execute runs the action and returns its terminal result node.
	Execute(ctx context.Context, ec *Context, step PlanStep) (*results.Node, error)
}

// Registry maps action names to implementations. A registry belongs to a
// single run: it is populated by the InitializeActions hook and read-only
// afterwards, so it needs no locking.
type Registry struct {
	actions map[string]Action
}

// NewRegistry creates an empty action registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]Action)}
}

// Register adds an action under its descriptor name. Registering a nil
// action, an action with an empty name, or a duplicate name is an error.
func (r *Registry) Register(a Action) error {
	if a == nil {
		return NewValidationError("cannot register a nil action")
	}
	name := a.Descriptor().Name
	if name == "" {
		return NewValidationError("cannot register an action with an empty name")
	}
	if _, exists := r.actions[name]; exists {
		return NewValidationError(fmt.Sprintf("action %q is already registered", name)).
			WithAction(name)
	}
	r.actions[name] = a
	return nil
}

// MustRegister is like Register but panics on error. Intended for engine
// family wiring where a registration failure is a programming error.
func (r *Registry) MustRegister(a Action) {
	if err := r.Register(a); err != nil {
		panic(err)
	}
}

// Lookup returns the action registered under name.
func (r *Registry) Lookup(name string) (Action, error) {
	a, ok := r.actions[name]
	if !ok {
		return nil, NewUnknownActionError(name)
	}
	return a, nil
}

// Names returns the registered action names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered actions.
func (r *Registry) Len() int {
	return len(r.actions)
}
