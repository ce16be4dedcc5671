package stores

import (
	"errors"
	"fmt"
	"time"

	"github.com/orgforge/orgforge/pkg/results"
)

// Run is one persisted run with its recorded outcome.
type Run struct {
	// RunID is the unique identifier of the run.
	RunID string `json:"run_id"`

	// Recipe is the recipe name the run executed.
	Recipe string `json:"recipe"`

	// RecipeVersion is the recipe version.
	RecipeVersion string `json:"recipe_version,omitempty"`

	// RecipeType is the engine family the recipe targets.
	RecipeType string `json:"recipe_type,omitempty"`

	// Engine is the engine name that executed the run.
	Engine string `json:"engine,omitempty"`

	// Target is the alias of the target org.
	Target string `json:"target,omitempty"`

	// Status is the run's recorded status.
	Status string `json:"status"`

	// Error is the run's error text, empty unless the run ended in error.
	Error string `json:"error,omitempty"`

	// Result is the decoded result tree. Populated by GetRun; nil in
	// listings.
	Result *results.Node `json:"result,omitempty"`

	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`

	// EndedAt is when the run finished, nil while the run is open.
	EndedAt *time.Time `json:"ended_at,omitempty"`

	// CreatedAt is when the row was inserted.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the row last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// Step is one persisted step record of a run.
type Step struct {
	// RunID is the run the step belongs to.
	RunID string `json:"run_id"`

	// Index is the step's 1-based position in the executed plan.
	Index int `json:"index"`

	// Group is the alias of the step group the step belongs to.
	Group string `json:"group,omitempty"`

	// Origin records which plan section the step's group came from.
	Origin string `json:"origin,omitempty"`

	// Name is the step name.
	Name string `json:"name"`

	// Action is the action the step invoked.
	Action string `json:"action,omitempty"`

	// Status is the step's terminal status.
	Status string `json:"status"`

	// Error is the step's error text, empty unless the step ended in
	// error.
	Error string `json:"error,omitempty"`

	// StartedAt is when the step started.
	StartedAt time.Time `json:"started_at"`

	// Duration is how long the step ran.
	Duration time.Duration `json:"duration"`
}

// Event is one persisted run lifecycle event.
type Event struct {
	// ID is the row identifier.
	ID int64 `json:"id"`

	// EventID is the publisher-assigned event identifier.
	EventID string `json:"event_id,omitempty"`

	// RunID is the run the event belongs to.
	RunID string `json:"run_id"`

	// Type is the event type, such as run.started or step.failed.
	Type string `json:"type"`

	// Level is the event severity.
	Level string `json:"level,omitempty"`

	// Step is the associated step name, if any.
	Step string `json:"step,omitempty"`

	// Action is the associated action name, if any.
	Action string `json:"action,omitempty"`

	// Message is the human-readable event message.
	Message string `json:"message,omitempty"`

	// CreatedAt is when the event occurred.
	CreatedAt time.Time `json:"created_at"`
}

// NotFoundError is returned when a requested row does not exist.
type NotFoundError struct {
	// Kind names the missing entity, such as "run".
	Kind string

	// ID is the identifier that matched nothing.
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// IsNotFound reports whether err indicates a missing store row.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
