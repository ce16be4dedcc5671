package engine

import (
	"context"
	"time"

	"github.com/orgforge/orgforge/pkg/recipes"
	"github.com/orgforge/orgforge/pkg/results"
)

// Hooks is the capability set an engine family implements to customize
// the shared lifecycle. The engine calls the eight Initialize* hooks in a
// fixed order during Initialize, and the two Execute hooks around the
// step loop. Families embed Defaults and override only what they need.
type Hooks interface {
	// InitializeContext seeds the run context: variables, dry-run mode,
	// and any family-specific state derived from the recipe.
	InitializeContext(ctx context.Context, ec *Context) error

	// InitializeTargetOrg resolves the target org selection against the
	// recipe's declared orgs and loads its requirement documents.
	InitializeTargetOrg(ctx context.Context, ec *Context) error

	// InitializePreBuildGroups returns the step groups the engine runs
	// before the recipe's own groups. Must return a non-nil slice.
	InitializePreBuildGroups(ctx context.Context, ec *Context) ([]recipes.StepGroup, error)

	// InitializePostBuildGroups returns the step groups the engine runs
	// after the recipe's own groups. Must return a non-nil slice.
	InitializePostBuildGroups(ctx context.Context, ec *Context) ([]recipes.StepGroup, error)

	// InitializeSkipActions returns the action names excluded from the
	// plan, merged from the recipe and the compile options.
	InitializeSkipActions(ctx context.Context, ec *Context) ([]string, error)

	// InitializeSkipGroups returns the group aliases excluded from the
	// plan, merged from the recipe and the compile options.
	InitializeSkipGroups(ctx context.Context, ec *Context) ([]string, error)

	// InitializeActions populates the engine's action registry. The
	// registry must be non-empty after this hook returns.
	InitializeActions(ctx context.Context, ec *Context, reg *Registry) error

	// FinalizeResultDetail returns the payload attached to the engine
	// result node, or nil to leave the node's detail untouched.
	FinalizeResultDetail(ctx context.Context, ec *Context) (any, error)

	// PreExecute runs after the run is admitted and before the first
	// step. An error aborts the run.
	PreExecute(ctx context.Context, ec *Context) error

	// PostExecute runs after the last step when every step succeeded,
	// before the engine result is finalized.
	PostExecute(ctx context.Context, ec *Context, node *results.Node) error
}

// RunRecorder persists run history. Recorder failures never fail the run;
// the engine logs them and continues.
type RunRecorder interface {
	// BeginRun records the start of a run.
	BeginRun(ctx context.Context, rec RunRecord) error

	// RecordStep records the outcome of a single executed step.
	RecordStep(ctx context.Context, rec StepRecord) error

	// FinishRun records the terminal outcome of a run, including the
	// full result tree.
	FinishRun(ctx context.Context, rec RunRecord) error
}

// PolicyGate admits or denies a compiled plan before the first step runs.
type PolicyGate interface {
	// Check returns nil to admit the run, or an error describing the
	// denial.
	Check(ctx context.Context, input PolicyInput) error
}

// RunRecord is the persisted summary of a run.
type RunRecord struct {
	// RunID is the unique identifier of the run.
	RunID string `json:"run_id"`

	// Recipe is the name of the executed recipe.
	Recipe string `json:"recipe"`

	// RecipeVersion is the version of the executed recipe.
	RecipeVersion string `json:"recipe_version,omitempty"`

	// RecipeType is the engine family the recipe targets.
	RecipeType string `json:"recipe_type,omitempty"`

	// Engine is the engine name that executed the run.
	Engine string `json:"engine"`

	// Target is the alias of the target org.
	Target string `json:"target,omitempty"`

	// Status is the terminal status of the run.
	Status string `json:"status"`

	// StartedAt is when the run started.
	StartedAt time.Time `json:"started_at"`

	// EndedAt is when the run reached a terminal status.
	EndedAt time.Time `json:"ended_at,omitempty"`

	// Result is the root of the run's result tree, set on FinishRun.
	Result *results.Node `json:"result,omitempty"`
}

// StepRecord is the persisted outcome of one executed step.
type StepRecord struct {
	// RunID is the run the step belongs to.
	RunID string `json:"run_id"`

	// Index is the 1-based execution position of the step in the plan.
	Index int `json:"index"`

	// Group is the alias of the step's group.
	Group string `json:"group"`

	// Origin records which section of the plan the group came from.
	Origin GroupOrigin `json:"origin"`

	// Step is the step name.
	Step string `json:"step"`

	// Action is the action the step invoked.
	Action string `json:"action"`

	// Status is the terminal status of the step's result node.
	Status string `json:"status"`

	// StartedAt is when the step started.
	StartedAt time.Time `json:"started_at"`

	// Duration is how long the step ran.
	Duration time.Duration `json:"duration"`

	// Error is the step's error text, when the step did not succeed.
	Error string `json:"error,omitempty"`
}

// PolicyInput is the document a policy gate evaluates before admitting a
// run.
type PolicyInput struct {
	// RunID is the unique identifier of the run.
	RunID string `json:"run_id"`

	// Recipe is the recipe under execution.
	Recipe *recipes.Recipe `json:"recipe"`

	// Plan is the compiled plan the run will execute.
	Plan *Plan `json:"plan"`

	// Target is the target org of the run.
	Target recipes.TargetOrg `json:"target"`

	// Variables are the resolved run variables.
	Variables map[string]any `json:"variables,omitempty"`
}
