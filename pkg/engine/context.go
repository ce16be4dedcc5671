package engine

import (
	"github.com/orgforge/orgforge/pkg/executors"
	"github.com/orgforge/orgforge/pkg/recipes"
	"github.com/orgforge/orgforge/pkg/telemetry"
)

// Context carries the per-run state shared between the engine, its hooks,
// and its actions. It is populated by the initialization hooks and is
// read-only once Initialize returns; the engine runs steps sequentially,
// so no locking is needed.
type Context struct {
	// RunID is the unique identifier of the run.
	RunID string

	// EngineName is the name of the engine executing the run.
	EngineName string

	// Recipe is the recipe under execution.
	Recipe *recipes.Recipe

	// Project is the project the recipe was loaded from.
	Project *recipes.Project

	// Options are the compile options the run was started with.
	Options recipes.CompileOptions

	// TargetOrg is the resolved target org for the run.
	TargetOrg recipes.TargetOrg

	// TargetRequirements holds the parsed requirement documents of the
	// target org, keyed by filename.
	TargetRequirements map[string]any

	// SkipActions lists action names excluded from the plan.
	SkipActions []string

	// SkipGroups lists group aliases excluded from the plan.
	SkipGroups []string

	// Variables are the resolved run variables available for option
	// interpolation.
	Variables map[string]any

	// Executors is the executor set actions dispatch commands through.
	Executors *executors.Set

	// DryRun disables side effects; actions are validated but not run.
	DryRun bool

	// Log is the run-scoped logger.
	Log *telemetry.Logger
}

// ShouldSkipAction reports whether the named action is excluded from the
// plan.
func (c *Context) ShouldSkipAction(action string) bool {
	for _, a := range c.SkipActions {
		if a == action {
			return true
		}
	}
	return false
}

// ShouldSkipGroup reports whether the group alias is excluded from the
// plan.
func (c *Context) ShouldSkipGroup(alias string) bool {
	for _, g := range c.SkipGroups {
		if g == alias {
			return true
		}
	}
	return false
}

// Variable returns the named run variable.
func (c *Context) Variable(name string) (any, bool) {
	v, ok := c.Variables[name]
	return v, ok
}

// Summary returns the serializable snapshot of the run context used as
// the default engine result detail.
func (c *Context) Summary() ContextSummary {
	s := ContextSummary{
		Engine:      c.EngineName,
		RunID:       c.RunID,
		Target:      c.TargetOrg.Alias,
		ScratchOrg:  c.TargetOrg.IsScratchOrg,
		SkipGroups:  c.SkipGroups,
		SkipActions: c.SkipActions,
		DryRun:      c.DryRun,
	}
	if c.Recipe != nil {
		s.Recipe = c.Recipe.Name
		s.RecipeVersion = c.Recipe.Version
		s.RecipeType = c.Recipe.Type
	}
	return s
}

// ContextSummary is the serializable snapshot of a run context.
type ContextSummary struct {
	// Engine is the engine name.
	Engine string `json:"engine"`

	// Recipe is the recipe name.
	Recipe string `json:"recipe"`

	// RecipeVersion is the recipe version.
	RecipeVersion string `json:"recipe_version,omitempty"`

	// RecipeType is the engine family the recipe targets.
	RecipeType string `json:"recipe_type,omitempty"`

	// RunID is the unique identifier of the run.
	RunID string `json:"run_id"`

	// Target is the alias of the target org.
	Target string `json:"target,omitempty"`

	// ScratchOrg reports whether the target is a scratch org.
	ScratchOrg bool `json:"scratch_org"`

	// SkipGroups lists the group aliases excluded from the plan.
	SkipGroups []string `json:"skip_groups,omitempty"`

	// SkipActions lists the action names excluded from the plan.
	SkipActions []string `json:"skip_actions,omitempty"`

	// DryRun reports whether the run executed without side effects.
	DryRun bool `json:"dry_run"`
}
