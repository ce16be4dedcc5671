package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/orgforge/orgforge/pkg/config"
	"github.com/orgforge/orgforge/pkg/recipes"
)

// GroupOrigin records which section of the plan a step group came from.
type GroupOrigin string

const (
	// OriginPreBuild marks groups the engine runs before the recipe's own.
	OriginPreBuild GroupOrigin = "pre-build"

	// OriginRecipe marks groups declared by the recipe.
	OriginRecipe GroupOrigin = "recipe"

	// OriginPostBuild marks groups the engine runs after the recipe's own.
	OriginPostBuild GroupOrigin = "post-build"
)

// Validate checks if the group origin is valid.
func (o GroupOrigin) Validate() error {
	switch o {
	case OriginPreBuild, OriginRecipe, OriginPostBuild:
		return nil
	default:
		return NewValidationError(fmt.Sprintf("invalid group origin: %s", o))
	}
}

// SkipKind distinguishes group-level skips from step-level skips.
type SkipKind string

const (
	// SkipKindGroup marks a whole step group excluded from the plan.
	SkipKindGroup SkipKind = "group"

	// SkipKindStep marks a single step excluded from the plan.
	SkipKindStep SkipKind = "step"
)

// Validate checks if the skip kind is valid.
func (k SkipKind) Validate() error {
	switch k {
	case SkipKindGroup, SkipKindStep:
		return nil
	default:
		return NewValidationError(fmt.Sprintf("invalid skip kind: %s", k))
	}
}

// Skip reasons recorded in the plan. They double as low-cardinality
// metric labels.
const (
	// SkipReasonGroupAlias marks a group skipped because its alias is in
	// the skip-groups list.
	SkipReasonGroupAlias = "alias in skipGroups"

	// SkipReasonAllActions marks a group skipped because every one of its
	// steps invokes a skip-listed action.
	SkipReasonAllActions = "every step action in skipActions"

	// SkipReasonAction marks a step skipped because its action is in the
	// skip-actions list.
	SkipReasonAction = "action in skipActions"
)

// Plan is the compiled, ordered execution plan of a run: the surviving
// step groups in execution order plus a record of everything the skip
// rules excluded.
type Plan struct {
	// RunID is the run the plan was compiled for.
	RunID string `json:"run_id"`

	// Recipe is the recipe name.
	Recipe string `json:"recipe"`

	// Engine is the engine name.
	Engine string `json:"engine"`

	// Target is the alias of the target org.
	Target string `json:"target,omitempty"`

	// CompiledAt is when the plan was compiled.
	CompiledAt time.Time `json:"compiled_at"`

	// Groups are the surviving step groups in execution order.
	Groups []PlanGroup `json:"groups"`

	// Skips records the groups and steps the skip rules excluded.
	Skips []SkipRecord `json:"skips,omitempty"`
}

// Steps returns the total number of steps across all plan groups.
func (p *Plan) Steps() int {
	n := 0
	for _, g := range p.Groups {
		n += len(g.Steps)
	}
	return n
}

// PlanGroup is one surviving step group in a compiled plan.
type PlanGroup struct {
	// Name is the group's display name.
	Name string `json:"name"`

	// Alias is the group's stable identifier.
	Alias string `json:"alias"`

	// Description is the group's description.
	Description string `json:"description,omitempty"`

	// Origin records which section of the plan the group came from.
	Origin GroupOrigin `json:"origin"`

	// Steps are the group's surviving steps in declaration order.
	Steps []PlanStep `json:"steps"`
}

// PlanStep is one step in a compiled plan with its options fully
// interpolated.
type PlanStep struct {
	// Name is the step name.
	Name string `json:"name"`

	// Description is the step description.
	Description string `json:"description,omitempty"`

	// Action is the action the step invokes.
	Action string `json:"action"`

	// Options are the step options with variable references resolved.
	Options map[string]any `json:"options,omitempty"`
}

// SkipRecord documents one group or step the skip rules excluded from a
// plan.
type SkipRecord struct {
	// Kind distinguishes group-level from step-level skips.
	Kind SkipKind `json:"kind"`

	// Group is the alias of the skipped group, or of the group the
	// skipped step belongs to.
	Group string `json:"group"`

	// Step is the skipped step name, for step-level skips.
	Step string `json:"step,omitempty"`

	// Reason is why the group or step was excluded.
	Reason string `json:"reason"`
}

// CompilePlan compiles the engine's pre-build groups, the recipe's step
// groups, and the engine's post-build groups, in that order, into the
// run's execution plan. Skip rules exclude groups by alias and steps by
// action; a group whose steps all invoke skip-listed actions is skipped
// whole. Empty groups are rejected regardless of skip rules. Option
// values are interpolated against the run variables; unresolved
// references fail compilation with every missing name reported.
// Compiling an already compiled engine is a no-op.
func (e *Engine) CompilePlan(ctx context.Context) error {
	if !e.initialized {
		return NewNotInitializedError("plan compilation requires an initialized engine").
			WithEngine(e.name)
	}
	if e.plan != nil {
		return nil
	}

	plan := &Plan{
		RunID:      e.ec.RunID,
		Recipe:     e.recipe.Name,
		Engine:     e.name,
		Target:     e.ec.TargetOrg.Alias,
		CompiledAt: time.Now(),
		Groups:     make([]PlanGroup, 0),
		Skips:      make([]SkipRecord, 0),
	}

	sections := []struct {
		origin GroupOrigin
		groups []recipes.StepGroup
	}{
		{OriginPreBuild, e.preBuild},
		{OriginRecipe, e.recipe.StepGroups},
		{OriginPostBuild, e.postBuild},
	}

	for _, section := range sections {
		for _, group := range section.groups {
			compiled, err := e.compileGroup(group, section.origin, plan)
			if err != nil {
				return err
			}
			if compiled != nil {
				plan.Groups = append(plan.Groups, *compiled)
			}
		}
	}

	e.plan = plan
	e.log.WithFields(map[string]interface{}{
		"groups":  len(plan.Groups),
		"steps":   plan.Steps(),
		"skipped": len(plan.Skips),
	}).Debug("plan compiled")
	return nil
}

// compileGroup applies the skip rules and option interpolation to one
// step group. It returns nil when the group is skipped, recording the
// skip on the plan.
func (e *Engine) compileGroup(group recipes.StepGroup, origin GroupOrigin, plan *Plan) (*PlanGroup, error) {
	alias := groupAlias(group)

	if len(group.Steps) == 0 {
		return nil, NewNoStepsError(alias).
			WithEngine(e.name).
			WithRecipe(e.recipe.Name)
	}

	if e.ec.ShouldSkipGroup(alias) {
		e.recordGroupSkip(plan, group, alias, SkipReasonGroupAlias)
		return nil, nil
	}

	allSkipped := true
	for _, step := range group.Steps {
		if !e.ec.ShouldSkipAction(step.Action) {
			allSkipped = false
			break
		}
	}
	if allSkipped {
		e.recordGroupSkip(plan, group, alias, SkipReasonAllActions)
		return nil, nil
	}

	compiled := PlanGroup{
		Name:        group.Name,
		Alias:       alias,
		Description: group.Description,
		Origin:      origin,
		Steps:       make([]PlanStep, 0, len(group.Steps)),
	}

	for _, step := range group.Steps {
		if e.ec.ShouldSkipAction(step.Action) {
			plan.Skips = append(plan.Skips, SkipRecord{
				Kind:   SkipKindStep,
				Group:  alias,
				Step:   step.Name,
				Reason: SkipReasonAction,
			})
			if e.events != nil {
				_ = e.events.PublishStepSkipped(e.ec.RunID, step.Name, step.Action, SkipReasonAction)
			}
			if e.metrics != nil {
				e.metrics.RecordStepSkipped(SkipReasonAction)
			}
			continue
		}

		options, missing := config.ExpandOptions(step.Options, e.ec.Variables)
		if len(missing) > 0 {
			return nil, NewUnknownVariableError(missing).
				WithEngine(e.name).
				WithRecipe(e.recipe.Name).
				WithGroup(alias).
				WithStep(step.Name)
		}

		compiled.Steps = append(compiled.Steps, PlanStep{
			Name:        step.Name,
			Description: step.Description,
			Action:      step.Action,
			Options:     options,
		})
	}

	return &compiled, nil
}

// recordGroupSkip records a group-level skip on the plan and publishes
// the matching telemetry.
func (e *Engine) recordGroupSkip(plan *Plan, group recipes.StepGroup, alias, reason string) {
	plan.Skips = append(plan.Skips, SkipRecord{
		Kind:   SkipKindGroup,
		Group:  alias,
		Reason: reason,
	})
	if e.events != nil {
		_ = e.events.PublishGroupSkipped(e.ec.RunID, alias, reason)
	}
	if e.metrics != nil {
		for range group.Steps {
			e.metrics.RecordStepSkipped(reason)
		}
	}
	e.log.WithGroup(alias).WithField("reason", reason).Debug("step group skipped")
}

// groupAlias returns the group's stable identifier, falling back to its
// name when no alias is declared.
func groupAlias(group recipes.StepGroup) string {
	if group.Alias != "" {
		return group.Alias
	}
	return group.Name
}
