package recipes

// Recipe is the decoded, immutable representation of one recipe document.
// The exported fields mirror the document; the unexported state tracks the
// lifecycle phases, which only move forward.
type Recipe struct {
	// Name is the human-readable recipe name.
	Name string `json:"recipeName" validate:"required"`

	// Description explains what the recipe provisions or tears down.
	Description string `json:"description"`

	// Type selects the engine family that compiles and runs this recipe.
	Type string `json:"recipeType" validate:"required"`

	// Version is the author-assigned recipe version.
	Version string `json:"recipeVersion" validate:"required"`

	// SchemaVersion pins the document layout the recipe was written against.
	SchemaVersion string `json:"schemaVersion" validate:"required"`

	// Options carry the run-level knobs shared by every engine family.
	Options Options `json:"options"`

	// StepGroups are the ordered units of work, executed strictly in
	// document order.
	StepGroups []StepGroup `json:"recipeStepGroups" validate:"dive"`

	// Handlers are reserved recipe hooks. They are parsed and carried but
	// have no runtime dispatch yet.
	Handlers []Handler `json:"handlers"`

	// Variables is an optional Starlark script whose exported globals become
	// interpolation variables for step options.
	Variables string `json:"variables,omitempty"`

	project   *Project
	filename  string
	validated bool
	compiled  bool
	engine    Engine
}

// Options are the recipe-level execution knobs.
type Options struct {
	// SkipGroups lists step group aliases excluded from the compiled plan.
	SkipGroups []string `json:"skipGroups"`

	// SkipActions lists action names excluded from the compiled plan.
	SkipActions []string `json:"skipActions"`

	// HaltOnError is reserved. Plans always halt when an error bubbles; the
	// flag is accepted and carried without further runtime semantics.
	HaltOnError bool `json:"haltOnError"`

	// TargetOrgs are the orgs this recipe may run against.
	TargetOrgs []TargetOrg `json:"targetOrgs" validate:"min=1,dive"`
}

// TargetOrg describes one org a recipe can be pointed at.
type TargetOrg struct {
	// OrgName is the display name of the org.
	OrgName string `json:"orgName" validate:"required"`

	// Alias is the short handle used to select the org at run time.
	Alias string `json:"alias" validate:"required"`

	// Description explains the org's purpose.
	Description string `json:"description" validate:"required"`

	// IsScratchOrg distinguishes ephemeral scratch orgs from persistent ones.
	IsScratchOrg bool `json:"isScratchOrg"`

	// ScratchDefJSON names the scratch definition document; required for
	// scratch orgs.
	ScratchDefJSON string `json:"scratchDefJson,omitempty" validate:"required_if=IsScratchOrg true"`

	// OrgReqsJSON names the org requirements document; required for
	// persistent orgs.
	OrgReqsJSON string `json:"orgReqsJson,omitempty" validate:"required_if=IsScratchOrg false"`
}

// StepGroup is an ordered, aliased batch of steps.
type StepGroup struct {
	// Name is the display name of the group.
	Name string `json:"stepGroupName" validate:"required"`

	// Alias is the handle skip lists and logs refer to the group by.
	Alias string `json:"alias" validate:"required"`

	// Description explains the group's purpose.
	Description string `json:"description" validate:"required"`

	// Steps are the group's units of work in execution order. An empty list
	// is rejected when the plan is compiled, not at read time.
	Steps []Step `json:"recipeSteps" validate:"dive"`
}

// Actions returns the action name of every step in document order.
func (g StepGroup) Actions() []string {
	actions := make([]string, len(g.Steps))
	for i, s := range g.Steps {
		actions[i] = s.Action
	}
	return actions
}

// Step is a single named invocation of a registered action.
type Step struct {
	// Name is the display name of the step.
	Name string `json:"stepName" validate:"required"`

	// Description explains what the step does.
	Description string `json:"description,omitempty"`

	// Action names the registered action the step dispatches to.
	Action string `json:"action" validate:"required"`

	// Options are the action-specific parameters. String values may carry
	// ${name} placeholders resolved from the recipe's variables script.
	Options map[string]any `json:"options,omitempty"`

	// OnSuccess is a reserved handler reference.
	OnSuccess string `json:"onSuccess,omitempty"`

	// OnError is a reserved handler reference.
	OnError string `json:"onError,omitempty"`
}

// Handler is a reserved recipe hook. Only its structure is checked.
type Handler struct {
	// Name identifies the handler.
	Name string `json:"handlerName,omitempty"`

	// Description explains the handler's purpose.
	Description string `json:"description,omitempty"`

	// Event names the lifecycle event the handler would bind to.
	Event string `json:"event,omitempty"`

	// Action names the action the handler would dispatch.
	Action string `json:"action,omitempty"`

	// Options are the handler's action parameters.
	Options map[string]any `json:"options,omitempty"`
}

// Validated reports whether the recipe passed every read-time check.
func (r *Recipe) Validated() bool {
	return r.validated
}

// Compiled reports whether an engine has been built and its plan compiled.
func (r *Recipe) Compiled() bool {
	return r.compiled
}

// Engine returns the engine built by Compile, or nil before compilation.
func (r *Recipe) Engine() Engine {
	return r.engine
}

// Project returns the project the recipe was read from.
func (r *Recipe) Project() *Project {
	return r.project
}

// Filename returns the document name the recipe was loaded from.
func (r *Recipe) Filename() string {
	return r.filename
}

// TargetOrg returns the target org with the given alias. An empty alias
// selects the first declared org.
func (r *Recipe) TargetOrg(alias string) (TargetOrg, bool) {
	if len(r.Options.TargetOrgs) == 0 {
		return TargetOrg{}, false
	}
	if alias == "" {
		return r.Options.TargetOrgs[0], true
	}
	for _, org := range r.Options.TargetOrgs {
		if org.Alias == alias {
			return org, true
		}
	}
	return TargetOrg{}, false
}
