package orgteardown

import (
	"context"
	"path"

	"github.com/orgforge/orgforge/pkg/actions"
	"github.com/orgforge/orgforge/pkg/engine"
	"github.com/orgforge/orgforge/pkg/engines/target"
	"github.com/orgforge/orgforge/pkg/executors"
	"github.com/orgforge/orgforge/pkg/recipes"
	"github.com/orgforge/orgforge/pkg/telemetry"
)

// RecipeType is the recipe type this family handles. It doubles as the
// engine name on result trees and in logs.
const RecipeType = "org-teardown"

// Config carries the collaborators every run of the family shares. All
// fields are optional.
type Config struct {
	// Recorder persists run history.
	Recorder engine.RunRecorder

	// Gate admits runs before the first step.
	Gate engine.PolicyGate

	// Events receives run lifecycle events.
	Events *telemetry.EventPublisher

	// Metrics records run measurements.
	Metrics *telemetry.Metrics

	// Tracer creates run and step spans.
	Tracer *telemetry.Tracer

	// Logger overrides the project logger.
	Logger *telemetry.Logger

	// Executors overrides the executor set the run would otherwise
	// provision from the target org.
	Executors *executors.Set
}

// Register binds the family to its recipe type in the registry.
func Register(reg *recipes.Registry, cfg Config) error {
	return reg.Register(RecipeType, Registration(cfg))
}

// Registration returns the family's registration for callers that
// assemble registries themselves.
func Registration(cfg Config) recipes.Registration {
	return recipes.Registration{
		New: func(prj *recipes.Project, r *recipes.Recipe, opts recipes.CompileOptions) (recipes.Engine, error) {
			return newEngine(prj, r, opts, cfg)
		},
		ValidateRecipe: ValidateRecipe,
	}
}

// newEngine builds the engine for one run of an org-teardown recipe.
func newEngine(prj *recipes.Project, r *recipes.Recipe, opts recipes.CompileOptions, cfg Config) (recipes.Engine, error) {
	return engine.New(RecipeType, r, &hooks{}, engine.Config{
		Project:   prj,
		Options:   opts,
		Recorder:  cfg.Recorder,
		Gate:      cfg.Gate,
		Events:    cfg.Events,
		Metrics:   cfg.Metrics,
		Tracer:    cfg.Tracer,
		Executors: cfg.Executors,
		Logger:    cfg.Logger,
	})
}

// hooks wires the family into the engine lifecycle through the shared
// target initialization.
type hooks struct {
	target.Hooks
}

// InitializePreBuildGroups returns the teardown preparation group: the
// target org is verified before anything is removed.
func (h *hooks) InitializePreBuildGroups(ctx context.Context, ec *engine.Context) ([]recipes.StepGroup, error) {
	return []recipes.StepGroup{{
		Name:        "Teardown preparation",
		Alias:       "teardown-prep",
		Description: "Verify the target org before tearing it down",
		Steps: []recipes.Step{{
			Name:        "verify-target",
			Description: "Probe the target org",
			Action:      "verify-target",
		}},
	}}, nil
}

// InitializePostBuildGroups returns the teardown finalization group:
// the org's final state is recorded after the recipe steps.
func (h *hooks) InitializePostBuildGroups(ctx context.Context, ec *engine.Context) ([]recipes.StepGroup, error) {
	return []recipes.StepGroup{{
		Name:        "Teardown finalization",
		Alias:       "teardown-final",
		Description: "Record the org state after teardown",
		Steps: []recipes.Step{{
			Name:        "record-org-state",
			Description: "Snapshot the org state",
			Action:      "record-org-state",
		}},
	}}, nil
}

// InitializeActions registers the family actions, shaped for the
// resolved target: scratch orgs are deleted through the org CLI,
// persistent orgs are cleaned up over SSH.
func (h *hooks) InitializeActions(ctx context.Context, ec *engine.Context, reg *engine.Registry) error {
	kind := executors.KindSSH
	if ec.TargetOrg.IsScratchOrg {
		kind = executors.KindLocal
	}

	_, remoteBundle := h.BundleDefaults()
	stateRoot := ""
	if remoteBundle != "" {
		stateRoot = path.Dir(remoteBundle)
	}

	all := []engine.Action{
		actions.NewVerifyTarget(kind),
		actions.NewDeleteScratchOrg(),
		actions.NewRemoveOrgBundle(remoteBundle, h.SudoPassword()),
		actions.NewRunRemoteScript(h.SudoPassword(), h.SetupScripts()),
		actions.NewRecordOrgState(kind, stateRoot),
	}
	for _, a := range all {
		if err := reg.Register(a); err != nil {
			return err
		}
	}
	return nil
}
