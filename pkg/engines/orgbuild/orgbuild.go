package orgbuild

import (
	"context"
	"path"
	"path/filepath"

	"github.com/orgforge/orgforge/pkg/actions"
	"github.com/orgforge/orgforge/pkg/engine"
	"github.com/orgforge/orgforge/pkg/engines/target"
	"github.com/orgforge/orgforge/pkg/executors"
	"github.com/orgforge/orgforge/pkg/recipes"
	"github.com/orgforge/orgforge/pkg/telemetry"
)

// RecipeType is the recipe type this family handles. It doubles as the
// engine name on result trees and in logs.
const RecipeType = "org-build"

// adminUserModule is the project-relative path of the admin user plugin
// a recipe can override with the module step option.
const adminUserModule = "plugins/adminuser.wasm"

// wasmActions lists the family actions that need the WASM runtime.
var wasmActions = []string{"configure-admin-user"}

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
	// provision from the target org. Lets callers dispatch against
	// pre-built or fake executors.
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

// newEngine builds the engine for one run of an org-build recipe.
func newEngine(prj *recipes.Project, r *recipes.Recipe, opts recipes.CompileOptions, cfg Config) (recipes.Engine, error) {
	h := &hooks{}
	h.WASMActions = wasmActions

	return engine.New(RecipeType, r, h, engine.Config{
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

// hooks wires the family into the engine lifecycle. The embedded
// target.Hooks resolves the target org, parses its requirements, and
// provisions the executor set; the overrides here contribute the
// family's wrapper groups and actions.
type hooks struct {
	target.Hooks
}

// InitializePreBuildGroups returns the org preparation group: the
// target org is verified before any recipe step runs.
func (h *hooks) InitializePreBuildGroups(ctx context.Context, ec *engine.Context) ([]recipes.StepGroup, error) {
	return []recipes.StepGroup{{
		Name:        "Org preparation",
		Alias:       "org-prep",
		Description: "Verify the target org before building",
		Steps: []recipes.Step{{
			Name:        "verify-target",
			Description: "Probe the target org",
			Action:      "verify-target",
		}},
	}}, nil
}

// InitializePostBuildGroups returns the org finalization group: the
// provisioned org's state is recorded after the recipe steps.
func (h *hooks) InitializePostBuildGroups(ctx context.Context, ec *engine.Context) ([]recipes.StepGroup, error) {
	return []recipes.StepGroup{{
		Name:        "Org finalization",
		Alias:       "org-final",
		Description: "Record the provisioned org state",
		Steps: []recipes.Step{{
			Name:        "record-org-state",
			Description: "Snapshot the org state",
			Action:      "record-org-state",
		}},
	}}, nil
}

// InitializeActions registers the family actions, shaped for the
// resolved target: scratch orgs drive the org CLI locally, persistent
// orgs work over SSH with defaults drawn from the org requirements.
func (h *hooks) InitializeActions(ctx context.Context, ec *engine.Context, reg *engine.Registry) error {
	kind := executors.KindSSH
	if ec.TargetOrg.IsScratchOrg {
		kind = executors.KindLocal
	}

	localBundle, remoteBundle := h.BundleDefaults()
	username, role, shell := h.AdminDefaults()
	module := filepath.Join(ec.Project.RootFolder(), adminUserModule)

	stateRoot := ""
	if remoteBundle != "" {
		stateRoot = path.Dir(remoteBundle)
	}

	all := []engine.Action{
		actions.NewVerifyTarget(kind),
		actions.NewCreateScratchOrg(),
		actions.NewDeleteScratchOrg(),
		actions.NewDeployOrgBundle(actions.BundleDefaults{
			LocalPath:  localBundle,
			RemotePath: remoteBundle,
		}),
		actions.NewRunRemoteScript(h.SudoPassword(), h.SetupScripts()),
		actions.NewInstallPackage(kind, h.Packages()),
		actions.NewConfigureAdminUser(module, actions.AdminDefaults{
			Username: username,
			Role:     role,
			Shell:    shell,
		}),
		actions.NewRecordOrgState(kind, stateRoot),
	}
	for _, a := range all {
		if err := reg.Register(a); err != nil {
			return err
		}
	}
	return nil
}
