package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/orgforge/orgforge/pkg/executors"
	"github.com/orgforge/orgforge/pkg/recipes"
	"github.com/orgforge/orgforge/pkg/results"
	"github.com/orgforge/orgforge/pkg/telemetry"
)

// Engine drives a recipe through the shared three-stage lifecycle:
// Initialize runs the family's hooks to build the run context, CompilePlan
// applies the skip and interpolation rules, and Execute runs the plan's
// steps sequentially, growing the result tree as it goes. An engine
// belongs to a single run and is not safe for concurrent use.
type Engine struct {
	name   string
	recipe *recipes.Recipe
	hooks  Hooks

	ec       *Context
	registry *Registry

	preBuild  []recipes.StepGroup
	postBuild []recipes.StepGroup
	plan      *Plan
	node      *results.Node

	recorder RunRecorder
	gate     PolicyGate
	events   *telemetry.EventPublisher
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
	log      *telemetry.Logger

	initialized bool
	executing   bool
}

// Config carries the collaborators and options an engine is constructed
// with. Everything except the recipe's project association is optional.
type Config struct {
	// Project overrides the recipe's project association.
	Project *recipes.Project

	// Options are the compile options for the run.
	Options recipes.CompileOptions

	// RunID overrides the generated run identifier. Useful when the
	// caller correlates the run with external systems.
	RunID string

	// Recorder persists run history. Optional.
	Recorder RunRecorder

	// Gate admits the run before the first step. Optional.
	Gate PolicyGate

	// Events receives run lifecycle events. Optional.
	Events *telemetry.EventPublisher

	// Metrics records run measurements. Optional.
	Metrics *telemetry.Metrics

	// Tracer creates run and step spans. Optional.
	Tracer *telemetry.Tracer

	// Executors is the executor set actions dispatch commands through.
	Executors *executors.Set

	// Logger overrides the project logger.
	Logger *telemetry.Logger
}

// New creates an engine for one run of the recipe. The name identifies
// the engine family and becomes the name of the engine result node. The
// hooks customize initialization and execution for the family.
func New(name string, recipe *recipes.Recipe, hooks Hooks, cfg Config) (*Engine, error) {
	if name == "" {
		return nil, NewValidationError("engine name must not be empty")
	}
	if recipe == nil {
		return nil, NewValidationError("recipe must not be nil").WithEngine(name)
	}
	if hooks == nil {
		return nil, NewValidationError("engine hooks must not be nil").
			WithEngine(name).
			WithRecipe(recipe.Name)
	}

	prj := cfg.Project
	if prj == nil {
		prj = recipe.Project()
	}
	if prj == nil {
		return nil, NewValidationError("engine requires a project").
			WithEngine(name).
			WithRecipe(recipe.Name)
	}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	log := cfg.Logger
	if log == nil {
		log = prj.Logger()
	}
	log = log.WithEngine(name).
		WithRunID(runID).
		WithRecipe(recipe.Name, recipe.Version)

	node := results.NewNode(name, results.TypeEngine, results.Options{
		BubbleError:   true,
		BubbleFailure: true,
	})

	ec := &Context{
		RunID:      runID,
		EngineName: name,
		Recipe:     recipe,
		Project:    prj,
		Options:    cfg.Options,
		Executors:  cfg.Executors,
		Log:        log,
	}

	return &Engine{
		name:     name,
		recipe:   recipe,
		hooks:    hooks,
		ec:       ec,
		registry: NewRegistry(),
		node:     node,
		recorder: cfg.Recorder,
		gate:     cfg.Gate,
		events:   cfg.Events,
		metrics:  cfg.Metrics,
		tracer:   cfg.Tracer,
		log:      log,
	}, nil
}

// Initialize runs the family's initialization hooks in their fixed order,
// then validates the assembled engine. The hooks run in sequence: context,
// target org, pre-build groups, post-build groups, skip actions, skip
// groups, action registry, result detail. Initializing an already
// initialized engine is a no-op.
func (e *Engine) Initialize(ctx context.Context) error {
	if e.initialized {
		return nil
	}

	phases := []struct {
		name string
		run  func(context.Context) error
	}{
		{"context", func(ctx context.Context) error {
			return e.hooks.InitializeContext(ctx, e.ec)
		}},
		{"target org", func(ctx context.Context) error {
			return e.hooks.InitializeTargetOrg(ctx, e.ec)
		}},
		{"pre-build groups", func(ctx context.Context) error {
			groups, err := e.hooks.InitializePreBuildGroups(ctx, e.ec)
			if err != nil {
				return err
			}
			e.preBuild = groups
			return nil
		}},
		{"post-build groups", func(ctx context.Context) error {
			groups, err := e.hooks.InitializePostBuildGroups(ctx, e.ec)
			if err != nil {
				return err
			}
			e.postBuild = groups
			return nil
		}},
		{"skip actions", func(ctx context.Context) error {
			actions, err := e.hooks.InitializeSkipActions(ctx, e.ec)
			if err != nil {
				return err
			}
			e.ec.SkipActions = actions
			return nil
		}},
		{"skip groups", func(ctx context.Context) error {
			groups, err := e.hooks.InitializeSkipGroups(ctx, e.ec)
			if err != nil {
				return err
			}
			e.ec.SkipGroups = groups
			return nil
		}},
		{"action registry", func(ctx context.Context) error {
			return e.hooks.InitializeActions(ctx, e.ec, e.registry)
		}},
		{"result detail", func(ctx context.Context) error {
			detail, err := e.hooks.FinalizeResultDetail(ctx, e.ec)
			if err != nil {
				return err
			}
			if detail != nil {
				e.node.Detail = detail
			}
			return nil
		}},
	}

	for _, phase := range phases {
		if err := phase.run(ctx); err != nil {
			return fmt.Errorf("initialize %s: %w", phase.name, err)
		}
	}

	if err := e.validateEngine(); err != nil {
		return err
	}

	e.initialized = true
	e.log.WithFields(map[string]interface{}{
		"actions": e.registry.Len(),
		"target":  e.ec.TargetOrg.Alias,
	}).Debug("engine initialized")
	return nil
}

// validateEngine checks the engine invariants after the initialization
// hooks have run. Every violated invariant is reported, not just the
// first.
func (e *Engine) validateEngine() error {
	var problems []string

	if e.registry.Len() == 0 {
		problems = append(problems, "action registry is empty")
	}
	if e.preBuild == nil {
		problems = append(problems, "pre-build groups are nil")
	}
	if e.postBuild == nil {
		problems = append(problems, "post-build groups are nil")
	}
	if e.ec.TargetOrg.Alias == "" {
		problems = append(problems, "target org alias is empty")
	}
	if e.ec.SkipActions == nil {
		problems = append(problems, "skip-actions list is nil")
	}
	if e.ec.SkipGroups == nil {
		problems = append(problems, "skip-groups list is nil")
	}

	if len(problems) == 0 {
		return nil
	}
	return NewValidationError(strings.Join(problems, "; ")).
		WithEngine(e.name).
		WithRecipe(e.recipe.Name)
}

// Name returns the engine name.
func (e *Engine) Name() string {
	return e.name
}

// RunID returns the unique identifier of the run.
func (e *Engine) RunID() string {
	return e.ec.RunID
}

// Plan returns the compiled plan, or nil before CompilePlan.
func (e *Engine) Plan() *Plan {
	return e.plan
}

// Context returns the run context.
func (e *Engine) Context() *Context {
	return e.ec
}

// Result returns the root of the run's result tree.
func (e *Engine) Result() *results.Node {
	return e.node
}

// Initialized reports whether Initialize completed.
func (e *Engine) Initialized() bool {
	return e.initialized
}
