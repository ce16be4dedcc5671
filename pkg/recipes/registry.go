package recipes

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/orgforge/orgforge/pkg/config"
	"github.com/orgforge/orgforge/pkg/results"
)

// Engine prepares and runs the operational plan for one recipe. Concrete
// implementations live in their own packages and reach this interface
// through the registry.
type Engine interface {
	// Name identifies the engine implementation.
	Name() string

	// RunID is the identifier correlating this engine run across logs,
	// events, traces, and stored history. Assigned at construction.
	RunID() string

	// Initialize runs the engine's setup hooks. It must complete before
	// CompilePlan.
	Initialize(ctx context.Context) error

	// CompilePlan turns the recipe's step groups into the execution plan,
	// applying the skip lists.
	CompilePlan(ctx context.Context) error

	// Execute runs the compiled plan. The returned node is the engine's
	// result tree; it is returned in both outcomes when one exists. A
	// non-nil error means the run ended in an error, and the node is then
	// expected to be an engine-typed result in error status.
	Execute(ctx context.Context) (*results.Node, error)
}

// EngineFactory builds an engine for a validated recipe. The factory must
// not start any work; Initialize does that.
type EngineFactory func(prj *Project, r *Recipe, opts CompileOptions) (Engine, error)

// CompileOptions carry invocation-level overrides applied when a recipe is
// compiled into a plan.
type CompileOptions struct {
	// TargetOrgAlias selects the org to run against. Empty selects the
	// recipe's first declared target org.
	TargetOrgAlias string

	// SkipGroups adds group aliases to the recipe's skip list.
	SkipGroups []string

	// SkipActions adds action names to the recipe's skip list.
	SkipActions []string

	// Variables overrides or extends the globals exported by the recipe's
	// variables script.
	Variables map[string]any

	// DryRun compiles the full plan but replaces executor calls with
	// no-op reporting at run time.
	DryRun bool
}

// Registration binds a recipe type to its engine family.
type Registration struct {
	// New builds the engine for a validated recipe of this type.
	New EngineFactory

	// ValidateRecipe runs the family's own recipe checks at read time,
	// after the shared document checks passed. Optional.
	ValidateRecipe func(r *Recipe) []config.ValidationError
}

// Registry maps recipe types to engine registrations. It is safe for
// concurrent use; registration normally happens once at startup.
type Registry struct {
	mu            sync.RWMutex
	registrations map[string]Registration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{registrations: make(map[string]Registration)}
}

// Register binds recipeType to reg. Registering an empty type, a nil
// factory, or a type that is already bound is an error.
func (reg *Registry) Register(recipeType string, registration Registration) error {
	if recipeType == "" {
		return fmt.Errorf("recipe type must not be empty")
	}
	if registration.New == nil {
		return fmt.Errorf("registration for recipe type %q has no engine factory", recipeType)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, exists := reg.registrations[recipeType]; exists {
		return fmt.Errorf("recipe type %q is already registered", recipeType)
	}
	reg.registrations[recipeType] = registration
	return nil
}

// MustRegister is Register for startup wiring; it panics on error.
func (reg *Registry) MustRegister(recipeType string, registration Registration) {
	if err := reg.Register(recipeType, registration); err != nil {
		panic(err)
	}
}

// Lookup returns the registration for recipeType.
func (reg *Registry) Lookup(recipeType string) (Registration, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	registration, ok := reg.registrations[recipeType]
	return registration, ok
}

// Types returns the registered recipe types in sorted order.
func (reg *Registry) Types() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	types := make([]string, 0, len(reg.registrations))
	for t := range reg.registrations {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
