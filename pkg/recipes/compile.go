package recipes

import (
	"context"
	"fmt"
)

// Compile builds the engine for the recipe's type, initializes it, and
// compiles the execution plan. Compiling an already-compiled recipe is a
// no-op; the flag only moves forward. A recipe that never passed read-time
// validation cannot be compiled.
func (r *Recipe) Compile(ctx context.Context, opts CompileOptions) error {
	if r.compiled {
		return nil
	}
	if !r.validated || r.project == nil {
		return &NotValidatedError{Recipe: r.Name}
	}

	registration, ok := r.project.registry.Lookup(r.Type)
	if !ok {
		return &UnknownEngineError{RecipeType: r.Type, Known: r.project.registry.Types()}
	}

	eng, err := registration.New(r.project, r, opts)
	if err != nil {
		return fmt.Errorf("build %s engine for recipe %q: %w", r.Type, r.Name, err)
	}
	if err := eng.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize %s engine for recipe %q: %w", r.Type, r.Name, err)
	}
	if err := eng.CompilePlan(ctx); err != nil {
		return fmt.Errorf("compile plan for recipe %q: %w", r.Name, err)
	}

	r.engine = eng
	r.compiled = true

	r.project.log.WithRecipe(r.Name, r.Version).
		WithEngine(eng.Name()).
		WithRunID(eng.RunID()).
		Debug("recipe compiled")

	return nil
}
