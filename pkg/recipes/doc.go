// Package recipes implements the recipe model: loading declarative recipe
// documents, validating them, compiling them into an executable engine, and
// driving that engine while recording the outcome as a result tree.
//
// # Lifecycle
//
// A recipe moves through three monotonic phases:
//
//	prj, _ := recipes.NewProject(recipes.ProjectConfig{
//		RootFolder: "./recipes",
//		Registry:   registry,
//	})
//	recipe, err := prj.ReadRecipe(ctx, "org-build.json")   // validated=true
//	err = recipe.Compile(ctx, recipes.CompileOptions{})    // compiled=true
//	node, err := recipe.Execute(ctx)                       // result tree
//
// ReadRecipe loads the document through the project's config loader and
// validates it in layers: a required-key scan that names every missing
// top-level key in a single InvalidRecipeError, the document schema, a
// structural decode, field-level rules, and finally the checks registered by
// the engine family that owns the recipe type. Compile dispatches through
// the engine registry keyed by recipeType and holds on to the built engine.
// Execute delegates to the engine and owns the recipe-level result node: the
// engine's result is attached as a child, and when the run went wrong the
// caller receives the finalized recipe node wrapped in a results.Rejection,
// never the raw cause.
//
// # Engine registry
//
// Concrete engines register an EngineFactory (plus optional read-time recipe
// checks) under their recipe type. The registry is how new recipe types are
// added without touching this package.
package recipes
