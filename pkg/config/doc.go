// Package config loads and validates the declarative documents that drive
// orgforge: recipe files, org requirement documents, and scratch org
// definitions.
//
// # Loading
//
// Loader is the file-reading collaborator the recipe layer delegates to. It
// resolves a filename against a root folder, reads JSON or YAML, and returns
// the raw document as a map:
//
//	loader := config.NewLoader()
//	doc, err := loader.ReadConfigFile("/projects/demo", "recipes/build.json")
//	if config.IsNotFound(err) {
//	    // the file does not exist under the project root
//	}
//
// # Schema Validation
//
// SchemaRegistry holds compiled CUE schemas and validates raw documents
// against them, reporting every violation in one pass rather than stopping
// at the first:
//
//	registry := config.NewSchemaRegistry()
//	if errs := registry.Validate(config.SchemaRecipe, doc); len(errs) > 0 {
//	    // each entry carries file position, field path, and message
//	}
//
// Built-in schemas cover recipe documents (including the conditional
// scratchDefJson/orgReqsJson requirements on target orgs), org requirement
// documents, and scratch org definitions. Custom schemas can be registered
// for project-specific validation.
//
// # Variables
//
// Evaluator runs a recipe's optional variables script in a sandboxed
// Starlark thread with a deadline. Exported globals become engine context
// variables. ExpandString and ExpandOptions substitute ${name} placeholders
// in step options from those variables at plan time.
//
// # Security
//
// Starlark execution is sandboxed: no filesystem access, no network access,
// deadline enforcement, and only safe built-in functions.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use.
package config
