package recipes

import (
	"errors"
	"fmt"
	"strings"

	"github.com/orgforge/orgforge/pkg/config"
)

// InvalidRecipeError reports everything wrong with a recipe document in one
// pass: the complete set of missing required top-level keys plus any schema
// or field violations. Callers never have to fix keys one at a time.
type InvalidRecipeError struct {
	// Recipe is the filename or name of the offending recipe.
	Recipe string

	// MissingKeys lists required top-level keys absent from the document, in
	// document-contract order.
	MissingKeys []string

	// Problems lists schema and field validation failures.
	Problems []config.ValidationError
}

// Error implements the error interface.
func (e *InvalidRecipeError) Error() string {
	parts := make([]string, 0, 1+len(e.Problems))
	if len(e.MissingKeys) > 0 {
		parts = append(parts, "missing required keys: "+strings.Join(e.MissingKeys, ", "))
	}
	for _, p := range e.Problems {
		parts = append(parts, p.Error())
	}
	if len(parts) == 0 {
		return fmt.Sprintf("invalid recipe %q", e.Recipe)
	}
	return fmt.Sprintf("invalid recipe %q: %s", e.Recipe, strings.Join(parts, "; "))
}

// NotValidatedError reports a compile attempt on a recipe that never passed
// read-time validation.
type NotValidatedError struct {
	// Recipe is the name of the recipe.
	Recipe string
}

// Error implements the error interface.
func (e *NotValidatedError) Error() string {
	return fmt.Sprintf("recipe %q has not been validated; read it through a project first", e.Recipe)
}

// NotCompiledError reports an execute attempt on a recipe whose plan was
// never compiled.
type NotCompiledError struct {
	// Recipe is the name of the recipe.
	Recipe string
}

// Error implements the error interface.
func (e *NotCompiledError) Error() string {
	return fmt.Sprintf("recipe %q has not been compiled", e.Recipe)
}

// UnknownEngineError reports a recipe type with no registered engine family.
type UnknownEngineError struct {
	// RecipeType is the unregistered type.
	RecipeType string

	// Known lists the registered recipe types.
	Known []string
}

// Error implements the error interface.
func (e *UnknownEngineError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("no engine registered for recipe type %q", e.RecipeType)
	}
	return fmt.Sprintf("no engine registered for recipe type %q (registered: %s)",
		e.RecipeType, strings.Join(e.Known, ", "))
}

// UnexpectedResultShapeError reports an engine rejection that did not carry
// a well-formed engine result in error status. The recipe layer refuses to
// pass malformed trees upward.
type UnexpectedResultShapeError struct {
	// Recipe is the name of the recipe whose engine misbehaved.
	Recipe string

	// Cause is the value the engine actually rejected with.
	Cause error
}

// Error implements the error interface.
func (e *UnexpectedResultShapeError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("engine for recipe %q rejected without a well-formed engine result", e.Recipe)
	}
	return fmt.Sprintf("engine for recipe %q rejected without a well-formed engine result: %v", e.Recipe, e.Cause)
}

// Unwrap exposes the original rejection value.
func (e *UnexpectedResultShapeError) Unwrap() error {
	return e.Cause
}

// IsInvalidRecipe reports whether err is an InvalidRecipeError.
func IsInvalidRecipe(err error) bool {
	var target *InvalidRecipeError
	return errors.As(err, &target)
}

// IsNotCompiled reports whether err is a NotCompiledError.
func IsNotCompiled(err error) bool {
	var target *NotCompiledError
	return errors.As(err, &target)
}

// IsUnknownEngine reports whether err is an UnknownEngineError.
func IsUnknownEngine(err error) bool {
	var target *UnknownEngineError
	return errors.As(err, &target)
}
