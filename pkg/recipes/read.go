package recipes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/orgforge/orgforge/pkg/config"
)

// requiredRecipeKeys are the top-level keys every recipe document must
// carry, in the order the document contract lists them. The scan reports
// every absent key in a single error.
var requiredRecipeKeys = []string{
	"recipeName",
	"description",
	"recipeType",
	"recipeVersion",
	"schemaVersion",
	"options",
	"recipeStepGroups",
	"handlers",
}

// ReadRecipe loads filename from the project root and validates it in
// layers: the required-key scan, the document schema, the structural
// decode, field-level rules, and finally the checks of the engine family
// registered for the recipe's type. Each layer reports all of its
// violations at once. The returned recipe is validated and bound to the
// project.
func (p *Project) ReadRecipe(ctx context.Context, filename string) (*Recipe, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := p.loader.ReadConfigFile(p.rootFolder, filename)
	if err != nil {
		return nil, fmt.Errorf("read recipe %q: %w", filename, err)
	}

	if missing := missingRecipeKeys(doc); len(missing) > 0 {
		return nil, &InvalidRecipeError{Recipe: filename, MissingKeys: missing}
	}

	if problems := p.schemas.ValidateRecipeDocument(doc); len(problems) > 0 {
		return nil, &InvalidRecipeError{Recipe: filename, Problems: problems}
	}

	recipe, err := decodeRecipe(doc)
	if err != nil {
		return nil, fmt.Errorf("decode recipe %q: %w", filename, err)
	}

	if problems := p.fieldProblems(recipe); len(problems) > 0 {
		return nil, &InvalidRecipeError{Recipe: filename, Problems: problems}
	}

	registration, ok := p.registry.Lookup(recipe.Type)
	if !ok {
		return nil, &UnknownEngineError{RecipeType: recipe.Type, Known: p.registry.Types()}
	}
	if registration.ValidateRecipe != nil {
		if problems := registration.ValidateRecipe(recipe); len(problems) > 0 {
			return nil, &InvalidRecipeError{Recipe: filename, Problems: problems}
		}
	}

	recipe.project = p
	recipe.filename = filename
	recipe.validated = true

	p.log.WithRecipe(recipe.Name, recipe.Version).
		WithField("recipe_type", recipe.Type).
		WithField("step_groups", len(recipe.StepGroups)).
		Debug("recipe validated")

	return recipe, nil
}

// missingRecipeKeys returns the required top-level keys absent from doc.
// A key whose value is nil or an empty string counts as absent.
func missingRecipeKeys(doc map[string]any) []string {
	var missing []string
	for _, key := range requiredRecipeKeys {
		value, ok := doc[key]
		if !ok || value == nil || value == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// decodeRecipe converts the raw document into a Recipe through a JSON
// round trip, so json tags drive the mapping for both JSON and YAML
// sources.
func decodeRecipe(doc map[string]any) (*Recipe, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var recipe Recipe
	if err := json.Unmarshal(raw, &recipe); err != nil {
		return nil, err
	}
	return &recipe, nil
}

// fieldProblems runs the struct-level validation rules and converts every
// violation into a ValidationError.
func (p *Project) fieldProblems(recipe *Recipe) []config.ValidationError {
	err := p.validate.Struct(recipe)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []config.ValidationError{{Message: err.Error(), Severity: "error"}}
	}

	problems := make([]config.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule = rule + "=" + fe.Param()
		}
		problems = append(problems, config.ValidationError{
			Path:     fe.Namespace(),
			Message:  fmt.Sprintf("does not satisfy rule %q", rule),
			Severity: "error",
		})
	}
	return problems
}
