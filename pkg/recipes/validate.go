package recipes

import (
	"fmt"

	"github.com/orgforge/orgforge/pkg/config"
)

// ValidateActionRefs checks that every step and handler in the recipe
// invokes one of the actions the engine family registers. Families call
// it from their Registration.ValidateRecipe with their own action set.
func ValidateActionRefs(r *Recipe, family string, actionNames []string) []config.ValidationError {
	known := make(map[string]struct{}, len(actionNames))
	for _, name := range actionNames {
		known[name] = struct{}{}
	}

	var problems []config.ValidationError
	for _, group := range r.StepGroups {
		for _, step := range group.Steps {
			if _, ok := known[step.Action]; ok {
				continue
			}
			problems = append(problems, config.ValidationError{
				Path:     fmt.Sprintf("recipeStepGroups.%s.%s.action", groupKey(group), step.Name),
				Message:  fmt.Sprintf("action %q is not a %s action", step.Action, family),
				Severity: "error",
			})
		}
	}
	for _, handler := range r.Handlers {
		if _, ok := known[handler.Action]; ok {
			continue
		}
		problems = append(problems, config.ValidationError{
			Path:     fmt.Sprintf("handlers.%s.action", handler.Name),
			Message:  fmt.Sprintf("action %q is not a %s action", handler.Action, family),
			Severity: "error",
		})
	}
	return problems
}

// ValidateHandlerRefs checks that every onSuccess and onError reference
// in the recipe resolves to a declared handler.
func ValidateHandlerRefs(r *Recipe) []config.ValidationError {
	declared := make(map[string]struct{}, len(r.Handlers))
	for _, handler := range r.Handlers {
		declared[handler.Name] = struct{}{}
	}

	var problems []config.ValidationError
	for _, group := range r.StepGroups {
		for _, step := range group.Steps {
			for _, ref := range []struct{ field, name string }{
				{"onSuccess", step.OnSuccess},
				{"onError", step.OnError},
			} {
				if ref.name == "" {
					continue
				}
				if _, ok := declared[ref.name]; ok {
					continue
				}
				problems = append(problems, config.ValidationError{
					Path:     fmt.Sprintf("recipeStepGroups.%s.%s.%s", groupKey(group), step.Name, ref.field),
					Message:  fmt.Sprintf("handler %q is not declared", ref.name),
					Severity: "error",
				})
			}
		}
	}
	return problems
}

// groupKey identifies a group in validation paths, falling back to the
// name when no alias is declared.
func groupKey(group StepGroup) string {
	if group.Alias != "" {
		return group.Alias
	}
	return group.Name
}
