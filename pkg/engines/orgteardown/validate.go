package orgteardown

import (
	"github.com/orgforge/orgforge/pkg/config"
	"github.com/orgforge/orgforge/pkg/recipes"
)

// familyActions is the fixed action set InitializeActions registers,
// sorted by name.
var familyActions = []string{
	"delete-scratch-org",
	"record-org-state",
	"remove-org-bundle",
	"run-remote-script",
	"verify-target",
}

// ActionNames returns the names of the family's actions.
func ActionNames() []string {
	names := make([]string, len(familyActions))
	copy(names, familyActions)
	return names
}

// ValidateRecipe runs the family's read-time recipe checks: steps and
// handlers must invoke org-teardown actions, and handler references
// must resolve to handlers the recipe declares.
func ValidateRecipe(r *recipes.Recipe) []config.ValidationError {
	problems := recipes.ValidateActionRefs(r, RecipeType, familyActions)
	return append(problems, recipes.ValidateHandlerRefs(r)...)
}
