package engine

import (
	"context"
	"fmt"

	"github.com/orgforge/orgforge/pkg/config"
	"github.com/orgforge/orgforge/pkg/recipes"
	"github.com/orgforge/orgforge/pkg/results"
)

// Defaults is the stock implementation of Hooks. Engine families embed it
// and override the hooks they customize; at minimum a family must
// override InitializeActions, since an empty action registry fails
// engine validation.
type Defaults struct{}

var _ Hooks = Defaults{}

// InitializeContext evaluates the recipe's variables script, overlays the
// caller-supplied variables on top of its exported globals, and seeds the
// dry-run flag from the compile options.
func (Defaults) InitializeContext(ctx context.Context, ec *Context) error {
	vars := make(map[string]any)

	if script := ec.Recipe.Variables; script != "" {
		input := map[string]any{
			"recipeName":    ec.Recipe.Name,
			"recipeType":    ec.Recipe.Type,
			"recipeVersion": ec.Recipe.Version,
			"options": map[string]any{
				"skipGroups":  ec.Recipe.Options.SkipGroups,
				"skipActions": ec.Recipe.Options.SkipActions,
				"haltOnError": ec.Recipe.Options.HaltOnError,
			},
		}
		result, err := config.NewEvaluator(0).Evaluate(ctx, script, input)
		if err != nil {
			return fmt.Errorf("evaluate recipe variables: %w", err)
		}
		for k, v := range result.Vars {
			vars[k] = v
		}
	}

	for k, v := range ec.Options.Variables {
		vars[k] = v
	}

	ec.Variables = vars
	ec.DryRun = ec.Options.DryRun
	return nil
}

// InitializeTargetOrg resolves the target org selection against the
// recipe's declared orgs and loads the org's requirement documents into
// the context. A missing document fails initialization; use
// config.IsNotFound to distinguish it from a malformed one.
func (Defaults) InitializeTargetOrg(ctx context.Context, ec *Context) error {
	org, ok := ec.Recipe.TargetOrg(ec.Options.TargetOrgAlias)
	if !ok {
		return NewUnknownTargetOrgError(ec.Options.TargetOrgAlias).
			WithEngine(ec.EngineName).
			WithRecipe(ec.Recipe.Name)
	}
	ec.TargetOrg = org

	if ec.TargetRequirements == nil {
		ec.TargetRequirements = make(map[string]any)
	}
	for _, filename := range []string{org.ScratchDefJSON, org.OrgReqsJSON} {
		if filename == "" {
			continue
		}
		doc, err := ec.Project.Loader().ReadConfigFile(ec.Project.RootFolder(), filename)
		if err != nil {
			return fmt.Errorf("load target requirements for org %q: %w", org.Alias, err)
		}
		ec.TargetRequirements[filename] = doc
	}
	return nil
}

// InitializePreBuildGroups returns no pre-build groups.
func (Defaults) InitializePreBuildGroups(ctx context.Context, ec *Context) ([]recipes.StepGroup, error) {
	return []recipes.StepGroup{}, nil
}

// InitializePostBuildGroups returns no post-build groups.
func (Defaults) InitializePostBuildGroups(ctx context.Context, ec *Context) ([]recipes.StepGroup, error) {
	return []recipes.StepGroup{}, nil
}

// InitializeSkipActions merges the recipe's skip-actions list with the
// compile options' list, deduplicated, preserving order.
func (Defaults) InitializeSkipActions(ctx context.Context, ec *Context) ([]string, error) {
	return mergeSkipList(ec.Recipe.Options.SkipActions, ec.Options.SkipActions), nil
}

// InitializeSkipGroups merges the recipe's skip-groups list with the
// compile options' list, deduplicated, preserving order.
func (Defaults) InitializeSkipGroups(ctx context.Context, ec *Context) ([]string, error) {
	return mergeSkipList(ec.Recipe.Options.SkipGroups, ec.Options.SkipGroups), nil
}

// InitializeActions registers nothing. Families must override this hook;
// an empty registry fails engine validation.
func (Defaults) InitializeActions(ctx context.Context, ec *Context, reg *Registry) error {
	return nil
}

// FinalizeResultDetail attaches the run context summary to the engine
// result.
func (Defaults) FinalizeResultDetail(ctx context.Context, ec *Context) (any, error) {
	return ec.Summary(), nil
}

// PreExecute does nothing.
func (Defaults) PreExecute(ctx context.Context, ec *Context) error {
	return nil
}

// PostExecute does nothing.
func (Defaults) PostExecute(ctx context.Context, ec *Context, node *results.Node) error {
	return nil
}

// mergeSkipList unions two skip lists, deduplicated, preserving the order
// of first appearance. The result is never nil.
func mergeSkipList(base, extra []string) []string {
	merged := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]struct{}, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, v := range list {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			merged = append(merged, v)
		}
	}
	return merged
}
