package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orgforge/orgforge/pkg/engines/orgbuild"
	"github.com/orgforge/orgforge/pkg/engines/orgteardown"
	"github.com/orgforge/orgforge/pkg/recipes"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <recipe>",
		Short: "Validate a recipe document",
		Long: `Validate a recipe document without compiling or running it.

This command checks:
  - Document syntax (JSON or YAML)
  - Required top-level keys
  - Schema conformance against the recipe schema
  - Field constraints (names, aliases, target orgs)
  - Action and handler references against the engine family`,
		Example: `  # Validate a recipe in the current project
  forge validate recipes/qa-env.json

  # Validate against a different project folder
  forge validate --project ./environments qa-env.yaml

  # Machine-readable report
  forge validate --json recipes/qa-env.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newCommandLogger()
			if err != nil {
				return err
			}
			prj, err := newProject(log, orgbuild.Config{Logger: log}, orgteardown.Config{Logger: log})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			recipe, err := prj.ReadRecipe(cmd.Context(), args[0])
			if err != nil {
				var invalid *recipes.InvalidRecipeError
				if !errors.As(err, &invalid) {
					return err
				}
				if jsonOutput {
					if err := printJSON(out, validationReport{Recipe: args[0], Valid: false, Detail: invalid}); err != nil {
						return err
					}
				} else {
					fmt.Fprintf(out, "Recipe %q is invalid:\n", args[0])
					for _, key := range invalid.MissingKeys {
						fmt.Fprintf(out, "  - missing required key %q\n", key)
					}
					for _, p := range invalid.Problems {
						fmt.Fprintf(out, "  - %s\n", p.Error())
					}
				}
				return fmt.Errorf("recipe %q failed validation", args[0])
			}

			if jsonOutput {
				return printJSON(out, validationReport{Recipe: args[0], Valid: true, Summary: summarize(recipe)})
			}

			fmt.Fprintf(out, "Recipe %q is valid\n", args[0])
			fmt.Fprintf(out, "  Name:       %s\n", recipe.Name)
			fmt.Fprintf(out, "  Type:       %s\n", recipe.Type)
			fmt.Fprintf(out, "  Version:    %s\n", recipe.Version)
			fmt.Fprintf(out, "  Groups:     %d\n", len(recipe.StepGroups))
			fmt.Fprintf(out, "  Steps:      %d\n", countSteps(recipe))
			for _, org := range recipe.Options.TargetOrgs {
				kind := "persistent"
				if org.IsScratchOrg {
					kind = "scratch"
				}
				fmt.Fprintf(out, "  Target org: %s (%s, %s)\n", org.Alias, org.OrgName, kind)
			}
			return nil
		},
	}

	return cmd
}

// validationReport is the JSON shape of a validate run.
type validationReport struct {
	Recipe  string                      `json:"recipe"`
	Valid   bool                        `json:"valid"`
	Summary *recipeSummary              `json:"summary,omitempty"`
	Detail  *recipes.InvalidRecipeError `json:"detail,omitempty"`
}

// recipeSummary is the condensed view of a valid recipe.
type recipeSummary struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Version    string   `json:"version"`
	Groups     int      `json:"groups"`
	Steps      int      `json:"steps"`
	TargetOrgs []string `json:"target_orgs"`
}

func summarize(r *recipes.Recipe) *recipeSummary {
	orgs := make([]string, len(r.Options.TargetOrgs))
	for i, org := range r.Options.TargetOrgs {
		orgs[i] = org.Alias
	}
	return &recipeSummary{
		Name:       r.Name,
		Type:       r.Type,
		Version:    r.Version,
		Groups:     len(r.StepGroups),
		Steps:      countSteps(r),
		TargetOrgs: orgs,
	}
}

func countSteps(r *recipes.Recipe) int {
	n := 0
	for _, g := range r.StepGroups {
		n += len(g.Steps)
	}
	return n
}
