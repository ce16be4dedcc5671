package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/orgforge/orgforge/pkg/engine"
	"github.com/orgforge/orgforge/pkg/engines/orgbuild"
	"github.com/orgforge/orgforge/pkg/engines/orgteardown"
)

func newCompileCommand() *cobra.Command {
	var flags compileFlags

	cmd := &cobra.Command{
		Use:   "compile <recipe>",
		Short: "Compile a recipe into an execution plan",
		Long: `Compile a recipe into the execution plan a run would follow, without
executing anything.

The plan shows:
  - Every step group in execution order, with its origin
    (pre-build, recipe, post-build)
  - Every step with its action and fully interpolated options
  - The groups and steps the skip rules excluded, with reasons`,
		Example: `  # Compile against the recipe's first target org
  forge compile recipes/qa-env.json

  # Compile for a specific target
  forge compile recipes/qa-env.json --target staging

  # Skip a group and override a variable
  forge compile recipes/qa-env.json --skip-group packages --var channel=beta

  # Machine-readable plan
  forge compile --json recipes/qa-env.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}

			log, err := newCommandLogger()
			if err != nil {
				return err
			}
			prj, err := newProject(log, orgbuild.Config{Logger: log}, orgteardown.Config{Logger: log})
			if err != nil {
				return err
			}

			recipe, err := prj.ReadRecipe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := recipe.Compile(cmd.Context(), opts); err != nil {
				return err
			}

			eng, ok := recipe.Engine().(*engine.Engine)
			if !ok {
				return fmt.Errorf("engine for recipe type %q does not expose its plan", recipe.Type)
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), eng.Plan())
			}
			renderPlan(cmd.OutOrStdout(), eng.Plan())
			return nil
		},
	}

	flags.register(cmd)

	return cmd
}
