package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/orgforge/orgforge/pkg/engine"
	"github.com/orgforge/orgforge/pkg/engines/orgbuild"
	"github.com/orgforge/orgforge/pkg/engines/orgteardown"
	"github.com/orgforge/orgforge/pkg/recipes"
	"github.com/orgforge/orgforge/pkg/telemetry"
)

func newDevCommand() *cobra.Command {
	var flags compileFlags

	cmd := &cobra.Command{
		Use:   "dev <recipe>",
		Short: "Watch a recipe and recompile on change",
		Long: `Watch a recipe file and re-validate and recompile it on every save.

On each change the recipe is read, validated, and compiled into a plan; the
plan or the validation problems are printed. No step is ever executed.
Watching stops on interrupt.`,
		Example: `  # Watch a recipe while editing it
  forge dev recipes/qa-env.json

  # Watch with the plan shaped for a specific target
  forge dev recipes/qa-env.json --target staging`,
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

			root, err := projectRoot()
			if err != nil {
				return err
			}
			recipePath := args[0]
			if !filepath.IsAbs(recipePath) {
				recipePath = filepath.Join(root, recipePath)
			}
			recipePath = filepath.Clean(recipePath)

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("create recipe watcher: %w", err)
			}
			defer watcher.Close()

			// Editors replace files on save, so the folder is watched and
			// events are filtered down to the recipe itself.
			if err := watcher.Add(filepath.Dir(recipePath)); err != nil {
				return fmt.Errorf("watch %s: %w", filepath.Dir(recipePath), err)
			}

			out := cmd.OutOrStdout()
			compileOnce(cmd.Context(), out, log, args[0], opts)
			fmt.Fprintf(out, "\nWatching %s (interrupt to stop)\n", args[0])

			var rebuild *time.Timer
			const settleDelay = 500 * time.Millisecond

			for {
				select {
				case <-cmd.Context().Done():
					if rebuild != nil {
						rebuild.Stop()
					}
					return nil

				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if filepath.Clean(event.Name) != recipePath {
						continue
					}
					if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
						continue
					}

					log.WithField("file", event.Name).
						WithField("op", event.Op.String()).
						Debug("recipe changed")

					if rebuild != nil {
						rebuild.Stop()
					}
					rebuild = time.AfterFunc(settleDelay, func() {
						fmt.Fprintf(out, "\n%s changed\n", args[0])
						compileOnce(cmd.Context(), out, log, args[0], opts)
					})

				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					log.WithError(err).Error("recipe watcher error")
				}
			}
		},
	}

	flags.register(cmd)

	return cmd
}

// compileOnce reads, validates, and compiles the recipe once, reporting the
// outcome. Problems are printed, never returned: the watch loop keeps going.
func compileOnce(ctx context.Context, out io.Writer, log *telemetry.Logger, filename string, opts recipes.CompileOptions) {
	prj, err := newProject(log, orgbuild.Config{Logger: log}, orgteardown.Config{Logger: log})
	if err != nil {
		fmt.Fprintf(out, "project error: %v\n", err)
		return
	}

	recipe, err := prj.ReadRecipe(ctx, filename)
	if err != nil {
		var invalid *recipes.InvalidRecipeError
		if errors.As(err, &invalid) {
			fmt.Fprintf(out, "Recipe %q is invalid:\n", filename)
			for _, key := range invalid.MissingKeys {
				fmt.Fprintf(out, "  - missing required key %q\n", key)
			}
			for _, p := range invalid.Problems {
				fmt.Fprintf(out, "  - %s\n", p.Error())
			}
			return
		}
		fmt.Fprintf(out, "read error: %v\n", err)
		return
	}

	if err := recipe.Compile(ctx, opts); err != nil {
		fmt.Fprintf(out, "compile error: %v\n", err)
		return
	}

	if eng, ok := recipe.Engine().(*engine.Engine); ok {
		renderPlan(out, eng.Plan())
	}
}
