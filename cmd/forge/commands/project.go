package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/orgforge/orgforge/pkg/engines/orgbuild"
	"github.com/orgforge/orgforge/pkg/engines/orgteardown"
	"github.com/orgforge/orgforge/pkg/recipes"
	"github.com/orgforge/orgforge/pkg/telemetry"
)

// projectRoot resolves the folder recipes are read from: the --project flag
// when set, the working directory otherwise.
func projectRoot() (string, error) {
	if projectPath != "" {
		return projectPath, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}
	return cwd, nil
}

// newCommandLogger builds the logger commands hand to the library layers.
// Output goes to stderr so stdout stays machine-readable.
func newCommandLogger() (*telemetry.Logger, error) {
	level := "info"
	if verbose {
		level = "debug"
	}
	format := "console"
	if jsonOutput {
		format = "json"
	}
	return telemetry.NewLogger(telemetry.LoggingConfig{
		Level:      level,
		Format:     format,
		Output:     "stderr",
		TimeFormat: "rfc3339",
	})
}

// newProject builds the project with every engine family registered. The
// family configs carry whatever run infrastructure the calling command
// assembled; validate and compile pass bare configs.
func newProject(log *telemetry.Logger, build orgbuild.Config, teardown orgteardown.Config) (*recipes.Project, error) {
	reg := recipes.NewRegistry()
	if err := orgbuild.Register(reg, build); err != nil {
		return nil, err
	}
	if err := orgteardown.Register(reg, teardown); err != nil {
		return nil, err
	}

	root, err := projectRoot()
	if err != nil {
		return nil, err
	}
	return recipes.NewProject(recipes.ProjectConfig{
		RootFolder: root,
		Registry:   reg,
		Logger:     log,
	})
}

// compileFlags are the plan-shaping flags shared by compile, run, and dev.
type compileFlags struct {
	target      string
	skipGroups  []string
	skipActions []string
	vars        []string
}

func (f *compileFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.target, "target", "t", "", "target org alias (default: the recipe's first target)")
	cmd.Flags().StringSliceVar(&f.skipGroups, "skip-group", nil, "step group alias to exclude (repeatable)")
	cmd.Flags().StringSliceVar(&f.skipActions, "skip-action", nil, "action name to exclude (repeatable)")
	cmd.Flags().StringArrayVar(&f.vars, "var", nil, "variable override as key=value (repeatable)")
}

func (f *compileFlags) options() (recipes.CompileOptions, error) {
	vars, err := parseVars(f.vars)
	if err != nil {
		return recipes.CompileOptions{}, err
	}
	return recipes.CompileOptions{
		TargetOrgAlias: f.target,
		SkipGroups:     f.skipGroups,
		SkipActions:    f.skipActions,
		Variables:      vars,
	}, nil
}

// parseVars splits key=value flag values into a variables map.
func parseVars(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	vars := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --var %q: expected key=value", pair)
		}
		vars[key] = value
	}
	return vars, nil
}
