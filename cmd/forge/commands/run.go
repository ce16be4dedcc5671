package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/orgforge/orgforge/pkg/engine"
	"github.com/orgforge/orgforge/pkg/engines/orgbuild"
	"github.com/orgforge/orgforge/pkg/engines/orgteardown"
	"github.com/orgforge/orgforge/pkg/policy"
	"github.com/orgforge/orgforge/pkg/results"
	"github.com/orgforge/orgforge/pkg/stores"
	"github.com/orgforge/orgforge/pkg/telemetry"
)

// defaultStorePath is where run history lands unless --store overrides it.
const defaultStorePath = ".forge/history.db"

func newRunCommand() *cobra.Command {
	var (
		flags         compileFlags
		dryRun        bool
		storePath     string
		policyPaths   []string
		noPolicy      bool
		metricsListen string
	)

	cmd := &cobra.Command{
		Use:   "run <recipe>",
		Short: "Compile and execute a recipe",
		Long: `Compile a recipe into an execution plan and run it against the target org.

The run:
  - Validates and compiles the recipe
  - Admits the run through the policy gate (unless --no-policy)
  - Dispatches each plan step through the target's executors
  - Records the run, its steps, and its events in the history store
  - Renders the full result tree and exits non-zero unless the run succeeded`,
		Example: `  # Run against the recipe's first target org
  forge run recipes/qa-env.json

  # Run against a specific target, skipping a group
  forge run recipes/qa-env.json --target staging --skip-group packages

  # Dry run: full plan, no executor dispatch
  forge run recipes/qa-env.json --dry-run

  # Load admission policies and expose run metrics
  forge run recipes/qa-env.json --policy-dir ./policies --metrics-listen :9090`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			opts.DryRun = dryRun

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			tel, err := newRunTelemetry(metricsListen)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tel.Shutdown(shutdownCtx)
			}()
			if metricsListen != "" {
				if err := tel.StartMetricsServer(); err != nil {
					return fmt.Errorf("start metrics server: %w", err)
				}
			}

			var recorder engine.RunRecorder
			if storePath != "" {
				store, err := openStore(ctx, storePath)
				if err != nil {
					return err
				}
				defer store.Close()
				tel.Events.Subscribe(store.EventSink(), nil)
				recorder = store
			}

			var gate engine.PolicyGate
			if !noPolicy {
				polEngine, err := policy.NewEngine(tel.Logger)
				if err != nil {
					return err
				}
				if len(policyPaths) > 0 {
					if err := polEngine.LoadPolicies(ctx, policyPaths); err != nil {
						return err
					}
				}
				gate = polEngine
			}

			build := orgbuild.Config{
				Recorder: recorder,
				Gate:     gate,
				Events:   tel.Events,
				Metrics:  tel.Metrics,
				Tracer:   tel.Tracer,
				Logger:   tel.Logger,
			}
			teardown := orgteardown.Config{
				Recorder: recorder,
				Gate:     gate,
				Events:   tel.Events,
				Metrics:  tel.Metrics,
				Tracer:   tel.Tracer,
				Logger:   tel.Logger,
			}
			prj, err := newProject(tel.Logger, build, teardown)
			if err != nil {
				return err
			}

			ctx = tel.WithContext(ctx)
			recipe, err := prj.ReadRecipe(ctx, args[0])
			if err != nil {
				return err
			}
			if err := recipe.Compile(ctx, opts); err != nil {
				return err
			}

			eng, _ := recipe.Engine().(*engine.Engine)
			if eng != nil {
				if ec := eng.Context(); ec != nil && ec.Executors != nil {
					defer func() { _ = ec.Executors.Close() }()
				}
				if !jsonOutput {
					mode := ""
					if dryRun {
						mode = " (dry run)"
					}
					fmt.Fprintf(out, "Run %s: recipe %q on target %s, %d steps%s\n\n",
						eng.RunID(), recipe.Name, eng.Plan().Target, eng.Plan().Steps(), mode)
				}
			}

			cmdNode := results.NewNode("forge run", results.TypeCommand, results.Options{
				StartNow:      true,
				BubbleError:   true,
				BubbleFailure: true,
				Detail: map[string]any{
					"recipe":  args[0],
					"target":  opts.TargetOrgAlias,
					"dry_run": dryRun,
				},
			})

			recipeNode, execErr := recipe.Execute(ctx)
			if recipeNode != nil {
				if _, err := cmdNode.AddChild(recipeNode); err != nil {
					return err
				}
			}
			if !cmdNode.IsTerminal() {
				if execErr != nil {
					_ = cmdNode.Error(execErr)
				} else {
					_ = cmdNode.Success(nil)
				}
			}

			if jsonOutput {
				if err := printJSON(out, cmdNode); err != nil {
					return err
				}
			} else {
				renderTree(out, cmdNode)
				if eng != nil && eng.Result() != nil {
					renderRunSummary(out, eng.Result())
				}
			}

			if cmdNode.Status != results.StatusSuccess {
				if execErr != nil {
					return execErr
				}
				return results.Reject(cmdNode)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate actions and render the plan without dispatching executors")
	cmd.Flags().StringVar(&storePath, "store", defaultStorePath, "run history database path (empty disables history)")
	cmd.Flags().StringSliceVar(&policyPaths, "policy-dir", nil, "policy file or directory to load (repeatable)")
	cmd.Flags().BoolVar(&noPolicy, "no-policy", false, "disable the admission policy gate")
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address during the run")

	return cmd
}

// newRunTelemetry assembles the telemetry stack for one CLI run. Traces are
// exported only when an OTLP endpoint is configured in the environment;
// metrics only when a listen address was requested.
func newRunTelemetry(metricsListen string) (*telemetry.Telemetry, error) {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = buildVersion
	cfg.Logging.Output = "stderr"
	cfg.Logging.EnableCaller = false
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if jsonOutput {
		cfg.Logging.Format = "json"
	}

	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		cfg.Tracing.Exporter = "otlp"
		cfg.Tracing.Endpoint = endpoint
	} else {
		cfg.Tracing.Exporter = "none"
	}

	cfg.Metrics.Enabled = metricsListen != ""
	cfg.Metrics.ListenAddress = metricsListen

	cfg.Events.EnableAsync = false

	return telemetry.NewTelemetry(cfg)
}

// openStore opens the history database, creating its folder and schema as
// needed.
func openStore(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store folder: %w", err)
		}
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}
