package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/orgforge/orgforge/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var (
		storePath  string
		limit      int
		showEvents bool
	)

	cmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "Show stored run history",
		Long: `Show runs recorded in the history store.

Without a run ID the most recent runs are listed. With a run ID the full
record is shown: run metadata, the executed steps, and the stored result
tree.`,
		Example: `  # List the most recent runs
  forge history

  # List more runs from a specific store
  forge history --store ./ci/history.db --limit 50

  # Show one run with its result tree
  forge history 4f7c9a1e-8a3b-4f6e-9c0d-2b1a5e8d7f63

  # Include the run's recorded events
  forge history 4f7c9a1e-8a3b-4f6e-9c0d-2b1a5e8d7f63 --events`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if _, err := os.Stat(storePath); err != nil {
				return fmt.Errorf("no run history at %s", storePath)
			}
			store, err := openStore(ctx, storePath)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 0 {
				runs, err := store.ListRuns(ctx, limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(out, runs)
				}
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				renderRuns(out, runs)
				return nil
			}

			runID := args[0]
			run, err := store.GetRun(ctx, runID)
			if err != nil {
				return err
			}
			steps, err := store.ListSteps(ctx, runID)
			if err != nil {
				return err
			}
			var events []stores.Event
			if showEvents {
				if events, err = store.ListEvents(ctx, runID); err != nil {
					return err
				}
			}

			if jsonOutput {
				return printJSON(out, historyDetail{Run: run, Steps: steps, Events: events})
			}

			fmt.Fprintf(out, "Run %s\n", run.RunID)
			fmt.Fprintf(out, "  Recipe:  %s %s (%s)\n", run.Recipe, run.RecipeVersion, run.RecipeType)
			fmt.Fprintf(out, "  Target:  %s\n", run.Target)
			fmt.Fprintf(out, "  Status:  %s\n", run.Status)
			fmt.Fprintf(out, "  Started: %s\n", run.StartedAt.Local().Format(time.RFC3339))
			if run.EndedAt != nil {
				fmt.Fprintf(out, "  Ended:   %s (%s)\n",
					run.EndedAt.Local().Format(time.RFC3339),
					run.EndedAt.Sub(run.StartedAt).Round(time.Millisecond))
			}
			if run.Error != "" {
				fmt.Fprintf(out, "  Error:   %s\n", run.Error)
			}

			if len(steps) > 0 {
				fmt.Fprintln(out, "\nSteps:")
				renderSteps(out, steps)
			}
			if run.Result != nil {
				fmt.Fprintln(out, "\nResult tree:")
				renderTree(out, run.Result)
			}
			if showEvents && len(events) > 0 {
				fmt.Fprintln(out, "\nEvents:")
				for _, ev := range events {
					fmt.Fprintf(out, "  %s  %-16s  %s\n",
						ev.CreatedAt.Local().Format("15:04:05"), ev.Type, ev.Message)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&storePath, "store", defaultStorePath, "run history database path")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	cmd.Flags().BoolVar(&showEvents, "events", false, "include the run's recorded events")

	return cmd
}

// historyDetail is the JSON shape of a single-run lookup.
type historyDetail struct {
	Run    *stores.Run    `json:"run"`
	Steps  []stores.Step  `json:"steps,omitempty"`
	Events []stores.Event `json:"events,omitempty"`
}
