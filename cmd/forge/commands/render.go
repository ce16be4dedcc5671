package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/orgforge/orgforge/pkg/engine"
	"github.com/orgforge/orgforge/pkg/results"
	"github.com/orgforge/orgforge/pkg/stores"
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderPlan writes a compiled plan as human-readable text.
func renderPlan(w io.Writer, plan *engine.Plan) {
	fmt.Fprintf(w, "Plan for recipe %q (engine %s, target %s)\n", plan.Recipe, plan.Engine, plan.Target)
	fmt.Fprintf(w, "Run ID: %s\n", plan.RunID)
	fmt.Fprintf(w, "Compiled at: %s\n", plan.CompiledAt.Format(time.RFC3339))

	step := 0
	for _, group := range plan.Groups {
		fmt.Fprintf(w, "\n[%s] %s (%s)\n", group.Origin, group.Name, group.Alias)
		if group.Description != "" {
			fmt.Fprintf(w, "  %s\n", group.Description)
		}
		for _, s := range group.Steps {
			step++
			fmt.Fprintf(w, "  %d. %s  (action %s)\n", step, s.Name, s.Action)
			for _, key := range sortedKeys(s.Options) {
				fmt.Fprintf(w, "     %s = %v\n", key, s.Options[key])
			}
		}
	}

	if len(plan.Skips) > 0 {
		fmt.Fprintln(w, "\nSkipped:")
		for _, skip := range plan.Skips {
			switch skip.Kind {
			case engine.SkipKindGroup:
				fmt.Fprintf(w, "  - group %s: %s\n", skip.Group, skip.Reason)
			default:
				fmt.Fprintf(w, "  - step %s (group %s): %s\n", skip.Step, skip.Group, skip.Reason)
			}
		}
	}

	fmt.Fprintf(w, "\n%d steps in %d groups\n", plan.Steps(), len(plan.Groups))
}

// renderTree writes a result tree as indented text, one node per line.
func renderTree(w io.Writer, root *results.Node) {
	root.Walk(func(depth int, n *results.Node) {
		indent := strings.Repeat("  ", depth)
		fmt.Fprintf(w, "%s%-8s %s", indent, "["+string(n.Status)+"]", n.Name)
		if d := n.Duration(); d > 0 {
			fmt.Fprintf(w, " (%s)", d.Round(time.Millisecond))
		}
		fmt.Fprintln(w)
		if n.ErrorText != "" {
			fmt.Fprintf(w, "%s         %s\n", indent, n.ErrorText)
		}
	})
}

// renderRunSummary writes the status counts of a finished run.
func renderRunSummary(w io.Writer, node *results.Node) {
	s := node.Summarize()
	fmt.Fprintf(w, "\n%d total, %d succeeded, %d failed, %d errored, %d warnings",
		s.Total, s.Succeeded, s.Failures, s.Errors, s.Warnings)
	if s.Unfinished > 0 {
		fmt.Fprintf(w, ", %d unfinished", s.Unfinished)
	}
	if s.Duration > 0 {
		fmt.Fprintf(w, " in %s", s.Duration.Round(time.Millisecond))
	}
	fmt.Fprintln(w)
}

// renderRuns writes stored runs as a table, newest first.
func renderRuns(w io.Writer, runs []stores.Run) {
	fmt.Fprintf(w, "%-36s  %-20s  %-14s  %-10s  %-9s  %s\n",
		"RUN ID", "RECIPE", "TYPE", "TARGET", "STATUS", "STARTED")
	for _, run := range runs {
		fmt.Fprintf(w, "%-36s  %-20s  %-14s  %-10s  %-9s  %s\n",
			run.RunID,
			truncate(run.Recipe, 20),
			run.RecipeType,
			truncate(run.Target, 10),
			run.Status,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	}
}

// renderSteps writes a run's recorded steps as a table in plan order.
func renderSteps(w io.Writer, steps []stores.Step) {
	fmt.Fprintf(w, "%-4s  %-24s  %-20s  %-9s  %s\n", "#", "STEP", "ACTION", "STATUS", "DURATION")
	for _, step := range steps {
		fmt.Fprintf(w, "%-4d  %-24s  %-20s  %-9s  %s\n",
			step.Index,
			truncate(step.Name, 24),
			truncate(step.Action, 20),
			step.Status,
			step.Duration.Round(time.Millisecond))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func sortedKeys(m map[string]any) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
