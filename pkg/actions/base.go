package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/orgforge/orgforge/pkg/engine"
	"github.com/orgforge/orgforge/pkg/executors"
	"github.com/orgforge/orgforge/pkg/results"
)

// orgCLI is the org platform CLI scratch-org work shells out to.
// Steps override it with the "cli" option.
const orgCLI = "sf"

// Base carries the descriptor shared by every action and implements
// the validation all of them need: each declared required option must
// be present and non-empty.
type Base struct {
	Meta engine.Descriptor
}

// Descriptor returns the action's static metadata.
func (b Base) Descriptor() engine.Descriptor {
	return b.Meta
}

// ValidateOptions checks the step options against the descriptor's
// required list.
func (b Base) ValidateOptions(options map[string]any) error {
	for _, key := range b.Meta.RequiredOptions {
		v, ok := options[key]
		if !ok || v == nil {
			return engine.NewMissingOptionError(b.Meta.Name, key)
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			return engine.NewMissingOptionError(b.Meta.Name, key)
		}
	}
	return nil
}

// newNode opens the ACTION node for one step. Executor children bubble
// both errors and failures into it, so the first bad dispatch ends the
// action.
func newNode(step engine.PlanStep) *results.Node {
	return results.NewNode(step.Name, results.TypeAction, results.Options{
		StartNow:      true,
		BubbleError:   true,
		BubbleFailure: true,
	})
}

// dispatch runs one request through the executor set and attaches the
// executor result to the action node. done reports that the child
// finalized the node, which ends the action.
func dispatch(ctx context.Context, ec *engine.Context, node *results.Node, kind executors.Kind, req executors.Request) (*executors.Response, bool, error) {
	if ec.Executors == nil {
		return nil, false, fmt.Errorf("no executor set on engine context")
	}

	resp, err := ec.Executors.Run(ctx, kind, req)
	child := executors.ResultNode(req.Name, resp, err)
	if _, addErr := node.AddChild(child); addErr != nil {
		return resp, true, addErr
	}
	return resp, node.IsTerminal(), nil
}

// projectRoot is the working directory for CLI shell-outs, empty when
// the run carries no project.
func projectRoot(ec *engine.Context) string {
	if ec.Project == nil {
		return ""
	}
	return ec.Project.RootFolder()
}

// shellQuote renders a value safe for a remote shell command line.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
