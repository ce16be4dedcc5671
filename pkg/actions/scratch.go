package actions

import (
	"context"
	"strconv"
	"time"

	"github.com/orgforge/orgforge/pkg/engine"
	"github.com/orgforge/orgforge/pkg/executors"
	"github.com/orgforge/orgforge/pkg/results"
)

// CreateScratchOrg provisions a fresh scratch org from the target's
// definition file.
type CreateScratchOrg struct {
	Base
}

// NewCreateScratchOrg returns the scratch-org creation action.
func NewCreateScratchOrg() *CreateScratchOrg {
	return &CreateScratchOrg{Base: Base{Meta: engine.Descriptor{
		Name:        "create-scratch-org",
		Description: "Create a scratch org from the target's definition file",
		Executor:    executors.KindLocal,
		Timeout:     10 * time.Minute,
	}}}
}

// Execute shells out to the org CLI. The definition file defaults to
// the one declared on the target org, the duration to the one in the
// loaded definition document.
func (a *CreateScratchOrg) Execute(ctx context.Context, ec *engine.Context, step engine.PlanStep) (*results.Node, error) {
	node := newNode(step)

	definition := stringOption(step.Options, "definitionFile", ec.TargetOrg.ScratchDefJSON)
	if definition == "" {
		return node, engine.NewMissingOptionError(a.Meta.Name, "definitionFile")
	}
	duration := intOption(step.Options, "durationDays", a.definitionDuration(ec, definition))

	args := []string{"org", "create", "scratch",
		"--definition-file", definition,
		"--alias", ec.TargetOrg.Alias,
		"--json",
	}
	if duration > 0 {
		args = append(args, "--duration-days", strconv.Itoa(duration))
	}

	req := executors.Request{
		Name:    "org-create",
		Command: stringOption(step.Options, "cli", orgCLI),
		Args:    args,
		Dir:     projectRoot(ec),
		Timeout: a.Meta.Timeout,
	}
	_, done, err := dispatch(ctx, ec, node, a.Meta.Executor, req)
	if err != nil {
		return node, err
	}
	if done {
		return node, nil
	}

	_ = node.Success(map[string]any{
		"alias":      ec.TargetOrg.Alias,
		"definition": definition,
	})
	return node, nil
}

// definitionDuration reads durationDays from the loaded scratch
// definition document when the step does not pin one.
func (a *CreateScratchOrg) definitionDuration(ec *engine.Context, definition string) int {
	doc, ok := ec.TargetRequirements[definition].(map[string]any)
	if !ok {
		return 0
	}
	return intOption(doc, "durationDays", 0)
}

// DeleteScratchOrg discards the target scratch org.
type DeleteScratchOrg struct {
	Base
}

// NewDeleteScratchOrg returns the scratch-org deletion action.
func NewDeleteScratchOrg() *DeleteScratchOrg {
	return &DeleteScratchOrg{Base: Base{Meta: engine.Descriptor{
		Name:        "delete-scratch-org",
		Description: "Delete the target scratch org",
		Executor:    executors.KindLocal,
		Timeout:     5 * time.Minute,
	}}}
}

// Execute shells out to the org CLI without prompting.
func (a *DeleteScratchOrg) Execute(ctx context.Context, ec *engine.Context, step engine.PlanStep) (*results.Node, error) {
	node := newNode(step)

	req := executors.Request{
		Name:    "org-delete",
		Command: stringOption(step.Options, "cli", orgCLI),
		Args:    []string{"org", "delete", "scratch", "--target-org", ec.TargetOrg.Alias, "--no-prompt", "--json"},
		Dir:     projectRoot(ec),
		Timeout: a.Meta.Timeout,
	}
	_, done, err := dispatch(ctx, ec, node, a.Meta.Executor, req)
	if err != nil {
		return node, err
	}
	if done {
		return node, nil
	}

	_ = node.Success(map[string]any{"alias": ec.TargetOrg.Alias})
	return node, nil
}
