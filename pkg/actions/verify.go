package actions

import (
	"context"
	"time"

	"github.com/orgforge/orgforge/pkg/engine"
	"github.com/orgforge/orgforge/pkg/executors"
	"github.com/orgforge/orgforge/pkg/results"
)

// VerifyTarget proves the target org is reachable before any step
// changes it. Scratch orgs are checked through the org CLI on the
// forge host; persistent orgs through a probe command on the org host.
type VerifyTarget struct {
	Base
}

// NewVerifyTarget returns the verify action for the executor kind the
// target org dispatches through.
func NewVerifyTarget(kind executors.Kind) *VerifyTarget {
	return &VerifyTarget{Base: Base{Meta: engine.Descriptor{
		Name:        "verify-target",
		Description: "Verify the target org is reachable and responsive",
		Executor:    kind,
		Timeout:     2 * time.Minute,
	}}}
}

// Execute probes the target and succeeds when the probe exits clean.
func (a *VerifyTarget) Execute(ctx context.Context, ec *engine.Context, step engine.PlanStep) (*results.Node, error) {
	node := newNode(step)

	req := executors.Request{
		Name:    "org-probe",
		Timeout: a.Meta.Timeout,
	}
	if a.Meta.Executor == executors.KindSSH {
		req.Command = stringOption(step.Options, "probeCommand", "uptime")
	} else {
		req.Command = stringOption(step.Options, "cli", orgCLI)
		req.Args = []string{"org", "display", "--target-org", ec.TargetOrg.Alias, "--json"}
		req.Dir = projectRoot(ec)
	}

	resp, done, err := dispatch(ctx, ec, node, a.Meta.Executor, req)
	if err != nil {
		return node, err
	}
	if done {
		return node, nil
	}

	_ = node.Success(map[string]any{
		"target":   ec.TargetOrg.Alias,
		"duration": resp.Duration.String(),
	})
	return node, nil
}
