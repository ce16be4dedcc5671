package actions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/orgforge/orgforge/pkg/engine"
	"github.com/orgforge/orgforge/pkg/executors"
	"github.com/orgforge/orgforge/pkg/results"
)

// RecordOrgState captures a snapshot of the target org at the end of a
// run: the CLI's org view for scratch orgs, the deployed bundle
// inventory for persistent orgs.
type RecordOrgState struct {
	Base
	bundleRoot string
}

// NewRecordOrgState returns the state capture action for the executor
// kind the target org dispatches through. bundleRoot is where the
// persistent-org snapshot looks for deployed bundles.
func NewRecordOrgState(kind executors.Kind, bundleRoot string) *RecordOrgState {
	if bundleRoot == "" {
		bundleRoot = defaultBundleRoot
	}
	return &RecordOrgState{
		Base: Base{Meta: engine.Descriptor{
			Name:        "record-org-state",
			Description: "Record the target org's state",
			Executor:    kind,
			Timeout:     2 * time.Minute,
		}},
		bundleRoot: bundleRoot,
	}
}

// Execute captures the snapshot and carries it in the action detail.
// JSON output is recorded structured, anything else verbatim.
func (a *RecordOrgState) Execute(ctx context.Context, ec *engine.Context, step engine.PlanStep) (*results.Node, error) {
	node := newNode(step)

	req := executors.Request{
		Name:    "org-state",
		Timeout: a.Meta.Timeout,
	}
	if a.Meta.Executor == executors.KindSSH {
		inventory := "ls -1 " + shellQuote(a.bundleRoot) + " 2>/dev/null; uname -sr"
		req.Command = stringOption(step.Options, "stateCommand", inventory)
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

	detail := map[string]any{
		"target":     ec.TargetOrg.Alias,
		"recordedAt": time.Now().UTC().Format(time.RFC3339),
	}
	var parsed any
	if err := json.Unmarshal([]byte(resp.Stdout), &parsed); err == nil {
		detail["state"] = parsed
	} else {
		detail["state"] = resp.Stdout
	}

	_ = node.Success(detail)
	return node, nil
}
