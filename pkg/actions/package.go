package actions

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/orgforge/orgforge/pkg/engine"
	"github.com/orgforge/orgforge/pkg/executors"
	"github.com/orgforge/orgforge/pkg/results"
)

// InstallPackage installs packages into the target org. Scratch orgs
// install through the org CLI on the forge host; persistent orgs run
// the CLI on the org host itself. With neither a packageId nor a
// packages option, the action installs everything the org
// requirements list.
type InstallPackage struct {
	Base
	fallback []string
}

// NewInstallPackage returns the package installation action for the
// executor kind the target org dispatches through. fallback holds the
// package ids from the org requirements document.
func NewInstallPackage(kind executors.Kind, fallback []string) *InstallPackage {
	required := []string{"packageId"}
	if len(fallback) > 0 {
		required = nil
	}
	return &InstallPackage{
		Base: Base{Meta: engine.Descriptor{
			Name:            "install-package",
			Description:     "Install packages into the target org",
			Executor:        kind,
			RequiredOptions: required,
			Timeout:         15 * time.Minute,
		}},
		fallback: fallback,
	}
}

// Execute installs each package with its own dispatch, so every
// install shows up as an EXECUTOR child. The first bad install ends
// the action.
func (a *InstallPackage) Execute(ctx context.Context, ec *engine.Context, step engine.PlanStep) (*results.Node, error) {
	node := newNode(step)

	packages := a.packages(step)
	if len(packages) == 0 {
		return node, engine.NewMissingOptionError(a.Meta.Name, "packageId")
	}

	cli := stringOption(step.Options, "cli", orgCLI)
	installKey := stringOption(step.Options, "installationKey", "")
	wait := intOption(step.Options, "waitMinutes", 10)

	installed := make([]string, 0, len(packages))
	for _, pkg := range packages {
		req := a.request(ec, cli, pkg, installKey, wait)
		_, done, err := dispatch(ctx, ec, node, a.Meta.Executor, req)
		if err != nil {
			return node, err
		}
		if done {
			return node, nil
		}
		installed = append(installed, pkg)
	}

	_ = node.Success(map[string]any{
		"target":   ec.TargetOrg.Alias,
		"packages": installed,
	})
	return node, nil
}

// packages returns the ids to install: the step option, the list
// option, or the org requirements fallback.
func (a *InstallPackage) packages(step engine.PlanStep) []string {
	if id := stringOption(step.Options, "packageId", ""); id != "" {
		return []string{id}
	}
	if list := stringListOption(step.Options, "packages"); len(list) > 0 {
		return list
	}
	return a.fallback
}

// request builds the install command for one package. On a persistent
// org the CLI runs remotely, so the arguments collapse into a single
// quoted command line.
func (a *InstallPackage) request(ec *engine.Context, cli, pkg, installKey string, wait int) executors.Request {
	args := []string{"package", "install",
		"--package", pkg,
		"--wait", strconv.Itoa(wait),
		"--no-prompt",
		"--json",
	}
	if a.Meta.Executor == executors.KindLocal {
		args = append(args, "--target-org", ec.TargetOrg.Alias)
	}
	if installKey != "" {
		args = append(args, "--installation-key", installKey)
	}

	req := executors.Request{
		Name:    "package:" + pkg,
		Timeout: a.Meta.Timeout,
	}
	if a.Meta.Executor == executors.KindLocal {
		req.Command = cli
		req.Args = args
		req.Dir = projectRoot(ec)
		return req
	}

	quoted := make([]string, 0, len(args)+1)
	quoted = append(quoted, cli)
	for _, arg := range args {
		quoted = append(quoted, shellQuote(arg))
	}
	req.Command = strings.Join(quoted, " ")
	return req
}
