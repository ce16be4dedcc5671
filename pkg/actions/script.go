package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/orgforge/orgforge/pkg/engine"
	"github.com/orgforge/orgforge/pkg/executors"
	"github.com/orgforge/orgforge/pkg/results"
)

// RunRemoteScript runs a maintenance script on the org host. The
// script body comes from the step, a project file, or the org
// requirements' setup scripts when the step names neither.
type RunRemoteScript struct {
	Base
	sudoPassword string
	setupScripts []string
}

// NewRunRemoteScript returns the remote script action. setupScripts
// are project-relative files the action falls back to when a step
// carries no script of its own.
func NewRunRemoteScript(sudoPassword string, setupScripts []string) *RunRemoteScript {
	return &RunRemoteScript{
		Base: Base{Meta: engine.Descriptor{
			Name:        "run-remote-script",
			Description: "Run a script on the org host",
			Executor:    executors.KindSSH,
			Timeout:     10 * time.Minute,
		}},
		sudoPassword: sudoPassword,
		setupScripts: setupScripts,
	}
}

// ValidateOptions accepts an inline script, a script file, or the
// setup-script fallback.
func (a *RunRemoteScript) ValidateOptions(options map[string]any) error {
	if stringOption(options, "script", "") != "" {
		return nil
	}
	if stringOption(options, "scriptFile", "") != "" {
		return nil
	}
	if len(a.setupScripts) > 0 {
		return nil
	}
	return engine.NewMissingOptionError(a.Meta.Name, "script")
}

// Execute runs every resolved script in order, one executor dispatch
// each. The first script that errors or exits non-zero ends the
// action.
func (a *RunRemoteScript) Execute(ctx context.Context, ec *engine.Context, step engine.PlanStep) (*results.Node, error) {
	node := newNode(step)

	scripts, err := a.resolveScripts(ec, step)
	if err != nil {
		return node, err
	}

	interpreter := stringOption(step.Options, "interpreter", "bash")
	sudo := boolOption(step.Options, "sudo", false)

	ran := make([]string, 0, len(scripts))
	for _, script := range scripts {
		req := executors.Request{
			Name:         "script:" + script.name,
			Script:       script.body,
			Interpreter:  interpreter,
			Sudo:         sudo,
			SudoPassword: a.sudoPassword,
			Timeout:      a.Meta.Timeout,
		}
		_, done, err := dispatch(ctx, ec, node, a.Meta.Executor, req)
		if err != nil {
			return node, err
		}
		if done {
			return node, nil
		}
		ran = append(ran, script.name)
	}

	_ = node.Success(map[string]any{
		"interpreter": interpreter,
		"scripts":     ran,
	})
	return node, nil
}

type scriptSource struct {
	name string
	body string
}

// resolveScripts picks the script bodies to run, in order of
// precedence: inline step script, project script file, org
// requirements setup scripts.
func (a *RunRemoteScript) resolveScripts(ec *engine.Context, step engine.PlanStep) ([]scriptSource, error) {
	if inline := stringOption(step.Options, "script", ""); inline != "" {
		return []scriptSource{{name: "inline", body: inline}}, nil
	}

	if file := stringOption(step.Options, "scriptFile", ""); file != "" {
		body, err := a.readScript(ec, file)
		if err != nil {
			return nil, err
		}
		return []scriptSource{{name: file, body: body}}, nil
	}

	if len(a.setupScripts) == 0 {
		return nil, engine.NewMissingOptionError(a.Meta.Name, "script")
	}
	sources := make([]scriptSource, 0, len(a.setupScripts))
	for _, file := range a.setupScripts {
		body, err := a.readScript(ec, file)
		if err != nil {
			return nil, err
		}
		sources = append(sources, scriptSource{name: file, body: body})
	}
	return sources, nil
}

func (a *RunRemoteScript) readScript(ec *engine.Context, file string) (string, error) {
	if ec.Project == nil {
		return "", fmt.Errorf("script file %s: run has no project to read it from", file)
	}
	raw, err := ec.Project.Loader().ReadRawFile(ec.Project.RootFolder(), file)
	if err != nil {
		return "", fmt.Errorf("read script %s: %w", file, err)
	}
	return string(raw), nil
}
