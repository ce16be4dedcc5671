package actions

import (
	"context"
	"encoding/json"
	"time"

	"github.com/orgforge/orgforge/pkg/engine"
	"github.com/orgforge/orgforge/pkg/executors"
	"github.com/orgforge/orgforge/pkg/results"
)

// AdminDefaults seeds the admin account from the org requirements
// document.
type AdminDefaults struct {
	Username string
	Role     string
	Shell    string
}

// ConfigureAdminUser derives the target org's admin account manifest
// by running the admin-user plugin, a WASI module fed the account
// request on stdin.
type ConfigureAdminUser struct {
	Base
	module   string
	defaults AdminDefaults
}

// NewConfigureAdminUser returns the admin account action. module is
// the plugin path steps fall back to; defaults come from the org
// requirements. Whatever neither supplies becomes a required option.
func NewConfigureAdminUser(module string, defaults AdminDefaults) *ConfigureAdminUser {
	var required []string
	if defaults.Username == "" {
		required = append(required, "username")
	}
	if module == "" {
		required = append(required, "module")
	}
	return &ConfigureAdminUser{
		Base: Base{Meta: engine.Descriptor{
			Name:            "configure-admin-user",
			Description:     "Configure the org's admin account through the admin-user plugin",
			Executor:        executors.KindWASM,
			RequiredOptions: required,
			Timeout:         time.Minute,
		}},
		module:   module,
		defaults: defaults,
	}
}

// Execute feeds the account request to the plugin and records the
// manifest it emits. A non-zero plugin exit is a failure.
func (a *ConfigureAdminUser) Execute(ctx context.Context, ec *engine.Context, step engine.PlanStep) (*results.Node, error) {
	node := newNode(step)

	username := stringOption(step.Options, "username", a.defaults.Username)
	if username == "" {
		return node, engine.NewMissingOptionError(a.Meta.Name, "username")
	}
	module := stringOption(step.Options, "module", a.module)
	if module == "" {
		return node, engine.NewMissingOptionError(a.Meta.Name, "module")
	}

	req := executors.Request{
		Name:    "admin-user-plugin",
		Module:  module,
		Timeout: a.Meta.Timeout,
		Payload: map[string]any{
			"username":    username,
			"role":        stringOption(step.Options, "role", a.defaults.Role),
			"shell":       stringOption(step.Options, "shell", a.defaults.Shell),
			"email":       stringOption(step.Options, "email", ""),
			"permissions": stringListOption(step.Options, "permissions"),
			"org": map[string]any{
				"alias":        ec.TargetOrg.Alias,
				"orgName":      ec.TargetOrg.OrgName,
				"isScratchOrg": ec.TargetOrg.IsScratchOrg,
			},
		},
	}
	resp, done, err := dispatch(ctx, ec, node, a.Meta.Executor, req)
	if err != nil {
		return node, err
	}
	if done {
		return node, nil
	}

	detail := map[string]any{
		"username": username,
		"module":   module,
	}
	if len(resp.Output) > 0 {
		var manifest any
		if err := json.Unmarshal(resp.Output, &manifest); err == nil {
			detail["manifest"] = manifest
		}
	}

	_ = node.Success(detail)
	return node, nil
}
