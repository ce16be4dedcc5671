package target

import (
	"context"
	"fmt"
	"strings"

	"github.com/orgforge/orgforge/pkg/config"
	"github.com/orgforge/orgforge/pkg/engine"
	"github.com/orgforge/orgforge/pkg/executors"
	"github.com/orgforge/orgforge/pkg/transports/ssh"
)

// Hooks is the initialization base the engine families embed. On top
// of the engine defaults it schema-checks the loaded target documents,
// parses persistent-org requirements, and provisions the executor set
// the target needs: the local executor always, an SSH executor for
// persistent orgs, and the WASM runtime when the recipe references an
// action that runs through it.
type Hooks struct {
	engine.Defaults

	// Reqs is the parsed org requirements document, nil for scratch
	// targets. Set during target initialization.
	Reqs *Requirements

	// WASMActions are the action names that dispatch through the WASM
	// runtime. The runtime is only provisioned when a recipe step uses
	// one of them.
	WASMActions []string
}

// InitializeTargetOrg resolves the target, validates its documents,
// and provisions executors. An executor set already present on the
// context, the way tests and dry runs inject fakes, keeps whatever it
// has registered.
func (h *Hooks) InitializeTargetOrg(ctx context.Context, ec *engine.Context) error {
	if err := h.Defaults.InitializeTargetOrg(ctx, ec); err != nil {
		return err
	}
	if err := h.validateDocuments(ec); err != nil {
		return err
	}

	if !ec.TargetOrg.IsScratchOrg {
		reqs, err := Parse(ec.TargetRequirements[ec.TargetOrg.OrgReqsJSON])
		if err != nil {
			return engine.NewValidationError(fmt.Sprintf("%s: %v", ec.TargetOrg.OrgReqsJSON, err))
		}
		h.Reqs = reqs
	}

	return h.provision(ctx, ec)
}

// validateDocuments schema-checks the loaded target documents.
func (h *Hooks) validateDocuments(ec *engine.Context) error {
	if ec.Project == nil {
		return nil
	}
	schemas := ec.Project.Schemas()

	if ec.TargetOrg.IsScratchOrg {
		doc, ok := ec.TargetRequirements[ec.TargetOrg.ScratchDefJSON].(map[string]any)
		if !ok {
			return nil
		}
		if violations := schemas.ValidateScratchDef(doc); len(violations) > 0 {
			return engine.NewValidationError(documentError(ec.TargetOrg.ScratchDefJSON, violations))
		}
		return nil
	}

	doc, ok := ec.TargetRequirements[ec.TargetOrg.OrgReqsJSON].(map[string]any)
	if !ok {
		return nil
	}
	if violations := schemas.ValidateOrgRequirements(doc); len(violations) > 0 {
		return engine.NewValidationError(documentError(ec.TargetOrg.OrgReqsJSON, violations))
	}
	return nil
}

// documentError compacts schema violations into one message.
func documentError(filename string, violations []config.ValidationError) string {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		if v.Path != "" {
			parts = append(parts, v.Path+": "+v.Message)
			continue
		}
		parts = append(parts, v.Message)
	}
	return filename + ": " + strings.Join(parts, "; ")
}

// provision fills the executor set with what the target needs.
func (h *Hooks) provision(ctx context.Context, ec *engine.Context) error {
	if ec.Executors == nil {
		ec.Executors = executors.NewSet(ec.Log)
	}
	set := ec.Executors

	if !set.Has(executors.KindLocal) {
		if err := set.Register(executors.NewLocal(ec.Log)); err != nil {
			return err
		}
	}

	if !ec.TargetOrg.IsScratchOrg && !set.Has(executors.KindSSH) {
		transport, err := ssh.NewClient(h.Reqs.SSHConfig(), ec.Log)
		if err != nil {
			return fmt.Errorf("build transport for %s: %w", ec.TargetOrg.Alias, err)
		}
		sshExec, err := executors.NewSSH(transport, ec.Log)
		if err != nil {
			return err
		}
		if err := set.Register(sshExec); err != nil {
			return err
		}
	}

	if h.recipeNeedsWASM(ec) && !set.Has(executors.KindWASM) {
		wasmExec, err := executors.NewWASM(ctx, ec.Log)
		if err != nil {
			return fmt.Errorf("start wasm runtime: %w", err)
		}
		if err := set.Register(wasmExec); err != nil {
			return err
		}
	}
	return nil
}

// recipeNeedsWASM reports whether any recipe step dispatches through
// the WASM runtime.
func (h *Hooks) recipeNeedsWASM(ec *engine.Context) bool {
	if len(h.WASMActions) == 0 || ec.Recipe == nil {
		return false
	}
	wasm := make(map[string]struct{}, len(h.WASMActions))
	for _, name := range h.WASMActions {
		wasm[name] = struct{}{}
	}
	for _, group := range ec.Recipe.StepGroups {
		for _, step := range group.Steps {
			if _, ok := wasm[step.Action]; ok {
				return true
			}
		}
	}
	return false
}

// SudoPassword returns the org host sudo password, empty without
// requirements.
func (h *Hooks) SudoPassword() string {
	if h.Reqs == nil {
		return ""
	}
	return h.Reqs.Connection.SudoPassword
}

// BundleDefaults returns the requirement-declared bundle paths, zero
// without requirements.
func (h *Hooks) BundleDefaults() (localPath, remotePath string) {
	if h.Reqs == nil || h.Reqs.Bundle == nil {
		return "", ""
	}
	return h.Reqs.Bundle.LocalPath, h.Reqs.Bundle.RemotePath
}

// AdminDefaults returns the requirement-declared admin account, zero
// without requirements.
func (h *Hooks) AdminDefaults() (username, role, shell string) {
	if h.Reqs == nil || h.Reqs.AdminUser == nil {
		return "", "", ""
	}
	return h.Reqs.AdminUser.Username, h.Reqs.AdminUser.Role, h.Reqs.AdminUser.Shell
}

// Packages returns the requirement-declared package list.
func (h *Hooks) Packages() []string {
	if h.Reqs == nil {
		return nil
	}
	return h.Reqs.Packages
}

// SetupScripts returns the requirement-declared setup scripts.
func (h *Hooks) SetupScripts() []string {
	if h.Reqs == nil {
		return nil
	}
	return h.Reqs.SetupScripts
}
