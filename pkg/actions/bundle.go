package actions

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/orgforge/orgforge/pkg/engine"
	"github.com/orgforge/orgforge/pkg/executors"
	"github.com/orgforge/orgforge/pkg/results"
	"github.com/orgforge/orgforge/pkg/transports/ssh"
)

// defaultBundleRoot is where bundles land on a persistent org host
// when neither the step nor the org requirements name a destination.
const defaultBundleRoot = "/opt/orgforge/bundles"

// BundleDefaults seeds deploy options from the org requirements
// document so recipes only state what differs.
type BundleDefaults struct {
	LocalPath  string
	RemotePath string
}

// DeployOrgBundle uploads a release bundle to the org host and checks
// the transfer end to end against a SHA-256 checksum.
type DeployOrgBundle struct {
	Base
	defaults BundleDefaults
}

// NewDeployOrgBundle returns the bundle deployment action. When the
// defaults carry a local path, the bundlePath option becomes optional.
func NewDeployOrgBundle(defaults BundleDefaults) *DeployOrgBundle {
	required := []string{"bundlePath"}
	if defaults.LocalPath != "" {
		required = nil
	}
	return &DeployOrgBundle{
		Base: Base{Meta: engine.Descriptor{
			Name:            "deploy-org-bundle",
			Description:     "Upload a release bundle to the org host and verify the transfer",
			Executor:        executors.KindSSH,
			RequiredOptions: required,
			Timeout:         10 * time.Minute,
		}},
		defaults: defaults,
	}
}

// Execute pushes the bundle and, for plain files, compares checksums
// on both ends. A mismatch finalizes the action as a failure.
func (a *DeployOrgBundle) Execute(ctx context.Context, ec *engine.Context, step engine.PlanStep) (*results.Node, error) {
	node := newNode(step)

	localPath := stringOption(step.Options, "bundlePath", a.defaults.LocalPath)
	if localPath == "" {
		return node, engine.NewMissingOptionError(a.Meta.Name, "bundlePath")
	}
	remotePath := stringOption(step.Options, "remotePath", a.defaults.RemotePath)
	if remotePath == "" {
		remotePath = path.Join(defaultBundleRoot, filepath.Base(localPath))
	}
	recursive := boolOption(step.Options, "recursive", false)

	req := executors.Request{
		Name:    "bundle-push",
		Timeout: a.Meta.Timeout,
		Uploads: []executors.Upload{{
			LocalPath:  localPath,
			RemotePath: remotePath,
			Mode:       0o644,
			Recursive:  recursive,
		}},
	}
	resp, done, err := dispatch(ctx, ec, node, a.Meta.Executor, req)
	if err != nil {
		return node, err
	}
	if done {
		return node, nil
	}

	detail := map[string]any{
		"bundle":     localPath,
		"remotePath": remotePath,
		"bytes":      resp.BytesPushed,
	}
	if !recursive && boolOption(step.Options, "verifyChecksum", true) {
		verified, err := a.verify(ctx, ec, localPath, remotePath, detail)
		if err != nil {
			return node, err
		}
		if !verified {
			_ = node.Failure(detail)
			return node, nil
		}
	}

	_ = node.Success(detail)
	return node, nil
}

// verify compares the local bundle checksum with the uploaded copy.
// Executors without a transport cannot be checked; the detail records
// that the verification was skipped.
func (a *DeployOrgBundle) verify(ctx context.Context, ec *engine.Context, localPath, remotePath string, detail map[string]any) (bool, error) {
	local, err := ssh.LocalSHA256(localPath)
	if err != nil {
		return false, fmt.Errorf("checksum local bundle: %w", err)
	}

	e, err := ec.Executors.Get(a.Meta.Executor)
	if err != nil {
		return false, err
	}
	carrier, ok := e.(interface{ Transport() ssh.Transport })
	if !ok {
		detail["checksum"] = "skipped"
		return true, nil
	}

	remote, err := carrier.Transport().Checksum(ctx, remotePath)
	if err != nil {
		return false, fmt.Errorf("checksum remote bundle: %w", err)
	}

	detail["checksum"] = local
	if remote != local {
		detail["remoteChecksum"] = remote
		return false, nil
	}
	return true, nil
}

// RemoveOrgBundle deletes a deployed bundle from the org host.
type RemoveOrgBundle struct {
	Base
	defaultRemotePath string
	sudoPassword      string
}

// NewRemoveOrgBundle returns the bundle removal action. The default
// remote path comes from the org requirements; when present, the
// remotePath option becomes optional.
func NewRemoveOrgBundle(defaultRemotePath, sudoPassword string) *RemoveOrgBundle {
	required := []string{"remotePath"}
	if defaultRemotePath != "" {
		required = nil
	}
	return &RemoveOrgBundle{
		Base: Base{Meta: engine.Descriptor{
			Name:            "remove-org-bundle",
			Description:     "Remove a deployed bundle from the org host",
			Executor:        executors.KindSSH,
			RequiredOptions: required,
			Timeout:         2 * time.Minute,
		}},
		defaultRemotePath: defaultRemotePath,
		sudoPassword:      sudoPassword,
	}
}

// Execute removes the remote path. Relative paths and the filesystem
// root are rejected before anything runs.
func (a *RemoveOrgBundle) Execute(ctx context.Context, ec *engine.Context, step engine.PlanStep) (*results.Node, error) {
	node := newNode(step)

	remotePath := stringOption(step.Options, "remotePath", a.defaultRemotePath)
	if remotePath == "" {
		return node, engine.NewMissingOptionError(a.Meta.Name, "remotePath")
	}
	remotePath = path.Clean(remotePath)
	if !path.IsAbs(remotePath) || remotePath == "/" {
		return node, engine.NewValidationError(fmt.Sprintf("refusing to remove %q: remote path must be absolute and below /", remotePath))
	}

	req := executors.Request{
		Name:         "bundle-remove",
		Command:      "rm -rf " + shellQuote(remotePath),
		Sudo:         boolOption(step.Options, "sudo", false),
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

	_ = node.Success(map[string]any{"remotePath": remotePath})
	return node, nil
}
