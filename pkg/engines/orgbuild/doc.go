// Package orgbuild is the engine family for org-build recipes. It
// provisions a target org end to end: creating scratch orgs through the
// org CLI, deploying release bundles and running setup scripts over SSH
// on persistent orgs, installing packages, and configuring the admin
// user through the WASM plugin. Every run is wrapped in an org
// preparation group that verifies the target first and an org
// finalization group that records the resulting state.
package orgbuild
