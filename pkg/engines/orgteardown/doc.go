// Package orgteardown is the engine family for org-teardown recipes.
// It decommissions a target org: deleting scratch orgs through the org
// CLI, removing deployed bundles and running cleanup scripts over SSH
// on persistent orgs. Every run verifies the target before touching it
// and records the final org state afterwards.
package orgteardown
