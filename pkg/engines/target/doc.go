// Package target turns a resolved target org into the concrete
// machinery a run needs: the parsed org requirements document, the SSH
// transport for persistent orgs, and the provisioned executor set. The
// engine families share it by embedding Hooks in their own
// initialization hooks.
package target
