// Package main implements the adminuser plugin for OrgForge.
// The plugin derives an org host account manifest from the account
// request the configure-admin-user action writes to its stdin, and
// compiles to a WASI module the engine runs through the WASM executor:
//
//	GOOS=wasip1 GOARCH=wasm go build -o adminuser.wasm .
//
// The manifest goes to stdout as JSON; a rejected request exits
// non-zero with the reason on stderr.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"
)

// defaultRole is the account role used when the request names none.
const defaultRole = "admin"

// defaultShell is the login shell used when the request names none.
const defaultShell = "/bin/bash"

// homeRoot is where account home directories live on org hosts.
const homeRoot = "/home"

// baseGroup is the host group every admin account joins.
const baseGroup = "orgadmin"

var (
	// localPattern is the account-name rule org hosts enforce on the
	// part before any @org suffix.
	localPattern = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)

	// orgSuffixPattern is the rule for the org qualifier after the @.
	orgSuffixPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,62}$`)
)

// roleGroups maps known roles to the extra host groups they imply.
// Unknown roles imply none.
var roleGroups = map[string][]string{
	"sysadmin": {"wheel"},
	"devops":   {"wheel"},
	"auditor":  {"adm"},
}

// permissionGroups maps permission names, compared case-insensitively,
// to the host group that grants them. Permissions without a mapping
// are carried on the manifest untouched.
var permissionGroups = map[string]string{
	"sudo":   "wheel",
	"deploy": "orgdeploy",
	"logs":   "adm",
}

// AccountRequest is the JSON document the configure-admin-user action
// writes to the plugin's stdin.
type AccountRequest struct {
	// Username is the account to provision, optionally qualified with
	// an @org suffix. Required.
	Username string `json:"username"`

	// Role is the account role. Defaults to "admin".
	Role string `json:"role,omitempty"`

	// Shell is the login shell. Defaults to /bin/bash.
	Shell string `json:"shell,omitempty"`

	// Email is the account contact address.
	Email string `json:"email,omitempty"`

	// Permissions are the permission names granted to the account.
	Permissions []string `json:"permissions,omitempty"`

	// Org identifies the target org the account belongs to.
	Org OrgRef `json:"org"`
}

// OrgRef identifies the target org of an account request.
type OrgRef struct {
	// Alias is the org's short name. Required.
	Alias string `json:"alias"`

	// OrgName is the org's display name.
	OrgName string `json:"orgName,omitempty"`

	// IsScratchOrg reports whether the org is ephemeral.
	IsScratchOrg bool `json:"isScratchOrg,omitempty"`
}

// AccountManifest is the provisioning manifest the plugin writes to
// stdout: the resolved account plus the host material derived from it.
type AccountManifest struct {
	// Username is the account name as requested.
	Username string `json:"username"`

	// Role is the resolved account role.
	Role string `json:"role"`

	// Shell is the resolved login shell.
	Shell string `json:"shell"`

	// Email is the account contact address, when given.
	Email string `json:"email,omitempty"`

	// Login is the org-qualified login name.
	Login string `json:"login"`

	// Home is the account's home directory on the org host.
	Home string `json:"home"`

	// Permissions are the granted permissions, deduplicated and
	// sorted.
	Permissions []string `json:"permissions"`

	// Groups are the host groups the account joins, derived from the
	// role and permissions.
	Groups []string `json:"groups"`

	// Org identifies the org the account was derived for.
	Org OrgRef `json:"org"`
}

func main() {
	if err := run(os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run is the whole plugin: decode the request, validate it, derive the
// manifest, emit it.
func run(in io.Reader, out io.Writer) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read account request: %w", err)
	}

	var req AccountRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("parse account request: %w", err)
	}
	if err := validateAccountRequest(&req); err != nil {
		return err
	}

	return json.NewEncoder(out).Encode(deriveManifest(&req))
}

// validateAccountRequest checks the request against the account rules
// of org hosts.
func validateAccountRequest(req *AccountRequest) error {
	if req.Username == "" {
		return fmt.Errorf("username is required")
	}

	local, suffix, qualified := strings.Cut(req.Username, "@")
	if !localPattern.MatchString(local) {
		return fmt.Errorf("invalid username %q: must start with a lowercase letter or underscore and use only lowercase letters, digits, underscores, and dashes", req.Username)
	}
	if qualified && !orgSuffixPattern.MatchString(suffix) {
		return fmt.Errorf("invalid username %q: org qualifier %q must use only lowercase letters, digits, and dashes", req.Username, suffix)
	}

	if req.Shell != "" && !strings.HasPrefix(req.Shell, "/") {
		return fmt.Errorf("invalid shell %q: must be an absolute path", req.Shell)
	}

	if req.Email != "" {
		at := strings.Index(req.Email, "@")
		if at <= 0 || at == len(req.Email)-1 {
			return fmt.Errorf("invalid email %q", req.Email)
		}
	}

	if req.Org.Alias == "" {
		return fmt.Errorf("org alias is required")
	}
	return nil
}

// deriveManifest resolves defaults and derives the host material for a
// validated request.
func deriveManifest(req *AccountRequest) *AccountManifest {
	role := req.Role
	if role == "" {
		role = defaultRole
	}
	shell := req.Shell
	if shell == "" {
		shell = defaultShell
	}

	local, _, qualified := strings.Cut(req.Username, "@")
	login := req.Username
	if !qualified {
		login = req.Username + "@" + req.Org.Alias
	}

	permissions := normalizePermissions(req.Permissions)

	return &AccountManifest{
		Username:    req.Username,
		Role:        role,
		Shell:       shell,
		Email:       req.Email,
		Login:       login,
		Home:        path.Join(homeRoot, local),
		Permissions: permissions,
		Groups:      deriveGroups(role, permissions),
		Org:         req.Org,
	}
}

// normalizePermissions trims, deduplicates, and sorts the requested
// permissions. Case is preserved: permission names are opaque to the
// plugin.
func normalizePermissions(permissions []string) []string {
	seen := make(map[string]struct{}, len(permissions))
	out := make([]string, 0, len(permissions))
	for _, p := range permissions {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// deriveGroups resolves the host groups for a role and permission set:
// the base group, the role's groups, and the group of every mapped
// permission, deduplicated and sorted.
func deriveGroups(role string, permissions []string) []string {
	seen := map[string]struct{}{baseGroup: {}}
	groups := []string{baseGroup}

	add := func(g string) {
		if _, ok := seen[g]; ok {
			return
		}
		seen[g] = struct{}{}
		groups = append(groups, g)
	}

	for _, g := range roleGroups[role] {
		add(g)
	}
	for _, p := range permissions {
		if g, ok := permissionGroups[strings.ToLower(p)]; ok {
			add(g)
		}
	}

	sort.Strings(groups)
	return groups
}
