package target

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/orgforge/orgforge/pkg/transports/ssh"
)

// Requirements is the parsed org requirements document of a persistent
// target org.
type Requirements struct {
	OrgName     string `json:"orgName,omitempty"`
	Description string `json:"description,omitempty"`

	// Connection says how to reach the org host.
	Connection Connection `json:"connection"`

	// Bundle is the release bundle the org should run. Seeds the
	// deploy and remove bundle actions.
	Bundle *Bundle `json:"bundle,omitempty"`

	// AdminUser is the administrative account the org should end up
	// with. Seeds the configure-admin-user action.
	AdminUser *AdminUser `json:"adminUser,omitempty"`

	// Packages install when a package step pins none of its own.
	Packages []string `json:"packages,omitempty"`

	// Features the org is expected to carry.
	Features []string `json:"features,omitempty"`

	// SetupScripts run when a remote-script step names none.
	SetupScripts []string `json:"setupScripts,omitempty"`
}

// Connection holds the SSH details for the org host.
type Connection struct {
	Host           string  `json:"host"`
	User           string  `json:"user"`
	Port           int     `json:"port,omitempty"`
	AuthMethod     string  `json:"authMethod,omitempty"`
	Password       string  `json:"password,omitempty"`
	PrivateKeyPath string  `json:"privateKeyPath,omitempty"`
	KnownHostsFile string  `json:"knownHostsFile,omitempty"`
	TimeoutSeconds float64 `json:"timeoutSeconds,omitempty"`
	SudoPassword   string  `json:"sudoPassword,omitempty"`

	// InsecureSkipHostKey accepts any host key. Development only.
	InsecureSkipHostKey bool `json:"insecureSkipHostKey,omitempty"`
}

// Bundle names the release bundle on both ends of the transfer.
type Bundle struct {
	LocalPath  string `json:"localPath"`
	RemotePath string `json:"remotePath"`
}

// AdminUser describes the org's administrative account.
type AdminUser struct {
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
	Shell    string `json:"shell,omitempty"`
}

// Parse decodes a loaded org requirements document into Requirements.
func Parse(doc any) (*Requirements, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode org requirements: %w", err)
	}
	var reqs Requirements
	if err := json.Unmarshal(raw, &reqs); err != nil {
		return nil, fmt.Errorf("decode org requirements: %w", err)
	}
	if err := reqs.Validate(); err != nil {
		return nil, err
	}
	return &reqs, nil
}

// Validate checks the fields provisioning depends on.
func (r *Requirements) Validate() error {
	if r.Connection.Host == "" {
		return fmt.Errorf("org requirements: connection.host is required")
	}
	if r.Connection.User == "" {
		return fmt.Errorf("org requirements: connection.user is required")
	}
	return nil
}

// SSHConfig maps the connection details onto a transport
// configuration. Unset fields keep the transport defaults.
func (r *Requirements) SSHConfig() *ssh.Config {
	conn := r.Connection
	cfg := ssh.DefaultConfig(conn.Host, conn.User)
	if conn.Port > 0 {
		cfg.Port = conn.Port
	}
	if conn.AuthMethod != "" {
		cfg.AuthMethod = ssh.AuthMethod(conn.AuthMethod)
	}
	cfg.Password = conn.Password
	if conn.PrivateKeyPath != "" {
		cfg.PrivateKeyPath = expandHome(conn.PrivateKeyPath)
	}
	if conn.KnownHostsFile != "" {
		cfg.KnownHostsPath = expandHome(conn.KnownHostsFile)
	}
	if conn.InsecureSkipHostKey {
		cfg.StrictHostKeyChecking = false
	}
	if conn.TimeoutSeconds > 0 {
		cfg.ConnectTimeout = time.Duration(conn.TimeoutSeconds * float64(time.Second))
	}
	return cfg
}

// expandHome resolves a leading ~ against the current home directory.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
