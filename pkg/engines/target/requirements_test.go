package target

import (
	"strings"
	"testing"
	"time"

	"github.com/orgforge/orgforge/pkg/transports/ssh"
)

func sampleDoc() map[string]any {
	return map[string]any{
		"orgName": "QA Host",
		"connection": map[string]any{
			"host":           "org.example.internal",
			"user":           "forge",
			"port":           float64(2222),
			"authMethod":     "password",
			"password":       "pw",
			"sudoPassword":   "hunter2",
			"timeoutSeconds": float64(10),
		},
		"bundle": map[string]any{
			"localPath":  "dist/bundle.tar",
			"remotePath": "/srv/org/bundle.tar",
		},
		"adminUser": map[string]any{
			"username": "root-admin",
			"role":     "sysadmin",
			"shell":    "/bin/bash",
		},
		"packages":     []any{"core", "billing"},
		"setupScripts": []any{"setup/base.sh"},
	}
}

func TestParse(t *testing.T) {
	reqs, err := Parse(sampleDoc())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if reqs.OrgName != "QA Host" {
		t.Errorf("OrgName = %q", reqs.OrgName)
	}
	if reqs.Connection.Host != "org.example.internal" || reqs.Connection.Port != 2222 {
		t.Errorf("Connection = %+v", reqs.Connection)
	}
	if reqs.Connection.SudoPassword != "hunter2" {
		t.Errorf("SudoPassword = %q", reqs.Connection.SudoPassword)
	}
	if reqs.Bundle == nil || reqs.Bundle.RemotePath != "/srv/org/bundle.tar" {
		t.Errorf("Bundle = %+v", reqs.Bundle)
	}
	if reqs.AdminUser == nil || reqs.AdminUser.Username != "root-admin" {
		t.Errorf("AdminUser = %+v", reqs.AdminUser)
	}
	if len(reqs.Packages) != 2 || reqs.Packages[1] != "billing" {
		t.Errorf("Packages = %v", reqs.Packages)
	}
	if len(reqs.SetupScripts) != 1 {
		t.Errorf("SetupScripts = %v", reqs.SetupScripts)
	}
}

func TestParseRequiresConnection(t *testing.T) {
	if _, err := Parse(map[string]any{"connection": map[string]any{"user": "forge"}}); err == nil || !strings.Contains(err.Error(), "connection.host") {
		t.Errorf("Parse() error = %v, want missing host", err)
	}
	if _, err := Parse(map[string]any{"connection": map[string]any{"host": "h"}}); err == nil || !strings.Contains(err.Error(), "connection.user") {
		t.Errorf("Parse() error = %v, want missing user", err)
	}
}

func TestSSHConfig(t *testing.T) {
	reqs, err := Parse(sampleDoc())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg := reqs.SSHConfig()
	if cfg.Host != "org.example.internal" || cfg.User != "forge" || cfg.Port != 2222 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.AuthMethod != ssh.AuthPassword || cfg.Password != "pw" {
		t.Errorf("auth = %s/%q", cfg.AuthMethod, cfg.Password)
	}
	if cfg.ConnectTimeout != 10*time.Second {
		t.Errorf("ConnectTimeout = %s", cfg.ConnectTimeout)
	}
	if !cfg.StrictHostKeyChecking {
		t.Error("strict host keys disabled without insecureSkipHostKey")
	}
}

func TestSSHConfigDefaults(t *testing.T) {
	reqs := &Requirements{Connection: Connection{Host: "h", User: "u"}}
	cfg := reqs.SSHConfig()

	if cfg.Port != 22 {
		t.Errorf("Port = %d, want the transport default", cfg.Port)
	}
	if cfg.AuthMethod != ssh.AuthPrivateKey {
		t.Errorf("AuthMethod = %s, want the transport default", cfg.AuthMethod)
	}
}

func TestSSHConfigInsecureSkipHostKey(t *testing.T) {
	reqs := &Requirements{Connection: Connection{Host: "h", User: "u", InsecureSkipHostKey: true}}
	if reqs.SSHConfig().StrictHostKeyChecking {
		t.Error("strict host keys kept despite insecureSkipHostKey")
	}
}

func TestExpandHome(t *testing.T) {
	t.Setenv("HOME", "/home/forge")

	reqs := &Requirements{Connection: Connection{
		Host:           "h",
		User:           "u",
		PrivateKeyPath: "~/.ssh/id_ed25519",
		KnownHostsFile: "~/.ssh/known_hosts",
	}}
	cfg := reqs.SSHConfig()

	if cfg.PrivateKeyPath != "/home/forge/.ssh/id_ed25519" {
		t.Errorf("PrivateKeyPath = %q", cfg.PrivateKeyPath)
	}
	if cfg.KnownHostsPath != "/home/forge/.ssh/known_hosts" {
		t.Errorf("KnownHostsPath = %q", cfg.KnownHostsPath)
	}

	if got := expandHome("/etc/keys/id"); got != "/etc/keys/id" {
		t.Errorf("expandHome(absolute) = %q", got)
	}
	if got := expandHome("~"); got != "/home/forge" {
		t.Errorf("expandHome(~) = %q", got)
	}
}
