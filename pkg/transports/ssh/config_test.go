package ssh

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validPasswordConfig() *Config {
	cfg := DefaultConfig("build-target.example.com", "provisioner")
	cfg.AuthMethod = AuthPassword
	cfg.Password = "secret"
	cfg.StrictHostKeyChecking = false
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("build-target.example.com", "provisioner")

	if cfg.Host != "build-target.example.com" {
		t.Errorf("Host = %q", cfg.Host)
	}
	if cfg.User != "provisioner" {
		t.Errorf("User = %q", cfg.User)
	}
	if cfg.Port != 22 {
		t.Errorf("Port = %d, want 22", cfg.Port)
	}
	if cfg.AuthMethod != AuthPrivateKey {
		t.Errorf("AuthMethod = %q, want %q", cfg.AuthMethod, AuthPrivateKey)
	}
	if !cfg.StrictHostKeyChecking {
		t.Error("StrictHostKeyChecking should default to true")
	}
	if cfg.ConnectTimeout != 30*time.Second {
		t.Errorf("ConnectTimeout = %v", cfg.ConnectTimeout)
	}
	if cfg.CommandTimeout != 5*time.Minute {
		t.Errorf("CommandTimeout = %v", cfg.CommandTimeout)
	}
	if cfg.KeepAliveInterval != 0 {
		t.Errorf("KeepAliveInterval = %v, want disabled", cfg.KeepAliveInterval)
	}
}

func TestConfigValidate(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "id_test")
	if err := os.WriteFile(keyFile, []byte("not inspected by Validate"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid password auth",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing host",
			mutate:  func(c *Config) { c.Host = "" },
			wantErr: "host is required",
		},
		{
			name:    "port zero",
			mutate:  func(c *Config) { c.Port = 0 },
			wantErr: "invalid port",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Port = 70000 },
			wantErr: "invalid port",
		},
		{
			name:    "missing user",
			mutate:  func(c *Config) { c.User = "" },
			wantErr: "user is required",
		},
		{
			name: "password auth without password",
			mutate: func(c *Config) {
				c.Password = ""
			},
			wantErr: "password is required",
		},
		{
			name: "unsupported auth method",
			mutate: func(c *Config) {
				c.AuthMethod = "kerberos"
			},
			wantErr: "unsupported auth method",
		},
		{
			name: "private key file missing",
			mutate: func(c *Config) {
				c.AuthMethod = AuthPrivateKey
				c.PrivateKeyPath = filepath.Join(t.TempDir(), "absent")
			},
			wantErr: "private key file not found",
		},
		{
			name: "private key file present",
			mutate: func(c *Config) {
				c.AuthMethod = AuthPrivateKey
				c.PrivateKeyPath = keyFile
			},
		},
		{
			name: "agent auth defers the socket check",
			mutate: func(c *Config) {
				c.AuthMethod = AuthAgent
			},
		},
		{
			name:    "zero connect timeout",
			mutate:  func(c *Config) { c.ConnectTimeout = 0 },
			wantErr: "connect timeout",
		},
		{
			name:    "zero command timeout",
			mutate:  func(c *Config) { c.CommandTimeout = 0 },
			wantErr: "command timeout",
		},
		{
			name: "keep-alive enabled without a miss limit",
			mutate: func(c *Config) {
				c.KeepAliveInterval = time.Second
				c.KeepAliveMaxMisses = 0
			},
			wantErr: "keep-alive max misses",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validPasswordConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigAddress(t *testing.T) {
	cfg := DefaultConfig("build-target.example.com", "provisioner")
	cfg.Port = 2022
	if got := cfg.Address(); got != "build-target.example.com:2022" {
		t.Errorf("Address() = %q", got)
	}

	cfg.Host = "::1"
	cfg.Port = 22
	if got := cfg.Address(); got != "[::1]:22" {
		t.Errorf("Address() = %q, want bracketed IPv6", got)
	}
}

func TestBuildClientConfigPassword(t *testing.T) {
	cfg := validPasswordConfig()

	clientConfig, err := cfg.buildClientConfig()
	if err != nil {
		t.Fatalf("buildClientConfig() error = %v", err)
	}
	if clientConfig.User != "provisioner" {
		t.Errorf("User = %q", clientConfig.User)
	}
	// Password plus keyboard-interactive fallback.
	if len(clientConfig.Auth) != 2 {
		t.Errorf("len(Auth) = %d, want 2", len(clientConfig.Auth))
	}
	if clientConfig.Timeout != cfg.ConnectTimeout {
		t.Errorf("Timeout = %v, want %v", clientConfig.Timeout, cfg.ConnectTimeout)
	}
}

func TestBuildClientConfigPrivateKey(t *testing.T) {
	_, keyPEM := generateTestKey(t)
	keyFile := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig("build-target.example.com", "provisioner")
	cfg.PrivateKeyPath = keyFile
	cfg.StrictHostKeyChecking = false

	clientConfig, err := cfg.buildClientConfig()
	if err != nil {
		t.Fatalf("buildClientConfig() error = %v", err)
	}
	if len(clientConfig.Auth) != 1 {
		t.Errorf("len(Auth) = %d, want 1", len(clientConfig.Auth))
	}
}

func TestBuildClientConfigPrivateKeyGarbage(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(keyFile, []byte("not a pem key"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig("build-target.example.com", "provisioner")
	cfg.PrivateKeyPath = keyFile
	cfg.StrictHostKeyChecking = false

	if _, err := cfg.buildClientConfig(); err == nil || !strings.Contains(err.Error(), "parse private key") {
		t.Fatalf("buildClientConfig() error = %v, want parse failure", err)
	}
}

func TestBuildClientConfigAgentWithoutSocket(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")

	cfg := DefaultConfig("build-target.example.com", "provisioner")
	cfg.AuthMethod = AuthAgent
	cfg.StrictHostKeyChecking = false

	if _, err := cfg.buildClientConfig(); err == nil || !strings.Contains(err.Error(), "SSH_AUTH_SOCK") {
		t.Fatalf("buildClientConfig() error = %v, want missing agent socket", err)
	}
}

func TestBuildClientConfigKnownHostsMissing(t *testing.T) {
	cfg := validPasswordConfig()
	cfg.StrictHostKeyChecking = true
	cfg.KnownHostsPath = filepath.Join(t.TempDir(), "known_hosts")

	if _, err := cfg.buildClientConfig(); err == nil || !strings.Contains(err.Error(), "known_hosts") {
		t.Fatalf("buildClientConfig() error = %v, want known_hosts failure", err)
	}
}

func TestSudoCommand(t *testing.T) {
	full, stdin := sudoCommand("systemctl restart nginx", "secret")
	if full != "sudo -S -p '' systemctl restart nginx" {
		t.Errorf("full = %q", full)
	}
	if stdin != "secret\n" {
		t.Errorf("stdin = %q", stdin)
	}

	full, stdin = sudoCommand("systemctl restart nginx", "")
	if full != "sudo -n systemctl restart nginx" {
		t.Errorf("full = %q", full)
	}
	if stdin != "" {
		t.Errorf("stdin = %q, want empty", stdin)
	}
}

func TestShellQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/opt/orgforge/bundle", "'/opt/orgforge/bundle'"},
		{"/tmp/with space", "'/tmp/with space'"},
		{"it's", `'it'\''s'`},
	}
	for _, tt := range tests {
		if got := shellQuote(tt.in); got != tt.want {
			t.Errorf("shellQuote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
