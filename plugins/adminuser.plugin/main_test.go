package main

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestRunDerivesManifest(t *testing.T) {
	in := strings.NewReader(`{
		"username": "release_bot",
		"role": "devops",
		"email": "release@example.com",
		"permissions": ["Deploy", "sudo", "Deploy"],
		"org": {"alias": "qa", "orgName": "QA", "isScratchOrg": true}
	}`)
	var out bytes.Buffer

	if err := run(in, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	var manifest AccountManifest
	if err := json.Unmarshal(out.Bytes(), &manifest); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}

	if manifest.Login != "release_bot@qa" {
		t.Errorf("login = %q, want release_bot@qa", manifest.Login)
	}
	if manifest.Home != "/home/release_bot" {
		t.Errorf("home = %q, want /home/release_bot", manifest.Home)
	}
	if manifest.Role != "devops" || manifest.Shell != defaultShell {
		t.Errorf("role = %q shell = %q, want devops with the default shell", manifest.Role, manifest.Shell)
	}
	if want := []string{"Deploy", "sudo"}; !reflect.DeepEqual(manifest.Permissions, want) {
		t.Errorf("permissions = %v, want %v", manifest.Permissions, want)
	}
	if want := []string{"orgadmin", "orgdeploy", "wheel"}; !reflect.DeepEqual(manifest.Groups, want) {
		t.Errorf("groups = %v, want %v", manifest.Groups, want)
	}
	if manifest.Org.Alias != "qa" || !manifest.Org.IsScratchOrg {
		t.Errorf("org = %+v", manifest.Org)
	}
}

func TestRunQualifiedUsername(t *testing.T) {
	in := strings.NewReader(`{"username": "admin@qa", "org": {"alias": "qa"}}`)
	var out bytes.Buffer

	if err := run(in, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	var manifest AccountManifest
	if err := json.Unmarshal(out.Bytes(), &manifest); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}

	if manifest.Login != "admin@qa" {
		t.Errorf("login = %q, want the qualifier kept as-is", manifest.Login)
	}
	if manifest.Home != "/home/admin" {
		t.Errorf("home = %q, want the unqualified home", manifest.Home)
	}
	if manifest.Role != defaultRole {
		t.Errorf("role = %q, want the default", manifest.Role)
	}
	if want := []string{baseGroup}; !reflect.DeepEqual(manifest.Groups, want) {
		t.Errorf("groups = %v, want just the base group", manifest.Groups)
	}
}

func TestRunRejectsMalformedInput(t *testing.T) {
	var out bytes.Buffer
	err := run(strings.NewReader(`{"username": `), &out)
	if err == nil || !strings.Contains(err.Error(), "parse account request") {
		t.Fatalf("run() error = %v, want a parse error", err)
	}
	if out.Len() != 0 {
		t.Errorf("output written for a rejected request: %q", out.String())
	}
}

func TestValidateAccountRequest(t *testing.T) {
	valid := func() AccountRequest {
		return AccountRequest{
			Username: "qa-admin",
			Org:      OrgRef{Alias: "qa"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*AccountRequest)
		wantErr string
	}{
		{name: "minimal request", mutate: func(r *AccountRequest) {}},
		{
			name:   "qualified username",
			mutate: func(r *AccountRequest) { r.Username = "admin@qa-env" },
		},
		{
			name:   "full request",
			mutate: func(r *AccountRequest) { r.Shell = "/bin/zsh"; r.Email = "qa@example.com" },
		},
		{
			name:    "missing username",
			mutate:  func(r *AccountRequest) { r.Username = "" },
			wantErr: "username is required",
		},
		{
			name:    "uppercase username",
			mutate:  func(r *AccountRequest) { r.Username = "Admin" },
			wantErr: "invalid username",
		},
		{
			name:    "username starting with a digit",
			mutate:  func(r *AccountRequest) { r.Username = "1admin" },
			wantErr: "invalid username",
		},
		{
			name:    "bad org qualifier",
			mutate:  func(r *AccountRequest) { r.Username = "admin@QA!" },
			wantErr: "org qualifier",
		},
		{
			name:    "relative shell",
			mutate:  func(r *AccountRequest) { r.Shell = "bash" },
			wantErr: "invalid shell",
		},
		{
			name:    "email without a domain",
			mutate:  func(r *AccountRequest) { r.Email = "qa@" },
			wantErr: "invalid email",
		},
		{
			name:    "missing org alias",
			mutate:  func(r *AccountRequest) { r.Org.Alias = "" },
			wantErr: "org alias is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)
			err := validateAccountRequest(&req)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("validateAccountRequest() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("validateAccountRequest() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestDeriveGroups(t *testing.T) {
	tests := []struct {
		name        string
		role        string
		permissions []string
		want        []string
	}{
		{name: "unknown role", role: "release-manager", want: []string{"orgadmin"}},
		{name: "sysadmin", role: "sysadmin", want: []string{"orgadmin", "wheel"}},
		{
			name:        "permission mapped case-insensitively",
			role:        "auditor",
			permissions: []string{"Logs"},
			want:        []string{"adm", "orgadmin"},
		},
		{
			name:        "role and permission sharing a group",
			role:        "devops",
			permissions: []string{"sudo", "deploy"},
			want:        []string{"orgadmin", "orgdeploy", "wheel"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := deriveGroups(tt.role, tt.permissions)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("deriveGroups() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizePermissions(t *testing.T) {
	got := normalizePermissions([]string{" deploy ", "", "ModifyAllData", "deploy"})
	want := []string{"ModifyAllData", "deploy"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("normalizePermissions() = %v, want %v", got, want)
	}
}
