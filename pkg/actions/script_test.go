package actions

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/orgforge/orgforge/pkg/engine"
	"github.com/orgforge/orgforge/pkg/executors"
	"github.com/orgforge/orgforge/pkg/results"
)

func TestRunRemoteScriptInline(t *testing.T) {
	fake := &fakeExecutor{kind: executors.KindSSH}
	ec := persistentContext(t, newSet(t, fake))
	action := NewRunRemoteScript("hunter2", nil)

	node, err := action.Execute(context.Background(), ec, step("run-remote-script", map[string]any{
		"script": "systemctl restart orgd",
		"sudo":   true,
	}))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	wantStatus(t, node, results.StatusSuccess)

	req := fake.reqs[0]
	if req.Script != "systemctl restart orgd" {
		t.Errorf("script = %q", req.Script)
	}
	if req.Interpreter != "bash" {
		t.Errorf("interpreter = %q, want the default", req.Interpreter)
	}
	if !req.Sudo || req.SudoPassword != "hunter2" {
		t.Errorf("sudo = %v password = %q", req.Sudo, req.SudoPassword)
	}
}

func TestRunRemoteScriptFromFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "tune.sh"), []byte("sysctl -p"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	fake := &fakeExecutor{kind: executors.KindSSH}
	ec := persistentContext(t, newSet(t, fake))
	withProject(t, ec, dir)
	action := NewRunRemoteScript("", nil)

	node, err := action.Execute(context.Background(), ec, step("run-remote-script", map[string]any{
		"scriptFile":  "tune.sh",
		"interpreter": "sh",
	}))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	wantStatus(t, node, results.StatusSuccess)

	if fake.reqs[0].Script != "sysctl -p" {
		t.Errorf("script = %q, want the file contents", fake.reqs[0].Script)
	}
	if fake.reqs[0].Interpreter != "sh" {
		t.Errorf("interpreter = %q", fake.reqs[0].Interpreter)
	}
}

func TestRunRemoteScriptSetupFallback(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "setup"), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	for name, body := range map[string]string{"setup/a.sh": "echo a", "setup/b.sh": "echo b"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("WriteFile(%s) error = %v", name, err)
		}
	}

	fake := &fakeExecutor{kind: executors.KindSSH}
	ec := persistentContext(t, newSet(t, fake))
	withProject(t, ec, dir)
	action := NewRunRemoteScript("", []string{"setup/a.sh", "setup/b.sh"})

	node, err := action.Execute(context.Background(), ec, step("run-remote-script", nil))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	wantStatus(t, node, results.StatusSuccess)

	if len(fake.reqs) != 2 {
		t.Fatalf("requests = %d, want one per setup script", len(fake.reqs))
	}
	if len(node.Children) != 2 {
		t.Fatalf("children = %d, want one per script", len(node.Children))
	}
	scripts, ok := detailMap(t, node)["scripts"].([]string)
	if !ok || len(scripts) != 2 || scripts[0] != "setup/a.sh" {
		t.Errorf("detail scripts = %v", scripts)
	}
}

func TestRunRemoteScriptStopsOnFailure(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.sh", "b.sh"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("exit 1"), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}

	fake := &fakeExecutor{kind: executors.KindSSH, resp: &executors.Response{ExitCode: 1}}
	ec := persistentContext(t, newSet(t, fake))
	withProject(t, ec, dir)
	action := NewRunRemoteScript("", []string{"a.sh", "b.sh"})

	node, err := action.Execute(context.Background(), ec, step("run-remote-script", nil))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	wantStatus(t, node, results.StatusFailure)

	if len(fake.reqs) != 1 {
		t.Errorf("requests = %d, want the run to stop after the first failure", len(fake.reqs))
	}
}

func TestRunRemoteScriptValidateOptions(t *testing.T) {
	bare := NewRunRemoteScript("", nil)
	if err := bare.ValidateOptions(map[string]any{}); !engine.IsMissingOption(err) {
		t.Fatalf("ValidateOptions() error = %v, want missing option", err)
	}
	if err := bare.ValidateOptions(map[string]any{"script": "echo hi"}); err != nil {
		t.Errorf("ValidateOptions(script) error = %v", err)
	}
	if err := bare.ValidateOptions(map[string]any{"scriptFile": "a.sh"}); err != nil {
		t.Errorf("ValidateOptions(scriptFile) error = %v", err)
	}

	withFallback := NewRunRemoteScript("", []string{"setup/a.sh"})
	if err := withFallback.ValidateOptions(map[string]any{}); err != nil {
		t.Errorf("ValidateOptions() error = %v, want the fallback accepted", err)
	}
}

func TestRunRemoteScriptMissingFile(t *testing.T) {
	ec := persistentContext(t, newSet(t, &fakeExecutor{kind: executors.KindSSH}))
	withProject(t, ec, t.TempDir())
	action := NewRunRemoteScript("", nil)

	if _, err := action.Execute(context.Background(), ec, step("run-remote-script", map[string]any{"scriptFile": "gone.sh"})); err == nil {
		t.Fatal("Execute() succeeded with a missing script file")
	}
}
