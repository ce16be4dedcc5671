package executors

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLocalShellCommand(t *testing.T) {
	local := NewLocal(nil)

	resp, err := local.Run(context.Background(), Request{Name: "greet", Command: "echo hello"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if resp.Stdout != "hello" {
		t.Errorf("Stdout = %q, want %q", resp.Stdout, "hello")
	}
	if !resp.Ok() || resp.ExitCode != 0 {
		t.Errorf("ExitCode = %d", resp.ExitCode)
	}
	if resp.Kind != KindLocal {
		t.Errorf("Kind = %q", resp.Kind)
	}
	if resp.FinishedAt.Before(resp.StartedAt) {
		t.Error("FinishedAt before StartedAt")
	}
}

func TestLocalDiscreteArgs(t *testing.T) {
	local := NewLocal(nil)

	resp, err := local.Run(context.Background(), Request{Command: "/bin/echo", Args: []string{"one two"}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// A single argument with a space survives only without shell splitting.
	if resp.Stdout != "one two" {
		t.Errorf("Stdout = %q, want %q", resp.Stdout, "one two")
	}
}

func TestLocalNonZeroExitIsNotAnError(t *testing.T) {
	local := NewLocal(nil)

	resp, err := local.Run(context.Background(), Request{Command: "exit 7"})
	if err != nil {
		t.Fatalf("Run() error = %v, want nil for a non-zero exit", err)
	}
	if resp.ExitCode != 7 {
		t.Errorf("ExitCode = %d, want 7", resp.ExitCode)
	}
	if resp.Ok() {
		t.Error("Ok() = true for exit 7")
	}
}

func TestLocalStderr(t *testing.T) {
	local := NewLocal(nil)

	resp, err := local.Run(context.Background(), Request{Command: "echo bad >&2; exit 1"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if resp.Stderr != "bad" {
		t.Errorf("Stderr = %q, want %q", resp.Stderr, "bad")
	}
	if resp.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", resp.ExitCode)
	}
}

func TestLocalEnv(t *testing.T) {
	local := NewLocal(nil)

	resp, err := local.Run(context.Background(), Request{
		Command: `printf '%s' "$FORGE_TEST_TOKEN"`,
		Env:     map[string]string{"FORGE_TEST_TOKEN": "tok123"},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if resp.Stdout != "tok123" {
		t.Errorf("Stdout = %q, want injected env value", resp.Stdout)
	}
}

func TestLocalWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	local := NewLocal(nil)
	resp, err := local.Run(context.Background(), Request{Command: "ls", Dir: dir})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(resp.Stdout, "marker.txt") {
		t.Errorf("Stdout = %q, want listing of %s", resp.Stdout, dir)
	}
}

func TestLocalStdin(t *testing.T) {
	local := NewLocal(nil)

	resp, err := local.Run(context.Background(), Request{Command: "cat", Stdin: "ping"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if resp.Stdout != "ping" {
		t.Errorf("Stdout = %q, want stdin echoed back", resp.Stdout)
	}
}

func TestLocalScript(t *testing.T) {
	local := NewLocal(nil)

	resp, err := local.Run(context.Background(), Request{Script: "echo one\necho two"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if resp.Stdout != "one\ntwo" {
		t.Errorf("Stdout = %q", resp.Stdout)
	}
}

func TestLocalInterpreter(t *testing.T) {
	local := NewLocal(nil)

	resp, err := local.Run(context.Background(), Request{Script: "echo via-sh", Interpreter: "/bin/sh"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if resp.Stdout != "via-sh" {
		t.Errorf("Stdout = %q", resp.Stdout)
	}
}

func TestLocalTimeout(t *testing.T) {
	local := NewLocal(nil)

	_, err := local.Run(context.Background(), Request{Command: "sleep 2", Timeout: 100 * time.Millisecond})
	if err == nil {
		t.Fatal("Run() succeeded, want timeout")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error chain misses context.DeadlineExceeded: %v", err)
	}
}

func TestLocalRequiresCommandOrScript(t *testing.T) {
	local := NewLocal(nil)

	if _, err := local.Run(context.Background(), Request{}); err == nil || !strings.Contains(err.Error(), "command or script") {
		t.Fatalf("Run() error = %v, want missing-command failure", err)
	}
}

func TestLocalSpawnFailure(t *testing.T) {
	local := NewLocal(nil)

	_, err := local.Run(context.Background(), Request{Command: "/definitely/not/a/binary", Args: []string{"x"}})
	if err == nil {
		t.Fatal("Run() succeeded for a missing binary")
	}
	if !strings.Contains(err.Error(), "run local command") {
		t.Errorf("error = %v, want spawn failure classification", err)
	}
}
