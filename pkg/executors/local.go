package executors

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/orgforge/orgforge/pkg/telemetry"
)

// defaultLocalTimeout bounds local commands that set no explicit timeout.
const defaultLocalTimeout = 5 * time.Minute

// Local runs commands on the forge host. Scratch-org work (CLI
// shell-outs) goes through this executor.
type Local struct {
	log   *telemetry.Logger
	shell string
}

// NewLocal returns a local executor. A nil logger falls back to the
// ambient logger.
func NewLocal(log *telemetry.Logger) *Local {
	if log == nil {
		log = telemetry.FromContext(context.Background())
	}
	return &Local{
		log:   log.NewComponentLogger("executor-local"),
		shell: "/bin/sh",
	}
}

// Kind reports the executor kind.
func (l *Local) Kind() Kind {
	return KindLocal
}

// Run executes the request as a local process. Non-zero exits come back
// in the response; the error covers spawn failures and timeouts.
func (l *Local) Run(ctx context.Context, req Request) (*Response, error) {
	if req.Command == "" && req.Script == "" {
		return nil, fmt.Errorf("local executor: command or script is required")
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultLocalTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := l.buildCommand(ctx, req)
	if req.Dir != "" {
		cmd.Dir = req.Dir
	}
	if len(req.Env) > 0 {
		env := os.Environ()
		for k, v := range req.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		cmd.Env = env
	}

	stdin := req.Stdin
	if req.Sudo && req.SudoPassword != "" {
		// sudo -S reads the password as the first stdin line.
		stdin = req.SudoPassword + "\n" + stdin
	}
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	l.log.WithField("command", describeRequest(req)).Trace("running local command")

	started := time.Now()
	runErr := cmd.Run()
	finished := time.Now()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("local command timed out after %s: %w", timeout, ctxErr)
	}

	resp := &Response{
		Kind:       KindLocal,
		Stdout:     strings.TrimSpace(stdout.String()),
		Stderr:     strings.TrimSpace(stderr.String()),
		StartedAt:  started,
		FinishedAt: finished,
		Duration:   finished.Sub(started),
	}

	if runErr != nil {
		exitErr, ok := runErr.(*exec.ExitError)
		if !ok {
			return nil, fmt.Errorf("run local command: %w", runErr)
		}
		resp.ExitCode = exitErr.ExitCode()
	}
	return resp, nil
}

// buildCommand assembles the exec.Cmd for a request: discrete args run
// directly, bare command lines and scripts run through the shell, and
// sudo wraps either form.
func (l *Local) buildCommand(ctx context.Context, req Request) *exec.Cmd {
	shell := l.shell
	if req.Interpreter != "" {
		shell = req.Interpreter
	}

	body := req.Command
	if req.Script != "" {
		body = req.Script
	}

	switch {
	case req.Sudo && req.SudoPassword != "":
		if len(req.Args) > 0 && req.Script == "" {
			return exec.CommandContext(ctx, "sudo", append([]string{"-S", "-p", "", req.Command}, req.Args...)...)
		}
		return exec.CommandContext(ctx, "sudo", "-S", "-p", "", shell, "-c", body)
	case req.Sudo:
		if len(req.Args) > 0 && req.Script == "" {
			return exec.CommandContext(ctx, "sudo", append([]string{"-n", req.Command}, req.Args...)...)
		}
		return exec.CommandContext(ctx, "sudo", "-n", shell, "-c", body)
	case len(req.Args) > 0 && req.Script == "":
		return exec.CommandContext(ctx, req.Command, req.Args...)
	default:
		return exec.CommandContext(ctx, shell, "-c", body)
	}
}

// describeRequest is the log form of a request, without stdin payloads.
func describeRequest(req Request) string {
	if req.Script != "" {
		return "script:" + req.Name
	}
	if len(req.Args) > 0 {
		return req.Command + " " + strings.Join(req.Args, " ")
	}
	return req.Command
}
