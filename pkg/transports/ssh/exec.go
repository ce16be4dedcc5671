package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// Exec runs a command on the remote host. A non-zero exit status is not
// an error; it is reported through ExecResult.ExitCode. The returned
// error covers transport problems only.
func (c *Client) Exec(ctx context.Context, cmd string) (*ExecResult, error) {
	return c.run(ctx, cmd, "")
}

// ExecSudo runs a command under sudo. With a password the command reads
// it from stdin (`sudo -S`), so it never appears on the remote command
// line. Without one, `sudo -n` requires a NOPASSWD grant.
func (c *Client) ExecSudo(ctx context.Context, cmd, sudoPassword string) (*ExecResult, error) {
	full, stdin := sudoCommand(cmd, sudoPassword)
	res, err := c.run(ctx, full, stdin)
	if res != nil {
		// Report the caller's command, not the sudo wrapper.
		res.Command = cmd
	}
	return res, err
}

// sudoCommand wraps cmd for sudo execution and returns the stdin payload
// carrying the password, if any.
func sudoCommand(cmd, password string) (full, stdin string) {
	if password == "" {
		return "sudo -n " + cmd, ""
	}
	return "sudo -S -p '' " + cmd, password + "\n"
}

// ExecScript writes script to a temporary file on the remote host, runs
// it with the given interpreter (or directly when empty) and removes the
// file afterwards.
func (c *Client) ExecScript(ctx context.Context, script, interpreter string, sudo bool, sudoPassword string) (*ExecResult, error) {
	remotePath := fmt.Sprintf("/tmp/orgforge-script-%d.sh", time.Now().UnixNano())

	stage := fmt.Sprintf("cat > %s << 'ORGFORGE_SCRIPT_EOF'\n%s\nORGFORGE_SCRIPT_EOF\nchmod +x %s", remotePath, script, remotePath)
	staged, err := c.run(ctx, stage, "")
	if err != nil {
		return nil, err
	}
	if !staged.Ok() {
		return nil, opError("script", fmt.Errorf("stage script on remote host: %s", strings.TrimSpace(staged.Stderr)))
	}

	runCmd := remotePath
	if interpreter != "" {
		runCmd = interpreter + " " + remotePath
	}

	var res *ExecResult
	if sudo {
		res, err = c.ExecSudo(ctx, runCmd, sudoPassword)
	} else {
		res, err = c.Exec(ctx, runCmd)
	}

	if _, rmErr := c.run(ctx, "rm -f "+remotePath, ""); rmErr != nil {
		c.log.WithError(rmErr).WithField("path", remotePath).Warn("could not remove remote script")
	}
	return res, err
}

// run executes cmd in a fresh session, feeding stdin when non-empty. The
// configured CommandTimeout bounds the execution on top of ctx.
func (c *Client) run(ctx context.Context, cmd, stdin string) (*ExecResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, tempError("exec", err)
	}
	if c.config.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.CommandTimeout)
		defer cancel()
	}

	conn, err := c.acquire("exec")
	if err != nil {
		return nil, err
	}

	session, err := conn.NewSession()
	if err != nil {
		return nil, tempError("exec", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if stdin != "" {
		session.Stdin = strings.NewReader(stdin)
	}

	res := &ExecResult{Command: cmd, StartedAt: time.Now()}
	c.log.WithField("command", cmd).Trace("running remote command")

	if err := session.Start(cmd); err != nil {
		return nil, opError("exec", err)
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case <-ctx.Done():
		// Ask the remote side to stop, then force the session shut so the
		// output copiers are done before the buffers are read.
		_ = session.Signal(ssh.SIGTERM)
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			_ = session.Signal(ssh.SIGKILL)
			_ = session.Close()
			<-done
		}
		res.capture(stdout.String(), stderr.String(), -1)
		return res, tempError("exec", ctx.Err())
	case waitErr := <-done:
		exitCode := 0
		if waitErr != nil {
			var exitErr *ssh.ExitError
			var missing *ssh.ExitMissingError
			switch {
			case errors.As(waitErr, &exitErr):
				exitCode = exitErr.ExitStatus()
			case errors.As(waitErr, &missing):
				res.capture(stdout.String(), stderr.String(), -1)
				return res, tempError("exec", waitErr)
			default:
				res.capture(stdout.String(), stderr.String(), -1)
				return res, opError("exec", waitErr)
			}
		}
		res.capture(stdout.String(), stderr.String(), exitCode)
		return res, nil
	}
}

// capture fills in the outcome of a finished command.
func (r *ExecResult) capture(stdout, stderr string, exitCode int) {
	r.Stdout = strings.TrimSpace(stdout)
	r.Stderr = strings.TrimSpace(stderr)
	r.ExitCode = exitCode
	r.FinishedAt = time.Now()
	r.Duration = r.FinishedAt.Sub(r.StartedAt)
}

// shellQuote wraps s in single quotes for safe interpolation into a
// remote shell command.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
