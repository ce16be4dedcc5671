package executors

import (
	"context"
	"fmt"
	"time"

	"github.com/orgforge/orgforge/pkg/telemetry"
	"github.com/orgforge/orgforge/pkg/transports/ssh"
)

// SSH runs requests on a persistent target org through the SSH
// transport. The connection is established on first use and reused for
// the rest of the run.
type SSH struct {
	transport ssh.Transport
	log       *telemetry.Logger
}

// NewSSH wraps a transport. A nil logger falls back to the ambient
// logger.
func NewSSH(transport ssh.Transport, log *telemetry.Logger) (*SSH, error) {
	if transport == nil {
		return nil, fmt.Errorf("ssh executor: transport is required")
	}
	if log == nil {
		log = telemetry.FromContext(context.Background())
	}
	return &SSH{
		transport: transport,
		log:       log.NewComponentLogger("executor-ssh"),
	}, nil
}

// Kind reports the executor kind.
func (s *SSH) Kind() Kind {
	return KindSSH
}

// Run pushes any uploads, then executes the command or script on the
// target. A request with only uploads succeeds once the files land.
func (s *SSH) Run(ctx context.Context, req Request) (*Response, error) {
	if req.Command == "" && req.Script == "" && len(req.Uploads) == 0 {
		return nil, fmt.Errorf("ssh executor: command, script or uploads required")
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	if !s.transport.Connected() {
		if err := s.transport.Connect(ctx); err != nil {
			return nil, fmt.Errorf("connect to target: %w", err)
		}
	}

	started := time.Now()
	var pushed int64
	for _, up := range req.Uploads {
		n, err := s.push(ctx, up)
		pushed += n
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", up.LocalPath, err)
		}
	}

	if req.Command == "" && req.Script == "" {
		finished := time.Now()
		return &Response{
			Kind:        KindSSH,
			Stdout:      fmt.Sprintf("pushed %d bytes", pushed),
			StartedAt:   started,
			FinishedAt:  finished,
			Duration:    finished.Sub(started),
			BytesPushed: pushed,
		}, nil
	}

	var (
		res *ssh.ExecResult
		err error
	)
	switch {
	case req.Script != "":
		res, err = s.transport.ExecScript(ctx, req.Script, req.Interpreter, req.Sudo, req.SudoPassword)
	case req.Sudo:
		res, err = s.transport.ExecSudo(ctx, req.Command, req.SudoPassword)
	default:
		res, err = s.transport.Exec(ctx, req.Command)
	}
	if err != nil {
		return nil, err
	}

	return &Response{
		Kind:        KindSSH,
		ExitCode:    res.ExitCode,
		Stdout:      res.Stdout,
		Stderr:      res.Stderr,
		StartedAt:   started,
		FinishedAt:  res.FinishedAt,
		Duration:    res.FinishedAt.Sub(started),
		BytesPushed: pushed,
	}, nil
}

func (s *SSH) push(ctx context.Context, up Upload) (int64, error) {
	if up.Recursive {
		return s.transport.UploadDir(ctx, up.LocalPath, up.RemotePath)
	}
	mode := up.Mode
	if mode == 0 {
		mode = 0o644
	}
	return s.transport.Upload(ctx, up.LocalPath, up.RemotePath, mode)
}

// Transport exposes the underlying transport for actions that need file
// operations beyond Run (checksums, downloads).
func (s *SSH) Transport() ssh.Transport {
	return s.transport
}

// Close tears down the transport connection.
func (s *SSH) Close() error {
	return s.transport.Close()
}
