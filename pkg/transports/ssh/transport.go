// Package ssh is the transport used to reach persistent target orgs: SSH
// command execution (plain, sudo, and uploaded scripts) plus SFTP file
// movement for org bundles.
package ssh

import (
	"context"
	"io/fs"
	"time"
)

// Transport is the remote-operation surface executors consume. Client is
// the production implementation; tests substitute fakes.
type Transport interface {
	// Connect establishes the SSH connection. Connecting an already
	// healthy transport is a no-op; a dead connection is replaced.
	Connect(ctx context.Context) error

	// Close tears down the connection and stops the keep-alive loop.
	// Closing a disconnected transport is a no-op.
	Close() error

	// Connected reports whether the transport currently holds a
	// connection. It does not probe the remote side; HealthCheck does.
	Connected() bool

	// HealthCheck verifies the connection is alive by running a trivial
	// remote command.
	HealthCheck(ctx context.Context) error

	// Info describes the current connection.
	Info() ConnectionInfo

	// Exec runs a command on the remote host. A non-zero exit status is
	// not an error; it is reported through ExecResult.ExitCode. The error
	// return covers transport problems only.
	Exec(ctx context.Context, cmd string) (*ExecResult, error)

	// ExecSudo runs a command under sudo. With a password the command
	// reads it from stdin; without one sudo runs non-interactively and
	// fails fast if NOPASSWD is not configured.
	ExecSudo(ctx context.Context, cmd, sudoPassword string) (*ExecResult, error)

	// ExecScript writes script to a temporary file on the remote host,
	// executes it with the given interpreter (empty runs it directly),
	// and removes it afterwards.
	ExecScript(ctx context.Context, script, interpreter string, sudo bool, sudoPassword string) (*ExecResult, error)

	// Upload copies a local file to the remote host over SFTP, creating
	// parent directories as needed. Returns the bytes written.
	Upload(ctx context.Context, localPath, remotePath string, mode fs.FileMode) (int64, error)

	// UploadDir recursively copies a local directory to the remote host.
	// Returns the total bytes written.
	UploadDir(ctx context.Context, localDir, remoteDir string) (int64, error)

	// Download copies a remote file to the local filesystem. Returns the
	// bytes written.
	Download(ctx context.Context, remotePath, localPath string) (int64, error)

	// Chmod sets permissions on a remote file.
	Chmod(ctx context.Context, remotePath string, mode fs.FileMode) error

	// Chown sets ownership on a remote file. The SSH user needs the
	// privilege; handoffs to other users normally go through ExecSudo.
	Chown(ctx context.Context, remotePath string, uid, gid int) error

	// Checksum returns the SHA-256 checksum of a remote file.
	Checksum(ctx context.Context, remotePath string) (string, error)
}

// ConnectionInfo describes an active SSH connection.
type ConnectionInfo struct {
	// Host is the remote hostname or IP address.
	Host string

	// Port is the SSH port.
	Port int

	// User is the SSH username.
	User string

	// ConnectedAt is when the connection was established.
	ConnectedAt time.Time

	// LastActivity is when the connection was last used.
	LastActivity time.Time
}

// ExecResult is the outcome of one remote command.
type ExecResult struct {
	// Command is the command line the caller asked to run.
	Command string

	// Stdout is the trimmed standard output.
	Stdout string

	// Stderr is the trimmed standard error.
	Stderr string

	// ExitCode is the remote exit status.
	ExitCode int

	// StartedAt is when the command started.
	StartedAt time.Time

	// FinishedAt is when the command finished.
	FinishedAt time.Time

	// Duration is the wall time of the command.
	Duration time.Duration
}

// Ok reports whether the command exited with status zero.
func (r *ExecResult) Ok() bool {
	return r.ExitCode == 0
}

// TransportError classifies a transport-layer failure.
type TransportError struct {
	// Op is the operation that failed ("connect", "exec", "upload", ...).
	Op string

	// Err is the underlying error.
	Err error

	// IsTemporary marks errors worth retrying.
	IsTemporary bool

	// IsAuthError marks authentication and host-key failures.
	IsAuthError bool
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap exposes the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Temporary reports whether the failure is worth retrying.
func (e *TransportError) Temporary() bool {
	return e.IsTemporary
}

func opError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}

func tempError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err, IsTemporary: true}
}

func authError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err, IsAuthError: true}
}
