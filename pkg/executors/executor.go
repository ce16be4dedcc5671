package executors

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"time"
)

// Kind identifies which executor performs a request.
type Kind string

const (
	// KindLocal runs commands on the forge host.
	KindLocal Kind = "local"

	// KindSSH runs commands on a remote target org over SSH.
	KindSSH Kind = "ssh"

	// KindWASM runs a WASI plugin module.
	KindWASM Kind = "wasm"
)

// Validate checks that the kind is one of the known executors.
func (k Kind) Validate() error {
	switch k {
	case KindLocal, KindSSH, KindWASM:
		return nil
	default:
		return fmt.Errorf("invalid executor kind: %s", k)
	}
}

// Executor performs external work on behalf of actions.
type Executor interface {
	// Kind reports which executor this is.
	Kind() Kind

	// Run performs one request. A non-zero remote exit status is not an
	// error; errors mean the executor itself failed.
	Run(ctx context.Context, req Request) (*Response, error)
}

// Request describes one unit of external work.
type Request struct {
	// Name is the logical name of the work, used in logs and results.
	Name string

	// Command is the command line to run (local and ssh kinds).
	Command string

	// Args are passed as discrete arguments. When empty, Command runs
	// through a shell.
	Args []string

	// Env holds extra environment variables for the command.
	Env map[string]string

	// Dir is the working directory (local kind).
	Dir string

	// Stdin is fed to the command's standard input.
	Stdin string

	// Timeout bounds the request. Zero applies the executor's default.
	Timeout time.Duration

	// Sudo escalates the command on the target.
	Sudo bool

	// SudoPassword is fed to sudo over stdin when escalating. Empty
	// relies on NOPASSWD.
	SudoPassword string

	// Script is a script body to stage and run instead of Command.
	Script string

	// Interpreter runs Script (for example "bash"). Empty executes the
	// script directly.
	Interpreter string

	// Module is the WASI module path (wasm kind).
	Module string

	// Payload is marshaled to JSON and fed to a WASI module's stdin.
	Payload any

	// Uploads are pushed to the target before the command runs (ssh
	// kind).
	Uploads []Upload
}

// Upload names one file or directory to push to the target.
type Upload struct {
	// LocalPath is the source on the forge host.
	LocalPath string

	// RemotePath is the destination on the target.
	RemotePath string

	// Mode is applied to an uploaded file. Directories keep their
	// per-file modes.
	Mode fs.FileMode

	// Recursive uploads LocalPath as a directory tree.
	Recursive bool
}

// Response is the outcome of one request.
type Response struct {
	// Kind is the executor that produced this response.
	Kind Kind `json:"kind"`

	// ExitCode is the command's exit status. -1 when the command never
	// produced one.
	ExitCode int `json:"exit_code"`

	// Stdout is the trimmed standard output.
	Stdout string `json:"stdout,omitempty"`

	// Stderr is the trimmed standard error.
	Stderr string `json:"stderr,omitempty"`

	// Output carries a WASI plugin's structured reply when its stdout
	// was valid JSON.
	Output json.RawMessage `json:"output,omitempty"`

	// StartedAt is when the work started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the work finished.
	FinishedAt time.Time `json:"finished_at"`

	// Duration is the wall time of the work.
	Duration time.Duration `json:"duration"`

	// BytesPushed counts upload bytes transferred before the command.
	BytesPushed int64 `json:"bytes_pushed,omitempty"`
}

// Ok reports whether the work exited with status zero.
func (r *Response) Ok() bool {
	return r.ExitCode == 0
}

// NotRegisteredError reports a lookup for an executor kind the set does
// not hold.
type NotRegisteredError struct {
	// Kind is the requested executor kind.
	Kind Kind
}

// Error implements the error interface.
func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("no %s executor registered", e.Kind)
}
