// Package executors provides the low-level workers actions delegate to:
// local process execution, remote execution over the SSH transport, and
// WASI plugin modules. All three sit behind the Executor interface; a
// per-run Set hands them to actions and turns executor outcomes into
// EXECUTOR-typed result nodes.
//
// The contract deliberately separates the two failure modes: a command
// that ran and exited non-zero is reported through Response.ExitCode
// with a nil error (the action decides whether that is a FAILURE), while
// a non-nil error means the executor itself could not do its job (an
// ERROR: no transport, missing module, timeout).
package executors
