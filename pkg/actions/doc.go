// Package actions implements the step actions the org engine families
// register. Every action follows the same shape: a Base carrying the
// static descriptor, option validation against the descriptor's
// required list, and an Execute that dispatches work through the run's
// executor set and reports it as an ACTION node with one EXECUTOR
// child per dispatched request.
//
// Actions are constructed per run. Target-dependent choices, like
// which executor kind a verify runs through or which sudo password a
// remote script uses, are baked in by the engine family when it
// registers the action, so the descriptor stays honest for the run it
// describes.
package actions
