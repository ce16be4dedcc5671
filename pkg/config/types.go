package config

import (
	"fmt"
	"time"
)

// ValidationError represents a schema violation with location information.
type ValidationError struct {
	// File is the source file path, when known.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the document path to the offending field
	// (e.g., "options.targetOrgs.0.alias").
	Path string `json:"path,omitempty"`

	// Message is the human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity (error, warning).
	Severity string `json:"severity"`
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	if ve.File != "" && ve.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", ve.File, ve.Line, ve.Column, ve.Message)
	}
	if ve.Path != "" {
		return fmt.Sprintf("%s: %s", ve.Path, ve.Message)
	}
	return ve.Message
}

// ScriptResult is the outcome of a variables script evaluation.
type ScriptResult struct {
	// Vars holds the exported globals, converted to plain Go values.
	Vars map[string]any `json:"vars,omitempty"`

	// ExecutionTime is how long the script ran.
	ExecutionTime time.Duration `json:"execution_time"`
}
