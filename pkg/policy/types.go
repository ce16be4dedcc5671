package policy

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Severity grades a policy violation.
type Severity string

const (
	// SeverityInfo marks advisory findings.
	SeverityInfo Severity = "info"

	// SeverityWarning marks findings worth review that do not block a run.
	SeverityWarning Severity = "warning"

	// SeverityError marks findings that block a run.
	SeverityError Severity = "error"

	// SeverityCritical marks findings that block a run and demand
	// immediate attention.
	SeverityCritical Severity = "critical"
)

// Blocks reports whether a violation of this severity denies the run.
func (s Severity) Blocks() bool {
	return s == SeverityError || s == SeverityCritical
}

// Validate checks that the severity is a known value.
func (s Severity) Validate() error {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return nil
	}
	return fmt.Errorf("unknown severity %q", string(s))
}

// Policy is one admission rule with its Rego source.
type Policy struct {
	// Name uniquely identifies the policy.
	Name string `json:"name"`

	// Description is a human-readable summary.
	Description string `json:"description"`

	// Rego is the policy source. Its package must expose a deny rule.
	Rego string `json:"rego"`

	// Severity is the default severity for violations the policy reports
	// without one of their own.
	Severity Severity `json:"severity"`

	// Enabled gates evaluation. Disabled policies stay loaded.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Source records the file the policy was loaded from, when any.
	Source string `json:"source,omitempty"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the policy was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Violation is one finding reported by a policy.
type Violation struct {
	// Policy is the name of the reporting policy.
	Policy string `json:"policy"`

	// Message describes the finding.
	Message string `json:"message"`

	// Severity grades the finding.
	Severity Severity `json:"severity"`

	// Step is the plan step the finding points at, when known.
	Step string `json:"step,omitempty"`

	// Action is the action the finding points at, when known.
	Action string `json:"action,omitempty"`

	// DetectedAt is when the finding was produced.
	DetectedAt time.Time `json:"detected_at"`
}

// Decision is the outcome of evaluating the loaded policies against one
// run's admission input.
type Decision struct {
	// Allowed reports whether the run may proceed. A run is denied when
	// any violation carries a blocking severity.
	Allowed bool `json:"allowed"`

	// Violations are all findings, blocking and advisory.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings record policies that failed to evaluate. A policy that
	// cannot run never denies the run on its own.
	Warnings []string `json:"warnings,omitempty"`

	// EvaluatedPolicies names the enabled policies in evaluation order.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// EvaluatedAt is when the evaluation finished.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Blocking returns the violations that deny the run.
func (d *Decision) Blocking() []Violation {
	var blocking []Violation
	for _, v := range d.Violations {
		if v.Severity.Blocks() {
			blocking = append(blocking, v)
		}
	}
	return blocking
}

// DenialError is the error Check returns for a denied run. It carries the
// full decision; the message lists the blocking violations.
type DenialError struct {
	Decision *Decision
}

// Error implements the error interface.
func (e *DenialError) Error() string {
	blocking := e.Decision.Blocking()
	if len(blocking) == 0 {
		return "run denied by policy"
	}
	msgs := make([]string, 0, len(blocking))
	for _, v := range blocking {
		msgs = append(msgs, v.Message)
	}
	return strings.Join(msgs, "; ")
}

// AsDenial unwraps a DenialError from an error chain.
func AsDenial(err error) (*DenialError, bool) {
	var denial *DenialError
	if errors.As(err, &denial) {
		return denial, true
	}
	return nil, false
}

// Bundle is a versioned collection of policies shipped as one document.
type Bundle struct {
	// Name uniquely identifies the bundle.
	Name string `json:"name"`

	// Version is the bundle version.
	Version string `json:"version"`

	// Description is a human-readable summary.
	Description string `json:"description"`

	// Policies are the bundle's policies.
	Policies []Policy `json:"policies"`

	// CreatedAt is when the bundle was created.
	CreatedAt time.Time `json:"created_at"`
}
