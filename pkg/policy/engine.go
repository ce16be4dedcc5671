package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"

	"github.com/orgforge/orgforge/pkg/engine"
	"github.com/orgforge/orgforge/pkg/telemetry"
)

// Engine compiles admission policies and evaluates them against runs. It
// implements engine.PolicyGate, so it plugs straight into an engine's
// admission gate.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	log      *telemetry.Logger
}

var _ engine.PolicyGate = (*Engine)(nil)

// compiledPolicy pairs a policy with its prepared deny query.
type compiledPolicy struct {
	policy     *Policy
	query      rego.PreparedEvalQuery
	compiledAt time.Time
}

// NewEngine creates a policy engine with the builtin policies compiled.
func NewEngine(log *telemetry.Logger) (*Engine, error) {
	if log == nil {
		log = telemetry.FromContext(context.Background())
	}

	e := &Engine{
		policies: make(map[string]*compiledPolicy),
		log:      log.NewComponentLogger("policy"),
	}

	builtins := BuiltinPolicies()
	for i := range builtins {
		if err := e.compile(context.Background(), &builtins[i]); err != nil {
			return nil, fmt.Errorf("compile builtin policy %s: %w", builtins[i].Name, err)
		}
	}
	return e, nil
}

// Check evaluates the loaded policies and admits or denies the run. A
// decision with blocking violations comes back as a *DenialError; advisory
// findings are logged and admit the run. An evaluation that cannot run at
// all denies the run.
func (e *Engine) Check(ctx context.Context, input engine.PolicyInput) error {
	decision, err := e.Evaluate(ctx, input)
	if err != nil {
		return fmt.Errorf("policy evaluation: %w", err)
	}

	for _, v := range decision.Violations {
		if !v.Severity.Blocks() {
			e.log.WithField("policy", v.Policy).
				WithField("severity", string(v.Severity)).
				Warn(v.Message)
		}
	}

	if decision.Allowed {
		return nil
	}
	return &DenialError{Decision: decision}
}

// Evaluate runs every enabled policy against the input and aggregates the
// findings. Policies run in name order. A policy that fails to evaluate is
// reported as a warning on the decision and never denies the run by
// itself.
func (e *Engine) Evaluate(ctx context.Context, input engine.PolicyInput) (*Decision, error) {
	start := time.Now()

	doc, err := admissionDocument(input)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.policies))
	for name := range e.policies {
		names = append(names, name)
	}
	sort.Strings(names)

	decision := &Decision{}
	for _, name := range names {
		cp := e.policies[name]
		if !cp.policy.Enabled {
			continue
		}
		decision.EvaluatedPolicies = append(decision.EvaluatedPolicies, name)

		rs, err := cp.query.Eval(ctx, rego.EvalInput(doc))
		if err != nil {
			e.log.WithError(err).
				WithField("policy", name).
				Error("policy evaluation failed")
			decision.Warnings = append(decision.Warnings,
				fmt.Sprintf("policy %s failed to evaluate: %v", name, err))
			continue
		}

		for _, result := range rs {
			for _, expr := range result.Expressions {
				members, ok := expr.Value.([]interface{})
				if !ok {
					continue
				}
				for _, member := range members {
					decision.Violations = append(decision.Violations, violationFrom(cp.policy, member))
				}
			}
		}
	}

	decision.Allowed = len(decision.Blocking()) == 0
	decision.EvaluatedAt = time.Now()
	decision.Duration = time.Since(start)

	e.log.WithField("policies", len(decision.EvaluatedPolicies)).
		WithField("violations", len(decision.Violations)).
		WithField("allowed", decision.Allowed).
		Debug("admission evaluation completed")

	return decision, nil
}

// LoadPolicies loads policies from the given files or directories and
// compiles them alongside the existing set. A loaded policy replaces any
// policy with the same name, builtins included.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	loader := NewLoader(e.log)
	policies, err := loader.LoadFromPaths(ctx, paths)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range policies {
		if err := e.compile(ctx, &policies[i]); err != nil {
			return err
		}
	}

	e.log.WithField("count", len(policies)).Info("policies loaded")
	return nil
}

// ReplacePolicies swaps the loaded policy set: the builtins are recompiled
// and the given policies applied on top. A compile failure leaves the
// previous set in place, so a broken reload never strips the gate.
func (e *Engine) ReplacePolicies(ctx context.Context, policies []Policy) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	previous := e.policies
	e.policies = make(map[string]*compiledPolicy)

	builtins := BuiltinPolicies()
	for i := range builtins {
		if err := e.compile(ctx, &builtins[i]); err != nil {
			e.policies = previous
			return err
		}
	}
	for i := range policies {
		if err := e.compile(ctx, &policies[i]); err != nil {
			e.policies = previous
			return err
		}
	}
	return nil
}

// ReloadPolicies drops every loaded policy and recompiles the builtins.
func (e *Engine) ReloadPolicies(ctx context.Context) error {
	return e.ReplacePolicies(ctx, nil)
}

// GetPolicy returns a policy by name.
func (e *Engine) GetPolicy(name string) (*Policy, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cp, ok := e.policies[name]
	if !ok {
		return nil, fmt.Errorf("policy not found: %s", name)
	}
	return cp.policy, nil
}

// ListPolicies returns the loaded policies sorted by name.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	policies := make([]Policy, 0, len(e.policies))
	for _, cp := range e.policies {
		policies = append(policies, *cp.policy)
	}
	sort.Slice(policies, func(i, j int) bool { return policies[i].Name < policies[j].Name })
	return policies
}

// EnablePolicy enables a policy by name.
func (e *Engine) EnablePolicy(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp, ok := e.policies[name]
	if !ok {
		return fmt.Errorf("policy not found: %s", name)
	}
	cp.policy.Enabled = true
	e.log.WithField("policy", name).Info("policy enabled")
	return nil
}

// DisablePolicy disables a policy by name. Disabled policies stay loaded
// and can be re-enabled.
func (e *Engine) DisablePolicy(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp, ok := e.policies[name]
	if !ok {
		return fmt.Errorf("policy not found: %s", name)
	}
	cp.policy.Enabled = false
	e.log.WithField("policy", name).Info("policy disabled")
	return nil
}

// compile parses a policy, prepares its deny query, and stores it under
// the policy name. Callers hold the write lock or exclusive access.
func (e *Engine) compile(ctx context.Context, p *Policy) error {
	module, err := ast.ParseModule(p.Name+".rego", p.Rego)
	if err != nil {
		return fmt.Errorf("parse policy %s: %w", p.Name, err)
	}

	query := module.Package.Path.String() + ".deny"
	prepared, err := rego.New(
		rego.Module(p.Name+".rego", p.Rego),
		rego.Query(query),
	).PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("prepare policy %s: %w", p.Name, err)
	}

	e.policies[p.Name] = &compiledPolicy{
		policy:     p,
		query:      prepared,
		compiledAt: time.Now(),
	}

	e.log.WithField("policy", p.Name).
		WithField("query", query).
		Debug("policy compiled")
	return nil
}

// admissionDocument renders the gate input as the generic document the
// policies query. The JSON round trip applies the field names recipes and
// plans use on disk.
func admissionDocument(input engine.PolicyInput) (map[string]any, error) {
	data, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode policy input: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode policy input: %w", err)
	}
	return doc, nil
}

// violationFrom normalizes one deny result into a Violation. Policies
// report either a plain string or an object with message, severity, step
// and action fields.
func violationFrom(p *Policy, raw any) Violation {
	v := Violation{
		Policy:     p.Name,
		Severity:   p.Severity,
		DetectedAt: time.Now(),
	}

	switch m := raw.(type) {
	case string:
		v.Message = m
	case map[string]interface{}:
		if s, ok := m["message"].(string); ok {
			v.Message = s
		}
		if s, ok := m["severity"].(string); ok {
			v.Severity = Severity(s)
		}
		if s, ok := m["step"].(string); ok {
			v.Step = s
		}
		if s, ok := m["action"].(string); ok {
			v.Action = s
		}
	default:
		v.Message = fmt.Sprintf("%v", raw)
	}
	return v
}
