package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/orgforge/orgforge/pkg/results"
	"github.com/orgforge/orgforge/pkg/telemetry"
)

// Execute runs the compiled plan. Steps run strictly sequentially in plan
// order; every step's result attaches to the engine result, and the
// engine result's bubbling policy decides whether a non-success step
// aborts the remainder. On an error outcome the returned node is always
// a well-formed engine result in error status alongside a non-nil error;
// a functional failure finalizes the node as failure and returns a nil
// error. An engine executes at most once.
func (e *Engine) Execute(ctx context.Context) (*results.Node, error) {
	if !e.initialized || e.plan == nil {
		return nil, NewNotInitializedError("execution requires a compiled plan").
			WithEngine(e.name)
	}
	if e.executing {
		return nil, NewValidationError("engine is already executing").
			WithEngine(e.name)
	}
	if e.node.IsTerminal() {
		return e.fail(ctx, NewValidationError("engine result is already terminal, engines run once").
			WithEngine(e.name).
			WithRecipe(e.recipe.Name))
	}

	e.executing = true
	defer func() { e.executing = false }()

	e.node.Start()

	var span trace.Span
	if e.tracer != nil {
		ctx, span = e.tracer.StartRunSpan(ctx, e.ec.RunID, e.recipe.Name)
		defer span.End()
	}

	e.recordRunStarted(ctx)

	if e.gate != nil {
		if err := e.gate.Check(ctx, PolicyInput{
			RunID:     e.ec.RunID,
			Recipe:    e.recipe,
			Plan:      e.plan,
			Target:    e.ec.TargetOrg,
			Variables: e.ec.Variables,
		}); err != nil {
			blocked := NewPolicyBlockedError("run blocked by admission policy", err).
				WithEngine(e.name).
				WithRecipe(e.recipe.Name)
			if e.events != nil {
				_ = e.events.PublishPolicyDenied(e.ec.RunID, e.recipe.Name, "admission", err.Error())
			}
			if e.metrics != nil {
				e.metrics.RecordPolicyDenial("admission")
			}
			telemetry.RecordError(span, blocked)
			return e.fail(ctx, blocked)
		}
	}

	if err := e.hooks.PreExecute(ctx, e.ec); err != nil {
		wrapped := fmt.Errorf("pre-execution hook: %w", err)
		telemetry.RecordError(span, wrapped)
		return e.fail(ctx, wrapped)
	}

	runErr := e.runPlan(ctx)

	if runErr == nil && !e.node.IsTerminal() {
		if err := e.hooks.PostExecute(ctx, e.ec, e.node); err != nil {
			runErr = fmt.Errorf("post-execution hook: %w", err)
		}
	}

	if runErr != nil {
		telemetry.RecordError(span, runErr)
		return e.fail(ctx, runErr)
	}

	if e.node.IsTerminal() {
		// A bubbled failure finalized the engine result already.
		e.finishRun(ctx, e.node)
		return e.node, nil
	}

	if err := e.node.Success(nil); err != nil {
		return e.fail(ctx, err)
	}
	telemetry.RecordSuccess(span)
	e.finishRun(ctx, e.node)
	return e.node, nil
}

// runPlan executes the plan's steps in order. It returns nil when every
// step ran, or when a bubbled failure finalized the engine result; it
// returns the propagated error when a step error bubbled up.
func (e *Engine) runPlan(ctx context.Context) error {
	index := 0
	for _, group := range e.plan.Groups {
		e.log.WithGroup(group.Alias).
			WithField("origin", string(group.Origin)).
			Debug("step group started")

		for _, step := range group.Steps {
			index++
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("run canceled before step %q: %w", step.Name, err)
			}

			outcome, err := e.runStep(ctx, group, step, index)
			if err != nil {
				return err
			}
			if outcome.ShouldAbort() {
				if e.node.Status == results.StatusError {
					return e.node.Err
				}
				return nil
			}
		}
	}
	return nil
}

// runStep dispatches one step, normalizes whatever came back into a
// terminal result node, and attaches it to the engine result. The
// returned outcome carries the bubbling decision; the error return is
// reserved for structural problems attaching the child.
func (e *Engine) runStep(ctx context.Context, group PlanGroup, step PlanStep, index int) (results.Outcome, error) {
	slog := e.log.WithGroup(group.Alias).WithStep(step.Name).WithAction(step.Action)
	slog.Debug("step started")

	var span trace.Span
	if e.tracer != nil {
		ctx, span = e.tracer.StartStepSpan(ctx, e.ec.RunID, group.Alias, step.Name, step.Action)
		defer span.End()
	}
	if e.events != nil {
		_ = e.events.PublishStepStarted(e.ec.RunID, step.Name, step.Action)
	}

	child, stepErr := e.dispatchStep(ctx, group, step)
	child = normalizeStepResult(child, stepErr, step)

	outcome, addErr := e.node.AddChild(child)
	if addErr != nil {
		wrapped := fmt.Errorf("attach result for step %q: %w", step.Name, addErr)
		telemetry.RecordError(span, wrapped)
		return results.Continue(), wrapped
	}

	e.recordStep(ctx, group, step, index, child)

	switch child.Status {
	case results.StatusError:
		telemetry.RecordError(span, child.Err)
		slog.WithError(child.Err).Warn("step ended in error")
	case results.StatusFailure:
		slog.Warn("step ended in failure")
	default:
		telemetry.RecordSuccess(span)
		slog.WithField("status", string(child.Status)).Debug("step finished")
	}

	return outcome, nil
}

// dispatchStep resolves the step's action, validates its options, and
// runs it. In dry-run mode the action is resolved and validated but not
// executed; a synthetic success node stands in for the execution.
func (e *Engine) dispatchStep(ctx context.Context, group PlanGroup, step PlanStep) (*results.Node, error) {
	action, err := e.registry.Lookup(step.Action)
	if err != nil {
		if ee, ok := AsEngineError(err); ok {
			ee.WithEngine(e.name).
				WithRecipe(e.recipe.Name).
				WithGroup(group.Alias).
				WithStep(step.Name)
		}
		return nil, err
	}

	if err := action.ValidateOptions(step.Options); err != nil {
		if ee, ok := AsEngineError(err); ok {
			ee.WithGroup(group.Alias).WithStep(step.Name)
		}
		return nil, fmt.Errorf("validate options for action %q: %w", step.Action, err)
	}

	if e.ec.DryRun {
		node := results.NewNode(step.Name, results.TypeAction, results.Options{StartNow: true})
		_ = node.Success(map[string]any{
			"action":  step.Action,
			"options": step.Options,
			"dry_run": true,
		})
		return node, nil
	}

	return action.Execute(ctx, e.ec, step)
}

// normalizeStepResult turns whatever an action returned into a terminal
// node safe to attach to the engine result.
func normalizeStepResult(child *results.Node, stepErr error, step PlanStep) *results.Node {
	switch {
	case stepErr != nil:
		if child == nil {
			child = results.Wrap(stepErr, step.Name, results.TypeAction)
		}
		if !child.IsTerminal() {
			_ = child.Error(stepErr)
		}
	case child == nil:
		shape := NewUnexpectedResultShapeError(
			fmt.Sprintf("action %q returned neither a result nor an error", step.Action), nil).
			WithAction(step.Action)
		child = results.Wrap(shape, step.Name, results.TypeAction)
	default:
		if !child.IsTerminal() {
			_ = child.Error(NewUnexpectedResultShapeError(
				fmt.Sprintf("action %q returned an unfinished result", step.Action), nil).
				WithAction(step.Action))
		}
	}
	return child
}

// fail finalizes the run on the error path. It guarantees the returned
// node is a well-formed engine result in error status: when the current
// result cannot satisfy that shape, a fresh one is synthesized and the
// error is wrapped to say so.
func (e *Engine) fail(ctx context.Context, cause error) (*results.Node, error) {
	if !e.node.IsTerminal() {
		_ = e.node.Error(cause)
	}

	node := e.node
	if !results.Validate(node, results.TypeEngine, results.StatusError) {
		shape := NewUnexpectedResultShapeError("run did not produce a well-formed engine result", cause).
			WithEngine(e.name).
			WithRecipe(e.recipe.Name)
		node = results.NewNode(e.name, results.TypeEngine, results.Options{StartNow: true})
		_ = node.Error(shape)
		cause = shape
	}

	if e.metrics != nil {
		if ee, ok := AsEngineError(cause); ok {
			e.metrics.RecordError(ee.Code)
		}
	}

	e.finishRun(ctx, node)
	return node, cause
}

// recordRunStarted emits the run-start telemetry and opens the recorder
// entry. Recorder failures are logged, never fatal.
func (e *Engine) recordRunStarted(ctx context.Context) {
	if e.metrics != nil {
		e.metrics.RecordRunStarted(e.recipe.Type)
	}
	if e.events != nil {
		_ = e.events.PublishRunStarted(e.ec.RunID, e.recipe.Name, e.recipe.Type)
	}
	if e.recorder != nil {
		rec := RunRecord{
			RunID:         e.ec.RunID,
			Recipe:        e.recipe.Name,
			RecipeVersion: e.recipe.Version,
			RecipeType:    e.recipe.Type,
			Engine:        e.name,
			Target:        e.ec.TargetOrg.Alias,
			Status:        string(results.StatusRunning),
			StartedAt:     e.node.StartedAt,
		}
		if err := e.recorder.BeginRun(ctx, rec); err != nil {
			e.log.WithError(err).Warn("run recorder rejected run start")
		}
	}
	e.log.WithField("steps", e.plan.Steps()).Info("run started")
}

// recordStep emits the per-step telemetry and recorder entry for one
// executed step.
func (e *Engine) recordStep(ctx context.Context, group PlanGroup, step PlanStep, index int, child *results.Node) {
	status := string(child.Status)
	duration := child.Duration()

	if e.metrics != nil {
		e.metrics.RecordStepExecution(step.Action, e.name, status, duration)
	}
	if e.events != nil {
		switch child.Status {
		case results.StatusError, results.StatusFailure:
			reason := child.ErrorText
			if reason == "" {
				reason = "step ended with status " + status
			}
			_ = e.events.PublishStepFailed(e.ec.RunID, step.Name, step.Action, reason)
		default:
			_ = e.events.PublishStepCompleted(e.ec.RunID, step.Name, step.Action, duration)
		}
	}
	if e.recorder != nil {
		rec := StepRecord{
			RunID:     e.ec.RunID,
			Index:     index,
			Group:     group.Alias,
			Origin:    group.Origin,
			Step:      step.Name,
			Action:    step.Action,
			Status:    status,
			StartedAt: child.StartedAt,
			Duration:  duration,
			Error:     child.ErrorText,
		}
		if err := e.recorder.RecordStep(ctx, rec); err != nil {
			e.log.WithError(err).WithStep(step.Name).Warn("run recorder rejected step record")
		}
	}
}

// finishRun emits the run-completion telemetry and closes the recorder
// entry.
func (e *Engine) finishRun(ctx context.Context, node *results.Node) {
	status := string(node.Status)
	duration := node.Duration()

	if e.metrics != nil {
		e.metrics.RecordRunCompleted(status, duration)
	}
	if e.events != nil {
		if node.Status == results.StatusSuccess {
			_ = e.events.PublishRunCompleted(e.ec.RunID, e.recipe.Name, status, duration)
		} else {
			reason := node.ErrorText
			if reason == "" {
				reason = "run ended with status " + status
			}
			_ = e.events.PublishRunFailed(e.ec.RunID, e.recipe.Name, reason)
		}
	}
	if e.recorder != nil {
		rec := RunRecord{
			RunID:         e.ec.RunID,
			Recipe:        e.recipe.Name,
			RecipeVersion: e.recipe.Version,
			RecipeType:    e.recipe.Type,
			Engine:        e.name,
			Target:        e.ec.TargetOrg.Alias,
			Status:        status,
			StartedAt:     node.StartedAt,
			EndedAt:       node.EndedAt,
			Result:        node,
		}
		if err := e.recorder.FinishRun(ctx, rec); err != nil {
			e.log.WithError(err).Warn("run recorder rejected run finish")
		}
	}

	e.log.WithFields(map[string]interface{}{
		"status":   status,
		"duration": duration.String(),
	}).Info("run finished")
}
