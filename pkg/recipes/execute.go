package recipes

import (
	"context"
	"errors"

	"github.com/orgforge/orgforge/pkg/results"
	"github.com/orgforge/orgforge/pkg/telemetry"
)

// Execute runs the compiled engine and owns the recipe-level result node.
// The engine's result tree is attached as a child; the recipe node then
// mirrors the run's outcome. When the run did not succeed, the caller
// receives the finalized recipe node wrapped in a results.Rejection, never
// the engine's raw cause, so every consumer sees one well-formed tree.
func (r *Recipe) Execute(ctx context.Context) (*results.Node, error) {
	if !r.compiled || r.engine == nil {
		return nil, &NotCompiledError{Recipe: r.Name}
	}

	log := r.project.log.WithRecipe(r.Name, r.Version).WithRunID(r.engine.RunID())
	log.Info("recipe execution started")

	node := results.NewNode(r.Name, results.TypeRecipe, results.Options{
		StartNow:      true,
		BubbleError:   true,
		BubbleFailure: true,
		Detail:        r.Description,
	})

	engineNode, execErr := r.engine.Execute(ctx)
	if execErr == nil && engineNode == nil {
		execErr = errors.New("engine returned no result")
	}

	if execErr != nil {
		return r.rejectWith(log, node, engineNode, execErr)
	}

	outcome, err := node.AddChild(engineNode)
	if err != nil {
		return r.rejectWith(log, node, nil, err)
	}
	if outcome.ShouldAbort() {
		// The engine completed without an error return but its result
		// carried a bubbling terminal status, so the recipe mirrored it.
		log.WithField("status", string(node.Status)).Warn("recipe execution did not succeed")
		return node, results.Reject(node)
	}

	if err := node.Success(nil); err != nil {
		return node, err
	}
	log.WithField("duration", node.Duration().String()).Info("recipe execution succeeded")
	return node, nil
}

// rejectWith finalizes the recipe node for a failed run and wraps it into
// the error the caller receives. The engine's rejection is normalized into
// a node first; anything that is not a well-formed engine result in error
// status is replaced by one carrying an UnexpectedResultShapeError.
func (r *Recipe) rejectWith(log *telemetry.Logger, node, engineNode *results.Node, execErr error) (*results.Node, error) {
	var candidate any = execErr
	if engineNode != nil {
		candidate = engineNode
	}

	child := results.Wrap(candidate, r.engine.Name(), results.TypeUnknown)
	if !results.Validate(child, results.TypeEngine, results.StatusError) {
		shape := &UnexpectedResultShapeError{Recipe: r.Name, Cause: execErr}
		child = results.Wrap(shape, r.engine.Name(), results.TypeEngine)
	}

	if _, err := node.AddChild(child); err != nil && !node.IsTerminal() {
		_ = node.Error(err)
	}
	if !node.IsTerminal() {
		_ = node.Error(execErr)
	}

	log.WithError(node.Err).Error("recipe execution failed")
	return node, results.Reject(node)
}
