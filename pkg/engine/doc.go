// Package engine drives recipe runs through a shared three-stage
// lifecycle: initialization, plan compilation, and sequential execution.
//
// # Overview
//
// An Engine executes exactly one run of one recipe. Engine families
// (org-build, org-teardown) share this package's lifecycle and customize
// it through the Hooks capability set rather than subclassing:
//
//  1. Initialize - run the family's hooks to assemble the run context:
//     variables, target org, pre/post-build groups, skip lists, and the
//     action registry, then validate the assembled engine.
//  2. CompilePlan - flatten pre-build, recipe, and post-build groups
//     into an ordered plan, applying skip rules and interpolating
//     ${name} references in step options.
//  3. Execute - run the plan's steps strictly in order, attaching each
//     step's result node to the engine result and letting the bubbling
//     policy decide whether a non-success step aborts the remainder.
//
// # Hooks
//
// Families implement Hooks by embedding Defaults and overriding what
// they customize. The initialization hooks run in a fixed order:
// context, target org, pre-build groups, post-build groups, skip
// actions, skip groups, action registry, result detail. PreExecute and
// PostExecute bracket the step loop.
//
// # Plan Compilation
//
// CompilePlan walks the engine's pre-build groups, the recipe's step
// groups, and the engine's post-build groups, in that order. A group is
// skipped when its alias is in the skip-groups list or when every one of
// its steps invokes a skip-listed action; an individual step is skipped
// when its action is skip-listed. A group with no steps at all fails
// compilation regardless of skip rules. Every exclusion is recorded on
// the plan with its reason.
//
// # Results
//
// The engine result is a results.Node of type engine with both bubbling
// flags set: a step ending in error finalizes the engine as error with
// the step's error, a step ending in failure finalizes it as failure
// carrying the step's detail, and in both cases the remaining steps do
// not run. Execute guarantees that its error return is always paired
// with a well-formed engine result in error status, synthesizing one
// when the run left something else behind.
//
// # Error Classification
//
// Engine errors carry stable codes plus the run coordinates known at
// the failure point. Use the predicate helpers to branch on them:
//
//	if engine.IsUnknownAction(err) {
//	    // the recipe references an action this family does not provide
//	}
//
// # Run History and Admission
//
// A RunRecorder persists run and step records; recorder failures are
// logged and never fail the run. A PolicyGate admits or denies the
// compiled plan before the first step executes; a denial finalizes the
// run as policy-blocked.
package engine
