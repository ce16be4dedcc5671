// Package results implements the hierarchical outcome model used by every
// layer of the orgforge execution pipeline.
//
// # Overview
//
// Each logical unit of work (a command invocation, a recipe load, an engine
// compile, an action dispatch, a low-level executor call) owns exactly one
// Node. Nodes form a tree whose nesting mirrors the call hierarchy:
//
//	command ⊇ recipe ⊇ engine ⊇ action ⊇ executor
//
// A child's type must be equal to or one level deeper than its parent's; the
// unknown type is exempt because it only appears when a foreign failure value
// is normalized into the tree.
//
// # State Machine
//
// A node moves through a bounded set of states:
//
//	initialized → running → {success | error | failure | warning}
//
// The running state is optional (StartNow or Start). Exactly one terminal
// transition is permitted; a second attempt fails with
// DoubleFinalizationError and leaves the first status in place.
//
// # Bubbling
//
// Whether a child's terminal error or failure propagates to its parent is
// decided by the parent's BubbleError and BubbleFailure flags, fixed at
// construction. AddChild always records the child and returns an explicit
// Outcome telling the caller how to proceed:
//
//	outcome, err := parent.AddChild(child)
//	if err != nil {
//	    // structural problem: hierarchy violation or double finalization
//	}
//	if outcome.ShouldAbort() {
//	    // the parent is now terminal; abandon remaining siblings
//	}
//
// Propagation is a returned decision, never a panic or hidden side channel,
// so partial completion stays a first-class outcome.
//
// # Boundary Normalization
//
// Failure values crossing a boundary are normalized with Wrap: a value that
// already is (or carries) a Node passes through untouched, anything else is
// folded into a fresh error-status node. Validate is the complementary
// predicate used where a caller must verify that an asynchronous run really
// produced the shape it expects; it reports false instead of failing so the
// caller decides how to react. Reject converts a finalized node into an
// error value that can travel through ordinary error returns without losing
// the tree.
package results
