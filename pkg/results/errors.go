package results

import (
	"errors"
	"fmt"
)

// DoubleFinalizationError reports a second terminal transition attempt on a
// node that is already terminal. The node keeps the status of the first
// transition.
type DoubleFinalizationError struct {
	// Node is the name of the node that was already finalized.
	Node string

	// Status is the terminal status the node already holds.
	Status Status

	// Attempted is the status the rejected transition tried to set.
	Attempted Status
}

// Error implements the error interface.
func (e *DoubleFinalizationError) Error() string {
	return fmt.Sprintf("result %q is already %s: cannot transition to %s", e.Node, e.Status, e.Attempted)
}

// IsDoubleFinalization reports whether err is a double finalization.
func IsDoubleFinalization(err error) bool {
	var target *DoubleFinalizationError
	return errors.As(err, &target)
}

// HierarchyError reports an AddChild call that would violate the nested type
// hierarchy: a child must sit at the parent's level or exactly one level
// deeper.
type HierarchyError struct {
	// Node is the name of the would-be parent.
	Node string

	// Parent is the parent's type.
	Parent Type

	// Child is the rejected child's type.
	Child Type
}

// Error implements the error interface.
func (e *HierarchyError) Error() string {
	return fmt.Sprintf("result %q of type %s cannot own a child of type %s", e.Node, e.Parent, e.Child)
}

// IsHierarchyViolation reports whether err is a hierarchy violation.
func IsHierarchyViolation(err error) bool {
	var target *HierarchyError
	return errors.As(err, &target)
}
