package results

import (
	"errors"
	"fmt"
)

// Rejection is the error value that carries a finalized node across an
// ordinary error return. Boundaries that must hand a whole result tree to
// their caller on failure wrap it with Reject; callers recover the tree with
// AsRejection.
type Rejection struct {
	// Node is the finalized result being propagated.
	Node *Node
}

// Reject wraps a node into an error value.
func Reject(n *Node) *Rejection {
	return &Rejection{Node: n}
}

// Error implements the error interface.
func (r *Rejection) Error() string {
	if r.Node == nil {
		return "rejected result: <nil>"
	}
	if r.Node.ErrorText != "" {
		return fmt.Sprintf("%s result %q: %s", r.Node.Type, r.Node.Name, r.Node.ErrorText)
	}
	return fmt.Sprintf("%s result %q ended with status %s", r.Node.Type, r.Node.Name, r.Node.Status)
}

// Unwrap exposes the node's underlying error value for errors.Is/As chains.
func (r *Rejection) Unwrap() error {
	if r.Node == nil {
		return nil
	}
	return r.Node.Err
}

// AsRejection extracts a Rejection from anywhere in an error chain.
func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// Wrap normalizes an arbitrary failure value into a well-formed node. A
// value that already is a node (directly, inside a Rejection, or behind an
// error chain) is returned unchanged. Anything else becomes a fresh node in
// error status named defaultName and typed defaultType (unknown when empty),
// carrying the original value as its error.
func Wrap(value any, defaultName string, defaultType Type) *Node {
	switch v := value.(type) {
	case *Node:
		if v != nil {
			return v
		}
	case *Rejection:
		if v != nil && v.Node != nil {
			return v.Node
		}
	case error:
		if rej, ok := AsRejection(v); ok && rej.Node != nil {
			return rej.Node
		}
		return wrapError(v, defaultName, defaultType)
	case nil:
		return wrapError(errors.New("unknown failure"), defaultName, defaultType)
	default:
		return wrapError(fmt.Errorf("unexpected failure value: %v", value), defaultName, defaultType)
	}
	return wrapError(errors.New("unknown failure"), defaultName, defaultType)
}

func wrapError(cause error, name string, typ Type) *Node {
	if name == "" {
		name = "unhandled-failure"
	}
	n := NewNode(name, typ, Options{StartNow: true})
	_ = n.Error(cause)
	return n
}

// Validate reports whether candidate is a node of the expected type and
// status. An empty expected type or status acts as a wildcard. It is a
// predicate, not an assertion: trust boundaries use it to verify that an
// asynchronous run produced the shape they expect and decide for themselves
// how to react.
func Validate(candidate any, expectedType Type, expectedStatus Status) bool {
	n, ok := candidate.(*Node)
	if !ok || n == nil {
		return false
	}
	if expectedType != "" && n.Type != expectedType {
		return false
	}
	if expectedStatus != "" && n.Status != expectedStatus {
		return false
	}
	return true
}
