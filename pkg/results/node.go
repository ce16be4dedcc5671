package results

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Node is a typed, hierarchical outcome record. It is created when a logical
// unit of work begins and finalized exactly once by the unit that owns it.
// Nodes are not safe for concurrent mutation; the execution model is
// single-threaded along the active call path.
type Node struct {
	// ID uniquely identifies this node for correlation with stored runs,
	// events, and spans.
	ID string `json:"id"`

	// Name is the human-readable name of the unit of work.
	Name string `json:"name"`

	// Type is the pipeline layer that owns this node.
	Type Type `json:"type"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// Detail is an opaque, type-specific context snapshot (command flags,
	// engine context, executor response).
	Detail any `json:"detail,omitempty"`

	// Children are the owned sub-results, in execution order. Append-only.
	Children []*Node `json:"children,omitempty"`

	// BubbleError controls whether a child ending in error finalizes this
	// node. Fixed at construction.
	BubbleError bool `json:"bubble_error"`

	// BubbleFailure controls whether a child ending in failure finalizes
	// this node. Fixed at construction.
	BubbleFailure bool `json:"bubble_failure"`

	// StartedAt is when the unit of work began.
	StartedAt time.Time `json:"started_at,omitzero"`

	// EndedAt is when the node reached a terminal status.
	EndedAt time.Time `json:"ended_at,omitzero"`

	// Err is the error value behind an error status. Excluded from JSON;
	// ErrorText carries the rendered message instead.
	Err error `json:"-"`

	// ErrorText is the rendered message of Err, set on the error transition.
	ErrorText string `json:"error,omitempty"`
}

// Options configure a node at construction time. The bubbling policy cannot
// be changed afterwards.
type Options struct {
	// StartNow moves the node straight to the running state.
	StartNow bool

	// BubbleError lets error-status children finalize this node.
	BubbleError bool

	// BubbleFailure lets failure-status children finalize this node.
	BubbleFailure bool

	// Detail seeds the node's opaque payload.
	Detail any
}

// NewNode creates a node in the initialized state, or running when
// opts.StartNow is set. An empty type is recorded as unknown.
func NewNode(name string, typ Type, opts Options) *Node {
	if typ == "" {
		typ = TypeUnknown
	}
	n := &Node{
		ID:            uuid.New().String(),
		Name:          name,
		Type:          typ,
		Status:        StatusInitialized,
		Detail:        opts.Detail,
		BubbleError:   opts.BubbleError,
		BubbleFailure: opts.BubbleFailure,
	}
	if opts.StartNow {
		n.Start()
	}
	return n
}

// Start moves an initialized node to running and stamps StartedAt. Calling
// Start on a running or terminal node is a no-op.
func (n *Node) Start() {
	if n.Status == StatusInitialized {
		n.Status = StatusRunning
		n.StartedAt = time.Now()
	}
}

// IsTerminal reports whether the node has reached a terminal status.
func (n *Node) IsTerminal() bool {
	return n.Status.IsTerminal()
}

// Duration returns the wall time between start and end, or zero while the
// node is still active.
func (n *Node) Duration() time.Duration {
	if n.StartedAt.IsZero() || n.EndedAt.IsZero() {
		return 0
	}
	return n.EndedAt.Sub(n.StartedAt)
}

// AddChild appends child to the node's children and applies the bubbling
// policy. The returned Outcome tells the caller whether to continue with
// sibling work or abandon it because the child's terminal status propagated.
// The error return reports structural problems only: a nil child, a type
// hierarchy violation, or a propagation attempt against an already-terminal
// parent.
func (n *Node) AddChild(child *Node) (Outcome, error) {
	if child == nil {
		return Continue(), fmt.Errorf("nil child added to result %q", n.Name)
	}
	if !n.Type.CanParent(child.Type) {
		return Continue(), &HierarchyError{Node: n.Name, Parent: n.Type, Child: child.Type}
	}

	n.Children = append(n.Children, child)

	switch {
	case child.Status == StatusError && n.BubbleError:
		cause := child.Err
		if cause == nil {
			cause = fmt.Errorf("child result %q ended in error", child.Name)
		}
		if err := n.Error(cause); err != nil {
			return Continue(), err
		}
		return Abort(child), nil

	case child.Status == StatusFailure && n.BubbleFailure:
		if err := n.Failure(child.Detail); err != nil {
			return Continue(), err
		}
		return Abort(child), nil
	}

	return Continue(), nil
}

// Success finalizes the node as success. A non-nil detail replaces the
// node's payload; nil preserves whatever was set earlier.
func (n *Node) Success(detail any) error {
	return n.finalize(StatusSuccess, detail, nil)
}

// Error finalizes the node as error, recording cause as the node's error
// value. A nil cause is replaced with a generic error so the invariant
// "error status carries an error" always holds.
func (n *Node) Error(cause error) error {
	if cause == nil {
		cause = fmt.Errorf("result %q finalized as error without a cause", n.Name)
	}
	return n.finalize(StatusError, nil, cause)
}

// Failure finalizes the node as failure.
func (n *Node) Failure(detail any) error {
	return n.finalize(StatusFailure, detail, nil)
}

// Warning finalizes the node as warning.
func (n *Node) Warning(detail any) error {
	return n.finalize(StatusWarning, detail, nil)
}

// finalize performs the single permitted terminal transition.
func (n *Node) finalize(status Status, detail any, cause error) error {
	if n.Status.IsTerminal() {
		return &DoubleFinalizationError{Node: n.Name, Status: n.Status, Attempted: status}
	}
	if n.StartedAt.IsZero() {
		n.StartedAt = time.Now()
	}
	n.Status = status
	n.EndedAt = time.Now()
	if detail != nil {
		n.Detail = detail
	}
	if cause != nil {
		n.Err = cause
		n.ErrorText = cause.Error()
	}
	return nil
}

// Summary aggregates the statuses of a node's direct children.
type Summary struct {
	// Total is the number of children.
	Total int `json:"total"`

	// Succeeded counts children in success status.
	Succeeded int `json:"succeeded"`

	// Errors counts children in error status.
	Errors int `json:"errors"`

	// Failures counts children in failure status.
	Failures int `json:"failures"`

	// Warnings counts children in warning status.
	Warnings int `json:"warnings"`

	// Unfinished counts children still in an active status.
	Unfinished int `json:"unfinished"`

	// Duration is the owning node's wall time.
	Duration time.Duration `json:"duration"`
}

// Summarize computes status counts over the node's direct children.
func (n *Node) Summarize() Summary {
	s := Summary{Total: len(n.Children), Duration: n.Duration()}
	for _, c := range n.Children {
		switch c.Status {
		case StatusSuccess:
			s.Succeeded++
		case StatusError:
			s.Errors++
		case StatusFailure:
			s.Failures++
		case StatusWarning:
			s.Warnings++
		default:
			s.Unfinished++
		}
	}
	return s
}

// Walk visits the node and every descendant depth-first in execution order.
// The depth of the receiving node is 0.
func (n *Node) Walk(visit func(depth int, node *Node)) {
	n.walk(0, visit)
}

func (n *Node) walk(depth int, visit func(depth int, node *Node)) {
	visit(depth, n)
	for _, c := range n.Children {
		c.walk(depth+1, visit)
	}
}
