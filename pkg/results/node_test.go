package results

import (
	"errors"
	"testing"
)

func TestNewNode_Defaults(t *testing.T) {
	n := NewNode("load-recipe", TypeRecipe, Options{})

	if n.ID == "" {
		t.Error("Expected a generated ID")
	}
	if n.Status != StatusInitialized {
		t.Errorf("Expected status initialized, got %s", n.Status)
	}
	if !n.StartedAt.IsZero() {
		t.Error("Expected StartedAt to be unset without StartNow")
	}
	if len(n.Children) != 0 {
		t.Errorf("Expected no children, got %d", len(n.Children))
	}
}

func TestNewNode_StartNow(t *testing.T) {
	n := NewNode("run-engine", TypeEngine, Options{StartNow: true, BubbleError: true, BubbleFailure: true})

	if n.Status != StatusRunning {
		t.Errorf("Expected status running, got %s", n.Status)
	}
	if n.StartedAt.IsZero() {
		t.Error("Expected StartedAt to be stamped")
	}
	if !n.BubbleError || !n.BubbleFailure {
		t.Error("Expected bubbling flags to be carried from options")
	}
}

func TestNewNode_EmptyTypeBecomesUnknown(t *testing.T) {
	n := NewNode("mystery", "", Options{})
	if n.Type != TypeUnknown {
		t.Errorf("Expected unknown type, got %s", n.Type)
	}
}

func TestNode_Start_Idempotent(t *testing.T) {
	n := NewNode("step", TypeAction, Options{})
	n.Start()
	first := n.StartedAt
	n.Start()

	if n.Status != StatusRunning {
		t.Errorf("Expected running, got %s", n.Status)
	}
	if !n.StartedAt.Equal(first) {
		t.Error("Second Start must not change StartedAt")
	}
}

func TestNode_TerminalTransitions(t *testing.T) {
	tests := []struct {
		name       string
		transition func(n *Node) error
		want       Status
	}{
		{"success", func(n *Node) error { return n.Success(nil) }, StatusSuccess},
		{"error", func(n *Node) error { return n.Error(errors.New("boom")) }, StatusError},
		{"failure", func(n *Node) error { return n.Failure("detail") }, StatusFailure},
		{"warning", func(n *Node) error { return n.Warning(nil) }, StatusWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNode("node", TypeAction, Options{StartNow: true})
			if err := tt.transition(n); err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if n.Status != tt.want {
				t.Errorf("Expected status %s, got %s", tt.want, n.Status)
			}
			if n.EndedAt.IsZero() {
				t.Error("Expected EndedAt to be stamped")
			}
			if !n.IsTerminal() {
				t.Error("Expected node to be terminal")
			}
		})
	}
}

func TestNode_DoubleFinalization(t *testing.T) {
	n := NewNode("once", TypeAction, Options{StartNow: true})
	if err := n.Success("first"); err != nil {
		t.Fatalf("First transition failed: %v", err)
	}

	err := n.Error(errors.New("late"))
	if err == nil {
		t.Fatal("Expected DoubleFinalization on second transition")
	}
	if !IsDoubleFinalization(err) {
		t.Errorf("Expected DoubleFinalizationError, got %T", err)
	}

	var dfe *DoubleFinalizationError
	if !errors.As(err, &dfe) {
		t.Fatalf("Expected errors.As to find DoubleFinalizationError")
	}
	if dfe.Status != StatusSuccess || dfe.Attempted != StatusError {
		t.Errorf("Unexpected error fields: %+v", dfe)
	}

	// The first transition's status must survive.
	if n.Status != StatusSuccess {
		t.Errorf("Expected status success, got %s", n.Status)
	}
	if n.Detail != "first" {
		t.Errorf("Expected original detail, got %v", n.Detail)
	}
}

func TestNode_ErrorTransitionRecordsCause(t *testing.T) {
	cause := errors.New("deploy failed")
	n := NewNode("deploy", TypeAction, Options{StartNow: true})
	if err := n.Error(cause); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !errors.Is(n.Err, cause) {
		t.Error("Expected Err to carry the cause")
	}
	if n.ErrorText != "deploy failed" {
		t.Errorf("Expected rendered error text, got %q", n.ErrorText)
	}
}

func TestNode_ErrorWithNilCause(t *testing.T) {
	n := NewNode("deploy", TypeAction, Options{StartNow: true})
	if err := n.Error(nil); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if n.Err == nil {
		t.Error("Expected a synthesized cause for a nil error transition")
	}
}

func TestNode_SuccessKeepsExistingDetailOnNil(t *testing.T) {
	n := NewNode("engine", TypeEngine, Options{StartNow: true, Detail: "seeded"})
	if err := n.Success(nil); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if n.Detail != "seeded" {
		t.Errorf("Expected seeded detail to survive, got %v", n.Detail)
	}
}

func TestNode_AddChild_BubbleError(t *testing.T) {
	parent := NewNode("engine", TypeEngine, Options{StartNow: true, BubbleError: true})
	child := NewNode("step", TypeAction, Options{StartNow: true})
	cause := errors.New("step blew up")
	_ = child.Error(cause)

	outcome, err := parent.AddChild(child)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !outcome.ShouldAbort() {
		t.Fatal("Expected abort outcome")
	}
	if outcome.Cause != child {
		t.Error("Expected the child as the abort cause")
	}
	if parent.Status != StatusError {
		t.Errorf("Expected parent to become error, got %s", parent.Status)
	}
	if !errors.Is(parent.Err, cause) {
		t.Error("Expected parent to carry the child's cause")
	}
	if len(parent.Children) != 1 {
		t.Errorf("Expected the child to be recorded, got %d children", len(parent.Children))
	}
}

func TestNode_AddChild_SuppressedError(t *testing.T) {
	parent := NewNode("engine", TypeEngine, Options{StartNow: true, BubbleError: false})
	child := NewNode("step", TypeAction, Options{StartNow: true})
	_ = child.Error(errors.New("recorded but not fatal"))

	outcome, err := parent.AddChild(child)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if outcome.ShouldAbort() {
		t.Fatal("Expected continue outcome when bubbling is suppressed")
	}
	if parent.Status != StatusRunning {
		t.Errorf("Expected parent still running, got %s", parent.Status)
	}

	// The parent can still finish successfully after a recorded error.
	if err := parent.Success(nil); err != nil {
		t.Fatalf("Expected success to be reachable, got: %v", err)
	}
}

func TestNode_AddChild_BubbleFailure(t *testing.T) {
	parent := NewNode("engine", TypeEngine, Options{StartNow: true, BubbleFailure: true})
	child := NewNode("step", TypeAction, Options{StartNow: true})
	_ = child.Failure("target rejected the change")

	outcome, err := parent.AddChild(child)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !outcome.ShouldAbort() {
		t.Fatal("Expected abort outcome")
	}
	if parent.Status != StatusFailure {
		t.Errorf("Expected parent to become failure, got %s", parent.Status)
	}
	if parent.Detail != "target rejected the change" {
		t.Errorf("Expected failure detail to propagate, got %v", parent.Detail)
	}
}

func TestNode_AddChild_SuccessChildContinues(t *testing.T) {
	parent := NewNode("engine", TypeEngine, Options{StartNow: true, BubbleError: true, BubbleFailure: true})
	child := NewNode("step", TypeAction, Options{StartNow: true})
	_ = child.Success(nil)

	outcome, err := parent.AddChild(child)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if outcome.ShouldAbort() {
		t.Error("Expected continue outcome for a successful child")
	}
}

func TestNode_AddChild_HierarchyViolation(t *testing.T) {
	parent := NewNode("recipe", TypeRecipe, Options{StartNow: true})
	child := NewNode("exec", TypeExecutor, Options{StartNow: true})

	_, err := parent.AddChild(child)
	if err == nil {
		t.Fatal("Expected hierarchy violation")
	}
	if !IsHierarchyViolation(err) {
		t.Errorf("Expected HierarchyError, got %T", err)
	}
	if len(parent.Children) != 0 {
		t.Error("A rejected child must not be recorded")
	}
}

func TestNode_AddChild_UnknownChildAllowedAnywhere(t *testing.T) {
	parent := NewNode("recipe", TypeRecipe, Options{StartNow: true})
	child := NewNode("wrapped", TypeUnknown, Options{StartNow: true})
	_ = child.Success(nil)

	if _, err := parent.AddChild(child); err != nil {
		t.Fatalf("Expected unknown child to attach, got: %v", err)
	}
}

func TestNode_AddChild_SameLevelAllowed(t *testing.T) {
	parent := NewNode("outer", TypeAction, Options{StartNow: true})
	child := NewNode("inner", TypeAction, Options{StartNow: true})
	_ = child.Success(nil)

	if _, err := parent.AddChild(child); err != nil {
		t.Fatalf("Expected same-level child to attach, got: %v", err)
	}
}

func TestNode_AddChild_Nil(t *testing.T) {
	parent := NewNode("engine", TypeEngine, Options{StartNow: true})
	if _, err := parent.AddChild(nil); err == nil {
		t.Fatal("Expected an error for a nil child")
	}
}

func TestNode_AddChild_AgainstTerminalParent(t *testing.T) {
	parent := NewNode("engine", TypeEngine, Options{StartNow: true, BubbleError: true})
	_ = parent.Success(nil)

	child := NewNode("late-step", TypeAction, Options{StartNow: true})
	_ = child.Error(errors.New("straggler"))

	_, err := parent.AddChild(child)
	if err == nil {
		t.Fatal("Expected double finalization when bubbling into a terminal parent")
	}
	if !IsDoubleFinalization(err) {
		t.Errorf("Expected DoubleFinalizationError, got %T", err)
	}
}

func TestNode_Summarize(t *testing.T) {
	parent := NewNode("engine", TypeEngine, Options{StartNow: true})

	ok := NewNode("s1", TypeAction, Options{StartNow: true})
	_ = ok.Success(nil)
	warn := NewNode("s2", TypeAction, Options{StartNow: true})
	_ = warn.Warning(nil)
	bad := NewNode("s3", TypeAction, Options{StartNow: true})
	_ = bad.Error(errors.New("x"))
	pending := NewNode("s4", TypeAction, Options{})

	for _, c := range []*Node{ok, warn, bad, pending} {
		if _, err := parent.AddChild(c); err != nil {
			t.Fatalf("AddChild failed: %v", err)
		}
	}

	s := parent.Summarize()
	if s.Total != 4 || s.Succeeded != 1 || s.Warnings != 1 || s.Errors != 1 || s.Unfinished != 1 {
		t.Errorf("Unexpected summary: %+v", s)
	}
}

func TestNode_Walk(t *testing.T) {
	root := NewNode("command", TypeCommand, Options{StartNow: true})
	recipe := NewNode("recipe", TypeRecipe, Options{StartNow: true})
	engine := NewNode("engine", TypeEngine, Options{StartNow: true})

	if _, err := recipe.AddChild(engine); err != nil {
		t.Fatalf("AddChild failed: %v", err)
	}
	if _, err := root.AddChild(recipe); err != nil {
		t.Fatalf("AddChild failed: %v", err)
	}

	var names []string
	var depths []int
	root.Walk(func(depth int, n *Node) {
		names = append(names, n.Name)
		depths = append(depths, depth)
	})

	wantNames := []string{"command", "recipe", "engine"}
	wantDepths := []int{0, 1, 2}
	for i := range wantNames {
		if names[i] != wantNames[i] || depths[i] != wantDepths[i] {
			t.Errorf("Walk order mismatch at %d: got (%s,%d), want (%s,%d)",
				i, names[i], depths[i], wantNames[i], wantDepths[i])
		}
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	terminal := []Status{StatusSuccess, StatusError, StatusFailure, StatusWarning}
	active := []Status{StatusInitialized, StatusRunning}

	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("Expected %s to be terminal", s)
		}
		if s.IsActive() {
			t.Errorf("Expected %s not to be active", s)
		}
	}
	for _, s := range active {
		if s.IsTerminal() {
			t.Errorf("Expected %s not to be terminal", s)
		}
		if !s.IsActive() {
			t.Errorf("Expected %s to be active", s)
		}
	}
}

func TestStatus_UnmarshalRejectsUnknown(t *testing.T) {
	var s Status
	if err := s.UnmarshalJSON([]byte(`"exploded"`)); err == nil {
		t.Fatal("Expected unmarshal of unknown status to fail")
	}
	if err := s.UnmarshalJSON([]byte(`"success"`)); err != nil {
		t.Fatalf("Expected valid status to unmarshal, got: %v", err)
	}
	if s != StatusSuccess {
		t.Errorf("Expected success, got %s", s)
	}
}

func TestType_CanParent(t *testing.T) {
	tests := []struct {
		parent Type
		child  Type
		want   bool
	}{
		{TypeCommand, TypeRecipe, true},
		{TypeRecipe, TypeEngine, true},
		{TypeEngine, TypeAction, true},
		{TypeAction, TypeExecutor, true},
		{TypeEngine, TypeEngine, true},
		{TypeCommand, TypeEngine, false},
		{TypeRecipe, TypeExecutor, false},
		{TypeExecutor, TypeAction, false},
		{TypeRecipe, TypeUnknown, true},
		{TypeUnknown, TypeExecutor, true},
	}

	for _, tt := range tests {
		if got := tt.parent.CanParent(tt.child); got != tt.want {
			t.Errorf("CanParent(%s, %s) = %v, want %v", tt.parent, tt.child, got, tt.want)
		}
	}
}
