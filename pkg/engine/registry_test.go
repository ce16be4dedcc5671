package engine

import (
	"reflect"
	"strings"
	"testing"
)

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Register(&fakeAction{name: "verify-target"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.Len() != 1 {
		t.Errorf("Expected 1 action, got %d", reg.Len())
	}

	err := reg.Register(&fakeAction{name: "verify-target"})
	if !IsValidation(err) {
		t.Errorf("Expected a validation error on duplicate registration, got %v", err)
	}
	ee, _ := AsEngineError(err)
	if ee.Action != "verify-target" {
		t.Errorf("Expected the duplicate name on the error, got %q", ee.Action)
	}
}

func TestRegistry_RegisterRejectsNilAndUnnamed(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Register(nil); !IsValidation(err) {
		t.Errorf("Expected a validation error for a nil action, got %v", err)
	}
	if err := reg.Register(&fakeAction{}); !IsValidation(err) {
		t.Errorf("Expected a validation error for an empty name, got %v", err)
	}
	if reg.Len() != 0 {
		t.Errorf("Expected an empty registry, got %d actions", reg.Len())
	}
}

func TestRegistry_Lookup(t *testing.T) {
	reg := NewRegistry()
	action := &fakeAction{name: "install-package"}
	if err := reg.Register(action); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := reg.Lookup("install-package")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != Action(action) {
		t.Error("Expected the registered action back")
	}

	_, err = reg.Lookup("delete-scratch-org")
	if !IsUnknownAction(err) {
		t.Errorf("Expected unknown-action error, got %v", err)
	}
	if !strings.Contains(err.Error(), "delete-scratch-org") {
		t.Errorf("Expected the missing name in the error, got %q", err.Error())
	}
}

func TestRegistry_NamesSorted(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"verify-target", "create-scratch-org", "install-package"} {
		if err := reg.Register(&fakeAction{name: name}); err != nil {
			t.Fatalf("Register %s: %v", name, err)
		}
	}

	want := []string{"create-scratch-org", "install-package", "verify-target"}
	if got := reg.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestRegistry_MustRegisterPanics(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(&fakeAction{name: "verify-target"})

	defer func() {
		if recover() == nil {
			t.Error("Expected MustRegister to panic on a duplicate")
		}
	}()
	reg.MustRegister(&fakeAction{name: "verify-target"})
}
