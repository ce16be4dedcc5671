package recipes

import (
	"reflect"
	"testing"
)

func noopFactory(prj *Project, r *Recipe, opts CompileOptions) (Engine, error) {
	return &fakeEngine{}, nil
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Register("org-build", Registration{New: noopFactory}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register("org-teardown", Registration{New: noopFactory}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	registration, ok := reg.Lookup("org-build")
	if !ok || registration.New == nil {
		t.Error("registered type must resolve")
	}
	if _, ok := reg.Lookup("org-demolish"); ok {
		t.Error("unregistered type must not resolve")
	}
	if got := reg.Types(); !reflect.DeepEqual(got, []string{"org-build", "org-teardown"}) {
		t.Errorf("Types = %v", got)
	}
}

func TestRegistryRejectsBadRegistrations(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Register("", Registration{New: noopFactory}); err == nil {
		t.Error("empty recipe type must be rejected")
	}
	if err := reg.Register("org-build", Registration{}); err == nil {
		t.Error("nil factory must be rejected")
	}
	if err := reg.Register("org-build", Registration{New: noopFactory}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register("org-build", Registration{New: noopFactory}); err == nil {
		t.Error("duplicate recipe type must be rejected")
	}
}

func TestRegistryMustRegisterPanics(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister("org-build", Registration{New: noopFactory})

	defer func() {
		if recover() == nil {
			t.Error("duplicate MustRegister should panic")
		}
	}()
	reg.MustRegister("org-build", Registration{New: noopFactory})
}

func TestRegistryConcurrentLookups(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister("org-build", Registration{New: noopFactory})

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				if _, ok := reg.Lookup("org-build"); !ok {
					t.Error("lookup lost a registration")
					return
				}
				_ = reg.Types()
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
