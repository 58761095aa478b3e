package instrument

import (
	"errors"
	"testing"

	"github.com/labwire-protocol/labwire-go/pkg/attribute"
	"github.com/labwire-protocol/labwire-go/pkg/remote"
)

func newAttr(t *testing.T, name string, initial any) *remote.Distributed {
	t.Helper()
	a, err := attribute.New(attribute.Metadata{Name: name}, initial)
	if err != nil {
		t.Fatalf("attribute %q: %v", name, err)
	}
	return remote.NewDistributed(a, 0)
}

func TestAddAndNames(t *testing.T) {
	in := New("laser")
	if err := in.Add("power", newAttr(t, "power", 1.0)); err != nil {
		t.Fatalf("add power: %v", err)
	}
	if err := in.Add("mode", newAttr(t, "mode", "cw")); err != nil {
		t.Fatalf("add mode: %v", err)
	}

	names := in.Names()
	if len(names) != 2 || names[0] != "power" || names[1] != "mode" {
		t.Errorf("names = %v, want [power mode]", names)
	}
	if _, ok := in.Attribute("power"); !ok {
		t.Error("power not found")
	}
	if _, ok := in.Attribute("missing"); ok {
		t.Error("missing attribute reported present")
	}
}

func TestAddDuplicate(t *testing.T) {
	in := New("laser")
	if err := in.Add("power", newAttr(t, "power", 1.0)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := in.Add("power", newAttr(t, "power", 2.0)); !errors.Is(err, ErrDuplicateAttribute) {
		t.Errorf("duplicate add = %v, want ErrDuplicateAttribute", err)
	}
}

func TestRegisterQualifiesNames(t *testing.T) {
	ep := remote.NewEndpoint("dev", nil)
	in := New("laser")
	if err := in.Add("power", newAttr(t, "power", 1.0)); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := in.Register(ep); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, ok := ep.Lookup("laser/power"); !ok {
		t.Error("laser/power not registered on endpoint")
	}

	// Attributes cannot be added while registered.
	if err := in.Add("mode", newAttr(t, "mode", "cw")); !errors.Is(err, ErrRegistered) {
		t.Errorf("add while registered = %v, want ErrRegistered", err)
	}
	// Double registration fails.
	if err := in.Register(ep); !errors.Is(err, remote.ErrAlreadyRegistered) {
		t.Errorf("second register = %v, want ErrAlreadyRegistered", err)
	}

	in.Unregister()
	if _, ok := ep.Lookup("laser/power"); ok {
		t.Error("laser/power still registered after unregister")
	}
	// Idempotent.
	in.Unregister()
}

func TestRegisterAllOrNothing(t *testing.T) {
	ep := remote.NewEndpoint("dev", nil)

	// Claim laser/mode so the second attribute of the instrument
	// collides mid-registration.
	squatter := newAttr(t, "mode", "x")
	if err := squatter.Register(ep, "laser/mode"); err != nil {
		t.Fatalf("squatter register: %v", err)
	}

	in := New("laser")
	if err := in.Add("power", newAttr(t, "power", 1.0)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := in.Add("mode", newAttr(t, "mode", "cw")); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := in.Register(ep); !errors.Is(err, remote.ErrAlreadyRegistered) {
		t.Fatalf("register = %v, want ErrAlreadyRegistered", err)
	}
	// The first attribute must have been rolled back.
	if _, ok := ep.Lookup("laser/power"); ok {
		t.Error("laser/power left registered after failed registration")
	}

	// After the collision is gone, registration succeeds.
	squatter.Unregister()
	if err := in.Register(ep); err != nil {
		t.Fatalf("register after rollback: %v", err)
	}
}
