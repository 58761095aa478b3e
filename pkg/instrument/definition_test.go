package instrument

import (
	"errors"
	"testing"

	"github.com/labwire-protocol/labwire-go/pkg/constraint"
)

const laserYAML = `
name: laser
attributes:
  - name: power
    type: float
    unit: mW
    initial: 10
    range: {min: 0, max: 100}
    maxDiscard: 2
  - name: mode
    type: string
    initial: cw
    choices: [cw, pulsed]
  - name: serial
    type: string
    readOnly: true
    initial: L-001
`

func TestParseAndBuild(t *testing.T) {
	def, err := Parse([]byte(laserYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if def.Name != "laser" {
		t.Errorf("name = %q, want laser", def.Name)
	}
	if len(def.Attributes) != 3 {
		t.Fatalf("got %d attributes, want 3", len(def.Attributes))
	}

	in, err := def.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	power, ok := in.Attribute("power")
	if !ok {
		t.Fatal("power missing")
	}
	// YAML integer initial widened for the float type.
	if got := power.Attribute().Value(); got != 10.0 {
		t.Errorf("power = %v (%T), want 10.0", got, got)
	}
	if power.MaxDiscard() != 2 {
		t.Errorf("maxDiscard = %d, want 2", power.MaxDiscard())
	}
	if err := power.Attribute().SetValue(150.0); !errors.Is(err, constraint.ErrOutOfRange) {
		t.Errorf("set 150 = %v, want ErrOutOfRange", err)
	}

	mode, _ := in.Attribute("mode")
	if err := mode.Attribute().SetValue("off"); !errors.Is(err, constraint.ErrNotInChoices) {
		t.Errorf("set off = %v, want ErrNotInChoices", err)
	}
	if err := mode.Attribute().SetValue("pulsed"); err != nil {
		t.Errorf("set pulsed: %v", err)
	}

	serial, _ := in.Attribute("serial")
	if !serial.Attribute().ReadOnly() {
		t.Error("serial not read-only")
	}
}

func TestParseRejectsMissingName(t *testing.T) {
	if _, err := Parse([]byte("attributes: []")); err == nil {
		t.Error("definition without name accepted")
	}
}

func TestParseRejectsBadYAML(t *testing.T) {
	if _, err := Parse([]byte("{not yaml")); err == nil {
		t.Error("malformed YAML accepted")
	}
}

func TestBuildRejectsInvalidDefinitions(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"unknown type", `
name: x
attributes:
  - name: a
    type: complex
    initial: 1
`},
		{"min above max", `
name: x
attributes:
  - name: a
    type: float
    initial: 1
    range: {min: 10, max: 0}
`},
		{"initial outside range", `
name: x
attributes:
  - name: a
    type: float
    initial: 50
    range: {min: 0, max: 10}
`},
		{"range and choices", `
name: x
attributes:
  - name: a
    type: int
    initial: 1
    range: {min: 0, max: 10}
    choices: [1, 2]
`},
		{"empty choices", `
name: x
attributes:
  - name: a
    type: string
    initial: a
    choices: []
`},
		{"initial wrong type", `
name: x
attributes:
  - name: a
    type: int
    initial: hello
`},
		{"unnamed attribute", `
name: x
attributes:
  - type: int
    initial: 1
`},
		{"duplicate attribute", `
name: x
attributes:
  - name: a
    type: int
    initial: 1
  - name: a
    type: int
    initial: 2
`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			def, err := Parse([]byte(tc.yaml))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if _, err := def.Build(); err == nil {
				t.Error("invalid definition built without error")
			}
		})
	}
}
