package instrument

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/labwire-protocol/labwire-go/pkg/attribute"
	"github.com/labwire-protocol/labwire-go/pkg/constraint"
	"github.com/labwire-protocol/labwire-go/pkg/remote"
)

// Definition describes an instrument in YAML:
//
//	name: laser
//	attributes:
//	  - name: power
//	    type: float
//	    unit: mW
//	    initial: 10.5
//	    range: {min: 0, max: 100}
//	    maxDiscard: 2
//	  - name: mode
//	    type: string
//	    initial: cw
//	    choices: [cw, pulsed]
type Definition struct {
	Name       string         `yaml:"name"`
	Attributes []AttributeDef `yaml:"attributes"`
}

// AttributeDef describes one attribute of an instrument.
type AttributeDef struct {
	Name        string    `yaml:"name"`
	Type        string    `yaml:"type"`
	Unit        string    `yaml:"unit,omitempty"`
	ReadOnly    bool      `yaml:"readOnly,omitempty"`
	Description string    `yaml:"description,omitempty"`
	Initial     any       `yaml:"initial"`
	Range       *RangeDef `yaml:"range,omitempty"`
	Choices     []any     `yaml:"choices,omitempty"`
	MaxDiscard  int       `yaml:"maxDiscard,omitempty"`
}

// RangeDef is an inclusive numeric range.
type RangeDef struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Load reads a definition from a YAML file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition: %w", err)
	}
	return Parse(data)
}

// Parse decodes a definition from YAML bytes.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse definition: %w", err)
	}
	if def.Name == "" {
		return nil, fmt.Errorf("definition has no name")
	}
	return &def, nil
}

// Build constructs the instrument the definition describes. Invalid
// definitions (unknown type, min > max, initial value outside the
// constraint) fail here, before anything touches an endpoint.
func (def *Definition) Build() (*Instrument, error) {
	in := New(def.Name)
	for _, ad := range def.Attributes {
		d, err := ad.build()
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", ad.Name, err)
		}
		if err := in.Add(ad.Name, d); err != nil {
			return nil, err
		}
	}
	return in, nil
}

// build constructs one distributed attribute from its definition.
func (ad *AttributeDef) build() (*remote.Distributed, error) {
	if ad.Name == "" {
		return nil, fmt.Errorf("attribute has no name")
	}

	dt, err := parseDataType(ad.Type)
	if err != nil {
		return nil, err
	}

	var cons constraint.Constraint
	switch {
	case ad.Range != nil && ad.Choices != nil:
		return nil, fmt.Errorf("range and choices are mutually exclusive")
	case ad.Range != nil:
		cons, err = constraint.NewRange(ad.Range.Min, ad.Range.Max)
	case ad.Choices != nil:
		cons, err = constraint.NewChoices(ad.Choices...)
	}
	if err != nil {
		return nil, err
	}

	attr, err := attribute.New(attribute.Metadata{
		Name:        ad.Name,
		Unit:        ad.Unit,
		Type:        dt,
		ReadOnly:    ad.ReadOnly,
		Description: ad.Description,
	}, normalizeInitial(dt, ad.Initial))
	if err != nil {
		return nil, err
	}
	if cons != nil {
		if err := attr.SetConstraint(cons); err != nil {
			return nil, err
		}
	}
	return remote.NewDistributed(attr, ad.MaxDiscard), nil
}

// parseDataType maps a definition type name to a DataType.
func parseDataType(name string) (attribute.DataType, error) {
	switch name {
	case "", "any":
		return attribute.DataTypeAny, nil
	case "bool":
		return attribute.DataTypeBool, nil
	case "int":
		return attribute.DataTypeInt, nil
	case "float":
		return attribute.DataTypeFloat, nil
	case "string":
		return attribute.DataTypeString, nil
	case "bytes":
		return attribute.DataTypeBytes, nil
	default:
		return 0, fmt.Errorf("unknown data type %q", name)
	}
}

// normalizeInitial widens YAML integers to float64 for float
// attributes, so "initial: 10" passes the float type check.
func normalizeInitial(dt attribute.DataType, v any) any {
	if dt != attribute.DataTypeFloat {
		return v
	}
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	default:
		return v
	}
}
