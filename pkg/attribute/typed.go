package attribute

import (
	"github.com/labwire-protocol/labwire-go/pkg/constraint"
)

// Typed constructors for the common attribute shapes. Each composes
// New with a constraint; the constraint is validated against the
// initial value, so an initial value outside the range fails here
// rather than at first use.

// NewFloat creates a float attribute without a constraint.
func NewFloat(name, unit string, initial float64, readOnly bool) (*Attribute, error) {
	return New(Metadata{Name: name, Unit: unit, Type: DataTypeFloat, ReadOnly: readOnly}, initial)
}

// NewFloatRange creates a float attribute constrained to [min, max].
func NewFloatRange(name, unit string, initial, min, max float64, readOnly bool) (*Attribute, error) {
	r, err := constraint.NewRange(min, max)
	if err != nil {
		return nil, err
	}
	a, err := New(Metadata{Name: name, Unit: unit, Type: DataTypeFloat, ReadOnly: readOnly}, initial)
	if err != nil {
		return nil, err
	}
	if err := a.SetConstraint(r); err != nil {
		return nil, err
	}
	return a, nil
}

// NewIntRange creates an integer attribute constrained to [min, max].
func NewIntRange(name, unit string, initial, min, max int64, readOnly bool) (*Attribute, error) {
	r, err := constraint.NewRange(float64(min), float64(max))
	if err != nil {
		return nil, err
	}
	a, err := New(Metadata{Name: name, Unit: unit, Type: DataTypeInt, ReadOnly: readOnly}, initial)
	if err != nil {
		return nil, err
	}
	if err := a.SetConstraint(r); err != nil {
		return nil, err
	}
	return a, nil
}

// NewChoice creates an attribute constrained to a finite set of
// allowed values. The data type is inferred from the initial value:
// string initials get DataTypeString, everything else DataTypeAny.
func NewChoice(name, unit string, initial any, readOnly bool, allowed ...any) (*Attribute, error) {
	c, err := constraint.NewChoices(allowed...)
	if err != nil {
		return nil, err
	}
	dt := DataTypeAny
	if _, ok := initial.(string); ok {
		dt = DataTypeString
	}
	a, err := New(Metadata{Name: name, Unit: unit, Type: dt, ReadOnly: readOnly}, initial)
	if err != nil {
		return nil, err
	}
	if err := a.SetConstraint(c); err != nil {
		return nil, err
	}
	return a, nil
}

// NewBool creates a boolean attribute.
func NewBool(name string, initial bool, readOnly bool) (*Attribute, error) {
	return New(Metadata{Name: name, Type: DataTypeBool, ReadOnly: readOnly}, initial)
}

// NewString creates an unconstrained string attribute.
func NewString(name string, initial string, readOnly bool) (*Attribute, error) {
	return New(Metadata{Name: name, Type: DataTypeString, ReadOnly: readOnly}, initial)
}
