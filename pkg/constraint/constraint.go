package constraint

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Constraint errors.
var (
	ErrOutOfRange   = errors.New("value out of range")
	ErrNotInChoices = errors.New("value not in choices")
	ErrInvalidRange = errors.New("invalid range")
	ErrEmptyChoices = errors.New("choices must not be empty")
)

// Constraint validates a candidate attribute value.
// Implementations must be safe for concurrent use; Range and Choices
// are immutable after construction.
type Constraint interface {
	// Validate returns nil if v is acceptable.
	Validate(v any) error

	// String describes the constraint for diagnostics and Describe replies.
	String() string
}

// Range constrains numeric values to [Min, Max] inclusive.
type Range struct {
	min float64
	max float64
}

// NewRange creates a range constraint. Fails if min > max.
func NewRange(min, max float64) (*Range, error) {
	if min > max {
		return nil, fmt.Errorf("%w: min %v > max %v", ErrInvalidRange, min, max)
	}
	return &Range{min: min, max: max}, nil
}

// Min returns the lower bound.
func (r *Range) Min() float64 { return r.min }

// Max returns the upper bound.
func (r *Range) Max() float64 { return r.max }

// Validate checks the value against the range. Non-numeric values are
// rejected as out of range since they cannot satisfy the bounds.
func (r *Range) Validate(v any) error {
	f, ok := toFloat64(v)
	if !ok {
		return fmt.Errorf("%w: %v is not numeric", ErrOutOfRange, v)
	}
	if f < r.min {
		return fmt.Errorf("%w: %v < %v", ErrOutOfRange, v, r.min)
	}
	if f > r.max {
		return fmt.Errorf("%w: %v > %v", ErrOutOfRange, v, r.max)
	}
	return nil
}

// String returns the range in interval notation.
func (r *Range) String() string {
	return fmt.Sprintf("[%v, %v]", r.min, r.max)
}

// Choices constrains values to a finite allowed set.
type Choices struct {
	allowed []any
}

// NewChoices creates a choice-set constraint. Fails on an empty set.
func NewChoices(allowed ...any) (*Choices, error) {
	if len(allowed) == 0 {
		return nil, ErrEmptyChoices
	}
	values := make([]any, len(allowed))
	copy(values, allowed)
	return &Choices{allowed: values}, nil
}

// Values returns a copy of the allowed set.
func (c *Choices) Values() []any {
	values := make([]any, len(c.allowed))
	copy(values, c.allowed)
	return values
}

// Validate checks membership in the allowed set. Numeric candidates are
// compared numerically so int(2) matches float64(2).
func (c *Choices) Validate(v any) error {
	for _, a := range c.allowed {
		if Equal(a, v) {
			return nil
		}
	}
	return fmt.Errorf("%w: %v not in %s", ErrNotInChoices, v, c.String())
}

// String returns the allowed set.
func (c *Choices) String() string {
	parts := make([]string, len(c.allowed))
	for i, a := range c.allowed {
		parts[i] = fmt.Sprintf("%v", a)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Equal compares two values for equality, comparing numerics by value
// so that differently typed numbers from a CBOR round-trip match. This
// is also the change test attributes use before notifying listeners.
func Equal(a, b any) bool {
	if af, ok := toFloat64(a); ok {
		if bf, ok := toFloat64(b); ok {
			return af == bf
		}
		return false
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case []byte:
		bv, ok := b.([]byte)
		return ok && bytes.Equal(av, bv)
	case nil:
		return b == nil
	default:
		// Interface comparison panics when both sides hold the same
		// uncomparable type (slices, maps).
		if !reflect.TypeOf(a).Comparable() {
			return reflect.DeepEqual(a, b)
		}
		return a == b
	}
}

// toFloat64 converts any numeric type to float64.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
