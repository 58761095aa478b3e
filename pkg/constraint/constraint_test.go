package constraint

import (
	"errors"
	"testing"
)

func TestRangeValidate(t *testing.T) {
	r, err := NewRange(0, 10)
	if err != nil {
		t.Fatalf("NewRange: %v", err)
	}

	if err := r.Validate(5.0); err != nil {
		t.Errorf("Validate(5.0) = %v, want nil", err)
	}
	if err := r.Validate(0.0); err != nil {
		t.Errorf("Validate(0.0) = %v, want nil (inclusive lower bound)", err)
	}
	if err := r.Validate(10.0); err != nil {
		t.Errorf("Validate(10.0) = %v, want nil (inclusive upper bound)", err)
	}
	if err := r.Validate(7); err != nil {
		t.Errorf("Validate(int 7) = %v, want nil", err)
	}

	if err := r.Validate(-0.1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Validate(-0.1) = %v, want ErrOutOfRange", err)
	}
	if err := r.Validate(10.5); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Validate(10.5) = %v, want ErrOutOfRange", err)
	}
	if err := r.Validate("abc"); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Validate(string) = %v, want ErrOutOfRange", err)
	}
}

func TestRangeInvalid(t *testing.T) {
	if _, err := NewRange(10, 0); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("NewRange(10, 0) err = %v, want ErrInvalidRange", err)
	}
}

func TestRangeSinglePoint(t *testing.T) {
	r, err := NewRange(3, 3)
	if err != nil {
		t.Fatalf("NewRange(3, 3): %v", err)
	}
	if err := r.Validate(3.0); err != nil {
		t.Errorf("Validate(3.0) = %v, want nil", err)
	}
	if err := r.Validate(3.1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Validate(3.1) = %v, want ErrOutOfRange", err)
	}
}

func TestChoicesValidate(t *testing.T) {
	c, err := NewChoices("low", "high")
	if err != nil {
		t.Fatalf("NewChoices: %v", err)
	}

	if err := c.Validate("low"); err != nil {
		t.Errorf("Validate(low) = %v, want nil", err)
	}
	if err := c.Validate("medium"); !errors.Is(err, ErrNotInChoices) {
		t.Errorf("Validate(medium) = %v, want ErrNotInChoices", err)
	}
	if err := c.Validate(3); !errors.Is(err, ErrNotInChoices) {
		t.Errorf("Validate(3) = %v, want ErrNotInChoices", err)
	}
}

func TestChoicesNumericEquality(t *testing.T) {
	c, err := NewChoices(1, 2, 3)
	if err != nil {
		t.Fatalf("NewChoices: %v", err)
	}

	// A CBOR round-trip can turn int into int64 or float64; membership
	// must survive that.
	if err := c.Validate(int64(2)); err != nil {
		t.Errorf("Validate(int64(2)) = %v, want nil", err)
	}
	if err := c.Validate(float64(2)); err != nil {
		t.Errorf("Validate(float64(2)) = %v, want nil", err)
	}
}

func TestChoicesEmpty(t *testing.T) {
	if _, err := NewChoices(); !errors.Is(err, ErrEmptyChoices) {
		t.Errorf("NewChoices() err = %v, want ErrEmptyChoices", err)
	}
}

func TestEqual(t *testing.T) {
	cases := []struct {
		a, b any
		want bool
	}{
		{1, 1, true},
		{1, int64(1), true},
		{1, 1.0, true},
		{1, 2, false},
		{1, "1", false},
		{"a", "a", true},
		{"a", "b", false},
		{true, true, true},
		{true, false, false},
		{nil, nil, true},
		{nil, 0, false},
	}
	for _, tc := range cases {
		if got := Equal(tc.a, tc.b); got != tc.want {
			t.Errorf("Equal(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestEqualUncomparable(t *testing.T) {
	// Bytes and other uncomparable types must compare without panicking.
	cases := []struct {
		a, b any
		want bool
	}{
		{[]byte{1, 2}, []byte{1, 2}, true},
		{[]byte{1, 2}, []byte{1, 3}, false},
		{[]byte{1}, "x", false},
		{[]byte(nil), []byte{}, true},
		{[]int{1, 2}, []int{1, 2}, true},
		{[]int{1, 2}, []int{2, 1}, false},
		{map[string]int{"a": 1}, map[string]int{"a": 1}, true},
	}
	for _, tc := range cases {
		if got := Equal(tc.a, tc.b); got != tc.want {
			t.Errorf("Equal(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
