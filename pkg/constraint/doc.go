// Package constraint provides value constraints for attributes.
//
// A Constraint validates a candidate value before an attribute stores
// it. Range constrains numerics to a closed interval; Choices
// constrains any comparable value to a finite allowed set. Constraints
// are immutable; replacing an attribute's constraint is an attribute
// operation, which rejects a replacement that would invalidate the
// current value.
package constraint
