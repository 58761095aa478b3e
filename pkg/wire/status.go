package wire

// Status represents a response status code.
type Status uint8

const (
	// StatusSuccess indicates the operation completed successfully.
	StatusSuccess Status = 0

	// StatusUnknownAttribute indicates the attribute doesn't exist on
	// the endpoint.
	StatusUnknownAttribute Status = 1

	// StatusReadOnly indicates an attempt to write a read-only attribute.
	StatusReadOnly Status = 2

	// StatusInvalidValue indicates the value has the wrong type or shape.
	StatusInvalidValue Status = 3

	// StatusOutOfRange indicates the value violates a range constraint.
	StatusOutOfRange Status = 4

	// StatusNotInChoices indicates the value is outside the allowed set.
	StatusNotInChoices Status = 5

	// StatusUnsupported indicates the operation is not supported.
	StatusUnsupported Status = 6

	// StatusInternal indicates an internal endpoint failure.
	StatusInternal Status = 7
)

// IsSuccess returns true if the status indicates success.
func (s Status) IsSuccess() bool {
	return s == StatusSuccess
}

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusUnknownAttribute:
		return "UNKNOWN_ATTRIBUTE"
	case StatusReadOnly:
		return "READ_ONLY"
	case StatusInvalidValue:
		return "INVALID_VALUE"
	case StatusOutOfRange:
		return "OUT_OF_RANGE"
	case StatusNotInChoices:
		return "NOT_IN_CHOICES"
	case StatusUnsupported:
		return "UNSUPPORTED"
	case StatusInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}
