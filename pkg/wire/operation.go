package wire

// Operation identifies what a request asks of an attribute endpoint.
type Operation uint8

const (
	// OpGet reads the current attribute value.
	OpGet Operation = 1

	// OpSet writes a new attribute value.
	OpSet Operation = 2

	// OpDescribe reads attribute metadata (unit, type, read-only flag,
	// channel identity, discard budget, constraint).
	OpDescribe Operation = 3

	// OpSubscribe adds a remote subscriber to an attribute's data channel.
	OpSubscribe Operation = 4

	// OpUnsubscribe removes a remote subscriber.
	OpUnsubscribe Operation = 5

	// OpList enumerates the attributes registered on the endpoint.
	OpList Operation = 6

	// OpAttach binds a subscriber's publication stream to the
	// connection carrying the request. Sent on the data connection.
	OpAttach Operation = 7

	// OpDetach releases a stream bound with OpAttach.
	OpDetach Operation = 8
)

// IsValid returns true for a known operation.
func (o Operation) IsValid() bool {
	return o >= OpGet && o <= OpDetach
}

// String returns the operation name.
func (o Operation) String() string {
	switch o {
	case OpGet:
		return "GET"
	case OpSet:
		return "SET"
	case OpDescribe:
		return "DESCRIBE"
	case OpSubscribe:
		return "SUBSCRIBE"
	case OpUnsubscribe:
		return "UNSUBSCRIBE"
	case OpList:
		return "LIST"
	case OpAttach:
		return "ATTACH"
	case OpDetach:
		return "DETACH"
	default:
		return "UNKNOWN"
	}
}
