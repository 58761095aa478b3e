package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Kind classifies a wire message. It is always encoded at key 1 so a
// receiver can route a frame without decoding the payload.
type Kind uint8

const (
	// KindRequest is a call-channel request.
	KindRequest Kind = 1

	// KindResponse is a call-channel response.
	KindResponse Kind = 2

	// KindPublication is a data-channel value publication.
	KindPublication Kind = 3

	// KindControl is a transport control message (ping/pong/close).
	KindControl Kind = 4
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "REQUEST"
	case KindResponse:
		return "RESPONSE"
	case KindPublication:
		return "PUBLICATION"
	case KindControl:
		return "CONTROL"
	default:
		return "UNKNOWN"
	}
}

// Request represents a call-channel request.
//
// CBOR encoding:
//
//	{
//	  1: kind,        // 1
//	  2: messageId,   // uint32, non-zero
//	  3: operation,   // uint8
//	  4: attribute,   // string: registered attribute name ("" for List)
//	  5: payload      // operation-specific data
//	}
type Request struct {
	Kind      Kind            `cbor:"1,keyasint"`
	MessageID uint32          `cbor:"2,keyasint"`
	Operation Operation       `cbor:"3,keyasint"`
	Attribute string          `cbor:"4,keyasint,omitempty"`
	Payload   cbor.RawMessage `cbor:"5,keyasint,omitempty"`
}

// Validate checks if the request is well-formed.
func (r *Request) Validate() error {
	if r.Kind != KindRequest {
		return fmt.Errorf("not a request: kind=%d", r.Kind)
	}
	if r.MessageID == 0 {
		return fmt.Errorf("messageId must be non-zero")
	}
	if !r.Operation.IsValid() {
		return fmt.Errorf("invalid operation: %d", r.Operation)
	}
	return nil
}

// Response represents a call-channel response.
//
// CBOR encoding:
//
//	{
//	  1: kind,        // 2
//	  2: messageId,   // uint32: matches the request
//	  3: status,      // uint8: 0=success, or error code
//	  4: payload      // operation-specific response data
//	}
type Response struct {
	Kind      Kind            `cbor:"1,keyasint"`
	MessageID uint32          `cbor:"2,keyasint"`
	Status    Status          `cbor:"3,keyasint"`
	Payload   cbor.RawMessage `cbor:"4,keyasint,omitempty"`
}

// IsSuccess returns true if the response indicates success.
func (r *Response) IsSuccess() bool {
	return r.Status.IsSuccess()
}

// Publication represents one value on an attribute's data channel.
//
// CBOR encoding:
//
//	{
//	  1: kind,        // 3
//	  2: channel,     // string: channel identity
//	  3: subscriber,  // string: destination subscriber identity
//	  4: seq,         // uint64: per-channel sequence number
//	  5: value        // the published value
//	}
type Publication struct {
	Kind       Kind   `cbor:"1,keyasint"`
	Channel    string `cbor:"2,keyasint"`
	Subscriber string `cbor:"3,keyasint"`
	Seq        uint64 `cbor:"4,keyasint"`
	Value      any    `cbor:"5,keyasint"`
}

// ControlMessage represents a transport-level control message.
type ControlMessage struct {
	Kind     Kind               `cbor:"1,keyasint"`
	Type     ControlMessageType `cbor:"2,keyasint"`
	Sequence uint32             `cbor:"3,keyasint,omitempty"`
}

// ControlMessageType represents the type of control message.
type ControlMessageType uint8

const (
	// ControlPing is sent to check connection liveness.
	ControlPing ControlMessageType = 1

	// ControlPong is the response to a ping.
	ControlPong ControlMessageType = 2

	// ControlClose initiates graceful connection close.
	ControlClose ControlMessageType = 3
)

// String returns the control message type name.
func (t ControlMessageType) String() string {
	switch t {
	case ControlPing:
		return "ping"
	case ControlPong:
		return "pong"
	case ControlClose:
		return "close"
	default:
		return "unknown"
	}
}

// SetPayload carries the value of a Set request.
type SetPayload struct {
	Value any `cbor:"1,keyasint"`
}

// ValuePayload carries a bare value (Get response).
type ValuePayload struct {
	Value any `cbor:"1,keyasint"`
}

// SubscribePayload identifies the remote subscriber being added.
//
// WantInit requests an immediate priming publication of the current
// value on the data channel, so the new subscriber does not wait for
// the next change.
type SubscribePayload struct {
	Subscriber string `cbor:"1,keyasint"`
	WantInit   bool   `cbor:"2,keyasint,omitempty"`
}

// UnsubscribePayload identifies the remote subscriber being removed.
type UnsubscribePayload struct {
	Subscriber string `cbor:"1,keyasint"`
}

// AttachPayload binds a subscriber's publication stream to the
// connection the request arrived on. Depth bounds the server-side
// queue for this subscriber (0 = implementation default).
type AttachPayload struct {
	Subscriber string `cbor:"1,keyasint"`
	Channel    string `cbor:"2,keyasint"`
	Depth      uint32 `cbor:"3,keyasint,omitempty"`
}

// DetachPayload releases a stream bound with Attach.
type DetachPayload struct {
	Subscriber string `cbor:"1,keyasint"`
}

// DescribeReply carries attribute metadata.
type DescribeReply struct {
	Name       string `cbor:"1,keyasint"`
	Unit       string `cbor:"2,keyasint,omitempty"`
	ReadOnly   bool   `cbor:"3,keyasint,omitempty"`
	DataType   string `cbor:"4,keyasint"`
	Channel    string `cbor:"5,keyasint"`
	MaxDiscard int    `cbor:"6,keyasint"`
	Constraint string `cbor:"7,keyasint,omitempty"`

	Description string `cbor:"8,keyasint,omitempty"`
}

// ListReply enumerates the attribute names registered on an endpoint.
type ListReply struct {
	Attributes []string `cbor:"1,keyasint"`
}

// ErrorPayload carries additional error information in a response.
type ErrorPayload struct {
	Message string `cbor:"1,keyasint,omitempty"`
}
