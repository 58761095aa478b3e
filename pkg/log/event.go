package log

import (
	"time"
)

// Event represents a log event captured at any layer of the stack.
type Event struct {
	// Timestamp when the event occurred.
	Timestamp time.Time

	// ConnectionID uniquely identifies the connection (UUID), if any.
	ConnectionID string

	// Direction indicates message flow.
	Direction Direction

	// Layer where the event was captured.
	Layer Layer

	// Category classifies the event type.
	Category Category

	// RemoteAddr is the peer address (IP:port), if known.
	RemoteAddr string

	// Type-specific payload (exactly one of these is set).
	Frame       *FrameEvent       // Transport layer frames
	Message     *MessageEvent     // Decoded wire messages
	Data        *DataEvent        // Data-channel publications
	StateChange *StateChangeEvent // Connection/task state
	ControlMsg  *ControlMsgEvent  // Ping/pong/close
	Error       *ErrorEventData   // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the framing layer (raw bytes).
	LayerTransport Layer = 0
	// LayerWire is the message encoding layer (decoded CBOR).
	LayerWire Layer = 1
	// LayerRemote is the endpoint/proxy/task layer.
	LayerRemote Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerRemote:
		return "REMOTE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a request/response message.
	CategoryMessage Category = 0
	// CategoryControl indicates a control message (ping/pong/close).
	CategoryControl Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
	// CategoryData indicates a data-channel publication.
	CategoryData Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	case CategoryData:
		return "DATA"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes (including length prefix).
	Size int

	// Data is the frame payload, capped at the logging limit.
	Data []byte

	// Truncated indicates the frame exceeded the logging limit.
	Truncated bool
}

// MessageEvent captures a decoded request or response.
type MessageEvent struct {
	// MessageID correlates request/response pairs.
	MessageID uint32

	// Operation is the request operation name (requests only).
	Operation string

	// Attribute is the target attribute name (requests only).
	Attribute string

	// Status is the response status name (responses only).
	Status string

	// ProcessingTime is the request-to-response duration (responses only).
	ProcessingTime time.Duration
}

// DataEvent captures a data-channel publication.
type DataEvent struct {
	// Channel is the publish channel identity.
	Channel string

	// Subscriber is the destination subscriber identity, if targeted.
	Subscriber string

	// Seq is the channel sequence number.
	Seq uint64
}

// StateChangeEvent captures connection and task lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity

	// OldState is the previous state (may be empty).
	OldState string

	// NewState is the new state.
	NewState string

	// Reason for the change (if available).
	Reason string
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntityTask indicates a subscriber task state change.
	StateEntityTask StateEntity = 1
	// StateEntityAttribute indicates an attribute registration change.
	StateEntityAttribute StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityTask:
		return "TASK"
	case StateEntityAttribute:
		return "ATTRIBUTE"
	default:
		return "UNKNOWN"
	}
}

// ControlMsgEvent captures transport-level control messages.
type ControlMsgEvent struct {
	// Type of control message ("ping", "pong", "close").
	Type string
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer

	// Message is the error message.
	Message string

	// Context describes what operation was being performed.
	Context string
}

// ErrorEvent builds a ready-to-log error event. Convenience for the
// common "log and swallow" paths in the remote layer.
func ErrorEvent(layer Layer, context string, err error) Event {
	return Event{
		Timestamp: time.Now(),
		Layer:     layer,
		Category:  CategoryError,
		Error: &ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: context,
		},
	}
}
