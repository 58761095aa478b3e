package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder mode for LABWIRE messages.
// Configured for deterministic encoding with integer keys.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for LABWIRE messages.
var decMode cbor.DecMode

func init() {
	var err error

	// Configure encoder for deterministic output
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Configure decoder to be lenient for forward compatibility
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// Marshal encodes a value to CBOR bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into a value.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// MarshalPayload encodes an operation payload for embedding in a
// Request or Response. A nil payload encodes as an absent field.
func MarshalPayload(v any) (cbor.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	data, err := Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return cbor.RawMessage(data), nil
}

// UnmarshalPayload decodes an embedded payload into v. A nil payload
// leaves v untouched.
func UnmarshalPayload(raw cbor.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	return nil
}

// EncodeRequest encodes a request message to CBOR bytes.
// The Kind field is set automatically.
func EncodeRequest(req *Request) ([]byte, error) {
	req.Kind = KindRequest
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return Marshal(req)
}

// DecodeRequest decodes CBOR bytes into a request message.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return &req, nil
}

// EncodeResponse encodes a response message to CBOR bytes.
func EncodeResponse(resp *Response) ([]byte, error) {
	resp.Kind = KindResponse
	return Marshal(resp)
}

// DecodeResponse decodes CBOR bytes into a response message.
func DecodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.Kind != KindResponse {
		return nil, fmt.Errorf("not a response message: kind=%d", resp.Kind)
	}
	return &resp, nil
}

// EncodePublication encodes a publication message to CBOR bytes.
func EncodePublication(pub *Publication) ([]byte, error) {
	pub.Kind = KindPublication
	return Marshal(pub)
}

// DecodePublication decodes CBOR bytes into a publication message.
func DecodePublication(data []byte) (*Publication, error) {
	var pub Publication
	if err := Unmarshal(data, &pub); err != nil {
		return nil, fmt.Errorf("failed to decode publication: %w", err)
	}
	if pub.Kind != KindPublication {
		return nil, fmt.Errorf("not a publication message: kind=%d", pub.Kind)
	}
	return &pub, nil
}

// EncodeControlMessage encodes a control message (ping/pong/close).
func EncodeControlMessage(msg *ControlMessage) ([]byte, error) {
	msg.Kind = KindControl
	return Marshal(msg)
}

// DecodeControlMessage decodes CBOR bytes into a control message.
func DecodeControlMessage(data []byte) (*ControlMessage, error) {
	var msg ControlMessage
	if err := Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode control message: %w", err)
	}
	if msg.Kind != KindControl {
		return nil, fmt.Errorf("not a control message: kind=%d", msg.Kind)
	}
	return &msg, nil
}

// PeekKind examines CBOR data to determine the message kind without
// fully decoding it.
func PeekKind(data []byte) (Kind, error) {
	var peek struct {
		Kind Kind `cbor:"1,keyasint"`
	}
	if err := Unmarshal(data, &peek); err != nil {
		return 0, fmt.Errorf("failed to peek message: %w", err)
	}
	switch peek.Kind {
	case KindRequest, KindResponse, KindPublication, KindControl:
		return peek.Kind, nil
	default:
		return 0, fmt.Errorf("unknown message kind: %d", peek.Kind)
	}
}
