package remote

import (
	"errors"
	"fmt"

	"github.com/labwire-protocol/labwire-go/pkg/attribute"
	"github.com/labwire-protocol/labwire-go/pkg/constraint"
	"github.com/labwire-protocol/labwire-go/pkg/wire"
)

// Remote layer errors.
var (
	// ErrAlreadyRegistered is returned when an attribute is registered
	// twice, or a second attribute claims an already-taken name.
	ErrAlreadyRegistered = errors.New("attribute already registered")

	// ErrNotRegistered is returned by operations that need a registered
	// attribute.
	ErrNotRegistered = errors.New("attribute not registered")

	// ErrUnknownAttribute is returned when the endpoint has no attribute
	// with the requested name.
	ErrUnknownAttribute = errors.New("unknown attribute")

	// ErrProxyClosed is returned by operations on a closed proxy.
	ErrProxyClosed = errors.New("proxy closed")

	// ErrLinkClosed is returned by operations on a closed link.
	ErrLinkClosed = errors.New("link closed")

	// ErrTaskNotIdle is returned when starting a subscriber task that
	// already ran.
	ErrTaskNotIdle = errors.New("subscriber task not idle")
)

// statusFor maps a local error to the wire status reported to callers.
func statusFor(err error) wire.Status {
	switch {
	case err == nil:
		return wire.StatusSuccess
	case errors.Is(err, ErrUnknownAttribute):
		return wire.StatusUnknownAttribute
	case errors.Is(err, attribute.ErrReadOnly):
		return wire.StatusReadOnly
	case errors.Is(err, constraint.ErrOutOfRange):
		return wire.StatusOutOfRange
	case errors.Is(err, constraint.ErrNotInChoices):
		return wire.StatusNotInChoices
	case errors.Is(err, attribute.ErrInvalidValue):
		return wire.StatusInvalidValue
	default:
		return wire.StatusInternal
	}
}

// errorFor maps a wire status back to the matching local error so
// errors.Is works the same on both sides of a link.
func errorFor(status wire.Status, detail string) error {
	var base error
	switch status {
	case wire.StatusSuccess:
		return nil
	case wire.StatusUnknownAttribute:
		base = ErrUnknownAttribute
	case wire.StatusReadOnly:
		base = attribute.ErrReadOnly
	case wire.StatusOutOfRange:
		base = constraint.ErrOutOfRange
	case wire.StatusNotInChoices:
		base = constraint.ErrNotInChoices
	case wire.StatusInvalidValue:
		base = attribute.ErrInvalidValue
	default:
		base = fmt.Errorf("endpoint error: %s", status)
	}
	if detail != "" {
		return fmt.Errorf("%w: %s", base, detail)
	}
	return base
}

// responseError extracts the error carried by a non-success response.
func responseError(resp *wire.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	var ep wire.ErrorPayload
	_ = wire.UnmarshalPayload(resp.Payload, &ep)
	return errorFor(resp.Status, ep.Message)
}

// errorResponse builds a response reporting err for the given request.
func errorResponse(msgID uint32, err error) *wire.Response {
	payload, _ := wire.MarshalPayload(&wire.ErrorPayload{Message: err.Error()})
	return &wire.Response{
		MessageID: msgID,
		Status:    statusFor(err),
		Payload:   payload,
	}
}
