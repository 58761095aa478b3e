package remote

import (
	"context"
	"sync/atomic"

	"github.com/labwire-protocol/labwire-go/pkg/wire"
)

// Loopback links a proxy to an in-process endpoint. Requests are
// dispatched directly and data streams attach straight to the
// endpoint's hub. Useful for tests and for hosting device and
// controller roles in one process.
type Loopback struct {
	ep     *Endpoint
	msgID  atomic.Uint32
	closed atomic.Bool
}

// NewLoopback creates a loopback link to ep.
func NewLoopback(ep *Endpoint) *Loopback {
	return &Loopback{ep: ep}
}

// Call dispatches the request on the endpoint. Requests still pass
// through the wire codec, so loopback exercises the same encoding path
// as the network link.
func (l *Loopback) Call(ctx context.Context, op wire.Operation, attr string, payload any) (*wire.Response, error) {
	if l.closed.Load() {
		return nil, ErrLinkClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := wire.MarshalPayload(payload)
	if err != nil {
		return nil, err
	}
	req := &wire.Request{
		MessageID: l.msgID.Add(1),
		Operation: op,
		Attribute: attr,
		Payload:   raw,
	}
	data, err := wire.EncodeRequest(req)
	if err != nil {
		return nil, err
	}
	decoded, err := wire.DecodeRequest(data)
	if err != nil {
		return nil, err
	}
	return l.ep.Handle(decoded), nil
}

// OpenData attaches a subscriber stream directly to the endpoint's hub.
func (l *Loopback) OpenData(channel, subscriber string, depth int) (DataStream, error) {
	if l.closed.Load() {
		return nil, ErrLinkClosed
	}
	return l.ep.Hub().Subscribe(channel, subscriber, depth)
}

// Close marks the link closed.
func (l *Loopback) Close() error {
	l.closed.Store(true)
	return nil
}
