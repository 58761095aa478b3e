package remote

import (
	"context"

	"github.com/labwire-protocol/labwire-go/pkg/bus"
	"github.com/labwire-protocol/labwire-go/pkg/wire"
)

// DataStream is one subscriber's view of an attribute's publication
// stream. The queue closes when the stream is cancelled or the
// publishing attribute unregisters.
type DataStream interface {
	// C returns the delivery queue.
	C() <-chan bus.Delivery

	// Cancel detaches the stream. Idempotent.
	Cancel()
}

// Link connects a client to an endpoint. Implementations must allow
// concurrent Call invocations.
type Link interface {
	// Call sends a request and waits for the matching response. The
	// request's message id is assigned by the link.
	Call(ctx context.Context, op wire.Operation, attr string, payload any) (*wire.Response, error)

	// OpenData opens the publication stream of one channel for one
	// subscriber. depth bounds the client-side queue (0 = default).
	OpenData(channel, subscriber string, depth int) (DataStream, error)

	// Close releases the link. Pending calls fail with ErrLinkClosed.
	Close() error
}
