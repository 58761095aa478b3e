package remote

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labwire-protocol/labwire-go/pkg/bus"
	"github.com/labwire-protocol/labwire-go/pkg/log"
	"github.com/labwire-protocol/labwire-go/pkg/transport"
	"github.com/labwire-protocol/labwire-go/pkg/wire"
)

// DefaultCallTimeout bounds a Call when the caller's context carries no
// deadline.
const DefaultCallTimeout = 10 * time.Second

// NetLink connects to an endpoint server over two framed TCP
// connections: a call connection carrying request/response pairs and a
// data connection carrying publication streams. Keeping publications
// off the call connection means a value burst can never delay a
// pending Set or Get.
type NetLink struct {
	call   *transport.ClientConn
	data   *transport.ClientConn
	logger log.Logger

	msgID   atomic.Uint32
	mu      sync.Mutex
	pending map[uint32]chan *wire.Response
	closed  bool

	// Publications received on the data connection are re-routed
	// through a local hub, so streams opened with OpenData behave
	// exactly like loopback ones.
	hub  *bus.Hub
	pubs map[string]*bus.Publisher

	keepalive *transport.KeepAlive
	closeOnce sync.Once
	closeErr  error
}

// Dial connects a NetLink to the server at addr. The logger may be nil.
func Dial(ctx context.Context, addr string, config transport.ClientConfig, logger log.Logger) (*NetLink, error) {
	if logger == nil {
		logger = &log.NoopLogger{}
	}
	config.TLSConfig = withALPN(config.TLSConfig)
	client := transport.NewClient(config)

	call, err := client.Connect(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("dial call connection: %w", err)
	}
	data, err := client.Connect(ctx, addr)
	if err != nil {
		call.Close()
		return nil, fmt.Errorf("dial data connection: %w", err)
	}

	if err := checkALPN(call.NegotiatedProtocol()); err != nil {
		call.Close()
		data.Close()
		return nil, err
	}

	l := &NetLink{
		call:    call,
		data:    data,
		logger:  logger,
		pending: make(map[uint32]chan *wire.Response),
		hub:     bus.NewHub(),
		pubs:    make(map[string]*bus.Publisher),
	}

	l.keepalive = transport.NewKeepAlive(config.KeepAlive, call.SendPing, func() {
		l.logger.Log(log.ErrorEvent(log.LayerTransport, "keepalive", fmt.Errorf("peer unresponsive")))
		l.Close()
	})
	l.keepalive.Start(context.Background())

	go l.readLoop(call)
	go l.readLoop(data)
	return l, nil
}

// Call sends a request on the call connection and waits for the
// matching response.
func (l *NetLink) Call(ctx context.Context, op wire.Operation, attr string, payload any) (*wire.Response, error) {
	return l.callOn(ctx, l.call, op, attr, payload)
}

// callOn runs one request/response exchange on the given connection.
func (l *NetLink) callOn(ctx context.Context, conn *transport.ClientConn, op wire.Operation, attr string, payload any) (*wire.Response, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultCallTimeout)
		defer cancel()
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
	frame, err := wire.EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	respCh := make(chan *wire.Response, 1)
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrLinkClosed
	}
	l.pending[req.MessageID] = respCh
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.pending, req.MessageID)
		l.mu.Unlock()
	}()

	if err := conn.Send(frame); err != nil {
		return nil, err
	}

	select {
	case resp := <-respCh:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-conn.Closed():
		return nil, ErrLinkClosed
	}
}

// OpenData subscribes locally and asks the server to attach the
// subscriber's publication stream to the data connection. The Attach
// request travels on the data connection itself, which is how the
// server learns where to send the stream.
func (l *NetLink) OpenData(channel, subscriber string, depth int) (DataStream, error) {
	sub, err := l.hub.Subscribe(channel, subscriber, depth)
	if err != nil {
		return nil, err
	}
	resp, err := l.callOn(context.Background(), l.data, wire.OpAttach, "", &wire.AttachPayload{
		Subscriber: subscriber,
		Channel:    channel,
		Depth:      uint32(max(depth, 0)),
	})
	if err == nil {
		err = responseError(resp)
	}
	if err != nil {
		sub.Cancel()
		return nil, err
	}
	return &netStream{link: l, sub: sub}, nil
}

// Close shuts the link down. A close control message is sent on the
// call connection as a courtesy; pending calls fail.
func (l *NetLink) Close() error {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()

		l.keepalive.Stop()
		l.call.SendClose()
		l.closeErr = l.call.Close()
		l.data.Close()
	})
	return l.closeErr
}

// Closed returns a channel closed when the call connection closes.
func (l *NetLink) Closed() <-chan struct{} { return l.call.Closed() }

// readLoop drains one connection, routing responses to pending calls
// and publications into the local hub.
func (l *NetLink) readLoop(conn *transport.ClientConn) {
	for {
		frame, err := conn.Receive(0)
		if err != nil {
			// Pending callers watch the connection's close channel and
			// fail on their own.
			return
		}

		kind, err := wire.PeekKind(frame)
		if err != nil {
			l.logger.Log(log.ErrorEvent(log.LayerWire, "classify frame", err))
			continue
		}

		switch kind {
		case wire.KindResponse:
			resp, err := wire.DecodeResponse(frame)
			if err != nil {
				l.logger.Log(log.ErrorEvent(log.LayerWire, "decode response", err))
				continue
			}
			l.mu.Lock()
			ch, ok := l.pending[resp.MessageID]
			l.mu.Unlock()
			if ok {
				select {
				case ch <- resp:
				default:
				}
			}

		case wire.KindPublication:
			pub, err := wire.DecodePublication(frame)
			if err != nil {
				l.logger.Log(log.ErrorEvent(log.LayerWire, "decode publication", err))
				continue
			}
			l.route(pub)

		case wire.KindControl:
			msg, err := wire.DecodeControlMessage(frame)
			if err != nil {
				continue
			}
			if msg.Type == wire.ControlPong {
				l.keepalive.PongReceived(msg.Sequence)
			}
		}
	}
}

// route delivers one received publication into the local hub, so the
// stream opened by OpenData sees it.
func (l *NetLink) route(pub *wire.Publication) {
	l.mu.Lock()
	p, ok := l.pubs[pub.Channel]
	if !ok {
		var err error
		p, err = l.hub.Bind(pub.Channel)
		if err != nil {
			l.mu.Unlock()
			l.logger.Log(log.ErrorEvent(log.LayerRemote, "bind local channel "+pub.Channel, err))
			return
		}
		l.pubs[pub.Channel] = p
	}
	l.mu.Unlock()

	p.PublishTo(pub.Subscriber, pub.Value)
}

// netStream wraps a local subscription and detaches the server-side
// stream on cancel.
type netStream struct {
	link       *NetLink
	sub        *bus.Subscription
	cancelOnce sync.Once
}

// C returns the delivery queue.
func (s *netStream) C() <-chan bus.Delivery { return s.sub.C() }

// Cancel detaches the stream locally and asks the server to release the
// binding. Idempotent.
func (s *netStream) Cancel() {
	s.cancelOnce.Do(func() {
		s.sub.Cancel()
		_, _ = s.link.callOn(context.Background(), s.link.data, wire.OpDetach, "", &wire.DetachPayload{
			Subscriber: s.sub.Subscriber(),
		})
	})
}
