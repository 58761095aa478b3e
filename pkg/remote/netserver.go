package remote

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"

	"github.com/labwire-protocol/labwire-go/pkg/bus"
	"github.com/labwire-protocol/labwire-go/pkg/log"
	"github.com/labwire-protocol/labwire-go/pkg/transport"
	"github.com/labwire-protocol/labwire-go/pkg/version"
	"github.com/labwire-protocol/labwire-go/pkg/wire"
)

// ServerConfig configures an endpoint server.
type ServerConfig struct {
	// Address to listen on.
	Address string

	// TLSConfig enables TLS when non-nil.
	TLSConfig *tls.Config

	// Logger for protocol logging (optional).
	Logger log.Logger
}

// Server exposes an endpoint over the framed TCP transport. Requests
// are dispatched to the endpoint; Attach requests bind a subscriber's
// publication stream to the connection they arrive on, with a pump
// goroutine per stream.
type Server struct {
	ep     *Endpoint
	ts     *transport.Server
	logger log.Logger

	mu      sync.Mutex
	streams map[*transport.ServerConn]map[string]*serverStream
}

// serverStream is one subscriber's publication stream bound to a
// connection.
type serverStream struct {
	channel string
	sub     *bus.Subscription
	done    chan struct{}
}

// NewServer creates a server for ep.
func NewServer(ep *Endpoint, config ServerConfig) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = &log.NoopLogger{}
	}
	s := &Server{
		ep:      ep,
		logger:  logger,
		streams: make(map[*transport.ServerConn]map[string]*serverStream),
	}
	ts, err := transport.NewServer(transport.ServerConfig{
		Address:      config.Address,
		TLSConfig:    withALPN(config.TLSConfig),
		Logger:       config.Logger,
		OnMessage:    s.onMessage,
		OnDisconnect: s.onDisconnect,
		OnError: func(conn *transport.ServerConn, err error) {
			logger.Log(log.ErrorEvent(log.LayerTransport, "server", err))
		},
	})
	if err != nil {
		return nil, err
	}
	s.ts = ts
	return s, nil
}

// withALPN advertises the protocol version on TLS configs that do not
// name their own protocols.
func withALPN(cfg *tls.Config) *tls.Config {
	if cfg == nil || len(cfg.NextProtos) > 0 {
		return cfg
	}
	out := cfg.Clone()
	out.NextProtos = version.SupportedALPNProtocols()
	return out
}

// checkALPN verifies a negotiated ALPN protocol names a compatible
// major version. "" is accepted: plain TCP, and TLS peers that do not
// negotiate ALPN.
func checkALPN(proto string) error {
	if proto == "" {
		return nil
	}
	major, err := version.MajorFromALPN(proto)
	if err != nil {
		return err
	}
	current, _ := version.Parse(version.Current)
	if !current.Compatible(version.ProtocolVersion{Major: major}) {
		return fmt.Errorf("incompatible protocol version %d, this library speaks %d", major, current.Major)
	}
	return nil
}

// Start begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	return s.ts.Start(ctx)
}

// Stop stops the server and releases all streams.
func (s *Server) Stop() error {
	err := s.ts.Stop()

	s.mu.Lock()
	conns := make([]*transport.ServerConn, 0, len(s.streams))
	for conn := range s.streams {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		s.onDisconnect(conn)
	}
	return err
}

// Addr returns the listen address, usable as the endpoint address part
// of channel identities when listening on ":0".
func (s *Server) Addr() string {
	if a := s.ts.Addr(); a != nil {
		return a.String()
	}
	return ""
}

// onMessage handles one decoded frame from a connection.
func (s *Server) onMessage(conn *transport.ServerConn, frame []byte) {
	req, err := wire.DecodeRequest(frame)
	if err != nil {
		s.logger.Log(log.ErrorEvent(log.LayerWire, "decode request", err))
		return
	}

	var resp *wire.Response
	switch req.Operation {
	case wire.OpAttach:
		resp = s.handleAttach(conn, req)
	case wire.OpDetach:
		resp = s.handleDetach(conn, req)
	default:
		resp = s.ep.Handle(req)
	}

	out, err := wire.EncodeResponse(resp)
	if err != nil {
		s.logger.Log(log.ErrorEvent(log.LayerWire, "encode response", err))
		return
	}
	if err := conn.Send(out); err != nil {
		s.logger.Log(log.ErrorEvent(log.LayerTransport, "send response", err))
	}
}

// handleAttach binds a subscriber's publication stream to conn and
// starts pumping deliveries to it.
func (s *Server) handleAttach(conn *transport.ServerConn, req *wire.Request) *wire.Response {
	var p wire.AttachPayload
	if err := wire.UnmarshalPayload(req.Payload, &p); err != nil {
		return errorResponse(req.MessageID, err)
	}

	sub, err := s.ep.Hub().Subscribe(p.Channel, p.Subscriber, int(p.Depth))
	if err != nil {
		return errorResponse(req.MessageID, err)
	}

	stream := &serverStream{channel: p.Channel, sub: sub, done: make(chan struct{})}

	s.mu.Lock()
	conns, ok := s.streams[conn]
	if !ok {
		conns = make(map[string]*serverStream)
		s.streams[conn] = conns
	}
	if _, exists := conns[p.Subscriber]; exists {
		s.mu.Unlock()
		sub.Cancel()
		return errorResponse(req.MessageID, bus.ErrSubscriberExists)
	}
	conns[p.Subscriber] = stream
	s.mu.Unlock()

	go s.pump(conn, stream)
	return successResponse(req.MessageID, nil)
}

// handleDetach releases a stream bound with Attach.
func (s *Server) handleDetach(conn *transport.ServerConn, req *wire.Request) *wire.Response {
	var p wire.DetachPayload
	if err := wire.UnmarshalPayload(req.Payload, &p); err != nil {
		return errorResponse(req.MessageID, err)
	}
	s.releaseStream(conn, p.Subscriber)
	return successResponse(req.MessageID, nil)
}

// pump forwards deliveries from a stream to its connection until the
// stream closes or the connection dies.
func (s *Server) pump(conn *transport.ServerConn, stream *serverStream) {
	defer close(stream.done)

	for {
		select {
		case <-conn.Closed():
			return
		case d, ok := <-stream.sub.C():
			if !ok {
				return
			}
			frame, err := wire.EncodePublication(&wire.Publication{
				Channel:    d.Channel,
				Subscriber: d.Subscriber,
				Seq:        d.Seq,
				Value:      d.Value,
			})
			if err != nil {
				s.logger.Log(log.ErrorEvent(log.LayerWire, "encode publication", err))
				continue
			}
			if err := conn.Send(frame); err != nil {
				return
			}
		}
	}
}

// releaseStream cancels one subscriber's stream on conn and withdraws
// its remote subscription from the publishing attribute.
func (s *Server) releaseStream(conn *transport.ServerConn, subscriber string) {
	s.mu.Lock()
	conns := s.streams[conn]
	stream, ok := conns[subscriber]
	if ok {
		delete(conns, subscriber)
		if len(conns) == 0 {
			delete(s.streams, conn)
		}
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	stream.sub.Cancel()
	if d, found := s.ep.LookupChannel(stream.channel); found {
		d.RemoveRemoteSubscriber(subscriber)
	}
}

// onDisconnect releases every stream bound to a dead connection, so
// attributes whose only subscribers were on it stop publishing.
func (s *Server) onDisconnect(conn *transport.ServerConn) {
	s.mu.Lock()
	conns := s.streams[conn]
	subscribers := make([]string, 0, len(conns))
	for id := range conns {
		subscribers = append(subscribers, id)
	}
	s.mu.Unlock()

	for _, id := range subscribers {
		s.releaseStream(conn, id)
	}
}
