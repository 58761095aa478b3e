package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/labwire-protocol/labwire-go/pkg/log"
	"github.com/labwire-protocol/labwire-go/pkg/wire"
)

// ServerConfig configures a LABWIRE server.
type ServerConfig struct {
	// Address to listen on (e.g., ":7420" or "127.0.0.1:7420").
	Address string

	// TLSConfig enables TLS when non-nil. Nil listens on plain TCP.
	TLSConfig *tls.Config

	// MaxMessageSize is the maximum message size (default: 64KB).
	MaxMessageSize uint32

	// Logger for protocol logging (optional).
	Logger log.Logger

	// OnConnect is called when a new connection is established.
	OnConnect func(conn *ServerConn)

	// OnDisconnect is called when a connection is closed.
	OnDisconnect func(conn *ServerConn)

	// OnMessage is called when a non-control message is received.
	OnMessage func(conn *ServerConn, msg []byte)

	// OnError is called when an error occurs.
	OnError func(conn *ServerConn, err error)
}

// Server accepts connections from LABWIRE controllers.
type Server struct {
	config   ServerConfig
	listener net.Listener

	// Active connections
	conns   map[*ServerConn]struct{}
	connsMu sync.RWMutex

	// State
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a new server.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	return &Server{
		config: config,
		conns:  make(map[*ServerConn]struct{}),
	}, nil
}

// Start starts the server and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("server already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	if s.config.TLSConfig != nil {
		listener = tls.NewListener(listener, s.config.TLSConfig)
	}
	s.listener = listener

	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop stops the server and closes all connections.
func (s *Server) Stop() error {
	if !s.running.Load() {
		return nil
	}

	s.running.Store(false)
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()

	return nil
}

// Addr returns the server's listen address.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// ConnectionCount returns the number of active connections.
func (s *Server) ConnectionCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

// acceptLoop accepts incoming connections.
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.running.Load() {
				if s.config.OnError != nil {
					s.config.OnError(nil, fmt.Errorf("accept error: %w", err))
				}
			}
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection processes a single connection.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	if tlsConn, ok := conn.(*tls.Conn); ok {
		if err := tlsConn.HandshakeContext(s.ctx); err != nil {
			conn.Close()
			if s.config.OnError != nil {
				s.config.OnError(nil, fmt.Errorf("TLS handshake failed: %w", err))
			}
			return
		}
	}

	connID := uuid.New().String()

	framer := NewFramerWithMaxSize(conn, s.config.MaxMessageSize)
	if s.config.Logger != nil {
		framer.SetLogger(s.config.Logger, connID)
	}

	sconn := &ServerConn{
		conn:       conn,
		framer:     framer,
		server:     s,
		closeCh:    make(chan struct{}),
		remoteAddr: conn.RemoteAddr(),
		connID:     connID,
	}

	s.logConnState(sconn, "", "CONNECTED")

	s.connsMu.Lock()
	s.conns[sconn] = struct{}{}
	s.connsMu.Unlock()

	if s.config.OnConnect != nil {
		s.config.OnConnect(sconn)
	}

	sconn.readLoop()

	s.connsMu.Lock()
	delete(s.conns, sconn)
	s.connsMu.Unlock()

	s.logConnState(sconn, "CONNECTED", "DISCONNECTED")

	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(sconn)
	}
}

// logConnState logs a connection state change.
func (s *Server) logConnState(conn *ServerConn, oldState, newState string) {
	if s.config.Logger == nil {
		return
	}
	s.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: conn.connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		RemoteAddr:   conn.remoteAddr.String(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: oldState,
			NewState: newState,
		},
	})
}

// ServerConn represents a client connection to the server.
type ServerConn struct {
	conn       net.Conn
	framer     *Framer
	server     *Server
	closeCh    chan struct{}
	closeOnce  sync.Once
	remoteAddr net.Addr
	connID     string
}

// RemoteAddr returns the remote address of the client.
func (c *ServerConn) RemoteAddr() net.Addr {
	return c.remoteAddr
}

// ConnID returns the unique connection identifier.
func (c *ServerConn) ConnID() string {
	return c.connID
}

// Send sends a message to the client.
func (c *ServerConn) Send(data []byte) error {
	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}
	return c.framer.WriteFrame(data)
}

// Close closes the connection.
func (c *ServerConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}

// Closed returns a channel closed when the connection closes.
func (c *ServerConn) Closed() <-chan struct{} {
	return c.closeCh
}

// readLoop reads messages from the connection.
func (c *ServerConn) readLoop() {
	for {
		select {
		case <-c.closeCh:
			return
		case <-c.server.ctx.Done():
			return
		default:
		}

		data, err := c.framer.ReadFrame()
		if err != nil {
			if c.server.config.OnError != nil && c.server.running.Load() {
				select {
				case <-c.closeCh:
					// Already closing, don't report
				default:
					c.server.config.OnError(c, err)
				}
			}
			return
		}

		// Control messages are handled at this layer; everything else
		// goes to the message handler.
		kind, peekErr := wire.PeekKind(data)
		if peekErr == nil && kind == wire.KindControl {
			if ctrlMsg, err := wire.DecodeControlMessage(data); err == nil {
				c.handleControlMessage(ctrlMsg)
				continue
			}
		}

		if c.server.config.OnMessage != nil {
			c.server.config.OnMessage(c, data)
		}
	}
}

// handleControlMessage processes control messages.
func (c *ServerConn) handleControlMessage(msg *wire.ControlMessage) {
	c.logControlMessage(msg.Type, log.DirectionIn)

	switch msg.Type {
	case wire.ControlPing:
		if pong, err := wire.EncodeControlMessage(&wire.ControlMessage{
			Type:     wire.ControlPong,
			Sequence: msg.Sequence,
		}); err == nil {
			c.Send(pong)
			c.logControlMessage(wire.ControlPong, log.DirectionOut)
		}

	case wire.ControlPong:
		// Ignore pongs on server side (client initiated keep-alive)

	case wire.ControlClose:
		// Peer initiated close - acknowledge and close
		c.logControlMessage(wire.ControlClose, log.DirectionOut)
		if ack, err := wire.EncodeControlMessage(&wire.ControlMessage{
			Type: wire.ControlClose,
		}); err == nil {
			c.Send(ack)
		}
		c.Close()
	}
}

// logControlMessage logs a control message event.
func (c *ServerConn) logControlMessage(msgType wire.ControlMessageType, direction log.Direction) {
	if c.server.config.Logger == nil {
		return
	}
	c.server.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.connID,
		Direction:    direction,
		Layer:        log.LayerTransport,
		Category:     log.CategoryControl,
		RemoteAddr:   c.remoteAddr.String(),
		ControlMsg: &log.ControlMsgEvent{
			Type: msgType.String(),
		},
	})
}
