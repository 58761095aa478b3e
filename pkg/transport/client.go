package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/labwire-protocol/labwire-go/pkg/wire"
)

// Connection errors.
var (
	ErrConnectionClosed = errors.New("connection closed")
)

// ClientConfig configures a LABWIRE client.
type ClientConfig struct {
	// TLSConfig enables TLS when non-nil. Nil dials plain TCP, which
	// is acceptable on trusted bench networks.
	TLSConfig *tls.Config

	// MaxMessageSize is the maximum message size (default: 64KB).
	MaxMessageSize uint32

	// ConnectTimeout is the connection timeout (default: 30s).
	ConnectTimeout time.Duration

	// KeepAlive configuration.
	KeepAlive KeepAliveConfig
}

// Client dials LABWIRE endpoints.
type Client struct {
	config ClientConfig
}

// NewClient creates a new client.
func NewClient(config ClientConfig) *Client {
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 30 * time.Second
	}
	return &Client{config: config}
}

// Connect establishes a connection to the specified address.
func (c *Client) Connect(ctx context.Context, address string) (*ClientConn, error) {
	// Apply timeout from config if context doesn't have one
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	if c.config.TLSConfig != nil {
		tlsConn := tls.Client(conn, c.config.TLSConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("TLS handshake failed: %w", err)
		}
		conn = tlsConn
	}

	return &ClientConn{
		conn:    conn,
		framer:  NewFramerWithMaxSize(conn, c.config.MaxMessageSize),
		client:  c,
		closeCh: make(chan struct{}),
	}, nil
}

// ClientConn represents a connection from client to server.
type ClientConn struct {
	conn    net.Conn
	framer  *Framer
	client  *Client
	closeCh chan struct{}

	closeOnce sync.Once
	readMu    sync.Mutex
}

// NegotiatedProtocol returns the ALPN protocol negotiated during the
// TLS handshake, or "" on plain TCP connections.
func (c *ClientConn) NegotiatedProtocol() string {
	if tc, ok := c.conn.(*tls.Conn); ok {
		return tc.ConnectionState().NegotiatedProtocol
	}
	return ""
}

// LocalAddr returns the local network address.
func (c *ClientConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (c *ClientConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Send sends a message to the server.
func (c *ClientConn) Send(data []byte) error {
	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}
	return c.framer.WriteFrame(data)
}

// Receive receives a message from the server with timeout.
// A timeout of 0 blocks until a frame arrives or the connection closes.
func (c *ClientConn) Receive(timeout time.Duration) ([]byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	select {
	case <-c.closeCh:
		return nil, ErrConnectionClosed
	default:
	}

	if timeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(timeout))
		defer c.conn.SetReadDeadline(time.Time{})
	}

	return c.framer.ReadFrame()
}

// Close closes the connection.
func (c *ClientConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}

// Closed returns a channel closed when the connection closes.
func (c *ClientConn) Closed() <-chan struct{} {
	return c.closeCh
}

// SendPing sends a ping control message.
func (c *ClientConn) SendPing(seq uint32) error {
	msg, err := wire.EncodeControlMessage(&wire.ControlMessage{
		Type:     wire.ControlPing,
		Sequence: seq,
	})
	if err != nil {
		return err
	}
	return c.Send(msg)
}

// SendClose sends a close control message.
func (c *ClientConn) SendClose() error {
	msg, err := wire.EncodeControlMessage(&wire.ControlMessage{
		Type: wire.ControlClose,
	})
	if err != nil {
		return err
	}
	return c.Send(msg)
}
