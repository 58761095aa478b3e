// Package transport provides the framed TCP transport LABWIRE runs on.
//
// Frames are length-prefixed (4-byte big-endian) CBOR messages. A
// Server accepts connections and hands complete frames to callbacks; a
// Client dials and exposes synchronous Send/Receive. TLS is optional:
// pass a *tls.Config to encrypt, or nil for plain TCP on trusted bench
// networks. Ping/pong/close control messages are handled at this layer.
package transport
