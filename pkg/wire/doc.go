// Package wire defines the LABWIRE message formats and their CBOR
// encoding.
//
// Two logical channels share the same framing: the call channel
// carries Request/Response pairs (get, set, describe, subscribe,
// unsubscribe, list) and the data channel carries one-way Publication
// messages plus the Attach/Detach requests that bind subscriber
// streams to it. Control messages (ping/pong/close) may appear on
// either connection.
//
// All messages are CBOR maps with integer keys. Key 1 is always the
// message kind, so a receiver can classify a frame without decoding
// the rest (see PeekKind).
package wire
