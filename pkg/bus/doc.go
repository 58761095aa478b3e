// Package bus implements the in-process publish/subscribe hub backing
// attribute data channels.
//
// Each distributed attribute binds exactly one named channel as its
// single writer. Subscribers attach bounded queues; delivery is
// best-effort and never blocks the writer. When a queue overflows the
// oldest entry is displaced, so the most recent value of a burst is
// always the one left waiting for a slow reader.
package bus
