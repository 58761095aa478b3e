// Package remote makes attributes reachable over a link.
//
// The server side registers attributes on an Endpoint, which gives each
// one a channel identity (endpoint address + attribute name) and
// dispatches incoming requests. A Distributed attribute publishes value
// changes to its channel, but only while at least one remote subscriber
// is registered.
//
// The client side mirrors a remote attribute through a Proxy. Reads and
// writes travel over the link's call channel; subscriptions are served
// by a SubscriberTask that drains the attribute's data channel and
// applies the discard policy: when a newer value is already queued, the
// one in hand may be dropped, but never more than the attribute's
// maxDiscard times in a row, and the last value of a burst is always
// delivered.
//
// Two link implementations exist: Loopback for in-process wiring and
// NetLink over the framed TCP transport.
package remote
