// Package attribute implements the local reactive value holder.
//
// An Attribute stores a validated value and notifies registered
// listeners synchronously when it changes. Validation runs the active
// constraint first and the data-type check second, so a doubly-invalid
// candidate reports the constraint error. Listeners are invoked with a
// snapshot of the listener set; a listener may remove itself during
// notification, and a listener returning ErrListenerGone is dropped
// silently.
//
// The same subscribe/get/set contract is exposed remotely by
// pkg/remote's Proxy, which is the point of the design: consumers hold
// an Attribute or a Proxy interchangeably.
package attribute
