// Package labwire implements reactive distributed attributes for lab
// instrument control.
//
// Devices expose instruments as named attributes on an endpoint
// (pkg/remote, pkg/instrument); controllers mirror them through proxies
// over a framed CBOR transport (pkg/wire, pkg/transport). Value changes
// flow through per-attribute publication channels with bounded,
// freshness-preserving delivery (pkg/bus).
package labwire
