package remote

import (
	"fmt"
	"sync"
	"time"

	"github.com/labwire-protocol/labwire-go/pkg/bus"
	"github.com/labwire-protocol/labwire-go/pkg/log"
	"github.com/labwire-protocol/labwire-go/pkg/wire"
)

// Endpoint hosts distributed attributes under one address. The address
// prefixes every attribute's channel identity, so two endpoints can
// host attributes of the same name without collision.
type Endpoint struct {
	addr   string
	hub    *bus.Hub
	logger log.Logger

	mu    sync.RWMutex
	attrs map[string]*Distributed
	order []string
}

// NewEndpoint creates an endpoint with the given address. The logger
// may be nil.
func NewEndpoint(addr string, logger log.Logger) *Endpoint {
	if logger == nil {
		logger = &log.NoopLogger{}
	}
	return &Endpoint{
		addr:   addr,
		hub:    bus.NewHub(),
		logger: logger,
		attrs:  make(map[string]*Distributed),
	}
}

// Addr returns the endpoint address.
func (e *Endpoint) Addr() string { return e.addr }

// Hub returns the publication hub shared by the endpoint's attributes.
func (e *Endpoint) Hub() *bus.Hub { return e.hub }

// Lookup returns the distributed attribute with the given name.
func (e *Endpoint) Lookup(name string) (*Distributed, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d, ok := e.attrs[name]
	return d, ok
}

// LookupChannel returns the distributed attribute publishing on the
// given channel identity.
func (e *Endpoint) LookupChannel(channel string) (*Distributed, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, d := range e.attrs {
		if d.Channel() == channel {
			return d, true
		}
	}
	return nil, false
}

// Names returns the registered attribute names in registration order.
func (e *Endpoint) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, len(e.order))
	copy(names, e.order)
	return names
}

// add claims a name for d. Fails if the name is taken.
func (e *Endpoint) add(name string, d *Distributed) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.attrs[name]; exists {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, name)
	}
	e.attrs[name] = d
	e.order = append(e.order, name)
	return nil
}

// remove releases a name. No-op if the name is not registered.
func (e *Endpoint) remove(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.attrs[name]; !exists {
		return
	}
	delete(e.attrs, name)
	for i, n := range e.order {
		if n == name {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// Handle dispatches one request and returns the response. Attach and
// Detach are stream-binding operations owned by the transport layer and
// report StatusUnsupported here.
func (e *Endpoint) Handle(req *wire.Request) *wire.Response {
	resp := e.dispatch(req)
	e.logRequest(req, resp)
	return resp
}

func (e *Endpoint) dispatch(req *wire.Request) *wire.Response {
	switch req.Operation {
	case wire.OpList:
		payload, err := wire.MarshalPayload(&wire.ListReply{Attributes: e.Names()})
		if err != nil {
			return errorResponse(req.MessageID, err)
		}
		return successResponse(req.MessageID, payload)
	case wire.OpGet, wire.OpSet, wire.OpDescribe, wire.OpSubscribe, wire.OpUnsubscribe:
		d, ok := e.Lookup(req.Attribute)
		if !ok {
			return errorResponse(req.MessageID, fmt.Errorf("%w: %q", ErrUnknownAttribute, req.Attribute))
		}
		return e.dispatchAttr(req, d)
	default:
		return &wire.Response{MessageID: req.MessageID, Status: wire.StatusUnsupported}
	}
}

func (e *Endpoint) dispatchAttr(req *wire.Request, d *Distributed) *wire.Response {
	switch req.Operation {
	case wire.OpGet:
		payload, err := wire.MarshalPayload(&wire.ValuePayload{Value: d.Attribute().Value()})
		if err != nil {
			return errorResponse(req.MessageID, err)
		}
		return successResponse(req.MessageID, payload)

	case wire.OpSet:
		var p wire.SetPayload
		if err := wire.UnmarshalPayload(req.Payload, &p); err != nil {
			return errorResponse(req.MessageID, err)
		}
		if err := d.Attribute().SetValue(p.Value); err != nil {
			return errorResponse(req.MessageID, err)
		}
		return successResponse(req.MessageID, nil)

	case wire.OpDescribe:
		payload, err := wire.MarshalPayload(d.describe())
		if err != nil {
			return errorResponse(req.MessageID, err)
		}
		return successResponse(req.MessageID, payload)

	case wire.OpSubscribe:
		var p wire.SubscribePayload
		if err := wire.UnmarshalPayload(req.Payload, &p); err != nil {
			return errorResponse(req.MessageID, err)
		}
		if err := d.AddRemoteSubscriber(p.Subscriber, p.WantInit); err != nil {
			return errorResponse(req.MessageID, err)
		}
		return successResponse(req.MessageID, nil)

	case wire.OpUnsubscribe:
		var p wire.UnsubscribePayload
		if err := wire.UnmarshalPayload(req.Payload, &p); err != nil {
			return errorResponse(req.MessageID, err)
		}
		d.RemoveRemoteSubscriber(p.Subscriber)
		return successResponse(req.MessageID, nil)
	}
	return &wire.Response{MessageID: req.MessageID, Status: wire.StatusUnsupported}
}

func successResponse(msgID uint32, payload []byte) *wire.Response {
	return &wire.Response{MessageID: msgID, Status: wire.StatusSuccess, Payload: payload}
}

func (e *Endpoint) logRequest(req *wire.Request, resp *wire.Response) {
	e.logger.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerRemote,
		Category:  log.CategoryMessage,
		Message: &log.MessageEvent{
			MessageID: req.MessageID,
			Operation: req.Operation.String(),
			Attribute: req.Attribute,
			Status:    resp.Status.String(),
		},
	})
}
