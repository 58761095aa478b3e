package remote

import (
	"fmt"
	"sync"
	"time"

	"github.com/labwire-protocol/labwire-go/pkg/attribute"
	"github.com/labwire-protocol/labwire-go/pkg/bus"
	"github.com/labwire-protocol/labwire-go/pkg/log"
	"github.com/labwire-protocol/labwire-go/pkg/wire"
)

// Distributed makes an attribute publishable. Once registered on an
// endpoint it owns a publish channel whose identity is the endpoint
// address joined with the attribute name, and it forwards every value
// change to that channel before local listeners are notified, but only
// while at least one remote subscriber is present. An idle attribute
// costs no publication work.
type Distributed struct {
	attr       *attribute.Attribute
	maxDiscard int

	mu      sync.Mutex
	ep      *Endpoint
	name    string
	channel string
	pub     *bus.Publisher
	subs    map[string]struct{}
}

// NewDistributed wraps an attribute for distribution. maxDiscard bounds
// how many consecutive values a slow subscriber may skip; zero means
// subscribers receive every value.
func NewDistributed(attr *attribute.Attribute, maxDiscard int) *Distributed {
	if maxDiscard < 0 {
		maxDiscard = 0
	}
	return &Distributed{
		attr:       attr,
		maxDiscard: maxDiscard,
		subs:       make(map[string]struct{}),
	}
}

// Attribute returns the wrapped attribute.
func (d *Distributed) Attribute() *attribute.Attribute { return d.attr }

// MaxDiscard returns the discard bound announced to subscribers.
func (d *Distributed) MaxDiscard() int { return d.maxDiscard }

// Channel returns the publish channel identity, or "" before Register.
func (d *Distributed) Channel() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.channel
}

// Register publishes the attribute on ep under the given name. The
// channel identity becomes "<endpoint addr>/<name>". Registering an
// already-registered attribute, or a name another attribute holds,
// fails with ErrAlreadyRegistered.
func (d *Distributed) Register(ep *Endpoint, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ep != nil {
		return fmt.Errorf("%w: %q on %q", ErrAlreadyRegistered, d.name, d.ep.Addr())
	}

	channel := ep.Addr() + "/" + name
	if err := ep.add(name, d); err != nil {
		return err
	}
	pub, err := ep.Hub().Bind(channel)
	if err != nil {
		ep.remove(name)
		return fmt.Errorf("bind channel %q: %w", channel, err)
	}

	d.ep = ep
	d.name = name
	d.channel = channel
	d.pub = pub
	d.attr.SetChangeHook(d.publish)

	d.logState(ep.logger, "", "REGISTERED")
	return nil
}

// Unregister withdraws the attribute from its endpoint: the change hook
// is removed, the publish channel is closed (signalling end-of-stream
// to attached streams), and the name becomes free. Idempotent.
func (d *Distributed) Unregister() {
	d.mu.Lock()
	ep := d.ep
	if ep == nil {
		d.mu.Unlock()
		return
	}
	name := d.name
	pub := d.pub
	d.ep = nil
	d.name = ""
	d.channel = ""
	d.pub = nil
	d.subs = make(map[string]struct{})
	d.mu.Unlock()

	d.attr.SetChangeHook(nil)
	pub.Close()
	ep.remove(name)

	d.logState(ep.logger, "REGISTERED", "UNREGISTERED")
}

// AddRemoteSubscriber records a remote subscriber and enables
// publication. With wantInit the current value is published to the new
// subscriber alone, so it need not wait for the next change; the
// subscriber's stream must already be attached for the priming value to
// land. Fails with ErrNotRegistered before Register.
func (d *Distributed) AddRemoteSubscriber(id string, wantInit bool) error {
	d.mu.Lock()
	if d.ep == nil {
		d.mu.Unlock()
		return ErrNotRegistered
	}
	d.subs[id] = struct{}{}
	pub := d.pub
	d.mu.Unlock()

	if wantInit {
		pub.PublishTo(id, d.attr.Value())
	}
	return nil
}

// RemoveRemoteSubscriber forgets a remote subscriber. When the last one
// leaves, publication stops. Removing an unknown subscriber is a no-op.
func (d *Distributed) RemoveRemoteSubscriber(id string) {
	d.mu.Lock()
	delete(d.subs, id)
	d.mu.Unlock()
}

// RemoteSubscriberCount returns the number of remote subscribers.
func (d *Distributed) RemoteSubscriberCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

// publish is the attribute change hook. It runs before local listener
// notification, so remote subscribers never lag behind local ones.
func (d *Distributed) publish(v any) {
	d.mu.Lock()
	pub := d.pub
	active := len(d.subs) > 0
	d.mu.Unlock()

	if pub != nil && active {
		pub.Publish(v)
	}
}

// describe builds the metadata reply for this attribute.
func (d *Distributed) describe() *wire.DescribeReply {
	meta := d.attr.Metadata()
	reply := &wire.DescribeReply{
		Name:        meta.Name,
		Unit:        meta.Unit,
		ReadOnly:    meta.ReadOnly,
		DataType:    meta.Type.String(),
		Channel:     d.Channel(),
		MaxDiscard:  d.maxDiscard,
		Description: meta.Description,
	}
	if c := d.attr.Constraint(); c != nil {
		reply.Constraint = c.String()
	}
	return reply
}

func (d *Distributed) logState(logger log.Logger, oldState, newState string) {
	logger.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerRemote,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityAttribute,
			OldState: oldState,
			NewState: newState,
			Reason:   d.attr.Name(),
		},
	})
}
