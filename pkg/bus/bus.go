package bus

import (
	"errors"
	"sync"
)

// Hub errors.
var (
	ErrChannelBound     = errors.New("channel already has a publisher")
	ErrSubscriberExists = errors.New("subscriber already attached to channel")
)

// DefaultDepth is the default per-subscriber queue depth.
const DefaultDepth = 16

// Delivery is one published value as seen by a subscriber.
type Delivery struct {
	// Channel is the publish channel identity.
	Channel string

	// Subscriber is the destination subscriber identity.
	Subscriber string

	// Seq is the channel sequence number, strictly increasing per
	// channel. Targeted primings (PublishTo) share the same sequence
	// space, so a subscriber never observes Seq going backwards.
	Seq uint64

	// Value is the published value.
	Value any
}

// Hub routes published values from one writer per named channel to any
// number of subscribers. Delivery is best-effort: a publisher never
// blocks on a slow subscriber; when a subscriber's queue is full the
// oldest queued delivery is dropped so the newest value always fits.
type Hub struct {
	mu       sync.Mutex
	channels map[string]*channel
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{channels: make(map[string]*channel)}
}

// channel returns the named channel, creating it if needed.
func (h *Hub) channel(id string) *channel {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.channels[id]
	if !ok {
		ch = &channel{id: id, subs: make(map[string]*Subscription)}
		h.channels[id] = ch
	}
	return ch
}

// Bind claims the writer side of a channel and returns its Publisher.
// A channel has exactly one writer; binding an already-bound channel
// fails with ErrChannelBound. Subscribers may attach before the writer
// binds.
func (h *Hub) Bind(channelID string) (*Publisher, error) {
	ch := h.channel(channelID)

	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.bound {
		return nil, ErrChannelBound
	}
	ch.bound = true
	return &Publisher{ch: ch}, nil
}

// Subscribe attaches a reader to a channel. depth bounds the queue;
// values beyond it displace the oldest queued delivery. depth <= 0
// uses DefaultDepth.
func (h *Hub) Subscribe(channelID, subscriberID string, depth int) (*Subscription, error) {
	if depth <= 0 {
		depth = DefaultDepth
	}
	ch := h.channel(channelID)

	ch.mu.Lock()
	defer ch.mu.Unlock()

	if _, exists := ch.subs[subscriberID]; exists {
		return nil, ErrSubscriberExists
	}
	sub := &Subscription{
		channel:    ch,
		subscriber: subscriberID,
		c:          make(chan Delivery, depth),
	}
	ch.subs[subscriberID] = sub
	return sub, nil
}

// channel is the shared state of one named publish channel.
// mu guards the subscriber set and all queue sends, so Cancel can
// safely close a subscriber's queue.
type channel struct {
	mu    sync.Mutex
	id    string
	bound bool
	seq   uint64
	subs  map[string]*Subscription
}

// offer enqueues d for one subscriber, dropping the oldest queued
// delivery when the queue is full. Called with ch.mu held.
func (sub *Subscription) offer(d Delivery) {
	d.Subscriber = sub.subscriber
	select {
	case sub.c <- d:
		return
	default:
	}
	// Queue full: make room by dropping the oldest entry.
	select {
	case <-sub.c:
	default:
	}
	select {
	case sub.c <- d:
	default:
	}
}

// Publisher is the single writer of a channel.
type Publisher struct {
	ch     *channel
	closed bool
	mu     sync.Mutex
}

// Channel returns the channel identity.
func (p *Publisher) Channel() string { return p.ch.id }

// Publish delivers v to every attached subscriber. Never blocks.
func (p *Publisher) Publish(v any) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	ch := p.ch
	ch.mu.Lock()
	defer ch.mu.Unlock()

	ch.seq++
	d := Delivery{Channel: ch.id, Seq: ch.seq, Value: v}
	for _, sub := range ch.subs {
		sub.offer(d)
	}
}

// PublishTo delivers v to a single subscriber (priming a new remote
// subscriber with the current value). Returns false if the subscriber
// is not attached.
func (p *Publisher) PublishTo(subscriberID string, v any) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.mu.Unlock()

	ch := p.ch
	ch.mu.Lock()
	defer ch.mu.Unlock()

	sub, ok := ch.subs[subscriberID]
	if !ok {
		return false
	}
	ch.seq++
	sub.offer(Delivery{Channel: ch.id, Seq: ch.seq, Value: v})
	return true
}

// Close releases the writer binding and closes every attached
// subscriber queue, signalling end-of-stream to their readers. The
// channel name may be bound again afterwards.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	ch := p.ch
	ch.mu.Lock()
	defer ch.mu.Unlock()

	ch.bound = false
	for id, sub := range ch.subs {
		sub.closeLocked()
		delete(ch.subs, id)
	}
}

// Subscription is one subscriber's view of a channel.
type Subscription struct {
	channel    *channel
	subscriber string
	c          chan Delivery
	closed     bool
}

// C returns the delivery queue. The channel is closed when the
// subscription is cancelled or the publisher closes the channel.
// A non-blocking receive on C answers "is a newer value already
// available", which is what the discard policy tests.
func (s *Subscription) C() <-chan Delivery {
	return s.c
}

// Subscriber returns the subscriber identity.
func (s *Subscription) Subscriber() string { return s.subscriber }

// Cancel detaches the subscription and closes its queue. Idempotent.
func (s *Subscription) Cancel() {
	ch := s.channel
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if s.closed {
		return
	}
	delete(ch.subs, s.subscriber)
	s.closeLocked()
}

// closeLocked closes the queue. Called with the channel mutex held.
func (s *Subscription) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.c)
	}
}
