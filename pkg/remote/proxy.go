package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/labwire-protocol/labwire-go/pkg/attribute"
	"github.com/labwire-protocol/labwire-go/pkg/log"
	"github.com/labwire-protocol/labwire-go/pkg/wire"
)

// Proxy is the client-side mirror of a remote attribute. Get and Set
// travel over the link's call channel. Subscriptions are lazy: the
// first listener creates a subscriber task and registers one remote
// subscription; further listeners share it; removing the last listener
// tears both down. An unsubscribed proxy costs the endpoint nothing.
type Proxy struct {
	link         Link
	name         string
	subscriberID string
	logger       log.Logger

	// setupMu serializes first-subscription setup, so two racing first
	// listeners never open two streams under one subscriber identity.
	setupMu sync.Mutex

	mu        sync.Mutex
	desc      *wire.DescribeReply
	mirror    *attribute.Attribute
	listeners []attribute.Listener
	task      *SubscriberTask
	stopping  *SubscriberTask
	closed    bool
}

// NewProxy creates a proxy for the named attribute reachable over link.
// The logger may be nil.
func NewProxy(link Link, name string, logger log.Logger) *Proxy {
	if logger == nil {
		logger = &log.NoopLogger{}
	}
	return &Proxy{
		link:         link,
		name:         name,
		subscriberID: uuid.New().String(),
		logger:       logger,
	}
}

// Name returns the remote attribute name.
func (p *Proxy) Name() string { return p.name }

// SubscriberID returns the identity this proxy subscribes under.
func (p *Proxy) SubscriberID() string { return p.subscriberID }

// Get reads the remote attribute's current value.
func (p *Proxy) Get(ctx context.Context) (any, error) {
	if p.isClosed() {
		return nil, ErrProxyClosed
	}
	resp, err := p.link.Call(ctx, wire.OpGet, p.name, nil)
	if err != nil {
		return nil, err
	}
	if err := responseError(resp); err != nil {
		return nil, err
	}
	var vp wire.ValuePayload
	if err := wire.UnmarshalPayload(resp.Payload, &vp); err != nil {
		return nil, err
	}
	return vp.Value, nil
}

// Set writes a value to the remote attribute. Validation happens at the
// endpoint; rejections come back as the same errors a local SetValue
// would return (attribute.ErrReadOnly, constraint.ErrOutOfRange, ...).
func (p *Proxy) Set(ctx context.Context, v any) error {
	if p.isClosed() {
		return ErrProxyClosed
	}
	resp, err := p.link.Call(ctx, wire.OpSet, p.name, &wire.SetPayload{Value: v})
	if err != nil {
		return err
	}
	return responseError(resp)
}

// Describe returns the remote attribute's metadata. The reply is
// fetched once and cached; metadata is immutable on the endpoint side.
func (p *Proxy) Describe(ctx context.Context) (*wire.DescribeReply, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrProxyClosed
	}
	if p.desc != nil {
		desc := p.desc
		p.mu.Unlock()
		return desc, nil
	}
	p.mu.Unlock()

	resp, err := p.link.Call(ctx, wire.OpDescribe, p.name, nil)
	if err != nil {
		return nil, err
	}
	if err := responseError(resp); err != nil {
		return nil, err
	}
	var desc wire.DescribeReply
	if err := wire.UnmarshalPayload(resp.Payload, &desc); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.desc == nil {
		p.desc = &desc
	}
	cached := p.desc
	p.mu.Unlock()
	return cached, nil
}

// Subscribe registers a listener for remote value changes. The first
// listener opens the data stream, registers the remote subscription and
// starts the subscriber task; by the time Subscribe returns the task is
// draining, so no later publication can be missed. With init the
// listener also receives a current value up front: the first listener
// gets it as a priming publication from the endpoint, later listeners
// from a synchronous Get.
func (p *Proxy) Subscribe(ctx context.Context, l attribute.Listener, init bool) error {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return ErrProxyClosed
		}
		for _, existing := range p.listeners {
			if existing == l {
				p.mu.Unlock()
				return nil
			}
		}
		if p.task != nil {
			// The append stays under the same lock acquisition as the
			// task check: a concurrent Unsubscribe of the last listener
			// may tear the task down at any point, and a listener must
			// never be attached to a mirror without a task feeding it.
			p.listeners = append(p.listeners, l)
			p.mirror.Subscribe(l, false)
			p.mu.Unlock()

			if init {
				v, err := p.Get(ctx)
				if err != nil {
					return err
				}
				if err := l.OnValueChanged(p.name, v); err != nil {
					p.logger.Log(log.ErrorEvent(log.LayerRemote, "init deliver "+p.name, err))
				}
			}
			return nil
		}
		p.mu.Unlock()

		done, err := p.subscribeFirst(ctx, l, init)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		// Lost the setup race to another Subscribe; join its task.
	}
}

// subscribeFirst builds the shared subscription machinery around the
// first listener. Returns false when another Subscribe installed a task
// while we waited for setupMu; the caller retries on the shared path.
func (p *Proxy) subscribeFirst(ctx context.Context, l attribute.Listener, init bool) (bool, error) {
	p.setupMu.Lock()
	defer p.setupMu.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false, ErrProxyClosed
	}
	if p.task != nil {
		p.mu.Unlock()
		return false, nil
	}
	prev := p.stopping
	p.mu.Unlock()

	// A predecessor task may still be detaching its stream; its
	// subscriber identity must be free before we reuse it.
	if prev != nil {
		<-prev.Done()
	}

	desc, err := p.Describe(ctx)
	if err != nil {
		return false, err
	}

	mirror, err := attribute.New(attribute.Metadata{Name: p.name}, struct{}{})
	if err != nil {
		return false, fmt.Errorf("create mirror: %w", err)
	}

	stream, err := p.link.OpenData(desc.Channel, p.subscriberID, 0)
	if err != nil {
		return false, err
	}

	task := NewSubscriberTask(desc.Channel, p.subscriberID, desc.MaxDiscard, stream, mirror.ForceSet, p.logger)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		stream.Cancel()
		return false, ErrProxyClosed
	}
	p.mirror = mirror
	p.task = task
	p.listeners = append(p.listeners, l)
	mirror.Subscribe(l, false)
	p.mu.Unlock()

	// The task must be draining before the endpoint may publish,
	// otherwise a priming value could race the stream setup.
	if err := task.Start(); err != nil {
		p.dropSubscription(l, task)
		return false, err
	}

	resp, err := p.link.Call(ctx, wire.OpSubscribe, p.name, &wire.SubscribePayload{
		Subscriber: p.subscriberID,
		WantInit:   init,
	})
	if err == nil {
		err = responseError(resp)
	}
	if err != nil {
		p.dropSubscription(l, task)
		return false, err
	}

	// The listener may have been unsubscribed while the remote call was
	// in flight; the remote subscription just created is then stale.
	p.mu.Lock()
	installed := p.task == task
	p.mu.Unlock()
	if !installed {
		if err := p.unsubscribeRemote(ctx); err != nil {
			p.logger.Log(log.ErrorEvent(log.LayerRemote, "withdraw stale subscription "+p.name, err))
		}
	}
	return true, nil
}

// dropSubscription unwinds a failed first subscription.
func (p *Proxy) dropSubscription(l attribute.Listener, task *SubscriberTask) {
	p.mu.Lock()
	if p.task == task {
		p.task = nil
		p.mirror = nil
		p.listeners = nil
		p.stopping = task
	}
	p.mu.Unlock()
	task.Stop()
}

// Unsubscribe removes a listener. When the last listener leaves, the
// task is stopped (fire-and-forget) and the remote subscription is
// withdrawn exactly once. Removing an unknown listener is a no-op.
func (p *Proxy) Unsubscribe(ctx context.Context, l attribute.Listener) error {
	p.mu.Lock()
	idx := -1
	for i, existing := range p.listeners {
		if existing == l {
			idx = i
			break
		}
	}
	if idx < 0 {
		p.mu.Unlock()
		return nil
	}
	p.listeners = append(p.listeners[:idx], p.listeners[idx+1:]...)
	p.mirror.Unsubscribe(l)

	if len(p.listeners) > 0 {
		p.mu.Unlock()
		return nil
	}
	task := p.task
	p.task = nil
	p.mirror = nil
	p.stopping = task
	p.mu.Unlock()

	if task != nil {
		task.Stop()
		return p.unsubscribeRemote(ctx)
	}
	return nil
}

// ListenerCount returns the number of registered listeners.
func (p *Proxy) ListenerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

// TaskState reports the subscriber task state, or TaskIdle when no task
// exists.
func (p *Proxy) TaskState() TaskState {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.task == nil {
		return TaskIdle
	}
	return p.task.State()
}

// Close tears the proxy down: listeners are dropped, the task stopped
// and joined, and the remote subscription withdrawn if one exists. Once
// Close returns no listener will be invoked again. The link is not
// closed; it may carry other proxies.
func (p *Proxy) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	task := p.task
	p.task = nil
	p.mirror = nil
	p.listeners = nil
	p.mu.Unlock()

	if task != nil {
		task.Stop()
		<-task.Done()
		return p.unsubscribeRemote(ctx)
	}
	return nil
}

// unsubscribeRemote withdraws the remote subscription.
func (p *Proxy) unsubscribeRemote(ctx context.Context) error {
	resp, err := p.link.Call(ctx, wire.OpUnsubscribe, p.name, &wire.UnsubscribePayload{
		Subscriber: p.subscriberID,
	})
	if err != nil {
		return err
	}
	return responseError(resp)
}

func (p *Proxy) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
