package remote

import (
	"sync"
	"time"

	"github.com/labwire-protocol/labwire-go/pkg/bus"
	"github.com/labwire-protocol/labwire-go/pkg/log"
)

// TaskState is the lifecycle state of a subscriber task.
type TaskState uint8

const (
	// TaskIdle is the state before Start.
	TaskIdle TaskState = 0
	// TaskRunning is the state while the drain loop is active.
	TaskRunning TaskState = 1
	// TaskStopping is the state after Stop until the loop exits.
	TaskStopping TaskState = 2
	// TaskStopped is the terminal state.
	TaskStopped TaskState = 3
)

// String returns the state name.
func (s TaskState) String() string {
	switch s {
	case TaskIdle:
		return "IDLE"
	case TaskRunning:
		return "RUNNING"
	case TaskStopping:
		return "STOPPING"
	case TaskStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// SubscriberTask drains one data stream and forwards values to a
// deliver callback, applying the discard policy: a just-received value
// may be dropped when a newer one is already queued, but at most
// maxDiscard times in a row, and the last value of a burst is always
// forwarded. maxDiscard zero forwards every value.
//
// A task runs at most once: Idle, Running, Stopping, Stopped. Start
// returns only after the drain loop is live, so no publication that
// arrives afterwards can be missed. Stop is fire-and-forget; use Done
// to join.
type SubscriberTask struct {
	channel    string
	subscriber string
	maxDiscard int
	stream     DataStream
	deliver    func(value any) error
	logger     log.Logger

	mu     sync.Mutex
	state  TaskState
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewSubscriberTask creates a task draining stream. deliver is invoked
// for each forwarded value; a non-nil return stops the task.
func NewSubscriberTask(channel, subscriber string, maxDiscard int, stream DataStream, deliver func(value any) error, logger log.Logger) *SubscriberTask {
	if logger == nil {
		logger = &log.NoopLogger{}
	}
	if maxDiscard < 0 {
		maxDiscard = 0
	}
	return &SubscriberTask{
		channel:    channel,
		subscriber: subscriber,
		maxDiscard: maxDiscard,
		stream:     stream,
		deliver:    deliver,
		logger:     logger,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// State returns the current task state.
func (t *SubscriberTask) State() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Done returns a channel closed when the task reaches Stopped.
func (t *SubscriberTask) Done() <-chan struct{} { return t.doneCh }

// Start launches the drain loop and returns once it is running. A task
// that already ran fails with ErrTaskNotIdle.
func (t *SubscriberTask) Start() error {
	t.mu.Lock()
	if t.state != TaskIdle {
		t.mu.Unlock()
		return ErrTaskNotIdle
	}
	t.setStateLocked(TaskRunning)
	t.mu.Unlock()

	ready := make(chan struct{})
	go t.loop(ready)
	<-ready
	return nil
}

// Stop requests termination and returns immediately. Stopping an idle
// task moves it straight to Stopped. Idempotent.
func (t *SubscriberTask) Stop() {
	t.mu.Lock()
	switch t.state {
	case TaskIdle:
		t.setStateLocked(TaskStopped)
		t.mu.Unlock()
		t.stream.Cancel()
		close(t.doneCh)
		return
	case TaskRunning:
		t.setStateLocked(TaskStopping)
		close(t.stopCh)
	}
	t.mu.Unlock()
}

// loop drains the stream until stopped or the stream closes.
func (t *SubscriberTask) loop(ready chan struct{}) {
	defer func() {
		t.stream.Cancel()
		t.mu.Lock()
		t.setStateLocked(TaskStopped)
		t.mu.Unlock()
		close(t.doneCh)
	}()

	close(ready)

	for {
		select {
		case <-t.stopCh:
			return
		case d, ok := <-t.stream.C():
			if !ok {
				return
			}
			if !t.forward(d) {
				return
			}
		}
	}
}

// forward applies the discard policy to d and delivers the surviving
// value. Returns false when the task should terminate.
func (t *SubscriberTask) forward(d bus.Delivery) bool {
	discards := 0
	for t.maxDiscard > 0 && discards < t.maxDiscard {
		select {
		case next, ok := <-t.stream.C():
			if !ok {
				// Stream closed under us; d is the burst's last value.
				t.send(d)
				return false
			}
			t.logDiscard(d)
			d = next
			discards++
		case <-t.stopCh:
			return false
		default:
			// Nothing newer queued: d is delivered.
			discards = t.maxDiscard
		}
	}
	return t.send(d) == nil
}

// send delivers one value. A deliver error terminates the task.
func (t *SubscriberTask) send(d bus.Delivery) error {
	if err := t.deliver(d.Value); err != nil {
		t.logger.Log(log.ErrorEvent(log.LayerRemote, "deliver "+t.channel, err))
		return err
	}
	return nil
}

// setStateLocked transitions the state and logs it. Caller holds mu.
func (t *SubscriberTask) setStateLocked(next TaskState) {
	prev := t.state
	t.state = next
	t.logger.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerRemote,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityTask,
			OldState: prev.String(),
			NewState: next.String(),
			Reason:   t.channel,
		},
	})
}

func (t *SubscriberTask) logDiscard(d bus.Delivery) {
	t.logger.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerRemote,
		Category:  log.CategoryData,
		Data: &log.DataEvent{
			Channel:    d.Channel,
			Subscriber: d.Subscriber,
			Seq:        d.Seq,
		},
	})
}
