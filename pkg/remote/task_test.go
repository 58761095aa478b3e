package remote

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labwire-protocol/labwire-go/pkg/bus"
)

// fakeStream is a scripted DataStream for task tests.
type fakeStream struct {
	c         chan bus.Delivery
	closeOnce sync.Once
	cancelled bool
	mu        sync.Mutex
}

func newFakeStream(depth int) *fakeStream {
	return &fakeStream{c: make(chan bus.Delivery, depth)}
}

func (f *fakeStream) C() <-chan bus.Delivery { return f.c }

func (f *fakeStream) Cancel() {
	f.mu.Lock()
	f.cancelled = true
	f.mu.Unlock()
	f.closeOnce.Do(func() { close(f.c) })
}

func (f *fakeStream) Cancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

func (f *fakeStream) push(values ...any) {
	for i, v := range values {
		f.c <- bus.Delivery{Channel: "test", Seq: uint64(i + 1), Value: v}
	}
}

// collector gathers delivered values.
type collector struct {
	mu     sync.Mutex
	values []any
}

func (c *collector) deliver(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = append(c.values, v)
	return nil
}

func (c *collector) get() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.values))
	copy(out, c.values)
	return out
}

func TestTaskLifecycle(t *testing.T) {
	stream := newFakeStream(4)
	task := NewSubscriberTask("ch", "sub", 0, stream, func(any) error { return nil }, nil)

	assert.Equal(t, TaskIdle, task.State())

	require.NoError(t, task.Start())
	assert.Equal(t, TaskRunning, task.State())

	// A second start must fail: tasks run at most once.
	assert.ErrorIs(t, task.Start(), ErrTaskNotIdle)

	task.Stop()
	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("task did not stop")
	}
	assert.Equal(t, TaskStopped, task.State())
	assert.True(t, stream.Cancelled(), "stream must be cancelled on stop")

	// Stop is idempotent.
	task.Stop()
}

func TestTaskStopWhileIdle(t *testing.T) {
	stream := newFakeStream(1)
	task := NewSubscriberTask("ch", "sub", 0, stream, func(any) error { return nil }, nil)

	task.Stop()
	assert.Equal(t, TaskStopped, task.State())
	select {
	case <-task.Done():
	default:
		t.Fatal("Done not closed for idle-stopped task")
	}

	assert.ErrorIs(t, task.Start(), ErrTaskNotIdle)
}

func TestTaskDeliversAllWithoutDiscard(t *testing.T) {
	stream := newFakeStream(8)
	col := &collector{}
	task := NewSubscriberTask("ch", "sub", 0, stream, col.deliver, nil)

	// Queue a burst before the task starts: with maxDiscard 0 every
	// value must come through, in order.
	stream.push(1, 2, 3, 4)

	require.NoError(t, task.Start())

	assert.Eventually(t, func() bool {
		return len(col.get()) == 4
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []any{1, 2, 3, 4}, col.get())

	task.Stop()
	<-task.Done()
}

func TestTaskDiscardBounded(t *testing.T) {
	stream := newFakeStream(8)
	col := &collector{}
	task := NewSubscriberTask("ch", "sub", 2, stream, col.deliver, nil)

	// Burst 1,2,3,4 with maxDiscard 2: 1 and 2 are discarded (two
	// consecutive discards, the bound), 3 must be delivered, then 4,
	// the last value of the burst, arrives with nothing newer queued.
	stream.push(1, 2, 3, 4)

	require.NoError(t, task.Start())

	assert.Eventually(t, func() bool {
		return len(col.get()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []any{3, 4}, col.get())

	task.Stop()
	<-task.Done()
}

func TestTaskLastOfBurstAlwaysDelivered(t *testing.T) {
	stream := newFakeStream(32)
	col := &collector{}
	task := NewSubscriberTask("ch", "sub", 3, stream, col.deliver, nil)

	values := make([]any, 20)
	for i := range values {
		values[i] = i + 1
	}
	stream.push(values...)

	require.NoError(t, task.Start())

	assert.Eventually(t, func() bool {
		got := col.get()
		return len(got) > 0 && got[len(got)-1] == 20
	}, time.Second, 5*time.Millisecond)

	task.Stop()
	<-task.Done()
}

func TestTaskStopsOnStreamClose(t *testing.T) {
	stream := newFakeStream(4)
	task := NewSubscriberTask("ch", "sub", 0, stream, func(any) error { return nil }, nil)

	require.NoError(t, task.Start())
	stream.Cancel()

	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("task did not stop after stream close")
	}
	assert.Equal(t, TaskStopped, task.State())
}

func TestTaskStopsOnDeliverError(t *testing.T) {
	stream := newFakeStream(4)
	task := NewSubscriberTask("ch", "sub", 0, stream, func(any) error {
		return ErrProxyClosed
	}, nil)

	require.NoError(t, task.Start())
	stream.push(1)

	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("task did not stop after deliver error")
	}
}
