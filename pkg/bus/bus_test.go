package bus

import (
	"errors"
	"testing"
	"time"
)

func recv(t *testing.T, sub *Subscription) Delivery {
	t.Helper()
	select {
	case d, ok := <-sub.C():
		if !ok {
			t.Fatal("queue closed")
		}
		return d
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for delivery")
	}
	return Delivery{}
}

func TestBindOnce(t *testing.T) {
	h := NewHub()

	if _, err := h.Bind("ep/a"); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if _, err := h.Bind("ep/a"); !errors.Is(err, ErrChannelBound) {
		t.Errorf("second Bind = %v, want ErrChannelBound", err)
	}
	if _, err := h.Bind("ep/b"); err != nil {
		t.Errorf("Bind other channel = %v, want nil", err)
	}
}

func TestRebindAfterClose(t *testing.T) {
	h := NewHub()
	pub, _ := h.Bind("ep/a")
	pub.Close()

	if _, err := h.Bind("ep/a"); err != nil {
		t.Errorf("Bind after Close = %v, want nil", err)
	}
}

func TestFanout(t *testing.T) {
	h := NewHub()
	pub, _ := h.Bind("ep/a")

	s1, err := h.Subscribe("ep/a", "sub-1", 4)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	s2, _ := h.Subscribe("ep/a", "sub-2", 4)

	pub.Publish("v1")

	d1 := recv(t, s1)
	d2 := recv(t, s2)
	if d1.Value != "v1" || d2.Value != "v1" {
		t.Errorf("values = %v, %v, want v1, v1", d1.Value, d2.Value)
	}
	if d1.Subscriber != "sub-1" || d2.Subscriber != "sub-2" {
		t.Errorf("subscribers = %q, %q", d1.Subscriber, d2.Subscriber)
	}
	if d1.Seq != d2.Seq {
		t.Errorf("fanout seq mismatch: %d vs %d", d1.Seq, d2.Seq)
	}
}

func TestSubscribeBeforeBind(t *testing.T) {
	h := NewHub()
	sub, err := h.Subscribe("ep/a", "early", 4)
	if err != nil {
		t.Fatalf("Subscribe before bind: %v", err)
	}

	pub, err := h.Bind("ep/a")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	pub.Publish(1)

	if d := recv(t, sub); d.Value != 1 {
		t.Errorf("value = %v, want 1", d.Value)
	}
}

func TestDuplicateSubscriber(t *testing.T) {
	h := NewHub()
	if _, err := h.Subscribe("ep/a", "dup", 4); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := h.Subscribe("ep/a", "dup", 4); !errors.Is(err, ErrSubscriberExists) {
		t.Errorf("duplicate Subscribe = %v, want ErrSubscriberExists", err)
	}
}

func TestDropOldestKeepsNewest(t *testing.T) {
	h := NewHub()
	pub, _ := h.Bind("ep/a")
	sub, _ := h.Subscribe("ep/a", "slow", 2)

	// Queue depth 2, publish 5: the two newest must survive.
	for i := 1; i <= 5; i++ {
		pub.Publish(i)
	}

	d1 := recv(t, sub)
	d2 := recv(t, sub)
	if d1.Value != 4 || d2.Value != 5 {
		t.Errorf("surviving values = %v, %v, want 4, 5", d1.Value, d2.Value)
	}
}

func TestSeqMonotonic(t *testing.T) {
	h := NewHub()
	pub, _ := h.Bind("ep/a")
	sub, _ := h.Subscribe("ep/a", "s", 16)

	pub.Publish("a")
	pub.PublishTo("s", "b")
	pub.Publish("c")

	var last uint64
	for i := 0; i < 3; i++ {
		d := recv(t, sub)
		if d.Seq <= last {
			t.Errorf("seq %d not increasing after %d", d.Seq, last)
		}
		last = d.Seq
	}
}

func TestPublishTo(t *testing.T) {
	h := NewHub()
	pub, _ := h.Bind("ep/a")
	target, _ := h.Subscribe("ep/a", "target", 4)
	other, _ := h.Subscribe("ep/a", "other", 4)

	if !pub.PublishTo("target", "prime") {
		t.Fatal("PublishTo = false, want true")
	}
	if pub.PublishTo("missing", "x") {
		t.Error("PublishTo unknown subscriber = true, want false")
	}

	if d := recv(t, target); d.Value != "prime" {
		t.Errorf("target got %v, want prime", d.Value)
	}
	select {
	case d := <-other.C():
		t.Errorf("other got %v, want nothing", d.Value)
	default:
	}
}

func TestPublisherCloseClosesQueues(t *testing.T) {
	h := NewHub()
	pub, _ := h.Bind("ep/a")
	sub, _ := h.Subscribe("ep/a", "s", 4)

	pub.Close()

	select {
	case _, ok := <-sub.C():
		if ok {
			t.Error("got delivery after Close, want closed queue")
		}
	case <-time.After(time.Second):
		t.Fatal("queue not closed")
	}

	// Publishing after close is a no-op, not a panic.
	pub.Publish("late")
	pub.Close()
}

func TestCancelIdempotent(t *testing.T) {
	h := NewHub()
	pub, _ := h.Bind("ep/a")
	sub, _ := h.Subscribe("ep/a", "s", 4)

	sub.Cancel()
	sub.Cancel()

	// Cancelled subscriber no longer receives.
	pub.Publish("x")
	if _, ok := <-sub.C(); ok {
		t.Error("cancelled subscription received a delivery")
	}

	// The identity becomes free again.
	if _, err := h.Subscribe("ep/a", "s", 4); err != nil {
		t.Errorf("re-Subscribe after Cancel = %v, want nil", err)
	}
}
