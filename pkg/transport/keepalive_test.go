package transport

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestKeepAlivePongResetsMisses(t *testing.T) {
	var mu sync.Mutex
	timedOut := false

	var ka *KeepAlive
	ka = NewKeepAlive(KeepAliveConfig{
		PingInterval:   10 * time.Millisecond,
		PongTimeout:    5 * time.Millisecond,
		MaxMissedPongs: 3,
	}, func(seq uint32) error {
		// Answer every ping immediately.
		go ka.PongReceived(seq)
		return nil
	}, func() {
		mu.Lock()
		timedOut = true
		mu.Unlock()
	})

	ka.Start(context.Background())
	defer ka.Stop()

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if timedOut {
		t.Error("keep-alive timed out despite pongs")
	}
}

func TestKeepAliveTimeout(t *testing.T) {
	timeoutCh := make(chan struct{})

	ka := NewKeepAlive(KeepAliveConfig{
		PingInterval:   5 * time.Millisecond,
		PongTimeout:    2 * time.Millisecond,
		MaxMissedPongs: 2,
	}, func(seq uint32) error {
		return nil // never answered
	}, func() {
		close(timeoutCh)
	})

	ka.Start(context.Background())
	defer ka.Stop()

	select {
	case <-timeoutCh:
	case <-time.After(time.Second):
		t.Fatal("keep-alive never declared the peer dead")
	}
}

func TestKeepAliveStaleSequenceIgnored(t *testing.T) {
	ka := NewKeepAlive(DefaultKeepAliveConfig(), func(uint32) error { return nil }, nil)

	// A pong for a sequence that was never pending must not reset
	// anything or panic.
	ka.PongReceived(42)

	if ka.MissedPongs() != 0 {
		t.Errorf("MissedPongs = %d, want 0", ka.MissedPongs())
	}
}

func TestKeepAliveStartStopIdempotent(t *testing.T) {
	ka := NewKeepAlive(DefaultKeepAliveConfig(), func(uint32) error { return nil }, nil)

	ctx := context.Background()
	ka.Start(ctx)
	ka.Start(ctx)
	if !ka.IsRunning() {
		t.Error("IsRunning = false after Start")
	}

	ka.Stop()
	ka.Stop()
	if ka.IsRunning() {
		t.Error("IsRunning = true after Stop")
	}
}

func TestDetectionDelay(t *testing.T) {
	c := KeepAliveConfig{
		PingInterval:   10 * time.Second,
		PongTimeout:    5 * time.Second,
		MaxMissedPongs: 3,
	}
	if got := c.DetectionDelay(); got != 35*time.Second {
		t.Errorf("DetectionDelay = %s, want 35s", got)
	}
}
