package transport

import (
	"context"
	"sync"
	"time"
)

// Keep-alive defaults. With these values a dead link is noticed within
// PingInterval*MaxMissedPongs + PongTimeout, i.e. 35 seconds.
const (
	DefaultPingInterval   = 10 * time.Second
	DefaultPongTimeout    = 5 * time.Second
	DefaultMaxMissedPongs = 3
)

// KeepAliveConfig configures liveness monitoring for a connection.
type KeepAliveConfig struct {
	// PingInterval is the interval between pings. Zero disables
	// keep-alive entirely.
	PingInterval time.Duration

	// PongTimeout is how long to wait for a pong before counting a miss.
	PongTimeout time.Duration

	// MaxMissedPongs is the number of consecutive misses before the
	// connection is declared dead.
	MaxMissedPongs int
}

// DefaultKeepAliveConfig returns the default keep-alive configuration.
func DefaultKeepAliveConfig() KeepAliveConfig {
	return KeepAliveConfig{
		PingInterval:   DefaultPingInterval,
		PongTimeout:    DefaultPongTimeout,
		MaxMissedPongs: DefaultMaxMissedPongs,
	}
}

// DetectionDelay returns the worst-case time to detect a dead link.
func (c KeepAliveConfig) DetectionDelay() time.Duration {
	return c.PingInterval*time.Duration(c.MaxMissedPongs) + c.PongTimeout
}

// KeepAlive sends periodic pings over a connection and declares it dead
// after MaxMissedPongs consecutive unanswered pings.
type KeepAlive struct {
	config    KeepAliveConfig
	sendPing  func(seq uint32) error
	onTimeout func()

	mu          sync.Mutex
	running     bool
	seq         uint32
	pending     uint32
	hasPending  bool
	missed      int
	lastPingAt  time.Time
	lastPongAt  time.Time

	stopCh chan struct{}
	pongCh chan uint32
}

// NewKeepAlive creates a keep-alive monitor. sendPing transmits a ping
// with the given sequence number; onTimeout is invoked once when the
// connection is declared dead.
func NewKeepAlive(config KeepAliveConfig, sendPing func(seq uint32) error, onTimeout func()) *KeepAlive {
	if config.PingInterval == 0 {
		config.PingInterval = DefaultPingInterval
	}
	if config.PongTimeout == 0 {
		config.PongTimeout = DefaultPongTimeout
	}
	if config.MaxMissedPongs == 0 {
		config.MaxMissedPongs = DefaultMaxMissedPongs
	}
	return &KeepAlive{
		config:    config,
		sendPing:  sendPing,
		onTimeout: onTimeout,
		stopCh:    make(chan struct{}),
		pongCh:    make(chan uint32, 1),
	}
}

// Start begins the monitoring loop. Calling Start on a running monitor
// is a no-op.
func (ka *KeepAlive) Start(ctx context.Context) {
	ka.mu.Lock()
	if ka.running {
		ka.mu.Unlock()
		return
	}
	ka.running = true
	ka.stopCh = make(chan struct{})
	ka.mu.Unlock()

	go ka.loop(ctx)
}

// Stop stops the monitoring loop.
func (ka *KeepAlive) Stop() {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	if !ka.running {
		return
	}
	ka.running = false
	close(ka.stopCh)
}

// IsRunning reports whether the monitor is active.
func (ka *KeepAlive) IsRunning() bool {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return ka.running
}

// PongReceived must be called when a pong arrives on the connection.
func (ka *KeepAlive) PongReceived(seq uint32) {
	select {
	case ka.pongCh <- seq:
	default:
	}
}

// MissedPongs returns the current consecutive-miss count.
func (ka *KeepAlive) MissedPongs() int {
	ka.mu.Lock()
	defer ka.mu.Unlock()
	return ka.missed
}

func (ka *KeepAlive) loop(ctx context.Context) {
	ticker := time.NewTicker(ka.config.PingInterval)
	defer ticker.Stop()

	ka.ping()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ka.stopCh:
			return
		case <-ticker.C:
			if ka.tick() {
				// Connection declared dead
				if ka.onTimeout != nil {
					ka.onTimeout()
				}
				return
			}
		case seq := <-ka.pongCh:
			ka.pong(seq)
		}
	}
}

func (ka *KeepAlive) ping() {
	ka.mu.Lock()
	ka.seq++
	seq := ka.seq
	ka.pending = seq
	ka.hasPending = true
	ka.lastPingAt = time.Now()
	ka.mu.Unlock()

	if err := ka.sendPing(seq); err != nil {
		// Send failed; the miss counter will catch a dead link.
		ka.mu.Lock()
		ka.hasPending = false
		ka.missed++
		ka.mu.Unlock()
	}
}

// tick accounts for an unanswered ping and sends the next one. It
// returns true when the miss limit is reached.
func (ka *KeepAlive) tick() bool {
	ka.mu.Lock()
	if ka.hasPending && time.Since(ka.lastPingAt) >= ka.config.PongTimeout {
		ka.hasPending = false
		ka.missed++
	}
	dead := ka.missed >= ka.config.MaxMissedPongs
	ka.mu.Unlock()

	if dead {
		return true
	}
	ka.ping()
	return false
}

func (ka *KeepAlive) pong(seq uint32) {
	ka.mu.Lock()
	defer ka.mu.Unlock()

	ka.lastPongAt = time.Now()
	if ka.hasPending && seq == ka.pending {
		ka.hasPending = false
		ka.missed = 0
	}
	// A pong with a stale sequence is ignored; it answers an earlier
	// ping that was already counted as missed.
}
