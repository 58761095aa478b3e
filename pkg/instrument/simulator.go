package instrument

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/labwire-protocol/labwire-go/pkg/attribute"
	"github.com/labwire-protocol/labwire-go/pkg/constraint"
	"github.com/labwire-protocol/labwire-go/pkg/log"
	"github.com/labwire-protocol/labwire-go/pkg/remote"
)

// DefaultSimInterval is the default simulation update interval.
const DefaultSimInterval = 250 * time.Millisecond

// Simulator drives an instrument's writable numeric attributes with a
// random walk, so subscribers see live value streams without hardware.
// Range-constrained attributes stay inside their range.
type Simulator struct {
	inst     *Instrument
	interval time.Duration
	logger   log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSimulator creates a simulator for inst. interval <= 0 uses
// DefaultSimInterval; the logger may be nil.
func NewSimulator(inst *Instrument, interval time.Duration, logger log.Logger) *Simulator {
	if interval <= 0 {
		interval = DefaultSimInterval
	}
	if logger == nil {
		logger = &log.NoopLogger{}
	}
	return &Simulator{inst: inst, interval: interval, logger: logger}
}

// Start begins driving values until ctx is cancelled or Stop is called.
func (s *Simulator) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.loop(ctx)
}

// Stop halts the simulation and waits for the loop to exit.
func (s *Simulator) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
}

func (s *Simulator) loop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.step()
		}
	}
}

// step advances every simulatable attribute once.
func (s *Simulator) step() {
	for _, name := range s.inst.Names() {
		d, ok := s.inst.Attribute(name)
		if !ok {
			continue
		}
		if v, ok := nextValue(d); ok {
			if err := d.Attribute().ForceSet(v); err != nil {
				s.logger.Log(log.ErrorEvent(log.LayerRemote, "simulate "+name, err))
			}
		}
	}
}

// nextValue computes a random-walk step for numeric attributes.
// Non-numeric attributes are skipped.
func nextValue(d *remote.Distributed) (any, bool) {
	attr := d.Attribute()

	var cur float64
	switch v := attr.Value().(type) {
	case float64:
		cur = v
	case float32:
		cur = float64(v)
	case int:
		cur = float64(v)
	case int64:
		cur = float64(v)
	default:
		return nil, false
	}

	lo, hi := cur-1, cur+1
	if r, ok := attr.Constraint().(*constraint.Range); ok {
		lo, hi = r.Min(), r.Max()
	}
	step := (hi - lo) * 0.05 * (rand.Float64()*2 - 1)
	next := cur + step
	if next < lo {
		next = lo
	}
	if next > hi {
		next = hi
	}

	if attr.Metadata().Type == attribute.DataTypeInt {
		return int(next), true
	}
	return next, true
}
