package instrument

import (
	"errors"
	"fmt"
	"sync"

	"github.com/labwire-protocol/labwire-go/pkg/remote"
)

// Instrument errors.
var (
	ErrDuplicateAttribute = errors.New("attribute name already used")
	ErrRegistered         = errors.New("instrument is registered")
)

// Instrument is a named device owning an ordered list of distributed
// attributes. Registering the instrument registers every attribute on
// the endpoint under "<instrument>/<attribute>", so a laser's power
// shows up as "laser/power".
type Instrument struct {
	name string

	mu         sync.Mutex
	order      []string
	attrs      map[string]*remote.Distributed
	registered []string
	ep         *remote.Endpoint
}

// New creates an empty instrument.
func New(name string) *Instrument {
	return &Instrument{
		name:  name,
		attrs: make(map[string]*remote.Distributed),
	}
}

// Name returns the instrument name.
func (in *Instrument) Name() string { return in.name }

// Add attaches a distributed attribute under the given local name.
// Attributes cannot be added while the instrument is registered.
func (in *Instrument) Add(name string, d *remote.Distributed) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.ep != nil {
		return ErrRegistered
	}
	if _, exists := in.attrs[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateAttribute, name)
	}
	in.attrs[name] = d
	in.order = append(in.order, name)
	return nil
}

// Attribute returns the distributed attribute with the given local name.
func (in *Instrument) Attribute(name string) (*remote.Distributed, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	d, ok := in.attrs[name]
	return d, ok
}

// Names returns the local attribute names in the order they were added.
func (in *Instrument) Names() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	names := make([]string, len(in.order))
	copy(names, in.order)
	return names
}

// Register publishes every attribute on ep. On any failure the
// attributes registered so far are unregistered again, so registration
// is all-or-nothing. Registering twice fails.
func (in *Instrument) Register(ep *remote.Endpoint) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.ep != nil {
		return fmt.Errorf("%w: %q", remote.ErrAlreadyRegistered, in.name)
	}

	var done []string
	for _, name := range in.order {
		full := in.name + "/" + name
		if err := in.attrs[name].Register(ep, full); err != nil {
			for _, prev := range done {
				in.attrs[prev].Unregister()
			}
			return fmt.Errorf("register %q: %w", full, err)
		}
		done = append(done, name)
	}

	in.ep = ep
	in.registered = done
	return nil
}

// Unregister withdraws every attribute from the endpoint. Idempotent.
func (in *Instrument) Unregister() {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.ep == nil {
		return
	}
	for _, name := range in.registered {
		in.attrs[name].Unregister()
	}
	in.ep = nil
	in.registered = nil
}
