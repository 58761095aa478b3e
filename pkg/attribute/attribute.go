package attribute

import (
	"errors"
	"fmt"
	"sync"

	"github.com/labwire-protocol/labwire-go/pkg/constraint"
)

// Attribute errors.
var (
	ErrReadOnly     = errors.New("attribute is read-only")
	ErrInvalidValue = errors.New("invalid value type for attribute")

	// ErrListenerGone is returned by a listener whose target no longer
	// exists. It is an internal removal signal: the attribute silently
	// drops the listener instead of surfacing the error.
	ErrListenerGone = errors.New("listener target is gone")
)

// DataType restricts the Go types an attribute value may take.
type DataType uint8

const (
	// DataTypeAny accepts any non-nil value.
	DataTypeAny DataType = iota
	DataTypeBool
	DataTypeInt
	DataTypeFloat
	DataTypeString
	DataTypeBytes
)

// String returns the data type name.
func (d DataType) String() string {
	names := []string{"any", "bool", "int", "float", "string", "bytes"}
	if int(d) < len(names) {
		return names[d]
	}
	return "unknown"
}

// check validates that v matches the data type.
func (d DataType) check(v any) error {
	if v == nil {
		return fmt.Errorf("%w: nil", ErrInvalidValue)
	}
	switch d {
	case DataTypeAny:
		return nil
	case DataTypeBool:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("%w: expected bool, got %T", ErrInvalidValue, v)
		}
	case DataTypeInt:
		if !isIntegerType(v) {
			return fmt.Errorf("%w: expected integer, got %T", ErrInvalidValue, v)
		}
	case DataTypeFloat:
		if !isNumericType(v) {
			return fmt.Errorf("%w: expected number, got %T", ErrInvalidValue, v)
		}
	case DataTypeString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("%w: expected string, got %T", ErrInvalidValue, v)
		}
	case DataTypeBytes:
		if _, ok := v.([]byte); !ok {
			return fmt.Errorf("%w: expected bytes, got %T", ErrInvalidValue, v)
		}
	}
	return nil
}

// Metadata describes an attribute's immutable properties.
type Metadata struct {
	// Name is the human-readable attribute name.
	Name string

	// Unit is the unit of measurement (e.g. "V", "mA", "nm").
	Unit string

	// Type is the data type of the attribute value.
	Type DataType

	// ReadOnly rejects external SetValue calls. Owning code may still
	// update the value with ForceSet (e.g. to reflect a measurement).
	ReadOnly bool

	// Description is a human-readable description.
	Description string
}

// Listener is notified when an attribute value changes.
//
// Returning ErrListenerGone removes the listener from the attribute;
// this is the normal teardown path for observers whose target has been
// torn down. Any other returned error is ignored by the attribute and
// does not stop delivery to the remaining listeners.
type Listener interface {
	OnValueChanged(name string, value any) error
}

// ListenerFunc adapts a function to the Listener interface. Register
// the address of a ListenerFunc: the pointer gives the listener an
// identity, so it can be unsubscribed again (listener identity is
// interface equality, and bare func values have none).
type ListenerFunc func(name string, value any) error

// OnValueChanged calls f.
func (f *ListenerFunc) OnValueChanged(name string, value any) error {
	return (*f)(name, value)
}

// Attribute is a validated, observable value holder.
//
// Reads are safe from any goroutine. Mutations and listener
// notifications are serialized: listener callbacks for two SetValue
// calls run in the same order as the calls. Listeners must not mutate
// the same attribute synchronously from their callback.
type Attribute struct {
	// notifyMu serializes mutations and the notifications they trigger,
	// and makes Subscribe's init delivery atomic with respect to
	// concurrent changes.
	notifyMu sync.Mutex

	mu        sync.RWMutex
	meta      Metadata
	value     any
	cons      constraint.Constraint
	listeners []Listener
	hook      func(value any)
}

// New creates an attribute with the given metadata and initial value.
// The initial value must match the metadata type.
func New(meta Metadata, initial any) (*Attribute, error) {
	if err := meta.Type.check(initial); err != nil {
		return nil, err
	}
	return &Attribute{meta: meta, value: initial}, nil
}

// MustNew is like New but panics on error. For static attribute tables.
func MustNew(meta Metadata, initial any) *Attribute {
	a, err := New(meta, initial)
	if err != nil {
		panic(fmt.Sprintf("attribute %q: %v", meta.Name, err))
	}
	return a
}

// Name returns the attribute name.
func (a *Attribute) Name() string { return a.meta.Name }

// Unit returns the display unit.
func (a *Attribute) Unit() string { return a.meta.Unit }

// ReadOnly reports whether external writes are rejected.
func (a *Attribute) ReadOnly() bool { return a.meta.ReadOnly }

// Metadata returns a copy of the attribute metadata.
func (a *Attribute) Metadata() Metadata { return a.meta }

// Constraint returns the active constraint, or nil.
func (a *Attribute) Constraint() constraint.Constraint {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cons
}

// SetConstraint installs a constraint. It fails, leaving the previous
// constraint in place, if the current value would violate the new one.
func (a *Attribute) SetConstraint(c constraint.Constraint) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c != nil {
		if err := c.Validate(a.value); err != nil {
			return fmt.Errorf("constraint rejects current value: %w", err)
		}
	}
	a.cons = c
	return nil
}

// Value returns the current attribute value.
func (a *Attribute) Value() any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.value
}

// SetValue validates and stores a new value, then notifies listeners
// if the value changed. Fails with ErrReadOnly on read-only attributes
// and with a validation error if the value is rejected.
func (a *Attribute) SetValue(v any) error {
	if a.meta.ReadOnly {
		return ErrReadOnly
	}
	return a.set(v)
}

// ForceSet stores a value without the read-only check. Owning code
// uses it to reflect measurements and remotely validated values; the
// value is still validated against the constraint and type.
func (a *Attribute) ForceSet(v any) error {
	return a.set(v)
}

// set validates, stores, and notifies. The constraint check runs
// before the type check: for a doubly-invalid candidate the constraint
// error is the one reported.
func (a *Attribute) set(v any) error {
	a.notifyMu.Lock()
	defer a.notifyMu.Unlock()

	a.mu.Lock()
	if a.cons != nil {
		if err := a.cons.Validate(v); err != nil {
			a.mu.Unlock()
			return err
		}
	}
	if err := a.meta.Type.check(v); err != nil {
		a.mu.Unlock()
		return err
	}

	changed := !constraint.Equal(a.value, v)
	a.value = v
	hook := a.hook
	a.mu.Unlock()

	if changed {
		if hook != nil {
			hook(v)
		}
		a.notify(v)
	}
	return nil
}

// Subscribe registers a listener. If init is true, the listener is
// invoked once with the current value before Subscribe returns, and no
// concurrent change can be observed by the listener before that
// initial delivery.
func (a *Attribute) Subscribe(l Listener, init bool) {
	if !init {
		a.mu.Lock()
		a.addListenerLocked(l)
		a.mu.Unlock()
		return
	}

	a.notifyMu.Lock()
	defer a.notifyMu.Unlock()

	a.mu.Lock()
	a.addListenerLocked(l)
	v := a.value
	a.mu.Unlock()

	if err := l.OnValueChanged(a.meta.Name, v); errors.Is(err, ErrListenerGone) {
		a.Unsubscribe(l)
	}
}

// addListenerLocked appends l unless it is already registered.
func (a *Attribute) addListenerLocked(l Listener) {
	for _, existing := range a.listeners {
		if existing == l {
			return
		}
	}
	a.listeners = append(a.listeners, l)
}

// Unsubscribe removes a listener. Removing an unregistered listener is
// a no-op.
func (a *Attribute) Unsubscribe(l Listener) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, existing := range a.listeners {
		if existing == l {
			a.listeners = append(a.listeners[:i], a.listeners[i+1:]...)
			return
		}
	}
}

// ListenerCount returns the number of registered listeners.
func (a *Attribute) ListenerCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.listeners)
}

// SetChangeHook installs a hook invoked before listeners on every
// change. The remote layer uses it to publish values to the data
// channel ahead of local delivery. Pass nil to clear.
func (a *Attribute) SetChangeHook(fn func(value any)) {
	a.mu.Lock()
	a.hook = fn
	a.mu.Unlock()
}

// notify invokes every listener with v. The listener set is
// snapshotted first so a listener may unsubscribe itself (or others)
// during notification. Listeners that report ErrListenerGone are
// removed afterwards.
func (a *Attribute) notify(v any) {
	a.mu.RLock()
	snapshot := make([]Listener, len(a.listeners))
	copy(snapshot, a.listeners)
	a.mu.RUnlock()

	var gone []Listener
	for _, l := range snapshot {
		if err := l.OnValueChanged(a.meta.Name, v); errors.Is(err, ErrListenerGone) {
			gone = append(gone, l)
		}
	}
	for _, l := range gone {
		a.Unsubscribe(l)
	}
}

// Helper functions for type checking.

func isIntegerType(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}

func isNumericType(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	default:
		return false
	}
}
