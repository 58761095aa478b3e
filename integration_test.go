package labwire_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/labwire-protocol/labwire-go/pkg/attribute"
	"github.com/labwire-protocol/labwire-go/pkg/cert"
	"github.com/labwire-protocol/labwire-go/pkg/constraint"
	"github.com/labwire-protocol/labwire-go/pkg/instrument"
	"github.com/labwire-protocol/labwire-go/pkg/remote"
	"github.com/labwire-protocol/labwire-go/pkg/transport"
	"github.com/labwire-protocol/labwire-go/pkg/wire"
)

const laserDefinition = `
name: laser
attributes:
  - name: power
    type: float
    unit: mW
    initial: 5
    range: {min: 0, max: 100}
    maxDiscard: 2
  - name: mode
    type: string
    initial: cw
    choices: [cw, pulsed]
  - name: serial
    type: string
    readOnly: true
    initial: L-001
`

// startDevice builds a laser from its YAML definition and serves it.
func startDevice(t *testing.T, tlsEnabled bool) (string, *instrument.Instrument) {
	t.Helper()

	def, err := instrument.Parse([]byte(laserDefinition))
	if err != nil {
		t.Fatalf("Failed to parse definition: %v", err)
	}
	laser, err := def.Build()
	if err != nil {
		t.Fatalf("Failed to build instrument: %v", err)
	}

	ep := remote.NewEndpoint("device", nil)
	if err := laser.Register(ep); err != nil {
		t.Fatalf("Failed to register instrument: %v", err)
	}

	config := remote.ServerConfig{Address: "127.0.0.1:0"}
	if tlsEnabled {
		identity, err := cert.SelfSigned("test-device")
		if err != nil {
			t.Fatalf("Failed to generate certificate: %v", err)
		}
		config.TLSConfig = cert.ServerTLSConfig(identity)
	}

	srv, err := remote.NewServer(ep, config)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() {
		srv.Stop()
		laser.Unregister()
	})

	return srv.Addr(), laser
}

func dialDevice(t *testing.T, addr string, tlsEnabled bool) *remote.NetLink {
	t.Helper()

	config := transport.ClientConfig{}
	if tlsEnabled {
		config.TLSConfig = cert.ClientTLSConfig(nil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	link, err := remote.Dial(ctx, addr, config, nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { link.Close() })
	return link
}

// TestE2E_GetSetDescribe drives the full request path: YAML definition,
// registered endpoint, TCP transport, proxy operations.
func TestE2E_GetSetDescribe(t *testing.T) {
	addr, laser := startDevice(t, false)
	link := dialDevice(t, addr, false)
	ctx := context.Background()

	power := remote.NewProxy(link, "laser/power", nil)

	v, err := power.Get(ctx)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != 5.0 {
		t.Errorf("power = %v, want 5.0", v)
	}

	if err := power.Set(ctx, 42.5); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	d, _ := laser.Attribute("power")
	if got := d.Attribute().Value(); got != 42.5 {
		t.Errorf("device-side power = %v, want 42.5", got)
	}

	desc, err := power.Describe(ctx)
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if desc.Unit != "mW" {
		t.Errorf("unit = %q, want mW", desc.Unit)
	}
	if desc.MaxDiscard != 2 {
		t.Errorf("maxDiscard = %d, want 2", desc.MaxDiscard)
	}

	// Validation and write protection hold across the wire.
	if err := power.Set(ctx, 500.0); !errors.Is(err, constraint.ErrOutOfRange) {
		t.Errorf("Set 500 = %v, want out-of-range error", err)
	}
	serial := remote.NewProxy(link, "laser/serial", nil)
	if err := serial.Set(ctx, "L-002"); err == nil {
		t.Error("writing a read-only attribute succeeded")
	}

	// The instrument namespace is visible via List.
	resp, err := link.Call(ctx, wire.OpList, "", nil)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	var reply wire.ListReply
	if err := wire.UnmarshalPayload(resp.Payload, &reply); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	want := []string{"laser/power", "laser/mode", "laser/serial"}
	if len(reply.Attributes) != len(want) {
		t.Fatalf("attributes = %v, want %v", reply.Attributes, want)
	}
	for i, name := range want {
		if reply.Attributes[i] != name {
			t.Errorf("attributes[%d] = %q, want %q", i, reply.Attributes[i], name)
		}
	}
}

// TestE2E_Watch subscribes over TCP and observes live changes driven on
// the device side.
func TestE2E_Watch(t *testing.T) {
	addr, laser := startDevice(t, false)
	link := dialDevice(t, addr, false)
	ctx := context.Background()

	power := remote.NewProxy(link, "laser/power", nil)

	var mu sync.Mutex
	var seen []any
	fn := attribute.ListenerFunc(func(name string, value any) error {
		mu.Lock()
		seen = append(seen, value)
		mu.Unlock()
		return nil
	})
	listener := &fn

	if err := power.Subscribe(ctx, listener, true); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	waitFor := func(cond func([]any) bool) []any {
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			mu.Lock()
			snapshot := append([]any(nil), seen...)
			mu.Unlock()
			if cond(snapshot) {
				return snapshot
			}
			time.Sleep(10 * time.Millisecond)
		}
		mu.Lock()
		defer mu.Unlock()
		return append([]any(nil), seen...)
	}

	// Priming publication first.
	got := waitFor(func(s []any) bool { return len(s) >= 1 })
	if len(got) == 0 || got[0] != 5.0 {
		t.Fatalf("priming value = %v, want [5.0 ...]", got)
	}

	d, _ := laser.Attribute("power")
	if err := d.Attribute().SetValue(6.0); err != nil {
		t.Fatalf("device-side set: %v", err)
	}
	if err := d.Attribute().SetValue(7.0); err != nil {
		t.Fatalf("device-side set: %v", err)
	}

	got = waitFor(func(s []any) bool { return len(s) >= 2 && s[len(s)-1] == 7.0 })
	if got[len(got)-1] != 7.0 {
		t.Fatalf("values = %v, want trailing 7.0", got)
	}

	if err := power.Unsubscribe(ctx, listener); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	waitFor(func([]any) bool { return d.RemoteSubscriberCount() == 0 })
	if n := d.RemoteSubscriberCount(); n != 0 {
		t.Errorf("remote subscribers = %d after unsubscribe, want 0", n)
	}
}

// TestE2E_TLS runs the proxy operations over a TLS transport with a
// self-signed device identity.
func TestE2E_TLS(t *testing.T) {
	addr, _ := startDevice(t, true)
	link := dialDevice(t, addr, true)
	ctx := context.Background()

	mode := remote.NewProxy(link, "laser/mode", nil)
	if err := mode.Set(ctx, "pulsed"); err != nil {
		t.Fatalf("Set over TLS failed: %v", err)
	}
	v, err := mode.Get(ctx)
	if err != nil {
		t.Fatalf("Get over TLS failed: %v", err)
	}
	if v != "pulsed" {
		t.Errorf("mode = %v, want pulsed", v)
	}
	if err := mode.Set(ctx, "off"); err == nil {
		t.Error("value outside choices accepted")
	}
}

// TestE2E_Simulator checks that a simulated instrument produces a value
// stream a remote watcher can observe.
func TestE2E_Simulator(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	addr, laser := startDevice(t, false)
	link := dialDevice(t, addr, false)
	ctx := context.Background()

	sim := instrument.NewSimulator(laser, 5*time.Millisecond, nil)
	sim.Start(ctx)
	defer sim.Stop()

	power := remote.NewProxy(link, "laser/power", nil)

	var mu sync.Mutex
	count := 0
	fn := attribute.ListenerFunc(func(name string, value any) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})
	listener := &fn

	if err := power.Subscribe(ctx, listener, false); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := count
		mu.Unlock()
		if n >= 3 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no simulated updates observed")
}
