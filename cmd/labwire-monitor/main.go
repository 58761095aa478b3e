// Command labwire-monitor is an interactive LABWIRE controller.
//
// It connects to a device, enumerates its attributes and lets you read,
// write and watch them from a prompt. Everything goes through the
// public proxy API, so the monitor doubles as a protocol smoke test.
//
// Usage:
//
//	labwire-monitor [flags]
//
// Flags:
//
//	-addr string       Device address (default "localhost:7420")
//	-tls               Connect with TLS (self-signed server certificates accepted)
//	-timeout duration  Per-call timeout (default 5s)
//	-version           Print the protocol version and exit
//
// Interactive commands:
//
//	list                      - List attributes on the device
//	get <attribute>           - Read an attribute value
//	set <attribute> <value>   - Write an attribute value
//	describe <attribute>      - Show attribute metadata
//	watch <attribute>         - Subscribe and print value changes
//	unwatch <attribute>       - Stop watching
//	quit                      - Exit
package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/labwire-protocol/labwire-go/pkg/attribute"
	"github.com/labwire-protocol/labwire-go/pkg/cert"
	"github.com/labwire-protocol/labwire-go/pkg/remote"
	"github.com/labwire-protocol/labwire-go/pkg/transport"
	"github.com/labwire-protocol/labwire-go/pkg/version"
	"github.com/labwire-protocol/labwire-go/pkg/wire"
)

var (
	addr     = flag.String("addr", "localhost:7420", "Device address")
	useTLS   = flag.Bool("tls", false, "Connect with TLS (self-signed server certificates accepted)")
	timeout  = flag.Duration("timeout", 5*time.Second, "Per-call timeout")
	printVer = flag.Bool("version", false, "Print the protocol version and exit")
)

// monitor is the interactive session state.
type monitor struct {
	link    *remote.NetLink
	rl      *readline.Instance
	proxies map[string]*remote.Proxy
	watches map[string]attribute.Listener
}

func main() {
	flag.Parse()

	if *printVer {
		fmt.Printf("labwire %s\n", version.Current)
		return
	}

	clientConfig := transport.ClientConfig{}
	if *useTLS {
		clientConfig.TLSConfig = cert.ClientTLSConfig(nil)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	link, err := remote.Dial(ctx, *addr, clientConfig, nil)
	cancel()
	if err != nil {
		stdlog.Fatalf("Failed to connect to %s: %v", *addr, err)
	}
	defer link.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "labwire> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		stdlog.Fatalf("Failed to create readline: %v", err)
	}
	defer rl.Close()

	m := &monitor{
		link:    link,
		rl:      rl,
		proxies: make(map[string]*remote.Proxy),
		watches: make(map[string]attribute.Listener),
	}

	fmt.Fprintf(rl.Stdout(), "Connected to %s\n", *addr)
	m.printHelp()
	m.run()
}

func (m *monitor) run() {
	for {
		line, err := m.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			return
		}

		parts := strings.Fields(strings.TrimSpace(line))
		if len(parts) == 0 {
			continue
		}
		cmd, args := strings.ToLower(parts[0]), parts[1:]

		switch cmd {
		case "help", "?":
			m.printHelp()
		case "list", "ls":
			m.cmdList()
		case "get", "g":
			m.cmdGet(args)
		case "set", "s":
			m.cmdSet(args)
		case "describe", "d":
			m.cmdDescribe(args)
		case "watch", "w":
			m.cmdWatch(args)
		case "unwatch", "u":
			m.cmdUnwatch(args)
		case "quit", "exit", "q":
			return
		default:
			fmt.Fprintf(m.rl.Stdout(), "Unknown command %q (try help)\n", cmd)
		}
	}
}

func (m *monitor) printHelp() {
	fmt.Fprintln(m.rl.Stdout(), `Commands:
  list                      List attributes on the device
  get <attribute>           Read an attribute value
  set <attribute> <value>   Write an attribute value
  describe <attribute>      Show attribute metadata
  watch <attribute>         Subscribe and print value changes
  unwatch <attribute>       Stop watching
  quit                      Exit`)
}

// proxy returns (creating if needed) the proxy for an attribute.
func (m *monitor) proxy(name string) *remote.Proxy {
	p, ok := m.proxies[name]
	if !ok {
		p = remote.NewProxy(m.link, name, nil)
		m.proxies[name] = p
	}
	return p
}

func (m *monitor) callCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), *timeout)
}

func (m *monitor) cmdList() {
	ctx, cancel := m.callCtx()
	defer cancel()

	resp, err := m.link.Call(ctx, wire.OpList, "", nil)
	if err != nil {
		fmt.Fprintf(m.rl.Stdout(), "Error: %v\n", err)
		return
	}
	var reply wire.ListReply
	if err := wire.UnmarshalPayload(resp.Payload, &reply); err != nil {
		fmt.Fprintf(m.rl.Stdout(), "Error: %v\n", err)
		return
	}
	if len(reply.Attributes) == 0 {
		fmt.Fprintln(m.rl.Stdout(), "No attributes registered")
		return
	}
	for _, name := range reply.Attributes {
		fmt.Fprintf(m.rl.Stdout(), "  %s\n", name)
	}
}

func (m *monitor) cmdGet(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(m.rl.Stdout(), "Usage: get <attribute>")
		return
	}
	ctx, cancel := m.callCtx()
	defer cancel()

	v, err := m.proxy(args[0]).Get(ctx)
	if err != nil {
		fmt.Fprintf(m.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(m.rl.Stdout(), "%s = %v\n", args[0], v)
}

func (m *monitor) cmdSet(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(m.rl.Stdout(), "Usage: set <attribute> <value>")
		return
	}
	ctx, cancel := m.callCtx()
	defer cancel()

	value := parseValue(strings.Join(args[1:], " "))
	if err := m.proxy(args[0]).Set(ctx, value); err != nil {
		fmt.Fprintf(m.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(m.rl.Stdout(), "%s = %v\n", args[0], value)
}

func (m *monitor) cmdDescribe(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(m.rl.Stdout(), "Usage: describe <attribute>")
		return
	}
	ctx, cancel := m.callCtx()
	defer cancel()

	desc, err := m.proxy(args[0]).Describe(ctx)
	if err != nil {
		fmt.Fprintf(m.rl.Stdout(), "Error: %v\n", err)
		return
	}
	out := m.rl.Stdout()
	fmt.Fprintf(out, "  name:        %s\n", desc.Name)
	fmt.Fprintf(out, "  type:        %s\n", desc.DataType)
	if desc.Unit != "" {
		fmt.Fprintf(out, "  unit:        %s\n", desc.Unit)
	}
	fmt.Fprintf(out, "  readOnly:    %v\n", desc.ReadOnly)
	fmt.Fprintf(out, "  channel:     %s\n", desc.Channel)
	fmt.Fprintf(out, "  maxDiscard:  %d\n", desc.MaxDiscard)
	if desc.Constraint != "" {
		fmt.Fprintf(out, "  constraint:  %s\n", desc.Constraint)
	}
	if desc.Description != "" {
		fmt.Fprintf(out, "  description: %s\n", desc.Description)
	}
}

func (m *monitor) cmdWatch(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(m.rl.Stdout(), "Usage: watch <attribute>")
		return
	}
	name := args[0]
	if _, active := m.watches[name]; active {
		fmt.Fprintf(m.rl.Stdout(), "Already watching %s\n", name)
		return
	}

	out := m.rl.Stdout()
	fn := attribute.ListenerFunc(func(attrName string, value any) error {
		fmt.Fprintf(out, "%s %s = %v\n", time.Now().Format("15:04:05.000"), name, value)
		return nil
	})
	listener := &fn

	ctx, cancel := m.callCtx()
	defer cancel()
	if err := m.proxy(name).Subscribe(ctx, listener, true); err != nil {
		fmt.Fprintf(m.rl.Stdout(), "Error: %v\n", err)
		return
	}
	m.watches[name] = listener
	fmt.Fprintf(m.rl.Stdout(), "Watching %s\n", name)
}

func (m *monitor) cmdUnwatch(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(m.rl.Stdout(), "Usage: unwatch <attribute>")
		return
	}
	name := args[0]
	listener, active := m.watches[name]
	if !active {
		fmt.Fprintf(m.rl.Stdout(), "Not watching %s\n", name)
		return
	}

	ctx, cancel := m.callCtx()
	defer cancel()
	if err := m.proxy(name).Unsubscribe(ctx, listener); err != nil {
		fmt.Fprintf(m.rl.Stdout(), "Error: %v\n", err)
	}
	delete(m.watches, name)
	fmt.Fprintf(m.rl.Stdout(), "Stopped watching %s\n", name)
}

// parseValue interprets a command argument as bool, int, float, or
// string, in that order.
func parseValue(s string) any {
	if b, err := strconv.ParseBool(s); err == nil && (s == "true" || s == "false") {
		return b
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
