// Command labwire-device hosts instruments over the LABWIRE transport.
//
// Instruments are described by YAML definition files passed as
// arguments. Each attribute becomes reachable as
// "<instrument>/<attribute>" for get/set/describe/subscribe from a
// controller.
//
// Usage:
//
//	labwire-device [flags] definition.yaml [definition.yaml ...]
//
// Flags:
//
//	-addr string          Listen address (default ":7420")
//	-tls                  Serve TLS with a self-signed certificate
//	-cert string          TLS certificate PEM file (implies TLS)
//	-key string           TLS key PEM file
//	-simulate             Drive numeric attributes with synthetic data
//	-sim-interval duration  Simulation update interval (default 250ms)
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-version              Print the protocol version and exit
//
// Examples:
//
//	# Host a simulated laser
//	labwire-device -simulate testdata/laser.yaml
//
//	# Host two instruments with verbose protocol logging
//	labwire-device -log-level debug laser.yaml stage.yaml
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labwire-protocol/labwire-go/pkg/cert"
	"github.com/labwire-protocol/labwire-go/pkg/instrument"
	"github.com/labwire-protocol/labwire-go/pkg/log"
	"github.com/labwire-protocol/labwire-go/pkg/remote"
	"github.com/labwire-protocol/labwire-go/pkg/version"
)

// Config holds the device configuration.
type Config struct {
	Addr        string
	TLS         bool
	CertFile    string
	KeyFile     string
	Simulate    bool
	SimInterval time.Duration
	LogLevel    string
	Version     bool
}

var config Config

func init() {
	flag.StringVar(&config.Addr, "addr", ":7420", "Listen address")
	flag.BoolVar(&config.TLS, "tls", false, "Serve TLS with a self-signed certificate")
	flag.StringVar(&config.CertFile, "cert", "", "TLS certificate PEM file (implies TLS)")
	flag.StringVar(&config.KeyFile, "key", "", "TLS key PEM file")
	flag.BoolVar(&config.Simulate, "simulate", false, "Drive numeric attributes with synthetic data")
	flag.DurationVar(&config.SimInterval, "sim-interval", instrument.DefaultSimInterval, "Simulation update interval")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.BoolVar(&config.Version, "version", false, "Print the protocol version and exit")
}

func main() {
	flag.Parse()

	if config.Version {
		fmt.Printf("labwire %s\n", version.Current)
		return
	}
	if flag.NArg() == 0 {
		stdlog.Fatal("no instrument definitions given")
	}

	logger := setupLogging(config.LogLevel)

	ep := remote.NewEndpoint(config.Addr, logger)

	instruments := make([]*instrument.Instrument, 0, flag.NArg())
	for _, path := range flag.Args() {
		def, err := instrument.Load(path)
		if err != nil {
			stdlog.Fatalf("Failed to load %s: %v", path, err)
		}
		in, err := def.Build()
		if err != nil {
			stdlog.Fatalf("Failed to build %s: %v", def.Name, err)
		}
		if err := in.Register(ep); err != nil {
			stdlog.Fatalf("Failed to register %s: %v", in.Name(), err)
		}
		instruments = append(instruments, in)
		stdlog.Printf("Registered instrument %q (%d attributes)", in.Name(), len(in.Names()))
	}

	tlsConfig, err := setupTLS()
	if err != nil {
		stdlog.Fatalf("Failed to set up TLS: %v", err)
	}

	srv, err := remote.NewServer(ep, remote.ServerConfig{
		Address:   config.Addr,
		TLSConfig: tlsConfig,
		Logger:    logger,
	})
	if err != nil {
		stdlog.Fatalf("Failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
	stdlog.Printf("Listening on %s", srv.Addr())

	var sims []*instrument.Simulator
	if config.Simulate {
		for _, in := range instruments {
			sim := instrument.NewSimulator(in, config.SimInterval, logger)
			sim.Start(ctx)
			sims = append(sims, sim)
		}
		stdlog.Printf("Simulation running (interval %s)", config.SimInterval)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	stdlog.Printf("Received signal: %v, shutting down", sig)

	for _, sim := range sims {
		sim.Stop()
	}
	if err := srv.Stop(); err != nil {
		stdlog.Printf("Error stopping server: %v", err)
	}
	for _, in := range instruments {
		in.Unregister()
	}
}

// setupTLS builds the server TLS config. A certificate file wins over
// the self-signed default; no TLS flags means plain TCP.
func setupTLS() (*tls.Config, error) {
	switch {
	case config.CertFile != "":
		if config.KeyFile == "" {
			return nil, fmt.Errorf("-cert requires -key")
		}
		c, err := cert.LoadCertificate(config.CertFile, config.KeyFile)
		if err != nil {
			return nil, err
		}
		return cert.ServerTLSConfig(c), nil
	case config.TLS:
		hostname, _ := os.Hostname()
		c, err := cert.SelfSigned(hostname)
		if err != nil {
			return nil, err
		}
		return cert.ServerTLSConfig(c), nil
	default:
		return nil, nil
	}
}

// setupLogging builds the protocol logger for the chosen level. Debug
// forwards all protocol events to slog; other levels keep errors only.
func setupLogging(level string) log.Logger {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})
	return log.NewSlogAdapter(slog.New(handler))
}
