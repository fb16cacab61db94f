package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mdnsd/mdnsd/internal/dns/common/clock"
	"github.com/mdnsd/mdnsd/internal/dns/common/log"
	"github.com/mdnsd/mdnsd/internal/dns/config"
	"github.com/mdnsd/mdnsd/internal/mdns/engine"
	"github.com/mdnsd/mdnsd/internal/mdns/gateways/transport"
	"github.com/mdnsd/mdnsd/internal/mdns/gateways/wire"
)

const (
	version = "0.1.0-dev"
	appName = "mdnsd"
)

// Application holds the components of the mDNS engine process.
type Application struct {
	config *config.AppConfig
	engine *engine.Engine
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	if err := log.Configure(cfg.Env, cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Info(map[string]any{
		"version":    version,
		"env":        cfg.Env,
		"log_level":  cfg.Log.Level,
		"host":       cfg.Host,
		"interfaces": cfg.Interfaces,
		"verbose":    cfg.Verbose,
	}, "starting mDNS engine")

	app, err := buildApplication(cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err.Error()}, "failed to build application")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if !app.engine.Start(cfg.Host) {
		log.Fatal(nil, "mDNS transceiver failed to start on any interface")
	}
	log.Info(map[string]any{"host": cfg.Host}, "mDNS engine started")

	sig := <-sigChan
	log.Info(map[string]any{"signal": sig.String()}, "shutdown signal received")

	app.engine.Stop()
	app.engine.Close()

	log.Info(nil, "mDNS engine stopped gracefully")
}

// buildApplication constructs the transceiver, wire codec, and engine and
// wires them together per the configured network and interface settings.
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	logger := log.GetLogger()
	codec := wire.NewCodec()

	tr, err := transport.NewMulticastTransport(cfg.Network.V4Addr, cfg.Network.V6Addr, codec, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build multicast transport: %w", err)
	}
	for _, name := range cfg.Interfaces {
		tr.EnableInterface(name, transport.FamilyBoth)
	}

	clk := clock.RealClock{}
	eng := engine.New(tr, clk, logger)
	eng.SetVerbose(cfg.Verbose)

	return &Application{
		config: cfg,
		engine: eng,
	}, nil
}

