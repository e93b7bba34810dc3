// Package main provides the entry point for the toolbridge broker.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/relayops/toolbridge/internal/server"
	"github.com/relayops/toolbridge/pkg/bridge"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type serverOptions struct {
	configPath  string
	transport   string
	address     string
	showVersion bool
}

func parseFlags() serverOptions {
	opts := serverOptions{}
	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.transport, "transport", "", "Transport type: stdio, http (overrides config)")
	flag.StringVar(&opts.address, "address", "", "Listen address for HTTP transport (overrides config)")
	flag.BoolVar(&opts.showVersion, "version", false, "Show version and exit")
	flag.Parse()
	return opts
}

func setupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx
}

// loadConfig loads the configuration file when one is given, or falls back to
// defaults with provider credentials taken from the environment.
func loadConfig(opts serverOptions) (*bridge.Config, error) {
	if opts.configPath != "" {
		return bridge.LoadConfig(opts.configPath)
	}

	cfg := bridge.DefaultConfig()
	cfg.Provider.BaseURL = os.Getenv("TOOLBRIDGE_PROVIDER_URL")
	cfg.Provider.APIKey = os.Getenv("TOOLBRIDGE_PROVIDER_API_KEY")
	return cfg, nil
}

func applyFlagOverrides(cfg *bridge.Config, opts serverOptions) {
	if opts.transport != "" {
		cfg.Server.Transport = opts.transport
	}
	if opts.address != "" {
		cfg.Server.Address = opts.address
	}
}

func run() error {
	opts := parseFlags()

	if opts.showVersion {
		fmt.Printf("toolbridge version %s\n", server.Version)
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyFlagOverrides(cfg, opts)

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer func() { _ = srv.Close() }()

	ctx := setupSignalHandler()

	return srv.Run(ctx)
}
