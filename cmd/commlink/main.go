// Commlink - pluggable communication client framework
//
// This is the main entry point for the commlink daemon. It builds
// every protocol instance named in the configuration through the
// transport factories, connects them, and keeps the sessions alive
// until a shutdown signal arrives.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/commlink/commlink/internal/infrastructure/config"
	"github.com/commlink/commlink/internal/infrastructure/logging"
	"github.com/commlink/commlink/internal/manager"

	// Transport packages register their factories at init time.
	_ "github.com/commlink/commlink/internal/transport/mqtt"
	_ "github.com/commlink/commlink/internal/transport/tcp"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting commlink",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	log.Info("transports available", "methods", manager.Methods())

	managers, err := manager.FromConfig(cfg, log)
	if err != nil {
		return fmt.Errorf("building protocols: %w", err)
	}
	defer func() {
		log.Info("disconnecting protocols")
		managers.DisconnectAll()
	}()

	if err := managers.ConnectAll(ctx); err != nil {
		return fmt.Errorf("connecting protocols: %w", err)
	}
	log.Info("all protocols connected",
		"pubsub", managers.PubSub.Names(),
		"reqres", managers.ReqRes.Names(),
	)

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	log.Info("commlink stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses COMMLINK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("COMMLINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
