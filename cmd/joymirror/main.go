// Joymirror - Controller Duplication Daemon
//
// This is the main entry point for the joymirror daemon. Joymirror watches
// for physical game controllers and presents each one as an additional
// virtual input device, so a second consumer can read controller state
// without stealing the nodes from the first. Force feedback written to a
// virtual device is relayed back to the physical controller behind it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/joymirror/internal/infrastructure/config"
	"github.com/nerrad567/joymirror/internal/infrastructure/logging"
	"github.com/nerrad567/joymirror/internal/mirror"
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
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM).
	// The engine notices the cancellation on its dispatch loop and tears
	// every mirror down there, never inside a signal context.
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
	log.Info("starting joymirror",
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

	engine := mirror.New(cfg, log.With("component", "engine"))
	if err := engine.Run(ctx); err != nil {
		return fmt.Errorf("running engine: %w", err)
	}

	log.Info("joymirror stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses JOYMIRROR_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("JOYMIRROR_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
