// Command reeld runs the reel capture daemon directly, without the CLI
// command tree. It is equivalent to `reel daemon`.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"reel/internal/config"
	"reel/internal/daemonrun"
)

// version is stamped through -ldflags at release time.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	logLevel := flag.String("log-level", "", "Override the configured log level")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "ensure directories: %v\n", err)
		os.Exit(1)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{
		LogLevel: *logLevel,
		Version:  version,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "reeld: %v\n", err)
		os.Exit(1)
	}
}
