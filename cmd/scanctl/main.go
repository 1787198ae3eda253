// scanctl - Layer-2 scan-unit controller console
//
// scanctl keeps a registry of scan-unit controllers, their command
// selections and macros, and transmits the configured command frames to
// them as raw Ethernet frames. It runs either as a one-shot command line
// tool or as a long-lived console serving the HTTP/WebSocket API:
//
//	scanctl controllers add 00:1a:2b:3c:4d:5e --interface eth0
//	scanctl send 00:1a:2b:3c:4d:5e
//	scanctl serve
//
// Sending requires CAP_NET_RAW (or root) on Linux.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path, used when present.
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on Ctrl+C / SIGTERM so serve shuts down and a CLI send
	// cancels its run cleanly.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
