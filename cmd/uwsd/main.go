// ============================================================================
// UWS Core — Daemon Entry Point
// ============================================================================
//
// File: cmd/uwsd/main.go
// Purpose: Application entry point and CLI initialization
//
// Version Injection:
//   go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
//
// Usage:
//   ./uwsd --help
//   ./uwsd run -c configs/default.yaml
//   ./uwsd status -c configs/default.yaml
//
// ============================================================================

package main

import (
	"fmt"
	"os"

	"github.com/gmantele/vollt-uws/internal/cli"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "fatal error: %v\n", r)
			os.Exit(1)
		}
	}()

	rootCmd := cli.BuildCLI()
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
