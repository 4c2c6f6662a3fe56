package loadtest

import (
	"fmt"
	"os"

	"github.com/okian/wagerpool/pkg/logger"
)

// SetupLogging initializes the global logger for the load tool.
func SetupLogging(verbose bool) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return nil
}

// ShowHelp prints usage information for the load tool.
func ShowHelp() {
	os.Stdout.WriteString(`Wagerpool Load Tool
===================

Races many depositors on capacity-limited rounds through the HTTP API and
verifies that every round fills to exactly its capacity. The server must run
with faucet_enabled=true.

Usage:
  go run ./cmd/loadtest [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -rounds int
        Number of rounds to open (default 10)
  -capacity int
        Deposits per round, 1..255 (default 5)
  -players int
        Depositors racing on every round (default 20)
  -bid uint
        Lamports per deposit (default 1000000)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -verbose
        Enable verbose logging
  -help
        Show this help message
`)
}
