package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/wagerpool/internal/loadtest"
)

// Default configuration constants.
const (
	defaultRounds      = 10
	defaultCapacity    = 5
	defaultPlayers     = 20
	defaultBid         = 1_000_000
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		rounds   = flag.Int("rounds", defaultRounds, "Number of rounds to open")
		capacity = flag.Int("capacity", defaultCapacity, "Deposits per round")
		players  = flag.Int("players", defaultPlayers, "Depositors racing on every round")
		bid      = flag.Uint64("bid", defaultBid, "Lamports per deposit")
		workers  = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verbose  = flag.Bool("verbose", false, "Enable verbose logging")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		loadtest.ShowHelp()
		return
	}

	if err := loadtest.SetupLogging(*verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &loadtest.Config{
		BaseURL:  *baseURL,
		Rounds:   *rounds,
		Capacity: *capacity,
		Bid:      *bid,
		Players:  *players,
		Workers:  *workers,
		Timeout:  *timeout,
		Verbose:  *verbose,
	}

	if _, err := loadtest.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Load run failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
