package loadtest

import "time"

// Config holds configuration for a load run.
type Config struct {
	BaseURL   string        // Base URL of the service
	Rounds    int           // Number of rounds to open
	Capacity  int           // Deposits per round
	Bid       uint64        // Lamports per deposit
	Players   int           // Number of depositors racing on every round
	Workers   int           // Number of concurrent workers
	Timeout   time.Duration // HTTP request timeout
	Verbose   bool          // Enable per-request logging
	RunPrefix string        // Round id prefix; generated when empty
}

// Stats holds run statistics.
type Stats struct {
	DepositsSubmitted int
	DepositsAccepted  int
	DepositsFinished  int // refused because the round had filled up
	DepositsFailed    int
	RoundsVerified    int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}

// errorBody mirrors the API error payload.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// roundBody is the subset of a round the verifier reads.
type roundBody struct {
	ID             string `json:"id"`
	Vault          string `json:"vault"`
	Finished       bool   `json:"finished"`
	Capacity       int    `json:"capacity"`
	DepositedCount int    `json:"deposited_count"`
	Bid            uint64 `json:"bid"`
}

type accountBody struct {
	Balance uint64 `json:"balance"`
}

// WorkerChannelMultiplier sizes the job channel relative to the worker count.
const WorkerChannelMultiplier = 2
