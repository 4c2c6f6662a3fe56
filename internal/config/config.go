// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error kinds.
package config

import (
	"fmt"
	"strings"

	"github.com/okian/wagerpool/internal/domain/address"
	"github.com/robfig/cron/v3"
)

// Ledger backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// DefaultProgramSeed names the program id used when program_id is unset.
const DefaultProgramSeed = "wagerpool/program"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// ProgramID is the hex address owning every record. Empty uses a fixed
	// id derived from DefaultProgramSeed.
	ProgramID string `koanf:"program_id"`

	// LedgerBackend selects where accounts live: memory or redis.
	LedgerBackend string `koanf:"ledger_backend"`

	RedisAddr      string `koanf:"redis_addr"`
	RedisPassword  string `koanf:"redis_password"`
	RedisDB        int    `koanf:"redis_db"`
	RedisKeyPrefix string `koanf:"redis_key_prefix"`

	// MaxTxRetries bounds optimistic transaction replays on the redis backend.
	MaxTxRetries int `koanf:"max_tx_retries"`

	// MinBid is the smallest round bid in lamports.
	MinBid uint64 `koanf:"min_bid"`

	// FaucetEnabled exposes the development airdrop endpoint.
	FaucetEnabled bool `koanf:"faucet_enabled"`

	// FaucetMaxAmount caps a single airdrop in lamports.
	FaucetMaxAmount uint64 `koanf:"faucet_max_amount"`

	// MetricsRefreshSchedule is a cron spec for refreshing ledger gauges.
	MetricsRefreshSchedule string `koanf:"metrics_refresh_schedule"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":9080",
		LedgerBackend:          BackendMemory,
		RedisAddr:              "localhost:6379",
		RedisKeyPrefix:         "wagerpool:",
		MaxTxRetries:           16,
		MinBid:                 1,
		FaucetEnabled:          false,
		FaucetMaxAmount:        10_000_000_000,
		MetricsRefreshSchedule: "@every 15s",
	}
}

// Program resolves ProgramID.
func (c *Config) Program() (address.Address, error) {
	if c.ProgramID == "" {
		return address.FromHash([]byte(DefaultProgramSeed)), nil
	}
	a, err := address.Parse(c.ProgramID)
	if err != nil {
		return address.Zero, fmt.Errorf("%w: program_id: %w", ErrInvalidConfig, err)
	}
	return a, nil
}

// Validate checks field ranges and combinations.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	switch c.LedgerBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: redis_addr is required for the redis backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: %w %q", ErrInvalidConfig, ErrUnsupportedBackend, c.LedgerBackend)
	}
	if c.MaxTxRetries <= 0 {
		return fmt.Errorf("%w: max_tx_retries must be positive", ErrInvalidConfig)
	}
	if c.MinBid == 0 {
		return fmt.Errorf("%w: min_bid must be at least 1", ErrInvalidConfig)
	}
	if _, err := c.Program(); err != nil {
		return err
	}
	if _, err := cron.ParseStandard(c.MetricsRefreshSchedule); err != nil {
		return fmt.Errorf("%w: metrics_refresh_schedule: %w", ErrInvalidConfig, err)
	}
	return nil
}
