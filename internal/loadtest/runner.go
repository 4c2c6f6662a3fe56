// Package loadtest drives concurrent depositors against a running escrow API
// and verifies that no round ever exceeds its capacity.
package loadtest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/wagerpool/internal/domain/address"
	"github.com/okian/wagerpool/internal/domain/escrow"
	"github.com/okian/wagerpool/pkg/logger"
)

// Run executes the complete load run.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	if config.RunPrefix == "" {
		config.RunPrefix = uuid.NewString()[:8]
	}

	logger.Get().Info(ctx, "starting wagerpool load run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("rounds", config.Rounds),
		logger.Int("capacity", config.Capacity),
		logger.Int("players", config.Players),
		logger.Int("workers", config.Workers),
		logger.Uint64("bid", config.Bid),
		logger.String("prefix", config.RunPrefix))

	client := newHTTPClient(config.BaseURL, config.Timeout)

	// Step 1: Check service health
	if err := client.Do(ctx, http.MethodGet, "/healthz", address.Zero, nil, nil); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Pool, rounds and funded players
	fx, err := setup(ctx, client, config)
	if err != nil {
		return nil, fmt.Errorf("setup failed: %w", err)
	}

	// Step 3: Race every player on every round
	submitDeposits(ctx, client, config, fx, stats)

	// Step 4: Verify round state and vault balances
	if err := verifyRounds(ctx, client, config, fx, stats); err != nil {
		return stats, fmt.Errorf("verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)
	return stats, nil
}

// fixture is what setup created on the server.
type fixture struct {
	pool    address.Address
	creator address.Address
	rounds  []string
	players []address.Address
}

func setup(ctx context.Context, client *HTTPClient, config *Config) (*fixture, error) {
	authority := address.NewIdentity()
	fx := &fixture{pool: address.NewIdentity(), creator: address.NewIdentity()}

	if err := client.Do(ctx, http.MethodPost, "/v1/pools", authority,
		map[string]any{"pool": fx.pool.String()}, nil); err != nil {
		return nil, fmt.Errorf("initialize pool: %w", err)
	}

	for i := range config.Rounds {
		id := fmt.Sprintf("%s-%d", config.RunPrefix, i)
		if err := client.Do(ctx, http.MethodPost, "/v1/pools/"+fx.pool.String()+"/rounds", fx.creator,
			map[string]any{"id": id, "odd": 2, "capacity": config.Capacity, "bid": config.Bid}, nil); err != nil {
			return nil, fmt.Errorf("create round %s: %w", id, err)
		}
		fx.rounds = append(fx.rounds, id)
	}

	funding := config.Bid * uint64(config.Rounds)
	for range config.Players {
		p := address.NewIdentity()
		if err := client.Do(ctx, http.MethodPost, "/v1/accounts/"+p.String()+"/airdrop", address.Zero,
			map[string]any{"amount": funding}, nil); err != nil {
			return nil, fmt.Errorf("fund player: %w", err)
		}
		fx.players = append(fx.players, p)
	}
	return fx, nil
}

type job struct {
	round  string
	player address.Address
}

// submitDeposits runs every (round, player) deposit through a worker pool.
func submitDeposits(ctx context.Context, client *HTTPClient, config *Config, fx *fixture, stats *Stats) {
	var submitted, accepted, finished, failed int64

	jobs := make(chan job, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for range config.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				atomic.AddInt64(&submitted, 1)
				path := "/v1/pools/" + fx.pool.String() + "/rounds/" + j.round + "/deposits"
				err := client.Do(ctx, http.MethodPost, path, j.player, map[string]any{}, nil)

				var apiErr *APIError
				switch {
				case err == nil:
					atomic.AddInt64(&accepted, 1)
				case errors.As(err, &apiErr) && apiErr.Code == escrow.CodeFinishedGame:
					atomic.AddInt64(&finished, 1)
				default:
					atomic.AddInt64(&failed, 1)
					if config.Verbose {
						logger.Get().Warn(ctx, "deposit failed", logger.String("round", j.round), logger.Error(err))
					}
				}
			}
		}()
	}

	// Interleave rounds so players contend on each one.
	go func() {
		defer close(jobs)
		for _, p := range fx.players {
			for _, r := range fx.rounds {
				select {
				case <-ctx.Done():
					return
				case jobs <- job{round: r, player: p}:
				}
			}
		}
	}()
	wg.Wait()

	stats.DepositsSubmitted = int(submitted)
	stats.DepositsAccepted = int(accepted)
	stats.DepositsFinished = int(finished)
	stats.DepositsFailed = int(failed)
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(stats *Stats) {
	var depositsPerSecond float64
	if stats.Duration > 0 {
		depositsPerSecond = float64(stats.DepositsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("depositsSubmitted", stats.DepositsSubmitted),
		logger.Int("depositsAccepted", stats.DepositsAccepted),
		logger.Int("depositsFinished", stats.DepositsFinished),
		logger.Int("depositsFailed", stats.DepositsFailed),
		logger.Int("roundsVerified", stats.RoundsVerified),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("depositsPerSecond", depositsPerSecond))
}
