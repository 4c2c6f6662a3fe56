package loadtest

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/wagerpool/internal/domain/address"
	"github.com/okian/wagerpool/internal/domain/escrow"
	"github.com/okian/wagerpool/pkg/logger"
)

// ErrInconsistent reports a round whose final state breaks the capacity or
// split rules.
var ErrInconsistent = errors.New("inconsistent round state")

// verifyRounds checks every round filled to exactly min(players, capacity)
// and its vault holds the vault share of each accepted deposit.
func verifyRounds(ctx context.Context, client *HTTPClient, config *Config, fx *fixture, stats *Stats) error {
	_, vaultShare, err := escrow.Split(config.Bid)
	if err != nil {
		return err
	}
	want := min(config.Players, config.Capacity)

	var problems []error
	for _, id := range fx.rounds {
		var r roundBody
		if err := client.Do(ctx, http.MethodGet, "/v1/pools/"+fx.pool.String()+"/rounds/"+id, address.Zero, nil, &r); err != nil {
			return fmt.Errorf("read round %s: %w", id, err)
		}
		var vault accountBody
		if err := client.Do(ctx, http.MethodGet, "/v1/accounts/"+r.Vault, address.Zero, nil, &vault); err != nil {
			return fmt.Errorf("read vault of %s: %w", id, err)
		}

		switch {
		case r.DepositedCount != want:
			problems = append(problems, fmt.Errorf("%w: round %s has %d deposits, want %d", ErrInconsistent, id, r.DepositedCount, want))
		case r.Finished != (r.DepositedCount == r.Capacity):
			problems = append(problems, fmt.Errorf("%w: round %s finished=%t with %d/%d", ErrInconsistent, id, r.Finished, r.DepositedCount, r.Capacity))
		case vault.Balance != uint64(r.DepositedCount)*vaultShare:
			problems = append(problems, fmt.Errorf("%w: round %s vault holds %d, want %d", ErrInconsistent, id, vault.Balance, uint64(r.DepositedCount)*vaultShare))
		default:
			stats.RoundsVerified++
		}
	}

	if want*len(fx.rounds) != stats.DepositsAccepted {
		problems = append(problems, fmt.Errorf("%w: %d deposits accepted, want %d", ErrInconsistent, stats.DepositsAccepted, want*len(fx.rounds)))
	}
	if len(problems) > 0 {
		return errors.Join(problems...)
	}

	logger.Get().Info(ctx, "rounds verified", logger.Int("rounds", stats.RoundsVerified))
	return nil
}
