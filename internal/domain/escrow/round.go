package escrow

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/wagerpool/internal/adapters/ledger"
	"github.com/okian/wagerpool/internal/domain/address"
	"github.com/okian/wagerpool/internal/domain/model"
	"github.com/okian/wagerpool/pkg/logger"
)

// CreateRoundParams are the inputs of CreateRound.
type CreateRoundParams struct {
	Pool      address.Address
	Signer    address.Address
	Bump      uint8
	VaultBump uint8
	ID        string
	Odd       uint8
	Capacity  uint8
	Bid       uint64
}

// RoundView is a round record together with where it lives.
type RoundView struct {
	Address address.Address `json:"address"`
	Pool    address.Address `json:"pool"`
	model.Round
}

// RoundAddress returns the canonical round address and bump for id in pool.
func (e *Engine) RoundAddress(pool address.Address, id string) (address.Address, uint8, error) {
	if err := validateRoundID(id); err != nil {
		return address.Zero, 0, err
	}
	return e.deriver.Find(roundSeeds(pool, id)...)
}

// VaultAddress returns the canonical vault address and bump for id in pool.
func (e *Engine) VaultAddress(pool address.Address, id string) (address.Address, uint8, error) {
	if err := validateRoundID(id); err != nil {
		return address.Zero, 0, err
	}
	return e.deriver.Find(vaultSeeds(pool, id)...)
}

func (e *Engine) validateRound(p *CreateRoundParams) error {
	if err := requireSigner(p.Signer); err != nil {
		return err
	}
	if err := validateRoundID(p.ID); err != nil {
		return err
	}
	if p.Capacity == 0 {
		return ErrInvalidCapacity
	}
	if p.Bid < e.minBid {
		return fmt.Errorf("%w: %d < %d", ErrMinDepositAmount, p.Bid, e.minBid)
	}
	// Every later deposit splits this bid, so reject it now if the split overflows.
	if _, _, err := Split(p.Bid); err != nil {
		return err
	}
	return nil
}

// CreateRound opens a new round in pool. The signer becomes both creator and
// fee receiver. No funds move.
func (e *Engine) CreateRound(ctx context.Context, p CreateRoundParams) (RoundView, error) {
	if err := e.validateRound(&p); err != nil {
		return RoundView{}, err
	}
	roundAddr, bump, err := e.deriver.Find(roundSeeds(p.Pool, p.ID)...)
	if err != nil {
		return RoundView{}, fmt.Errorf("derive round: %w", err)
	}
	if bump != p.Bump {
		return RoundView{}, fmt.Errorf("%w: round bump %d, canonical %d", ErrConstraintViolation, p.Bump, bump)
	}
	vaultAddr, vaultBump, err := e.deriver.Find(vaultSeeds(p.Pool, p.ID)...)
	if err != nil {
		return RoundView{}, fmt.Errorf("derive vault: %w", err)
	}
	if vaultBump != p.VaultBump {
		return RoundView{}, fmt.Errorf("%w: vault bump %d, canonical %d", ErrConstraintViolation, p.VaultBump, vaultBump)
	}

	var round model.Round
	err = e.store.Update(ctx, func(tx ledger.Tx) error {
		pool, err := e.loadPool(tx, p.Pool)
		if err != nil {
			return err
		}
		round = model.Round{
			Vault:          vaultAddr,
			Finished:       false,
			Odd:            p.Odd,
			Capacity:       p.Capacity,
			Bid:            p.Bid,
			Creator:        p.Signer,
			FeeReceiver:    p.Signer,
			DepositedCount: 0,
			Bump:           bump,
			ID:             p.ID,
			VaultBump:      vaultBump,
			Authority:      pool.Authority,
		}
		if err := tx.CreateAccount(roundAddr, e.ProgramID(), model.RoundSpace); err != nil {
			if errors.Is(err, ledger.ErrAddressInUse) {
				return fmt.Errorf("%w: round %q: %w", ErrAddressInUse, p.ID, err)
			}
			return err
		}
		return e.writeRound(tx, roundAddr, &round)
	})
	if err != nil {
		return RoundView{}, err
	}

	e.logger.Debug(ctx, "round created",
		logger.Stringer("pool", p.Pool),
		logger.String("round_id", p.ID),
		logger.Int("capacity", int(p.Capacity)),
		logger.Uint64("bid", p.Bid),
	)
	return RoundView{Address: roundAddr, Pool: p.Pool, Round: round}, nil
}
