package escrow

import (
	"context"
	"fmt"

	"github.com/okian/wagerpool/internal/adapters/ledger"
	"github.com/okian/wagerpool/internal/domain/address"
	"github.com/okian/wagerpool/internal/domain/model"
	"github.com/okian/wagerpool/pkg/logger"
)

// InitializeParams are the inputs of Initialize.
type InitializeParams struct {
	Pool       address.Address
	Authority  address.Address
	PoolSigner address.Address
	Nonce      uint8
	Signer     address.Address
}

// PoolSigner returns the canonical signer address and nonce of pool.
func (e *Engine) PoolSigner(pool address.Address) (address.Address, uint8, error) {
	return e.deriver.Find(poolSeeds(pool)...)
}

// Initialize writes a fresh pool record at p.Pool. The record is allocated
// when absent; an allocated record must still be zeroed.
func (e *Engine) Initialize(ctx context.Context, p InitializeParams) (model.Pool, error) {
	if err := requireSigner(p.Signer); err != nil {
		return model.Pool{}, err
	}
	if p.Authority.IsZero() {
		return model.Pool{}, fmt.Errorf("%w: authority is required", ErrConstraintViolation)
	}
	signer, err := e.deriver.Create(p.Nonce, poolSeeds(p.Pool)...)
	if err != nil {
		return model.Pool{}, fmt.Errorf("%w: pool signer nonce %d: %w", ErrConstraintViolation, p.Nonce, err)
	}
	if signer != p.PoolSigner {
		return model.Pool{}, fmt.Errorf("%w: pool signer %s does not match nonce %d", ErrConstraintViolation, p.PoolSigner, p.Nonce)
	}

	pool := model.Pool{
		RoundCount:          0,
		LastFinishedRoundID: model.InitialFinishedRoundID,
		Nonce:               p.Nonce,
		Authority:           p.Authority,
	}
	err = e.store.Update(ctx, func(tx ledger.Tx) error {
		acct, err := tx.Get(p.Pool)
		if err != nil {
			return err
		}
		switch {
		case !acct.HasRecord():
			if err := tx.CreateAccount(p.Pool, e.ProgramID(), model.PoolSpace); err != nil {
				return err
			}
		case acct.Owner != e.ProgramID():
			return fmt.Errorf("%w: %s is not owned by the program", ErrConstraintViolation, p.Pool)
		case !model.IsZeroed(acct.Data):
			return fmt.Errorf("%w: %s", ErrAlreadyInitialized, p.Pool)
		}
		return e.writePool(tx, p.Pool, &pool)
	})
	if err != nil {
		return model.Pool{}, err
	}

	e.logger.Debug(ctx, "pool initialized",
		logger.Stringer("pool", p.Pool),
		logger.Stringer("authority", p.Authority),
		logger.Int("nonce", int(p.Nonce)),
	)
	return pool, nil
}
