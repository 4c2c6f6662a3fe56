package escrow

import (
	"context"

	"github.com/okian/wagerpool/internal/adapters/ledger"
	"github.com/okian/wagerpool/internal/domain/address"
	"github.com/okian/wagerpool/internal/domain/model"
)

// ReceiptView is a receipt record together with where it lives.
type ReceiptView struct {
	Address address.Address `json:"address"`
	model.Receipt
}

// Pool reads the pool record at addr.
func (e *Engine) Pool(ctx context.Context, addr address.Address) (model.Pool, error) {
	var p model.Pool
	err := e.store.View(ctx, func(tx ledger.Tx) error {
		var err error
		p, err = e.loadPool(tx, addr)
		return err
	})
	return p, err
}

// Round reads the round record at addr.
func (e *Engine) Round(ctx context.Context, addr address.Address) (model.Round, error) {
	var r model.Round
	err := e.store.View(ctx, func(tx ledger.Tx) error {
		var err error
		r, err = e.loadRound(tx, addr)
		return err
	})
	return r, err
}

// RoundByID resolves id to its derived address in pool and reads the round.
func (e *Engine) RoundByID(ctx context.Context, pool address.Address, id string) (RoundView, error) {
	addr, _, err := e.RoundAddress(pool, id)
	if err != nil {
		return RoundView{}, err
	}
	r, err := e.Round(ctx, addr)
	if err != nil {
		return RoundView{}, err
	}
	return RoundView{Address: addr, Pool: pool, Round: r}, nil
}

// ReceiptAddress returns the derived receipt address of depositor in roundID.
func (e *Engine) ReceiptAddress(depositor address.Address, roundID string) (address.Address, error) {
	if err := validateRoundID(roundID); err != nil {
		return address.Zero, err
	}
	addr, _, err := e.deriver.Find(receiptSeeds(depositor, roundID)...)
	return addr, err
}

// Receipt reads the receipt of depositor in roundID.
func (e *Engine) Receipt(ctx context.Context, depositor address.Address, roundID string) (ReceiptView, error) {
	addr, err := e.ReceiptAddress(depositor, roundID)
	if err != nil {
		return ReceiptView{}, err
	}
	var rc model.Receipt
	err = e.store.View(ctx, func(tx ledger.Tx) error {
		var err error
		rc, err = e.loadReceipt(tx, addr)
		return err
	})
	if err != nil {
		return ReceiptView{}, err
	}
	return ReceiptView{Address: addr, Receipt: rc}, nil
}

// VaultBalance returns the lamports held by the vault of id in pool.
func (e *Engine) VaultBalance(ctx context.Context, pool address.Address, id string) (uint64, error) {
	addr, _, err := e.VaultAddress(pool, id)
	if err != nil {
		return 0, err
	}
	return e.store.Balance(ctx, addr)
}
