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

// DepositParams are the inputs of Deposit. Signer is the authenticated caller
// and must be the depositor.
type DepositParams struct {
	Pool        address.Address
	Round       address.Address
	Vault       address.Address
	Depositor   address.Address
	FeeReceiver address.Address
	Signer      address.Address
}

// DepositResult describes an accepted deposit.
type DepositResult struct {
	Round          RoundView       `json:"round"`
	Receipt        model.Receipt   `json:"receipt"`
	ReceiptAddress address.Address `json:"receipt_address"`
	Fee            uint64          `json:"fee"`
	VaultAmount    uint64          `json:"vault_amount"`
	// Finished is set when this deposit filled the round.
	Finished bool `json:"finished"`
}

func (e *Engine) checkDepositAccounts(p *DepositParams, pool *model.Pool, round *model.Round) error {
	if round.Vault != p.Vault {
		return fmt.Errorf("%w: vault %s is not the round vault", ErrConstraintViolation, p.Vault)
	}
	if round.FeeReceiver != p.FeeReceiver {
		return fmt.Errorf("%w: fee receiver %s is not the round fee receiver", ErrConstraintViolation, p.FeeReceiver)
	}
	roundAddr, err := e.deriver.Create(round.Bump, roundSeeds(p.Pool, round.ID)...)
	if err != nil || roundAddr != p.Round {
		return fmt.Errorf("%w: round %s is not derived from pool %s", ErrConstraintViolation, p.Round, p.Pool)
	}
	vault, err := e.deriver.Create(round.VaultBump, vaultSeeds(p.Pool, round.ID)...)
	if err != nil || vault != p.Vault {
		return fmt.Errorf("%w: vault %s is not derived from pool %s", ErrConstraintViolation, p.Vault, p.Pool)
	}
	if round.Authority != pool.Authority {
		return fmt.Errorf("%w: round %q belongs to another pool", ErrConstraintViolation, round.ID)
	}
	return nil
}

// Deposit pays the round bid from the depositor, split between the fee
// receiver and the vault, and records a one-time receipt. The deposit that
// fills the round finishes it and marks it as the pool's last finished round.
// Either every effect applies or none does.
func (e *Engine) Deposit(ctx context.Context, p DepositParams) (DepositResult, error) {
	if err := requireSigner(p.Signer); err != nil {
		return DepositResult{}, err
	}
	if p.Signer != p.Depositor {
		return DepositResult{}, fmt.Errorf("%w: depositor %s", ErrMissingSignature, p.Depositor)
	}

	var res DepositResult
	err := e.store.Update(ctx, func(tx ledger.Tx) error {
		pool, err := e.loadPool(tx, p.Pool)
		if err != nil {
			return err
		}
		round, err := e.loadRound(tx, p.Round)
		if err != nil {
			return err
		}
		if err := e.checkDepositAccounts(&p, &pool, &round); err != nil {
			return err
		}
		if round.Finished || round.DepositedCount >= round.Capacity {
			return fmt.Errorf("%w: round %q", ErrFinishedGame, round.ID)
		}
		fee, vaultAmount, err := Split(round.Bid)
		if err != nil {
			return err
		}

		// A receipt already at this address means the depositor paid before.
		receiptAddr, _, err := e.deriver.Find(receiptSeeds(p.Depositor, round.ID)...)
		if err != nil {
			return fmt.Errorf("derive receipt: %w", err)
		}
		if err := tx.CreateAccount(receiptAddr, e.ProgramID(), model.ReceiptSpace); err != nil {
			if errors.Is(err, ledger.ErrAddressInUse) {
				return fmt.Errorf("%w: %s in round %q: %w", ErrDuplicateDeposit, p.Depositor, round.ID, err)
			}
			return err
		}

		err = tx.TransferSplit(p.Depositor,
			ledger.Credit{To: p.FeeReceiver, Amount: fee},
			ledger.Credit{To: p.Vault, Amount: vaultAmount},
		)
		switch {
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return fmt.Errorf("%w: %w", ErrInsufficientFunds, err)
		case errors.Is(err, ledger.ErrInvalidTransferSource):
			return fmt.Errorf("%w: %w", ErrConstraintViolation, err)
		case errors.Is(err, ledger.ErrBalanceOverflow):
			return fmt.Errorf("%w: %w", ErrArithmeticOverflow, err)
		case err != nil:
			return err
		}

		receipt := model.Receipt{
			Depositor:     p.Depositor,
			Timestamp:     e.timestamp(),
			SequenceIndex: uint64(round.DepositedCount) + 1,
			RoundID:       round.ID,
		}
		data, err := model.EncodeReceipt(&receipt)
		if err != nil {
			return err
		}
		if err := tx.WriteData(receiptAddr, e.ProgramID(), data); err != nil {
			return err
		}

		round.DepositedCount++
		if round.DepositedCount == round.Capacity {
			round.Finished = true
			pool.LastFinishedRoundID = round.ID
			if err := e.writePool(tx, p.Pool, &pool); err != nil {
				return err
			}
		}
		if err := e.writeRound(tx, p.Round, &round); err != nil {
			return err
		}

		res = DepositResult{
			Round:          RoundView{Address: p.Round, Pool: p.Pool, Round: round},
			Receipt:        receipt,
			ReceiptAddress: receiptAddr,
			Fee:            fee,
			VaultAmount:    vaultAmount,
			Finished:       round.Finished,
		}
		return nil
	})
	if err != nil {
		return DepositResult{}, err
	}

	e.logger.Debug(ctx, "deposit accepted",
		logger.String("round_id", res.Receipt.RoundID),
		logger.Stringer("depositor", p.Depositor),
		logger.Uint64("sequence_index", res.Receipt.SequenceIndex),
		logger.Uint64("fee", res.Fee),
		logger.Uint64("vault", res.VaultAmount),
		logger.Bool("finished", res.Finished),
	)
	return res, nil
}
