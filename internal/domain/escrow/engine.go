// Package escrow implements the wager pool program: pool initialization,
// round lifecycle and the deposit protocol. All state lives in ledger records
// at derived addresses. The engine itself holds no pool state.
package escrow

import (
	"errors"
	"fmt"
	"time"

	"github.com/okian/wagerpool/internal/adapters/ledger"
	"github.com/okian/wagerpool/internal/domain/address"
	"github.com/okian/wagerpool/internal/domain/model"
	"github.com/okian/wagerpool/pkg/logger"
)

// DefaultMinBid is the smallest accepted bid in lamports.
const DefaultMinBid = 1

// Derivation seed tags.
const (
	roundTag   = "round"
	vaultTag   = "vault"
	receiptTag = "receipt"
)

// Engine executes escrow operations against a ledger.Store.
type Engine struct {
	store   ledger.Store
	deriver address.Deriver
	now     func() time.Time
	minBid  uint64
	logger  logger.Logger
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithClock overrides the time source used for receipt timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithMinBid sets the smallest bid CreateRound accepts.
func WithMinBid(minBid uint64) Option {
	return func(e *Engine) {
		if minBid > 0 {
			e.minBid = minBid
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine binds an engine to store and programID.
func NewEngine(store ledger.Store, programID address.Address, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		deriver: address.NewDeriver(programID),
		now:     time.Now,
		minBid:  DefaultMinBid,
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProgramID returns the program that owns every record the engine writes.
func (e *Engine) ProgramID() address.Address {
	return e.deriver.ProgramID()
}

// Store returns the underlying ledger.
func (e *Engine) Store() ledger.Store {
	return e.store
}

func poolSeeds(pool address.Address) [][]byte {
	return [][]byte{pool.Bytes()}
}

func roundSeeds(pool address.Address, id string) [][]byte {
	return [][]byte{pool.Bytes(), []byte(roundTag), []byte(id)}
}

func vaultSeeds(pool address.Address, id string) [][]byte {
	return [][]byte{pool.Bytes(), []byte(vaultTag), []byte(id)}
}

func receiptSeeds(depositor address.Address, roundID string) [][]byte {
	return [][]byte{depositor.Bytes(), []byte(receiptTag), []byte(roundID)}
}

// requireSigner accepts wallet identities only. Derived addresses are off the
// curve and have no key to sign with.
func requireSigner(signer address.Address) error {
	if signer.IsZero() || !address.IsOnCurve(signer) {
		return fmt.Errorf("%w: %s cannot sign", ErrMissingSignature, signer)
	}
	return nil
}

func validateRoundID(id string) error {
	if id == "" || len(id) > model.MaxIDLen {
		return fmt.Errorf("%w: %q must be 1..%d bytes", ErrInvalidRoundID, id, model.MaxIDLen)
	}
	return nil
}

// record loads a program-owned account, reporting absence as missing.
func (e *Engine) record(tx ledger.Tx, addr address.Address, missing error) (ledger.Account, error) {
	acct, err := tx.Get(addr)
	if err != nil {
		return acct, err
	}
	if !acct.HasRecord() {
		return acct, fmt.Errorf("%w: %s", missing, addr)
	}
	if acct.Owner != e.ProgramID() {
		return acct, fmt.Errorf("%w: %s is not owned by the program", ErrConstraintViolation, addr)
	}
	return acct, nil
}

// decodeErr maps record codec failures onto the escrow taxonomy.
func decodeErr(addr address.Address, missing, err error) error {
	switch {
	case errors.Is(err, model.ErrNotInitialized):
		return fmt.Errorf("%w: %s", missing, addr)
	case errors.Is(err, model.ErrDiscriminatorMismatch):
		return fmt.Errorf("%w: %s holds another record type", ErrConstraintViolation, addr)
	default:
		return fmt.Errorf("decode %s: %w", addr, err)
	}
}

func (e *Engine) loadPool(tx ledger.Tx, addr address.Address) (model.Pool, error) {
	acct, err := e.record(tx, addr, ErrNotInitialized)
	if err != nil {
		return model.Pool{}, err
	}
	p, err := model.DecodePool(acct.Data)
	if err != nil {
		return model.Pool{}, decodeErr(addr, ErrNotInitialized, err)
	}
	return p, nil
}

func (e *Engine) loadRound(tx ledger.Tx, addr address.Address) (model.Round, error) {
	acct, err := e.record(tx, addr, ErrNotFound)
	if err != nil {
		return model.Round{}, err
	}
	r, err := model.DecodeRound(acct.Data)
	if err != nil {
		return model.Round{}, decodeErr(addr, ErrNotFound, err)
	}
	return r, nil
}

func (e *Engine) loadReceipt(tx ledger.Tx, addr address.Address) (model.Receipt, error) {
	acct, err := e.record(tx, addr, ErrNotFound)
	if err != nil {
		return model.Receipt{}, err
	}
	rc, err := model.DecodeReceipt(acct.Data)
	if err != nil {
		return model.Receipt{}, decodeErr(addr, ErrNotFound, err)
	}
	return rc, nil
}

func (e *Engine) writePool(tx ledger.Tx, addr address.Address, p *model.Pool) error {
	data, err := model.EncodePool(p)
	if err != nil {
		return err
	}
	return tx.WriteData(addr, e.ProgramID(), data)
}

func (e *Engine) writeRound(tx ledger.Tx, addr address.Address, r *model.Round) error {
	data, err := model.EncodeRound(r)
	if err != nil {
		return err
	}
	return tx.WriteData(addr, e.ProgramID(), data)
}

func (e *Engine) timestamp() uint64 {
	sec := e.now().Unix()
	if sec < 0 {
		return 0
	}
	return uint64(sec)
}
