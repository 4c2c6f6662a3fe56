// Package model contains the persisted record types of the wager pool
// program and their fixed-size binary layouts.
package model

import (
	"github.com/okian/wagerpool/internal/domain/address"
)

// Record sizes including the discriminator.
const (
	PoolSpace    = DiscriminatorSize + 8 + stringSlot + 1 + address.Size
	RoundSpace   = DiscriminatorSize + address.Size + 1 + 1 + 1 + 8 + address.Size + address.Size + 1 + 1 + stringSlot + 1 + 32 + address.Size
	ReceiptSpace = DiscriminatorSize + address.Size + 8 + 8 + stringSlot
)

// InitialFinishedRoundID is stored in a fresh pool before any round completes.
const InitialFinishedRoundID = "0"

//nolint:gochecknoglobals // fixed type tags
var (
	PoolDiscriminator    = discriminatorFor("Pool")
	RoundDiscriminator   = discriminatorFor("Round")
	ReceiptDiscriminator = discriminatorFor("Receipt")
)

// Pool is the singleton state of one pool deployment.
type Pool struct {
	RoundCount          uint64          `json:"round_count"`
	LastFinishedRoundID string          `json:"last_finished_round_id"`
	Nonce               uint8           `json:"nonce"`
	Authority           address.Address `json:"authority"`
}

// Round is one capacity-limited wager.
type Round struct {
	Vault          address.Address `json:"vault"`
	Finished       bool            `json:"finished"`
	Odd            uint8           `json:"odd"`
	Capacity       uint8           `json:"capacity"`
	Bid            uint64          `json:"bid"`
	Creator        address.Address `json:"creator"`
	FeeReceiver    address.Address `json:"fee_receiver"`
	DepositedCount uint8           `json:"deposited_count"`
	Bump           uint8           `json:"bump"`
	ID             string          `json:"id"`
	VaultBump      uint8           `json:"vault_bump"`
	LastHash       [32]byte        `json:"-"` // reserved
	Authority      address.Address `json:"authority"`
}

// Open reports whether the round still accepts deposits.
func (r *Round) Open() bool {
	return !r.Finished && r.DepositedCount < r.Capacity
}

// Remaining is the number of deposits still needed to finish the round.
func (r *Round) Remaining() uint8 {
	if r.DepositedCount >= r.Capacity {
		return 0
	}
	return r.Capacity - r.DepositedCount
}

// Receipt proves one depositor paid into one round. Never mutated.
type Receipt struct {
	Depositor     address.Address `json:"depositor"`
	Timestamp     uint64          `json:"timestamp"`
	SequenceIndex uint64          `json:"sequence_index"`
	RoundID       string          `json:"round_id"`
}

// EncodePool serializes p into a PoolSpace buffer.
func EncodePool(p *Pool) ([]byte, error) {
	w := newWriter(PoolSpace, PoolDiscriminator)
	w.u64(p.RoundCount)
	w.str(p.LastFinishedRoundID)
	w.u8(p.Nonce)
	w.addr(p.Authority)
	return w.bytes()
}

// DecodePool parses a pool record.
func DecodePool(data []byte) (Pool, error) {
	var p Pool
	r, err := newReader(data, PoolDiscriminator)
	if err != nil {
		return p, err
	}
	p.RoundCount = r.u64()
	p.LastFinishedRoundID = r.str()
	p.Nonce = r.u8()
	p.Authority = r.addr()
	return p, r.err
}

// EncodeRound serializes r into a RoundSpace buffer.
func EncodeRound(r *Round) ([]byte, error) {
	w := newWriter(RoundSpace, RoundDiscriminator)
	w.addr(r.Vault)
	w.boolean(r.Finished)
	w.u8(r.Odd)
	w.u8(r.Capacity)
	w.u64(r.Bid)
	w.addr(r.Creator)
	w.addr(r.FeeReceiver)
	w.u8(r.DepositedCount)
	w.u8(r.Bump)
	w.str(r.ID)
	w.u8(r.VaultBump)
	w.raw(r.LastHash[:])
	w.addr(r.Authority)
	return w.bytes()
}

// DecodeRound parses a round record.
func DecodeRound(data []byte) (Round, error) {
	var out Round
	r, err := newReader(data, RoundDiscriminator)
	if err != nil {
		return out, err
	}
	out.Vault = r.addr()
	out.Finished = r.boolean()
	out.Odd = r.u8()
	out.Capacity = r.u8()
	out.Bid = r.u64()
	out.Creator = r.addr()
	out.FeeReceiver = r.addr()
	out.DepositedCount = r.u8()
	out.Bump = r.u8()
	out.ID = r.str()
	out.VaultBump = r.u8()
	copy(out.LastHash[:], r.take(32))
	out.Authority = r.addr()
	return out, r.err
}

// EncodeReceipt serializes rc into a ReceiptSpace buffer.
func EncodeReceipt(rc *Receipt) ([]byte, error) {
	w := newWriter(ReceiptSpace, ReceiptDiscriminator)
	w.addr(rc.Depositor)
	w.u64(rc.Timestamp)
	w.u64(rc.SequenceIndex)
	w.str(rc.RoundID)
	return w.bytes()
}

// DecodeReceipt parses a receipt record.
func DecodeReceipt(data []byte) (Receipt, error) {
	var rc Receipt
	r, err := newReader(data, ReceiptDiscriminator)
	if err != nil {
		return rc, err
	}
	rc.Depositor = r.addr()
	rc.Timestamp = r.u64()
	rc.SequenceIndex = r.u64()
	rc.RoundID = r.str()
	return rc, r.err
}
