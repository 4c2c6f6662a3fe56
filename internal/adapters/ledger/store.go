// Package ledger provides the record and value substrate the escrow engine
// runs on: accounts keyed by address, program-owned data, and all-or-nothing
// transactions over transfers and record writes.
package ledger

import (
	"context"
	"slices"

	"github.com/okian/wagerpool/internal/domain/address"
)

// Account is one addressed record on the ledger.
type Account struct {
	Address address.Address
	// Owner is the program allowed to write Data. Zero means system owned.
	Owner   address.Address
	Balance uint64
	Data    []byte
}

// Exists reports whether the account holds anything at all.
func (a *Account) Exists() bool {
	return a.Balance > 0 || len(a.Data) > 0 || !a.Owner.IsZero()
}

// HasRecord reports whether a program record has been allocated at the address.
func (a *Account) HasRecord() bool {
	return len(a.Data) > 0 || !a.Owner.IsZero()
}

func (a *Account) clone() Account {
	c := *a
	c.Data = slices.Clone(a.Data)
	return c
}

// Credit is one destination of a split transfer.
type Credit struct {
	To     address.Address
	Amount uint64
}

// Tx is the view a transaction function gets of the ledger. Nothing it does is
// visible to other callers until the enclosing Update returns nil.
type Tx interface {
	// Get returns the account at addr. Absent accounts come back empty, not as an error.
	Get(addr address.Address) (Account, error)

	// CreateAccount allocates a zeroed record of space bytes owned by owner.
	// Returns ErrAddressInUse if a record already exists at addr.
	CreateAccount(addr, owner address.Address, space int) error

	// WriteData replaces the record data. Only the owning program may write,
	// and the record cannot grow past its allocated space.
	WriteData(addr, owner address.Address, data []byte) error

	// Transfer moves amount from a system-owned account to another account.
	Transfer(from, to address.Address, amount uint64) error

	// TransferSplit debits the sum of credits from one account and applies every
	// credit, or fails without applying any.
	TransferSplit(from address.Address, credits ...Credit) error
}

// Store persists accounts and runs transactions against them.
type Store interface {
	// Update runs fn in a read-write transaction. If fn returns an error the
	// transaction is discarded and the error is returned unchanged.
	Update(ctx context.Context, fn func(tx Tx) error) error

	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(tx Tx) error) error

	// Airdrop credits amount to addr out of thin air. Development faucet only.
	Airdrop(ctx context.Context, addr address.Address, amount uint64) error

	// Balance returns the value held at addr.
	Balance(ctx context.Context, addr address.Address) (uint64, error)

	// Count returns the number of accounts known to the store.
	Count(ctx context.Context) (int, error)

	Close() error
}
