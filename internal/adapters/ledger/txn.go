package ledger

import (
	"fmt"
	"math/bits"
	"slices"

	"github.com/okian/wagerpool/internal/domain/address"
)

// txn is a copy-on-write overlay shared by every Store implementation.
// Reads go through load once per address; writes stay in cache until commit.
type txn struct {
	load     func(addr address.Address) (Account, error)
	cache    map[address.Address]Account
	dirty    map[address.Address]struct{}
	readOnly bool
}

func newTxn(load func(addr address.Address) (Account, error), readOnly bool) *txn {
	return &txn{
		load:     load,
		cache:    make(map[address.Address]Account),
		dirty:    make(map[address.Address]struct{}),
		readOnly: readOnly,
	}
}

func (t *txn) account(addr address.Address) (Account, error) {
	if a, ok := t.cache[addr]; ok {
		return a, nil
	}
	a, err := t.load(addr)
	if err != nil {
		return Account{}, err
	}
	a.Address = addr
	t.cache[addr] = a
	return a, nil
}

func (t *txn) put(a *Account) {
	t.cache[a.Address] = *a
	t.dirty[a.Address] = struct{}{}
}

// changes returns the dirty accounts in a stable order.
func (t *txn) changes() []Account {
	out := make([]Account, 0, len(t.dirty))
	for addr := range t.dirty {
		out = append(out, t.cache[addr])
	}
	slices.SortFunc(out, func(a, b Account) int {
		return slices.Compare(a.Address[:], b.Address[:])
	})
	return out
}

func (t *txn) Get(addr address.Address) (Account, error) {
	a, err := t.account(addr)
	if err != nil {
		return Account{}, err
	}
	return a.clone(), nil
}

func (t *txn) CreateAccount(addr, owner address.Address, space int) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if space <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSpace, space)
	}
	a, err := t.account(addr)
	if err != nil {
		return err
	}
	if a.HasRecord() {
		return fmt.Errorf("%w: %s", ErrAddressInUse, addr)
	}
	a.Owner = owner
	a.Data = make([]byte, space)
	t.put(&a)
	return nil
}

func (t *txn) WriteData(addr, owner address.Address, data []byte) error {
	if t.readOnly {
		return ErrReadOnly
	}
	a, err := t.account(addr)
	if err != nil {
		return err
	}
	if !a.HasRecord() {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	if a.Owner != owner {
		return fmt.Errorf("%w: %s", ErrOwnerMismatch, addr)
	}
	if len(data) > len(a.Data) {
		return fmt.Errorf("%w: %d > %d", ErrDataTooLarge, len(data), len(a.Data))
	}
	buf := make([]byte, len(a.Data))
	copy(buf, data)
	a.Data = buf
	t.put(&a)
	return nil
}

func (t *txn) Transfer(from, to address.Address, amount uint64) error {
	return t.TransferSplit(from, Credit{To: to, Amount: amount})
}

func (t *txn) TransferSplit(from address.Address, credits ...Credit) error {
	if t.readOnly {
		return ErrReadOnly
	}
	src, err := t.account(from)
	if err != nil {
		return err
	}
	if src.HasRecord() {
		return fmt.Errorf("%w: %s", ErrInvalidTransferSource, from)
	}

	var total uint64
	for _, c := range credits {
		sum, carry := bits.Add64(total, c.Amount, 0)
		if carry != 0 {
			return ErrBalanceOverflow
		}
		total = sum
	}
	if src.Balance < total {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, from, src.Balance, total)
	}

	// Stage every balance before touching the cache so a late failure leaves
	// the overlay untouched.
	staged := map[address.Address]Account{from: src}
	s := staged[from]
	s.Balance -= total
	staged[from] = s
	for _, c := range credits {
		dst, ok := staged[c.To]
		if !ok {
			dst, err = t.account(c.To)
			if err != nil {
				return err
			}
		}
		sum, carry := bits.Add64(dst.Balance, c.Amount, 0)
		if carry != 0 {
			return fmt.Errorf("%w: %s", ErrBalanceOverflow, c.To)
		}
		dst.Balance = sum
		staged[c.To] = dst
	}
	for _, a := range staged {
		t.put(&a)
	}
	return nil
}

// mint credits value without a source. Used by faucets.
func (t *txn) mint(addr address.Address, amount uint64) error {
	a, err := t.account(addr)
	if err != nil {
		return err
	}
	sum, carry := bits.Add64(a.Balance, amount, 0)
	if carry != 0 {
		return fmt.Errorf("%w: %s", ErrBalanceOverflow, addr)
	}
	a.Balance = sum
	t.put(&a)
	return nil
}
