package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/okian/wagerpool/internal/domain/address"
	"github.com/okian/wagerpool/pkg/metrics"
)

// MemoryStore is a process-local Store. Update transactions are serialized by
// a store-wide lock, which plays the part of the host ledger's write conflict
// detection: two transactions touching the same account never interleave.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[address.Address]Account
	closed   bool
}

// MemoryOption applies a configuration option to the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithBalances seeds the store with system-owned accounts.
func WithBalances(balances map[address.Address]uint64) MemoryOption {
	return func(s *MemoryStore) {
		for addr, bal := range balances {
			s.accounts[addr] = Account{Address: addr, Balance: bal}
		}
	}
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		accounts: make(map[address.Address]Account),
	}
	for _, opt := range opts {
		opt(s)
	}
	metrics.UpdateLedgerAccounts(len(s.accounts))
	return s
}

func (s *MemoryStore) load(addr address.Address) (Account, error) {
	a, ok := s.accounts[addr]
	if !ok {
		return Account{Address: addr}, nil
	}
	return a.clone(), nil
}

// Update runs fn under the write lock and commits its changes if fn succeeds.
func (s *MemoryStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	defer func() {
		metrics.RecordLedgerUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	t := newTxn(s.load, false)
	if err := fn(t); err != nil {
		return err
	}
	s.commit(t)
	return nil
}

func (s *MemoryStore) commit(t *txn) {
	for _, a := range t.changes() {
		s.accounts[a.Address] = a
	}
	metrics.UpdateLedgerAccounts(len(s.accounts))
}

// View runs fn under the read lock. Writes fail with ErrReadOnly.
func (s *MemoryStore) View(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return fn(newTxn(s.load, true))
}

// Airdrop credits amount to addr.
func (s *MemoryStore) Airdrop(ctx context.Context, addr address.Address, amount uint64) error {
	return s.Update(ctx, func(tx Tx) error {
		return tx.(*txn).mint(addr, amount)
	})
}

// Balance returns the value held at addr.
func (s *MemoryStore) Balance(ctx context.Context, addr address.Address) (uint64, error) {
	var bal uint64
	err := s.View(ctx, func(tx Tx) error {
		a, err := tx.Get(addr)
		bal = a.Balance
		return err
	})
	return bal, err
}

// Count returns the number of accounts.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts), nil
}

// TotalSupply sums every balance. Transfers never change it; only Airdrop does.
func (s *MemoryStore) TotalSupply() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total uint64
	for _, a := range s.accounts {
		total += a.Balance
	}
	return total
}

// Close marks the store closed. Further calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
