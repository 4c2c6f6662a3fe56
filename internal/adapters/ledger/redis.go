package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/wagerpool/internal/domain/address"
	"github.com/okian/wagerpool/pkg/logger"
	"github.com/okian/wagerpool/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

// Default Redis store configuration constants.
const (
	defaultKeyPrefix  = "wagerpool:"
	defaultMaxRetries = 16
)

// Hash fields of an account key.
const (
	fieldOwner   = "owner"
	fieldBalance = "balance"
	fieldData    = "data"
)

// RedisStore keeps accounts as Redis hashes. Update transactions WATCH every
// key they read and commit with MULTI/EXEC, so a concurrent write to any
// account the transaction observed aborts the commit and the transaction is
// replayed from scratch.
type RedisStore struct {
	client     redis.UniversalClient
	prefix     string
	maxRetries int
	logger     logger.Logger
}

// RedisOption applies a configuration option to the RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix namespaces every key written by the store.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithMaxRetries bounds how often a conflicting transaction is replayed.
func WithMaxRetries(n int) RedisOption {
	return func(s *RedisStore) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithRedisLogger sets the logger used for conflict diagnostics.
func WithRedisLogger(l logger.Logger) RedisOption {
	return func(s *RedisStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewRedisStore wraps an existing client. The store owns the client and closes it on Close.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:     client,
		prefix:     defaultKeyPrefix,
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(addr address.Address) string {
	return s.prefix + "acct:" + addr.String()
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "accounts"
}

// hashReader is the subset of client and transaction commands used for loads.
type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

func (s *RedisStore) read(ctx context.Context, c hashReader, addr address.Address) (Account, error) {
	fields, err := c.HGetAll(ctx, s.key(addr)).Result()
	if err != nil {
		return Account{}, fmt.Errorf("read account %s: %w", addr, err)
	}
	a := Account{Address: addr}
	if len(fields) == 0 {
		return a, nil
	}
	if owner := fields[fieldOwner]; len(owner) == address.Size {
		copy(a.Owner[:], owner)
	}
	if bal := fields[fieldBalance]; bal != "" {
		a.Balance, err = strconv.ParseUint(bal, 10, 64)
		if err != nil {
			return Account{}, fmt.Errorf("parse balance of %s: %w", addr, err)
		}
	}
	if data := fields[fieldData]; data != "" {
		a.Data = []byte(data)
	}
	return a, nil
}

// Update runs fn optimistically and replays it when a watched key changes underneath.
func (s *RedisStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	start := time.Now()
	defer func() {
		metrics.RecordLedgerUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			t := newTxn(func(addr address.Address) (Account, error) {
				if err := rtx.Watch(ctx, s.key(addr)).Err(); err != nil {
					return Account{}, err
				}
				return s.read(ctx, rtx, addr)
			}, false)

			if err := fn(t); err != nil {
				return err
			}
			changes := t.changes()
			if len(changes) == 0 {
				return nil
			}
			_, err := rtx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				for i := range changes {
					a := &changes[i]
					p.HSet(ctx, s.key(a.Address),
						fieldOwner, a.Owner[:],
						fieldBalance, strconv.FormatUint(a.Balance, 10),
						fieldData, a.Data,
					)
					p.SAdd(ctx, s.indexKey(), a.Address.String())
				}
				return nil
			})
			return err
		})
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		metrics.RecordLedgerConflict()
		if s.logger != nil {
			s.logger.Debug(ctx, "ledger transaction conflict, replaying", logger.Int("attempt", attempt+1))
		}
	}
	metrics.RecordErrorByComponent("ledger", "conflict_retries_exhausted")
	return ErrTooManyConflicts
}

// View runs fn against the current state without watching keys.
func (s *RedisStore) View(ctx context.Context, fn func(tx Tx) error) error {
	return fn(newTxn(func(addr address.Address) (Account, error) {
		return s.read(ctx, s.client, addr)
	}, true))
}

// Airdrop credits amount to addr.
func (s *RedisStore) Airdrop(ctx context.Context, addr address.Address, amount uint64) error {
	return s.Update(ctx, func(tx Tx) error {
		return tx.(*txn).mint(addr, amount)
	})
}

// Balance returns the value held at addr.
func (s *RedisStore) Balance(ctx context.Context, addr address.Address) (uint64, error) {
	a, err := s.read(ctx, s.client, addr)
	return a.Balance, err
}

// Count returns the number of accounts ever written.
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("count accounts: %w", err)
	}
	metrics.UpdateLedgerAccounts(int(n))
	return int(n), nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
