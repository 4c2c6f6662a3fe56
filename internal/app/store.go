package service

import (
	"context"
	"fmt"

	"github.com/okian/wagerpool/internal/adapters/ledger"
	"github.com/okian/wagerpool/internal/config"
	"github.com/okian/wagerpool/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// OpenStore builds the ledger selected by cfg. Redis connections are checked
// with a PING before the store is returned.
func OpenStore(ctx context.Context, cfg *config.Config, log logger.Logger) (ledger.Store, error) {
	switch cfg.LedgerBackend {
	case config.BackendMemory:
		return ledger.NewMemoryStore(), nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		log.Info(ctx, "using redis ledger",
			logger.String("addr", cfg.RedisAddr),
			logger.Int("db", cfg.RedisDB),
			logger.String("prefix", cfg.RedisKeyPrefix),
		)
		return ledger.NewRedisStore(client,
			ledger.WithKeyPrefix(cfg.RedisKeyPrefix),
			ledger.WithMaxRetries(cfg.MaxTxRetries),
			ledger.WithRedisLogger(log.Named("ledger")),
		), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnsupportedBackend, cfg.LedgerBackend)
	}
}
