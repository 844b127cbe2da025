package redis

import (
	"context"
	"fmt"

	"branch-ledger/config"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const clientName = "branch-ledger"

// NewClient connects the transfer replay guard and rate limiter. Every command
// is bounded by cfg.Timeout so a stalled Redis fails requests instead of
// holding them.
func NewClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		ClientName:   clientName,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	if err := writable(ctx, client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis at %s: %w", cfg.Addr(), err)
	}

	log.Info().
		Str("addr", cfg.Addr()).
		Int("db", cfg.DB).
		Dur("timeout", cfg.Timeout).
		Msg("transfer guard connected")

	return client, nil
}
