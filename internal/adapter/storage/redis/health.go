package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const healthKey = "health:" + clientName

// writable stores a short-lived marker. A read-only replica or an instance
// out of memory still answers PING but cannot hold replay keys.
func writable(ctx context.Context, client goredis.UniversalClient) error {
	stamp := time.Now().UTC().Format(time.RFC3339Nano)
	if err := client.Set(ctx, healthKey, stamp, 10*time.Second).Err(); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	return nil
}

// GuardHealth reports whether Redis can still record transfer replay keys.
type GuardHealth struct {
	client goredis.UniversalClient
}

func NewGuardHealth(client goredis.UniversalClient) *GuardHealth {
	return &GuardHealth{client: client}
}

func (h *GuardHealth) Ping(ctx context.Context) error {
	return writable(ctx, h.client)
}

func (h *GuardHealth) Name() string {
	return "redis:transfer-guard"
}
