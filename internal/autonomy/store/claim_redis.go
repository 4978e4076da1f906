package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClaimer hands out short-lived exclusive claims on rollback trigger keys
// so concurrent recovery cycles in different processes skip each other's work.
// The unique trigger key in the rollback table remains the authority.
type RedisClaimer struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
}

func NewRedisClaimer(client redis.Cmdable, ttl time.Duration) *RedisClaimer {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisClaimer{client: client, ttl: ttl, prefix: "permitpulse:rollback-claim:"}
}

// Claim reports whether the caller now owns key.
func (c *RedisClaimer) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.prefix+key, "1", c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return ok, nil
}

// Release drops a claim early, e.g. when the rollback insert failed.
func (c *RedisClaimer) Release(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}
