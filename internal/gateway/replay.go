package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// replayTTL bounds how long a delivery id is remembered. Gateways retry for
// at most a couple of days, so a week of memory is plenty.
const replayTTL = 7 * 24 * time.Hour

// ReplayCache remembers webhook delivery ids that were already accepted.
type ReplayCache struct {
	client *redis.Client
}

// NewReplayCache constructs a cache on the given Redis client.
func NewReplayCache(client *redis.Client) *ReplayCache {
	return &ReplayCache{client: client}
}

// MarkSeen records the delivery id and reports whether it was already present.
// SET NX makes the check-and-set atomic across instances.
func (c *ReplayCache) MarkSeen(ctx context.Context, deliveryID string) (bool, error) {
	set, err := c.client.SetNX(ctx, "gateway:delivery:"+deliveryID, 1, replayTTL).Result()
	if err != nil {
		return false, fmt.Errorf("gateway: replay cache: %w", err)
	}
	return !set, nil
}

// Forget drops a delivery id so the gateway's retry can be reprocessed after
// a downstream failure.
func (c *ReplayCache) Forget(ctx context.Context, deliveryID string) error {
	return c.client.Del(ctx, "gateway:delivery:"+deliveryID).Err()
}
