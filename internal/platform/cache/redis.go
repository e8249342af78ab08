// Package cache owns the Redis client backing webhook replay suppression.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultPingTimeout bounds the startup reachability check when the config
// does not set one.
const defaultPingTimeout = 5 * time.Second

// Config tunes the Redis connection.
type Config struct {
	Addr        string
	PingTimeout time.Duration
}

// New connects to Redis and verifies the server is reachable before
// returning the client.
func New(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping %s: %w", cfg.Addr, err)
	}

	return client, nil
}
