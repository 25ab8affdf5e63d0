// Package cache holds the Redis-backed fast stores of the sync service
// (recent sync log entries and webhook delivery dedup) together with
// in-memory equivalents used when Redis is disabled or unreachable.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/oliehub/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

// Key prefixes keep the stores apart when they share one Redis database
const (
	webhookKeyPrefix = "oliehub:webhook:"
	syncLogKey       = "oliehub:sync_logs:recent"
)

// pingTimeout bounds the connection check done at startup
const pingTimeout = 3 * time.Second

// NewRedisClient connects to Redis and verifies the connection with PING
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr(), err)
	}
	return client, nil
}
