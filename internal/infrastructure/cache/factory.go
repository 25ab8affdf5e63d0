package cache

import (
	"fmt"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/oliehub/backend/internal/domain/shared"
	"github.com/oliehub/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Stores bundles the fast stores handed to the application layer
type Stores struct {
	Idempotency shared.IdempotencyStore
	SyncLogs    integration.SyncLogCache
	// Backend is "redis" or "memory"
	Backend string

	client *redis.Client
}

// Close releases the stores and the shared Redis client, if any
func (s *Stores) Close() error {
	if err := s.Idempotency.Close(); err != nil {
		return err
	}
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Factory creates the fast stores based on configuration
type Factory struct {
	redisConfig           config.RedisConfig
	logCacheSize          int
	logger                *zap.Logger
	allowInMemoryFallback bool
	dial                  func(config.RedisConfig) (*redis.Client, error)
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to
// in-memory stores. Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// NewFactory creates a new factory
func NewFactory(redisCfg config.RedisConfig, logCacheSize int, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           redisCfg,
		logCacheSize:          logCacheSize,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		dial:                  NewRedisClient,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns Redis stores when Redis is enabled and reachable, and
// in-memory stores otherwise
func (f *Factory) Create() (*Stores, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory sync stores")
		return f.inMemory(), nil
	}

	client, err := f.dial(f.redisConfig)
	if err == nil {
		f.logger.Info("Using Redis sync stores", zap.String("addr", f.redisConfig.Addr()))
		return &Stores{
			Idempotency: NewRedisIdempotencyStore(client, ""),
			SyncLogs:    NewRedisSyncLogCache(client, f.logCacheSize),
			Backend:     "redis",
			client:      client,
		}, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for sync stores but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory sync stores. "+
		"Webhook dedup is then per instance.",
		zap.Error(err),
	)
	return f.inMemory(), nil
}

func (f *Factory) inMemory() *Stores {
	return &Stores{
		Idempotency: NewInMemoryIdempotencyStore(0),
		SyncLogs:    NewInMemorySyncLogCache(f.logCacheSize),
		Backend:     "memory",
	}
}
