package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/oliehub/backend/internal/domain/integration"
	"github.com/redis/go-redis/v9"
)

// ---------------------------------------------------------------------------
// Redis
// ---------------------------------------------------------------------------

// RedisSyncLogCache keeps the newest entries in a capped Redis list.
// LPUSH puts the newest entry at index 0, so LRANGE reads in reverse
// chronological order.
type RedisSyncLogCache struct {
	client *redis.Client
	key    string
	size   int
}

// NewRedisSyncLogCache creates a cache holding at most size entries
func NewRedisSyncLogCache(client *redis.Client, size int) *RedisSyncLogCache {
	if size < 1 {
		size = 50
	}
	return &RedisSyncLogCache{client: client, key: syncLogKey, size: size}
}

// Push prepends an entry and trims the list to its capacity
func (c *RedisSyncLogCache) Push(ctx context.Context, entry integration.SyncLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode sync log entry: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.LPush(ctx, c.key, data)
	pipe.LTrim(ctx, c.key, 0, int64(c.size-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push sync log entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first
func (c *RedisSyncLogCache) Recent(ctx context.Context, limit int) ([]integration.SyncLogEntry, error) {
	if limit < 1 || limit > c.size {
		limit = c.size
	}
	raw, err := c.client.LRange(ctx, c.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent sync logs: %w", err)
	}

	entries := make([]integration.SyncLogEntry, 0, len(raw))
	for _, item := range raw {
		var entry integration.SyncLogEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("failed to decode sync log entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ---------------------------------------------------------------------------
// In-memory
// ---------------------------------------------------------------------------

// InMemorySyncLogCache is a fixed-size ring of the newest entries
type InMemorySyncLogCache struct {
	mu      sync.RWMutex
	entries []integration.SyncLogEntry
	next    int
	full    bool
}

// NewInMemorySyncLogCache creates a ring holding at most size entries
func NewInMemorySyncLogCache(size int) *InMemorySyncLogCache {
	if size < 1 {
		size = 50
	}
	return &InMemorySyncLogCache{entries: make([]integration.SyncLogEntry, size)}
}

// Push stores an entry, overwriting the oldest one when full
func (c *InMemorySyncLogCache) Push(_ context.Context, entry integration.SyncLogEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[c.next] = entry
	c.next = (c.next + 1) % len(c.entries)
	if c.next == 0 {
		c.full = true
	}
	return nil
}

// Recent returns up to limit entries, newest first
func (c *InMemorySyncLogCache) Recent(_ context.Context, limit int) ([]integration.SyncLogEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stored := c.next
	if c.full {
		stored = len(c.entries)
	}
	if limit < 1 || limit > stored {
		limit = stored
	}

	out := make([]integration.SyncLogEntry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (c.next - i + len(c.entries)) % len(c.entries)
		out = append(out, c.entries[idx])
	}
	return out, nil
}

var (
	_ integration.SyncLogCache = (*RedisSyncLogCache)(nil)
	_ integration.SyncLogCache = (*InMemorySyncLogCache)(nil)
)
