package safe

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const stateCacheKey = "brickworks:safe:state"

// Cache holds the latest ledger snapshot in Redis so the console's frequent
// state refreshes do not hit Postgres. Every write path invalidates it.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a snapshot cache. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached snapshot, or false when absent.
func (c *Cache) Get(ctx context.Context) (State, bool) {
	if c == nil || c.client == nil {
		return State{}, false
	}
	raw, err := c.client.Get(ctx, stateCacheKey).Bytes()
	if err != nil {
		return State{}, false
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return State{}, false
	}
	return state, true
}

// Set stores the snapshot with the configured TTL.
func (c *Cache) Set(ctx context.Context, state State) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, stateCacheKey, raw, c.ttl).Err()
}

// Invalidate drops the cached snapshot.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	err := c.client.Del(ctx, stateCacheKey).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
