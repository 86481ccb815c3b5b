// Package cache stores entitlement snapshots in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nyashahama/gallery-paywall-backend/internal/entitlement"
)

const (
	keyPrefix = "entitlements:"
	genPrefix = "entitlements:gen:"
)

// setIfGeneration writes KEYS[1] only while KEYS[2] (missing reads as 0)
// still equals ARGV[1]. Returns 1 when written.
var setIfGeneration = redis.NewScript(`
local gen = redis.call("GET", KEYS[2]) or "0"
if gen ~= ARGV[1] then
  return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

// Entitlements is a Redis-backed entitlement.Cache.
type Entitlements struct {
	client *redis.Client
	ttl    time.Duration
}

// NewClient parses a redis:// URL and verifies the connection.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: parse REDIS_URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: connect to redis: %w", err)
	}
	return client, nil
}

// NewEntitlements returns a cache whose entries expire after ttl, so a lost
// invalidation heals on its own.
func NewEntitlements(client *redis.Client, ttl time.Duration) *Entitlements {
	return &Entitlements{client: client, ttl: ttl}
}

func key(purchaserID string) string    { return keyPrefix + purchaserID }
func genKey(purchaserID string) string { return genPrefix + purchaserID }

// Get returns the cached snapshot, or ok=false on a miss.
func (c *Entitlements) Get(ctx context.Context, purchaserID string) (entitlement.Snapshot, bool, error) {
	raw, err := c.client.Get(ctx, key(purchaserID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return entitlement.Snapshot{}, false, nil
	}
	if err != nil {
		return entitlement.Snapshot{}, false, fmt.Errorf("cache: get %s: %w", purchaserID, err)
	}

	var snap entitlement.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return entitlement.Snapshot{}, false, fmt.Errorf("cache: decode %s: %w", purchaserID, err)
	}
	return snap, true, nil
}

// Generation returns the purchaser's invalidation counter, zero if never
// invalidated. Generation keys carry no TTL so the counter never restarts.
func (c *Entitlements) Generation(ctx context.Context, purchaserID string) (int64, error) {
	gen, err := c.client.Get(ctx, genKey(purchaserID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache: generation %s: %w", purchaserID, err)
	}
	return gen, nil
}

// Set stores a snapshot under its purchaser id if the generation is still
// gen. It reports false when an invalidation happened in between.
func (c *Entitlements) Set(ctx context.Context, snap entitlement.Snapshot, gen int64) (bool, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return false, fmt.Errorf("cache: encode %s: %w", snap.PurchaserID, err)
	}
	written, err := setIfGeneration.Run(ctx, c.client,
		[]string{key(snap.PurchaserID), genKey(snap.PurchaserID)},
		strconv.FormatInt(gen, 10), raw, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("cache: set %s: %w", snap.PurchaserID, err)
	}
	return written == 1, nil
}

// Invalidate bumps the generation and deletes the cached snapshot in one
// transaction.
func (c *Entitlements) Invalidate(ctx context.Context, purchaserID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey(purchaserID))
		pipe.Del(ctx, key(purchaserID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache: invalidate %s: %w", purchaserID, err)
	}
	return nil
}
