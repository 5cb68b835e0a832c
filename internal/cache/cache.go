// Package cache keeps the detector's lookup tables (topic aliases, source
// tiers) warm between runs. Values are stored as JSON so the Redis and
// in-process stores are interchangeable: Redis when REDIS_ADDR is set, so
// replicas triggered by the same cron share one copy, an in-process store
// otherwise.
package cache

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// redisOpTimeout bounds one cache round trip; a slow Redis must never eat
// into the run budget, a miss just reloads from Postgres.
const redisOpTimeout = 500 * time.Millisecond

// Cache stores JSON-encoded values with a per-entry TTL. GetJSON reports
// false on a miss, an expired entry, or a decode failure; callers treat all
// three as "reload from the source of truth".
type Cache interface {
	GetJSON(key string, dest any) bool
	SetJSON(key string, val any, ttl time.Duration)
}

type memoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	payload  []byte
	storedAt time.Time
	ttl      time.Duration
}

func (e memoryEntry) expired(now time.Time) bool {
	return e.ttl > 0 && now.After(e.storedAt.Add(e.ttl))
}

// New returns the in-process store.
func New() Cache { return &memoryStore{entries: make(map[string]memoryEntry)} }

func (c *memoryStore) GetJSON(key string, dest any) bool {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || e.expired(time.Now()) {
		return false
	}
	return json.Unmarshal(e.payload, dest) == nil
}

func (c *memoryStore) SetJSON(key string, val any, ttl time.Duration) {
	payload, err := json.Marshal(val)
	if err != nil {
		return
	}
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	// lookup tables churn a handful of keys; sweeping on write keeps the
	// store from accumulating dead entries across long-lived processes
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = memoryEntry{payload: payload, storedAt: now, ttl: ttl}
}

type redisStore struct{ client *redis.Client }

// NewAuto picks Redis when REDIS_ADDR is set, the in-process store otherwise.
func NewAuto() Cache {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return &redisStore{client: redis.NewClient(&redis.Options{Addr: addr})}
	}
	return New()
}

func (c *redisStore) GetJSON(key string, dest any) bool {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(payload, dest) == nil
}

func (c *redisStore) SetJSON(key string, val any, ttl time.Duration) {
	payload, err := json.Marshal(val)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	_ = c.client.Set(ctx, key, payload, ttl).Err()
}
