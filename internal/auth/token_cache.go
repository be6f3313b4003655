// Package auth verifies bearer tokens against the payment service and memoizes the verdicts.
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/cristianortiz/auctionEngine/internal/shared/logger"
	"github.com/cristianortiz/auctionEngine/internal/shared/metrics"
)

var log = logger.GetLogger()

const DefaultTokenTTL = 60 * time.Second

// TokenCache memoizes allow/deny verdicts keyed by CacheKey.
type TokenCache interface {
	// Get reports ok=false on a miss or an expired entry.
	Get(ctx context.Context, key string) (allowed bool, ok bool)
	// Put always overwrites.
	Put(ctx context.Context, key string, allowed bool)
	Clear(ctx context.Context)
}

// CacheKey binds a verdict to the operation it was issued for.
func CacheKey(token, method string) string {
	return token + "::" + method
}

type tokenEntry struct {
	allowed   bool
	expiresAt time.Time
}

// MemoryTokenCache is a process-local TokenCache with lazy expiration:
// expired entries are purged on Get, there is no background sweep.
type MemoryTokenCache struct {
	mu      sync.Mutex
	entries map[string]tokenEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryTokenCache(ttl time.Duration) *MemoryTokenCache {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &MemoryTokenCache{
		entries: make(map[string]tokenEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryTokenCache) Get(_ context.Context, key string) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.purgeExpiredLocked()

	entry, ok := c.entries[key]
	if !ok {
		metrics.TokenCacheLookups.WithLabelValues("miss").Inc()
		return false, false
	}
	metrics.TokenCacheLookups.WithLabelValues("hit").Inc()
	return entry.allowed, true
}

func (c *MemoryTokenCache) Put(_ context.Context, key string, allowed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = tokenEntry{allowed: allowed, expiresAt: c.now().Add(c.ttl)}
}

func (c *MemoryTokenCache) Clear(context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]tokenEntry)
}

func (c *MemoryTokenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// purgeExpiredLocked must be called with mu held.
func (c *MemoryTokenCache) purgeExpiredLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if !entry.expiresAt.After(now) {
			delete(c.entries, key)
		}
	}
}
