// Package memory provides an in-process TTL cache for resolved favicons.
package memory

import (
	"context"
	"sync"
	"time"
)

// notFoundSentinel marks a confirmed "no favicon" entry, distinct from a
// missing entry.
const notFoundSentinel = "\x00not_found"

type entry struct {
	value     string
	expiresAt time.Time
}

// Cache implements favicon.Cache with a mutex-guarded map. Positive entries
// outlive negative ones: "favicon at X" changes far less often than "no
// favicon" does.
type Cache struct {
	mu          sync.RWMutex
	entries     map[string]entry
	positiveTTL time.Duration
	negativeTTL time.Duration
	now         func() time.Time
}

// New constructs a Cache. Zero TTLs fall back to 7 days positive and 1 day
// negative.
func New(positiveTTL, negativeTTL time.Duration) *Cache {
	if positiveTTL <= 0 {
		positiveTTL = 7 * 24 * time.Hour
	}
	if negativeTTL <= 0 {
		negativeTTL = 24 * time.Hour
	}
	return &Cache{
		entries:     make(map[string]entry),
		positiveTTL: positiveTTL,
		negativeTTL: negativeTTL,
		now:         time.Now,
	}
}

// Get returns the cached URL for domain; expired entries read as misses.
func (c *Cache) Get(_ context.Context, domain string) (string, bool, bool) {
	c.mu.RLock()
	e, ok := c.entries[domain]
	c.mu.RUnlock()
	if !ok || c.now().After(e.expiresAt) {
		return "", false, false
	}
	if e.value == notFoundSentinel {
		return "", true, true
	}
	return e.value, false, true
}

// Set stores a positive entry.
func (c *Cache) Set(_ context.Context, domain, url string) {
	c.store(domain, url, c.positiveTTL)
}

// SetNotFound stores the negative sentinel.
func (c *Cache) SetNotFound(_ context.Context, domain string) {
	c.store(domain, notFoundSentinel, c.negativeTTL)
}

func (c *Cache) store(domain, value string, ttl time.Duration) {
	c.mu.Lock()
	c.entries[domain] = entry{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// SetClock overrides the time source, primarily for expiry tests.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}
