// Package redis provides the production favicon cache backed by Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// notFoundSentinel is the stored value meaning "confirmed no favicon". It is
// never a valid URL, so positive entries cannot collide with it.
const notFoundSentinel = "__NOT_FOUND__"

const keyPrefix = "favicon:"

// Config controls the Redis cache client.
type Config struct {
	Addr        string
	Password    string
	DB          int
	PositiveTTL time.Duration
	NegativeTTL time.Duration
	// OpTimeout bounds each cache call so a slow Redis never stalls a
	// resolution.
	OpTimeout time.Duration
}

// Cache implements favicon.Cache on a Redis instance. Every call degrades
// to a miss or a no-op when Redis is unreachable; the cache is an
// accelerator, never a dependency.
type Cache struct {
	client *goredis.Client
	cfg    Config
	logger *zap.Logger
}

// New constructs a Cache. The connection is lazy; an unreachable server
// shows up as logged misses, not as a constructor error.
func New(cfg Config, logger *zap.Logger) *Cache {
	if cfg.PositiveTTL <= 0 {
		cfg.PositiveTTL = 7 * 24 * time.Hour
	}
	if cfg.NegativeTTL <= 0 {
		cfg.NegativeTTL = 24 * time.Hour
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Cache{client: client, cfg: cfg, logger: logger}
}

// Get looks up the cached entry for domain.
func (c *Cache) Get(ctx context.Context, domain string) (string, bool, bool) {
	opCtx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()
	val, err := c.client.Get(opCtx, keyPrefix+domain).Result()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.logger.Warn("cache get failed", zap.String("domain", domain), zap.Error(err))
		}
		return "", false, false
	}
	if val == notFoundSentinel {
		return "", true, true
	}
	return val, false, true
}

// Set stores a positive entry under the positive TTL.
func (c *Cache) Set(ctx context.Context, domain, url string) {
	c.write(ctx, domain, url, c.cfg.PositiveTTL)
}

// SetNotFound stores the negative sentinel under the negative TTL.
func (c *Cache) SetNotFound(ctx context.Context, domain string) {
	c.write(ctx, domain, notFoundSentinel, c.cfg.NegativeTTL)
}

func (c *Cache) write(ctx context.Context, domain, value string, ttl time.Duration) {
	opCtx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
	defer cancel()
	if err := c.client.Set(opCtx, keyPrefix+domain, value, ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", zap.String("domain", domain), zap.Error(err))
	}
}

// Close releases the underlying Redis client.
func (c *Cache) Close() error {
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("close redis cache: %w", err)
	}
	return nil
}
