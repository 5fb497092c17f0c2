package cmd

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	cacheMemory "github.com/mchale/favicon-harvester/internal/cache/memory"
	cacheRedis "github.com/mchale/favicon-harvester/internal/cache/redis"
	"github.com/mchale/favicon-harvester/internal/config"
	"github.com/mchale/favicon-harvester/internal/favicon"
	"github.com/mchale/favicon-harvester/internal/ratelimit"
)

// buildResolver assembles the discovery pipeline from configuration: the
// resolution cache, the favicon.ico prober, and the colly homepage fetcher.
// The returned cleanup func releases cache connections.
func buildResolver(
	cfg config.Config,
	reg prometheus.Registerer,
	logger *zap.Logger,
) (*favicon.Resolver, func(), error) {
	cache, cleanup := buildCache(cfg, logger)

	client := favicon.NewHTTPClient(favicon.ClientConfig{
		Timeout:      cfg.RequestTimeout(),
		MaxRedirects: cfg.HTTP.MaxRedirects,
		MaxSockets:   cfg.HTTP.MaxSockets,
		UserAgent:    cfg.Resolver.UserAgent,
	})
	prober := favicon.NewHTTPProber(client, cfg.Resolver.UserAgent, int64(cfg.HTTP.MaxGetBytes))

	fetcher, err := favicon.NewCollyFetcher(favicon.FetcherConfig{
		UserAgent:    cfg.Resolver.UserAgent,
		Timeout:      cfg.PageTimeout(),
		MaxBodyBytes: cfg.HTTP.MaxPageBytes,
		MaxRedirects: cfg.HTTP.MaxRedirects,
		MaxSockets:   cfg.HTTP.MaxSockets,
	}, logger.Named("fetcher"))
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("init page fetcher: %w", err)
	}

	var metrics *favicon.Metrics
	if reg != nil {
		metrics, err = favicon.NewMetrics(reg)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("register resolver metrics: %w", err)
		}
	}

	var limiter favicon.HostLimiter
	if cfg.Resolver.HostRPS > 0 {
		limiter = ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.Resolver.HostRPS,
			DefaultBurst: cfg.Resolver.HostBurst,
		})
	}

	resolver := favicon.NewResolver(cache, prober, fetcher, metrics, logger.Named("resolver"), favicon.ResolverConfig{
		Schemes:   cfg.Resolver.Schemes,
		AssetPath: cfg.Resolver.AssetPath,
		Limiter:   limiter,
	})
	return resolver, cleanup, nil
}

func buildCache(cfg config.Config, logger *zap.Logger) (favicon.Cache, func()) {
	switch cfg.Cache.Backend {
	case "redis":
		c := cacheRedis.New(cacheRedis.Config{
			Addr:        cfg.Cache.RedisAddr,
			Password:    cfg.Cache.RedisPassword,
			DB:          cfg.Cache.RedisDB,
			PositiveTTL: cfg.PositiveTTL(),
			NegativeTTL: cfg.NegativeTTL(),
		}, logger.Named("cache"))
		return c, func() {
			if err := c.Close(); err != nil {
				logger.Warn("redis cache close failed", zap.Error(err))
			}
		}
	case "none":
		return nil, func() {}
	default:
		return cacheMemory.New(cfg.PositiveTTL(), cfg.NegativeTTL()), func() {}
	}
}
