package favicon

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ResolverConfig controls the per-domain discovery state machine.
type ResolverConfig struct {
	// Schemes is the ordered list of schemes to try. Defaults to https
	// before http.
	Schemes []string
	// AssetPath is the well-known binary asset probed before any HTML work.
	AssetPath string
	// Policy decides whether the ranged-GET fallback runs after a failed
	// HEAD probe. Defaults to DefaultProbePolicy.
	Policy ProbePolicy
	// Limiter throttles network requests per host. Nil disables limiting.
	Limiter HostLimiter
}

// HostLimiter gates outbound requests per target host.
type HostLimiter interface {
	Wait(ctx context.Context, host string) error
}

// Resolver maps one domain name to a best-effort favicon URL, trying the
// cheapest signals first. A single domain's network failures never surface
// as errors; only a fault escaping the whole state machine does.
type Resolver struct {
	cache   Cache
	prober  Prober
	pages   PageFetcher
	metrics *Metrics
	logger  *zap.Logger
	cfg     ResolverConfig
}

// NewResolver constructs a Resolver. cache may be nil-safe (use a noop
// implementation); prober and pages are required.
func NewResolver(
	cache Cache,
	prober Prober,
	pages PageFetcher,
	metrics *Metrics,
	logger *zap.Logger,
	cfg ResolverConfig,
) *Resolver {
	if len(cfg.Schemes) == 0 {
		cfg.Schemes = []string{"https", "http"}
	}
	if cfg.AssetPath == "" {
		cfg.AssetPath = "/favicon.ico"
	}
	if cfg.Policy == nil {
		cfg.Policy = DefaultProbePolicy
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = noopCache{}
	}
	return &Resolver{
		cache:   cache,
		prober:  prober,
		pages:   pages,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
	}
}

// Resolve runs the discovery state machine for one domain. It returns the
// resolved favicon URL, or an empty string when the domain definitively has
// none. A non-nil error is reserved for faults escaping the state machine;
// those results are never cached.
func (r *Resolver) Resolve(ctx context.Context, domain string) (string, error) {
	if domain == "" {
		return "", fmt.Errorf("domain is required")
	}
	start := time.Now()
	r.metrics.IncInFlight()
	defer r.metrics.DecInFlight()

	if url, negative, ok := r.cache.Get(ctx, domain); ok {
		if negative {
			r.metrics.ObserveCacheLookup("negative")
			r.metrics.ObserveResolution(StatusNotFound, time.Since(start))
			return "", nil
		}
		r.metrics.ObserveCacheLookup("hit")
		r.metrics.ObserveResolution(StatusFound, time.Since(start))
		return url, nil
	}
	r.metrics.ObserveCacheLookup("miss")

	if r.cfg.Limiter != nil {
		if err := r.cfg.Limiter.Wait(ctx, domain); err != nil {
			r.metrics.ObserveResolution(StatusError, time.Since(start))
			return "", fmt.Errorf("host rate limit: %w", err)
		}
	}

	for _, scheme := range r.cfg.Schemes {
		if url, ok := r.probeAsset(ctx, scheme, domain); ok {
			r.finish(ctx, domain, url, start)
			return url, nil
		}
		if url, ok := r.discoverFromPage(ctx, scheme, domain); ok {
			r.finish(ctx, domain, url, start)
			return url, nil
		}
	}

	r.cache.SetNotFound(ctx, domain)
	r.metrics.ObserveResolution(StatusNotFound, time.Since(start))
	r.logger.Debug("no favicon discovered", zap.String("domain", domain))
	return "", nil
}

func (r *Resolver) finish(ctx context.Context, domain, url string, start time.Time) {
	r.cache.Set(ctx, domain, url)
	r.metrics.ObserveResolution(StatusFound, time.Since(start))
	r.logger.Debug("favicon resolved",
		zap.String("domain", domain),
		zap.String("url", url),
	)
}

// probeAsset runs the HEAD probe against the well-known asset path, falling
// back to a ranged GET when the policy allows. Transport failures advance
// the state machine; they are never fatal.
func (r *Resolver) probeAsset(ctx context.Context, scheme, domain string) (string, bool) {
	target := fmt.Sprintf("%s://%s%s", scheme, domain, r.cfg.AssetPath)

	r.metrics.ObserveRequest("head", scheme)
	head := r.prober.Head(ctx, target)
	if head.Succeeded() {
		return head.FinalURL, true
	}
	if !r.cfg.Policy(head) {
		return "", false
	}

	r.metrics.ObserveRequest("ranged_get", scheme)
	get := r.prober.RangedGet(ctx, target)
	if get.Succeeded() {
		return get.FinalURL, true
	}
	return "", false
}

// discoverFromPage fetches the homepage and scans its markup for icon
// references. Fetch and parse failures are non-matches for this scheme.
func (r *Resolver) discoverFromPage(ctx context.Context, scheme, domain string) (string, bool) {
	r.metrics.ObserveRequest("page", scheme)
	page, err := r.pages.FetchPage(ctx, fmt.Sprintf("%s://%s", scheme, domain))
	if err != nil {
		r.logger.Debug("homepage fetch failed",
			zap.String("domain", domain),
			zap.String("scheme", scheme),
			zap.Error(err),
		)
		return "", false
	}
	if page.StatusCode < 200 || page.StatusCode > 299 || len(page.Body) == 0 {
		return "", false
	}
	url, err := DiscoverIcon(page, scheme)
	if err != nil || url == "" {
		return "", false
	}
	return url, true
}

// noopCache makes a missing cache indistinguishable from a cold one.
type noopCache struct{}

func (noopCache) Get(context.Context, string) (string, bool, bool) { return "", false, false }
func (noopCache) Set(context.Context, string, string)              {}
func (noopCache) SetNotFound(context.Context, string)              {}
