package favicon

import (
	"context"
	"time"
)

// Cache is the shared domain -> favicon URL store consulted before any
// network work. Implementations must degrade to a miss/no-op when the
// backing store is unreachable; a cache failure never fails a resolution.
type Cache interface {
	// Get returns the cached URL for domain. negative reports a stored
	// "confirmed no favicon" sentinel; ok reports whether any entry exists.
	Get(ctx context.Context, domain string) (url string, negative bool, ok bool)
	// Set stores a positive entry under the positive TTL.
	Set(ctx context.Context, domain, url string)
	// SetNotFound stores the negative sentinel under the negative TTL.
	SetNotFound(ctx context.Context, domain string)
}

// Page is a fetched homepage document.
type Page struct {
	// FinalURL is the URL the HTTP client landed on after redirects, used
	// as the base for resolving relative icon references.
	FinalURL   string
	StatusCode int
	Body       []byte
}

// PageFetcher retrieves a homepage as bounded text for icon discovery.
type PageFetcher interface {
	FetchPage(ctx context.Context, rawURL string) (Page, error)
}

// ProbeOutcome classifies one lightweight existence probe.
type ProbeOutcome struct {
	// FinalURL is the redirect-resolved asset URL on success.
	FinalURL   string
	StatusCode int
	// Empty marks a 2xx response whose payload was empty. An empty body
	// proves nothing, so the probe counts as a miss.
	Empty bool
	// Err is the transport error, nil when a response was received.
	Err error
}

// Prober performs the HEAD-equivalent existence check and the ranged-GET
// secondary probe against a well-known asset path.
type Prober interface {
	Head(ctx context.Context, rawURL string) ProbeOutcome
	RangedGet(ctx context.Context, rawURL string) ProbeOutcome
}

// ProbePolicy decides whether the ranged-GET fallback should run after a
// HEAD probe failed. Returning false abandons the scheme entirely.
type ProbePolicy func(head ProbeOutcome) bool

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
