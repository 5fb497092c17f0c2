package favicon

import (
	"fmt"
	"net/http"
	"time"
)

// ClientConfig tunes the pooled HTTP client shared by probe requests.
type ClientConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	// MaxSockets caps connections per host; it should be at least the batch
	// concurrency ceiling so the client never queues behind itself.
	MaxSockets int
	UserAgent  string
}

// NewHTTPClient builds the pooled client used for favicon probes. Redirects
// are followed up to MaxRedirects hops; the response ultimately returned
// carries the redirect-resolved URL in Response.Request.URL.
func NewHTTPClient(cfg ClientConfig) *http.Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 3
	}
	if cfg.MaxSockets <= 0 {
		cfg.MaxSockets = 128
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          cfg.MaxSockets,
		MaxIdleConnsPerHost:   8,
		MaxConnsPerHost:       cfg.MaxSockets,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   cfg.Timeout,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", cfg.MaxRedirects)
			}
			return nil
		},
	}
}
