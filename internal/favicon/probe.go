package favicon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// HTTPProber implements Prober on top of a pooled net/http client. The
// client must expose the redirect-resolved URL on the returned response.
type HTTPProber struct {
	client       *http.Client
	userAgent    string
	maxGetBytes  int64
	acceptHeader string
}

// NewHTTPProber wires a Prober around client. maxGetBytes bounds the body
// read of the ranged-GET secondary probe.
func NewHTTPProber(client *http.Client, userAgent string, maxGetBytes int64) *HTTPProber {
	if maxGetBytes <= 0 {
		maxGetBytes = 100 * 1024
	}
	return &HTTPProber{
		client:       client,
		userAgent:    userAgent,
		maxGetBytes:  maxGetBytes,
		acceptHeader: "image/*,*/*;q=0.8",
	}
}

// Head performs the lightweight existence check. A 2xx response succeeds
// even without a Content-Length header; many servers omit it for static
// assets.
func (p *HTTPProber) Head(ctx context.Context, rawURL string) ProbeOutcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return ProbeOutcome{Err: err}
	}
	p.decorate(req)
	resp, err := p.client.Do(req)
	if err != nil {
		return ProbeOutcome{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	return ProbeOutcome{
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
	}
}

// RangedGet re-probes with a partial-content GET. Any 2xx response with a
// non-empty payload is accepted as proof the asset exists.
func (p *HTTPProber) RangedGet(ctx context.Context, rawURL string) ProbeOutcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return ProbeOutcome{Err: err}
	}
	p.decorate(req)
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", p.maxGetBytes-1))
	resp, err := p.client.Do(req)
	if err != nil {
		return ProbeOutcome{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	outcome := ProbeOutcome{
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return outcome
	}
	buf := make([]byte, 1)
	n, readErr := io.LimitReader(resp.Body, p.maxGetBytes).Read(buf)
	if n == 0 {
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			outcome.Err = readErr
			return outcome
		}
		outcome.Empty = true
	}
	return outcome
}

func (p *HTTPProber) decorate(req *http.Request) {
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	req.Header.Set("Accept", p.acceptHeader)
}

// Succeeded reports whether a probe found the asset. A 2xx response with an
// empty payload is a miss, not a success.
func (o ProbeOutcome) Succeeded() bool {
	return o.Err == nil && !o.Empty && o.StatusCode >= 200 && o.StatusCode <= 299
}

// DefaultProbePolicy abandons the GET fallback only when the HEAD failure
// already proves the host is unreachable (DNS resolution failure); any other
// refusal, including 405-style method rejection, is worth a second probe.
func DefaultProbePolicy(head ProbeOutcome) bool {
	if head.Err == nil {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(head.Err, &dnsErr) {
		return false
	}
	if strings.Contains(head.Err.Error(), "no such host") {
		return false
	}
	return true
}
