package favicon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestProber(t *testing.T, handler http.HandlerFunc) (*HTTPProber, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewHTTPClient(ClientConfig{MaxRedirects: 3})
	return NewHTTPProber(client, "favicon-harvester-test", 100*1024), srv
}

func TestHeadSucceedsWithoutContentLength(t *testing.T) {
	t.Parallel()

	prober, srv := newTestProber(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodHead, r.Method)
		// No Content-Length for HEAD; many static servers omit it.
		w.WriteHeader(http.StatusOK)
	})

	out := prober.Head(context.Background(), srv.URL+"/favicon.ico")
	require.True(t, out.Succeeded())
	require.Equal(t, srv.URL+"/favicon.ico", out.FinalURL)
}

func TestHeadReportsRedirectResolvedURL(t *testing.T) {
	t.Parallel()

	prober, srv := newTestProber(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/favicon.ico" {
			http.Redirect(w, r, "/static/favicon.ico", http.StatusMovedPermanently)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	out := prober.Head(context.Background(), srv.URL+"/favicon.ico")
	require.True(t, out.Succeeded())
	require.Equal(t, srv.URL+"/static/favicon.ico", out.FinalURL)
}

func TestHeadFailsAfterRedirectCap(t *testing.T) {
	t.Parallel()

	hops := 0
	prober, srv := newTestProber(t, func(w http.ResponseWriter, r *http.Request) {
		hops++
		http.Redirect(w, r, fmt.Sprintf("/hop%d", hops), http.StatusFound)
	})

	out := prober.Head(context.Background(), srv.URL+"/favicon.ico")
	require.False(t, out.Succeeded())
	require.Error(t, out.Err)
}

func TestHeadNon2xxIsMiss(t *testing.T) {
	t.Parallel()

	prober, srv := newTestProber(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	out := prober.Head(context.Background(), srv.URL+"/favicon.ico")
	require.False(t, out.Succeeded())
	require.NoError(t, out.Err)
	require.Equal(t, http.StatusNotFound, out.StatusCode)
}

func TestRangedGetSendsRangeHeader(t *testing.T) {
	t.Parallel()

	prober, srv := newTestProber(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "bytes=0-102399", r.Header.Get("Range"))
		_, _ = w.Write([]byte{0x00, 0x01, 0x02})
	})

	out := prober.RangedGet(context.Background(), srv.URL+"/favicon.ico")
	require.True(t, out.Succeeded())
}

func TestRangedGetEmptyBodyIsMiss(t *testing.T) {
	t.Parallel()

	prober, srv := newTestProber(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	out := prober.RangedGet(context.Background(), srv.URL+"/favicon.ico")
	require.False(t, out.Succeeded())
	require.True(t, out.Empty)
	require.Equal(t, http.StatusOK, out.StatusCode)
}

func TestRangedGetAcceptsPartialContent(t *testing.T) {
	t.Parallel()

	prober, srv := newTestProber(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte("ico"))
	})

	out := prober.RangedGet(context.Background(), srv.URL+"/favicon.ico")
	require.True(t, out.Succeeded())
}

func TestDefaultProbePolicy(t *testing.T) {
	t.Parallel()

	require.True(t, DefaultProbePolicy(ProbeOutcome{StatusCode: http.StatusMethodNotAllowed}))
	require.True(t, DefaultProbePolicy(ProbeOutcome{Err: errors.New("connection refused")}))
	require.False(t, DefaultProbePolicy(ProbeOutcome{Err: &net.DNSError{Err: "no such host", Name: "missing.example"}}))
	require.False(t, DefaultProbePolicy(ProbeOutcome{Err: errors.New("dial tcp: lookup x: no such host")}))
}
