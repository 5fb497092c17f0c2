package favicon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestFetcher(t *testing.T) *CollyFetcher {
	t.Helper()

	fetcher, err := NewCollyFetcher(FetcherConfig{
		UserAgent:    "favicon-harvester-test",
		MaxBodyBytes: 1024,
	}, zap.NewNop())
	require.NoError(t, err)
	return fetcher
}

func TestFetchPageReturnsBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<head><link rel="icon" href="/fav.ico"></head>`))
	}))
	t.Cleanup(srv.Close)

	page, err := newTestFetcher(t).FetchPage(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, page.StatusCode)
	require.Contains(t, string(page.Body), "fav.ico")
}

func TestFetchPageFollowsRedirects(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/home", http.StatusMovedPermanently)
			return
		}
		_, _ = w.Write([]byte("<html></html>"))
	}))
	t.Cleanup(srv.Close)

	page, err := newTestFetcher(t).FetchPage(context.Background(), srv.URL)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(page.FinalURL, "/home"))
}

func TestFetchPageBoundsBodySize(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, 64*1024))
	}))
	t.Cleanup(srv.Close)

	page, err := newTestFetcher(t).FetchPage(context.Background(), srv.URL)
	require.NoError(t, err)
	require.LessOrEqual(t, len(page.Body), 1024)
}

func TestFetchPageConnectionError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	srv.Close()

	_, err := newTestFetcher(t).FetchPage(context.Background(), srv.URL)
	require.Error(t, err)
}
