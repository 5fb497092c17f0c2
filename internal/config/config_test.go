package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, []string{"https", "http"}, cfg.Resolver.Schemes)
	require.Equal(t, "/favicon.ico", cfg.Resolver.AssetPath)
	require.Equal(t, 100, cfg.Batch.WindowSize)
	require.Equal(t, "memory", cfg.Cache.Backend)
	require.Equal(t, 7*24*time.Hour, cfg.PositiveTTL())
	require.Equal(t, 24*time.Hour, cfg.NegativeTTL())
	require.Equal(t, 5*time.Second, cfg.RequestTimeout())
	require.Equal(t, 5*time.Second, cfg.PageTimeout())
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
resolver:
  schemes: ["https"]
  user_agent: harvesterbot
http:
  timeout_seconds: 8
  max_redirects: 5
batch:
  window_size: 25
  runners: 2
cache:
  backend: redis
  redis_addr: localhost:6379
  positive_ttl_hours: 48
storage:
  backend: gcs
  gcs_bucket: bucket
  prefix: runs
logging:
  development: false
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.True(t, cfg.Auth.Enabled)
	require.Equal(t, "secret", cfg.Auth.APIKey)
	require.Equal(t, []string{"https"}, cfg.Resolver.Schemes)
	require.Equal(t, "harvesterbot", cfg.Resolver.UserAgent)
	require.Equal(t, 8*time.Second, cfg.RequestTimeout())
	require.Equal(t, 25, cfg.Batch.WindowSize)
	require.Equal(t, 2, cfg.Batch.Runners)
	require.Equal(t, "redis", cfg.Cache.Backend)
	require.Equal(t, 48*time.Hour, cfg.PositiveTTL())
	require.Equal(t, "gcs", cfg.Storage.Backend)
	require.Equal(t, "bucket", cfg.Storage.GCSBucket)
	require.False(t, cfg.Logging.Development)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"no schemes", func(c *Config) { c.Resolver.Schemes = nil }, "resolver.schemes"},
		{"bad scheme", func(c *Config) { c.Resolver.Schemes = []string{"ftp"} }, "unsupported scheme"},
		{"zero window", func(c *Config) { c.Batch.WindowSize = 0 }, "batch.window_size"},
		{"redis without addr", func(c *Config) { c.Cache.Backend = "redis" }, "cache.redis_addr"},
		{"unknown cache", func(c *Config) { c.Cache.Backend = "etcd" }, "cache.backend"},
		{"gcs without bucket", func(c *Config) { c.Storage.Backend = "gcs" }, "storage.gcs_bucket"},
		{"auth without key", func(c *Config) { c.Auth.Enabled = true }, "auth.api_key"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := Load("")
			require.NoError(t, err)
			tc.mutate(&cfg)
			err = cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}
