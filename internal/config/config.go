// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Batch    BatchConfig    `mapstructure:"batch"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// ResolverConfig governs per-domain favicon resolution.
type ResolverConfig struct {
	Schemes   []string `mapstructure:"schemes"`
	AssetPath string   `mapstructure:"asset_path"`
	UserAgent string   `mapstructure:"user_agent"`
	// HostRPS throttles requests per target host; 0 disables throttling.
	HostRPS   float64 `mapstructure:"host_rps"`
	HostBurst int     `mapstructure:"host_burst"`
}

// HTTPConfig configures the outbound HTTP clients.
type HTTPConfig struct {
	TimeoutSeconds  int `mapstructure:"timeout_seconds"`
	MaxRedirects    int `mapstructure:"max_redirects"`
	MaxSockets      int `mapstructure:"max_sockets"`
	MaxGetBytes     int `mapstructure:"max_get_bytes"`
	MaxPageBytes    int `mapstructure:"max_page_bytes"`
	PageTimeoutSecs int `mapstructure:"page_timeout_seconds"`
}

// BatchConfig governs batch orchestration.
type BatchConfig struct {
	WindowSize int `mapstructure:"window_size"`
	QueueDepth int `mapstructure:"queue_depth"`
	Runners    int `mapstructure:"runners"`
}

// CacheConfig selects and tunes the resolution cache.
type CacheConfig struct {
	Backend          string `mapstructure:"backend"`
	RedisAddr        string `mapstructure:"redis_addr"`
	RedisPassword    string `mapstructure:"redis_password"`
	RedisDB          int    `mapstructure:"redis_db"`
	PositiveTTLHours int    `mapstructure:"positive_ttl_hours"`
	NegativeTTLHours int    `mapstructure:"negative_ttl_hours"`
}

// StorageConfig sets where batch result files are written.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls access to the relational result archive.
type DBConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// PubSubConfig holds metadata for batch completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FAVHARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("resolver.schemes", []string{"https", "http"})
	v.SetDefault("resolver.asset_path", "/favicon.ico")
	v.SetDefault("resolver.user_agent", "favicon-harvester/0.1")
	v.SetDefault("http.timeout_seconds", 5)
	v.SetDefault("http.max_redirects", 3)
	v.SetDefault("http.max_sockets", 128)
	v.SetDefault("http.max_get_bytes", 100*1024)
	v.SetDefault("http.max_page_bytes", 512*1024)
	v.SetDefault("http.page_timeout_seconds", 5)
	v.SetDefault("batch.window_size", 100)
	v.SetDefault("batch.queue_depth", 64)
	v.SetDefault("batch.runners", 1)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.positive_ttl_hours", 7*24)
	v.SetDefault("cache.negative_ttl_hours", 24)
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_dir", "results")
	v.SetDefault("storage.prefix", "batches")
	v.SetDefault("db.table", "resolutions")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if len(c.Resolver.Schemes) == 0 {
		return fmt.Errorf("resolver.schemes must not be empty")
	}
	for _, s := range c.Resolver.Schemes {
		if s != "http" && s != "https" {
			return fmt.Errorf("resolver.schemes contains unsupported scheme %q", s)
		}
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Batch.WindowSize <= 0 {
		return fmt.Errorf("batch.window_size must be > 0")
	}
	if c.Batch.Runners <= 0 {
		return fmt.Errorf("batch.runners must be > 0")
	}
	switch c.Cache.Backend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("cache.backend must be one of memory, redis, none")
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
		return fmt.Errorf("cache.redis_addr must be set when cache.backend is redis")
	}
	switch c.Storage.Backend {
	case "local", "gcs", "memory":
	default:
		return fmt.Errorf("storage.backend must be one of local, gcs, memory")
	}
	if c.Storage.Backend == "gcs" && c.Storage.GCSBucket == "" {
		return fmt.Errorf("storage.gcs_bucket must be set when storage.backend is gcs")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// RequestTimeout converts the HTTP timeout config into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// PageTimeout returns the homepage fetch deadline.
func (c Config) PageTimeout() time.Duration {
	return time.Duration(c.HTTP.PageTimeoutSecs) * time.Second
}

// PositiveTTL returns how long successful resolutions stay cached.
func (c Config) PositiveTTL() time.Duration {
	return time.Duration(c.Cache.PositiveTTLHours) * time.Hour
}

// NegativeTTL returns how long not-found results stay cached.
func (c Config) NegativeTTL() time.Duration {
	return time.Duration(c.Cache.NegativeTTLHours) * time.Hour
}
