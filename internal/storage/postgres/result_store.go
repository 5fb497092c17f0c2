// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mchale/favicon-harvester/internal/favicon"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ResultStoreConfig controls the Postgres connection pool used for
// resolution history rows.
type ResultStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// ResultStore archives finished batch results into Postgres, one row per
// resolved domain.
type ResultStore struct {
	pool  execCloser
	table string
}

// NewResultStore creates a Postgres-backed ResultStore using the provided config.
func NewResultStore(ctx context.Context, cfg ResultStoreConfig) (*ResultStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "resolutions"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ResultStore{
		pool:  pool,
		table: table,
	}, nil
}

// NewResultStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewResultStoreWithPool(pool execCloser, table string) (*ResultStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "resolutions"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ResultStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *ResultStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// ArchiveResults inserts one row per result. Rows are idempotent per
// (batch_id, rank): re-running a batch upserts the same keys.
func (s *ResultStore) ArchiveResults(
	ctx context.Context,
	batchID string,
	finished time.Time,
	results []favicon.Result,
) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("result store is not configured")
	}
	if batchID == "" {
		return fmt.Errorf("batch id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	batch_id,
	rank,
	domain,
	favicon_url,
	status,
	error_message,
	resolved_at
) VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (batch_id, rank) DO UPDATE SET
	favicon_url = EXCLUDED.favicon_url,
	status = EXCLUDED.status,
	error_message = EXCLUDED.error_message,
	resolved_at = EXCLUDED.resolved_at`, s.table)

	for _, res := range results {
		if _, err := s.pool.Exec(ctx, query,
			batchID,
			res.Rank,
			res.Domain,
			res.FaviconURL,
			string(res.Status),
			res.ErrorMessage,
			finished,
		); err != nil {
			return fmt.Errorf("insert result row for %s: %w", res.Domain, err)
		}
	}
	return nil
}
