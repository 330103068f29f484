package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/thredeisacoder/Amazon-Scraper/internal/config"
)

type DB struct {
	pool *pgxpool.Pool
}

// DSN builds a postgres connection string from cfg.
func DSN(cfg config.DatabaseConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     "/" + cfg.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func New(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	return Open(ctx, DSN(cfg), cfg.MaxConns)
}

// Open connects to dsn and verifies the connection with a ping.
func Open(ctx context.Context, dsn string, maxConns int32) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// WithTx runs fn inside a transaction that is rolled back if fn fails.
func (db *DB) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS scraped_items (
	source_url  TEXT PRIMARY KEY,
	asin        TEXT,
	title       TEXT,
	data        JSONB NOT NULL,
	scraped_at  TIMESTAMPTZ,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_scraped_items_asin ON scraped_items (asin);

CREATE TABLE IF NOT EXISTS crawls (
	id              TEXT PRIMARY KEY,
	search_url      TEXT NOT NULL,
	pages_requested INT NOT NULL,
	pages_processed INT NOT NULL,
	total_products  INT NOT NULL,
	success_rate    DOUBLE PRECISION NOT NULL,
	scraped_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS crawl_items (
	crawl_id         TEXT NOT NULL REFERENCES crawls (id) ON DELETE CASCADE,
	source_url       TEXT NOT NULL,
	page_number      INT NOT NULL,
	position_on_page INT NOT NULL,
	PRIMARY KEY (crawl_id, source_url)
);
`

// Migrate creates the tables used by the store if they are missing.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
