package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/thredeisacoder/Amazon-Scraper/internal/models"
)

var ErrNotFound = errors.New("not found")

// CrawlSummary is one row of the crawls table.
type CrawlSummary struct {
	ID             string    `json:"id"`
	SearchURL      string    `json:"search_url"`
	PagesRequested int       `json:"pages_requested"`
	PagesProcessed int       `json:"pages_processed"`
	TotalProducts  int       `json:"total_products"`
	SuccessRate    float64   `json:"success_rate"`
	ScrapedAt      time.Time `json:"scraped_at"`
}

const upsertItem = `
	INSERT INTO scraped_items (source_url, asin, title, data, scraped_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (source_url) DO UPDATE SET
		asin = EXCLUDED.asin,
		title = EXCLUDED.title,
		data = EXCLUDED.data,
		scraped_at = EXCLUDED.scraped_at,
		updated_at = now()`

type execer interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// SaveItem upserts record keyed by its source URL. Error records are ignored.
func (db *DB) SaveItem(ctx context.Context, record *models.ItemRecord) error {
	return saveItem(ctx, db.pool, record)
}

func saveItem(ctx context.Context, q execer, record *models.ItemRecord) error {
	if record == nil || record.IsError() || record.SourceURL == "" {
		return nil
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	if _, err := q.Exec(ctx, upsertItem,
		record.SourceURL, nullable(record.ASIN), nullable(record.Title), data, record.ScrapedAt,
	); err != nil {
		return fmt.Errorf("failed to save item: %w", err)
	}
	return nil
}

// GetItem loads the latest record stored for sourceURL.
func (db *DB) GetItem(ctx context.Context, sourceURL string) (*models.ItemRecord, error) {
	var data []byte
	err := db.pool.QueryRow(ctx,
		`SELECT data FROM scraped_items WHERE source_url = $1`, sourceURL,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return decodeItem(data)
}

// SaveCrawl stores result under id together with every item it collected.
func (db *DB) SaveCrawl(ctx context.Context, id string, result *models.CrawlResult) error {
	if result == nil {
		return nil
	}

	return db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO crawls (id, search_url, pages_requested, pages_processed, total_products, success_rate, scraped_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING`,
			id, result.SearchURL, result.PagesRequested, result.PagesProcessed,
			result.TotalProducts, result.SuccessRate, result.ScrapedAt,
		); err != nil {
			return fmt.Errorf("failed to insert crawl: %w", err)
		}

		for _, item := range result.Items {
			if err := saveItem(ctx, tx, item); err != nil {
				return err
			}
			if item.IsError() || item.SourceURL == "" {
				continue
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO crawl_items (crawl_id, source_url, page_number, position_on_page)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT DO NOTHING`,
				id, item.SourceURL, item.PageNumber, item.PositionOnPage,
			); err != nil {
				return fmt.Errorf("failed to link crawl item: %w", err)
			}
		}
		return nil
	})
}

// RecentCrawls lists up to limit crawls, newest first.
func (db *DB) RecentCrawls(ctx context.Context, limit int) ([]CrawlSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.pool.Query(ctx, `
		SELECT id, search_url, pages_requested, pages_processed, total_products, success_rate, scraped_at
		FROM crawls
		ORDER BY scraped_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list crawls: %w", err)
	}

	crawls, err := pgx.CollectRows(rows, pgx.RowToStructByPos[CrawlSummary])
	if err != nil {
		return nil, fmt.Errorf("failed to scan crawls: %w", err)
	}
	return crawls, nil
}

// ItemScraped and CrawlCompleted let the database act as a job recorder.
func (db *DB) ItemScraped(ctx context.Context, record *models.ItemRecord) error {
	return db.SaveItem(ctx, record)
}

func (db *DB) CrawlCompleted(ctx context.Context, jobID string, result *models.CrawlResult) error {
	return db.SaveCrawl(ctx, jobID, result)
}

func decodeItem(data []byte) (*models.ItemRecord, error) {
	var record models.ItemRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode item: %w", err)
	}
	return &record, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
