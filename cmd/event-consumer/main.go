package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/thredeisacoder/Amazon-Scraper/internal/config"
	"github.com/thredeisacoder/Amazon-Scraper/internal/database"
	"github.com/thredeisacoder/Amazon-Scraper/internal/events"
	"github.com/thredeisacoder/Amazon-Scraper/internal/models"
	"github.com/thredeisacoder/Amazon-Scraper/pkg/logger"
)

// event-consumer follows the scraper's event stream, logs every event and,
// when the database is enabled, persists scraped items.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("consumer failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Info("connected to Redis", "addr", cfg.Redis.Addr)

	var db *database.DB
	if cfg.Database.Enabled {
		var err error
		db, err = database.New(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return err
		}
	}

	hostname, _ := os.Hostname()
	consumer := events.NewConsumer(rdb, events.ConsumerConfig{
		Stream: cfg.Redis.Stream,
		Group:  getEnv("CONSUMER_GROUP", "scraper-consumers"),
		Name:   getEnv("CONSUMER_NAME", hostname),
	}, handle(db, log), log)

	return consumer.Run(ctx)
}

func handle(db *database.DB, log *slog.Logger) events.Handler {
	return func(ctx context.Context, env events.Envelope) error {
		switch env.EventType {
		case events.EventTypeItemScraped:
			var record models.ItemRecord
			if err := json.Unmarshal(env.Payload, &record); err != nil {
				return fmt.Errorf("failed to parse item: %w", err)
			}
			log.Info("item scraped", "event_id", env.EventID, "url", record.SourceURL, "title", record.Title)
			if db != nil {
				return db.SaveItem(ctx, &record)
			}
		case events.EventTypeCrawlCompleted:
			var payload events.CrawlCompletedPayload
			if err := json.Unmarshal(env.Payload, &payload); err != nil {
				return fmt.Errorf("failed to parse crawl summary: %w", err)
			}
			log.Info("crawl completed",
				"event_id", env.EventID,
				"job_id", payload.JobID,
				"url", payload.SearchURL,
				"products", payload.TotalProducts,
				"success_rate", payload.Summary,
			)
		default:
			log.Debug("skipping event", "type", env.EventType)
		}
		return nil
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
