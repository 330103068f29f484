package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/thredeisacoder/Amazon-Scraper/internal/api"
	"github.com/thredeisacoder/Amazon-Scraper/internal/browser"
	"github.com/thredeisacoder/Amazon-Scraper/internal/config"
	"github.com/thredeisacoder/Amazon-Scraper/internal/database"
	"github.com/thredeisacoder/Amazon-Scraper/internal/events"
	"github.com/thredeisacoder/Amazon-Scraper/internal/jobs"
	"github.com/thredeisacoder/Amazon-Scraper/internal/scraper"
	"github.com/thredeisacoder/Amazon-Scraper/internal/transport"
	"github.com/thredeisacoder/Amazon-Scraper/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr, cleanup, err := newTransport(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize transport: %w", err)
	}
	defer cleanup()

	checks := map[string]api.HealthCheck{}
	var recorders []jobs.Recorder
	apiOpts := []api.Option{api.WithMaxPages(cfg.Scraper.MaxPagesPerCrawl)}

	if cfg.Database.Enabled {
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return err
		}
		checks["database"] = db.Ping
		recorders = append(recorders, db)
		apiOpts = append(apiOpts, api.WithStore(db))
	}

	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		recorders = append(recorders, events.NewPublisher(redisClient, cfg.Redis.Stream, log))
	}

	metrics := scraper.NewMetrics()
	items := scraper.NewItemScraper(cfg.Scraper, tr,
		scraper.WithMetrics(metrics),
		scraper.WithLogger(log),
	)
	crawler := scraper.NewCrawler(items)

	jobManager, err := jobs.NewManager(cfg.Jobs.Capacity, crawler, log, recorders...)
	if err != nil {
		return fmt.Errorf("failed to create job manager: %w", err)
	}

	handlers := api.NewHandlers(items, jobManager, checks, log, apiOpts...)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(handlers, metrics.Registry),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.Server.Port, "browser", cfg.Scraper.UseBrowser)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}
	if err := jobManager.Shutdown(shutdownCtx); err != nil {
		log.Error("job manager shutdown failed", "error", err)
	}
	return nil
}

// newTransport picks the rendered-page browser or the plain HTTP fetcher.
func newTransport(cfg *config.Config, log *slog.Logger) (transport.Transport, func(), error) {
	if !cfg.Scraper.UseBrowser {
		return transport.NewHTTPTransport(cfg.Scraper.Timeout, log), func() {}, nil
	}

	userAgent := transport.NewIdentityPool(cfg.Scraper.UserAgents).UserAgent()
	b, err := browser.New(browser.OptionsFromConfig(cfg.Browser, userAgent), log)
	if err != nil {
		return nil, nil, err
	}
	return b, func() {
		if err := b.Close(); err != nil {
			log.Warn("failed to close browser", "error", err)
		}
	}, nil
}
