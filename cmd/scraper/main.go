package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thredeisacoder/Amazon-Scraper/internal/browser"
	"github.com/thredeisacoder/Amazon-Scraper/internal/classifier"
	"github.com/thredeisacoder/Amazon-Scraper/internal/config"
	"github.com/thredeisacoder/Amazon-Scraper/internal/models"
	"github.com/thredeisacoder/Amazon-Scraper/internal/scraper"
	"github.com/thredeisacoder/Amazon-Scraper/internal/storage"
	"github.com/thredeisacoder/Amazon-Scraper/internal/transport"
	"github.com/thredeisacoder/Amazon-Scraper/pkg/logger"
)

const usageExamples = `Valid URL examples:
  Product pages:
    https://www.amazon.com/dp/B08N5WRWNW
    https://www.amazon.com/gp/product/B08N5WRWNW
  Search pages:
    https://www.amazon.com/s?k=cleaning+tools
    https://www.amazon.com/s?k=wireless+headphones
`

func main() {
	var (
		rawURL     = flag.String("url", "", "Amazon product or search URL")
		pages      = flag.Int("pages", 1, "Number of search result pages to crawl")
		output     = flag.String("output", "", "JSON output file (default: timestamped name in the current directory)")
		useBrowser = flag.Bool("browser", false, "Fetch pages with a headless browser instead of plain HTTP")
		open       = flag.Bool("open", false, "Open the scraped URL in the system browser when done")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *useBrowser {
		cfg.Scraper.UseBrowser = true
	}

	log := newLogger(cfg.Logging, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, os.Stdout, *rawURL, *pages, *output, *open); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var validation scraper.ValidationError
		if errors.As(err, &validation) || *rawURL == "" {
			fmt.Fprint(os.Stderr, "\n"+usageExamples)
		}
		os.Exit(1)
	}
}

// newLogger writes logs to w so stdout carries only results.
func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	return logger.NewWithWriter(w, cfg.Level, cfg.Format)
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger, out io.Writer, rawURL string, pages int, output string, open bool) error {
	if rawURL == "" {
		return errors.New("no URL given, use -url")
	}

	tr, cleanup, err := newTransport(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	items := scraper.NewItemScraper(cfg.Scraper, tr, scraper.WithLogger(log))

	var (
		result interface{}
		kind   string
	)
	switch classifier.New(cfg.Scraper.AllowedDomains).Classify(rawURL) {
	case classifier.Listing:
		kind = "search_results"
		crawl, err := scraper.NewCrawler(items).Crawl(ctx, rawURL, pages, func(msg string) {
			fmt.Fprintln(out, msg)
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, summarizeCrawl(crawl))
		result = crawl
	default:
		kind = "product"
		fmt.Fprintln(out, "Scraping product...")
		record, err := items.Scrape(ctx, rawURL)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, summarizeItem(record))
		result = record
	}

	if output == "" {
		output = storage.DefaultFilename(kind, time.Now())
	}
	if err := storage.WriteJSON(output, result); err != nil {
		return err
	}
	fmt.Fprintf(out, "Saved %s\n", output)

	if open {
		if err := openURL(rawURL); err != nil {
			log.Warn("could not open browser", "url", rawURL, "error", err)
		}
	}
	return nil
}

func summarizeItem(r *models.ItemRecord) string {
	title := r.Title
	if title == "" {
		title = "(no title)"
	}
	price := r.Price
	if price == "" {
		price = "n/a"
	}
	return fmt.Sprintf("Scraped %q, price %s, %d specifications", title, price, len(r.Specifications))
}

func summarizeCrawl(c *models.CrawlResult) string {
	return fmt.Sprintf("Crawled %d/%d pages, %d products, success rate %s",
		c.PagesProcessed, c.PagesRequested, c.TotalProducts, c.SuccessRateLabel())
}

func newTransport(cfg *config.Config, log *slog.Logger) (transport.Transport, func(), error) {
	if !cfg.Scraper.UseBrowser {
		return transport.NewHTTPTransport(cfg.Scraper.Timeout, log), func() {}, nil
	}

	userAgent := transport.NewIdentityPool(cfg.Scraper.UserAgents).UserAgent()
	b, err := browser.New(browser.OptionsFromConfig(cfg.Browser, userAgent), log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize browser: %w", err)
	}
	return b, func() {
		if err := b.Close(); err != nil {
			log.Warn("failed to close browser", "error", err)
		}
	}, nil
}
