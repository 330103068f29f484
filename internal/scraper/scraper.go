package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/thredeisacoder/Amazon-Scraper/internal/classifier"
	"github.com/thredeisacoder/Amazon-Scraper/internal/config"
	"github.com/thredeisacoder/Amazon-Scraper/internal/models"
	"github.com/thredeisacoder/Amazon-Scraper/internal/parser"
	"github.com/thredeisacoder/Amazon-Scraper/internal/ratelimit"
	"github.com/thredeisacoder/Amazon-Scraper/internal/transport"
)

// ItemScraper fetches and extracts a single item detail page.
type ItemScraper struct {
	cfg        config.ScraperConfig
	classifier *classifier.Classifier
	transport  transport.Transport
	identities *transport.IdentityPool
	parser     parser.Parser
	pacer      ratelimit.Pacer
	metrics    *Metrics
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*ItemScraper)

func WithPacer(p ratelimit.Pacer) Option {
	return func(s *ItemScraper) { s.pacer = p }
}

func WithMetrics(m *Metrics) Option {
	return func(s *ItemScraper) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *ItemScraper) { s.logger = l }
}

func WithParser(p parser.Parser) Option {
	return func(s *ItemScraper) { s.parser = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *ItemScraper) { s.now = now }
}

func NewItemScraper(cfg config.ScraperConfig, tr transport.Transport, opts ...Option) *ItemScraper {
	s := &ItemScraper{
		cfg:        cfg,
		classifier: classifier.New(cfg.AllowedDomains),
		transport:  tr,
		identities: transport.NewIdentityPool(cfg.UserAgents),
		pacer:      ratelimit.NewRandomPacer(),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.parser == nil {
		s.parser = parser.NewAmazonParser(s.logger).WithBaseURL(cfg.BaseURL)
	}
	s.logger = s.logger.With("component", "item_scraper")
	return s
}

// Scrape validates url, waits out the item delay, fetches the page and
// extracts every field it can. Missing fields are not errors.
func (s *ItemScraper) Scrape(ctx context.Context, url string) (*models.ItemRecord, error) {
	if err := s.ValidateItemURL(url); err != nil {
		s.fail(err)
		return nil, err
	}

	if err := s.pacer.Wait(ctx, s.cfg.ItemDelay); err != nil {
		return nil, err
	}

	doc, err := s.fetchDocument(ctx, url, "item")
	if err != nil {
		s.fail(err)
		return nil, err
	}

	record := models.NewItemRecord(url, s.now())
	if asin, ok := classifier.ExtractASIN(url); ok {
		record.ASIN = asin
	}
	s.parser.ParseItem(doc, record)

	s.metrics.IncItem("ok")
	s.logger.Debug("scraped item", "url", url, "asin", record.ASIN, "title", record.Title)
	return record, nil
}

// ValidateItemURL returns a ValidationError unless url is an item page on an
// allowed host.
func (s *ItemScraper) ValidateItemURL(url string) error {
	if s.classifier.Classify(url) != classifier.SingleItem {
		return invalidItemURL(url)
	}
	return nil
}

// ValidateListingURL is ValidateItemURL for listing pages.
func (s *ItemScraper) ValidateListingURL(url string) error {
	if s.classifier.Classify(url) != classifier.Listing {
		return invalidListingURL(url)
	}
	return nil
}

// ScrapeRecord is Scrape for callers that want the tagged error record
// instead of an error value.
func (s *ItemScraper) ScrapeRecord(ctx context.Context, url string) *models.ItemRecord {
	record, err := s.Scrape(ctx, url)
	if err != nil {
		return models.NewErrorRecord(err)
	}
	return record
}

// fetchDocument performs one fetch with a fresh identity and parses the body.
func (s *ItemScraper) fetchDocument(ctx context.Context, url, kind string) (*parser.Document, error) {
	start := time.Now()
	resp, err := s.transport.Fetch(ctx, url, s.identities.Headers())
	s.metrics.IncFetch(kind)
	s.metrics.ObserveFetch(time.Since(start))
	if err != nil {
		s.logger.Warn("fetch failed", "url", url, "error", err)
		return nil, NetworkError{URL: url, Err: err}
	}

	doc, err := parser.ParseDocument(resp.Body, resp.ContentType)
	if err != nil {
		return nil, ExtractionError{URL: url, Err: err}
	}
	return doc, nil
}

func (s *ItemScraper) fail(err error) {
	s.metrics.IncItem("error")
	s.metrics.IncError(ErrorKind(err))
}
