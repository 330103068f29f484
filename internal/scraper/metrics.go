package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for scrapes and crawls. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Registry        *prometheus.Registry
	FetchesTotal    *prometheus.CounterVec
	FetchDuration   prometheus.Histogram
	ItemsTotal      *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
	PagesTotal      prometheus.Counter
	CrawlsTotal     *prometheus.CounterVec
	CrawlsEarlyStop prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	fetches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_fetches_total",
			Help: "Total documents fetched, by page kind.",
		},
		[]string{"kind"},
	)
	fetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_fetch_duration_seconds",
			Help:    "Transport latency for document fetches.",
			Buckets: prometheus.DefBuckets,
		},
	)
	items := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_items_total",
			Help: "Item scrapes by outcome.",
		},
		[]string{"outcome"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of scraper errors by kind.",
		},
		[]string{"error_type"},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_listing_pages_total",
			Help: "Listing pages attempted by crawls.",
		},
	)
	crawls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_crawls_total",
			Help: "Crawls by terminal state.",
		},
		[]string{"state"},
	)
	earlyStop := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_crawls_early_stop_total",
			Help: "Crawls that ended on a page without item links.",
		},
	)

	registry.MustRegister(fetches, fetchDuration, items, errorsTotal, pages, crawls, earlyStop)

	return &Metrics{
		Registry:        registry,
		FetchesTotal:    fetches,
		FetchDuration:   fetchDuration,
		ItemsTotal:      items,
		ErrorsTotal:     errorsTotal,
		PagesTotal:      pages,
		CrawlsTotal:     crawls,
		CrawlsEarlyStop: earlyStop,
	}
}

func (m *Metrics) IncFetch(kind string) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

// IncItem records one item scrape; outcome is "ok" or "error".
func (m *Metrics) IncItem(outcome string) {
	if m == nil {
		return
	}
	m.ItemsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

func (m *Metrics) IncPage() {
	if m == nil {
		return
	}
	m.PagesTotal.Inc()
}

// IncCrawl records a finished crawl; state is "completed" or "failed".
func (m *Metrics) IncCrawl(state string) {
	if m == nil {
		return
	}
	m.CrawlsTotal.WithLabelValues(state).Inc()
}

func (m *Metrics) IncEarlyStop() {
	if m == nil {
		return
	}
	m.CrawlsEarlyStop.Inc()
}
