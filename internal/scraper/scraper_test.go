package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thredeisacoder/Amazon-Scraper/internal/config"
	"github.com/thredeisacoder/Amazon-Scraper/internal/transport"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeTransport serves canned bodies by URL; unknown URLs answer 404.
type fakeTransport struct {
	mu       sync.Mutex
	pages    map[string]string
	errs     map[string]error
	requests []string
	agents   []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{pages: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeTransport) Fetch(ctx context.Context, rawURL string, headers http.Header) (*transport.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, rawURL)
	f.agents = append(f.agents, headers.Get("User-Agent"))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.errs[rawURL]; ok {
		return nil, err
	}
	body, ok := f.pages[rawURL]
	if !ok {
		return nil, &transport.StatusError{URL: rawURL, StatusCode: http.StatusNotFound}
	}
	return &transport.Response{Body: []byte(body), ContentType: "text/html; charset=utf-8", FinalURL: rawURL}, nil
}

func (f *fakeTransport) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// recordingPacer never sleeps; it records the bands it was asked to wait.
type recordingPacer struct {
	mu    sync.Mutex
	bands []config.DelayBand
}

func (p *recordingPacer) Wait(ctx context.Context, band config.DelayBand) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bands = append(p.bands, band)
	return ctx.Err()
}

func (p *recordingPacer) count(band config.DelayBand) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.bands {
		if b == band {
			n++
		}
	}
	return n
}

func testScraperConfig() config.ScraperConfig {
	cfg := config.Default().Scraper
	cfg.AllowedDomains = []string{"example-store.test"}
	cfg.UserAgents = []string{"agent-one"}
	cfg.ItemDelay = config.DelayBand{Min: 1 * time.Second, Max: 3 * time.Second}
	cfg.PageDelay = config.DelayBand{Min: 2 * time.Second, Max: 4 * time.Second}
	cfg.ListingItemDelay = config.DelayBand{Min: 1 * time.Second, Max: 2 * time.Second}
	return cfg
}

func newTestScraper(tr transport.Transport, pacer *recordingPacer) *ItemScraper {
	return NewItemScraper(testScraperConfig(), tr,
		WithPacer(pacer),
		WithMetrics(NewMetrics()),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func itemPage(title, price string) string {
	return fmt.Sprintf(`<html><body>
		<span id="productTitle">%s</span>
		<span class="a-price"><span class="a-offscreen">%s</span></span>
	</body></html>`, title, price)
}

func TestScrapeEndToEnd(t *testing.T) {
	tr := newFakeTransport()
	tr.pages["https://example-store.test/dp/AAAA111111"] = itemPage("Desk Lamp", "$19.99")
	pacer := &recordingPacer{}
	s := newTestScraper(tr, pacer)

	record, err := s.Scrape(context.Background(), "https://example-store.test/dp/AAAA111111")
	require.NoError(t, err)

	assert.Equal(t, "https://example-store.test/dp/AAAA111111", record.SourceURL)
	assert.Equal(t, "AAAA111111", record.ASIN)
	assert.Equal(t, "Desk Lamp", record.Title)
	assert.Equal(t, "19.99", record.Price)
	assert.Empty(t, record.Rating)
	require.NotNil(t, record.ScrapedAt)
	assert.Equal(t, fixedNow, *record.ScrapedAt)
	assert.False(t, record.IsError())

	assert.Equal(t, 1, pacer.count(testScraperConfig().ItemDelay))
	assert.Equal(t, []string{"agent-one"}, tr.agents)
}

func TestScrapeRejectsInvalidURLs(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"listing url", "https://example-store.test/s?k=lamp"},
		{"foreign host", "https://other.test/dp/AAAA111111"},
		{"no item marker", "https://example-store.test/help"},
		{"garbage", "::::"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newFakeTransport()
			pacer := &recordingPacer{}
			s := newTestScraper(tr, pacer)

			record, err := s.Scrape(context.Background(), tt.url)
			require.Error(t, err)
			assert.Nil(t, record)

			var validation ValidationError
			require.True(t, errors.As(err, &validation))
			assert.Contains(t, err.Error(), "Invalid Amazon product URL")
			assert.Empty(t, tr.Requests())
			assert.Empty(t, pacer.bands)
		})
	}
}

func TestScrapeNetworkError(t *testing.T) {
	tr := newFakeTransport()
	tr.errs["https://example-store.test/dp/AAAA111111"] = &transport.StatusError{
		URL:        "https://example-store.test/dp/AAAA111111",
		StatusCode: http.StatusServiceUnavailable,
	}
	s := newTestScraper(tr, &recordingPacer{})

	record, err := s.Scrape(context.Background(), "https://example-store.test/dp/AAAA111111")
	require.Error(t, err)
	assert.Nil(t, record)
	assert.Equal(t, "network", ErrorKind(err))
	assert.ErrorIs(t, err, transport.ErrStatus)
	assert.Contains(t, err.Error(), "Network error: ")
	assert.Contains(t, err.Error(), "503")
}

func TestScrapeRecordReturnsErrorRecord(t *testing.T) {
	tr := newFakeTransport()
	s := newTestScraper(tr, &recordingPacer{})

	record := s.ScrapeRecord(context.Background(), "https://example-store.test/dp/ZZZZ999999")
	require.NotNil(t, record)
	assert.True(t, record.IsError())
	assert.Contains(t, record.Error, "Network error")
	assert.Empty(t, record.SourceURL)
	assert.Empty(t, record.Title)
	assert.Nil(t, record.ScrapedAt)
}

func TestScrapeEmptyDocument(t *testing.T) {
	tr := newFakeTransport()
	tr.pages["https://example-store.test/dp/AAAA111111"] = "   "
	s := newTestScraper(tr, &recordingPacer{})

	_, err := s.Scrape(context.Background(), "https://example-store.test/dp/AAAA111111")
	require.Error(t, err)
	assert.Equal(t, "extraction", ErrorKind(err))
	assert.Contains(t, err.Error(), "Scraping error")
}

func TestScrapeCancelledDuringDelay(t *testing.T) {
	tr := newFakeTransport()
	tr.pages["https://example-store.test/dp/AAAA111111"] = itemPage("Desk Lamp", "$19.99")
	s := newTestScraper(tr, &recordingPacer{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Scrape(ctx, "https://example-store.test/dp/AAAA111111")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, tr.Requests())
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "none"},
		{ValidationError{Msg: "bad"}, "validation"},
		{NetworkError{Err: errors.New("reset")}, "network"},
		{fmt.Errorf("wrapped: %w", NetworkError{Err: errors.New("reset")}), "network"},
		{ExtractionError{Err: errors.New("empty")}, "extraction"},
		{errors.New("boom"), "other"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorKind(tt.err))
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncFetch("item")
		m.ObserveFetch(time.Second)
		m.IncItem("ok")
		m.IncError("network")
		m.IncPage()
		m.IncCrawl("completed")
		m.IncEarlyStop()
	})
}
