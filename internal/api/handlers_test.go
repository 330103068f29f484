package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/thredeisacoder/Amazon-Scraper/internal/database"
	"github.com/thredeisacoder/Amazon-Scraper/internal/jobs"
	"github.com/thredeisacoder/Amazon-Scraper/internal/models"
	"github.com/thredeisacoder/Amazon-Scraper/internal/scraper"
)

type MockScraper struct {
	mock.Mock
}

func (m *MockScraper) Scrape(ctx context.Context, url string) (*models.ItemRecord, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ItemRecord), args.Error(1)
}

func (m *MockScraper) ValidateListingURL(url string) error {
	return m.Called(url).Error(0)
}

type MockJobs struct {
	mock.Mock
}

func (m *MockJobs) Submit(url string, pages int) (*jobs.Job, error) {
	args := m.Called(url, pages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jobs.Job), args.Error(1)
}

func (m *MockJobs) Get(id string) (*jobs.Job, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jobs.Job), args.Error(1)
}

func (m *MockJobs) List() []*jobs.Job {
	return m.Called().Get(0).([]*jobs.Job)
}

func (m *MockJobs) RecordItem(ctx context.Context, record *models.ItemRecord) {
	m.Called(ctx, record)
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetItem(ctx context.Context, sourceURL string) (*models.ItemRecord, error) {
	args := m.Called(ctx, sourceURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ItemRecord), args.Error(1)
}

func (m *MockStore) RecentCrawls(ctx context.Context, limit int) ([]database.CrawlSummary, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]database.CrawlSummary), args.Error(1)
}

func newTestRouter(s *MockScraper, j *MockJobs, checks map[string]HealthCheck) http.Handler {
	return NewRouter(NewHandlers(s, j, checks, nil), prometheus.NewRegistry())
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestScrapeItem(t *testing.T) {
	const url = "https://www.amazon.com/dp/B000000001"
	record := &models.ItemRecord{SourceURL: url, Title: "Desk Lamp"}

	s := new(MockScraper)
	j := new(MockJobs)
	s.On("Scrape", mock.Anything, url).Return(record, nil)
	j.On("RecordItem", mock.Anything, record).Return()

	rec := do(t, newTestRouter(s, j, nil), http.MethodPost, "/api/v1/scrape/item", `{"url":"`+url+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.ItemRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Desk Lamp", got.Title)
	j.AssertExpectations(t)
}

func TestScrapeItemErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", scraper.ValidationError{Msg: "Invalid Amazon product URL. Please provide a valid Amazon product link."}, http.StatusBadRequest},
		{"network", scraper.NetworkError{Err: errors.New("reset")}, http.StatusBadGateway},
		{"extraction", scraper.ExtractionError{Err: errors.New("empty")}, http.StatusUnprocessableEntity},
		{"cancelled", context.Canceled, http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := new(MockScraper)
			j := new(MockJobs)
			s.On("Scrape", mock.Anything, "u").Return(nil, tt.err)

			rec := do(t, newTestRouter(s, j, nil), http.MethodPost, "/api/v1/scrape/item", `{"url":"u"}`)
			assert.Equal(t, tt.status, rec.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, map[string]interface{}{"error": tt.err.Error()}, body)
			j.AssertNotCalled(t, "RecordItem", mock.Anything, mock.Anything)
		})
	}
}

func TestScrapeItemBadBody(t *testing.T) {
	rec := do(t, newTestRouter(new(MockScraper), new(MockJobs), nil), http.MethodPost, "/api/v1/scrape/item", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScrapeListing(t *testing.T) {
	const url = "https://www.amazon.com/s?k=lamp"
	s := new(MockScraper)
	j := new(MockJobs)
	s.On("ValidateListingURL", url).Return(nil)
	j.On("Submit", url, 1).Return(&jobs.Job{ID: "job-1", URL: url, Pages: 1, Status: jobs.StatusQueued}, nil)

	rec := do(t, newTestRouter(s, j, nil), http.MethodPost, "/api/v1/scrape/listing", `{"url":"`+url+`"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "/api/v1/jobs/job-1", rec.Header().Get("Location"))

	var job jobs.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, jobs.StatusQueued, job.Status)
	j.AssertExpectations(t)
}

func TestScrapeListingInvalidURL(t *testing.T) {
	s := new(MockScraper)
	j := new(MockJobs)
	s.On("ValidateListingURL", "https://www.amazon.com/dp/B000000001").
		Return(scraper.ValidationError{Msg: "Invalid Amazon search URL. Please provide a valid Amazon search link."})

	rec := do(t, newTestRouter(s, j, nil), http.MethodPost, "/api/v1/scrape/listing", `{"url":"https://www.amazon.com/dp/B000000001","pages":2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid Amazon search URL")
	j.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestScrapeListingPages(t *testing.T) {
	const url = "https://www.amazon.com/s?k=lamp"
	tests := []struct {
		name   string
		body   string
		status int
		pages  int
	}{
		{"negative", `{"url":"` + url + `","pages":-2}`, http.StatusBadRequest, 0},
		{"over cap", `{"url":"` + url + `","pages":50}`, http.StatusAccepted, 5},
		{"within cap", `{"url":"` + url + `","pages":3}`, http.StatusAccepted, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := new(MockScraper)
			j := new(MockJobs)
			s.On("ValidateListingURL", url).Return(nil)
			j.On("Submit", url, tt.pages).Return(&jobs.Job{ID: "job-1", URL: url, Pages: tt.pages, Status: jobs.StatusQueued}, nil)

			router := NewRouter(NewHandlers(s, j, nil, nil, WithMaxPages(5)), nil)
			rec := do(t, router, http.MethodPost, "/api/v1/scrape/listing", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusBadRequest {
				j.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
				return
			}
			j.AssertExpectations(t)
		})
	}
}

func TestScrapeListingQueueFull(t *testing.T) {
	const url = "https://www.amazon.com/s?k=lamp"
	s := new(MockScraper)
	j := new(MockJobs)
	s.On("ValidateListingURL", url).Return(nil)
	j.On("Submit", url, 1).Return(nil, jobs.ErrQueueFull)

	rec := do(t, newTestRouter(s, j, nil), http.MethodPost, "/api/v1/scrape/listing", `{"url":"`+url+`"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
}

func TestGetStoredItem(t *testing.T) {
	const url = "https://www.amazon.com/dp/B000000001"
	store := new(MockStore)
	store.On("GetItem", mock.Anything, url).Return(&models.ItemRecord{SourceURL: url, Title: "Desk Lamp"}, nil)
	store.On("GetItem", mock.Anything, url+"2").Return(nil, database.ErrNotFound)
	router := NewRouter(NewHandlers(new(MockScraper), new(MockJobs), nil, nil, WithStore(store)), nil)

	rec := do(t, router, http.MethodGet, "/api/v1/items?url="+url, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Desk Lamp")

	rec = do(t, router, http.MethodGet, "/api/v1/items?url="+url+"2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/items", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListCrawls(t *testing.T) {
	scrapedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := new(MockStore)
	store.On("RecentCrawls", mock.Anything, 20).Return([]database.CrawlSummary{
		{ID: "job-1", SearchURL: "https://www.amazon.com/s?k=lamp", TotalProducts: 4, ScrapedAt: scrapedAt},
	}, nil)
	store.On("RecentCrawls", mock.Anything, 5).Return([]database.CrawlSummary{}, nil)
	router := NewRouter(NewHandlers(new(MockScraper), new(MockJobs), nil, nil, WithStore(store)), nil)

	rec := do(t, router, http.MethodGet, "/api/v1/crawls", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var crawls []database.CrawlSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &crawls))
	require.Len(t, crawls, 1)
	assert.Equal(t, "job-1", crawls[0].ID)

	rec = do(t, router, http.MethodGet, "/api/v1/crawls?limit=5", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/crawls?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	store.AssertExpectations(t)
}

func TestStoreRoutesWithoutStorage(t *testing.T) {
	router := newTestRouter(new(MockScraper), new(MockJobs), nil)

	rec := do(t, router, http.MethodGet, "/api/v1/items?url=https://www.amazon.com/dp/B000000001", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/crawls", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetJob(t *testing.T) {
	j := new(MockJobs)
	j.On("Get", "job-1").Return(&jobs.Job{ID: "job-1", Status: jobs.StatusRunning, Progress: []string{"Scraping page 1/2..."}}, nil)
	j.On("Get", "missing").Return(nil, jobs.ErrNotFound)
	router := newTestRouter(new(MockScraper), j, nil)

	rec := do(t, router, http.MethodGet, "/api/v1/jobs/job-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Scraping page 1/2...")

	rec = do(t, router, http.MethodGet, "/api/v1/jobs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListJobsOmitsResults(t *testing.T) {
	j := new(MockJobs)
	j.On("List").Return([]*jobs.Job{{ID: "job-1", Result: &models.CrawlResult{TotalProducts: 3}}})

	rec := do(t, newTestRouter(new(MockScraper), j, nil), http.MethodGet, "/api/v1/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []jobs.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Nil(t, list[0].Result)
}

func TestHealth(t *testing.T) {
	healthy := map[string]HealthCheck{"redis": func(context.Context) error { return nil }}
	rec := do(t, newTestRouter(new(MockScraper), new(MockJobs), healthy), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"ok"`)

	failing := map[string]HealthCheck{"database": func(context.Context) error { return errors.New("connection refused") }}
	rec = do(t, newTestRouter(new(MockScraper), new(MockJobs), failing), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(t, newTestRouter(new(MockScraper), new(MockJobs), nil), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
