package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/thredeisacoder/Amazon-Scraper/internal/database"
	"github.com/thredeisacoder/Amazon-Scraper/internal/jobs"
	"github.com/thredeisacoder/Amazon-Scraper/internal/models"
	"github.com/thredeisacoder/Amazon-Scraper/internal/scraper"
)

// ItemScraper is the part of scraper.ItemScraper the handlers use.
type ItemScraper interface {
	Scrape(ctx context.Context, url string) (*models.ItemRecord, error)
	ValidateListingURL(url string) error
}

// JobManager is the part of jobs.Manager the handlers use.
type JobManager interface {
	Submit(url string, pages int) (*jobs.Job, error)
	Get(id string) (*jobs.Job, error)
	List() []*jobs.Job
	RecordItem(ctx context.Context, record *models.ItemRecord)
}

// Store is the part of database.DB the handlers read stored results from.
type Store interface {
	GetItem(ctx context.Context, sourceURL string) (*models.ItemRecord, error)
	RecentCrawls(ctx context.Context, limit int) ([]database.CrawlSummary, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Handlers struct {
	scraper  ItemScraper
	jobs     JobManager
	store    Store
	checks   map[string]HealthCheck
	maxPages int
	logger   *slog.Logger
}

// Option configures Handlers.
type Option func(*Handlers)

// WithStore serves stored items and crawls from store.
func WithStore(store Store) Option {
	return func(h *Handlers) { h.store = store }
}

// WithMaxPages caps the pages a listing crawl may request.
func WithMaxPages(n int) Option {
	return func(h *Handlers) { h.maxPages = n }
}

func NewHandlers(scraper ItemScraper, jobs JobManager, checks map[string]HealthCheck, logger *slog.Logger, opts ...Option) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		scraper: scraper,
		jobs:    jobs,
		checks:  checks,
		logger:  logger.With("component", "api"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ScrapeItemRequest asks for a single item page
type ScrapeItemRequest struct {
	URL string `json:"url"`
}

// ScrapeListingRequest asks for a listing crawl of up to Pages pages
type ScrapeListingRequest struct {
	URL   string `json:"url"`
	Pages int    `json:"pages"`
}

// ScrapeItem scrapes one item synchronously and answers with the record, or
// with an error record when the scrape fails.
func (h *Handlers) ScrapeItem(w http.ResponseWriter, r *http.Request) {
	var req ScrapeItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record, err := h.scraper.Scrape(r.Context(), req.URL)
	if err != nil {
		h.logger.Warn("scrape failed", "url", req.URL, "error", err)
		h.respondJSON(w, statusFor(err), models.NewErrorRecord(err))
		return
	}

	h.jobs.RecordItem(r.Context(), record)
	h.respondJSON(w, http.StatusOK, record)
}

// ScrapeListing validates the listing URL and starts a crawl job.
func (h *Handlers) ScrapeListing(w http.ResponseWriter, r *http.Request) {
	var req ScrapeListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch {
	case req.Pages < 0:
		h.respondError(w, http.StatusBadRequest, "pages must not be negative")
		return
	case req.Pages == 0:
		req.Pages = 1
	case h.maxPages > 0 && req.Pages > h.maxPages:
		req.Pages = h.maxPages
	}

	if err := h.scraper.ValidateListingURL(req.URL); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.jobs.Submit(req.URL, req.Pages)
	if errors.Is(err, jobs.ErrQueueFull) {
		w.Header().Set("Retry-After", "30")
		h.respondError(w, http.StatusTooManyRequests, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to submit job", "error", err)
		h.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	w.Header().Set("Location", "/api/v1/jobs/"+job.ID)
	h.respondJSON(w, http.StatusAccepted, job)
}

// GetJob handles job retrieval
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := h.jobs.Get(jobID)
	if errors.Is(err, jobs.ErrNotFound) {
		h.respondError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get job", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	h.respondJSON(w, http.StatusOK, job)
}

// ListJobs lists retained jobs without their results.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	list := h.jobs.List()
	for _, job := range list {
		job.Result = nil
	}
	h.respondJSON(w, http.StatusOK, list)
}

// GetItem returns the stored record for the url query parameter.
func (h *Handlers) GetItem(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.respondError(w, http.StatusServiceUnavailable, "storage is not enabled")
		return
	}
	url := r.URL.Query().Get("url")
	if url == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	record, err := h.store.GetItem(r.Context(), url)
	if errors.Is(err, database.ErrNotFound) {
		h.respondError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get item", "url", url, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get item")
		return
	}

	h.respondJSON(w, http.StatusOK, record)
}

// ListCrawls returns the most recent stored crawls, up to the limit query
// parameter.
func (h *Handlers) ListCrawls(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.respondError(w, http.StatusServiceUnavailable, "storage is not enabled")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			h.respondError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	crawls, err := h.store.RecentCrawls(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list crawls", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list crawls")
		return
	}

	h.respondJSON(w, http.StatusOK, crawls)
}

// Health runs every dependency check.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := map[string]string{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	health := map[string]interface{}{"status": "ok", "dependencies": deps}
	if status != http.StatusOK {
		health["status"] = "error"
	}
	h.respondJSON(w, status, health)
}

func statusFor(err error) int {
	switch scraper.ErrorKind(err) {
	case "validation":
		return http.StatusBadRequest
	case "network":
		return http.StatusBadGateway
	case "extraction":
		return http.StatusUnprocessableEntity
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
