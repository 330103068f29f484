package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/thredeisacoder/Amazon-Scraper/internal/models"
	"github.com/thredeisacoder/Amazon-Scraper/internal/scraper"
)

var (
	ErrNotFound     = errors.New("job not found")
	ErrShuttingDown = errors.New("job manager is shutting down")
	ErrQueueFull    = errors.New("job queue is full")
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Crawler runs one listing crawl.
type Crawler interface {
	Crawl(ctx context.Context, listingURL string, pages int, progress scraper.ProgressFunc) (*models.CrawlResult, error)
}

// Recorder receives scraped items and finished crawls, e.g. to store or
// announce them.
type Recorder interface {
	ItemScraped(ctx context.Context, record *models.ItemRecord) error
	CrawlCompleted(ctx context.Context, jobID string, result *models.CrawlResult) error
}

// Job represents a listing crawl
type Job struct {
	ID         string              `json:"id"`
	URL        string              `json:"url"`
	Pages      int                 `json:"pages"`
	Status     Status              `json:"status"`
	Progress   []string            `json:"progress"`
	Result     *models.CrawlResult `json:"result,omitempty"`
	Error      string              `json:"error,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	StartedAt  *time.Time          `json:"started_at,omitempty"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
}

// Manager runs crawls one at a time on a background worker and keeps the
// most recent jobs in a bounded registry.
type Manager struct {
	crawler   Crawler
	recorders []Recorder
	logger    *slog.Logger

	mu     sync.Mutex
	jobs   *lru.Cache[string, *Job]
	queue  chan *Job
	closed bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time
}

func NewManager(capacity int, crawler Crawler, logger *slog.Logger, recorders ...Recorder) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.New[string, *Job](capacity)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		crawler:   crawler,
		recorders: recorders,
		logger:    logger.With("component", "job_manager"),
		jobs:      cache,
		queue:     make(chan *Job, capacity),
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now,
	}

	m.wg.Add(1)
	go m.worker()
	return m, nil
}

// Submit registers a crawl job and queues it behind any earlier jobs.
func (m *Manager) Submit(url string, pages int) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrShuttingDown
	}

	job := &Job{
		ID:        uuid.New().String(),
		URL:       url,
		Pages:     pages,
		Status:    StatusQueued,
		Progress:  []string{},
		CreatedAt: m.now().UTC(),
	}

	select {
	case m.queue <- job:
	default:
		return nil, ErrQueueFull
	}
	m.jobs.Add(job.ID, job)

	m.logger.Info("job created", "id", job.ID, "url", url, "pages", pages)
	return snapshot(job), nil
}

// Get returns a copy of the job with id.
func (m *Manager) Get(id string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs.Peek(id)
	if !ok {
		return nil, ErrNotFound
	}
	return snapshot(job), nil
}

// List returns copies of all retained jobs, newest first.
func (m *Manager) List() []*Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobs := make([]*Job, 0, m.jobs.Len())
	for _, id := range m.jobs.Keys() {
		if job, ok := m.jobs.Peek(id); ok {
			jobs = append(jobs, snapshot(job))
		}
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// RecordItem hands a single scraped item to every recorder.
func (m *Manager) RecordItem(ctx context.Context, record *models.ItemRecord) {
	if record == nil || record.IsError() {
		return
	}
	for _, r := range m.recorders {
		if err := r.ItemScraped(ctx, record); err != nil {
			m.logger.Warn("failed to record item", "url", record.SourceURL, "error", err)
		}
	}
}

// Shutdown cancels the running crawl, fails queued jobs and waits for the
// worker to finish or for ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.queue)
	}
	m.mu.Unlock()

	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) worker() {
	defer m.wg.Done()

	for job := range m.queue {
		if err := m.ctx.Err(); err != nil {
			m.update(job, func(j *Job) {
				finished := m.now().UTC()
				j.FinishedAt = &finished
				j.Status = StatusFailed
				j.Error = err.Error()
			})
			m.logger.Warn("job dropped", "id", job.ID, "error", err)
			continue
		}
		m.run(job)
	}
}

func (m *Manager) run(job *Job) {
	m.update(job, func(j *Job) {
		started := m.now().UTC()
		j.Status = StatusRunning
		j.StartedAt = &started
	})

	progress := func(message string) {
		m.update(job, func(j *Job) {
			j.Progress = append(j.Progress, message)
		})
	}

	result, err := m.crawler.Crawl(m.ctx, job.URL, job.Pages, progress)

	m.update(job, func(j *Job) {
		finished := m.now().UTC()
		j.FinishedAt = &finished
		if err != nil {
			j.Status = StatusFailed
			j.Error = err.Error()
			return
		}
		j.Status = StatusCompleted
		j.Result = result
	})

	if err != nil {
		m.logger.Error("job failed", "id", job.ID, "error", err)
		return
	}

	m.logger.Info("job completed", "id", job.ID, "products", result.TotalProducts)
	m.record(job.ID, result)
}

// record fans a finished crawl out to the recorders. It uses a fresh
// context so results are kept even while shutting down.
func (m *Manager) record(jobID string, result *models.CrawlResult) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, r := range m.recorders {
		if err := r.CrawlCompleted(ctx, jobID, result); err != nil {
			m.logger.Warn("failed to record crawl", "id", jobID, "error", err)
		}
	}
}

func (m *Manager) update(job *Job, fn func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(job)
}

func snapshot(job *Job) *Job {
	c := *job
	c.Progress = append([]string(nil), job.Progress...)
	return &c
}
