package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/thredeisacoder/Amazon-Scraper/internal/models"
)

// EventType represents the type of event
type EventType string

const (
	// EventTypeItemScraped is published for every item that was scraped
	EventTypeItemScraped EventType = "ITEM_SCRAPED"
	// EventTypeCrawlCompleted is published once a listing crawl finishes
	EventTypeCrawlCompleted EventType = "CRAWL_COMPLETED"
)

// DefaultStream is used when no stream name is configured.
const DefaultStream = "scraper:events"

// RedisClient is the subset of the redis client the publisher needs.
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// Envelope is the JSON document stored in the stream's data field.
type Envelope struct {
	EventID   string          `json:"event_id"`
	EventType EventType       `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
	Payload   json.RawMessage `json:"payload"`
}

// CrawlCompletedPayload summarises a finished crawl without its items.
type CrawlCompletedPayload struct {
	JobID          string  `json:"job_id,omitempty"`
	SearchURL      string  `json:"search_url"`
	PagesRequested int     `json:"pages_requested"`
	PagesProcessed int     `json:"pages_processed"`
	TotalProducts  int     `json:"total_products"`
	SuccessRate    float64 `json:"success_rate"`
	Summary        string  `json:"summary"`
}

// Publisher appends scraper events to a Redis stream.
type Publisher struct {
	redis  RedisClient
	stream string
	logger *slog.Logger
	now    func() time.Time
}

func NewPublisher(client RedisClient, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		redis:  client,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
		now:    time.Now,
	}
}

// ItemScraped publishes an ITEM_SCRAPED event. Error records are skipped.
func (p *Publisher) ItemScraped(ctx context.Context, record *models.ItemRecord) error {
	if record == nil || record.IsError() {
		return nil
	}
	return p.publish(ctx, EventTypeItemScraped, record.ASIN, record)
}

// CrawlCompleted publishes a CRAWL_COMPLETED event for result.
func (p *Publisher) CrawlCompleted(ctx context.Context, jobID string, result *models.CrawlResult) error {
	if result == nil {
		return nil
	}
	summary := result.Summary
	if summary == "" {
		summary = result.SuccessRateLabel()
	}
	payload := CrawlCompletedPayload{
		JobID:          jobID,
		SearchURL:      result.SearchURL,
		PagesRequested: result.PagesRequested,
		PagesProcessed: result.PagesProcessed,
		TotalProducts:  result.TotalProducts,
		SuccessRate:    result.SuccessRate,
		Summary:        summary,
	}
	return p.publish(ctx, EventTypeCrawlCompleted, jobID, payload)
}

func (p *Publisher) publish(ctx context.Context, eventType EventType, aggregateID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	envelope := Envelope{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: p.now().UTC(),
		Source:    "amazon-scraper",
		Payload:   body,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":         string(data),
			"type":         string(eventType),
			"event_id":     envelope.EventID,
			"aggregate_id": aggregateID,
			"timestamp":    fmt.Sprintf("%d", envelope.Timestamp.UnixNano()),
		},
	}

	id, err := p.redis.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Info("event published",
		"type", eventType,
		"event_id", envelope.EventID,
		"stream", p.stream,
		"stream_id", id,
	)
	return nil
}
