package models

import (
	"fmt"
	"time"
)

// CrawlResult aggregates the items collected from a multi-page listing crawl.
type CrawlResult struct {
	SearchURL        string        `json:"search_url"`
	PagesRequested   int           `json:"pages_requested"`
	PagesProcessed   int           `json:"pages_processed"`
	LinksOnFirstPage int           `json:"links_on_first_page"`
	TotalProducts    int           `json:"total_products"`
	Items            []*ItemRecord `json:"products"`
	ScrapedAt        time.Time     `json:"scraped_at"`

	// SuccessRate is items / (links on first page * pages requested). It
	// assumes every page lists as many links as the first one, so it is an
	// approximation rather than an exact ratio.
	SuccessRate float64 `json:"success_rate"`
	// Summary is SuccessRateLabel at the time the crawl finished.
	Summary string `json:"summary"`
}

// ApproxSuccessRate computes the approximate success ratio; the denominator
// is clamped to 1.
func ApproxSuccessRate(collected, linksOnFirstPage, pagesRequested int) float64 {
	denom := linksOnFirstPage * pagesRequested
	if denom < 1 {
		denom = 1
	}
	return float64(collected) / float64(denom)
}

// SuccessRateLabel formats the success rate for display.
func (c *CrawlResult) SuccessRateLabel() string {
	return fmt.Sprintf("~%.1f%% (approximate)", c.SuccessRate*100)
}
