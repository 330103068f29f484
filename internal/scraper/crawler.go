package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/thredeisacoder/Amazon-Scraper/internal/models"
	"github.com/thredeisacoder/Amazon-Scraper/internal/parser"
)

// ProgressFunc receives human-readable status lines during a crawl.
type ProgressFunc func(message string)

// Crawler walks the pages of a listing one at a time and scrapes every item
// link it discovers. It shares transport, pacing and parsing with items.
type Crawler struct {
	items  *ItemScraper
	logger *slog.Logger
}

func NewCrawler(items *ItemScraper) *Crawler {
	return &Crawler{
		items:  items,
		logger: items.logger.With("component", "crawler"),
	}
}

// Crawl scrapes up to pages listing pages starting at listingURL. It fails
// only for an invalid listing URL, a first page that cannot be fetched, or a
// cancelled context; everything else degrades into a smaller result.
func (c *Crawler) Crawl(ctx context.Context, listingURL string, pages int, progress ProgressFunc) (*models.CrawlResult, error) {
	s := c.items
	if err := s.ValidateListingURL(listingURL); err != nil {
		s.metrics.IncError(ErrorKind(err))
		s.metrics.IncCrawl("failed")
		return nil, err
	}

	pages = c.clampPages(pages)
	result := &models.CrawlResult{
		SearchURL:      listingURL,
		PagesRequested: pages,
		Items:          []*models.ItemRecord{},
		ScrapedAt:      s.now().UTC(),
	}

	c.logger.Info("starting crawl", "url", listingURL, "pages", pages)

	for page := 1; page <= pages; page++ {
		c.report(progress, fmt.Sprintf("Scraping page %d/%d...", page, pages))

		if page > 1 {
			if err := s.pacer.Wait(ctx, s.cfg.PageDelay); err != nil {
				return nil, c.failed(err)
			}
		}

		result.PagesProcessed = page
		s.metrics.IncPage()

		links, err := c.pageLinks(ctx, listingURL, page)
		if err != nil {
			if ctx.Err() != nil || page == 1 {
				return nil, c.failed(err)
			}
			c.logger.Warn("listing page failed, stopping crawl", "page", page, "error", err)
			c.report(progress, fmt.Sprintf("Page %d could not be loaded: %v", page, err))
			break
		}

		if page == 1 {
			result.LinksOnFirstPage = len(links)
		}

		if len(links) == 0 {
			c.report(progress, fmt.Sprintf("No products found on page %d", page))
			s.metrics.IncEarlyStop()
			break
		}

		c.report(progress, fmt.Sprintf("Found %d products on page %d", len(links), page))

		collected := 0
		for i, link := range links {
			record, err := s.Scrape(ctx, link)
			if ctx.Err() != nil {
				return nil, c.failed(ctx.Err())
			}
			if err != nil {
				c.logger.Warn("dropping item", "url", link, "error", err)
				c.report(progress, fmt.Sprintf("Page %d: product %d/%d failed: %v", page, i+1, len(links), err))
			} else {
				record.PageNumber = page
				record.PositionOnPage = i + 1
				result.Items = append(result.Items, record)
				collected++
				c.report(progress, fmt.Sprintf("Page %d: scraped product %d/%d", page, i+1, len(links)))
			}

			if err := s.pacer.Wait(ctx, s.cfg.ListingItemDelay); err != nil {
				return nil, c.failed(err)
			}
		}

		c.report(progress, fmt.Sprintf("Finished page %d: %d products", page, collected))
	}

	result.TotalProducts = len(result.Items)
	result.SuccessRate = models.ApproxSuccessRate(result.TotalProducts, result.LinksOnFirstPage, result.PagesRequested)
	result.Summary = result.SuccessRateLabel()

	s.metrics.IncCrawl("completed")
	c.logger.Info("crawl completed",
		"url", listingURL,
		"pages_processed", result.PagesProcessed,
		"products", result.TotalProducts,
		"success_rate", result.Summary,
	)
	return result, nil
}

// pageLinks fetches one listing page and returns its canonical item links.
// A page with no content yields no links rather than an error.
func (c *Crawler) pageLinks(ctx context.Context, listingURL string, page int) ([]string, error) {
	pageURL, err := PageURL(listingURL, page)
	if err != nil {
		return nil, ValidationError{URL: listingURL, Msg: err.Error()}
	}

	doc, err := c.items.fetchDocument(ctx, pageURL, "listing")
	if err != nil {
		if errors.Is(err, parser.ErrEmptyDocument) {
			return nil, nil
		}
		return nil, err
	}

	return c.items.parser.ExtractItemLinks(doc, pageURL), nil
}

func (c *Crawler) clampPages(pages int) int {
	if pages < 1 {
		return 1
	}
	if limit := c.items.cfg.MaxPagesPerCrawl; limit > 0 && pages > limit {
		c.logger.Info("capping requested pages", "requested", pages, "max", limit)
		return limit
	}
	return pages
}

func (c *Crawler) failed(err error) error {
	c.items.metrics.IncError(ErrorKind(err))
	c.items.metrics.IncCrawl("failed")
	c.logger.Error("crawl failed", "error", err)
	return err
}

// report delivers a progress line; a panicking sink is logged and ignored.
func (c *Crawler) report(progress ProgressFunc, message string) {
	if progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("progress sink panicked", "panic", fmt.Sprint(r))
		}
	}()
	progress(message)
}

// PageURL returns the URL of a listing page. Page 1 is listingURL unchanged;
// later pages set the page query parameter and keep every other parameter.
func PageURL(listingURL string, page int) (string, error) {
	if page <= 1 {
		return listingURL, nil
	}

	u, err := url.Parse(listingURL)
	if err != nil {
		return "", fmt.Errorf("invalid listing url: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
