package parser

import (
	"fmt"
	"log/slog"
	"net/url"

	"github.com/thredeisacoder/Amazon-Scraper/internal/models"
)

type AmazonParser struct {
	logger   *slog.Logger
	fallback *url.URL
}

func NewAmazonParser(logger *slog.Logger) *AmazonParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &AmazonParser{
		logger: logger.With("component", "parser"),
	}
}

// WithBaseURL sets the origin host-relative links resolve against when the
// listing URL itself has no host.
func (p *AmazonParser) WithBaseURL(raw string) *AmazonParser {
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		p.fallback = u
	}
	return p
}

// ParseItem fills record from a detail page. A failing field is logged and
// left empty; it never aborts the remaining fields.
func (p *AmazonParser) ParseItem(doc *Document, record *models.ItemRecord) {
	if doc == nil || record == nil {
		return
	}

	scalar := []struct {
		spec FieldSpec
		dst  *string
	}{
		{TitleField, &record.Title},
		{BrandField, &record.Brand},
		{PriceField, &record.Price},
		{RatingField, &record.Rating},
		{ReviewCountField, &record.ReviewCount},
		{AvailabilityField, &record.Availability},
		{BestsellersRankField, &record.BestsellersRank},
		{ShippingField, &record.ShippingInfo},
		{SellerField, &record.Seller},
	}
	for _, f := range scalar {
		p.guard(f.spec.Name, func() {
			if v, ok := f.spec.Resolve(doc); ok {
				*f.dst = v
			}
		})
	}

	if record.ASIN == "" {
		p.guard(ASINField.Name, func() {
			if v, ok := ASINField.Resolve(doc); ok {
				record.ASIN = v
			}
		})
	}

	p.guard("images", func() { record.Images = extractImages(doc) })
	p.guard("features", func() { record.Features = extractFeatures(doc) })
	p.guard("categories", func() { record.SetCategories(extractCategories(doc)) })
	p.guard("prime_eligible", func() { record.PrimeEligible = isPrimeEligible(doc) })
	p.guard("detailed_description", func() { record.DetailedDescription = extractDescriptions(doc) })
	p.guard("variations", func() {
		v := &models.Variations{Colors: extractColors(doc), Sizes: extractSizes(doc)}
		if !v.IsEmpty() {
			record.Variations = v
		}
	})

	p.guard("specifications", func() {
		specs := AggregateSpecifications(doc)
		if len(specs) > 0 {
			record.Specifications = specs
		}
		PromoteSpecifications(record, specs)
	})

	for _, f := range []struct {
		spec FieldSpec
		dst  *string
	}{
		{MaterialFallback, &record.Material},
		{DimensionsFallback, &record.Dimensions},
		{WeightFallback, &record.Weight},
	} {
		if *f.dst != "" {
			continue
		}
		p.guard(f.spec.Name, func() {
			if v, ok := f.spec.Resolve(doc); ok {
				*f.dst = v
			}
		})
	}
}

// ExtractItemLinks returns the canonical item links of a listing page.
// Relative hrefs resolve against pageURL.
func (p *AmazonParser) ExtractItemLinks(doc *Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil || base.Host == "" {
		p.logger.Warn("listing url cannot serve as link base", "url", pageURL)
		base = p.fallback
	}

	links := ExtractLinks(doc, base)
	p.logger.Debug("extracted item links", "url", pageURL, "count", len(links))
	return links
}

func (p *AmazonParser) guard(field string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("field extraction failed", "field", field, "error", fmt.Sprint(r))
		}
	}()
	fn()
}
