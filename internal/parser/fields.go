package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Field cascades, highest priority first. Supporting a new page template
// means appending a strategy here.
var (
	TitleField = FieldSpec{
		Name: "title",
		Strategies: []Strategy{
			Text("#productTitle"),
			Text(".product-title"),
			Text("h1.a-size-large"),
			Text("h1#title"),
			Attr(`meta[name="title"]`, "content"),
		},
		Normalize: CleanText,
	}

	BrandField = FieldSpec{
		Name: "brand",
		Strategies: []Strategy{
			Text("#bylineInfo"),
			Text(`.a-row .a-link-normal[href*="/stores/"]`),
			Text(`tr:contains("Brand") td.a-span9`),
			Text(".po-brand .po-break-word"),
			Text("#brand"),
			Pattern(regexp.MustCompile(`"brand"\s*:\s*"([^"]+)"`)),
		},
		Normalize: NormalizeBrand,
	}

	PriceField = FieldSpec{
		Name: "price",
		Strategies: []Strategy{
			Text(".a-price .a-offscreen"),
			Text(".a-price-whole"),
			Text("#price_inside_buybox"),
			Text("#priceblock_dealprice"),
			Text("#priceblock_ourprice"),
			Text(".a-price-range"),
			Text("#ap_desktop_sns_detail_page .a-price .a-offscreen"),
			Pattern(regexp.MustCompile(`"priceAmount"\s*:\s*([\d.]+)`)),
		},
		Normalize: NormalizePrice,
	}

	RatingField = FieldSpec{
		Name: "rating",
		Strategies: []Strategy{
			AttrOrText("#acrPopover", "title"),
			AttrOrText(`[data-hook="average-star-rating"] .a-icon-alt`, "alt"),
			AttrOrText(".a-star-medium .a-icon-alt", "alt"),
			AttrOrText(".a-icon-alt", "alt"),
		},
		Normalize: NormalizeRating,
	}

	ReviewCountField = FieldSpec{
		Name: "review_count",
		Strategies: []Strategy{
			Text("#acrCustomerReviewText"),
			Text(`[data-hook="total-review-count"]`),
			Text(".a-link-normal .a-size-base"),
		},
		Normalize: NormalizeCount,
	}

	AvailabilityField = FieldSpec{
		Name: "availability",
		Strategies: []Strategy{
			Text("#availability span"),
			Text(".a-size-medium.a-color-success"),
			Text(".a-size-medium.a-color-price"),
		},
		Normalize: CleanText,
	}

	ASINField = FieldSpec{
		Name: "asin",
		Strategies: []Strategy{
			Pattern(regexp.MustCompile(`/dp/([A-Z0-9]{10})`)),
			Pattern(regexp.MustCompile(`/gp/product/([A-Z0-9]{10})`)),
			Pattern(regexp.MustCompile(`data-asin="([A-Z0-9]{10})"`)),
		},
	}

	BestsellersRankField = FieldSpec{
		Name: "bestsellers_rank",
		Strategies: []Strategy{
			Text("#SalesRank"),
			Text(".a-icon-badge"),
		},
		Normalize: requireAny("Best Sellers Rank", "#"),
	}

	ShippingField = FieldSpec{
		Name: "shipping_info",
		Strategies: []Strategy{
			Text("#deliveryBlockMessage"),
			Text(".a-spacing-top-base .a-color-price"),
		},
		Normalize: requireAny("delivery", "shipping"),
	}

	SellerField = FieldSpec{
		Name: "seller",
		Strategies: []Strategy{
			Text("#sellerProfileTriggerId"),
			Text(".a-size-small.mbcMerchantName"),
			Text("#merchant-info a"),
		},
		Normalize: CleanText,
	}

	// Used only when no specification entry supplied the value.
	DimensionsFallback = FieldSpec{
		Name: "dimensions",
		Strategies: []Strategy{
			RegionPattern("#detailBullets_feature_div, #feature-bullets",
				regexp.MustCompile(`(?i)dimensions\s*:?\s*([\d.,]+\s*x\s*[\d.,]+(?:\s*x\s*[\d.,]+)?\s*[a-z"]*)`)),
		},
		Normalize: CleanText,
	}

	WeightFallback = FieldSpec{
		Name: "weight",
		Strategies: []Strategy{
			RegionPattern("#detailBullets_feature_div, #feature-bullets",
				regexp.MustCompile(`(?i)weight\s*:?\s*([\d.,]+\s*(?:pounds|lbs?|ounces|oz|kilograms|kg|grams|g)\b)`)),
			RegionPattern("#detailBullets_feature_div, #feature-bullets",
				regexp.MustCompile(`(?i)gewicht\s*:?\s*([\d.,]+\s*(?:kilogramm|gramm|kg|g)\b)`)),
		},
		Normalize: CleanText,
	}

	MaterialFallback = FieldSpec{
		Name: "material",
		Strategies: []Strategy{
			LabeledRow(".a-fixed-left-grid-inner", ".a-col-left .a-color-base", ".a-col-right .a-color-base",
				"materialzusammensetzung", "material composition", "material"),
			RegionPattern("#detailBullets_feature_div, #feature-bullets",
				regexp.MustCompile(`(?i)materialzusammensetzung\s*:?\s*(\d+\s*%[^\n]+)`)),
		},
		Normalize: rejectUnspecified,
	}
)

var (
	imageSelectors = []string{
		"#landingImage",
		".a-dynamic-image",
		"#imgTagWrapperId img",
	}

	featureSelectors = []string{
		"#feature-bullets ul li",
		".a-unordered-list .a-list-item",
		"#productDescription p",
	}

	categorySelectors = []string{
		"#wayfinding-breadcrumbs_feature_div a",
		".a-breadcrumb a",
		`[data-hook="breadcrumb"] a`,
	}

	descriptionSelectors = []string{
		"#productDescription p",
		"#aplus_feature_div",
	}

	primeSelector       = `.a-icon-prime, [data-csa-c-content-id="prime-sash"]`
	colorSwatchSelector = ".imgSwatch, #variation_color_name li img"
	sizeOptionSelector  = "#native_dropdown_selected_size_name option, #variation_size_name .a-button-text"
)

const (
	maxFeatures          = 5
	minFeatureLength     = 10
	minDescriptionLength = 20
)

var sizePlaceholders = map[string]bool{"select": true, "choose": true}

// extractImages collects absolute image URLs from every image selector,
// preferring src over data-src, without duplicates.
func extractImages(doc *Document) []string {
	seen := make(map[string]bool)
	var images []string
	for _, selector := range imageSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			src, _ := s.Attr("src")
			if !isAbsolute(src) {
				src, _ = s.Attr("data-src")
			}
			src = strings.TrimSpace(src)
			if isAbsolute(src) && !seen[src] {
				seen[src] = true
				images = append(images, src)
			}
		})
	}
	return images
}

// extractFeatures takes bullet texts from the first selector that yields any
// qualifying text.
func extractFeatures(doc *Document) []string {
	for _, selector := range featureSelectors {
		var features []string
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			text := CleanText(s.Text())
			if len([]rune(text)) > minFeatureLength {
				features = append(features, text)
			}
		})
		if len(features) > 0 {
			if len(features) > maxFeatures {
				features = features[:maxFeatures]
			}
			return features
		}
	}
	return nil
}

// extractCategories returns breadcrumb labels from general to specific.
func extractCategories(doc *Document) []string {
	return collectDistinct(doc, categorySelectors, func(s *goquery.Selection) string {
		return CleanText(s.Text())
	})
}

func extractDescriptions(doc *Document) []string {
	return collectDistinct(doc, descriptionSelectors, func(s *goquery.Selection) string {
		text := CleanText(s.Text())
		if len([]rune(text)) <= minDescriptionLength {
			return ""
		}
		return text
	})
}

func extractColors(doc *Document) []string {
	return collectDistinct(doc, []string{colorSwatchSelector}, func(s *goquery.Selection) string {
		if title, ok := s.Attr("title"); ok && strings.TrimSpace(title) != "" {
			return CleanText(strings.TrimPrefix(title, "Click to select "))
		}
		if alt, ok := s.Attr("alt"); ok && strings.TrimSpace(alt) != "" {
			return CleanText(alt)
		}
		return CleanText(s.Text())
	})
}

func extractSizes(doc *Document) []string {
	return collectDistinct(doc, []string{sizeOptionSelector}, func(s *goquery.Selection) string {
		text := CleanText(s.Text())
		if sizePlaceholders[strings.ToLower(text)] {
			return ""
		}
		return text
	})
}

func isPrimeEligible(doc *Document) bool {
	return doc.Find(primeSelector).Length() > 0
}

func collectDistinct(doc *Document, selectors []string, value func(*goquery.Selection) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, selector := range selectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			v := value(s)
			if v != "" && !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		})
	}
	return out
}

func isAbsolute(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}
