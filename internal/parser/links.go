package parser

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var listingLinkSelectors = []string{
	"h2.a-size-mini a",
	".s-result-item h3 a",
	`[data-component-type="s-search-result"] h3 a`,
	`[data-component-type="s-search-result"] h2 a`,
	".s-product-image-container a",
	"a.a-link-normal.s-underline-text",
}

var canonicalRe = regexp.MustCompile(`^(https?://[^/?#]+)/(?:[^?#]*/)?(dp|gp/product)/([A-Z0-9]{10})(?:[/?#].*)?$`)

// Canonicalize reduces an absolute item URL to scheme://host/dp/<id> (or
// /gp/product/<id>). The bool is false when rawURL is not an item URL.
func Canonicalize(rawURL string) (string, bool) {
	m := canonicalRe.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[1] + "/" + m[2] + "/" + m[3], true
}

// ExtractLinks collects item links from a listing page, resolves them against
// base, canonicalizes them and drops duplicates. Order is first occurrence.
func ExtractLinks(doc *Document, base *url.URL) []string {
	if doc == nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string
	for _, selector := range listingLinkSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			href, ok := s.Attr("href")
			if !ok || !isItemHref(href) {
				return
			}
			abs, err := resolve(base, href)
			if err != nil {
				return
			}
			canonical, ok := Canonicalize(abs)
			if !ok || seen[canonical] {
				return
			}
			seen[canonical] = true
			links = append(links, canonical)
		})
	}
	return links
}

func isItemHref(href string) bool {
	return strings.Contains(href, "/dp/") || strings.Contains(href, "/gp/product/")
}

func resolve(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	if base == nil {
		return ref.String(), nil
	}
	return base.ResolveReference(ref).String(), nil
}
