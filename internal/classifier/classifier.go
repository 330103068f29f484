// Package classifier decides whether a URL names a single catalog item, a
// search listing, or nothing this scraper supports. It never touches the
// network.
package classifier

import (
	"net/url"
	"regexp"
	"strings"
)

type Kind int

const (
	Invalid Kind = iota
	SingleItem
	Listing
)

func (k Kind) String() string {
	switch k {
	case SingleItem:
		return "single_item"
	case Listing:
		return "listing"
	default:
		return "invalid"
	}
}

var (
	detailMarkers = []string{"/dp/", "/gp/product/"}
	searchKeys    = []string{"k", "field-keywords"}

	asinPattern = regexp.MustCompile(`(?:/dp/|/gp/product/)([A-Z0-9]{10})`)
)

type Classifier struct {
	domains []string
}

func New(allowedDomains []string) *Classifier {
	domains := make([]string, 0, len(allowedDomains))
	for _, d := range allowedDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		d = strings.TrimPrefix(d, ".")
		if d != "" {
			domains = append(domains, d)
		}
	}
	return &Classifier{domains: domains}
}

// Classify returns the kind of rawURL. Detail markers win over search markers.
func (c *Classifier) Classify(rawURL string) Kind {
	u, ok := c.parseAllowed(rawURL)
	if !ok {
		return Invalid
	}

	for _, marker := range detailMarkers {
		if strings.Contains(u.Path, marker) {
			return SingleItem
		}
	}

	if u.Path == "/s" || strings.HasPrefix(u.Path, "/s/") {
		return Listing
	}

	query := u.Query()
	for _, key := range searchKeys {
		if strings.TrimSpace(query.Get(key)) != "" {
			return Listing
		}
	}

	return Invalid
}

// AllowedHost reports whether host equals or is a subdomain of an allowed domain.
func (c *Classifier) AllowedHost(host string) bool {
	host = strings.ToLower(host)
	for _, d := range c.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func (c *Classifier) parseAllowed(rawURL string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	if !c.AllowedHost(u.Hostname()) {
		return nil, false
	}
	return u, true
}

// ExtractASIN returns the identifier segment following a detail marker.
func ExtractASIN(rawURL string) (string, bool) {
	m := asinPattern.FindStringSubmatch(rawURL)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}
