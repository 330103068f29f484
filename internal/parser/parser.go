package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/thredeisacoder/Amazon-Scraper/internal/models"
	"golang.org/x/net/html/charset"
)

var ErrEmptyDocument = errors.New("document is empty")

// Parser turns a fetched document into item fields or a list of item links.
type Parser interface {
	ParseItem(doc *Document, record *models.ItemRecord)
	ExtractItemLinks(doc *Document, pageURL string) []string
}

// Document is a parsed page plus its raw markup, which pattern strategies
// search directly.
type Document struct {
	*goquery.Document
	Raw string
}

// ParseDocument decodes body to UTF-8 according to contentType and builds
// the DOM. A body that is already valid UTF-8 is kept as is unless the
// content type names a charset. Bodies with no markup at all are rejected.
func ParseDocument(body []byte, contentType string) (*Document, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyDocument
	}

	enc, _, certain := charset.DetermineEncoding(body, contentType)
	if !certain && utf8.Valid(body) {
		return NewDocument(string(body))
	}
	data, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		if !utf8.Valid(body) {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}
		data = body
	}

	return NewDocument(string(data))
}

// NewDocument parses already decoded HTML.
func NewDocument(html string) (*Document, error) {
	if strings.TrimSpace(html) == "" {
		return nil, ErrEmptyDocument
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	if doc.Find("body *").Length() == 0 && strings.TrimSpace(doc.Text()) == "" {
		return nil, ErrEmptyDocument
	}

	return &Document{Document: doc, Raw: html}, nil
}
