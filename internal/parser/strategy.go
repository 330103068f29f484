package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Strategy resolves a raw candidate value from a document. The bool is false
// when the strategy found nothing.
type Strategy func(doc *Document) (string, bool)

// Normalizer cleans a raw candidate. Returning "" rejects the candidate.
type Normalizer func(string) string

// FieldSpec is the ordered cascade for one named field.
type FieldSpec struct {
	Name       string
	Strategies []Strategy
	Normalize  Normalizer
}

// Resolve walks the strategies in order and returns the first candidate that
// is still non-empty after normalization.
func (f FieldSpec) Resolve(doc *Document) (string, bool) {
	if doc == nil {
		return "", false
	}

	normalize := f.Normalize
	if normalize == nil {
		normalize = CleanText
	}

	for _, strategy := range f.Strategies {
		raw, ok := strategy(doc)
		if !ok {
			continue
		}
		if value := normalize(raw); value != "" {
			return value, true
		}
	}

	return "", false
}

// Text reads the text of the first node matching selector.
func Text(selector string) Strategy {
	return func(doc *Document) (string, bool) {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			return "", false
		}
		return sel.Text(), true
	}
}

// Attr reads a named attribute of the first node matching selector.
func Attr(selector, attr string) Strategy {
	return func(doc *Document) (string, bool) {
		return doc.Find(selector).First().Attr(attr)
	}
}

// AttrOrText reads attr of the first match and falls back to its text.
func AttrOrText(selector, attr string) Strategy {
	return func(doc *Document) (string, bool) {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			return "", false
		}
		if v, ok := sel.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return v, true
		}
		return sel.Text(), true
	}
}

// Pattern returns the first captured group of re over the raw markup.
func Pattern(re *regexp.Regexp) Strategy {
	return func(doc *Document) (string, bool) {
		return firstGroup(re, doc.Raw)
	}
}

// RegionPattern returns the first captured group of re over the text of the
// nodes matching selector.
func RegionPattern(selector string, re *regexp.Regexp) Strategy {
	return func(doc *Document) (string, bool) {
		var region strings.Builder
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			region.WriteString(s.Text())
			region.WriteString("\n")
		})
		if region.Len() == 0 {
			return "", false
		}
		return firstGroup(re, region.String())
	}
}

// LabeledRow scans rows matching rowSelector and returns the value cell of the
// first row whose label cell contains one of labels (case-insensitive).
func LabeledRow(rowSelector, labelSelector, valueSelector string, labels ...string) Strategy {
	return func(doc *Document) (string, bool) {
		var found string
		doc.Find(rowSelector).EachWithBreak(func(_ int, row *goquery.Selection) bool {
			label := strings.ToLower(row.Find(labelSelector).Text())
			for _, l := range labels {
				if strings.Contains(label, l) {
					found = row.Find(valueSelector).Text()
					return strings.TrimSpace(found) == ""
				}
			}
			return true
		})
		return found, strings.TrimSpace(found) != ""
	}
}

func firstGroup(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}
