package parser

import (
	"regexp"
	"strings"
)

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	nonPriceRe    = regexp.MustCompile(`[^\d.,]`)
	decimalRe     = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	countRe       = regexp.MustCompile(`\d[\d,.]*`)
	directionMark = strings.NewReplacer("\u200e", "", "\u200f", "", "\u00a0", " ")

	brandPrefixes = []string{"Brand: ", "Marke: ", "Visit the ", "Besuchen Sie den "}
	brandSuffixes = []string{" Store", "-Store"}
)

// CleanText removes bidi marks and collapses whitespace.
func CleanText(s string) string {
	s = directionMark.Replace(s)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// NormalizePrice keeps only digits and the separators '.' and ','. A result
// without any digit is rejected.
func NormalizePrice(s string) string {
	s = nonPriceRe.ReplaceAllString(s, "")
	if !strings.ContainsAny(s, "0123456789") {
		return ""
	}
	return s
}

// NormalizeRating extracts the first decimal token, e.g. "4.5 out of 5" -> "4.5".
func NormalizeRating(s string) string {
	return decimalRe.FindString(s)
}

// NormalizeCount extracts the first number including its group separators,
// e.g. "12,345 ratings" -> "12,345".
func NormalizeCount(s string) string {
	return strings.TrimRight(countRe.FindString(s), ".,")
}

// NormalizeBrand strips byline boilerplate and rejects call-to-action text.
// Store bylines such as "Visit the Acme Store" lose their prefix first and
// yield "Acme"; other text still starting with "Visit" is rejected.
func NormalizeBrand(s string) string {
	s = CleanText(s)
	for _, p := range brandPrefixes {
		s = strings.TrimPrefix(s, p)
	}
	for _, suffix := range brandSuffixes {
		s = strings.TrimSuffix(s, suffix)
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(strings.ToLower(s), "visit") {
		return ""
	}
	return s
}

// requireAny returns a normalizer that keeps a cleaned value only when it
// contains one of needles (case-insensitive).
func requireAny(needles ...string) Normalizer {
	return func(s string) string {
		s = CleanText(s)
		lower := strings.ToLower(s)
		for _, n := range needles {
			if strings.Contains(lower, strings.ToLower(n)) {
				return s
			}
		}
		return ""
	}
}

// rejectUnspecified drops placeholder values such as "nicht angegeben".
func rejectUnspecified(s string) string {
	s = CleanText(s)
	lower := strings.ToLower(s)
	if strings.Contains(lower, "nicht angegeben") || strings.Contains(lower, "not specified") {
		return ""
	}
	return s
}

// cleanKey normalizes a specification label: trims bidi marks, whitespace and
// a trailing colon.
func cleanKey(s string) string {
	s = CleanText(s)
	s = strings.TrimSpace(strings.TrimSuffix(s, ":"))
	return s
}
