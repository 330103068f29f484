package scraper

import (
	"errors"
	"fmt"
)

// ValidationError marks a URL that is malformed or of the wrong kind. It is
// never retried.
type ValidationError struct {
	URL string
	Msg string
}

func (e ValidationError) Error() string {
	return e.Msg
}

// NetworkError wraps a transport failure, including non-2xx responses.
type NetworkError struct {
	URL string
	Err error
}

func (e NetworkError) Error() string {
	return fmt.Sprintf("Network error: %v", e.Err)
}

func (e NetworkError) Unwrap() error {
	return e.Err
}

// ExtractionError means the fetched document could not be parsed at all. A
// missing field is never an ExtractionError.
type ExtractionError struct {
	URL string
	Err error
}

func (e ExtractionError) Error() string {
	return fmt.Sprintf("Scraping error: %v", e.Err)
}

func (e ExtractionError) Unwrap() error {
	return e.Err
}

func invalidItemURL(url string) error {
	return ValidationError{URL: url, Msg: "Invalid Amazon product URL. Please provide a valid Amazon product link."}
}

func invalidListingURL(url string) error {
	return ValidationError{URL: url, Msg: "Invalid Amazon search URL. Please provide a valid Amazon search link."}
}

// ErrorKind labels err for metrics and API responses.
func ErrorKind(err error) string {
	if err == nil {
		return "none"
	}
	var validation ValidationError
	if errors.As(err, &validation) {
		return "validation"
	}
	var network NetworkError
	if errors.As(err, &network) {
		return "network"
	}
	var extraction ExtractionError
	if errors.As(err, &extraction) {
		return "extraction"
	}
	return "other"
}
