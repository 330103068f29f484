package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"
)

const defaultSizeCap = 10 << 20

var (
	ErrStatus       = errors.New("unexpected http status")
	ErrBodyTooLarge = errors.New("response body too large")
)

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %d for %s", ErrStatus, e.StatusCode, e.URL)
}

func (e *StatusError) Unwrap() error {
	return ErrStatus
}

// Response is a fetched document.
type Response struct {
	Body        []byte
	ContentType string
	FinalURL    string
}

// Transport fetches a URL with the given request headers.
type Transport interface {
	Fetch(ctx context.Context, rawURL string, headers http.Header) (*Response, error)
}

type HTTPTransport struct {
	client  *http.Client
	sizeCap int64
	logger  *slog.Logger
}

func NewHTTPTransport(timeout time.Duration, logger *slog.Logger) *HTTPTransport {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return NewHTTPTransportWithClient(&http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, logger)
}

// NewHTTPTransportWithClient wraps an existing client, e.g. one whose
// round tripper is mocked in tests.
func NewHTTPTransportWithClient(client *http.Client, logger *slog.Logger) *HTTPTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPTransport{
		client:  client,
		sizeCap: defaultSizeCap,
		logger:  logger.With("component", "transport"),
	}
}

func (t *HTTPTransport) Fetch(ctx context.Context, rawURL string, headers http.Header) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		t.logger.Warn("non-success response", "url", rawURL, "status", resp.StatusCode)
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.sizeCap+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > t.sizeCap {
		t.logger.Warn("response body exceeds cap", "url", rawURL, "cap", t.sizeCap)
		return nil, fmt.Errorf("%w: more than %d bytes from %s", ErrBodyTooLarge, t.sizeCap, rawURL)
	}

	t.logger.Debug("fetched", "url", rawURL, "bytes", len(body), "duration", time.Since(start))

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Response{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    finalURL,
	}, nil
}
