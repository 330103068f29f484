package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchSendsHeaders(t *testing.T) {
	var gotUA, gotAccept string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><title>x</title></html>"))
	}))
	defer ts.Close()

	pool := NewIdentityPool([]string{"test-agent/1.0"})
	tr := NewHTTPTransport(5*time.Second, nil)

	resp, err := tr.Fetch(context.Background(), ts.URL, pool.Headers())
	require.NoError(t, err)

	assert.Equal(t, "test-agent/1.0", gotUA)
	assert.Contains(t, gotAccept, "text/html")
	assert.Equal(t, "<html><title>x</title></html>", string(resp.Body))
	assert.Equal(t, "text/html; charset=utf-8", resp.ContentType)
	assert.NotEmpty(t, resp.FinalURL)
}

func TestFetchNonSuccessStatus(t *testing.T) {
	statuses := []int{http.StatusMovedPermanently, http.StatusForbidden, http.StatusNotFound, http.StatusServiceUnavailable}

	for _, status := range statuses {
		t.Run(fmt.Sprintf("status_%d", status), func(t *testing.T) {
			mock := httpmock.NewMockTransport()
			mock.RegisterResponder("GET", "https://www.amazon.com/dp/B000000000",
				httpmock.NewStringResponder(status, "nope"))

			tr := NewHTTPTransportWithClient(&http.Client{
				Transport: mock,
				CheckRedirect: func(*http.Request, []*http.Request) error {
					return http.ErrUseLastResponse
				},
			}, nil)

			resp, err := tr.Fetch(context.Background(), "https://www.amazon.com/dp/B000000000", nil)
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, ErrStatus)

			var statusErr *StatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, status, statusErr.StatusCode)
		})
	}
}

func TestFetchBodyCap(t *testing.T) {
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder("GET", "https://www.amazon.com/dp/B000000001",
		httpmock.NewStringResponder(http.StatusOK, strings.Repeat("a", 16)))
	mock.RegisterResponder("GET", "https://www.amazon.com/dp/B000000002",
		httpmock.NewStringResponder(http.StatusOK, strings.Repeat("a", 17)))

	tr := NewHTTPTransportWithClient(&http.Client{Transport: mock}, nil)
	tr.sizeCap = 16

	resp, err := tr.Fetch(context.Background(), "https://www.amazon.com/dp/B000000001", nil)
	require.NoError(t, err)
	assert.Len(t, resp.Body, 16)

	resp, err = tr.Fetch(context.Background(), "https://www.amazon.com/dp/B000000002", nil)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
	assert.Nil(t, resp)
}

func TestFetchConnectionError(t *testing.T) {
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder("GET", "https://www.amazon.com/s",
		httpmock.NewErrorResponder(errors.New("connection reset by peer")))

	tr := NewHTTPTransportWithClient(&http.Client{Transport: mock}, nil)

	_, err := tr.Fetch(context.Background(), "https://www.amazon.com/s", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset by peer")
	assert.NotErrorIs(t, err, ErrStatus)
}

func TestFetchInvalidURL(t *testing.T) {
	tr := NewHTTPTransport(time.Second, nil)

	_, err := tr.Fetch(context.Background(), "not a url", nil)
	assert.Error(t, err)
}

func TestFetchHonoursContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewHTTPTransport(5*time.Second, nil).Fetch(ctx, ts.URL, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIdentityPool(t *testing.T) {
	agents := []string{"agent-a", "agent-b", "agent-c"}
	pool := NewIdentityPool(agents)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		h := pool.Headers()
		ua := h.Get("User-Agent")
		assert.Contains(t, agents, ua)
		assert.NotEmpty(t, h.Get("Accept-Language"))
		seen[ua] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestIdentityPoolEmpty(t *testing.T) {
	pool := NewIdentityPool([]string{""})

	h := pool.Headers()
	assert.Empty(t, h.Get("User-Agent"))
	assert.NotEmpty(t, h.Get("Accept"))
}
