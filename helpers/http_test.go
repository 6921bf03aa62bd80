package helpers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/unjobsworker/pkg/errors"
)

func newTestFetcher(t *testing.T) *HTTPFetcher {
	f, err := NewHTTPFetcher(5*time.Second, NewHostLimiter(0, 1), "")
	require.NoError(t, err)
	return f
}

func TestHTTPFetcherGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check that headers are set
		assert.Equal(t, http.MethodGet, r.Method)
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("Accept"))
		assert.NotEmpty(t, r.Header.Get("Accept-Language"))
		assert.NotEmpty(t, r.Header.Get("Referer"))

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html><body>Hello, World!</body></html>"))
	}))
	defer server.Close()

	body, err := newTestFetcher(t).Fetch(context.Background(), Get(server.URL))
	assert.NoError(t, err)
	assert.Contains(t, string(body), "Hello, World!")
}

func TestHTTPFetcherPostWithHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "custom-agent", r.Header.Get("User-Agent"))
		data, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"a":1}`, string(data))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	body, err := newTestFetcher(t).Fetch(context.Background(), Request{
		Method:  http.MethodPost,
		URL:     server.URL,
		Headers: map[string]string{"Content-Type": "application/json", "User-Agent": "custom-agent"},
		Body:    []byte(`{"a":1}`),
	})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestHTTPFetcherNonUTF8(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.WriteHeader(http.StatusOK)
		// "Genève" in ISO-8859-1
		w.Write([]byte("<html><body>Gen\xe8ve</body></html>"))
	}))
	defer server.Close()

	body, err := newTestFetcher(t).Fetch(context.Background(), Get(server.URL))
	assert.NoError(t, err)
	assert.Contains(t, string(body), "Genève")
}

func TestHTTPFetcherErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestFetcher(t).Fetch(context.Background(), Get(server.URL))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status code: 500")
	assert.True(t, errors.Is(err, errors.ErrorTypeNetwork))

	// Test with rate limiting
	serverRateLimited := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer serverRateLimited.Close()

	_, err = newTestFetcher(t).Fetch(context.Background(), Get(serverRateLimited.URL))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.True(t, errors.Is(err, errors.ErrorTypeRateLimit))
}

func TestHTTPFetcherInvalidURL(t *testing.T) {
	_, err := newTestFetcher(t).Fetch(context.Background(), Get("http://invalid.url.that.does.not.exist"))
	assert.Error(t, err)
}

func TestHTTPFetcherInvalidProxy(t *testing.T) {
	_, err := NewHTTPFetcher(time.Second, nil, "://bad")
	assert.Error(t, err)
}

func TestHTTPFetcherCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestFetcher(t).Fetch(ctx, Get("http://127.0.0.1:1"))
	assert.Error(t, err)
}

func TestCollyFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			w.WriteHeader(http.StatusNotFound)
		case "/limited":
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte("<html><body>colly page " + r.Method + "</body></html>"))
		}
	}))
	defer server.Close()

	f := NewCollyFetcher(5*time.Second, NewHostLimiter(0, 1), "")

	body, err := f.Fetch(context.Background(), Get(server.URL+"/jobs"))
	assert.NoError(t, err)
	assert.Contains(t, string(body), "colly page GET")

	// The same URL can be fetched again
	body, err = f.Fetch(context.Background(), Get(server.URL+"/jobs"))
	assert.NoError(t, err)
	assert.Contains(t, string(body), "colly page GET")

	_, err = f.Fetch(context.Background(), Get(server.URL+"/limited"))
	assert.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrorTypeRateLimit))
}

func TestCollyFetcherCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewCollyFetcher(time.Second, nil, "").Fetch(ctx, Get("http://127.0.0.1:1"))
	assert.Error(t, err)
}

func TestHostLimiterWaitURL(t *testing.T) {
	hl := NewHostLimiter(1000, 1)
	ctx := context.Background()
	assert.NoError(t, hl.WaitURL(ctx, "https://www.unjobs.org/page/2"))
	assert.NoError(t, hl.WaitURL(ctx, "not a url"))
	assert.Same(t, hl.limiterFor("unjobs.org"), hl.limiterFor("unjobs.org"))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	slow := NewHostLimiter(0.001, 1)
	assert.NoError(t, slow.WaitURL(ctx, "https://untalent.org"))
	assert.Error(t, slow.WaitURL(cancelled, "https://untalent.org"))
}
