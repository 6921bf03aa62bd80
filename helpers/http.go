package helpers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	mathrand "math/rand"
	"net/http"
	"net/url"
	"slices"
	"time"

	"golang.org/x/net/html/charset"

	"sjsage522/unjobsworker/pkg/errors"
)

// Request describes a single page fetch
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Get builds a GET request for url
func Get(url string) Request {
	return Request{Method: http.MethodGet, URL: url}
}

// Fetcher retrieves raw page bodies. Implementations surface transport and
// status failures as errors and never retry on their own.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

// HTTP client and header configurations
var (
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	}

	referers = []string{
		"https://www.google.com/",
		"https://www.bing.com/",
		"https://duckduckgo.com/",
	}
)

// HTTPFetcher fetches pages with net/http, browser-like headers and a per-host limiter
type HTTPFetcher struct {
	client  *http.Client
	limiter *HostLimiter
	rnd     *mathrand.Rand
}

// NewHTTPFetcher creates a fetcher. limiter may be nil; proxyURL may be empty.
func NewHTTPFetcher(timeout time.Duration, limiter *HostLimiter, proxyURL string) (*HTTPFetcher, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, errors.NewConfiguration("invalid proxy url", err)
		}
		transport.Proxy = http.ProxyURL(u)
	}

	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		limiter: limiter,
		rnd:     mathrand.New(mathrand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Fetch sends the request, converts the response body to UTF-8 and returns it
func (f *HTTPFetcher) Fetch(ctx context.Context, r Request) ([]byte, error) {
	host := hostOf(r.URL)

	if f.limiter != nil {
		if err := f.limiter.WaitURL(ctx, r.URL); err != nil {
			return nil, errors.NewNetwork(host, "rate limiter wait aborted", err)
		}
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return nil, errors.NewNetwork(host, "failed to create request", err)
	}

	// Browser-like defaults, request headers win
	req.Header.Set("User-Agent", userAgents[f.rnd.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Referer", referers[f.rnd.Intn(len(referers))])
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.NewNetwork(host, "failed to fetch URL", err)
	}
	defer resp.Body.Close()

	// Check for rate limiting
	if slices.Contains([]int{http.StatusTooManyRequests, 430}, resp.StatusCode) {
		return nil, errors.NewRateLimit(host, resp.Header.Get("Retry-After"))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewNetwork(host, fmt.Sprintf("fetch %s unexpected status code: %d", r.URL, resp.StatusCode), nil)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewNetwork(host, "failed to read response body", err)
	}

	return ToUTF8(bodyBytes, resp.Header.Get("Content-Type"))
}

// ToUTF8 converts body to UTF-8 based on the content type and the body itself
func ToUTF8(body []byte, contentType string) ([]byte, error) {
	encoding, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || name == "UTF-8" {
		return body, nil
	}

	utf8Reader := encoding.NewDecoder().Reader(bytes.NewReader(body))
	converted, err := io.ReadAll(utf8Reader)
	if err != nil {
		return nil, errors.NewParsing(name, "failed to read converted UTF-8 body", err)
	}
	return converted, nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}
