package helpers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"sjsage522/unjobsworker/pkg/errors"
)

// CollyFetcher fetches pages through a fresh colly collector per request
type CollyFetcher struct {
	userAgent string
	timeout   time.Duration
	limiter   *HostLimiter
	proxyURL  string
}

// NewCollyFetcher creates a colly backed fetcher. limiter may be nil.
func NewCollyFetcher(timeout time.Duration, limiter *HostLimiter, proxyURL string) *CollyFetcher {
	return &CollyFetcher{
		userAgent: userAgents[0],
		timeout:   timeout,
		limiter:   limiter,
		proxyURL:  proxyURL,
	}
}

// Fetch performs the request and returns the body colly delivered
func (f *CollyFetcher) Fetch(ctx context.Context, r Request) ([]byte, error) {
	host := hostOf(r.URL)

	if f.limiter != nil {
		if err := f.limiter.WaitURL(ctx, r.URL); err != nil {
			return nil, errors.NewNetwork(host, "rate limiter wait aborted", err)
		}
	}

	c, err := f.newCollector(ctx)
	if err != nil {
		return nil, err
	}

	var (
		body   []byte
		status int
		reqErr error
	)
	c.OnResponse(func(resp *colly.Response) {
		status = resp.StatusCode
		body = append([]byte(nil), resp.Body...)
	})
	c.OnError(func(resp *colly.Response, err error) {
		if resp != nil {
			status = resp.StatusCode
			if resp.Headers != nil && (status == http.StatusTooManyRequests || status == 430) {
				reqErr = errors.NewRateLimit(host, resp.Headers.Get("Retry-After"))
				return
			}
		}
		reqErr = err
	})

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	hdr := http.Header{}
	for k, v := range r.Headers {
		hdr.Set(k, v)
	}
	var data io.Reader
	if r.Body != nil {
		data = bytes.NewReader(r.Body)
	}

	err = c.Request(method, r.URL, data, nil, hdr)
	if reqErr != nil {
		if errors.Is(reqErr, errors.ErrorTypeRateLimit) {
			return nil, reqErr
		}
		return nil, errors.NewNetwork(host, fmt.Sprintf("fetch %s failed with status %d", r.URL, status), reqErr)
	}
	if err != nil {
		return nil, errors.NewNetwork(host, "colly request failed", err)
	}
	if ctx.Err() != nil {
		return nil, errors.NewNetwork(host, "request cancelled", ctx.Err())
	}
	return body, nil
}

// newCollector builds a collector bound to ctx, so cancellation also aborts
// a request already in flight
func (f *CollyFetcher) newCollector(ctx context.Context) (*colly.Collector, error) {
	c := colly.NewCollector(
		colly.UserAgent(f.userAgent),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(f.timeout)

	if f.proxyURL != "" {
		if err := c.SetProxy(f.proxyURL); err != nil {
			return nil, errors.NewConfiguration("invalid proxy url", err)
		}
	}

	return c, nil
}
