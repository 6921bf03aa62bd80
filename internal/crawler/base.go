package crawler

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/unjobsworker/helpers"
	"sjsage522/unjobsworker/logger"
	"sjsage522/unjobsworker/pkg/errors"
	"sjsage522/unjobsworker/services/cache"
)

// BaseSource provides the fetch plumbing shared by all sources
type BaseSource struct {
	SourceName string
	URL        string
	PageLimit  int
	Fetcher    helpers.Fetcher
	CacheKey   string
	CacheSvc   cache.CacheService
	BlockTime  time.Duration
}

// Name returns the source name
func (b *BaseSource) Name() string {
	return b.SourceName
}

// Prefix returns the identity prefix, which is the source name
func (b *BaseSource) Prefix() string {
	return b.SourceName
}

// MaxPages returns the page ceiling
func (b *BaseSource) MaxPages() int {
	return b.PageLimit
}

// fetch fetches a page unless the source is inside a rate-limit block window.
// A rate-limited response opens a new window.
func (b *BaseSource) fetch(ctx context.Context, req helpers.Request) ([]byte, error) {
	if b.CacheSvc != nil && b.CacheKey != "" {
		if _, err := b.CacheSvc.Get(b.CacheKey); err == nil {
			return nil, errors.NewBlocked(b.SourceName, b.BlockTime)
		}
	}

	body, err := b.Fetcher.Fetch(ctx, req)
	if err != nil {
		if errors.Is(err, errors.ErrorTypeRateLimit) && b.CacheSvc != nil && b.CacheKey != "" && b.BlockTime > 0 {
			if setErr := b.CacheSvc.Set(b.CacheKey, []byte(fmt.Sprintf("%d", b.BlockTime/time.Second)), b.BlockTime); setErr != nil {
				logger.ForCache().Warn().Err(setErr).Str("key", b.CacheKey).Msg("Failed to store rate-limit block")
			}
		}
		return nil, err
	}

	return body, nil
}

// document parses an HTML body
func (b *BaseSource) document(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewParsing(b.SourceName, "failed to parse HTML", err)
	}
	return doc, nil
}

func orUnknown(org string) string {
	if org == "" {
		return UnknownOrganization
	}
	return org
}
