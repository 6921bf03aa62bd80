package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sjsage522/unjobsworker/helpers"
)

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	cache map[string][]byte
}

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{
		cache: make(map[string][]byte),
	}
}

func (m *MockCacheService) Get(key string) ([]byte, error) {
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, &mockError{message: "cache miss"}
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.cache[key] = value
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	delete(m.cache, key)
	return nil
}

type mockError struct {
	message string
}

func (e *mockError) Error() string {
	return e.message
}

// MockFetcher answers requests from a function and records them
type MockFetcher struct {
	mu       sync.Mutex
	requests []helpers.Request
	respond  func(n int, req helpers.Request) ([]byte, error)
}

var _ helpers.Fetcher = (*MockFetcher)(nil)

func (m *MockFetcher) Fetch(ctx context.Context, req helpers.Request) ([]byte, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	n := len(m.requests)
	m.mu.Unlock()
	return m.respond(n, req)
}

func (m *MockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// pagedStub is a Source returning canned pages keyed by call number
type pagedStub struct {
	name    string
	max     int
	calls   int
	cursors []string
	page    func(call int, cursor string) (Page, error)
}

var _ Source = (*pagedStub)(nil)

func (p *pagedStub) Name() string   { return p.name }
func (p *pagedStub) Prefix() string { return p.name }
func (p *pagedStub) MaxPages() int  { return p.max }

func (p *pagedStub) FetchPage(ctx context.Context, cursor string) (Page, error) {
	p.calls++
	p.cursors = append(p.cursors, cursor)
	return p.page(p.calls, cursor)
}

func job(identity, title string) Job {
	return Job{Identity: identity, Title: title, URL: "https://example.org/" + identity}
}

func jobsFor(prefix string, from, to int) []Job {
	var out []Job
	for i := from; i < to; i++ {
		out = append(out, job(fmt.Sprintf("%s-%d", prefix, i), fmt.Sprintf("Job %d", i)))
	}
	return out
}
