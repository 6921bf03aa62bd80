package status

import (
	"sync"
	"time"

	"sjsage522/unjobsworker/internal/crawler"
)

// Run summarizes one finished crawl run
type Run struct {
	RunID         string         `json:"run_id"`
	StartedAt     time.Time      `json:"started_at"`
	Duration      string         `json:"duration"`
	Replay        bool           `json:"replay"`
	TotalJobs     int            `json:"total_jobs"`
	NewJobs       []crawler.Job  `json:"-"`
	NewJobCount   int            `json:"new_jobs"`
	Sources       map[string]int `json:"sources"`
	FailedSources []string       `json:"failed_sources"`
}

// Tracker keeps the most recent run for the status endpoints
type Tracker struct {
	mu    sync.RWMutex
	last  *Run
	total int
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{}
}

// Record stores run as the latest
func (t *Tracker) Record(run Run) {
	t.mu.Lock()
	defer t.mu.Unlock()
	run.NewJobCount = len(run.NewJobs)
	t.last = &run
	t.total++
}

// Last returns the latest run, if any
func (t *Tracker) Last() (Run, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.last == nil {
		return Run{}, false
	}
	return *t.last, true
}

// Runs returns how many runs were recorded since start
func (t *Tracker) Runs() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total
}
