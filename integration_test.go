package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/unjobsworker/config"
	"sjsage522/unjobsworker/helpers"
	"sjsage522/unjobsworker/internal/crawler"
	"sjsage522/unjobsworker/services/cache"
	"sjsage522/unjobsworker/services/snapshot"
	"sjsage522/unjobsworker/services/status"
	"sjsage522/unjobsworker/services/worker"
)

const unjobsListing = `<html><body>
<div class="job" id="7001"><a href="/vacancies/7001">Programme Officer, Geneva</a><br>OHCHR<br></div>
<div class="job" id="7002"><a href="/vacancies/7002">Driver, Springfield</a><br>WFP<br></div>
%s
</body></html>`

const unjobsExtra = `<div class="job" id="7003"><a href="/vacancies/7003">Statistician, Vienna</a><br>UNIDO<br></div>`

const untalentListing = `<html><body><main>
<div class="job-card card">
<div class="job-title"><h1><a href="/jobs/legal-officer">Legal Officer</a></h1></div>
<div class="organisation">UNHCR</div>
<div class="locations"><span class="locations">Geneva</span></div>
<div class="job-summary">Advises on protection.</div>
<div class="deadline"><span>Closes soon</span></div>
</div>
<div class="job-card card">
<div class="job-title"><h1><a href="/jobs/old-post">Old Post</a></h1></div>
<div class="locations"><span class="locations">Geneva</span></div>
<div class="deadline"><span class="expired">Expired</span></div>
</div>
<p>After this post, you will find only expired jobs.</p>
</main></body></html>`

// boards serves the three job boards; extra adds one unjobs listing
type boards struct {
	extra     atomic.Bool
	careersUN atomic.Int32
}

func (b *boards) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		extra := ""
		if b.extra.Load() {
			extra = unjobsExtra
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, unjobsListing, extra)
	})
	mux.HandleFunc("/jobs/in-europe", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, untalentListing)
	})
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		b.careersUN.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)

		var payload struct {
			FilterConfig struct {
				DS []string `json:"ds"`
			} `json:"filterConfig"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.NotEmpty(t, payload.FilterConfig.DS)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":200,"data":{"count":1,"list":[{
			"jobId":260001,"jobTitle":"Human Rights Officer","jobDescription":"<p>Monitoring</p>",
			"startDate":"2025-08-01T00:00:00Z","dutyStation":[{"description":"GENEVA"}],
			"jc":{"name":"Human Rights"},"dept":{"name":"OHCHR"}}]}}`)
	})
	return mux
}

func testConfig(baseURL, dir string) *config.Config {
	cfg := config.LoadConfig()
	cfg.CareersUN = config.SourceConfig{Enabled: true, URL: baseURL + "/api/jobs", MaxPages: 3}
	cfg.UNJobs = config.SourceConfig{Enabled: true, URL: baseURL + "/new", MaxPages: 3}
	cfg.UNTalent = config.SourceConfig{Enabled: true, URL: baseURL + "/jobs/in-europe", MaxPages: 3}
	cfg.UNTalentRetries = 2
	cfg.UNTalentRetryGap = time.Millisecond
	cfg.RegionsFile = ""
	cfg.SnapshotFile = filepath.Join(dir, "snapshot.json")
	cfg.OutputFile = filepath.Join(dir, "jobs.json")
	cfg.NewJobsFile = filepath.Join(dir, "new_jobs.json")
	return cfg
}

func identities(jobs []crawler.Job) []string {
	ids := make([]string, 0, len(jobs))
	for _, job := range jobs {
		ids = append(ids, job.Identity)
	}
	return ids
}

func TestCrawlPipelineEndToEnd(t *testing.T) {
	b := &boards{}
	server := httptest.NewServer(b.handler(t))
	defer server.Close()

	dir := t.TempDir()
	cfg := testConfig(server.URL, dir)

	fetcher, err := helpers.NewHTTPFetcher(5*time.Second, nil, "")
	require.NoError(t, err)
	sources := crawler.CreateSources(cfg, fetcher, cache.NewMemoryService(), crawler.DefaultRegionTable())
	require.Len(t, sources, 3)

	tracker := status.NewTracker()
	w := worker.NewWorker(worker.Options{
		Sources:     sources,
		Store:       snapshot.NewFileStore(cfg.SnapshotFile),
		Tracker:     tracker,
		OutputFile:  cfg.OutputFile,
		NewJobsFile: cfg.NewJobsFile,
		RunOnce:     true,
	}, helpers.NewLogger(""))

	ctx := context.Background()

	first, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, first.FailedSources)
	assert.Len(t, first.Jobs, 3)
	assert.Len(t, first.NewJobs, 3)
	assert.Equal(t, 1, first.Sources["careersun"])
	assert.Equal(t, 1, first.Sources["unjobs"])
	assert.Equal(t, 1, first.Sources["untalent"])
	assert.Contains(t, identities(first.Jobs), "careersun-260001")
	assert.Contains(t, identities(first.Jobs), "unjobs-7001")
	assert.EqualValues(t, 1, b.careersUN.Load())

	for _, job := range first.Jobs {
		assert.NotContains(t, job.Title, "Springfield")
		if strings.HasPrefix(job.Identity, "untalent-") {
			assert.Equal(t, "Legal Officer - Geneva", job.Title)
		}
	}

	saved, err := snapshot.ReadJobsFile(cfg.SnapshotFile)
	require.NoError(t, err)
	assert.ElementsMatch(t, identities(first.Jobs), identities(saved))

	written, err := snapshot.ReadJobsFile(cfg.OutputFile)
	require.NoError(t, err)
	assert.Len(t, written, 3)

	b.extra.Store(true)
	second, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Len(t, second.Jobs, 4)
	require.Len(t, second.NewJobs, 1)
	assert.Equal(t, "unjobs-7003", second.NewJobs[0].Identity)
	assert.Equal(t, "UNIDO", second.NewJobs[0].Organization)

	fresh, err := snapshot.ReadJobsFile(cfg.NewJobsFile)
	require.NoError(t, err)
	assert.Equal(t, []string{"unjobs-7003"}, identities(fresh))

	assert.Equal(t, 2, tracker.Runs())
	last, ok := tracker.Last()
	require.True(t, ok)
	assert.Equal(t, 1, last.NewJobCount)
}

func TestCrawlPipelineReplay(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.json")
	require.NoError(t, snapshot.WriteJobsFile(input, []crawler.Job{
		{Identity: "unjobs-1", Title: "Clerk, Geneva", URL: "https://unjobs.org/vacancies/1", Organization: "WFP"},
		{Identity: "unjobs-1", Title: "Clerk, Geneva", URL: "https://unjobs.org/vacancies/1", Organization: "WFP"},
		{Identity: "careersun-2", Title: "Officer - GENEVA - Legal", URL: "https://careers.un.org/jobSearchDescription/2", Organization: "OLA"},
	}))
	snapshotFile := filepath.Join(dir, "snapshot.json")

	w := worker.NewWorker(worker.Options{
		Store:     snapshot.NewFileStore(snapshotFile),
		InputFile: input,
		RunOnce:   true,
	}, helpers.NewLogger(""))

	res, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Replay)
	assert.Len(t, res.Jobs, 2)
	assert.Len(t, res.NewJobs, 2)

	assert.NoFileExists(t, snapshotFile)
}
