package classifier

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/unjobsworker/internal/crawler"
	"sjsage522/unjobsworker/pkg/errors"
)

// fakeGateway answers every batch with a fixed category and records batch sizes
type fakeGateway struct {
	mu       sync.Mutex
	sizes    []int
	failOn   string
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeGateway) Classify(ctx context.Context, batch []Input) ([]Result, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.sizes = append(f.sizes, len(batch))
	f.mu.Unlock()

	var out []Result
	for _, in := range batch {
		if in.UUID == f.failOn {
			return nil, fmt.Errorf("gateway down")
		}
		out = append(out, Result{JobID: in.UUID, Category: string(crawler.CategoryRelevant), Reasoning: "matches " + in.Title})
	}
	out = append(out, Result{JobID: "someone-else", Category: "relevant"})
	return out, nil
}

func makeJobs(n int) []crawler.Job {
	jobs := make([]crawler.Job, n)
	for i := range jobs {
		jobs[i] = crawler.Job{
			Identity:    fmt.Sprintf("unjobs-%d", i),
			Title:       fmt.Sprintf("Job %d", i),
			URL:         fmt.Sprintf("https://unjobs.org/vacancies/%d", i),
			Description: "long text",
		}
	}
	return jobs
}

func TestClassifyBatchesOfTwenty(t *testing.T) {
	gw := &fakeGateway{}
	jobs := makeJobs(45)

	out := Classify(context.Background(), gw, jobs, DefaultBatchSize, 1)
	require.Len(t, out, 45)
	assert.ElementsMatch(t, []int{20, 20, 5}, gw.sizes)
	for i, j := range out {
		assert.Equal(t, jobs[i].Identity, j.Identity)
		assert.Equal(t, crawler.CategoryRelevant, j.Category)
		assert.Equal(t, "matches "+jobs[i].Title, j.Reasoning)
	}
	// The caller's slice is left untouched
	assert.Empty(t, jobs[0].Category)
}

func TestClassifyFailedBatchLeavesJobsUnclassified(t *testing.T) {
	gw := &fakeGateway{failOn: "unjobs-25"}

	out := Classify(context.Background(), gw, makeJobs(45), 20, 3)
	require.Len(t, out, 45)
	assert.Equal(t, crawler.CategoryRelevant, out[0].Category)
	assert.Empty(t, out[20].Category)
	assert.Empty(t, out[39].Category)
	assert.Equal(t, crawler.CategoryRelevant, out[40].Category)
}

// flakyGateway fails its first call with err, then answers everything
type flakyGateway struct {
	calls atomic.Int32
	err   error
}

func (f *flakyGateway) Classify(ctx context.Context, batch []Input) ([]Result, error) {
	if f.calls.Add(1) == 1 {
		return nil, f.err
	}
	out := make([]Result, 0, len(batch))
	for _, in := range batch {
		out = append(out, Result{JobID: in.UUID, Category: string(crawler.CategoryNeedsHumanReview)})
	}
	return out, nil
}

func TestClassifyRetriesRetryableBatchOnce(t *testing.T) {
	gw := &flakyGateway{err: errors.NewClassification("openai", "status 503", nil)}
	out := Classify(context.Background(), gw, makeJobs(3), 20, 1)
	assert.Equal(t, int32(2), gw.calls.Load())
	assert.Equal(t, crawler.CategoryNeedsHumanReview, out[0].Category)

	gw = &flakyGateway{err: errors.NewRateLimit("openai", "30")}
	out = Classify(context.Background(), gw, makeJobs(3), 20, 1)
	assert.Equal(t, int32(1), gw.calls.Load())
	assert.Empty(t, out[0].Category)
}

func TestClassifyHonoursConcurrencyLimit(t *testing.T) {
	gw := &fakeGateway{}
	Classify(context.Background(), gw, makeJobs(100), 5, 2)
	assert.Len(t, gw.sizes, 20)
	assert.LessOrEqual(t, gw.peak.Load(), int32(2))
}

func TestClassifyNoopAndEmpty(t *testing.T) {
	jobs := makeJobs(3)
	out := Classify(context.Background(), Noop{}, jobs, 20, 1)
	assert.Equal(t, jobs, out)

	assert.Empty(t, Classify(context.Background(), &fakeGateway{}, nil, 20, 1))
}

func TestNewInputDropsDescription(t *testing.T) {
	in := NewInput(makeJobs(1)[0])
	assert.Equal(t, "unjobs-0", in.UUID)
	assert.Equal(t, "Job 0", in.Title)
	assert.Equal(t, "https://unjobs.org/vacancies/0", in.URL)
}
