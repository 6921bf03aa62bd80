package classifier

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"sjsage522/unjobsworker/internal/crawler"
	"sjsage522/unjobsworker/logger"
	"sjsage522/unjobsworker/pkg/errors"
)

// DefaultBatchSize keeps each gateway request well under provider rate limits
const DefaultBatchSize = 20

// Input is what the gateway sees of a job. Descriptions are never sent.
type Input struct {
	UUID         string     `json:"uuid"`
	Title        string     `json:"title"`
	URL          string     `json:"url"`
	Organization string     `json:"organization,omitempty"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

// Result is one evaluation returned by the gateway
type Result struct {
	JobID     string `json:"job_id"`
	Category  string `json:"category,omitempty"`
	Reasoning string `json:"reasoning,omitempty"`
}

// Gateway classifies one batch of jobs
type Gateway interface {
	Classify(ctx context.Context, batch []Input) ([]Result, error)
}

// Noop is the gateway used when no classification backend is configured
type Noop struct{}

// Classify returns no evaluations
func (Noop) Classify(ctx context.Context, batch []Input) ([]Result, error) {
	return nil, nil
}

// NewInput projects a job onto the gateway input
func NewInput(job crawler.Job) Input {
	return Input{
		UUID:         job.Identity,
		Title:        job.Title,
		URL:          job.URL,
		Organization: job.Organization,
		UpdatedAt:    job.UpdatedAt,
	}
}

// Classify sends jobs to gw in batches of batchSize, at most concurrency at
// a time, and returns copies of jobs annotated with the evaluations. A batch
// failing with a retryable error is sent once more; a batch that still fails is
// logged and leaves its jobs unclassified. Input order is preserved.
func Classify(ctx context.Context, gw Gateway, jobs []crawler.Job, batchSize, concurrency int) []crawler.Job {
	out := make([]crawler.Job, len(jobs))
	copy(out, jobs)
	if gw == nil || len(jobs) == 0 {
		return out
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	log := logger.ForClassifier()

	var batches [][]Input
	for start := 0; start < len(jobs); start += batchSize {
		end := min(start+batchSize, len(jobs))
		batch := make([]Input, 0, end-start)
		for _, job := range jobs[start:end] {
			batch = append(batch, NewInput(job))
		}
		batches = append(batches, batch)
	}

	results := make([][]Result, len(batches))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, batch := range batches {
		g.Go(func() error {
			log.Debug().
				Int("batch", i).
				Int("size", len(batch)).
				Int("total", len(jobs)).
				Msg("Classifying batch")

			res, err := gw.Classify(ctx, batch)
			if ce, ok := errors.AsCrawlerError(err); ok && ce.IsRetryable() && ctx.Err() == nil {
				log.Warn().Err(err).Int("batch", i).Msg("Retrying classification batch")
				res, err = gw.Classify(ctx, batch)
			}
			if err != nil {
				log.Error().Err(err).Int("batch", i).Msg("Classification batch failed")
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	byID := make(map[string]Result)
	for _, res := range results {
		for _, r := range res {
			byID[r.JobID] = r
		}
	}

	classified := 0
	for i := range out {
		if r, ok := byID[out[i].Identity]; ok {
			out[i].Category = crawler.Category(r.Category)
			out[i].Reasoning = r.Reasoning
			classified++
		}
	}
	log.Info().Int("jobs", len(out)).Int("classified", classified).Msg("Classification finished")

	return out
}
