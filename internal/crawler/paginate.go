package crawler

import (
	"context"
	"time"

	"sjsage522/unjobsworker/logger"
	"sjsage522/unjobsworker/pkg/errors"
)

// Paginate drives src from its first page until it reports exhaustion, the
// page ceiling is reached or a cursor repeats. Any page error fails the whole
// source and discards what was collected. The result is deduplicated.
func Paginate(ctx context.Context, src Source) ([]Job, error) {
	log := logger.ForSource(src.Name())

	var jobs []Job
	visited := map[string]struct{}{}
	cursor := ""

	for page := 0; page < src.MaxPages(); page++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewNetwork(src.Name(), "crawl cancelled", err)
		}
		visited[cursor] = struct{}{}

		result, err := src.FetchPage(ctx, cursor)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, result.Jobs...)

		log.Debug().
			Int("page", page).
			Int("jobs", len(result.Jobs)).
			Str("next", result.Next).
			Msg("Fetched page")

		if result.Next == "" {
			return Dedupe(jobs), nil
		}
		if _, seen := visited[result.Next]; seen {
			log.Warn().Str("cursor", result.Next).Msg("Next page was already visited, stopping")
			return Dedupe(jobs), nil
		}
		cursor = result.Next
	}

	log.Warn().Int("max_pages", src.MaxPages()).Msg("Page ceiling reached")
	return Dedupe(jobs), nil
}

// RetryPolicy bounds the retry-until-populated loop of a source
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration

	// Sleep waits between attempts; nil uses a context-aware timer
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do calls attempt until it reports a populated result, an error, or the
// attempt ceiling is hit. Running out of attempts is not an error.
// It returns how many attempts were made.
func (p RetryPolicy) Do(ctx context.Context, attempt func(ctx context.Context) (bool, error)) (int, error) {
	max := p.MaxAttempts
	if max <= 0 {
		max = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}

	for n := 1; ; n++ {
		populated, err := attempt(ctx)
		if err != nil {
			return n, err
		}
		if populated || n >= max {
			return n, nil
		}
		if err := sleep(ctx, p.Delay); err != nil {
			return n, err
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
