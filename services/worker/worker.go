package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"sjsage522/unjobsworker/helpers"
	"sjsage522/unjobsworker/internal/crawler"
	"sjsage522/unjobsworker/logger"
	"sjsage522/unjobsworker/services/classifier"
	"sjsage522/unjobsworker/services/indexer"
	"sjsage522/unjobsworker/services/notifier"
	"sjsage522/unjobsworker/services/publisher"
	"sjsage522/unjobsworker/services/snapshot"
	"sjsage522/unjobsworker/services/status"
)

// Options wires the worker's collaborators. Publisher, Indexer, Notifier
// and Tracker are optional.
type Options struct {
	Sources []crawler.Source
	Store   snapshot.Store

	Gateway          classifier.Gateway
	ClassifyBatch    int
	ClassifyParallel int

	Publisher publisher.Publisher
	Indexer   indexer.Indexer
	Notifier  notifier.Notifier
	Tracker   *status.Tracker

	// InputFile switches the worker to replay mode: jobs are read from it instead of crawled
	InputFile   string
	OutputFile  string
	NewJobsFile string

	Interval time.Duration
	RunOnce  bool
}

// Result describes one run
type Result struct {
	RunID         string
	StartedAt     time.Time
	Duration      time.Duration
	Replay        bool
	Jobs          []crawler.Job
	NewJobs       []crawler.Job
	Sources       map[string]int
	FailedSources []string

	// Skipped is set when nothing was collected and the run stopped early
	Skipped bool
}

// Worker runs the crawl, diff, classify and notify pipeline
type Worker struct {
	opts   Options
	logger helpers.LoggerInterface
	now    func() time.Time
	newID  func() string
}

// NewWorker creates a new worker
func NewWorker(opts Options, logger helpers.LoggerInterface) *Worker {
	if opts.Gateway == nil {
		opts.Gateway = classifier.Noop{}
	}
	return &Worker{
		opts:   opts,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Start runs the pipeline, then repeats it every interval until ctx is done.
// With RunOnce it returns after the first run.
func (w *Worker) Start(ctx context.Context) error {
	for {
		res, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.LogError("Worker", err)
		} else {
			w.logger.LogInfo("Run %s finished in %s: %d jobs, %d new", res.RunID, res.Duration, len(res.Jobs), len(res.NewJobs))
		}
		if w.opts.RunOnce {
			return err
		}

		timer := time.NewTimer(w.opts.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// RunOnce executes a single run. Failures of individual sources and of the
// output collaborators are logged and never fail the run; only an unreadable
// replay file or a cancelled context does.
func (w *Worker) RunOnce(ctx context.Context) (res Result, err error) {
	res = Result{
		RunID:     w.newID(),
		StartedAt: w.now(),
		Replay:    w.opts.InputFile != "",
		Sources:   map[string]int{},
	}
	log := logger.ForWorker().WithField("run_id", res.RunID)
	defer func() {
		res.Duration = w.now().Sub(res.StartedAt)
		w.record(res)
	}()

	var jobs []crawler.Job
	if res.Replay {
		replayed, err := snapshot.ReadJobsFile(w.opts.InputFile)
		if err != nil {
			return res, err
		}
		jobs = replayed
		for _, j := range jobs {
			res.Sources[crawler.Prefix(j.Identity)]++
		}
		log.Info().Str("input", w.opts.InputFile).Int("jobs", len(jobs)).Msg("Replaying jobs from file")
	} else {
		jobs = w.crawl(ctx, &res)
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	res.Jobs = crawler.Dedupe(jobs)
	if len(res.Jobs) == 0 {
		log.Warn().Msg("No jobs found from any source")
		res.Skipped = true
		return res, nil
	}
	log.Info().Int("jobs", len(res.Jobs)).Msg("Total jobs found")

	// a replay already has its jobs on disk
	if w.opts.OutputFile != "" && !res.Replay {
		if err := snapshot.WriteJobsFile(w.opts.OutputFile, res.Jobs); err != nil {
			w.logger.LogError("Output", err)
		}
	}

	base := w.baseline(ctx)
	if absent := crawler.AbsentPrefixes(res.Jobs, base); len(absent) > 0 {
		log.Info().Strs("prefixes", absent).Msg("Sources missing from the previous snapshot are not reported as new")
	}
	res.NewJobs = crawler.Diff(res.Jobs, base)
	log.Info().Int("new_jobs", len(res.NewJobs)).Msg("Compared with previous snapshot")

	if len(res.NewJobs) > 0 {
		res.NewJobs = classifier.Classify(ctx, w.opts.Gateway, res.NewJobs, w.opts.ClassifyBatch, w.opts.ClassifyParallel)
	}

	if w.opts.NewJobsFile != "" {
		if err := snapshot.WriteJobsFile(w.opts.NewJobsFile, res.NewJobs); err != nil {
			w.logger.LogError("NewJobsOutput", err)
		}
	}

	if !res.Replay && w.opts.Store != nil {
		if err := w.opts.Store.Save(ctx, res.Jobs); err != nil {
			w.logger.LogError("Snapshot", err)
		}
	}

	w.publish(ctx, res.NewJobs)
	w.index(ctx, res.Jobs, res.NewJobs)

	if w.opts.Notifier != nil && len(res.NewJobs) > 0 {
		if err := w.opts.Notifier.Notify(ctx, res.NewJobs); err != nil {
			w.logger.LogError("Notifier", err)
		}
	}

	return res, nil
}

// crawl runs every source concurrently. A failing source is logged and
// contributes nothing; the others are unaffected.
func (w *Worker) crawl(ctx context.Context, res *Result) []crawler.Job {
	slots := make([][]crawler.Job, len(w.opts.Sources))
	failed := make([]bool, len(w.opts.Sources))

	var g errgroup.Group
	for i, src := range w.opts.Sources {
		g.Go(func() error {
			start := w.now()
			jobs, err := crawler.Paginate(ctx, src)
			if err != nil {
				w.logger.LogError(src.Name(), err)
				failed[i] = true
				return nil
			}
			slots[i] = jobs
			logger.ForSource(src.Name()).Info().
				Int("jobs", len(jobs)).
				Dur("took", w.now().Sub(start)).
				Msg("Source crawled")
			return nil
		})
	}
	_ = g.Wait()

	var all []crawler.Job
	for i, src := range w.opts.Sources {
		res.Sources[src.Name()] = len(slots[i])
		if failed[i] {
			res.FailedSources = append(res.FailedSources, src.Name())
		}
		all = append(all, slots[i]...)
	}
	return all
}

// baseline loads the previous snapshot; an unreadable one counts as empty
func (w *Worker) baseline(ctx context.Context) crawler.Baseline {
	if w.opts.Store == nil {
		return crawler.NewBaseline(nil)
	}
	prev, err := w.opts.Store.Load(ctx)
	if err != nil {
		w.logger.LogError("Snapshot", err)
		return crawler.NewBaseline(nil)
	}
	if len(prev) == 0 {
		w.logger.LogInfo("No previous snapshot, every job is new")
	}
	return crawler.NewBaseline(prev)
}

func (w *Worker) publish(ctx context.Context, jobs []crawler.Job) {
	if w.opts.Publisher == nil || len(jobs) == 0 {
		return
	}
	for _, job := range jobs {
		data, err := json.Marshal(job)
		if err != nil {
			w.logger.LogError("Publisher", err)
			continue
		}
		if err := w.opts.Publisher.Publish(ctx, crawler.Prefix(job.Identity), data); err != nil {
			w.logger.LogError("Publisher", err)
		}
	}
	if err := w.opts.Publisher.TrimStreams(ctx); err != nil {
		w.logger.LogError("StreamTrimming", err)
	}
}

// index sends all jobs, with the classification of the new ones applied
func (w *Worker) index(ctx context.Context, all, fresh []crawler.Job) {
	if w.opts.Indexer == nil {
		return
	}
	byID := make(map[string]crawler.Job, len(fresh))
	for _, j := range fresh {
		byID[j.Identity] = j
	}
	docs := make([]crawler.Job, len(all))
	for i, j := range all {
		if c, ok := byID[j.Identity]; ok {
			j = c
		}
		docs[i] = j
	}
	if err := w.opts.Indexer.Index(ctx, docs); err != nil {
		w.logger.LogError("Indexer", err)
	}
}

func (w *Worker) record(res Result) {
	if w.opts.Tracker == nil {
		return
	}
	w.opts.Tracker.Record(status.Run{
		RunID:         res.RunID,
		StartedAt:     res.StartedAt,
		Duration:      res.Duration.String(),
		Replay:        res.Replay,
		TotalJobs:     len(res.Jobs),
		NewJobs:       res.NewJobs,
		Sources:       res.Sources,
		FailedSources: res.FailedSources,
	})
}
