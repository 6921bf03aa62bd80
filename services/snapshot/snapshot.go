package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"sjsage522/unjobsworker/config"
	"sjsage522/unjobsworker/internal/crawler"
	"sjsage522/unjobsworker/pkg/errors"
)

// Store persists the previous run's jobs, the baseline the next run diffs against.
// Loading a store that has never been saved returns no jobs and no error.
type Store interface {
	Load(ctx context.Context) ([]crawler.Job, error)
	Save(ctx context.Context, jobs []crawler.Job) error
	Close() error
}

// FromConfig opens the store selected by SNAPSHOT_BACKEND
func FromConfig(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.SnapshotBackend {
	case "", config.SnapshotFile:
		return NewFileStore(cfg.SnapshotFile), nil
	case config.SnapshotRedis:
		return NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.SnapshotKey)
	case config.SnapshotSQLite:
		return OpenSQLite(ctx, cfg.SnapshotDSN)
	case config.SnapshotPostgres:
		return OpenPostgres(ctx, cfg.SnapshotDSN)
	default:
		return nil, errors.NewConfiguration(fmt.Sprintf("unknown snapshot backend %q", cfg.SnapshotBackend), nil)
	}
}

func sortByIdentity(jobs []crawler.Job) {
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].Identity < jobs[j].Identity
	})
}

func decodeJob(backend string, data []byte) (crawler.Job, error) {
	var job crawler.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return job, errors.NewSnapshot(backend, "corrupt snapshot entry", err)
	}
	return job, nil
}
