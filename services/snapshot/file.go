package snapshot

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"sjsage522/unjobsworker/internal/crawler"
	"sjsage522/unjobsworker/pkg/errors"
)

const lockRetryDelay = 50 * time.Millisecond

// FileStore keeps the snapshot as an indented JSON array, the same shape as
// OUTPUT_FILE, so a previous output file can serve as the baseline. A sidecar
// lock file serializes concurrent workers.
type FileStore struct {
	path string
	lock *flock.Flock
}

// NewFileStore creates a store backed by path
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the snapshot file path
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the snapshot; a missing file is an empty baseline
func (s *FileStore) Load(ctx context.Context) ([]crawler.Job, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return nil, nil
	}
	if _, err := s.lock.TryRLockContext(ctx, lockRetryDelay); err != nil {
		return nil, errors.NewSnapshot("file", "failed to lock "+s.path, err)
	}
	defer s.lock.Unlock()

	return ReadJobsFile(s.path)
}

// Save replaces the snapshot atomically
func (s *FileStore) Save(ctx context.Context, jobs []crawler.Job) error {
	// the lock file lives next to the snapshot, so its directory must exist first
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewSnapshot("file", "failed to create "+dir, err)
	}
	if _, err := s.lock.TryLockContext(ctx, lockRetryDelay); err != nil {
		return errors.NewSnapshot("file", "failed to lock "+s.path, err)
	}
	defer s.lock.Unlock()

	return WriteJobsFile(s.path, jobs)
}

// Close releases the lock handle
func (s *FileStore) Close() error {
	return s.lock.Close()
}

// ReadJobsFile decodes a JSON array of jobs
func ReadJobsFile(path string) ([]crawler.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewSnapshot("file", "failed to read "+path, err)
	}
	var jobs []crawler.Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, errors.NewSnapshot("file", "corrupt job file "+path, err)
	}
	return jobs, nil
}

// WriteJobsFile writes jobs as indented JSON through a temp file and rename
func WriteJobsFile(path string, jobs []crawler.Job) error {
	if jobs == nil {
		jobs = []crawler.Job{}
	}
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return errors.NewSnapshot("file", "failed to encode jobs", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewSnapshot("file", "failed to create "+dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.NewSnapshot("file", "failed to create temp file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return errors.NewSnapshot("file", "failed to write "+tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewSnapshot("file", "failed to close "+tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.NewSnapshot("file", "failed to replace "+path, err)
	}
	return nil
}
