package snapshot

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"sjsage522/unjobsworker/internal/crawler"
	"sjsage522/unjobsworker/pkg/errors"
)

// RedisStore keeps the snapshot in a hash of identity -> job JSON
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to addr and checks the server answers
func NewRedisStore(ctx context.Context, addr string, db int, key string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.NewSnapshot("redis", "server unreachable at "+addr, err)
	}
	return &RedisStore{client: client, key: key}, nil
}

// Load reads every job in the hash
func (s *RedisStore) Load(ctx context.Context) ([]crawler.Job, error) {
	entries, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, errors.NewSnapshot("redis", "failed to read "+s.key, err)
	}

	jobs := make([]crawler.Job, 0, len(entries))
	for _, raw := range entries {
		job, err := decodeJob("redis", []byte(raw))
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	sortByIdentity(jobs)
	return jobs, nil
}

// Save builds the new hash under a staging key and renames it over the old one
func (s *RedisStore) Save(ctx context.Context, jobs []crawler.Job) error {
	staging := s.key + ":staging"

	values := make(map[string]interface{}, len(jobs))
	for _, job := range jobs {
		data, err := json.Marshal(job)
		if err != nil {
			return errors.NewSnapshot("redis", "failed to encode "+job.Identity, err)
		}
		values[job.Identity] = data
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, staging)
		if len(values) == 0 {
			pipe.Del(ctx, s.key)
			return nil
		}
		pipe.HSet(ctx, staging, values)
		pipe.Rename(ctx, staging, s.key)
		return nil
	})
	if err != nil {
		return errors.NewSnapshot("redis", "failed to write "+s.key, err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
