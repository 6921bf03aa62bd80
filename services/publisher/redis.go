package publisher

import (
	"context"
	"encoding/base64"
	"math/rand/v2"
	"strconv"

	"github.com/redis/go-redis/v9"

	"sjsage522/unjobsworker/logger"
	"sjsage522/unjobsworker/pkg/errors"
)

// MessageField is the stream entry field holding the base64 job JSON
const MessageField = "b64_job"

// RedisPublisher implements Publisher on Redis streams. Each source owns
// streamCount shards named <prefix>:<source>:<n>.
type RedisPublisher struct {
	client          *redis.Client
	streamPrefix    string
	streamCount     int
	streamMaxLength int
}

// NewRedisPublisher creates a new Redis publisher
func NewRedisPublisher(addr string, db int, streamPrefix string, streamCount int, streamMaxLength int) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if streamCount <= 0 {
		streamCount = 1
	}

	return &RedisPublisher{
		client:          client,
		streamPrefix:    streamPrefix,
		streamCount:     streamCount,
		streamMaxLength: streamMaxLength,
	}
}

// StreamName returns the shard stream for a source
func (p *RedisPublisher) StreamName(source string, shard int) string {
	return p.streamPrefix + ":" + source + ":" + strconv.Itoa(shard)
}

// Publish base64-encodes message and appends it to a random shard of the source's stream
func (p *RedisPublisher) Publish(ctx context.Context, source string, message []byte) error {
	encoded := base64.StdEncoding.EncodeToString(message)
	stream := p.StreamName(source, rand.IntN(p.streamCount))

	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			MessageField: encoded,
		},
	}).Err()
	if err != nil {
		return errors.NewPublisher(source, "failed to add to "+stream, err)
	}
	return nil
}

// TrimStreams trims every stream under the prefix to the configured maximum length
func (p *RedisPublisher) TrimStreams(ctx context.Context) error {
	if p.streamMaxLength <= 0 {
		return nil
	}
	log := logger.ForPublisher()
	// other keys may share the prefix, so only streams are scanned
	iter := p.client.ScanType(ctx, 0, p.streamPrefix+":*", 100, "stream").Iterator()
	for iter.Next(ctx) {
		stream := iter.Val()
		trimmed, err := p.client.XTrimMaxLen(ctx, stream, int64(p.streamMaxLength)).Result()
		if err != nil {
			return errors.NewPublisher("redis", "failed to trim "+stream, err)
		}
		if trimmed > 0 {
			log.Debug().Str("stream", stream).Int64("trimmed", trimmed).Msg("Trimmed stream")
		}
	}
	if err := iter.Err(); err != nil {
		return errors.NewPublisher("redis", "failed to scan streams", err)
	}
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
