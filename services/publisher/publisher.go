package publisher

import "context"

// Publisher fans new jobs out to downstream consumers
type Publisher interface {
	// Publish publishes one encoded job on behalf of a source
	Publish(ctx context.Context, source string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}
