package messagequeue

import "context"

// Publisher publishes messages to a named queue.
type Publisher interface {
	Publish(ctx context.Context, queueName string, contentType string, body []byte) error
	Close() error
}
