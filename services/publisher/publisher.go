package publisher

import "context"

// Publisher represents a service for publishing extraction events
type Publisher interface {
	// Publish publishes a message under key to one of the event streams
	Publish(ctx context.Context, key string, message []byte) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams(ctx context.Context) error

	// Close closes the publisher connection
	Close() error
}

// NopPublisher drops every message; used when no redis is configured
type NopPublisher struct{}

var _ Publisher = NopPublisher{}

// Publish discards message
func (NopPublisher) Publish(context.Context, string, []byte) error { return nil }

// TrimStreams does nothing
func (NopPublisher) TrimStreams(context.Context) error { return nil }

// Close does nothing
func (NopPublisher) Close() error { return nil }
