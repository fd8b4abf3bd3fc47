// Package mq carries judge requests in and verdicts out over a message broker.
package mq

import (
	"context"
	"time"
)

// MessageQueue combines publishing and consuming against one broker.
type MessageQueue interface {
	Producer
	Consumer

	// Ping verifies the broker is reachable
	Ping(ctx context.Context) error

	// Close stops consumers and flushes the producer
	Close() error
}

// Producer publishes messages.
type Producer interface {
	Publish(ctx context.Context, topic string, message *Message) error
}

// Consumer dispatches messages of subscribed topics to handlers.
type Consumer interface {
	// Subscribe registers a handler; consumption begins on Start.
	Subscribe(ctx context.Context, topic string, handler HandlerFunc, opts *SubscribeOptions) error

	Start() error

	// Stop waits for in-flight handlers to return
	Stop() error
}

// Message is a broker-neutral envelope.
type Message struct {
	ID        string            `json:"id"`
	Body      []byte            `json:"body"`
	Headers   map[string]string `json:"headers"`
	Timestamp time.Time         `json:"timestamp"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`

	// Expiration drops the message unhandled once it is older than this.
	Expiration time.Duration `json:"expiration"`
}

// HandlerFunc processes one message. A non-nil error requests a retry.
type HandlerFunc func(ctx context.Context, message *Message) error

// SubscribeOptions defines options for subscribing to a topic
type SubscribeOptions struct {
	// ConsumerGroup defaults to "codejudge-<topic>"
	ConsumerGroup string

	// Concurrency is the number of handler goroutines. Default: 1
	Concurrency int

	// MaxRetries is how often a failed message is handed back. Default: 0,
	// since re-running a submission repeats all of its side effects.
	MaxRetries int

	// RetryDelay between attempts. Default: 1 second
	RetryDelay time.Duration

	// DeadLetterTopic receives messages that exhausted their retries
	DeadLetterTopic string

	MessageTTL time.Duration

	// Limiter bounds fetched-but-unfinished messages
	Limiter FetchLimiter
}

// SetDefaults sets default values for subscribe options
func (o *SubscribeOptions) SetDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = time.Second
	}
}

// NewMessage creates a new message with the given body
func NewMessage(id string, body []byte) *Message {
	return &Message{
		ID:        id,
		Body:      body,
		Headers:   make(map[string]string),
		Timestamp: time.Now(),
	}
}

// SetHeader sets a header value
func (m *Message) SetHeader(key, value string) {
	if m.Headers == nil {
		m.Headers = make(map[string]string)
	}
	m.Headers[key] = value
}

// GetHeader retrieves a header value
func (m *Message) GetHeader(key string) (string, bool) {
	if m.Headers == nil {
		return "", false
	}
	val, ok := m.Headers[key]
	return val, ok
}

// Expired reports whether the message outlived its expiration at now.
func (m *Message) Expired(now time.Time) bool {
	return m.Expiration > 0 && !m.Timestamp.IsZero() && now.Sub(m.Timestamp) > m.Expiration
}
