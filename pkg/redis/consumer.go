package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Entry field names of the ingestion stream.
const (
	FieldKind    = "kind"
	FieldData    = "data"
	FieldLineage = "lineage"
	FieldError   = "error"
	FieldSource  = "source_id"
)

// StreamConsumerConfig configures a StreamConsumer.
type StreamConsumerConfig struct {
	// Stream is the Redis stream name to consume from (required).
	Stream string

	// Group is the consumer group name (required).
	Group string

	// Consumer is the consumer name within the group (required).
	Consumer string

	// DeadLetterStream receives entries that will never be processed.
	// Default: Stream + ":dead".
	DeadLetterStream string

	// Count is the max number of entries to read per batch. Default: 100.
	Count int64

	// Block is how long to wait for new entries. Default: 5 seconds.
	Block time.Duration

	// MaxDeliveries is how often an entry is handed to the handler before it
	// is dead-lettered. Default: 5.
	MaxDeliveries int

	// RequeueTimeout is how long an entry failing with a Requeue error keeps
	// being retried, measured from its first failure. Default: 10 minutes.
	RequeueTimeout time.Duration

	// RetryInterval is how long to wait before retrying after a read error,
	// and before the first redelivery of failed entries. Default: 1 second.
	RetryInterval time.Duration

	// MaxRetryInterval is the maximum retry interval (with exponential backoff).
	// Default: 30 seconds.
	MaxRetryInterval time.Duration

	// Logger for logging. If nil, uses a no-op logger.
	Logger *zap.Logger
}

// MessageHandler processes a stream message. Returning nil acknowledges it.
// Any other error leaves it pending for redelivery, unless wrapped with
// DeadLetter. Errors wrapped with Requeue do not count toward MaxDeliveries.
type MessageHandler func(ctx context.Context, msg Message) error

// Message represents a single stream entry with parsed fields.
type Message struct {
	// ID is the Redis stream entry ID (e.g., "1234567890123-0").
	ID string

	// Stream is the stream name this message came from.
	Stream string

	// Values contains the entry fields as key-value pairs.
	Values map[string]interface{}
}

type deadLetterError struct{ err error }

func (d *deadLetterError) Error() string { return d.err.Error() }
func (d *deadLetterError) Unwrap() error { return d.err }

// DeadLetter marks a handler error as final: the entry is copied to the dead
// letter stream and acknowledged instead of being redelivered.
func DeadLetter(err error) error {
	if err == nil {
		return nil
	}
	return &deadLetterError{err: err}
}

// IsDeadLetter reports whether err was marked with DeadLetter.
func IsDeadLetter(err error) bool {
	var dead *deadLetterError
	return errors.As(err, &dead)
}

type requeueError struct{ err error }

func (r *requeueError) Error() string { return r.err.Error() }
func (r *requeueError) Unwrap() error { return r.err }

// Requeue marks a handler error as temporary, e.g. a message that arrived
// before the one it depends on. The entry stays pending and is retried with
// backoff until RequeueTimeout has passed since its first failure.
func Requeue(err error) error {
	if err == nil {
		return nil
	}
	return &requeueError{err: err}
}

// IsRequeue reports whether err was marked with Requeue.
func IsRequeue(err error) bool {
	var r *requeueError
	return errors.As(err, &r)
}

// StreamConsumer consumes a Redis stream through a consumer group. Entries
// the handler fails on stay pending. Before they are redelivered the
// consumer waits on new entries for a growing backoff, so a message that
// arrived too early is retried once the messages it depends on were read.
type StreamConsumer struct {
	client      *Client
	config      StreamConsumerConfig
	logger      *zap.Logger
	deliveries  map[string]int
	firstFailed map[string]time.Time
	now         func() time.Time
}

// NewStreamConsumer creates a new stream consumer.
func NewStreamConsumer(client *Client, config StreamConsumerConfig) (*StreamConsumer, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.Stream == "" {
		return nil, errors.New("stream name is required")
	}
	if config.Group == "" || config.Consumer == "" {
		return nil, errors.New("consumer group and consumer name are required")
	}

	if config.DeadLetterStream == "" {
		config.DeadLetterStream = config.Stream + ":dead"
	}
	if config.Count == 0 {
		config.Count = 100
	}
	if config.Block == 0 {
		config.Block = 5 * time.Second
	}
	if config.MaxDeliveries == 0 {
		config.MaxDeliveries = 5
	}
	if config.RetryInterval == 0 {
		config.RetryInterval = 1 * time.Second
	}
	if config.MaxRetryInterval == 0 {
		config.MaxRetryInterval = 30 * time.Second
	}
	if config.RequeueTimeout == 0 {
		config.RequeueTimeout = 10 * time.Minute
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StreamConsumer{
		client:      client,
		config:      config,
		logger:      logger.With(zap.String("stream", config.Stream), zap.String("group", config.Group)),
		deliveries:  make(map[string]int),
		firstFailed: make(map[string]time.Time),
		now:         time.Now,
	}, nil
}

// Run starts consuming messages and calls handler for each message.
// Blocks until context is cancelled. Automatically handles reconnection.
func (sc *StreamConsumer) Run(ctx context.Context, handler MessageHandler) error {
	if err := sc.client.XGroupCreateMkStream(ctx, sc.config.Stream, sc.config.Group, "0"); err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	sc.logger.Info("Consumer group ready", zap.String("consumer", sc.config.Consumer))

	retryInterval := sc.config.RetryInterval
	pendingDelay := sc.config.RetryInterval
	// start with our own pending entries left over from a previous run
	readPending, backoff := true, false

	for {
		select {
		case <-ctx.Done():
			sc.logger.Info("Stream consumer shutting down")
			return ctx.Err()
		default:
		}

		lastID, block := ">", sc.config.Block
		switch {
		case backoff:
			// wait before redelivering, but keep taking new entries
			block = pendingDelay
			backoff = false
		case readPending:
			// pending reads return immediately
			lastID, block = "0", -1
		}

		messages, err := sc.readMessages(ctx, lastID, block)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if errors.Is(err, redis.Nil) {
				// block timeout without entries
				continue
			}

			sc.logger.Warn("Error reading from stream, will retry",
				zap.Error(err),
				zap.Duration("retryIn", retryInterval))

			select {
			case <-time.After(retryInterval):
				retryInterval = min(retryInterval*2, sc.config.MaxRetryInterval)
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		retryInterval = sc.config.RetryInterval

		failed := false
		for _, msg := range messages {
			if !sc.processMessage(ctx, handler, msg) {
				failed = true
			}
		}

		switch {
		case lastID == "0" && failed:
			backoff = true
			pendingDelay = min(pendingDelay*2, sc.config.MaxRetryInterval)
		case lastID == "0":
			readPending = false
			pendingDelay = sc.config.RetryInterval
		case failed && !readPending:
			readPending, backoff = true, true
		}
	}
}

// readMessages reads a batch of messages from the stream.
func (sc *StreamConsumer) readMessages(ctx context.Context, lastID string, block time.Duration) ([]Message, error) {
	streams, err := sc.client.XReadGroup(ctx, sc.config.Group, sc.config.Consumer, sc.config.Stream, lastID, sc.config.Count, block)
	if err != nil {
		return nil, err
	}

	var messages []Message
	for _, stream := range streams {
		for _, xmsg := range stream.Messages {
			messages = append(messages, Message{
				ID:     xmsg.ID,
				Stream: stream.Stream,
				Values: xmsg.Values,
			})
		}
	}
	return messages, nil
}

// processMessage hands msg to handler and reports whether it is settled,
// i.e. acknowledged or dead-lettered.
func (sc *StreamConsumer) processMessage(ctx context.Context, handler MessageHandler, msg Message) bool {
	err := handler(ctx, msg)
	if err == nil {
		sc.forget(msg.ID)
		sc.ack(ctx, msg.ID)
		return true
	}

	switch {
	case IsDeadLetter(err):
	case IsRequeue(err):
		first, ok := sc.firstFailed[msg.ID]
		if !ok {
			first = sc.now()
			sc.firstFailed[msg.ID] = first
		}
		if waited := sc.now().Sub(first); waited < sc.config.RequeueTimeout {
			sc.logger.Info("Message requeued",
				zap.String("id", msg.ID),
				zap.Duration("waited", waited),
				zap.Error(err))
			return false
		}
	default:
		sc.deliveries[msg.ID]++
		if sc.deliveries[msg.ID] < sc.config.MaxDeliveries {
			sc.logger.Warn("Message left pending for redelivery",
				zap.String("id", msg.ID),
				zap.Int("deliveries", sc.deliveries[msg.ID]),
				zap.Error(err))
			return false
		}
	}

	if _, dlErr := sc.client.XAdd(ctx, sc.config.DeadLetterStream, deadLetterValues(msg, err)); dlErr != nil {
		sc.logger.Error("Failed to dead-letter message",
			zap.String("id", msg.ID),
			zap.Error(dlErr))
		return false
	}
	sc.logger.Error("Message dead-lettered",
		zap.String("id", msg.ID),
		zap.String("dead_letter_stream", sc.config.DeadLetterStream),
		zap.Int("deliveries", sc.deliveries[msg.ID]),
		zap.Error(err))
	sc.forget(msg.ID)
	sc.ack(ctx, msg.ID)
	return true
}

func (sc *StreamConsumer) forget(id string) {
	delete(sc.deliveries, id)
	delete(sc.firstFailed, id)
}

func (sc *StreamConsumer) ack(ctx context.Context, id string) {
	if _, err := sc.client.XAck(ctx, sc.config.Stream, sc.config.Group, id); err != nil {
		sc.logger.Warn("Failed to acknowledge message",
			zap.String("id", id),
			zap.Error(err))
	}
}

func deadLetterValues(msg Message, err error) []interface{} {
	return []interface{}{
		FieldKind, msg.Kind(),
		FieldLineage, msg.Lineage(),
		FieldData, string(msg.GetData()),
		FieldError, err.Error(),
		FieldSource, msg.ID,
	}
}

// EntryValues builds the fields of an ingestion stream entry.
func EntryValues(kind, lineage string, data []byte) []interface{} {
	return []interface{}{FieldKind, kind, FieldLineage, lineage, FieldData, string(data)}
}

// GetData is a helper to extract the "data" field from a message.
// Returns nil if not found.
func (m *Message) GetData() []byte {
	if data, ok := m.Values[FieldData].(string); ok {
		return []byte(data)
	}
	if data, ok := m.Values[FieldData].([]byte); ok {
		return data
	}
	return nil
}

// Kind is the message kind, e.g. "block".
func (m *Message) Kind() string {
	s, _ := m.Values[FieldKind].(string)
	return s
}

// Lineage is the target lineage; empty means the default one.
func (m *Message) Lineage() string {
	s, _ := m.Values[FieldLineage].(string)
	return s
}
