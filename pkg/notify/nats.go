package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATS publishes to a JetStream stream under "stacksx.<lineage>.<topic>".
// The message id lets JetStream drop duplicates from retried requests.
type NATS struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	stream string
}

const natsSubjectPrefix = "stacksx"

// NewNATS connects and creates the stream when it does not exist yet.
func NewNATS(logger *zap.Logger, url, stream string) (*NATS, error) {
	if url == "" {
		url = nats.DefaultURL
	}

	conn, err := nats.Connect(url, nats.RetryOnFailedConnect(true), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if _, err := js.StreamInfo(stream); err != nil {
		logger.Info("Creating JetStream stream", zap.String("stream", stream))
		_, err = js.AddStream(&nats.StreamConfig{
			Name:       stream,
			Subjects:   []string{natsSubjectPrefix + ".>"},
			Retention:  nats.LimitsPolicy,
			Storage:    nats.FileStorage,
			MaxAge:     72 * time.Hour,
			Duplicates: 10 * time.Minute,
			Replicas:   1,
		})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create stream %s: %w", stream, err)
		}
	}

	return &NATS{conn: conn, js: js, stream: stream}, nil
}

// Subject names the JetStream subject of a topic.
func Subject(lineage string, topic Topic) string {
	return fmt.Sprintf("%s.%s.%s", natsSubjectPrefix, lineage, topic)
}

func (n *NATS) Name() string { return "nats" }

func (n *NATS) Publish(ctx context.Context, msg Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	_, err = n.js.Publish(Subject(msg.Lineage, msg.Topic), data,
		nats.Context(ctx),
		nats.MsgId(msg.ID+":"+string(msg.Topic)))
	return err
}

func (n *NATS) Close() error {
	return n.conn.Drain()
}
