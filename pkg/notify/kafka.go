package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Kafka writes every topic to one Kafka topic, keyed by lineage so each
// lineage stays ordered within its partition. The notification topic is
// carried in the "topic" header.
type Kafka struct {
	writer *kafka.Writer
}

func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		BatchSize:              100,
		BatchTimeout:           10 * time.Millisecond,
	}}
}

func (k *Kafka) Name() string { return "kafka" }

func (k *Kafka) Publish(ctx context.Context, msg Message) error {
	record, err := kafkaMessage(msg)
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("kafka write error: %w", err)
	}
	return nil
}

func kafkaMessage(msg Message) (kafka.Message, error) {
	data, err := msg.Encode()
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(msg.Lineage),
		Value: data,
		Headers: []kafka.Header{
			{Key: "topic", Value: []byte(msg.Topic)},
			{Key: "request_id", Value: []byte(msg.ID)},
		},
		Time: msg.Time,
	}, nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
