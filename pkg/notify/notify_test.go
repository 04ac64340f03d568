package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/canopy-network/stacksx/pkg/metrics"
)

func testMessage() Message {
	return Message{
		ID:      "req-1",
		Lineage: "mainnet",
		Topic:   TopicBlockCanonical,
		Time:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Payload: BlockCanonical{Height: 7, IndexBlockHash: "0x01", TipVersion: 3},
	}
}

type failingPublisher struct{ calls int }

func (f *failingPublisher) Name() string { return "broken" }
func (f *failingPublisher) Publish(context.Context, Message) error {
	f.calls++
	return errors.New("unavailable")
}
func (f *failingPublisher) Close() error { return nil }

func TestChannelAndSubject(t *testing.T) {
	assert.Equal(t, "stacksx:mainnet:block.canonical", Channel("mainnet", TopicBlockCanonical))
	assert.Equal(t, "stacksx.testnet.mempool.dropped", Subject("testnet", TopicMempoolDropped))
}

func TestMessageEncode(t *testing.T) {
	data, err := testMessage().Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "req-1",
		"lineage": "mainnet",
		"topic": "block.canonical",
		"time": "2024-01-02T03:04:05Z",
		"payload": {
			"height": 7, "block_hash": "", "index_block_hash": "0x01", "parent_index_block_hash": "",
			"burn_block_height": 0, "transactions": 0, "events": 0, "tip_version": 3
		}
	}`, string(data))
}

func TestRedisPublish(t *testing.T) {
	client, mock := redismock.NewClientMock()
	msg := testMessage()
	data, err := msg.Encode()
	require.NoError(t, err)

	mock.ExpectPublish("stacksx:mainnet:block.canonical", data).SetVal(1)
	require.NoError(t, NewRedis(client).Publish(context.Background(), msg))

	mock.ExpectPublish("stacksx:mainnet:block.canonical", data).SetErr(errors.New("connection refused"))
	require.Error(t, NewRedis(client).Publish(context.Background(), msg))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestKafkaMessage(t *testing.T) {
	record, err := kafkaMessage(testMessage())
	require.NoError(t, err)
	assert.Equal(t, []byte("mainnet"), record.Key)
	require.Len(t, record.Headers, 2)
	assert.Equal(t, "topic", record.Headers[0].Key)
	assert.Equal(t, []byte("block.canonical"), record.Headers[0].Value)
	assert.Equal(t, []byte("req-1"), record.Headers[1].Value)
}

func TestHubDeliversAndDropsWhenFull(t *testing.T) {
	hub := NewHub()
	fast := hub.Subscribe(4)
	slow := hub.Subscribe(1)
	defer fast.Close()
	assert.Equal(t, 2, hub.Subscribers())

	for i := 0; i < 3; i++ {
		require.NoError(t, hub.Publish(context.Background(), testMessage()))
	}

	assert.Len(t, fast.C, 3)
	assert.Len(t, slow.C, 1)
	assert.Equal(t, uint64(2), slow.Dropped())

	slow.Close()
	assert.Equal(t, 1, hub.Subscribers())
	require.NoError(t, hub.Publish(context.Background(), testMessage()))
	assert.Len(t, slow.C, 1)
}

func TestFanoutContinuesPastFailures(t *testing.T) {
	m := metrics.NewIngest(prometheus.NewRegistry())
	hub := NewHub()
	sub := hub.Subscribe(1)
	defer sub.Close()
	broken := &failingPublisher{}

	f := NewFanout(zaptest.NewLogger(t), m, broken, hub)
	assert.Equal(t, []string{"broken", "hub"}, f.Backends())

	err := f.Publish(context.Background(), testMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken: unavailable")
	assert.Equal(t, 1, broken.calls)
	assert.Len(t, sub.C, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.NotifyFailureTotal.WithLabelValues("broken", "block.canonical")))
	require.NoError(t, f.Close())
}

func TestFromEnv(t *testing.T) {
	logger := zaptest.NewLogger(t)
	hub := NewHub()

	t.Run("default is hub only", func(t *testing.T) {
		t.Setenv("NOTIFY_BACKENDS", "")
		f, err := FromEnv(context.Background(), logger, nil, nil, hub)
		require.NoError(t, err)
		assert.Equal(t, []string{"hub"}, f.Backends())
	})

	t.Run("redis without client", func(t *testing.T) {
		t.Setenv("NOTIFY_BACKENDS", "redis")
		_, err := FromEnv(context.Background(), logger, nil, nil, hub)
		require.Error(t, err)
	})

	t.Run("redis and kafka", func(t *testing.T) {
		t.Setenv("NOTIFY_BACKENDS", "redis, kafka")
		client, _ := redismock.NewClientMock()
		f, err := FromEnv(context.Background(), logger, nil, client, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"redis", "kafka"}, f.Backends())
		require.NoError(t, f.Close())
	})

	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("NOTIFY_BACKENDS", "carrier-pigeon")
		_, err := FromEnv(context.Background(), logger, nil, nil, hub)
		require.ErrorContains(t, err, "carrier-pigeon")
	})
}
