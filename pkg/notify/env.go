package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/canopy-network/stacksx/pkg/metrics"
	"github.com/canopy-network/stacksx/pkg/utils"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// FromEnv builds the fanout named by NOTIFY_BACKENDS (comma list of
// redis, nats, kafka, hub; default "hub"). redisClient may be nil when the
// redis backend is not requested, and hub is always attached when non-nil.
func FromEnv(_ context.Context, logger *zap.Logger, m *metrics.Ingest, redisClient *redis.Client, hub *Hub) (*Fanout, error) {
	var publishers []Publisher
	closeAll := func() {
		for _, p := range publishers {
			_ = p.Close()
		}
	}

	for _, backend := range utils.Dedup(utils.EnvList("NOTIFY_BACKENDS", []string{"hub"})) {
		switch strings.ToLower(backend) {
		case "redis":
			if redisClient == nil {
				closeAll()
				return nil, fmt.Errorf("notify backend redis requested but no redis client is configured")
			}
			publishers = append(publishers, NewRedis(redisClient))
		case "nats":
			n, err := NewNATS(logger, utils.Env("NATS_URL", ""), utils.Env("NATS_STREAM", "STACKSX"))
			if err != nil {
				closeAll()
				return nil, err
			}
			publishers = append(publishers, n)
		case "kafka":
			publishers = append(publishers, NewKafka(
				utils.EnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
				utils.Env("KAFKA_TOPIC", "stacksx.events")))
		case "hub":
			// attached below
		default:
			closeAll()
			return nil, fmt.Errorf("unknown notify backend %q", backend)
		}
	}
	if hub != nil {
		publishers = append(publishers, hub)
	}

	f := NewFanout(logger, m, publishers...)
	logger.Info("Notification backends configured", zap.Strings("backends", f.Backends()))
	return f, nil
}
