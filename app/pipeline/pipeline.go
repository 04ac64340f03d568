// Package pipeline wires the ingestion stack shared by the observer, the
// stream consumer and the replay tool.
package pipeline

import (
	"context"
	"fmt"
	"runtime"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/stacksx/pkg/db/chain"
	"github.com/canopy-network/stacksx/pkg/db/clickhouse"
	"github.com/canopy-network/stacksx/pkg/ingest"
	"github.com/canopy-network/stacksx/pkg/metrics"
	"github.com/canopy-network/stacksx/pkg/normalize"
	"github.com/canopy-network/stacksx/pkg/notify"
	"github.com/canopy-network/stacksx/pkg/redis"
	"github.com/canopy-network/stacksx/pkg/stacks/codec"
	"github.com/canopy-network/stacksx/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Pipeline is a running ingestor with its storage and notification backends.
type Pipeline struct {
	Logger   *zap.Logger
	Config   ingest.Config
	Ingestor *ingest.Ingestor
	Hub      *notify.Hub
	Notifier *notify.Fanout
	Metrics  *metrics.Ingest
	Registry *prometheus.Registry

	ClickHouse  clickhouse.Client
	Stores      map[string]*chain.DB
	RedisClient *redis.Client
	Pool        pond.Pool
}

// Options tune Build for a component.
type Options struct {
	// Component selects the ClickHouse pool sizing.
	Component string
	// RequireRedis fails Build when Redis cannot be reached.
	RequireRedis bool
}

// Lineages returns the lineages to serve: LINEAGES, always including the
// default lineage.
func Lineages(cfg ingest.Config) []string {
	names := utils.EnvList("LINEAGES", nil)
	return utils.Dedup(append([]string{cfg.DefaultLineage}, names...))
}

// Build connects storage, notification backends and the ingestor, and
// registers every configured lineage.
func Build(ctx context.Context, logger *zap.Logger, opts Options) (*Pipeline, error) {
	cfg := ingest.ConfigFromEnv()
	p := &Pipeline{
		Logger:   logger,
		Config:   cfg,
		Hub:      notify.NewHub(),
		Registry: prometheus.NewRegistry(),
		Stores:   make(map[string]*chain.DB),
	}
	p.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	p.Metrics = metrics.NewIngest(p.Registry)

	if opts.RequireRedis || utils.EnvBool("REDIS_ENABLED", false) {
		client, err := redis.NewClient(ctx, logger)
		switch {
		case err != nil && opts.RequireRedis:
			return nil, err
		case err != nil:
			logger.Warn("Failed to initialize Redis client - redis notifications disabled", zap.Error(err))
		default:
			p.RedisClient = client
		}
	}

	var rdb *goredis.Client
	if p.RedisClient != nil {
		rdb = p.RedisClient.GetClient()
	}
	notifier, err := notify.FromEnv(ctx, logger, p.Metrics, rdb, p.Hub)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.Notifier = notifier

	p.ClickHouse, err = clickhouse.New(ctx, logger, "default", clickhouse.GetPoolConfigForComponent(opts.Component))
	if err != nil {
		p.Close()
		return nil, err
	}

	p.Pool = pond.NewPool(utils.EnvInt("NORMALIZE_WORKERS", runtime.NumCPU()))
	assembler := normalize.NewAssembler(codec.Decoder{}, p.Pool, logger)
	p.Ingestor = ingest.New(logger, assembler, p.Notifier, p.Metrics, cfg)

	for _, lineage := range Lineages(cfg) {
		store := chain.NewWithSharedClient(p.ClickHouse, lineage)
		if err := store.InitializeDB(ctx); err != nil {
			p.Close()
			return nil, fmt.Errorf("initialize lineage %s: %w", lineage, err)
		}
		if _, err := p.Ingestor.AddLineage(ctx, lineage, store); err != nil {
			p.Close()
			return nil, err
		}
		p.Stores[lineage] = store
	}

	logger.Info("Ingestion pipeline ready",
		zap.Strings("lineages", p.Ingestor.Lineages()),
		zap.Strings("notify_backends", p.Notifier.Backends()),
		zap.Bool("redis", p.RedisClient != nil))
	return p, nil
}

// HealthChecks returns a probe per backing service.
func (p *Pipeline) HealthChecks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{
		"clickhouse": p.ClickHouse.Ping,
	}
	if p.RedisClient != nil {
		checks["redis"] = p.RedisClient.Health
	}
	return checks
}

// Close stops the ingestor and releases every connection. It is safe on a
// partially built pipeline.
func (p *Pipeline) Close() {
	if p.Ingestor != nil {
		p.Ingestor.Close()
	}
	if p.Pool != nil {
		p.Pool.StopAndWait()
	}
	if p.Notifier != nil {
		if err := p.Notifier.Close(); err != nil {
			p.Logger.Error("Failed to close notification backends", zap.Error(err))
		}
	}
	if p.ClickHouse.Db != nil {
		if err := p.ClickHouse.Close(); err != nil {
			p.Logger.Error("Failed to close database connection", zap.Error(err))
		}
	}
	if p.RedisClient != nil {
		if err := p.RedisClient.Close(); err != nil {
			p.Logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}
}
