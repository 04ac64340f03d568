package consumer

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/canopy-network/stacksx/app/pipeline"
	"github.com/canopy-network/stacksx/pkg/logging"
	"github.com/canopy-network/stacksx/pkg/redis"
	"github.com/canopy-network/stacksx/pkg/utils"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// App consumes node events that a relay appended to a Redis stream.
type App struct {
	Pipeline *pipeline.Pipeline
	Consumer *redis.StreamConsumer

	// Cron runs ingestor maintenance according to CronSpec.
	Cron     *cron.Cron
	CronSpec string

	// Logger is used to log messages, errors, and events during the application's lifecycle and operations.
	Logger *zap.Logger

	// Server exposes /health and /metrics.
	Server *http.Server
}

// ConsumerConfig reads the stream settings from the environment.
func ConsumerConfig(logger *zap.Logger) redis.StreamConsumerConfig {
	host, _ := os.Hostname()
	return redis.StreamConsumerConfig{
		Stream:         utils.Env("INGEST_STREAM", "stacks:events"),
		Group:          utils.Env("INGEST_GROUP", "stacksx"),
		Consumer:       utils.Env("INGEST_CONSUMER", "consumer-"+host),
		MaxDeliveries:  utils.EnvInt("INGEST_MAX_DELIVERIES", 5),
		RequeueTimeout: utils.EnvDuration("INGEST_REQUEUE_TIMEOUT", 10*time.Minute),
		Block:          utils.EnvDuration("INGEST_BLOCK", 5*time.Second),
		Logger:         logger,
	}
}

// Initialize initializes the application.
func Initialize(ctx context.Context) (*App, error) {
	logger, err := logging.New("consumer")
	if err != nil {
		return nil, err
	}

	p, err := pipeline.Build(ctx, logger, pipeline.Options{Component: "consumer", RequireRedis: true})
	if err != nil {
		return nil, err
	}

	sc, err := redis.NewStreamConsumer(p.RedisClient, ConsumerConfig(logger))
	if err != nil {
		p.Close()
		return nil, err
	}

	app := &App{
		Pipeline: p,
		Consumer: sc,
		CronSpec: pipeline.MaintenanceSpec(),
		Logger:   logger,
	}
	app.Cron, err = pipeline.NewScheduler(ctx, logger, p.Ingestor, app.CronSpec)
	if err != nil {
		p.Close()
		return nil, err
	}
	app.SetupServer()
	return app, nil
}

// Start consumes until ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	a.Cron.Start()
	a.Logger.Info("Cron started", zap.String("cronSpec", a.CronSpec))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()

	if err := a.Consumer.Run(ctx, NewHandler(a.Pipeline.Ingestor, a.Logger)); err != nil && ctx.Err() == nil {
		a.Logger.Error("Stream consumer stopped", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.Server.Shutdown(shutdownCtx)
	<-a.Cron.Stop().Done()
	a.Pipeline.Close()

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
