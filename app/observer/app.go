package observer

import (
	"context"

	"github.com/canopy-network/stacksx/app/observer/controller"
	"github.com/canopy-network/stacksx/app/observer/types"
	"github.com/canopy-network/stacksx/app/pipeline"
	"github.com/canopy-network/stacksx/pkg/logging"
	"github.com/canopy-network/stacksx/pkg/utils"
	"go.uber.org/zap"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New("observer")
	if err != nil {
		// nothing else to do here, we'll just log to stderr'
		panic(err)
	}

	p, err := pipeline.Build(ctx, logger, pipeline.Options{Component: "observer"})
	if err != nil {
		logger.Fatal("Unable to build ingestion pipeline", zap.Error(err))
	}

	app := &types.App{
		Pipeline:     p,
		Ingestor:     p.Ingestor,
		Hub:          p.Hub,
		Gatherer:     p.Registry,
		HealthChecks: p.HealthChecks(),
		JWTSecret:    []byte(utils.Env("OBSERVER_JWT_SECRET", "")),
		MaxBodyBytes: utils.EnvInt64("OBSERVER_MAX_BODY_BYTES", controller.DefaultMaxBodyBytes),
		CronSpec:     pipeline.MaintenanceSpec(),
		Logger:       logger,
	}
	if len(app.JWTSecret) == 0 {
		logger.Info("OBSERVER_JWT_SECRET not set - ingestion routes accept unauthenticated posts")
	}

	app.Cron, err = pipeline.NewScheduler(ctx, logger, p.Ingestor, app.CronSpec)
	if err != nil {
		p.Close()
		logger.Fatal("Unable to schedule maintenance", zap.Error(err), zap.String("cronSpec", app.CronSpec))
	}

	return app
}
