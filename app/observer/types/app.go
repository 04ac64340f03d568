package types

import (
	"context"
	"net/http"
	"time"

	"github.com/canopy-network/stacksx/app/pipeline"
	"github.com/canopy-network/stacksx/pkg/ingest"
	"github.com/canopy-network/stacksx/pkg/notify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type App struct {
	// Pipeline owns storage and notification backends. Nil in tests.
	Pipeline *pipeline.Pipeline
	Ingestor *ingest.Ingestor
	// Hub feeds websocket subscribers.
	Hub      *notify.Hub
	Gatherer prometheus.Gatherer
	// HealthChecks are probed by /health, keyed by service name.
	HealthChecks map[string]func(context.Context) error

	// JWTSecret enables bearer auth on the ingestion routes when set.
	JWTSecret    []byte
	MaxBodyBytes int64

	// Cron runs ingestor maintenance according to CronSpec.
	Cron     *cron.Cron
	CronSpec string

	// Zap Logger
	Logger *zap.Logger
	// Server represents the HTTP server instance used to handle incoming node requests.
	Server *http.Server
}

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	if a.Cron != nil {
		a.Cron.Start()
		a.Logger.Info("Cron started", zap.String("cronSpec", a.CronSpec))
	}

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Stop accepting node posts before the ingestor goes away.
	_ = a.Server.Shutdown(shutdownCtx)
	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}
	if a.Pipeline != nil {
		a.Pipeline.Close()
	}

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
