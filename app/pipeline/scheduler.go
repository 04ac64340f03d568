package pipeline

import (
	"context"
	"time"

	"github.com/canopy-network/stacksx/pkg/utils"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultMaintenanceSpec runs maintenance every five minutes. The seconds
// field is required.
const DefaultMaintenanceSpec = "0 */5 * * * *"

// Maintainer is the periodic housekeeping of an ingestor.
type Maintainer interface {
	Maintain(ctx context.Context) error
}

// cronLogger adapts zap to the cron logger.
type cronLogger struct{ sugar *zap.SugaredLogger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}

// MaintenanceSpec reads MAINTENANCE_CRON.
func MaintenanceSpec() string {
	return utils.Env("MAINTENANCE_CRON", DefaultMaintenanceSpec)
}

// NewScheduler returns a stopped cron running m.Maintain on spec. Each run is
// bounded to 25 seconds.
func NewScheduler(ctx context.Context, logger *zap.Logger, m Maintainer, spec string) (*cron.Cron, error) {
	cl := cronLogger{sugar: logger.Named("cron").Sugar()}
	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cl)), cron.WithLogger(cl))

	_, err := c.AddFunc(spec, func() {
		rctx, cancel := context.WithTimeout(ctx, 25*time.Second)
		defer cancel()
		if err := m.Maintain(rctx); err != nil {
			logger.Warn("Maintenance run failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
