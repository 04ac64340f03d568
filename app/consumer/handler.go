package consumer

import (
	"context"
	"errors"
	"fmt"

	"github.com/canopy-network/stacksx/pkg/ingest"
	"github.com/canopy-network/stacksx/pkg/redis"
	"go.uber.org/zap"
)

// Dispatcher ingests one message. *ingest.Ingestor implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, lineage, kind string, data []byte) (ingest.Result, error)
}

// NewHandler feeds stream entries to d. Entries that can never succeed are
// dead-lettered. Sequencing failures are requeued so the entry is retried
// once the messages it depends on were ingested; storage failures stay
// pending and count toward the delivery limit.
func NewHandler(d Dispatcher, logger *zap.Logger) redis.MessageHandler {
	return func(ctx context.Context, msg redis.Message) error {
		data := msg.GetData()
		if data == nil {
			return redis.DeadLetter(fmt.Errorf("entry %s has no %s field", msg.ID, redis.FieldData))
		}

		res, err := d.Dispatch(ctx, msg.Lineage(), msg.Kind(), data)
		if err == nil {
			logger.Debug("Stream entry ingested",
				zap.String("entry_id", msg.ID),
				zap.String("request_id", res.RequestID),
				zap.String("lineage", res.Lineage),
				zap.String("kind", res.Kind),
				zap.String("action", res.Action))
			return nil
		}

		if errors.Is(err, ingest.ErrUnknownKind) || errors.Is(err, ingest.ErrUnknownLineage) {
			return redis.DeadLetter(err)
		}
		switch ingest.Classify(err) {
		case ingest.ClassValidation, ingest.ClassConsistency:
			return redis.DeadLetter(err)
		case ingest.ClassSequencing:
			return redis.Requeue(err)
		}
		return err
	}
}
