package replay

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/canopy-network/stacksx/pkg/ingest"
	"github.com/canopy-network/stacksx/pkg/redis"
	"go.uber.org/zap"
)

// Sink receives replayed messages. *ingest.Ingestor is one.
type Sink interface {
	Dispatch(ctx context.Context, lineage, kind string, data []byte) (ingest.Result, error)
}

// StreamSink appends messages to the ingestion stream for a consumer.
type StreamSink struct {
	client *redis.Client
	stream string
}

func NewStreamSink(client *redis.Client, stream string) *StreamSink {
	return &StreamSink{client: client, stream: stream}
}

func (s *StreamSink) Dispatch(ctx context.Context, lineage, kind string, data []byte) (ingest.Result, error) {
	id, err := s.client.XAdd(ctx, s.stream, redis.EntryValues(kind, lineage, data))
	if err != nil {
		return ingest.Result{Kind: kind, Lineage: lineage}, fmt.Errorf("append to %s: %w", s.stream, err)
	}
	return ingest.Result{RequestID: id, Kind: kind, Lineage: lineage, Action: "enqueued"}, nil
}

// Stats counts what a replay did.
type Stats struct {
	Read     int
	Ingested int
	Ignored  int
	Unknown  int
	Failed   int
}

type Replayer struct {
	Sink    Sink
	Lineage string
	Logger  *zap.Logger
	// ContinueOnError logs failed events instead of stopping.
	ContinueOnError bool
}

// Run replays every event of r in order.
func (rp *Replayer) Run(ctx context.Context, r *Reader) (Stats, error) {
	var stats Stats
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, err
		}
		stats.Read++

		kind, ignored, ok := ingest.Route(ev.Path)
		switch {
		case !ok:
			stats.Unknown++
			rp.Logger.Debug("Skipping unknown event path", zap.Int("line", ev.Line), zap.String("path", ev.Path))
			continue
		case ignored:
			stats.Ignored++
			continue
		}

		res, err := rp.Sink.Dispatch(ctx, rp.Lineage, kind, ev.Payload)
		if err != nil {
			stats.Failed++
			if !rp.ContinueOnError {
				return stats, fmt.Errorf("line %d (%s): %w", ev.Line, ev.Path, err)
			}
			rp.Logger.Warn("Replayed event rejected",
				zap.Int("line", ev.Line),
				zap.String("id", ev.ID),
				zap.String("path", ev.Path),
				zap.String("class", string(ingest.Classify(err))),
				zap.Error(err))
			continue
		}
		stats.Ingested++
		if stats.Ingested%1000 == 0 {
			rp.Logger.Info("Replay progress",
				zap.Int("line", ev.Line),
				zap.Int("ingested", stats.Ingested),
				zap.Uint64("height", res.Height))
		}
	}
}
