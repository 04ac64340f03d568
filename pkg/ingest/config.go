package ingest

import (
	"time"

	"github.com/canopy-network/stacksx/pkg/retry"
	"github.com/canopy-network/stacksx/pkg/utils"
)

type Config struct {
	// DefaultLineage receives messages that do not name a lineage.
	DefaultLineage string
	// RetainDepth is the number of canonical blocks kept for fork
	// resolution. Zero keeps everything.
	RetainDepth int
	// DedupTTL is how long a stored mempool drop suppresses repeats.
	DedupTTL time.Duration
	// QueueSize bounds the blocks waiting for a lineage's writer.
	QueueSize int
	Retry     retry.Config
}

func ConfigFromEnv() Config {
	return Config{
		DefaultLineage: utils.Env("LINEAGE", "mainnet"),
		RetainDepth:    utils.EnvInt("REORG_RETAIN_DEPTH", 20000),
		DedupTTL:       utils.EnvDuration("MEMPOOL_DEDUP_TTL", time.Hour),
		QueueSize:      utils.EnvInt("INGEST_QUEUE_SIZE", 64),
		Retry:          retry.StorageConfig(),
	}
}
