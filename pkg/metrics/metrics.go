// Package metrics holds the Prometheus collectors of the ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingest groups the collectors updated by the ingestor.
type Ingest struct {
	BlocksTotal        *prometheus.CounterVec
	RejectedTotal      *prometheus.CounterVec
	TipHeight          *prometheus.GaugeVec
	TipRetained        *prometheus.GaugeVec
	ReorgDepth         *prometheus.HistogramVec
	BurnBlocksTotal    *prometheus.CounterVec
	BurnOverflowTotal  *prometheus.CounterVec
	MempoolDropped     *prometheus.CounterVec
	MempoolDedupSize   *prometheus.GaugeVec
	StorageDuration    *prometheus.HistogramVec
	NotifyFailureTotal *prometheus.CounterVec
}

// NewIngest registers the collectors on reg. Pass prometheus.DefaultRegisterer
// in binaries and a fresh registry in tests.
func NewIngest(reg prometheus.Registerer) *Ingest {
	f := promauto.With(reg)
	return &Ingest{
		BlocksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stacksx_blocks_total",
			Help: "Blocks accepted, by reconciliation action",
		}, []string{"lineage", "action"}),
		RejectedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stacksx_rejected_total",
			Help: "Messages rejected, by message kind and error class",
		}, []string{"lineage", "kind", "class"}),
		TipHeight: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stacksx_tip_height",
			Help: "Height of the canonical chain tip",
		}, []string{"lineage"}),
		TipRetained: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stacksx_tip_retained_blocks",
			Help: "Canonical blocks kept in memory for fork resolution",
		}, []string{"lineage"}),
		ReorgDepth: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stacksx_reorg_depth",
			Help:    "Number of blocks orphaned by a reorganization",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 50, 100},
		}, []string{"lineage"}),
		BurnBlocksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stacksx_burn_blocks_total",
			Help: "Burn blocks stored",
		}, []string{"lineage"}),
		BurnOverflowTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stacksx_burn_reward_overflow_total",
			Help: "Burn blocks whose reward splits exceed the burn amount",
		}, []string{"lineage"}),
		MempoolDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stacksx_mempool_dropped_total",
			Help: "Dropped mempool transactions stored, by reason",
		}, []string{"lineage", "reason"}),
		MempoolDedupSize: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stacksx_mempool_dedup_entries",
			Help: "Recently stored mempool drops remembered for deduplication",
		}, []string{"lineage"}),
		StorageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stacksx_storage_duration_seconds",
			Help:    "Duration of storage writes including retries",
			Buckets: prometheus.DefBuckets,
		}, []string{"lineage", "op"}),
		NotifyFailureTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stacksx_notify_failures_total",
			Help: "Notifications a backend failed to publish",
		}, []string{"backend", "topic"}),
	}
}
