// Package ingest is the entry point of the pipeline: it decodes node
// envelopes, normalizes them, reconciles blocks against the lineage's chain
// tip, stores the result and publishes notifications once storage has
// acknowledged it.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/canopy-network/stacksx/pkg/metrics"
	"github.com/canopy-network/stacksx/pkg/normalize"
	"github.com/canopy-network/stacksx/pkg/notify"
	"github.com/canopy-network/stacksx/pkg/reorg"
	"github.com/canopy-network/stacksx/pkg/stacks/node"
	"github.com/canopy-network/stacksx/pkg/stacks/value"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// Notifier receives the outcome of every stored message.
type Notifier interface {
	Publish(ctx context.Context, msg notify.Message) error
}

// Message kinds, as used in results, logs and metrics.
const (
	KindBlock       = "block"
	KindBurnBlock   = "burn_block"
	KindMempoolDrop = "mempool_drop"
)

// Result reports what happened to one ingested message.
type Result struct {
	RequestID      string `json:"request_id"`
	Lineage        string `json:"lineage"`
	Kind           string `json:"kind"`
	Action         string `json:"action,omitempty"`
	Height         uint64 `json:"height,omitempty"`
	IndexBlockHash string `json:"index_block_hash,omitempty"`
	TipVersion     uint64 `json:"tip_version,omitempty"`
	Orphaned       int    `json:"orphaned,omitempty"`
	Overflow       bool   `json:"overflow,omitempty"`
	Dropped        int    `json:"dropped,omitempty"`
}

type Ingestor struct {
	logger    *zap.Logger
	cfg       Config
	assembler *normalize.Assembler
	notifier  Notifier
	metrics   *metrics.Ingest
	lineages  *xsync.Map[string, *Lineage]

	now   func() time.Time
	newID func() string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns an ingestor without lineages. notifier and m may be nil.
func New(logger *zap.Logger, assembler *normalize.Assembler, notifier Notifier, m *metrics.Ingest, cfg Config) *Ingestor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Ingestor{
		logger:    logger,
		cfg:       cfg,
		assembler: assembler,
		notifier:  notifier,
		metrics:   m,
		lineages:  xsync.NewMap[string, *Lineage](),
		now:       time.Now,
		newID:     uuid.NewString,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// AddLineage registers a lineage backed by store, restores its chain tip
// from storage and starts its writer.
func (i *Ingestor) AddLineage(ctx context.Context, name string, store Storage) (*Lineage, error) {
	if name == "" {
		return nil, fmt.Errorf("lineage name is required")
	}
	l := newLineage(name, i.logger, store, i.cfg, i.metrics, i.now)
	if err := l.warmStart(ctx); err != nil {
		return nil, err
	}
	if _, loaded := i.lineages.LoadOrStore(name, l); loaded {
		return nil, fmt.Errorf("lineage %s already registered", name)
	}

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		l.run(i.ctx)
	}()
	return l, nil
}

// Lineage resolves a lineage by name; the empty name is the default one.
func (i *Ingestor) Lineage(name string) (*Lineage, error) {
	if name == "" {
		name = i.cfg.DefaultLineage
	}
	l, ok := i.lineages.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLineage, name)
	}
	return l, nil
}

// Lineages returns the registered lineage names, sorted.
func (i *Ingestor) Lineages() []string {
	names := make([]string, 0, i.lineages.Size())
	i.lineages.Range(func(name string, _ *Lineage) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// Tip returns the chain tip of a lineage, or nil when it is unknown.
func (i *Ingestor) Tip(lineage string) *reorg.ChainTip {
	l, err := i.Lineage(lineage)
	if err != nil {
		return nil
	}
	return l.Tip()
}

// IngestBlock handles a /new_block body for the default lineage.
func (i *Ingestor) IngestBlock(ctx context.Context, data []byte) (Result, error) {
	return i.IngestBlockTo(ctx, "", data)
}

// IngestBurnBlock handles a /new_burn_block body for the default lineage.
func (i *Ingestor) IngestBurnBlock(ctx context.Context, data []byte) (Result, error) {
	return i.IngestBurnBlockTo(ctx, "", data)
}

// IngestMempoolDrop handles a /drop_mempool_tx body for the default lineage.
func (i *Ingestor) IngestMempoolDrop(ctx context.Context, data []byte) (Result, error) {
	return i.IngestMempoolDropTo(ctx, "", data)
}

func (i *Ingestor) IngestBlockTo(ctx context.Context, lineage string, data []byte) (Result, error) {
	l, err := i.Lineage(lineage)
	if err != nil {
		return Result{Kind: KindBlock}, err
	}
	res := Result{RequestID: i.newID(), Lineage: l.name, Kind: KindBlock}
	logger := l.logger.With(zap.String("request_id", res.RequestID))

	raw, err := node.DecodeBlock(data)
	if err != nil {
		return res, i.reject(logger, res, fmt.Errorf("%w: %w", normalize.ErrMalformedBlock, err))
	}
	block, err := i.assembler.Assemble(ctx, raw)
	if err != nil {
		return res, i.reject(logger, res, err)
	}
	res.Height = block.Height
	res.IndexBlockHash = block.IndexBlockHash.String()
	logger = logger.With(
		zap.Uint64("height", block.Height),
		zap.String("index_block_hash", res.IndexBlockHash))

	var out reorg.Outcome
	err = l.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = l.applyBlock(ctx, logger, block)
		return err
	})
	if err != nil {
		return res, i.reject(logger, res, err)
	}

	res.Action = out.Action.String()
	res.TipVersion = out.Tip.Version()
	if i.metrics != nil {
		i.metrics.BlocksTotal.WithLabelValues(l.name, res.Action).Inc()
	}

	switch out.Action {
	case reorg.ActionDuplicate:
		logger.Debug("Duplicate block ignored", zap.Uint64("tip_version", res.TipVersion))
		return res, nil
	case reorg.ActionFork:
		res.Orphaned = len(out.Reorg.Orphaned)
		logger.Info("Chain reorganized",
			zap.Uint64("common_ancestor", out.Reorg.CommonAncestor.Height),
			zap.Int("orphaned", res.Orphaned),
			zap.Int("new_canonical", len(out.Reorg.NewCanonical)))
		if i.metrics != nil {
			i.metrics.ReorgDepth.WithLabelValues(l.name).Observe(float64(res.Orphaned))
		}
		i.publish(ctx, logger, res, notify.TopicBlockReorg, notify.BlockReorg{
			CommonAncestor: out.Reorg.CommonAncestor,
			Orphaned:       out.Reorg.Orphaned,
			NewCanonical:   out.Reorg.NewCanonical,
		})
	default:
		logger.Debug("Block applied", zap.Uint64("tip_version", res.TipVersion))
	}

	i.publish(ctx, logger, res, notify.TopicBlockCanonical, notify.BlockCanonical{
		Height:               block.Height,
		BlockHash:            block.Hash.String(),
		IndexBlockHash:       res.IndexBlockHash,
		ParentIndexBlockHash: block.ParentIndexBlockHash.String(),
		BurnBlockHeight:      block.BurnBlockHeight,
		Transactions:         len(block.Transactions),
		Events:               len(block.Events),
		TipVersion:           res.TipVersion,
	})
	return res, nil
}

// IngestBurnBlockTo stores a burn block. Reward splits exceeding the burn
// amount are logged as a consistency fault and stored flagged; the message
// itself is accepted.
func (i *Ingestor) IngestBurnBlockTo(ctx context.Context, lineage string, data []byte) (Result, error) {
	l, err := i.Lineage(lineage)
	if err != nil {
		return Result{Kind: KindBurnBlock}, err
	}
	res := Result{RequestID: i.newID(), Lineage: l.name, Kind: KindBurnBlock}
	logger := l.logger.With(zap.String("request_id", res.RequestID))

	raw, err := node.DecodeBurnBlock(data)
	if err != nil {
		return res, i.reject(logger, res, fmt.Errorf("%w: %w", normalize.ErrMalformedBurnBlock, err))
	}
	burn, err := normalize.NormalizeBurnBlock(raw)
	if burn == nil {
		return res, i.reject(logger, res, err)
	}
	res.Height = burn.Height
	res.Overflow = burn.Overflow
	logger = logger.With(
		zap.Uint64("burn_block_height", burn.Height),
		zap.String("burn_block_hash", burn.Hash.String()))
	if err != nil {
		logger.Error("Burn block reward split overflow", zap.Error(err))
		if i.metrics != nil {
			i.metrics.BurnOverflowTotal.WithLabelValues(l.name).Inc()
		}
	}

	if err := l.applyBurnBlock(ctx, logger, burn); err != nil {
		return res, i.reject(logger, res, err)
	}
	if i.metrics != nil {
		i.metrics.BurnBlocksTotal.WithLabelValues(l.name).Inc()
	}
	logger.Debug("Burn block applied", zap.Int("recipients", len(burn.Recipients)))

	i.publish(ctx, logger, res, notify.TopicBurnBlockApplied, notify.BurnBlockApplied{
		Hash:       burn.Hash.String(),
		Height:     burn.Height,
		BurnAmount: value.FormatAmount(burn.BurnAmount),
		SplitTotal: value.FormatAmount(burn.SplitTotal),
		Recipients: len(burn.Recipients),
		Overflow:   burn.Overflow,
	})
	return res, nil
}

// IngestMempoolDropTo records dropped transactions. Pairs already stored
// within the dedup window are skipped.
func (i *Ingestor) IngestMempoolDropTo(ctx context.Context, lineage string, data []byte) (Result, error) {
	l, err := i.Lineage(lineage)
	if err != nil {
		return Result{Kind: KindMempoolDrop}, err
	}
	res := Result{RequestID: i.newID(), Lineage: l.name, Kind: KindMempoolDrop}
	logger := l.logger.With(zap.String("request_id", res.RequestID))

	raw, err := node.DecodeDropMempoolTx(data)
	if err != nil {
		return res, i.reject(logger, res, fmt.Errorf("%w: %w", normalize.ErrMalformedMempoolDrop, err))
	}
	drop, err := normalize.NormalizeMempoolDrop(raw)
	if err != nil {
		return res, i.reject(logger, res, err)
	}

	fresh, err := l.markDropped(ctx, logger, drop)
	if err != nil {
		return res, i.reject(logger, res, err)
	}
	res.Dropped = len(fresh.TxIDs)
	if res.Dropped == 0 {
		logger.Debug("Mempool drop already recorded", zap.Int("txids", len(drop.TxIDs)))
		return res, nil
	}
	if i.metrics != nil {
		i.metrics.MempoolDropped.WithLabelValues(l.name, string(fresh.Reason)).Add(float64(res.Dropped))
	}

	txids := make([]string, len(fresh.TxIDs))
	for n, txid := range fresh.TxIDs {
		txids[n] = txid.String()
	}
	i.publish(ctx, logger, res, notify.TopicMempoolDropped, notify.MempoolDropped{
		TxIDs:  txids,
		Reason: string(fresh.Reason),
	})
	return res, nil
}

// Maintain expires old mempool dedup entries and prunes the chain history of
// every lineage.
func (i *Ingestor) Maintain(ctx context.Context) error {
	cutoff := i.now().Add(-i.cfg.DedupTTL)
	var errs []error
	i.lineages.Range(func(name string, l *Lineage) bool {
		expired := l.ExpireDropped(cutoff)
		if err := l.Prune(ctx); err != nil {
			errs = append(errs, fmt.Errorf("prune %s: %w", name, err))
		}
		l.observeTip(l.Tip())
		l.logger.Debug("Maintenance complete", zap.Int("expired_drops", expired))
		return true
	})
	return errors.Join(errs...)
}

// Close stops all writers. Pending submissions fail with ErrClosed.
func (i *Ingestor) Close() {
	i.cancel()
	i.wg.Wait()
}

func (i *Ingestor) reject(logger *zap.Logger, res Result, err error) error {
	class := Classify(err)
	fields := []zap.Field{
		zap.String("kind", res.Kind),
		zap.String("class", string(class)),
		zap.Error(err),
	}
	var bae *normalize.BlockAssemblyError
	if errors.As(err, &bae) {
		fields = append(fields,
			zap.Uint64("height", bae.Height),
			zap.String("index_block_hash", bae.IndexBlockHash))
	}

	switch class {
	case ClassValidation:
		logger.Warn("Message rejected", fields...)
	case ClassSequencing:
		logger.Warn("Message out of sequence", fields...)
	default:
		logger.Error("Message failed", fields...)
	}
	if i.metrics != nil {
		i.metrics.RejectedTotal.WithLabelValues(res.Lineage, res.Kind, string(class)).Inc()
	}
	return err
}

func (i *Ingestor) publish(ctx context.Context, logger *zap.Logger, res Result, topic notify.Topic, payload any) {
	if i.notifier == nil {
		return
	}
	err := i.notifier.Publish(ctx, notify.Message{
		ID:      res.RequestID,
		Lineage: res.Lineage,
		Topic:   topic,
		Time:    i.now().UTC(),
		Payload: payload,
	})
	if err != nil {
		logger.Warn("Notification not delivered", zap.String("topic", string(topic)), zap.Error(err))
	}
}
