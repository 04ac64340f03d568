package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/canopy-network/stacksx/pkg/metrics"
	"github.com/canopy-network/stacksx/pkg/normalize"
	"github.com/canopy-network/stacksx/pkg/reorg"
	"github.com/canopy-network/stacksx/pkg/retry"
	"github.com/canopy-network/stacksx/pkg/stacks/value"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// Storage is the persistence port of one lineage. Implementations must be
// idempotent: the same call repeated converges on the same stored state.
type Storage interface {
	ApplyBlock(ctx context.Context, b *normalize.Block, info *reorg.ReorgInfo) error
	MarkDropped(ctx context.Context, txid value.TxID, reason normalize.DropReason) error
	ApplyBurnBlock(ctx context.Context, b *normalize.BurnBlock) error
}

// batchDropper is implemented by storages that record a whole drop notice
// in one write.
type batchDropper interface {
	MarkDroppedBatch(ctx context.Context, drop *normalize.MempoolDrop) error
}

// tipSource is implemented by storages that can reload the canonical chain
// after a restart.
type tipSource interface {
	CanonicalRefs(ctx context.Context, limit int) ([]reorg.BlockRef, error)
}

// canonicalSource is implemented by storages that can answer for blocks
// below the retained window, so replays of old blocks stay idempotent.
type canonicalSource interface {
	IsCanonical(ctx context.Context, indexBlockHash value.Hash) (bool, error)
}

type job struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

type dropKey struct {
	txid   value.TxID
	reason normalize.DropReason
}

// Lineage is the state of one independent chain. Blocks are reconciled and
// stored by a single writer goroutine in submission order; readers load the
// tip without locking.
type Lineage struct {
	name    string
	logger  *zap.Logger
	store   Storage
	cfg     Config
	metrics *metrics.Ingest
	now     func() time.Time

	tip     atomic.Pointer[reorg.ChainTip]
	jobs    chan job
	stopped chan struct{}
	dropped *xsync.Map[dropKey, time.Time]
}

func newLineage(name string, logger *zap.Logger, store Storage, cfg Config, m *metrics.Ingest, now func() time.Time) *Lineage {
	l := &Lineage{
		name:    name,
		logger:  logger.With(zap.String("lineage", name)),
		store:   store,
		cfg:     cfg,
		metrics: m,
		now:     now,
		jobs:    make(chan job, max(cfg.QueueSize, 1)),
		stopped: make(chan struct{}),
		dropped: xsync.NewMap[dropKey, time.Time](),
	}
	l.tip.Store(reorg.NewChainTip(name))
	return l
}

func (l *Lineage) Name() string { return l.name }

// Tip returns the current chain tip. The value is immutable.
func (l *Lineage) Tip() *reorg.ChainTip { return l.tip.Load() }

// warmStart reloads the canonical chain from storage, when it supports it.
func (l *Lineage) warmStart(ctx context.Context) error {
	src, ok := l.store.(tipSource)
	if !ok {
		return nil
	}
	limit := l.cfg.RetainDepth
	if limit <= 0 {
		limit = 20000
	}
	refs, err := src.CanonicalRefs(ctx, limit)
	if err != nil {
		return fmt.Errorf("load canonical chain of %s: %w", l.name, err)
	}
	tip := reorg.Restore(l.name, refs)
	l.tip.Store(tip)
	l.observeTip(tip)
	if head, ok := tip.Head(); ok {
		l.logger.Info("Restored chain tip",
			zap.Uint64("height", head.Height),
			zap.String("index_block_hash", head.IndexBlockHash.String()),
			zap.Uint64("root_height", tip.RootHeight()),
			zap.Int("loaded", len(refs)),
			zap.Int("retained", tip.Len()))
	}
	return nil
}

func (l *Lineage) run(ctx context.Context) {
	defer close(l.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-l.jobs:
			if err := j.ctx.Err(); err != nil {
				j.done <- err
				continue
			}
			j.done <- j.fn(j.ctx)
		}
	}
}

// do runs fn on the writer goroutine and waits for it.
func (l *Lineage) do(ctx context.Context, fn func(context.Context) error) error {
	j := job{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case l.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopped:
		return ErrClosed
	}
	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopped:
		select {
		case err := <-j.done:
			return err
		default:
			return ErrClosed
		}
	}
}

// write runs one storage operation with the configured retry policy.
func (l *Lineage) write(ctx context.Context, logger *zap.Logger, op string, fn func() error) error {
	start := time.Now()
	err := retry.WithBackoff(ctx, l.cfg.Retry, logger, op, fn)
	if l.metrics != nil {
		l.metrics.StorageDuration.WithLabelValues(l.name, op).Observe(time.Since(start).Seconds())
	}
	return err
}

// applyBlock reconciles b against the current tip and stores it. The tip is
// replaced only after storage acknowledged the block, so a failed write
// leaves the lineage exactly as it was. Must run on the writer goroutine.
func (l *Lineage) applyBlock(ctx context.Context, logger *zap.Logger, b *normalize.Block) (reorg.Outcome, error) {
	tip := l.tip.Load()
	out, err := reorg.Reconcile(ctx, tip, b)
	if errors.Is(err, reorg.ErrForkBeyondRetention) && l.storedCanonical(ctx, logger, b) {
		return reorg.Outcome{Action: reorg.ActionDuplicate, Block: reorg.RefOf(b), Tip: tip}, nil
	}
	if err != nil {
		return out, err
	}
	if out.Action == reorg.ActionDuplicate {
		return out, nil
	}

	err = l.write(ctx, logger, "apply_block", func() error {
		return l.store.ApplyBlock(ctx, b, out.Reorg)
	})
	if err != nil {
		return out, fmt.Errorf("store block %d: %w", b.Height, err)
	}

	l.tip.Store(out.Tip)
	l.observeTip(out.Tip)
	return out, nil
}

// storedCanonical asks storage whether b was already applied as canonical.
// A failed lookup counts as no, so the original error is reported.
func (l *Lineage) storedCanonical(ctx context.Context, logger *zap.Logger, b *normalize.Block) bool {
	src, ok := l.store.(canonicalSource)
	if !ok {
		return false
	}
	canonical, err := src.IsCanonical(ctx, b.IndexBlockHash)
	if err != nil {
		logger.Warn("Canonicality lookup failed",
			zap.Uint64("height", b.Height),
			zap.String("index_block_hash", b.IndexBlockHash.String()),
			zap.Error(err))
		return false
	}
	return canonical
}

// Prune trims the retained history to cfg.RetainDepth blocks.
func (l *Lineage) Prune(ctx context.Context) error {
	if l.cfg.RetainDepth <= 0 {
		return nil
	}
	return l.do(ctx, func(context.Context) error {
		before := l.tip.Load()
		after := before.Prune(l.cfg.RetainDepth)
		if after != before {
			l.tip.Store(after)
			l.observeTip(after)
			l.logger.Debug("Pruned chain history",
				zap.Uint64("root_height", after.RootHeight()),
				zap.Int("retained", after.Len()),
				zap.Int("orphans", after.OrphanCount()))
		}
		return nil
	})
}

func (l *Lineage) applyBurnBlock(ctx context.Context, logger *zap.Logger, b *normalize.BurnBlock) error {
	err := l.write(ctx, logger, "apply_burn_block", func() error {
		return l.store.ApplyBurnBlock(ctx, b)
	})
	if err != nil {
		return fmt.Errorf("store burn block %d: %w", b.Height, err)
	}
	return nil
}

// markDropped stores the pairs of drop not recorded within the dedup window
// and returns them. Pairs are claimed before the write so concurrent
// duplicates are skipped, and released again if the write fails.
func (l *Lineage) markDropped(ctx context.Context, logger *zap.Logger, drop *normalize.MempoolDrop) (*normalize.MempoolDrop, error) {
	now := l.now()
	fresh := &normalize.MempoolDrop{Reason: drop.Reason}
	for _, txid := range drop.TxIDs {
		if _, loaded := l.dropped.LoadOrStore(dropKey{txid: txid, reason: drop.Reason}, now); !loaded {
			fresh.TxIDs = append(fresh.TxIDs, txid)
		}
	}
	if len(fresh.TxIDs) == 0 {
		return fresh, nil
	}

	err := l.write(ctx, logger, "mark_dropped", func() error {
		if batch, ok := l.store.(batchDropper); ok {
			return batch.MarkDroppedBatch(ctx, fresh)
		}
		for _, txid := range fresh.TxIDs {
			if err := l.store.MarkDropped(ctx, txid, fresh.Reason); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		for _, txid := range fresh.TxIDs {
			l.dropped.Delete(dropKey{txid: txid, reason: fresh.Reason})
		}
		return nil, fmt.Errorf("store mempool drop: %w", err)
	}
	return fresh, nil
}

// ExpireDropped forgets drops recorded before cutoff and returns how many.
func (l *Lineage) ExpireDropped(cutoff time.Time) int {
	expired := 0
	l.dropped.Range(func(key dropKey, seen time.Time) bool {
		if seen.Before(cutoff) {
			l.dropped.Delete(key)
			expired++
		}
		return true
	})
	if l.metrics != nil {
		l.metrics.MempoolDedupSize.WithLabelValues(l.name).Set(float64(l.dropped.Size()))
	}
	return expired
}

func (l *Lineage) observeTip(tip *reorg.ChainTip) {
	if l.metrics == nil {
		return
	}
	if head, ok := tip.Head(); ok {
		l.metrics.TipHeight.WithLabelValues(l.name).Set(float64(head.Height))
	}
	l.metrics.TipRetained.WithLabelValues(l.name).Set(float64(tip.Len()))
}
