package chain

import (
	"context"
	"fmt"

	"github.com/canopy-network/stacksx/pkg/db/entities"
	indexermodels "github.com/canopy-network/stacksx/pkg/db/models/indexer"
	"github.com/canopy-network/stacksx/pkg/db/transform"
	"github.com/canopy-network/stacksx/pkg/normalize"
	"github.com/canopy-network/stacksx/pkg/reorg"
	"github.com/canopy-network/stacksx/pkg/stacks/value"
	"go.uber.org/zap"
)

// Store describes the per-lineage database operations used by the ingestor.
// Every write is idempotent: replaying the same input converges on the same
// deduplicated rows.
type Store interface {
	DatabaseName() string
	InitializeDB(ctx context.Context) error

	ApplyBlock(ctx context.Context, b *normalize.Block, info *reorg.ReorgInfo) error
	MarkDropped(ctx context.Context, txid value.TxID, reason normalize.DropReason) error
	MarkDroppedBatch(ctx context.Context, drop *normalize.MempoolDrop) error
	ApplyBurnBlock(ctx context.Context, b *normalize.BurnBlock) error

	CanonicalRefs(ctx context.Context, limit int) ([]reorg.BlockRef, error)
	IsCanonical(ctx context.Context, indexBlockHash value.Hash) (bool, error)
	Close() error
}

var _ Store = (*DB)(nil)

// ApplyBlock writes the block's rows and then its canonicality flags. The
// flags go last so a reader never sees a canonical block without its rows.
func (db *DB) ApplyBlock(ctx context.Context, b *normalize.Block, info *reorg.ReorgInfo) error {
	now := db.now()
	rows, err := transform.Block(b, now)
	if err != nil {
		return err
	}

	if err := insert(ctx, db, entities.Blocks, indexermodels.BlockColumns, []*indexermodels.Block{rows.Block}); err != nil {
		return err
	}
	if err := insert(ctx, db, entities.Transactions, indexermodels.TransactionColumns, rows.Transactions); err != nil {
		return err
	}
	if err := insert(ctx, db, entities.Events, indexermodels.EventColumns, rows.Events); err != nil {
		return err
	}
	if err := insert(ctx, db, entities.MinerRewards, indexermodels.MinerRewardColumns, rows.MinerRewards); err != nil {
		return err
	}

	var orphaned, promoted []reorg.BlockRef
	if info != nil {
		orphaned, promoted = info.Orphaned, info.NewCanonical
	}
	flags := transform.Canonicality(b, orphaned, promoted, uint64(now.UnixNano()))
	if err := insert(ctx, db, entities.BlockCanonicality, indexermodels.CanonicalityColumns, flags); err != nil {
		return err
	}

	db.Logger.Debug("Applied block",
		zap.Uint64("height", b.Height),
		zap.String("index_block_hash", b.IndexBlockHash.String()),
		zap.Int("txs", len(rows.Transactions)),
		zap.Int("events", len(rows.Events)),
		zap.Int("orphaned", len(orphaned)))
	return nil
}

// MarkDropped records a single (txid, reason) pair.
func (db *DB) MarkDropped(ctx context.Context, txid value.TxID, reason normalize.DropReason) error {
	return db.MarkDroppedBatch(ctx, &normalize.MempoolDrop{TxIDs: []value.TxID{txid}, Reason: reason})
}

// MarkDroppedBatch records every pair of a drop notice in one insert.
func (db *DB) MarkDroppedBatch(ctx context.Context, drop *normalize.MempoolDrop) error {
	rows := transform.MempoolDropped(drop, db.now())
	return insert(ctx, db, entities.MempoolDropped, indexermodels.MempoolDroppedColumns, rows)
}

// ApplyBurnBlock writes the burn block and its reward split. Overflowing
// splits are stored as reported with overflow = 1.
func (db *DB) ApplyBurnBlock(ctx context.Context, b *normalize.BurnBlock) error {
	header, rewards := transform.BurnBlock(b, db.now())
	if err := insert(ctx, db, entities.BurnBlockRewards, indexermodels.BurnRewardColumns, rewards); err != nil {
		return err
	}
	return insert(ctx, db, entities.BurnBlocks, indexermodels.BurnBlockColumns, []*indexermodels.BurnBlock{header})
}

type canonicalRow struct {
	Height               uint64 `ch:"height"`
	BlockHash            string `ch:"block_hash"`
	IndexBlockHash       string `ch:"index_block_hash"`
	ParentIndexBlockHash string `ch:"parent_index_block_hash"`
}

// CanonicalRefs returns up to limit of the highest canonical blocks in
// ascending height order, for warming the chain tip after a restart.
func (db *DB) CanonicalRefs(ctx context.Context, limit int) ([]reorg.BlockRef, error) {
	query := fmt.Sprintf(`
		SELECT b.height, b.block_hash, b.index_block_hash, b.parent_index_block_hash
		FROM "%s"."%s" AS b FINAL
		INNER JOIN (
			SELECT index_block_hash FROM "%s"."%s" FINAL WHERE canonical = 1
		) AS c ON b.index_block_hash = c.index_block_hash
		ORDER BY b.height DESC
		LIMIT ?
	`, db.Name, entities.Blocks.TableName(), db.Name, entities.BlockCanonicality.TableName())

	var rows []canonicalRow
	if err := db.SelectWithFinal(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("query canonical blocks: %w", err)
	}

	refs := make([]reorg.BlockRef, len(rows))
	for i, r := range rows {
		ref, err := parseRef(r)
		if err != nil {
			return nil, err
		}
		refs[len(rows)-1-i] = ref
	}
	return refs, nil
}

// IsCanonical reports whether the block is stored and currently flagged
// canonical. Blocks that fell out of the in-memory window are answered here.
func (db *DB) IsCanonical(ctx context.Context, indexBlockHash value.Hash) (bool, error) {
	query := fmt.Sprintf(`
		SELECT canonical FROM "%s"."%s" FINAL
		WHERE index_block_hash = ?
		LIMIT 1
	`, db.Name, entities.BlockCanonicality.TableName())

	var rows []struct {
		Canonical uint8 `ch:"canonical"`
	}
	if err := db.SelectWithFinal(ctx, &rows, query, indexBlockHash.String()); err != nil {
		return false, fmt.Errorf("query canonicality of %s: %w", indexBlockHash, err)
	}
	return len(rows) == 1 && rows[0].Canonical == 1, nil
}

func parseRef(r canonicalRow) (reorg.BlockRef, error) {
	ref := reorg.BlockRef{Height: r.Height}
	var err error
	if ref.BlockHash, err = value.ParseHash32(r.BlockHash); err != nil {
		return ref, fmt.Errorf("stored block_hash at %d: %w", r.Height, err)
	}
	if ref.IndexBlockHash, err = value.ParseHash32(r.IndexBlockHash); err != nil {
		return ref, fmt.Errorf("stored index_block_hash at %d: %w", r.Height, err)
	}
	if ref.ParentIndexBlockHash, err = value.ParseHash32(r.ParentIndexBlockHash); err != nil {
		return ref, fmt.Errorf("stored parent_index_block_hash at %d: %w", r.Height, err)
	}
	return ref, nil
}
