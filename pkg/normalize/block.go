package normalize

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/stacksx/pkg/stacks/node"
	"github.com/canopy-network/stacksx/pkg/stacks/value"
	"go.uber.org/zap"
)

// MinerReward is a matured coinbase and fee payout reported with a block.
type MinerReward struct {
	FromIndexConsensusHash  []byte
	FromStacksBlockHash     value.Hash
	Recipient               value.Principal
	CoinbaseAmount          *big.Int
	TxFeesAnchored          *big.Int
	TxFeesStreamedConfirmed *big.Int
	TxFeesStreamedProduced  *big.Int
}

// Total is coinbase plus all fee components.
func (r MinerReward) Total() *big.Int {
	return value.SumAmounts(r.CoinbaseAmount, r.TxFeesAnchored, r.TxFeesStreamedConfirmed, r.TxFeesStreamedProduced)
}

// Block is one fully validated node block. It is never modified after
// Assemble returns it.
type Block struct {
	Hash                 value.Hash
	Height               uint64
	IndexBlockHash       value.Hash
	ParentIndexBlockHash value.Hash
	ParentBlockHash      value.Hash
	ParentMicroblock     value.Hash
	BurnBlockHash        value.Hash
	BurnBlockHeight      uint64
	BurnBlockTime        int64
	MinerTxID            value.TxID
	Transactions         []Transaction
	Events               []Event
	MinerRewards         []MinerReward
}

// Assembler turns block envelopes into Blocks, normalizing transactions and
// events on a shared worker pool.
type Assembler struct {
	decoder TxDecoder
	pool    pond.Pool
	logger  *zap.Logger
}

func NewAssembler(decoder TxDecoder, pool pond.Pool, logger *zap.Logger) *Assembler {
	return &Assembler{decoder: decoder, pool: pool, logger: logger}
}

// Assemble validates the whole block or rejects it with a *BlockAssemblyError.
// No partial Block is ever returned.
func (a *Assembler) Assemble(ctx context.Context, raw *node.Block) (*Block, error) {
	b, err := assembleHeader(raw)
	if err != nil {
		return nil, a.reject(raw, err)
	}

	bctx := BlockContext{
		BlockHash:      b.Hash,
		IndexBlockHash: b.IndexBlockHash,
		BlockHeight:    b.Height,
		BurnBlockTime:  b.BurnBlockTime,
	}

	txs := make([]Transaction, len(raw.Transactions))
	txErrs := make([]error, len(raw.Transactions))
	events := make([]Event, len(raw.Events))
	eventErrs := make([]error, len(raw.Events))

	group := a.pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for i := range raw.Transactions {
		group.Submit(func() {
			if err := groupCtx.Err(); err != nil {
				txErrs[i] = err
				return
			}
			txs[i], txErrs[i] = NormalizeTransaction(raw.Transactions[i], a.decoder, bctx)
		})
	}
	for i := range raw.Events {
		group.Submit(func() {
			if err := groupCtx.Err(); err != nil {
				eventErrs[i] = err
				return
			}
			events[i], eventErrs[i] = NormalizeEvent(raw.Events[i])
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		a.logger.Warn("parallel normalization encountered error",
			zap.Uint64("height", b.Height),
			zap.Error(err),
		)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// report the earliest failure so the same bad block always yields the
	// same error
	for _, err := range txErrs {
		if err != nil {
			return nil, a.reject(raw, err)
		}
	}
	for _, err := range eventErrs {
		if err != nil {
			return nil, a.reject(raw, err)
		}
	}

	b.Transactions = txs
	b.Events = events
	if err := checkBlockInvariants(b); err != nil {
		return nil, a.reject(raw, err)
	}

	a.logger.Debug("assembled block",
		zap.Uint64("height", b.Height),
		zap.String("index_block_hash", b.IndexBlockHash.String()),
		zap.Int("transactions", len(b.Transactions)),
		zap.Int("events", len(b.Events)),
	)
	return b, nil
}

func (a *Assembler) reject(raw *node.Block, cause error) error {
	var height uint64
	if raw.BlockHeight != nil {
		height = *raw.BlockHeight
	}
	return &BlockAssemblyError{Height: height, IndexBlockHash: raw.IndexBlockHash, Cause: cause}
}

func assembleHeader(raw *node.Block) (*Block, error) {
	fail := func(field string, err error) error {
		if !errors.Is(err, ErrMalformedBlock) {
			err = fmt.Errorf("%w: %w", ErrMalformedBlock, err)
		}
		return fieldErr("block", "", NoEventIndex, field, err)
	}
	missing := fmt.Errorf("%w: missing", ErrMalformedBlock)

	b := &Block{}
	hashes := []struct {
		field string
		src   string
		dst   *value.Hash
	}{
		{"block_hash", raw.BlockHash, &b.Hash},
		{"index_block_hash", raw.IndexBlockHash, &b.IndexBlockHash},
		{"parent_index_block_hash", raw.ParentIndexBlockHash, &b.ParentIndexBlockHash},
		{"parent_block_hash", raw.ParentBlockHash, &b.ParentBlockHash},
		{"parent_microblock", raw.ParentMicroblock, &b.ParentMicroblock},
		{"burn_block_hash", raw.BurnBlockHash, &b.BurnBlockHash},
		{"miner_txid", raw.MinerTxID, &b.MinerTxID},
	}
	for _, h := range hashes {
		parsed, err := value.ParseHash32(h.src)
		if err != nil {
			return nil, fail(h.field, err)
		}
		*h.dst = parsed
	}

	switch {
	case raw.BlockHeight == nil:
		return nil, fail("block_height", missing)
	case raw.BurnBlockHeight == nil:
		return nil, fail("burn_block_height", missing)
	case raw.BurnBlockTime == nil:
		return nil, fail("burn_block_time", missing)
	}
	b.Height = *raw.BlockHeight
	b.BurnBlockHeight = *raw.BurnBlockHeight
	b.BurnBlockTime = *raw.BurnBlockTime

	for i, r := range raw.MaturedMinerRewards {
		reward, err := normalizeMinerReward(r)
		if err != nil {
			return nil, fail(fmt.Sprintf("matured_miner_rewards[%d]", i), err)
		}
		b.MinerRewards = append(b.MinerRewards, reward)
	}
	return b, nil
}

func normalizeMinerReward(r node.MinerReward) (MinerReward, error) {
	var out MinerReward
	var err error
	if out.FromIndexConsensusHash, err = value.ParseHex(r.FromIndexConsensusHash); err != nil {
		return out, fmt.Errorf("from_index_consensus_hash: %w", err)
	}
	if out.FromStacksBlockHash, err = value.ParseHash32(r.FromStacksBlockHash); err != nil {
		return out, fmt.Errorf("from_stacks_block_hash: %w", err)
	}
	if out.Recipient, err = value.ParsePrincipal(r.Recipient); err != nil {
		return out, fmt.Errorf("recipient: %w", err)
	}
	amounts := []struct {
		field string
		src   string
		dst   **big.Int
	}{
		{"coinbase_amount", r.CoinbaseAmount, &out.CoinbaseAmount},
		{"tx_fees_anchored", r.TxFeesAnchored, &out.TxFeesAnchored},
		{"tx_fees_streamed_confirmed", r.TxFeesStreamedConfirmed, &out.TxFeesStreamedConfirmed},
		{"tx_fees_streamed_produced", r.TxFeesStreamedProduced, &out.TxFeesStreamedProduced},
	}
	for _, a := range amounts {
		n, err := value.ParseAmount(a.src)
		if err != nil {
			return out, fmt.Errorf("%s: %w", a.field, err)
		}
		*a.dst = n
	}
	return out, nil
}

// checkBlockInvariants enforces the cross-item rules: gap-free transaction
// indices, unique event indices per transaction, and events that point at a
// transaction of this block or at the miner txid.
func checkBlockInvariants(b *Block) error {
	known := make(map[value.TxID]struct{}, len(b.Transactions)+1)
	for i, tx := range b.Transactions {
		if int(tx.TxIndex) != i {
			return fieldErr("transaction", tx.TxID.String(), NoEventIndex, "tx_index",
				fmt.Errorf("%w: position %d carries index %d", ErrContiguity, i, tx.TxIndex))
		}
		if _, dup := known[tx.TxID]; dup {
			return fieldErr("transaction", tx.TxID.String(), NoEventIndex, "txid",
				fmt.Errorf("%w: duplicate transaction", ErrMalformedBlock))
		}
		known[tx.TxID] = struct{}{}
	}
	known[b.MinerTxID] = struct{}{}

	type eventKey struct {
		txid  value.TxID
		index uint32
	}
	seen := make(map[eventKey]struct{}, len(b.Events))
	for _, ev := range b.Events {
		kind := ev.Kind().String()
		if _, ok := known[ev.TxID]; !ok {
			return fieldErr(kind, ev.TxID.String(), int64(ev.EventIndex), "txid", ErrUnresolvedEventTx)
		}
		key := eventKey{txid: ev.TxID, index: ev.EventIndex}
		if _, dup := seen[key]; dup {
			return fieldErr(kind, ev.TxID.String(), int64(ev.EventIndex), "event_index", ErrEventIndexCollision)
		}
		seen[key] = struct{}{}
	}
	return nil
}
