package indexer

import "time"

// BlockColumns defines the schema for the blocks table. Hashes are stored as
// 0x-prefixed lowercase hex so they compare equal to what the node emits.
var BlockColumns = []ColumnDef{
	{Name: "height", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "block_hash", Type: "String", Codec: "ZSTD(1)"},
	{Name: "index_block_hash", Type: "String", Codec: "ZSTD(1)"},
	{Name: "parent_index_block_hash", Type: "String", Codec: "ZSTD(1)"},
	{Name: "parent_block_hash", Type: "String", Codec: "ZSTD(1)"},
	{Name: "parent_microblock", Type: "String", Codec: "ZSTD(1)"},
	{Name: "burn_block_hash", Type: "String", Codec: "ZSTD(1)"},
	{Name: "burn_block_height", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "burn_block_time", Type: "DateTime", Codec: "DoubleDelta, LZ4"},
	{Name: "miner_txid", Type: "String", Codec: "ZSTD(1)"},
	{Name: "num_txs", Type: "UInt32", Codec: "Delta, ZSTD(3)"},
	{Name: "num_events", Type: "UInt32", Codec: "Delta, ZSTD(3)"},
	{Name: "ingested_at", Type: "DateTime64(6)", Codec: "DoubleDelta, LZ4"},
}

type Block struct {
	Height               uint64    `ch:"height" json:"height"`
	BlockHash            string    `ch:"block_hash" json:"block_hash"`
	IndexBlockHash       string    `ch:"index_block_hash" json:"index_block_hash"`
	ParentIndexBlockHash string    `ch:"parent_index_block_hash" json:"parent_index_block_hash"`
	ParentBlockHash      string    `ch:"parent_block_hash" json:"parent_block_hash"`
	ParentMicroblock     string    `ch:"parent_microblock" json:"parent_microblock"`
	BurnBlockHash        string    `ch:"burn_block_hash" json:"burn_block_hash"`
	BurnBlockHeight      uint64    `ch:"burn_block_height" json:"burn_block_height"`
	BurnBlockTime        time.Time `ch:"burn_block_time" json:"burn_block_time"`
	MinerTxID            string    `ch:"miner_txid" json:"miner_txid"`
	NumTxs               uint32    `ch:"num_txs" json:"num_txs"`
	NumEvents            uint32    `ch:"num_events" json:"num_events"`
	IngestedAt           time.Time `ch:"ingested_at" json:"ingested_at"`
}

// Values returns the row in BlockColumns order.
func (b *Block) Values() []any {
	return []any{
		b.Height, b.BlockHash, b.IndexBlockHash, b.ParentIndexBlockHash, b.ParentBlockHash,
		b.ParentMicroblock, b.BurnBlockHash, b.BurnBlockHeight, b.BurnBlockTime, b.MinerTxID,
		b.NumTxs, b.NumEvents, b.IngestedAt,
	}
}

// CanonicalityColumns defines block_canonicality, a ReplacingMergeTree keyed on
// index_block_hash whose latest version decides whether the block is canonical.
var CanonicalityColumns = []ColumnDef{
	{Name: "index_block_hash", Type: "String", Codec: "ZSTD(1)"},
	{Name: "height", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "canonical", Type: "UInt8"},
	{Name: "version", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
}

type Canonicality struct {
	IndexBlockHash string `ch:"index_block_hash" json:"index_block_hash"`
	Height         uint64 `ch:"height" json:"height"`
	Canonical      uint8  `ch:"canonical" json:"canonical"`
	Version        uint64 `ch:"version" json:"version"`
}

func (c *Canonicality) Values() []any {
	return []any{c.IndexBlockHash, c.Height, c.Canonical, c.Version}
}

// MinerRewardColumns defines miner_rewards. Amounts are exact decimal strings.
var MinerRewardColumns = []ColumnDef{
	{Name: "index_block_hash", Type: "String", Codec: "ZSTD(1)"},
	{Name: "height", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "reward_index", Type: "UInt16"},
	{Name: "from_index_consensus_hash", Type: "String", Codec: "ZSTD(1)"},
	{Name: "from_stacks_block_hash", Type: "String", Codec: "ZSTD(1)"},
	{Name: "recipient", Type: "String", Codec: "ZSTD(1)"},
	{Name: "coinbase_amount", Type: "String", Codec: "ZSTD(1)"},
	{Name: "tx_fees_anchored", Type: "String", Codec: "ZSTD(1)"},
	{Name: "tx_fees_streamed_confirmed", Type: "String", Codec: "ZSTD(1)"},
	{Name: "tx_fees_streamed_produced", Type: "String", Codec: "ZSTD(1)"},
	{Name: "total", Type: "String", Codec: "ZSTD(1)"},
}

type MinerReward struct {
	IndexBlockHash          string `ch:"index_block_hash" json:"index_block_hash"`
	Height                  uint64 `ch:"height" json:"height"`
	RewardIndex             uint16 `ch:"reward_index" json:"reward_index"`
	FromIndexConsensusHash  string `ch:"from_index_consensus_hash" json:"from_index_consensus_hash"`
	FromStacksBlockHash     string `ch:"from_stacks_block_hash" json:"from_stacks_block_hash"`
	Recipient               string `ch:"recipient" json:"recipient"`
	CoinbaseAmount          string `ch:"coinbase_amount" json:"coinbase_amount"`
	TxFeesAnchored          string `ch:"tx_fees_anchored" json:"tx_fees_anchored"`
	TxFeesStreamedConfirmed string `ch:"tx_fees_streamed_confirmed" json:"tx_fees_streamed_confirmed"`
	TxFeesStreamedProduced  string `ch:"tx_fees_streamed_produced" json:"tx_fees_streamed_produced"`
	Total                   string `ch:"total" json:"total"`
}

func (r *MinerReward) Values() []any {
	return []any{
		r.IndexBlockHash, r.Height, r.RewardIndex, r.FromIndexConsensusHash, r.FromStacksBlockHash,
		r.Recipient, r.CoinbaseAmount, r.TxFeesAnchored, r.TxFeesStreamedConfirmed,
		r.TxFeesStreamedProduced, r.Total,
	}
}
