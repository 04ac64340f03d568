package indexer

import "time"

var BurnBlockColumns = []ColumnDef{
	{Name: "burn_block_hash", Type: "String", Codec: "ZSTD(1)"},
	{Name: "burn_block_height", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "burn_amount", Type: "String", Codec: "ZSTD(1)"},
	{Name: "split_total", Type: "String", Codec: "ZSTD(1)"},
	{Name: "recipients", Type: "UInt16"},
	// 1 when the reward split exceeds burn_amount
	{Name: "overflow", Type: "UInt8"},
	{Name: "ingested_at", Type: "DateTime64(6)", Codec: "DoubleDelta, LZ4"},
}

type BurnBlock struct {
	BurnBlockHash   string    `ch:"burn_block_hash" json:"burn_block_hash"`
	BurnBlockHeight uint64    `ch:"burn_block_height" json:"burn_block_height"`
	BurnAmount      string    `ch:"burn_amount" json:"burn_amount"`
	SplitTotal      string    `ch:"split_total" json:"split_total"`
	Recipients      uint16    `ch:"recipients" json:"recipients"`
	Overflow        uint8     `ch:"overflow" json:"overflow"`
	IngestedAt      time.Time `ch:"ingested_at" json:"ingested_at"`
}

func (b *BurnBlock) Values() []any {
	return []any{b.BurnBlockHash, b.BurnBlockHeight, b.BurnAmount, b.SplitTotal, b.Recipients, b.Overflow, b.IngestedAt}
}

var BurnRewardColumns = []ColumnDef{
	{Name: "burn_block_hash", Type: "String", Codec: "ZSTD(1)"},
	{Name: "burn_block_height", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "reward_index", Type: "UInt16"},
	{Name: "recipient", Type: "String", Codec: "ZSTD(1)"},
	{Name: "amount", Type: "String", Codec: "ZSTD(1)"},
	{Name: "network", Type: "LowCardinality(String)"},
	{Name: "address_type", Type: "LowCardinality(String)"},
}

type BurnReward struct {
	BurnBlockHash   string `ch:"burn_block_hash" json:"burn_block_hash"`
	BurnBlockHeight uint64 `ch:"burn_block_height" json:"burn_block_height"`
	RewardIndex     uint16 `ch:"reward_index" json:"reward_index"`
	Recipient       string `ch:"recipient" json:"recipient"`
	Amount          string `ch:"amount" json:"amount"`
	Network         string `ch:"network" json:"network"`
	AddressType     string `ch:"address_type" json:"address_type"`
}

func (r *BurnReward) Values() []any {
	return []any{r.BurnBlockHash, r.BurnBlockHeight, r.RewardIndex, r.Recipient, r.Amount, r.Network, r.AddressType}
}

// MempoolDroppedColumns defines mempool_dropped, deduplicated on (tx_id, reason).
var MempoolDroppedColumns = []ColumnDef{
	{Name: "tx_id", Type: "String", Codec: "ZSTD(1)"},
	{Name: "reason", Type: "LowCardinality(String)"},
	{Name: "dropped_at", Type: "DateTime64(6)", Codec: "DoubleDelta, LZ4"},
}

type MempoolDropped struct {
	TxID      string    `ch:"tx_id" json:"tx_id"`
	Reason    string    `ch:"reason" json:"reason"`
	DroppedAt time.Time `ch:"dropped_at" json:"dropped_at"`
}

func (m *MempoolDropped) Values() []any {
	return []any{m.TxID, m.Reason, m.DroppedAt}
}
