package indexer

import "time"

// TransactionColumns defines the transactions table. One transaction may
// appear under several index block hashes when it is mined on competing forks.
var TransactionColumns = []ColumnDef{
	{Name: "tx_id", Type: "String", Codec: "ZSTD(1)"},
	{Name: "tx_index", Type: "UInt32", Codec: "Delta, ZSTD(3)"},
	{Name: "index_block_hash", Type: "String", Codec: "ZSTD(1)"},
	{Name: "block_hash", Type: "String", Codec: "ZSTD(1)"},
	{Name: "block_height", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "burn_block_time", Type: "DateTime", Codec: "DoubleDelta, LZ4"},
	{Name: "status", Type: "LowCardinality(String)"},
	{Name: "payload_kind", Type: "LowCardinality(String)"},
	{Name: "sender", Type: "String", Codec: "ZSTD(1)"},
	{Name: "sponsor", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "nonce", Type: "UInt64", Codec: "Delta, ZSTD(3)"},
	{Name: "fee", Type: "UInt64", Codec: "ZSTD(1)"},
	{Name: "anchor_mode", Type: "UInt8"},
	{Name: "post_condition_mode", Type: "UInt8"},
	{Name: "post_conditions", Type: "UInt16"},
	{Name: "contract", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "function", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "raw_tx", Type: "String", Codec: "ZSTD(3)"},
	{Name: "raw_result", Type: "String", Codec: "ZSTD(3)"},
	{Name: "result_repr", Type: "Nullable(String)", Codec: "ZSTD(3)"},
	{Name: "contract_abi", Type: "Nullable(String)", Codec: "ZSTD(3)"},
}

type Transaction struct {
	TxID              string    `ch:"tx_id" json:"tx_id"`
	TxIndex           uint32    `ch:"tx_index" json:"tx_index"`
	IndexBlockHash    string    `ch:"index_block_hash" json:"index_block_hash"`
	BlockHash         string    `ch:"block_hash" json:"block_hash"`
	BlockHeight       uint64    `ch:"block_height" json:"block_height"`
	BurnBlockTime     time.Time `ch:"burn_block_time" json:"burn_block_time"`
	Status            string    `ch:"status" json:"status"`
	PayloadKind       string    `ch:"payload_kind" json:"payload_kind"`
	Sender            string    `ch:"sender" json:"sender"`
	Sponsor           *string   `ch:"sponsor" json:"sponsor,omitempty"`
	Nonce             uint64    `ch:"nonce" json:"nonce"`
	Fee               uint64    `ch:"fee" json:"fee"`
	AnchorMode        uint8     `ch:"anchor_mode" json:"anchor_mode"`
	PostConditionMode uint8     `ch:"post_condition_mode" json:"post_condition_mode"`
	PostConditions    uint16    `ch:"post_conditions" json:"post_conditions"`
	Contract          *string   `ch:"contract" json:"contract,omitempty"`
	Function          *string   `ch:"function" json:"function,omitempty"`
	RawTx             string    `ch:"raw_tx" json:"raw_tx"`
	RawResult         string    `ch:"raw_result" json:"raw_result"`
	ResultRepr        *string   `ch:"result_repr" json:"result_repr,omitempty"`
	ContractABI       *string   `ch:"contract_abi" json:"contract_abi,omitempty"`
}

func (t *Transaction) Values() []any {
	return []any{
		t.TxID, t.TxIndex, t.IndexBlockHash, t.BlockHash, t.BlockHeight, t.BurnBlockTime,
		t.Status, t.PayloadKind, t.Sender, t.Sponsor, t.Nonce, t.Fee, t.AnchorMode,
		t.PostConditionMode, t.PostConditions, t.Contract, t.Function, t.RawTx, t.RawResult,
		t.ResultRepr, t.ContractABI,
	}
}
