package indexer

// EventColumns defines the events table. Every variant shares one row shape;
// columns a variant does not carry are NULL. For stx_lock_event the locked
// address is stored in sender and the locked amount in amount.
var EventColumns = []ColumnDef{
	{Name: "tx_id", Type: "String", Codec: "ZSTD(1)"},
	{Name: "event_index", Type: "UInt32", Codec: "Delta, ZSTD(3)"},
	{Name: "index_block_hash", Type: "String", Codec: "ZSTD(1)"},
	{Name: "block_height", Type: "UInt64", Codec: "DoubleDelta, LZ4"},
	{Name: "event_type", Type: "LowCardinality(String)"},
	{Name: "committed", Type: "Nullable(UInt8)"},
	{Name: "sender", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "recipient", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "amount", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "asset_identifier", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "contract_identifier", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "topic", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "raw_value", Type: "Nullable(String)", Codec: "ZSTD(3)"},
	{Name: "value_repr", Type: "Nullable(String)", Codec: "ZSTD(3)"},
	{Name: "memo", Type: "Nullable(String)", Codec: "ZSTD(1)"},
	{Name: "unlock_height", Type: "Nullable(UInt64)"},
}

type Event struct {
	TxID               string  `ch:"tx_id" json:"tx_id"`
	EventIndex         uint32  `ch:"event_index" json:"event_index"`
	IndexBlockHash     string  `ch:"index_block_hash" json:"index_block_hash"`
	BlockHeight        uint64  `ch:"block_height" json:"block_height"`
	EventType          string  `ch:"event_type" json:"event_type"`
	Committed          *uint8  `ch:"committed" json:"committed,omitempty"`
	Sender             *string `ch:"sender" json:"sender,omitempty"`
	Recipient          *string `ch:"recipient" json:"recipient,omitempty"`
	Amount             *string `ch:"amount" json:"amount,omitempty"`
	AssetIdentifier    *string `ch:"asset_identifier" json:"asset_identifier,omitempty"`
	ContractIdentifier *string `ch:"contract_identifier" json:"contract_identifier,omitempty"`
	Topic              *string `ch:"topic" json:"topic,omitempty"`
	RawValue           *string `ch:"raw_value" json:"raw_value,omitempty"`
	ValueRepr          *string `ch:"value_repr" json:"value_repr,omitempty"`
	Memo               *string `ch:"memo" json:"memo,omitempty"`
	UnlockHeight       *uint64 `ch:"unlock_height" json:"unlock_height,omitempty"`
}

func (e *Event) Values() []any {
	return []any{
		e.TxID, e.EventIndex, e.IndexBlockHash, e.BlockHeight, e.EventType, e.Committed,
		e.Sender, e.Recipient, e.Amount, e.AssetIdentifier, e.ContractIdentifier, e.Topic,
		e.RawValue, e.ValueRepr, e.Memo, e.UnlockHeight,
	}
}
