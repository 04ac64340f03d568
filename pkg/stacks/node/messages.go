// Package node holds the JSON envelopes a Stacks node posts to its event
// observers. Field names and shapes follow the node exactly; nothing here is
// validated beyond what encoding/json does. Required numeric fields are
// pointers so that a missing field can be told apart from zero.
package node

import (
	"encoding/json"
)

// Observer paths the node posts to.
const (
	PathNewBlock       = "/new_block"
	PathNewBurnBlock   = "/new_burn_block"
	PathDropMempoolTx  = "/drop_mempool_tx"
	PathNewMempoolTx   = "/new_mempool_tx"
	PathNewMicroblocks = "/new_microblocks"
	PathAttachments    = "/attachments/new"
)

// Event type tags.
const (
	TypeContractEvent    = "contract_event"
	TypeStxTransferEvent = "stx_transfer_event"
	TypeStxMintEvent     = "stx_mint_event"
	TypeStxBurnEvent     = "stx_burn_event"
	TypeStxLockEvent     = "stx_lock_event"
	TypeNftTransferEvent = "nft_transfer_event"
	TypeNftMintEvent     = "nft_mint_event"
	TypeFtTransferEvent  = "ft_transfer_event"
	TypeFtMintEvent      = "ft_mint_event"
)

// Event is one entry of a block's events array. Exactly one of the payload
// fields is expected to be set, under the key named by Type.
type Event struct {
	TxID       string `json:"txid"`
	EventIndex *int64 `json:"event_index"`
	Committed  *bool  `json:"committed,omitempty"`
	Type       string `json:"type"`

	ContractEvent    json.RawMessage `json:"contract_event,omitempty"`
	StxTransferEvent json.RawMessage `json:"stx_transfer_event,omitempty"`
	StxMintEvent     json.RawMessage `json:"stx_mint_event,omitempty"`
	StxBurnEvent     json.RawMessage `json:"stx_burn_event,omitempty"`
	StxLockEvent     json.RawMessage `json:"stx_lock_event,omitempty"`
	NftTransferEvent json.RawMessage `json:"nft_transfer_event,omitempty"`
	NftMintEvent     json.RawMessage `json:"nft_mint_event,omitempty"`
	FtTransferEvent  json.RawMessage `json:"ft_transfer_event,omitempty"`
	FtMintEvent      json.RawMessage `json:"ft_mint_event,omitempty"`
}

type ContractEventPayload struct {
	ContractIdentifier *string         `json:"contract_identifier"`
	Topic              *string         `json:"topic"`
	Value              json.RawMessage `json:"value,omitempty"`
	RawValue           *string         `json:"raw_value"`
}

type StxTransferPayload struct {
	Recipient *string `json:"recipient"`
	Sender    *string `json:"sender"`
	Amount    *string `json:"amount"`
	Memo      *string `json:"memo,omitempty"`
}

type StxMintPayload struct {
	Recipient *string `json:"recipient"`
	Amount    *string `json:"amount"`
}

type StxBurnPayload struct {
	Sender *string `json:"sender"`
	Amount *string `json:"amount"`
}

type StxLockPayload struct {
	LockedAmount  *string `json:"locked_amount"`
	UnlockHeight  *string `json:"unlock_height"`
	LockedAddress *string `json:"locked_address"`
}

type NftTransferPayload struct {
	AssetIdentifier *string         `json:"asset_identifier"`
	Recipient       *string         `json:"recipient"`
	Sender          *string         `json:"sender"`
	Value           json.RawMessage `json:"value,omitempty"`
	RawValue        *string         `json:"raw_value"`
}

type NftMintPayload struct {
	AssetIdentifier *string         `json:"asset_identifier"`
	Recipient       *string         `json:"recipient"`
	Value           json.RawMessage `json:"value,omitempty"`
	RawValue        *string         `json:"raw_value"`
}

type FtTransferPayload struct {
	AssetIdentifier *string `json:"asset_identifier"`
	Recipient       *string `json:"recipient"`
	Sender          *string `json:"sender"`
	Amount          *string `json:"amount"`
}

type FtMintPayload struct {
	AssetIdentifier *string `json:"asset_identifier"`
	Recipient       *string `json:"recipient"`
	Amount          *string `json:"amount"`
}

// Tx is the node's per-transaction outcome inside a block message.
type Tx struct {
	RawTx       string          `json:"raw_tx"`
	Result      json.RawMessage `json:"result,omitempty"`
	Status      string          `json:"status"`
	RawResult   string          `json:"raw_result"`
	TxID        string          `json:"txid"`
	TxIndex     *int64          `json:"tx_index"`
	ContractABI json.RawMessage `json:"contract_abi,omitempty"`
}

type MinerReward struct {
	FromIndexConsensusHash  string `json:"from_index_consensus_hash"`
	FromStacksBlockHash     string `json:"from_stacks_block_hash"`
	Recipient               string `json:"recipient"`
	CoinbaseAmount          string `json:"coinbase_amount"`
	TxFeesAnchored          string `json:"tx_fees_anchored"`
	TxFeesStreamedConfirmed string `json:"tx_fees_streamed_confirmed"`
	TxFeesStreamedProduced  string `json:"tx_fees_streamed_produced"`
}

// Block is the body of POST /new_block.
type Block struct {
	BlockHash            string        `json:"block_hash"`
	BlockHeight          *uint64       `json:"block_height"`
	BurnBlockTime        *int64        `json:"burn_block_time"`
	BurnBlockHash        string        `json:"burn_block_hash"`
	BurnBlockHeight      *uint64       `json:"burn_block_height"`
	MinerTxID            string        `json:"miner_txid"`
	IndexBlockHash       string        `json:"index_block_hash"`
	ParentIndexBlockHash string        `json:"parent_index_block_hash"`
	ParentBlockHash      string        `json:"parent_block_hash"`
	ParentMicroblock     string        `json:"parent_microblock"`
	Events               []Event       `json:"events"`
	Transactions         []Tx          `json:"transactions"`
	MaturedMinerRewards  []MinerReward `json:"matured_miner_rewards"`
}

type RewardRecipient struct {
	Recipient string      `json:"recipient"`
	Amt       json.Number `json:"amt"`
}

// BurnBlock is the body of POST /new_burn_block. Satoshi amounts are JSON
// numbers; json.Number keeps their exact text.
type BurnBlock struct {
	BurnBlockHash    string            `json:"burn_block_hash"`
	BurnBlockHeight  *uint64           `json:"burn_block_height"`
	BurnAmount       json.Number       `json:"burn_amount"`
	RewardRecipients []RewardRecipient `json:"reward_recipients"`
}

// DropMempoolTx is the body of POST /drop_mempool_tx.
type DropMempoolTx struct {
	DroppedTxIDs []string `json:"dropped_txids"`
	Reason       string   `json:"reason"`
}
