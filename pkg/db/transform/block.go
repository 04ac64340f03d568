package transform

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/canopy-network/stacksx/pkg/db/models/indexer"
	"github.com/canopy-network/stacksx/pkg/normalize"
	"github.com/canopy-network/stacksx/pkg/reorg"
	"github.com/canopy-network/stacksx/pkg/stacks/value"
)

// BlockRows is everything one block writes, in insertion order.
type BlockRows struct {
	Block        *indexer.Block
	Transactions []*indexer.Transaction
	Events       []*indexer.Event
	MinerRewards []*indexer.MinerReward
}

// Block converts an assembled block into its rows.
func Block(b *normalize.Block, ingestedAt time.Time) (*BlockRows, error) {
	rows := &BlockRows{
		Block: &indexer.Block{
			Height:               b.Height,
			BlockHash:            b.Hash.String(),
			IndexBlockHash:       b.IndexBlockHash.String(),
			ParentIndexBlockHash: b.ParentIndexBlockHash.String(),
			ParentBlockHash:      b.ParentBlockHash.String(),
			ParentMicroblock:     b.ParentMicroblock.String(),
			BurnBlockHash:        b.BurnBlockHash.String(),
			BurnBlockHeight:      b.BurnBlockHeight,
			BurnBlockTime:        unixTime(b.BurnBlockTime),
			MinerTxID:            b.MinerTxID.String(),
			NumTxs:               uint32(len(b.Transactions)),
			NumEvents:            uint32(len(b.Events)),
			IngestedAt:           ingestedAt,
		},
		Transactions: make([]*indexer.Transaction, 0, len(b.Transactions)),
		Events:       make([]*indexer.Event, 0, len(b.Events)),
		MinerRewards: make([]*indexer.MinerReward, 0, len(b.MinerRewards)),
	}

	for i := range b.Transactions {
		rows.Transactions = append(rows.Transactions, Transaction(&b.Transactions[i]))
	}
	for _, e := range b.Events {
		row, err := Event(b, e)
		if err != nil {
			return nil, fmt.Errorf("event %s/%d: %w", e.TxID, e.EventIndex, err)
		}
		rows.Events = append(rows.Events, row)
	}
	for i, r := range b.MinerRewards {
		rows.MinerRewards = append(rows.MinerRewards, &indexer.MinerReward{
			IndexBlockHash:          b.IndexBlockHash.String(),
			Height:                  b.Height,
			RewardIndex:             uint16(i),
			FromIndexConsensusHash:  value.EncodeHex(r.FromIndexConsensusHash),
			FromStacksBlockHash:     r.FromStacksBlockHash.String(),
			Recipient:               r.Recipient.String(),
			CoinbaseAmount:          value.FormatAmount(r.CoinbaseAmount),
			TxFeesAnchored:          value.FormatAmount(r.TxFeesAnchored),
			TxFeesStreamedConfirmed: value.FormatAmount(r.TxFeesStreamedConfirmed),
			TxFeesStreamedProduced:  value.FormatAmount(r.TxFeesStreamedProduced),
			Total:                   value.FormatAmount(r.Total()),
		})
	}
	return rows, nil
}

// Transaction converts one normalized transaction.
func Transaction(tx *normalize.Transaction) *indexer.Transaction {
	row := &indexer.Transaction{
		TxID:              tx.TxID.String(),
		TxIndex:           tx.TxIndex,
		IndexBlockHash:    tx.Block.IndexBlockHash.String(),
		BlockHash:         tx.Block.BlockHash.String(),
		BlockHeight:       tx.Block.BlockHeight,
		BurnBlockTime:     unixTime(tx.Block.BurnBlockTime),
		Status:            string(tx.Status),
		PayloadKind:       tx.PayloadKind.String(),
		Sender:            tx.Sender,
		Sponsor:           optional(tx.Sponsor),
		Nonce:             tx.Nonce,
		Fee:               tx.Fee,
		AnchorMode:        uint8(tx.AnchorMode),
		PostConditionMode: uint8(tx.PostConditionMode),
		PostConditions:    uint16(tx.PostConditions),
		Contract:          optional(tx.Contract),
		Function:          optional(tx.Function),
		RawTx:             value.EncodeHex(tx.Raw),
		RawResult:         value.EncodeHex(tx.RawResult),
		ResultRepr:        reprPtr(tx.Result),
	}
	if len(tx.ContractABI) > 0 && string(tx.ContractABI) != "null" {
		row.ContractABI = strPtr(string(compactJSON(tx.ContractABI)))
	}
	return row
}

func compactJSON(raw json.RawMessage) json.RawMessage {
	out, err := json.Marshal(raw)
	if err != nil {
		return raw
	}
	return out
}

// Canonicality returns the flag rows a block application writes: the block
// itself plus any blocks that a reorg moved onto or off the canonical chain.
func Canonicality(b *normalize.Block, orphaned, promoted []reorg.BlockRef, version uint64) []*indexer.Canonicality {
	rows := make([]*indexer.Canonicality, 0, 1+len(orphaned)+len(promoted))
	for _, ref := range orphaned {
		rows = append(rows, &indexer.Canonicality{IndexBlockHash: ref.IndexBlockHash.String(), Height: ref.Height, Canonical: 0, Version: version})
	}
	for _, ref := range promoted {
		if ref.IndexBlockHash == b.IndexBlockHash {
			continue
		}
		rows = append(rows, &indexer.Canonicality{IndexBlockHash: ref.IndexBlockHash.String(), Height: ref.Height, Canonical: 1, Version: version})
	}
	rows = append(rows, &indexer.Canonicality{IndexBlockHash: b.IndexBlockHash.String(), Height: b.Height, Canonical: 1, Version: version})
	return rows
}
