package transform

import (
	"time"

	"github.com/canopy-network/stacksx/pkg/db/models/indexer"
	"github.com/canopy-network/stacksx/pkg/normalize"
	"github.com/canopy-network/stacksx/pkg/stacks/value"
	"github.com/canopy-network/stacksx/pkg/utils"
)

// BurnBlock converts a normalized burn block into its header and reward rows.
func BurnBlock(b *normalize.BurnBlock, ingestedAt time.Time) (*indexer.BurnBlock, []*indexer.BurnReward) {
	header := &indexer.BurnBlock{
		BurnBlockHash:   b.Hash.String(),
		BurnBlockHeight: b.Height,
		BurnAmount:      value.FormatAmount(b.BurnAmount),
		SplitTotal:      value.FormatAmount(b.SplitTotal),
		Recipients:      uint16(len(b.Recipients)),
		Overflow:        utils.BoolToUInt8(b.Overflow),
		IngestedAt:      ingestedAt,
	}
	rewards := make([]*indexer.BurnReward, 0, len(b.Recipients))
	for i, r := range b.Recipients {
		rewards = append(rewards, &indexer.BurnReward{
			BurnBlockHash:   header.BurnBlockHash,
			BurnBlockHeight: b.Height,
			RewardIndex:     uint16(i),
			Recipient:       r.Address,
			Amount:          value.FormatAmount(r.Amount),
			Network:         r.Network,
			AddressType:     r.AddressType,
		})
	}
	return header, rewards
}

// MempoolDropped converts a drop notice into one row per txid.
func MempoolDropped(d *normalize.MempoolDrop, at time.Time) []*indexer.MempoolDropped {
	rows := make([]*indexer.MempoolDropped, 0, len(d.TxIDs))
	for _, id := range d.TxIDs {
		rows = append(rows, &indexer.MempoolDropped{TxID: id.String(), Reason: string(d.Reason), DroppedAt: at})
	}
	return rows
}
