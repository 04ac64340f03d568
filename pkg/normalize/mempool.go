package normalize

import (
	"fmt"

	"github.com/canopy-network/stacksx/pkg/stacks/node"
	"github.com/canopy-network/stacksx/pkg/stacks/value"
)

type DropReason string

const (
	DropReplaceByFee        DropReason = "ReplaceByFee"
	DropReplaceAcrossFork   DropReason = "ReplaceAcrossFork"
	DropTooExpensive        DropReason = "TooExpensive"
	DropStaleGarbageCollect DropReason = "StaleGarbageCollect"
)

func ParseDropReason(s string) (DropReason, error) {
	switch r := DropReason(s); r {
	case DropReplaceByFee, DropReplaceAcrossFork, DropTooExpensive, DropStaleGarbageCollect:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDropReason, s)
}

// MempoolDrop lists transactions the node evicted for one reason. TxIDs are
// unique and keep the node's order.
type MempoolDrop struct {
	TxIDs  []value.TxID
	Reason DropReason
}

func NormalizeMempoolDrop(raw *node.DropMempoolTx) (*MempoolDrop, error) {
	reason, err := ParseDropReason(raw.Reason)
	if err != nil {
		return nil, fieldErr("mempool_drop", "", NoEventIndex, "reason", err)
	}
	if raw.DroppedTxIDs == nil {
		return nil, fieldErr("mempool_drop", "", NoEventIndex, "dropped_txids",
			fmt.Errorf("%w: missing", ErrMalformedMempoolDrop))
	}

	out := &MempoolDrop{Reason: reason, TxIDs: make([]value.TxID, 0, len(raw.DroppedTxIDs))}
	seen := make(map[value.TxID]struct{}, len(raw.DroppedTxIDs))
	for i, s := range raw.DroppedTxIDs {
		txid, err := value.ParseTxID(s)
		if err != nil {
			return nil, fieldErr("mempool_drop", s, NoEventIndex, fmt.Sprintf("dropped_txids[%d]", i),
				fmt.Errorf("%w: %w", ErrMalformedMempoolDrop, err))
		}
		if _, dup := seen[txid]; dup {
			continue
		}
		seen[txid] = struct{}{}
		out.TxIDs = append(out.TxIDs, txid)
	}
	return out, nil
}
