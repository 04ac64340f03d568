package normalize

import (
	"testing"

	"github.com/canopy-network/stacksx/pkg/stacks/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMempoolDrop(t *testing.T) {
	a, b := hashHex(0x31), hashHex(0x32)
	out, err := NormalizeMempoolDrop(&node.DropMempoolTx{
		DroppedTxIDs: []string{a, b, a},
		Reason:       "StaleGarbageCollect",
	})
	require.NoError(t, err)
	assert.Equal(t, DropStaleGarbageCollect, out.Reason)
	require.Len(t, out.TxIDs, 2)
	assert.Equal(t, a, out.TxIDs[0].String())
	assert.Equal(t, b, out.TxIDs[1].String())
}

func TestNormalizeMempoolDropEmptyList(t *testing.T) {
	out, err := NormalizeMempoolDrop(&node.DropMempoolTx{DroppedTxIDs: []string{}, Reason: "TooExpensive"})
	require.NoError(t, err)
	assert.Empty(t, out.TxIDs)
}

func TestNormalizeMempoolDropRejects(t *testing.T) {
	tests := []struct {
		name string
		in   node.DropMempoolTx
		want error
	}{
		{name: "unknown reason", in: node.DropMempoolTx{DroppedTxIDs: []string{}, Reason: "Evicted"}, want: ErrUnknownDropReason},
		{name: "lower-case reason", in: node.DropMempoolTx{DroppedTxIDs: []string{}, Reason: "replacebyfee"}, want: ErrUnknownDropReason},
		{name: "missing list", in: node.DropMempoolTx{Reason: "ReplaceByFee"}, want: ErrMalformedMempoolDrop},
		{name: "bad txid", in: node.DropMempoolTx{DroppedTxIDs: []string{"0x12"}, Reason: "ReplaceByFee"}, want: ErrInvalidHexEncoding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeMempoolDrop(&tt.in)
			require.ErrorIs(t, err, tt.want)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestParseDropReasonCoversAll(t *testing.T) {
	for _, r := range []DropReason{DropReplaceByFee, DropReplaceAcrossFork, DropTooExpensive, DropStaleGarbageCollect} {
		got, err := ParseDropReason(string(r))
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}
}
