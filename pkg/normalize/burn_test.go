package normalize

import (
	"encoding/json"
	"testing"

	"github.com/canopy-network/stacksx/pkg/stacks/node"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func burnBlock(amount string, splits ...string) *node.BurnBlock {
	b := &node.BurnBlock{
		BurnBlockHash:   hashHex(0x21),
		BurnBlockHeight: ptr(uint64(800001)),
		BurnAmount:      json.Number(amount),
	}
	for _, s := range splits {
		b.RewardRecipients = append(b.RewardRecipients, node.RewardRecipient{
			Recipient: "1111111111111111111114oLvT2",
			Amt:       json.Number(s),
		})
	}
	return b
}

func TestNormalizeBurnBlock(t *testing.T) {
	out, err := NormalizeBurnBlock(burnBlock("30000", "10000", "20000"))
	require.NoError(t, err)
	assert.False(t, out.Overflow)
	assert.Equal(t, "30000", out.SplitTotal.String())
	require.Len(t, out.Recipients, 2)
	assert.Equal(t, "mainnet", out.Recipients[0].Network)
	assert.Equal(t, "p2pkh", out.Recipients[0].AddressType)
	assert.Equal(t, uint64(800001), out.Height)
}

func TestBurnBlockOverflowIsFlaggedAndForwarded(t *testing.T) {
	out, err := NormalizeBurnBlock(burnBlock("100", "60", "50"))
	require.ErrorIs(t, err, ErrRewardSplitOverflow)
	assert.False(t, IsValidation(err))
	require.NotNil(t, out)
	assert.True(t, out.Overflow)
	assert.Equal(t, "110", out.SplitTotal.String())
	assert.Len(t, out.Recipients, 2)
}

func TestNormalizeBurnBlockRejects(t *testing.T) {
	tests := []struct {
		name  string
		block func() *node.BurnBlock
		field string
	}{
		{name: "bad hash", block: func() *node.BurnBlock { b := burnBlock("1"); b.BurnBlockHash = "0x00"; return b }, field: "burn_block_hash"},
		{name: "missing height", block: func() *node.BurnBlock { b := burnBlock("1"); b.BurnBlockHeight = nil; return b }, field: "burn_block_height"},
		{name: "fractional amount", block: func() *node.BurnBlock { return burnBlock("1.5") }, field: "burn_amount"},
		{name: "exponent amount", block: func() *node.BurnBlock { return burnBlock("1e3") }, field: "burn_amount"},
		{name: "negative split", block: func() *node.BurnBlock { return burnBlock("10", "-1") }, field: "reward_recipients[0].amt"},
		{name: "missing recipient", block: func() *node.BurnBlock {
			b := burnBlock("10", "1")
			b.RewardRecipients[0].Recipient = ""
			return b
		}, field: "reward_recipients[0].recipient"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := NormalizeBurnBlock(tt.block())
			require.ErrorIs(t, err, ErrMalformedBurnBlock)
			assert.Nil(t, out)
			requireFieldError(t, err, tt.field)
		})
	}
}

func TestClassifyBitcoinAddress(t *testing.T) {
	tests := []struct {
		addr    string
		network string
		kind    string
	}{
		{addr: "1111111111111111111114oLvT2", network: "mainnet", kind: "p2pkh"},
		{addr: "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", network: "mainnet", kind: "p2wpkh"},
		{addr: "not-an-address", network: "", kind: ""},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			network, kind := classifyBitcoinAddress(tt.addr)
			assert.Equal(t, tt.network, network)
			assert.Equal(t, tt.kind, kind)
		})
	}
}
