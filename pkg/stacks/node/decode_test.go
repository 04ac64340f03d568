package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBlockKeepsRawPayloads(t *testing.T) {
	body := []byte(`{
		"block_hash": "0x01",
		"block_height": 12,
		"burn_block_time": 1700000000,
		"burn_block_hash": "0x02",
		"burn_block_height": 800000,
		"miner_txid": "0x03",
		"index_block_hash": "0x04",
		"parent_index_block_hash": "0x05",
		"parent_block_hash": "0x06",
		"parent_microblock": "0x07",
		"events": [
			{"txid": "0x08", "event_index": 0, "committed": true, "type": "stx_lock_event",
			 "stx_lock_event": {"locked_amount": "10", "unlock_height": "20", "locked_address": "SP"}}
		],
		"transactions": [
			{"raw_tx": "0x00", "result": {"Response": {}}, "status": "success", "raw_result": "0x03",
			 "txid": "0x08", "tx_index": 0, "contract_abi": null}
		],
		"matured_miner_rewards": [],
		"signer_bitvec": "ignored"
	}`)

	b, err := DecodeBlock(body)
	require.NoError(t, err)
	require.NotNil(t, b.BlockHeight)
	assert.Equal(t, uint64(12), *b.BlockHeight)
	require.Len(t, b.Events, 1)

	ev := b.Events[0]
	assert.Equal(t, TypeStxLockEvent, ev.Type)
	require.NotNil(t, ev.Committed)
	assert.True(t, *ev.Committed)
	assert.NotEmpty(t, ev.StxLockEvent)
	assert.Empty(t, ev.ContractEvent)

	require.Len(t, b.Transactions, 1)
	require.NotNil(t, b.Transactions[0].TxIndex)
	assert.Equal(t, "success", b.Transactions[0].Status)
}

func TestDecodeMissingHeightStaysNil(t *testing.T) {
	b, err := DecodeBlock([]byte(`{"block_hash": "0x01"}`))
	require.NoError(t, err)
	assert.Nil(t, b.BlockHeight)
}

func TestDecodeBurnBlockKeepsExactNumbers(t *testing.T) {
	b, err := DecodeBurnBlock([]byte(`{
		"burn_block_hash": "0xaa",
		"burn_block_height": 5,
		"burn_amount": 20000000000000000000,
		"reward_recipients": [{"recipient": "1BoatSLRHtKNngkdXEeobR76b53LETtpyT", "amt": 10}]
	}`))
	require.NoError(t, err)
	assert.Equal(t, "20000000000000000000", b.BurnAmount.String())
	require.Len(t, b.RewardRecipients, 1)
	assert.Equal(t, "10", b.RewardRecipients[0].Amt.String())
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := DecodeDropMempoolTx([]byte(`{"dropped_txids": "nope"}`))
	assert.Error(t, err)

	_, err = DecodeBlock([]byte(`{} {}`))
	assert.Error(t, err)

	_, err = DecodeBlock([]byte(`{"block_height": -1}`))
	assert.Error(t, err)
}
