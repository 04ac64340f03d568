package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/canopy-network/stacksx/pkg/stacks/c32"
	"github.com/canopy-network/stacksx/pkg/stacks/codec"
	"github.com/canopy-network/stacksx/pkg/stacks/node"
	"github.com/canopy-network/stacksx/pkg/stacks/value"
	"github.com/stretchr/testify/require"
)

func testAddr(t *testing.T, fill byte) string {
	t.Helper()
	addr, err := c32.Address(c32.VersionTestnetSingleSig, bytes.Repeat([]byte{fill}, 20))
	require.NoError(t, err)
	return addr
}

func hashHex(fill byte) string {
	return "0x" + strings.Repeat(fmt.Sprintf("%02x", fill), 32)
}

func ptr[T any](v T) *T { return &v }

func rawJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

// rawTx returns distinct serialized bytes and the txid they hash to.
func rawTx(seed byte) ([]byte, string) {
	raw := []byte{0x80, 0x00, 0x00, 0x00, seed}
	return raw, codec.TxID(raw).String()
}

// fakeDecoder returns a contract-call transaction unless kind says otherwise.
type fakeDecoder struct {
	kind    codec.PayloadKind
	err     error
	sponsor bool
}

func (f fakeDecoder) DecodeTransaction(raw []byte) (*codec.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	tx := &codec.Transaction{
		TxID:              codec.TxID(raw),
		Version:           codec.VersionTestnet,
		AnchorMode:        codec.AnchorAny,
		PostConditionMode: codec.PostConditionModeDeny,
		Auth: codec.Authorization{
			Type:   codec.AuthStandard,
			Origin: codec.SpendingCondition{HashMode: codec.HashModeP2PKH, Nonce: 4, Fee: 200},
		},
		Payload: codec.Payload{Kind: f.kind},
	}
	tx.Auth.Origin.Signer[0] = 0x01
	if f.sponsor {
		tx.Auth.Type = codec.AuthSponsored
		tx.Auth.Sponsor = &codec.SpendingCondition{HashMode: codec.HashModeP2PKH, Fee: 900}
		tx.Auth.Sponsor.Signer[0] = 0x02
	}
	switch f.kind {
	case codec.PayloadContractCall:
		tx.Payload.ContractCall = &codec.ContractCall{Contract: "SP000000000000000000002Q6VF78.pox-4", Function: "stack-stx"}
	case codec.PayloadSmartContract, codec.PayloadVersionedSmartContract:
		tx.Payload.SmartContract = &codec.SmartContract{Name: "hello"}
	case codec.PayloadTokenTransfer:
		tx.Payload.TokenTransfer = &codec.TokenTransfer{Amount: 10}
	case codec.PayloadCoinbase:
		tx.Payload.Coinbase = &codec.Coinbase{}
	}
	return tx, nil
}

func nodeTx(seed byte, index int64) node.Tx {
	raw, txid := rawTx(seed)
	return node.Tx{
		RawTx:     value.EncodeHex(raw),
		Status:    "success",
		RawResult: "0x0703",
		TxID:      txid,
		TxIndex:   ptr(index),
	}
}

func stxTransferEvent(t *testing.T, txid string, index int64, amount string) node.Event {
	return node.Event{
		TxID:       txid,
		EventIndex: ptr(index),
		Type:       node.TypeStxTransferEvent,
		StxTransferEvent: rawJSON(t, map[string]string{
			"sender":    testAddr(t, 0x0a),
			"recipient": testAddr(t, 0x0b),
			"amount":    amount,
		}),
	}
}

func testBlock(t *testing.T, height uint64, txs []node.Tx, events []node.Event) *node.Block {
	return &node.Block{
		BlockHash:            hashHex(0x10),
		BlockHeight:          ptr(height),
		BurnBlockTime:        ptr(int64(1700000000)),
		BurnBlockHash:        hashHex(0x11),
		BurnBlockHeight:      ptr(uint64(800000)),
		MinerTxID:            hashHex(0x12),
		IndexBlockHash:       hashHex(0x13),
		ParentIndexBlockHash: hashHex(0x14),
		ParentBlockHash:      hashHex(0x15),
		ParentMicroblock:     hashHex(0x00),
		Events:               events,
		Transactions:         txs,
		MaturedMinerRewards: []node.MinerReward{{
			FromIndexConsensusHash:  "0x" + strings.Repeat("ab", 20),
			FromStacksBlockHash:     hashHex(0x16),
			Recipient:               testAddr(t, 0x0c),
			CoinbaseAmount:          "1000000000",
			TxFeesAnchored:          "10",
			TxFeesStreamedConfirmed: "20",
			TxFeesStreamedProduced:  "30",
		}},
	}
}

func requireFieldError(t *testing.T, err error, field string) *FieldError {
	t.Helper()
	var fe *FieldError
	require.True(t, errors.As(err, &fe), "expected *FieldError, got %v", err)
	require.Equal(t, field, fe.Field)
	return fe
}
