package normalize

import (
	"encoding/json"
	"fmt"

	"github.com/canopy-network/stacksx/pkg/stacks/clarity"
	"github.com/canopy-network/stacksx/pkg/stacks/codec"
	"github.com/canopy-network/stacksx/pkg/stacks/node"
	"github.com/canopy-network/stacksx/pkg/stacks/value"
)

// TxDecoder is the raw-transaction codec. codec.Decoder is the production
// implementation.
type TxDecoder interface {
	DecodeTransaction(raw []byte) (*codec.Transaction, error)
}

type TxStatus string

const (
	TxStatusSuccess              TxStatus = "success"
	TxStatusAbortByResponse      TxStatus = "abort_by_response"
	TxStatusAbortByPostCondition TxStatus = "abort_by_post_condition"
)

func parseTxStatus(s string) (TxStatus, bool) {
	switch TxStatus(s) {
	case TxStatusSuccess, TxStatusAbortByResponse, TxStatusAbortByPostCondition:
		return TxStatus(s), true
	}
	return "", false
}

// BlockContext is the block a transaction was mined in.
type BlockContext struct {
	BlockHash      value.Hash
	IndexBlockHash value.Hash
	BlockHeight    uint64
	BurnBlockTime  int64
}

// Transaction is a node transaction outcome merged with its decoded body.
type Transaction struct {
	TxID        value.TxID
	TxIndex     uint32
	Status      TxStatus
	Raw         []byte
	RawResult   []byte
	Result      *clarity.Value
	ContractABI json.RawMessage

	Sender            string
	Sponsor           string // empty unless sponsored
	Nonce             uint64
	Fee               uint64
	AnchorMode        codec.AnchorMode
	PostConditionMode codec.PostConditionMode
	PostConditions    int
	PayloadKind       codec.PayloadKind

	// Contract is the deployed or called contract, Function the called
	// function. Both are empty for other payload kinds.
	Contract string
	Function string

	Decoded *codec.Transaction
	Block   BlockContext
}

// NormalizeTransaction decodes raw_tx with dec and merges the result.
func NormalizeTransaction(raw node.Tx, dec TxDecoder, bctx BlockContext) (Transaction, error) {
	fail := func(field string, err error) (Transaction, error) {
		return Transaction{}, fieldErr("transaction", raw.TxID, NoEventIndex, field, err)
	}
	rawTx, err := value.ParseHex(raw.RawTx)
	if err != nil {
		return fail("raw_tx", err)
	}
	decoded, err := dec.DecodeTransaction(rawTx)
	if err != nil {
		return fail("raw_tx", fmt.Errorf("%w: %v", ErrTxDecode, err))
	}
	return MergeTransaction(raw, rawTx, decoded, bctx)
}

// MergeTransaction is the pure half of NormalizeTransaction: it validates the
// node envelope against an already decoded transaction.
func MergeTransaction(raw node.Tx, rawTx []byte, decoded *codec.Transaction, bctx BlockContext) (Transaction, error) {
	fail := func(field string, err error) (Transaction, error) {
		return Transaction{}, fieldErr("transaction", raw.TxID, NoEventIndex, field, err)
	}

	txid, err := value.ParseTxID(raw.TxID)
	if err != nil {
		return fail("txid", err)
	}
	if decoded == nil {
		return fail("raw_tx", fmt.Errorf("%w: decoder returned no transaction", ErrTxDecode))
	}
	if computed := codec.TxID(rawTx); computed != txid {
		return fail("txid", fmt.Errorf("%w: reported %s, computed %s", ErrTxIDMismatch, txid, computed))
	}
	if raw.TxIndex == nil {
		return fail("tx_index", fmt.Errorf("%w: missing", ErrMalformedTransaction))
	}
	if *raw.TxIndex < 0 || *raw.TxIndex > int64(^uint32(0)) {
		return fail("tx_index", fmt.Errorf("%w: %d out of range", ErrMalformedTransaction, *raw.TxIndex))
	}
	status, ok := parseTxStatus(raw.Status)
	if !ok {
		return fail("status", fmt.Errorf("%w: unknown status %q", ErrMalformedTransaction, raw.Status))
	}
	rawResult, err := value.ParseHex(raw.RawResult)
	if err != nil {
		return fail("raw_result", err)
	}

	out := Transaction{
		TxID:              txid,
		TxIndex:           uint32(*raw.TxIndex),
		Status:            status,
		Raw:               rawTx,
		RawResult:         rawResult,
		Sender:            decoded.Sender(),
		Sponsor:           decoded.SponsorAddress(),
		Nonce:             decoded.Nonce(),
		Fee:               decoded.Fee(),
		AnchorMode:        decoded.AnchorMode,
		PostConditionMode: decoded.PostConditionMode,
		PostConditions:    len(decoded.PostConditions),
		PayloadKind:       decoded.Payload.Kind,
		Decoded:           decoded,
		Block:             bctx,
	}
	if present(raw.ContractABI) {
		out.ContractABI = append(json.RawMessage(nil), raw.ContractABI...)
	}
	if v, err := clarity.Decode(rawResult); err == nil {
		out.Result = &v
	}

	payload := decoded.Payload
	switch payload.Kind {
	case codec.PayloadTokenTransfer:
	case codec.PayloadSmartContract, codec.PayloadVersionedSmartContract:
		out.Contract = out.Sender + "." + payload.SmartContract.Name
	case codec.PayloadContractCall:
		out.Contract = payload.ContractCall.Contract
		out.Function = payload.ContractCall.Function
	case codec.PayloadPoisonMicroblock, codec.PayloadCoinbase, codec.PayloadCoinbaseToAltRecipient,
		codec.PayloadNakamotoCoinbase, codec.PayloadTenureChange:
	default:
		return fail("raw_tx", fmt.Errorf("%w: payload type 0x%02x", ErrUnsupportedTxPayload, byte(payload.Kind)))
	}
	return out, nil
}
