package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"

	"github.com/canopy-network/stacksx/pkg/stacks/clarity"
	"github.com/canopy-network/stacksx/pkg/stacks/node"
	"github.com/canopy-network/stacksx/pkg/stacks/value"
)

var tagKinds = func() map[string]EventKind {
	m := make(map[string]EventKind, len(eventKindTags))
	for k, tag := range eventKindTags {
		m[tag] = k
	}
	return m
}()

var jsonNull = []byte("null")

// NormalizeEvent validates a raw node event and resolves its variant. It does
// no I/O.
func NormalizeEvent(raw node.Event) (Event, error) {
	idx := NoEventIndex
	if raw.EventIndex != nil {
		idx = *raw.EventIndex
	}
	f := &fields{kind: raw.Type, txid: raw.TxID, idx: idx}

	kind, ok := tagKinds[raw.Type]
	if !ok {
		return Event{}, f.fail("type", fmt.Errorf("%w: %q", ErrUnknownEventVariant, raw.Type))
	}
	txid, err := value.ParseTxID(raw.TxID)
	if err != nil {
		return Event{}, f.fail("txid", err)
	}
	if raw.EventIndex == nil {
		return Event{}, f.fail("event_index", fmt.Errorf("%w: missing", ErrMalformedEventPayload))
	}
	if idx < 0 || idx > math.MaxUint32 {
		return Event{}, f.fail("event_index", fmt.Errorf("%w: %d out of range", ErrMalformedEventPayload, idx))
	}

	body, err := selectPayload(raw, kind)
	if err != nil {
		return Event{}, f.fail(raw.Type, err)
	}

	var payload EventPayload
	switch kind {
	case KindContractEvent:
		var p node.ContractEventPayload
		if f.decode(body, &p) {
			payload = &ContractEvent{
				Contract: f.contract("contract_identifier", p.ContractIdentifier),
				Topic:    f.str("topic", p.Topic),
				Value:    f.opaque("raw_value", p.RawValue, p.Value),
			}
		}
	case KindStxTransfer:
		var p node.StxTransferPayload
		if f.decode(body, &p) {
			out := &StxTransfer{
				Sender:    f.principal("sender", p.Sender),
				Recipient: f.principal("recipient", p.Recipient),
				Amount:    f.amount("amount", p.Amount),
			}
			if p.Memo != nil && *p.Memo != "" {
				out.Memo = f.bareHex("memo", *p.Memo)
			}
			payload = out
		}
	case KindStxMint:
		var p node.StxMintPayload
		if f.decode(body, &p) {
			payload = &StxMint{
				Recipient: f.principal("recipient", p.Recipient),
				Amount:    f.amount("amount", p.Amount),
			}
		}
	case KindStxBurn:
		var p node.StxBurnPayload
		if f.decode(body, &p) {
			payload = &StxBurn{
				Sender: f.principal("sender", p.Sender),
				Amount: f.amount("amount", p.Amount),
			}
		}
	case KindStxLock:
		var p node.StxLockPayload
		if f.decode(body, &p) {
			payload = &StxLock{
				LockedAmount:  f.amount("locked_amount", p.LockedAmount),
				UnlockHeight:  f.height("unlock_height", p.UnlockHeight),
				LockedAddress: f.principal("locked_address", p.LockedAddress),
			}
		}
	case KindNftTransfer:
		var p node.NftTransferPayload
		if f.decode(body, &p) {
			payload = &NftTransfer{
				Asset:     f.asset("asset_identifier", p.AssetIdentifier),
				Sender:    f.principal("sender", p.Sender),
				Recipient: f.principal("recipient", p.Recipient),
				Value:     f.opaque("raw_value", p.RawValue, p.Value),
			}
		}
	case KindNftMint:
		var p node.NftMintPayload
		if f.decode(body, &p) {
			payload = &NftMint{
				Asset:     f.asset("asset_identifier", p.AssetIdentifier),
				Recipient: f.principal("recipient", p.Recipient),
				Value:     f.opaque("raw_value", p.RawValue, p.Value),
			}
		}
	case KindFtTransfer:
		var p node.FtTransferPayload
		if f.decode(body, &p) {
			payload = &FtTransfer{
				Asset:     f.asset("asset_identifier", p.AssetIdentifier),
				Sender:    f.principal("sender", p.Sender),
				Recipient: f.principal("recipient", p.Recipient),
				Amount:    f.amount("amount", p.Amount),
			}
		}
	case KindFtMint:
		var p node.FtMintPayload
		if f.decode(body, &p) {
			payload = &FtMint{
				Asset:     f.asset("asset_identifier", p.AssetIdentifier),
				Recipient: f.principal("recipient", p.Recipient),
				Amount:    f.amount("amount", p.Amount),
			}
		}
	}
	if f.err != nil {
		return Event{}, f.err
	}

	return Event{
		TxID:       txid,
		EventIndex: uint32(idx),
		Committed:  raw.Committed,
		Payload:    payload,
	}, nil
}

// selectPayload returns the body stored under the event's own tag and rejects
// envelopes that carry any other variant's body as well.
func selectPayload(raw node.Event, kind EventKind) (json.RawMessage, error) {
	bodies := map[EventKind]json.RawMessage{
		KindContractEvent: raw.ContractEvent,
		KindStxTransfer:   raw.StxTransferEvent,
		KindStxMint:       raw.StxMintEvent,
		KindStxBurn:       raw.StxBurnEvent,
		KindStxLock:       raw.StxLockEvent,
		KindNftTransfer:   raw.NftTransferEvent,
		KindNftMint:       raw.NftMintEvent,
		KindFtTransfer:    raw.FtTransferEvent,
		KindFtMint:        raw.FtMintEvent,
	}
	for k, body := range bodies {
		if k != kind && present(body) {
			return nil, fmt.Errorf("%w: unexpected %s body on %s event", ErrMalformedEventPayload, k, kind)
		}
	}
	body := bodies[kind]
	if !present(body) {
		return nil, fmt.Errorf("%w: missing %s body", ErrMalformedEventPayload, kind)
	}
	return body, nil
}

func present(body json.RawMessage) bool {
	return len(body) > 0 && !bytes.Equal(bytes.TrimSpace(body), jsonNull)
}

// fields collects the first failure while a payload is converted, so the
// variant constructors above can read straight through.
type fields struct {
	kind string
	txid string
	idx  int64
	err  error
}

func (f *fields) fail(field string, err error) error {
	return fieldErr(f.kind, f.txid, f.idx, field, err)
}

func (f *fields) set(field string, err error) {
	if f.err == nil {
		f.err = f.fail(field, err)
	}
}

func (f *fields) decode(body json.RawMessage, dst any) bool {
	if err := json.Unmarshal(body, dst); err != nil {
		f.set(f.kind, fmt.Errorf("%w: %v", ErrMalformedEventPayload, err))
		return false
	}
	return true
}

func (f *fields) str(name string, v *string) string {
	if v == nil {
		f.set(name, fmt.Errorf("%w: missing %s", ErrMalformedEventPayload, name))
		return ""
	}
	return *v
}

func (f *fields) amount(name string, v *string) *big.Int {
	s := f.str(name, v)
	if f.err != nil {
		return nil
	}
	n, err := value.ParseAmount(s)
	if err != nil {
		f.set(name, err)
	}
	return n
}

func (f *fields) height(name string, v *string) uint64 {
	s := f.str(name, v)
	if f.err != nil {
		return 0
	}
	n, err := value.ParseUint64String(s)
	if err != nil {
		f.set(name, err)
	}
	return n
}

func (f *fields) principal(name string, v *string) value.Principal {
	s := f.str(name, v)
	if f.err != nil {
		return value.Principal{}
	}
	p, err := value.ParsePrincipal(s)
	if err != nil {
		f.set(name, err)
	}
	return p
}

func (f *fields) contract(name string, v *string) value.ContractID {
	s := f.str(name, v)
	if f.err != nil {
		return value.ContractID{}
	}
	c, err := value.ParseContractID(s)
	if err != nil {
		f.set(name, err)
	}
	return c
}

func (f *fields) asset(name string, v *string) value.AssetID {
	s := f.str(name, v)
	if f.err != nil {
		return value.AssetID{}
	}
	a, err := value.ParseAssetID(s)
	if err != nil {
		f.set(name, err)
	}
	return a
}

func (f *fields) hex(name, s string) []byte {
	b, err := value.ParseHex(s)
	if err != nil {
		f.set(name, err)
	}
	return b
}

func (f *fields) bareHex(name, s string) []byte {
	b, err := value.ParseBareHex(s)
	if err != nil {
		f.set(name, err)
	}
	return b
}

// opaque keeps the raw bytes and attempts a structured decode. Decode failures
// only leave Decoded nil.
func (f *fields) opaque(name string, raw *string, nodeValue json.RawMessage) OpaqueValue {
	s := f.str(name, raw)
	if f.err != nil {
		return OpaqueValue{}
	}
	b := f.hex(name, s)
	if f.err != nil {
		return OpaqueValue{}
	}
	out := OpaqueValue{Raw: b}
	if v, err := clarity.Decode(b); err == nil {
		out.Decoded = &v
	}
	if present(nodeValue) {
		out.NodeValue = append(json.RawMessage(nil), nodeValue...)
	}
	return out
}
