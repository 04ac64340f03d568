package normalize

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/canopy-network/stacksx/pkg/stacks/clarity"
	"github.com/canopy-network/stacksx/pkg/stacks/node"
	"github.com/canopy-network/stacksx/pkg/stacks/value"
)

// EventKind is the closed set of event variants.
type EventKind uint8

const (
	KindContractEvent EventKind = iota + 1
	KindStxTransfer
	KindStxMint
	KindStxBurn
	KindStxLock
	KindNftTransfer
	KindNftMint
	KindFtTransfer
	KindFtMint
)

var eventKindTags = map[EventKind]string{
	KindContractEvent: node.TypeContractEvent,
	KindStxTransfer:   node.TypeStxTransferEvent,
	KindStxMint:       node.TypeStxMintEvent,
	KindStxBurn:       node.TypeStxBurnEvent,
	KindStxLock:       node.TypeStxLockEvent,
	KindNftTransfer:   node.TypeNftTransferEvent,
	KindNftMint:       node.TypeNftMintEvent,
	KindFtTransfer:    node.TypeFtTransferEvent,
	KindFtMint:        node.TypeFtMintEvent,
}

// String returns the node's tag for the kind.
func (k EventKind) String() string {
	if tag, ok := eventKindTags[k]; ok {
		return tag
	}
	return fmt.Sprintf("event_kind(%d)", uint8(k))
}

// EventVisitor has one method per variant. Adding a variant adds a method
// here, which breaks every visitor that does not handle it.
type EventVisitor interface {
	ContractEvent(Event, *ContractEvent) error
	StxTransfer(Event, *StxTransfer) error
	StxMint(Event, *StxMint) error
	StxBurn(Event, *StxBurn) error
	StxLock(Event, *StxLock) error
	NftTransfer(Event, *NftTransfer) error
	NftMint(Event, *NftMint) error
	FtTransfer(Event, *FtTransfer) error
	FtMint(Event, *FtMint) error
}

// EventPayload is implemented only by the nine variant types below.
type EventPayload interface {
	Kind() EventKind
	accept(Event, EventVisitor) error
}

// Event is a validated node event with exactly one payload variant.
type Event struct {
	TxID       value.TxID
	EventIndex uint32
	// Committed is the node's flag, passed through as received.
	Committed *bool
	Payload   EventPayload
}

func (e Event) Kind() EventKind { return e.Payload.Kind() }

// Accept dispatches to the visitor method for the event's variant.
func (e Event) Accept(v EventVisitor) error { return e.Payload.accept(e, v) }

// OpaqueValue is a contract-emitted Clarity value. Raw is always present;
// Decoded is a best-effort parse and NodeValue is the node's own rendering,
// neither of which is trusted.
type OpaqueValue struct {
	Raw       []byte
	Decoded   *clarity.Value
	NodeValue json.RawMessage
}

type ContractEvent struct {
	Contract value.ContractID
	Topic    string
	Value    OpaqueValue
}

type StxTransfer struct {
	Sender    value.Principal
	Recipient value.Principal
	Amount    *big.Int
	Memo      []byte
}

type StxMint struct {
	Recipient value.Principal
	Amount    *big.Int
}

type StxBurn struct {
	Sender value.Principal
	Amount *big.Int
}

type StxLock struct {
	LockedAmount  *big.Int
	UnlockHeight  uint64
	LockedAddress value.Principal
}

type NftTransfer struct {
	Asset     value.AssetID
	Sender    value.Principal
	Recipient value.Principal
	Value     OpaqueValue
}

type NftMint struct {
	Asset     value.AssetID
	Recipient value.Principal
	Value     OpaqueValue
}

type FtTransfer struct {
	Asset     value.AssetID
	Sender    value.Principal
	Recipient value.Principal
	Amount    *big.Int
}

type FtMint struct {
	Asset     value.AssetID
	Recipient value.Principal
	Amount    *big.Int
}

func (*ContractEvent) Kind() EventKind { return KindContractEvent }
func (*StxTransfer) Kind() EventKind   { return KindStxTransfer }
func (*StxMint) Kind() EventKind       { return KindStxMint }
func (*StxBurn) Kind() EventKind       { return KindStxBurn }
func (*StxLock) Kind() EventKind       { return KindStxLock }
func (*NftTransfer) Kind() EventKind   { return KindNftTransfer }
func (*NftMint) Kind() EventKind       { return KindNftMint }
func (*FtTransfer) Kind() EventKind    { return KindFtTransfer }
func (*FtMint) Kind() EventKind        { return KindFtMint }

func (p *ContractEvent) accept(e Event, v EventVisitor) error { return v.ContractEvent(e, p) }
func (p *StxTransfer) accept(e Event, v EventVisitor) error   { return v.StxTransfer(e, p) }
func (p *StxMint) accept(e Event, v EventVisitor) error       { return v.StxMint(e, p) }
func (p *StxBurn) accept(e Event, v EventVisitor) error       { return v.StxBurn(e, p) }
func (p *StxLock) accept(e Event, v EventVisitor) error       { return v.StxLock(e, p) }
func (p *NftTransfer) accept(e Event, v EventVisitor) error   { return v.NftTransfer(e, p) }
func (p *NftMint) accept(e Event, v EventVisitor) error       { return v.NftMint(e, p) }
func (p *FtTransfer) accept(e Event, v EventVisitor) error    { return v.FtTransfer(e, p) }
func (p *FtMint) accept(e Event, v EventVisitor) error        { return v.FtMint(e, p) }
