package transform

import (
	"github.com/canopy-network/stacksx/pkg/db/models/indexer"
	"github.com/canopy-network/stacksx/pkg/normalize"
)

// eventRow fills the variant columns of an events row. It implements
// normalize.EventVisitor so a new event variant fails to compile here until
// it has a row mapping.
type eventRow struct {
	row *indexer.Event
}

var _ normalize.EventVisitor = eventRow{}

// Event converts a normalized event into its row within block b.
func Event(b *normalize.Block, e normalize.Event) (*indexer.Event, error) {
	row := &indexer.Event{
		TxID:           e.TxID.String(),
		EventIndex:     e.EventIndex,
		IndexBlockHash: b.IndexBlockHash.String(),
		BlockHeight:    b.Height,
		EventType:      e.Kind().String(),
		Committed:      committed(e.Committed),
	}
	if err := e.Accept(eventRow{row: row}); err != nil {
		return nil, err
	}
	return row, nil
}

func (r eventRow) opaque(v normalize.OpaqueValue) {
	r.row.RawValue = hexPtr(v.Raw)
	r.row.ValueRepr = reprPtr(v.Decoded)
}

func (r eventRow) ContractEvent(_ normalize.Event, p *normalize.ContractEvent) error {
	r.row.ContractIdentifier = strPtr(p.Contract.String())
	r.row.Topic = strPtr(p.Topic)
	r.opaque(p.Value)
	return nil
}

func (r eventRow) StxTransfer(_ normalize.Event, p *normalize.StxTransfer) error {
	r.row.Sender = strPtr(p.Sender.String())
	r.row.Recipient = strPtr(p.Recipient.String())
	r.row.Amount = amountPtr(p.Amount)
	if p.Memo != nil {
		r.row.Memo = hexPtr(p.Memo)
	}
	return nil
}

func (r eventRow) StxMint(_ normalize.Event, p *normalize.StxMint) error {
	r.row.Recipient = strPtr(p.Recipient.String())
	r.row.Amount = amountPtr(p.Amount)
	return nil
}

func (r eventRow) StxBurn(_ normalize.Event, p *normalize.StxBurn) error {
	r.row.Sender = strPtr(p.Sender.String())
	r.row.Amount = amountPtr(p.Amount)
	return nil
}

func (r eventRow) StxLock(_ normalize.Event, p *normalize.StxLock) error {
	r.row.Sender = strPtr(p.LockedAddress.String())
	r.row.Amount = amountPtr(p.LockedAmount)
	unlock := p.UnlockHeight
	r.row.UnlockHeight = &unlock
	return nil
}

func (r eventRow) NftTransfer(_ normalize.Event, p *normalize.NftTransfer) error {
	r.row.AssetIdentifier = strPtr(p.Asset.String())
	r.row.Sender = strPtr(p.Sender.String())
	r.row.Recipient = strPtr(p.Recipient.String())
	r.opaque(p.Value)
	return nil
}

func (r eventRow) NftMint(_ normalize.Event, p *normalize.NftMint) error {
	r.row.AssetIdentifier = strPtr(p.Asset.String())
	r.row.Recipient = strPtr(p.Recipient.String())
	r.opaque(p.Value)
	return nil
}

func (r eventRow) FtTransfer(_ normalize.Event, p *normalize.FtTransfer) error {
	r.row.AssetIdentifier = strPtr(p.Asset.String())
	r.row.Sender = strPtr(p.Sender.String())
	r.row.Recipient = strPtr(p.Recipient.String())
	r.row.Amount = amountPtr(p.Amount)
	return nil
}

func (r eventRow) FtMint(_ normalize.Event, p *normalize.FtMint) error {
	r.row.AssetIdentifier = strPtr(p.Asset.String())
	r.row.Recipient = strPtr(p.Recipient.String())
	r.row.Amount = amountPtr(p.Amount)
	return nil
}
