package normalize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/canopy-network/stacksx/pkg/stacks/value"
)

// Validation failures. Every error returned by this package wraps exactly one
// of these so callers can classify it with errors.Is.
var (
	ErrUnknownEventVariant   = errors.New("unknown event variant")
	ErrMalformedEventPayload = errors.New("malformed event payload")
	ErrInvalidAmount         = value.ErrInvalidAmount
	ErrInvalidHexEncoding    = value.ErrInvalidHexEncoding
	ErrInvalidIdentifier     = value.ErrInvalidIdentifier
	ErrTxIDMismatch          = errors.New("txid mismatch")
	ErrUnsupportedTxPayload  = errors.New("unsupported transaction payload")
	ErrTxDecode              = errors.New("transaction decode failed")
	ErrMalformedTransaction  = errors.New("malformed transaction envelope")
	ErrContiguity            = errors.New("transaction index contiguity violation")
	ErrEventIndexCollision   = errors.New("event index collision")
	ErrUnresolvedEventTx     = errors.New("event references unknown transaction")
	ErrMalformedBlock        = errors.New("malformed block envelope")
	ErrMalformedBurnBlock    = errors.New("malformed burn block envelope")
	ErrMalformedMempoolDrop  = errors.New("malformed mempool drop envelope")
	ErrUnknownDropReason     = errors.New("unknown mempool drop reason")
)

// ErrRewardSplitOverflow is a consistency fault, not a validation failure: the
// burn block is still forwarded with the anomaly flagged.
var ErrRewardSplitOverflow = errors.New("reward split sum exceeds burn amount")

var validationKinds = []error{
	ErrUnknownEventVariant, ErrMalformedEventPayload, ErrInvalidAmount, ErrInvalidHexEncoding,
	ErrInvalidIdentifier, ErrTxIDMismatch, ErrUnsupportedTxPayload, ErrTxDecode, ErrMalformedTransaction,
	ErrContiguity, ErrEventIndexCollision, ErrUnresolvedEventTx, ErrMalformedBlock, ErrMalformedBurnBlock,
	ErrMalformedMempoolDrop, ErrUnknownDropReason,
}

// IsValidation reports whether err rejects its message for content reasons.
// Such messages are never worth retrying.
func IsValidation(err error) bool {
	for _, k := range validationKinds {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

// NoEventIndex marks a FieldError that is not about an event.
const NoEventIndex int64 = -1

// FieldError locates a validation failure inside a message.
type FieldError struct {
	TxID       string
	EventIndex int64
	Kind       string // event type tag, "transaction", "block", ...
	Field      string
	Err        error
}

func (e *FieldError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind)
	if e.TxID != "" {
		fmt.Fprintf(&b, " txid=%s", e.TxID)
	}
	if e.EventIndex != NoEventIndex {
		fmt.Fprintf(&b, " event_index=%d", e.EventIndex)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field=%s", e.Field)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *FieldError) Unwrap() error { return e.Err }

// BlockAssemblyError rejects a whole block because one of its parts failed.
type BlockAssemblyError struct {
	Height         uint64
	IndexBlockHash string
	Cause          error
}

func (e *BlockAssemblyError) Error() string {
	return fmt.Sprintf("block assembly failed at height %d (%s): %v", e.Height, e.IndexBlockHash, e.Cause)
}

func (e *BlockAssemblyError) Unwrap() error { return e.Cause }

func fieldErr(kind, txid string, eventIndex int64, field string, err error) *FieldError {
	return &FieldError{TxID: txid, EventIndex: eventIndex, Kind: kind, Field: field, Err: err}
}
