package transform

import (
	"math/big"
	"time"

	"github.com/canopy-network/stacksx/pkg/stacks/clarity"
	"github.com/canopy-network/stacksx/pkg/stacks/value"
)

func strPtr(s string) *string { return &s }

// optional returns nil for the empty string.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func amountPtr(n *big.Int) *string {
	return strPtr(value.FormatAmount(n))
}

func hexPtr(b []byte) *string {
	return strPtr(value.EncodeHex(b))
}

func reprPtr(v *clarity.Value) *string {
	if v == nil {
		return nil
	}
	return strPtr(v.Repr())
}

func committed(b *bool) *uint8 {
	if b == nil {
		return nil
	}
	var v uint8
	if *b {
		v = 1
	}
	return &v
}

func unixTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
