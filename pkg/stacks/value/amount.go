// Package value holds the pure decoders for scalar fields of node envelopes:
// decimal-string amounts, 0x-prefixed hex, 32-byte hashes and principal
// identifiers.
package value

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidHexEncoding = errors.New("invalid hex encoding")
	ErrInvalidIdentifier  = errors.New("invalid identifier")
)

// ParseAmount decodes a non-negative base-10 integer. Signs, whitespace and
// leading zeros (other than the single digit "0") are rejected.
func ParseAmount(s string) (*big.Int, error) {
	if err := checkDecimal(s); err != nil {
		return nil, err
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return n, nil
}

// FormatAmount is the inverse of ParseAmount. A nil amount renders as "0".
func FormatAmount(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}

// ParseUint64String parses a decimal string that must also fit in 64 bits,
// e.g. unlock heights.
func ParseUint64String(s string) (uint64, error) {
	if err := checkDecimal(s); err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q overflows uint64", ErrInvalidAmount, s)
	}
	return n, nil
}

func checkDecimal(s string) error {
	if s == "" {
		return fmt.Errorf("%w: empty string", ErrInvalidAmount)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return fmt.Errorf("%w: %q contains non-digit %q", ErrInvalidAmount, s, s[i])
		}
	}
	if len(s) > 1 && s[0] == '0' {
		return fmt.Errorf("%w: %q has leading zeros", ErrInvalidAmount, s)
	}
	return nil
}

// SumAmounts adds amounts without mutating the inputs. Nil entries count as zero.
func SumAmounts(amounts ...*big.Int) *big.Int {
	total := new(big.Int)
	for _, a := range amounts {
		if a != nil {
			total.Add(total, a)
		}
	}
	return total
}
