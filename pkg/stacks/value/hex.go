package value

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ParseHex decodes a "0x"-prefixed, even-length hex string. Digits must be
// lower-case so that EncodeHex(ParseHex(s)) == s; upper-case digits are
// rejected with a "bad digit" error.
func ParseHex(s string) ([]byte, error) {
	if len(s) < 2 || s[0] != '0' || s[1] != 'x' {
		return nil, fmt.Errorf("%w: missing 0x prefix", ErrInvalidHexEncoding)
	}
	return decodeDigits(s[2:], 2)
}

// ParseBareHex is ParseHex with the "0x" prefix optional. The node renders
// buffers such as transfer memos without it.
func ParseBareHex(s string) ([]byte, error) {
	if len(s) >= 2 && s[0] == '0' && s[1] == 'x' {
		return ParseHex(s)
	}
	return decodeDigits(s, 0)
}

// decodeDigits decodes lower-case hex digits; offset positions errors in the
// original string.
func decodeDigits(digits string, offset int) ([]byte, error) {
	if len(digits)%2 != 0 {
		return nil, fmt.Errorf("%w: odd digit count %d", ErrInvalidHexEncoding, len(digits))
	}
	for i := 0; i < len(digits); i++ {
		c := digits[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return nil, fmt.Errorf("%w: bad digit %q at offset %d (digits must be lower-case)", ErrInvalidHexEncoding, c, i+offset)
		}
	}
	out, err := hex.DecodeString(digits)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHexEncoding, err)
	}
	return out, nil
}

// EncodeHex is the inverse of ParseHex.
func EncodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// Hash is a 32-byte digest: txids, block hashes, index block hashes and burn
// block hashes all share this shape.
type Hash [32]byte

// TxID identifies a transaction.
type TxID = Hash

// ParseHash32 decodes a 0x-prefixed 32-byte hash.
func ParseHash32(s string) (Hash, error) {
	var h Hash
	b, err := ParseHex(s)
	if err != nil {
		return h, err
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("%w: expected 32 bytes, got %d", ErrInvalidHexEncoding, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// ParseTxID is ParseHash32 for transaction ids.
func ParseTxID(s string) (TxID, error) {
	return ParseHash32(s)
}

func (h Hash) String() string { return EncodeHex(h[:]) }

func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseHash32(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
