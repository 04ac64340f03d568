package clarity

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"unicode/utf8"

	"github.com/canopy-network/stacksx/pkg/stacks/c32"
)

// maxDepth bounds nesting so hostile payloads cannot exhaust the stack.
const maxDepth = 64

var (
	ErrTruncated   = errors.New("clarity: truncated value")
	ErrUnknownType = errors.New("clarity: unknown type prefix")
	ErrTooDeep     = errors.New("clarity: nesting too deep")
	ErrTrailing    = errors.New("clarity: trailing bytes")
	ErrMalformed   = errors.New("clarity: malformed value")
)

var two128 = new(big.Int).Lsh(big.NewInt(1), 128)

// Decode deserializes exactly one value; leftover bytes are an error.
func Decode(b []byte) (Value, error) {
	v, n, err := DecodePrefix(b)
	if err != nil {
		return Value{}, err
	}
	if n != len(b) {
		return Value{}, fmt.Errorf("%w: %d of %d bytes consumed", ErrTrailing, n, len(b))
	}
	return v, nil
}

// DecodePrefix deserializes one value from the front of b and reports how many
// bytes it used.
func DecodePrefix(b []byte) (Value, int, error) {
	d := decoder{buf: b}
	v, err := d.value(0)
	if err != nil {
		return Value{}, 0, err
	}
	return v, d.off, nil
}

type decoder struct {
	buf []byte
	off int
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || len(d.buf)-d.off < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d", ErrTruncated, n, d.off)
	}
	out := d.buf[d.off : d.off+n]
	d.off += n
	return out, nil
}

func (d *decoder) readByte() (byte, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *decoder) u32() (int, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	n := binary.BigEndian.Uint32(b)
	if int64(n) > int64(len(d.buf)-d.off) {
		// every element occupies at least one byte, so a length larger than
		// the remaining input can never be satisfied
		return 0, fmt.Errorf("%w: length %d exceeds remaining %d bytes", ErrTruncated, n, len(d.buf)-d.off)
	}
	return int(n), nil
}

func (d *decoder) principal() (string, error) {
	version, err := d.readByte()
	if err != nil {
		return "", err
	}
	hash, err := d.take(20)
	if err != nil {
		return "", err
	}
	addr, err := c32.Address(version, hash)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return addr, nil
}

func (d *decoder) name() (string, error) {
	n, err := d.readByte()
	if err != nil {
		return "", err
	}
	b, err := d.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *decoder) value(depth int) (Value, error) {
	if depth > maxDepth {
		return Value{}, ErrTooDeep
	}
	prefix, err := d.readByte()
	if err != nil {
		return Value{}, err
	}
	kind := Kind(prefix)

	switch kind {
	case KindInt, KindUInt:
		raw, err := d.take(16)
		if err != nil {
			return Value{}, err
		}
		n := new(big.Int).SetBytes(raw)
		if kind == KindInt && raw[0]&0x80 != 0 {
			n.Sub(n, two128)
		}
		return Value{Kind: kind, Int: n}, nil

	case KindBuffer, KindStringASCII, KindStringUTF8:
		n, err := d.u32()
		if err != nil {
			return Value{}, err
		}
		raw, err := d.take(n)
		if err != nil {
			return Value{}, err
		}
		if kind == KindStringUTF8 && !utf8.Valid(raw) {
			return Value{}, fmt.Errorf("%w: invalid utf-8 string", ErrMalformed)
		}
		if kind == KindStringASCII {
			for _, c := range raw {
				if c >= 0x80 {
					return Value{}, fmt.Errorf("%w: non-ascii byte in string-ascii", ErrMalformed)
				}
			}
		}
		return Value{Kind: kind, Bytes: append([]byte(nil), raw...)}, nil

	case KindBoolTrue, KindBoolFalse, KindOptionalNone:
		return Value{Kind: kind}, nil

	case KindStandardPrincipal:
		addr, err := d.principal()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: kind, Principal: addr}, nil

	case KindContractPrincipal:
		addr, err := d.principal()
		if err != nil {
			return Value{}, err
		}
		name, err := d.name()
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: kind, Principal: addr + "." + name}, nil

	case KindResponseOk, KindResponseErr, KindOptionalSome:
		inner, err := d.value(depth + 1)
		if err != nil {
			return Value{}, err
		}
		return Value{Kind: kind, Inner: &inner}, nil

	case KindList:
		n, err := d.u32()
		if err != nil {
			return Value{}, err
		}
		items := make([]Value, 0, n)
		for i := 0; i < n; i++ {
			item, err := d.value(depth + 1)
			if err != nil {
				return Value{}, fmt.Errorf("list item %d: %w", i, err)
			}
			items = append(items, item)
		}
		return Value{Kind: kind, List: items}, nil

	case KindTuple:
		n, err := d.u32()
		if err != nil {
			return Value{}, err
		}
		entries := make([]TupleEntry, 0, n)
		for i := 0; i < n; i++ {
			name, err := d.name()
			if err != nil {
				return Value{}, err
			}
			v, err := d.value(depth + 1)
			if err != nil {
				return Value{}, fmt.Errorf("tuple field %q: %w", name, err)
			}
			entries = append(entries, TupleEntry{Name: name, Value: v})
		}
		return Value{Kind: kind, Tuple: entries}, nil
	}

	return Value{}, fmt.Errorf("%w 0x%02x at offset %d", ErrUnknownType, prefix, d.off-1)
}
