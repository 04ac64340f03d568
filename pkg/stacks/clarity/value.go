// Package clarity deserializes consensus-encoded Clarity values. The node
// attaches these as opaque hex blobs, so decoding is best-effort enrichment:
// callers keep the raw bytes whether or not Decode succeeds.
package clarity

import (
	"encoding/hex"
	"encoding/json"
	"math/big"
	"strconv"
	"strings"
)

// Kind is the one-byte type prefix of a serialized value.
type Kind byte

const (
	KindInt               Kind = 0x00
	KindUInt              Kind = 0x01
	KindBuffer            Kind = 0x02
	KindBoolTrue          Kind = 0x03
	KindBoolFalse         Kind = 0x04
	KindStandardPrincipal Kind = 0x05
	KindContractPrincipal Kind = 0x06
	KindResponseOk        Kind = 0x07
	KindResponseErr       Kind = 0x08
	KindOptionalNone      Kind = 0x09
	KindOptionalSome      Kind = 0x0a
	KindList              Kind = 0x0b
	KindTuple             Kind = 0x0c
	KindStringASCII       Kind = 0x0d
	KindStringUTF8        Kind = 0x0e
)

var kindNames = map[Kind]string{
	KindInt:               "int",
	KindUInt:              "uint",
	KindBuffer:            "buff",
	KindBoolTrue:          "bool",
	KindBoolFalse:         "bool",
	KindStandardPrincipal: "principal",
	KindContractPrincipal: "principal",
	KindResponseOk:        "response",
	KindResponseErr:       "response",
	KindOptionalNone:      "optional",
	KindOptionalSome:      "optional",
	KindList:              "list",
	KindTuple:             "tuple",
	KindStringASCII:       "string-ascii",
	KindStringUTF8:        "string-utf8",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown(" + strconv.Itoa(int(k)) + ")"
}

// TupleEntry is one named field of a tuple, kept in wire order.
type TupleEntry struct {
	Name  string
	Value Value
}

// Value is a decoded Clarity value. Which fields are meaningful depends on
// Kind: Int for int/uint, Bytes for buffers and strings, Principal for both
// principal kinds, Inner for response/optional wrappers, List and Tuple for
// the compound kinds.
type Value struct {
	Kind      Kind
	Int       *big.Int
	Bytes     []byte
	Principal string
	Inner     *Value
	List      []Value
	Tuple     []TupleEntry
}

// Repr renders the value the way the Clarity REPL prints it.
func (v Value) Repr() string {
	var b strings.Builder
	v.writeRepr(&b)
	return b.String()
}

func (v Value) writeRepr(b *strings.Builder) {
	switch v.Kind {
	case KindInt:
		b.WriteString(v.Int.String())
	case KindUInt:
		b.WriteByte('u')
		b.WriteString(v.Int.String())
	case KindBuffer:
		b.WriteString("0x")
		b.WriteString(hex.EncodeToString(v.Bytes))
	case KindBoolTrue:
		b.WriteString("true")
	case KindBoolFalse:
		b.WriteString("false")
	case KindStandardPrincipal, KindContractPrincipal:
		b.WriteByte('\'')
		b.WriteString(v.Principal)
	case KindResponseOk:
		b.WriteString("(ok ")
		v.Inner.writeRepr(b)
		b.WriteByte(')')
	case KindResponseErr:
		b.WriteString("(err ")
		v.Inner.writeRepr(b)
		b.WriteByte(')')
	case KindOptionalNone:
		b.WriteString("none")
	case KindOptionalSome:
		b.WriteString("(some ")
		v.Inner.writeRepr(b)
		b.WriteByte(')')
	case KindList:
		b.WriteString("(list")
		for _, item := range v.List {
			b.WriteByte(' ')
			item.writeRepr(b)
		}
		b.WriteByte(')')
	case KindTuple:
		b.WriteString("(tuple")
		for _, e := range v.Tuple {
			b.WriteString(" (")
			b.WriteString(e.Name)
			b.WriteByte(' ')
			e.Value.writeRepr(b)
			b.WriteByte(')')
		}
		b.WriteByte(')')
	case KindStringASCII:
		b.WriteString(strconv.Quote(string(v.Bytes)))
	case KindStringUTF8:
		b.WriteByte('u')
		b.WriteString(strconv.Quote(string(v.Bytes)))
	}
}

// MarshalJSON emits the type name and REPL repr; the raw hex travels
// separately with whatever record embeds the value.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Repr string `json:"repr"`
	}{Type: v.Kind.String(), Repr: v.Repr()})
}
