package clarity

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestDecodeRepr(t *testing.T) {
	zeroHash := "00" + string(bytes.Repeat([]byte("00"), 19))

	tests := []struct {
		name string
		in   string
		kind Kind
		repr string
	}{
		{name: "int", in: "00" + "0000000000000000000000000000002a", kind: KindInt, repr: "42"},
		{name: "negative int", in: "00" + "ffffffffffffffffffffffffffffffff", kind: KindInt, repr: "-1"},
		{name: "uint", in: "01" + "00000000000000000000000000000064", kind: KindUInt, repr: "u100"},
		{name: "max uint", in: "01" + "ffffffffffffffffffffffffffffffff", kind: KindUInt, repr: "u340282366920938463463374607431768211455"},
		{name: "buffer", in: "02" + "00000004" + "deadbeef", kind: KindBuffer, repr: "0xdeadbeef"},
		{name: "true", in: "03", kind: KindBoolTrue, repr: "true"},
		{name: "false", in: "04", kind: KindBoolFalse, repr: "false"},
		{name: "standard principal", in: "05" + "16" + zeroHash, kind: KindStandardPrincipal, repr: "'SP000000000000000000002Q6VF78"},
		{name: "contract principal", in: "06" + "16" + zeroHash + "03" + "706f78", kind: KindContractPrincipal, repr: "'SP000000000000000000002Q6VF78.pox"},
		{name: "ok", in: "07" + "03", kind: KindResponseOk, repr: "(ok true)"},
		{name: "err uint", in: "08" + "01" + "00000000000000000000000000000001", kind: KindResponseErr, repr: "(err u1)"},
		{name: "none", in: "09", kind: KindOptionalNone, repr: "none"},
		{name: "some", in: "0a" + "04", kind: KindOptionalSome, repr: "(some false)"},
		{name: "list", in: "0b" + "00000002" + "03" + "04", kind: KindList, repr: "(list true false)"},
		{name: "empty list", in: "0b" + "00000000", kind: KindList, repr: "(list)"},
		{name: "tuple", in: "0c" + "00000001" + "01" + "61" + "03", kind: KindTuple, repr: "(tuple (a true))"},
		{name: "ascii", in: "0d" + "00000002" + "6869", kind: KindStringASCII, repr: `"hi"`},
		{name: "utf8", in: "0e" + "00000003" + "e282ac", kind: KindStringUTF8, repr: `u"€"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Decode(mustHex(t, tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, v.Kind)
			assert.Equal(t, tt.repr, v.Repr())
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{name: "empty", in: "", want: ErrTruncated},
		{name: "deadbeef", in: "deadbeef", want: ErrUnknownType},
		{name: "short int", in: "0000", want: ErrTruncated},
		{name: "buffer overrun", in: "02" + "000000ff" + "00", want: ErrTruncated},
		{name: "trailing", in: "0303", want: ErrTrailing},
		{name: "bad utf8", in: "0e" + "00000001" + "ff", want: ErrMalformed},
		{name: "non ascii", in: "0d" + "00000001" + "80", want: ErrMalformed},
		{name: "principal version out of range", in: "05" + "ff" + "0000000000000000000000000000000000000000", want: ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(mustHex(t, tt.in))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeDepthLimit(t *testing.T) {
	nested := bytes.Repeat([]byte{byte(KindOptionalSome)}, maxDepth+2)
	nested = append(nested, byte(KindBoolTrue))
	_, err := Decode(nested)
	assert.ErrorIs(t, err, ErrTooDeep)
}

func TestDecodePrefixReportsConsumed(t *testing.T) {
	v, n, err := DecodePrefix(mustHex(t, "0a03ffff"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "(some true)", v.Repr())
}

func TestValueMarshalJSON(t *testing.T) {
	v, err := Decode(mustHex(t, "0703"))
	require.NoError(t, err)
	out, err := v.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"response","repr":"(ok true)"}`, string(out))
}
