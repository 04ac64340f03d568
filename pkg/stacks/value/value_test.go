package value

import (
	"bytes"
	"math/big"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "zero", in: "0", want: "0"},
		{name: "small", in: "42", want: "42"},
		{name: "beyond uint64", in: "340282366920938463463374607431768211455", want: "340282366920938463463374607431768211455"},
		{name: "leading zeros", in: "007", wantErr: true},
		{name: "double zero", in: "00", wantErr: true},
		{name: "empty", in: "", wantErr: true},
		{name: "negative", in: "-5", wantErr: true},
		{name: "plus sign", in: "+5", wantErr: true},
		{name: "whitespace", in: " 5", wantErr: true},
		{name: "decimal point", in: "1.5", wantErr: true},
		{name: "hex", in: "0x10", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidAmount)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, FormatAmount(got))
		})
	}
}

func TestParseUint64String(t *testing.T) {
	n, err := ParseUint64String("18446744073709551615")
	require.NoError(t, err)
	assert.Equal(t, uint64(18446744073709551615), n)

	_, err = ParseUint64String("18446744073709551616")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ParseUint64String("01")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestSumAmounts(t *testing.T) {
	a := big.NewInt(5)
	b := big.NewInt(7)
	sum := SumAmounts(a, nil, b)
	assert.Equal(t, "12", sum.String())
	assert.Equal(t, "5", a.String())
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []byte
		wantErr bool
	}{
		{name: "empty payload", in: "0x", want: []byte{}},
		{name: "deadbeef", in: "0xdeadbeef", want: []byte{0xde, 0xad, 0xbe, 0xef}},
		{name: "no prefix", in: "deadbeef", wantErr: true},
		{name: "upper prefix", in: "0Xdeadbeef", wantErr: true},
		{name: "odd digits", in: "0xabc", wantErr: true},
		{name: "upper digits", in: "0xDEADBEEF", wantErr: true},
		{name: "non hex", in: "0xzz", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHex(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidHexEncoding)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseBareHex(t *testing.T) {
	got, err := ParseBareHex("00ff")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xff}, got)

	got, err = ParseBareHex("0x00ff")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xff}, got)

	for _, bad := range []string{"0ff", "0x0ff", "00FF", "zz"} {
		_, err := ParseBareHex(bad)
		require.ErrorIs(t, err, ErrInvalidHexEncoding, bad)
	}

	_, err = ParseHex("0xDEADBEEF")
	require.ErrorContains(t, err, "lower-case")
}

func TestParseHash32(t *testing.T) {
	s := "0x" + strings.Repeat("ab", 32)
	h, err := ParseHash32(s)
	require.NoError(t, err)
	assert.Equal(t, s, h.String())
	assert.False(t, h.IsZero())

	_, err = ParseHash32("0xabcd")
	assert.ErrorIs(t, err, ErrInvalidHexEncoding)
}

func TestDecoderProperties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 500
	properties := gopter.NewProperties(params)

	canonicalDecimal := gen.OneGenOf(
		gen.Const("0"),
		gen.NumString().SuchThat(func(s string) bool {
			return s != "" && s[0] != '0'
		}),
	)

	properties.Property("accepted amounts format back to their input", prop.ForAll(
		func(s string) bool {
			n, err := ParseAmount(s)
			return err == nil && FormatAmount(n) == s
		},
		canonicalDecimal,
	))

	properties.Property("leading zeros are always rejected", prop.ForAll(
		func(s string) bool {
			_, err := ParseAmount("0" + s)
			return err != nil
		},
		gen.NumString().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.Property("hex decode then encode is identity", prop.ForAll(
		func(b []byte) bool {
			s := EncodeHex(b)
			out, err := ParseHex(s)
			return err == nil && bytes.Equal(out, b) && EncodeHex(out) == s
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}
