package value

import (
	"bytes"
	"testing"

	"github.com/canopy-network/stacksx/pkg/stacks/c32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAddress(t *testing.T, fill byte) string {
	t.Helper()
	addr, err := c32.Address(c32.VersionTestnetSingleSig, bytes.Repeat([]byte{fill}, 20))
	require.NoError(t, err)
	return addr
}

func TestParsePrincipal(t *testing.T) {
	addr := testAddress(t, 0x11)

	p, err := ParsePrincipal(addr)
	require.NoError(t, err)
	assert.False(t, p.IsContract())
	assert.Equal(t, addr, p.String())
	assert.Equal(t, c32.VersionTestnetSingleSig, p.Version)
	assert.Equal(t, byte(0x11), p.Hash160[0])

	p, err = ParsePrincipal(addr + ".kv-store")
	require.NoError(t, err)
	assert.True(t, p.IsContract())
	assert.Equal(t, "kv-store", p.Contract)
	assert.Equal(t, addr+".kv-store", p.String())

	boot, err := ParsePrincipal("SP000000000000000000002Q6VF78.pox-4")
	require.NoError(t, err)
	assert.Equal(t, "pox-4", boot.Contract)
}

func TestParsePrincipalRejects(t *testing.T) {
	addr := testAddress(t, 0x22)

	tests := []struct {
		name string
		in   string
	}{
		{name: "empty", in: ""},
		{name: "bad checksum", in: "SP000000000000000000002Q6VF79"},
		{name: "empty contract", in: addr + "."},
		{name: "contract starts with digit", in: addr + ".1abc"},
		{name: "contract with space", in: addr + ".a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePrincipal(tt.in)
			assert.ErrorIs(t, err, ErrInvalidIdentifier)
		})
	}
}

func TestParseContractID(t *testing.T) {
	addr := testAddress(t, 0x33)

	cid, err := ParseContractID(addr + ".token")
	require.NoError(t, err)
	assert.Equal(t, addr+".token", cid.String())

	_, err = ParseContractID(addr)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestParseAssetID(t *testing.T) {
	addr := testAddress(t, 0x44)

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "node form", in: addr + ".token::stx-coin", want: addr + ".token::stx-coin"},
		{name: "dotted form", in: addr + ".token.stx-coin", want: addr + ".token::stx-coin"},
		{name: "punctuated asset", in: addr + ".nft::ok?", want: addr + ".nft::ok?"},
		{name: "missing asset", in: addr + ".token", wantErr: true},
		{name: "bare address", in: addr, wantErr: true},
		{name: "empty asset", in: addr + ".token::", wantErr: true},
		{name: "no contract", in: addr + "::coin", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAssetID(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidIdentifier)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}
