// Package c32 implements the Crockford base-32 "c32check" encoding used for
// Stacks addresses.
package c32

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// Address versions.
const (
	VersionMainnetSingleSig byte = 22 // 'P'
	VersionMainnetMultiSig  byte = 20 // 'M'
	VersionTestnetSingleSig byte = 26 // 'T'
	VersionTestnetMultiSig  byte = 21 // 'N'
)

var (
	ErrInvalidCharacter = errors.New("c32: invalid character")
	ErrInvalidChecksum  = errors.New("c32: checksum mismatch")
	ErrInvalidAddress   = errors.New("c32: invalid address")
)

var thirtyTwo = big.NewInt(32)

// Encode converts data to c32, keeping one '0' digit per leading zero byte.
func Encode(data []byte) string {
	zeros := 0
	for zeros < len(data) && data[zeros] == 0 {
		zeros++
	}

	n := new(big.Int).SetBytes(data)
	mod := new(big.Int)
	digits := make([]byte, 0, len(data)*8/5+1)
	for n.Sign() > 0 {
		n.DivMod(n, thirtyTwo, mod)
		digits = append(digits, alphabet[mod.Int64()])
	}
	for i := 0; i < zeros; i++ {
		digits = append(digits, alphabet[0])
	}
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits)
}

// Decode reverses Encode. Lower-case input and the Crockford aliases O, L and I
// are accepted.
func Decode(s string) ([]byte, error) {
	s = normalize(s)
	zeros := 0
	for zeros < len(s) && s[zeros] == '0' {
		zeros++
	}

	n := new(big.Int)
	for i := 0; i < len(s); i++ {
		idx := strings.IndexByte(alphabet, s[i])
		if idx < 0 {
			return nil, fmt.Errorf("%w %q", ErrInvalidCharacter, s[i])
		}
		n.Mul(n, thirtyTwo)
		n.Add(n, big.NewInt(int64(idx)))
	}
	out := make([]byte, zeros, zeros+len(s))
	return append(out, n.Bytes()...), nil
}

func normalize(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "O", "0")
	s = strings.ReplaceAll(s, "L", "1")
	return strings.ReplaceAll(s, "I", "1")
}

func checksum(version byte, data []byte) []byte {
	first := sha256.Sum256(append([]byte{version}, data...))
	second := sha256.Sum256(first[:])
	return second[:4]
}

// CheckEncode produces the version-prefixed c32check string (without the
// leading 'S' used by addresses).
func CheckEncode(version byte, data []byte) (string, error) {
	if version >= 32 {
		return "", fmt.Errorf("%w: version %d out of range", ErrInvalidAddress, version)
	}
	payload := append(append([]byte{}, data...), checksum(version, data)...)
	return string(alphabet[version]) + Encode(payload), nil
}

// CheckDecode validates the checksum and returns the version and data.
func CheckDecode(s string) (byte, []byte, error) {
	if len(s) < 2 {
		return 0, nil, ErrInvalidAddress
	}
	s = normalize(s)
	version := strings.IndexByte(alphabet, s[0])
	if version < 0 {
		return 0, nil, fmt.Errorf("%w %q", ErrInvalidCharacter, s[0])
	}
	decoded, err := Decode(s[1:])
	if err != nil {
		return 0, nil, err
	}
	if len(decoded) < 4 {
		return 0, nil, ErrInvalidAddress
	}
	data, sum := decoded[:len(decoded)-4], decoded[len(decoded)-4:]
	if !bytes.Equal(sum, checksum(byte(version), data)) {
		return 0, nil, ErrInvalidChecksum
	}
	return byte(version), data, nil
}

// Address renders a standard principal from its version and hash160.
func Address(version byte, hash160 []byte) (string, error) {
	if len(hash160) != 20 {
		return "", fmt.Errorf("%w: hash160 must be 20 bytes, got %d", ErrInvalidAddress, len(hash160))
	}
	enc, err := CheckEncode(version, hash160)
	if err != nil {
		return "", err
	}
	return "S" + enc, nil
}

// ParseAddress decodes a standard principal string into version and hash160.
func ParseAddress(addr string) (byte, [20]byte, error) {
	var hash [20]byte
	if len(addr) < 5 || (addr[0] != 'S' && addr[0] != 's') {
		return 0, hash, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	version, data, err := CheckDecode(addr[1:])
	if err != nil {
		return 0, hash, fmt.Errorf("%q: %w", addr, err)
	}
	if len(data) > 20 {
		return 0, hash, fmt.Errorf("%w: %q decodes to %d bytes", ErrInvalidAddress, addr, len(data))
	}
	copy(hash[20-len(data):], data)
	return version, hash, nil
}

// IsMainnet reports whether the address version belongs to mainnet.
func IsMainnet(version byte) bool {
	return version == VersionMainnetSingleSig || version == VersionMainnetMultiSig
}
