package value

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/canopy-network/stacksx/pkg/stacks/c32"
)

const maxNameLength = 128

var (
	contractNameRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)
	assetNameRe    = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_!?+<>=/*-]*$`)
)

// Principal is a standard address optionally qualified with a contract name.
type Principal struct {
	Address  string
	Version  byte
	Hash160  [20]byte
	Contract string
}

// IsContract reports whether the principal names a contract.
func (p Principal) IsContract() bool { return p.Contract != "" }

func (p Principal) String() string {
	if p.Contract == "" {
		return p.Address
	}
	return p.Address + "." + p.Contract
}

func (p Principal) MarshalJSON() ([]byte, error) { return json.Marshal(p.String()) }

// ParsePrincipal accepts "<address>" or "<address>.<contract>". The address
// checksum is verified.
func ParsePrincipal(s string) (Principal, error) {
	addr, contract, qualified := strings.Cut(s, ".")
	version, hash, err := c32.ParseAddress(addr)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: principal %q: %v", ErrInvalidIdentifier, s, err)
	}
	p := Principal{Address: addr, Version: version, Hash160: hash}
	if qualified {
		if err := checkName(contract, contractNameRe, "contract"); err != nil {
			return Principal{}, fmt.Errorf("principal %q: %w", s, err)
		}
		p.Contract = contract
	}
	return p, nil
}

// ContractID is a fully qualified contract identifier.
type ContractID struct {
	Principal
}

// ParseContractID accepts only "<address>.<contract>".
func ParseContractID(s string) (ContractID, error) {
	p, err := ParsePrincipal(s)
	if err != nil {
		return ContractID{}, err
	}
	if !p.IsContract() {
		return ContractID{}, fmt.Errorf("%w: %q is not a contract identifier", ErrInvalidIdentifier, s)
	}
	return ContractID{Principal: p}, nil
}

// AssetID names a fungible or non-fungible token defined by a contract.
type AssetID struct {
	Contract ContractID
	Name     string
}

func (a AssetID) String() string { return a.Contract.String() + "::" + a.Name }

func (a AssetID) MarshalJSON() ([]byte, error) { return json.Marshal(a.String()) }

// ParseAssetID accepts both "<address>.<contract>::<asset>", the form the node
// emits, and the dotted "<address>.<contract>.<asset>".
func ParseAssetID(s string) (AssetID, error) {
	contract, name, ok := strings.Cut(s, "::")
	if !ok {
		i := strings.LastIndexByte(s, '.')
		if i < 0 || strings.IndexByte(s, '.') == i {
			return AssetID{}, fmt.Errorf("%w: %q lacks an asset name", ErrInvalidIdentifier, s)
		}
		contract, name = s[:i], s[i+1:]
	}
	cid, err := ParseContractID(contract)
	if err != nil {
		return AssetID{}, err
	}
	if err := checkName(name, assetNameRe, "asset"); err != nil {
		return AssetID{}, fmt.Errorf("asset %q: %w", s, err)
	}
	return AssetID{Contract: cid, Name: name}, nil
}

func checkName(name string, re *regexp.Regexp, kind string) error {
	if name == "" || len(name) > maxNameLength {
		return fmt.Errorf("%w: %s name length %d", ErrInvalidIdentifier, kind, len(name))
	}
	if !re.MatchString(name) {
		return fmt.Errorf("%w: bad %s name %q", ErrInvalidIdentifier, kind, name)
	}
	return nil
}
