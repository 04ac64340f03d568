// Package codec decodes consensus-serialized Stacks transactions.
package codec

import (
	"crypto/sha512"

	"github.com/canopy-network/stacksx/pkg/stacks/c32"
	"github.com/canopy-network/stacksx/pkg/stacks/clarity"
	"github.com/canopy-network/stacksx/pkg/stacks/value"
)

type TransactionVersion byte

const (
	VersionMainnet TransactionVersion = 0x00
	VersionTestnet TransactionVersion = 0x80
)

type AuthType byte

const (
	AuthStandard  AuthType = 0x04
	AuthSponsored AuthType = 0x05
)

type HashMode byte

const (
	HashModeP2PKH              HashMode = 0x00
	HashModeP2SH               HashMode = 0x01
	HashModeP2WPKH             HashMode = 0x02
	HashModeP2WSH              HashMode = 0x03
	HashModeP2SHNonSequential  HashMode = 0x05
	HashModeP2WSHNonSequential HashMode = 0x07
)

// SingleSig reports whether the mode carries one signature rather than a list
// of auth fields.
func (h HashMode) SingleSig() bool {
	return h == HashModeP2PKH || h == HashModeP2WPKH
}

func (h HashMode) valid() bool {
	switch h {
	case HashModeP2PKH, HashModeP2SH, HashModeP2WPKH, HashModeP2WSH, HashModeP2SHNonSequential, HashModeP2WSHNonSequential:
		return true
	}
	return false
}

type AnchorMode byte

const (
	AnchorOnChainOnly  AnchorMode = 0x01
	AnchorOffChainOnly AnchorMode = 0x02
	AnchorAny          AnchorMode = 0x03
)

type PostConditionMode byte

const (
	PostConditionModeAllow PostConditionMode = 0x01
	PostConditionModeDeny  PostConditionMode = 0x02
)

// AuthField is one entry of a multi-sig spending condition: a compressed or
// uncompressed public key, or a recoverable signature.
type AuthField struct {
	Type byte
	Data []byte
}

// SpendingCondition identifies who pays for and authorizes a transaction.
type SpendingCondition struct {
	HashMode           HashMode
	Signer             [20]byte
	Nonce              uint64
	Fee                uint64
	KeyEncoding        byte
	Signature          []byte
	Fields             []AuthField
	SignaturesRequired uint16
}

// Address renders the signer as a c32 address for the given network.
func (s SpendingCondition) Address(mainnet bool) string {
	var version byte
	switch {
	case mainnet && s.HashMode.SingleSig():
		version = c32.VersionMainnetSingleSig
	case mainnet:
		version = c32.VersionMainnetMultiSig
	case s.HashMode.SingleSig():
		version = c32.VersionTestnetSingleSig
	default:
		version = c32.VersionTestnetMultiSig
	}
	// version is always < 32 and the signer is 20 bytes, so this cannot fail
	addr, _ := c32.Address(version, s.Signer[:])
	return addr
}

type Authorization struct {
	Type    AuthType
	Origin  SpendingCondition
	Sponsor *SpendingCondition
}

type PostConditionType byte

const (
	PostConditionSTX PostConditionType = 0x00
	PostConditionFT  PostConditionType = 0x01
	PostConditionNFT PostConditionType = 0x02
)

type PostConditionPrincipalType byte

const (
	PrincipalOrigin   PostConditionPrincipalType = 0x01
	PrincipalStandard PostConditionPrincipalType = 0x02
	PrincipalContract PostConditionPrincipalType = 0x03
)

type PostCondition struct {
	Type          PostConditionType
	PrincipalType PostConditionPrincipalType
	Principal     string // empty for origin principals
	Asset         string
	Code          byte
	Amount        uint64
	AssetValue    *clarity.Value
}

// PayloadKind is the closed set of payload type prefixes this decoder knows.
// Any other prefix still decodes, with the body left in Payload.Raw, so that
// callers can reject it by kind.
type PayloadKind byte

const (
	PayloadTokenTransfer          PayloadKind = 0x00
	PayloadSmartContract          PayloadKind = 0x01
	PayloadContractCall           PayloadKind = 0x02
	PayloadPoisonMicroblock       PayloadKind = 0x03
	PayloadCoinbase               PayloadKind = 0x04
	PayloadCoinbaseToAltRecipient PayloadKind = 0x05
	PayloadVersionedSmartContract PayloadKind = 0x06
	PayloadTenureChange           PayloadKind = 0x07
	PayloadNakamotoCoinbase       PayloadKind = 0x08
)

var payloadKindNames = map[PayloadKind]string{
	PayloadTokenTransfer:          "token_transfer",
	PayloadSmartContract:          "smart_contract",
	PayloadContractCall:           "contract_call",
	PayloadPoisonMicroblock:       "poison_microblock",
	PayloadCoinbase:               "coinbase",
	PayloadCoinbaseToAltRecipient: "coinbase_to_alt_recipient",
	PayloadVersionedSmartContract: "versioned_smart_contract",
	PayloadTenureChange:           "tenure_change",
	PayloadNakamotoCoinbase:       "nakamoto_coinbase",
}

func (k PayloadKind) String() string {
	if n, ok := payloadKindNames[k]; ok {
		return n
	}
	return "unknown"
}

type TokenTransfer struct {
	Recipient string
	Amount    uint64
	Memo      [34]byte
}

type SmartContract struct {
	Name           string
	Code           string
	ClarityVersion byte // zero for unversioned deployments
}

type ContractCall struct {
	Contract string
	Function string
	Args     []clarity.Value
}

type Coinbase struct {
	Payload      [32]byte
	AltRecipient string
	VRFProof     []byte
}

type MicroblockHeader struct {
	Version      byte
	Sequence     uint16
	PrevBlock    [32]byte
	TxMerkleRoot [32]byte
	Signature    [65]byte
}

type PoisonMicroblock struct {
	Header1 MicroblockHeader
	Header2 MicroblockHeader
}

type TenureChange struct {
	TenureConsensusHash     [20]byte
	PrevTenureConsensusHash [20]byte
	BurnViewConsensusHash   [20]byte
	PreviousTenureEnd       [32]byte
	PreviousTenureBlocks    uint32
	Cause                   byte
	PubkeyHash              [20]byte
}

// Payload holds exactly one populated variant, selected by Kind.
type Payload struct {
	Kind             PayloadKind
	TokenTransfer    *TokenTransfer
	SmartContract    *SmartContract
	ContractCall     *ContractCall
	Coinbase         *Coinbase
	PoisonMicroblock *PoisonMicroblock
	TenureChange     *TenureChange
	Raw              []byte // body of an unrecognised kind
}

type Transaction struct {
	TxID              value.TxID
	Version           TransactionVersion
	ChainID           uint32
	Auth              Authorization
	AnchorMode        AnchorMode
	PostConditionMode PostConditionMode
	PostConditions    []PostCondition
	Payload           Payload
}

func (tx *Transaction) Mainnet() bool { return tx.Version == VersionMainnet }

// Sender is the origin address.
func (tx *Transaction) Sender() string { return tx.Auth.Origin.Address(tx.Mainnet()) }

// SponsorAddress returns the sponsor address, or "" for standard transactions.
func (tx *Transaction) SponsorAddress() string {
	if tx.Auth.Sponsor == nil {
		return ""
	}
	return tx.Auth.Sponsor.Address(tx.Mainnet())
}

func (tx *Transaction) Nonce() uint64 { return tx.Auth.Origin.Nonce }

// Fee is paid by the sponsor when there is one.
func (tx *Transaction) Fee() uint64 {
	if tx.Auth.Sponsor != nil {
		return tx.Auth.Sponsor.Fee
	}
	return tx.Auth.Origin.Fee
}

// TxID is the SHA-512/256 digest of the serialized transaction.
func TxID(raw []byte) value.TxID {
	return value.TxID(sha512.Sum512_256(raw))
}
