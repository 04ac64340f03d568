package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/canopy-network/stacksx/pkg/stacks/c32"
	"github.com/canopy-network/stacksx/pkg/stacks/clarity"
)

var (
	ErrTruncated     = errors.New("codec: truncated transaction")
	ErrInvalidField  = errors.New("codec: invalid field")
	ErrTrailingBytes = errors.New("codec: trailing bytes")
)

const (
	signatureLength = 65
	vrfProofLength  = 80
)

// Decoder is the stateless raw-transaction decoder used by the ingestion
// pipeline.
type Decoder struct{}

func (Decoder) DecodeTransaction(raw []byte) (*Transaction, error) {
	return Decode(raw)
}

// Decode parses a serialized transaction. The txid is computed over the
// whole input.
func Decode(raw []byte) (*Transaction, error) {
	r := &reader{buf: raw}
	tx := &Transaction{TxID: TxID(raw)}

	version, err := r.u8("version")
	if err != nil {
		return nil, err
	}
	tx.Version = TransactionVersion(version)
	if tx.Version != VersionMainnet && tx.Version != VersionTestnet {
		return nil, fmt.Errorf("%w: version 0x%02x", ErrInvalidField, version)
	}
	if tx.ChainID, err = r.u32("chain_id"); err != nil {
		return nil, err
	}
	if err := r.auth(&tx.Auth); err != nil {
		return nil, err
	}

	anchor, err := r.u8("anchor_mode")
	if err != nil {
		return nil, err
	}
	tx.AnchorMode = AnchorMode(anchor)
	if tx.AnchorMode < AnchorOnChainOnly || tx.AnchorMode > AnchorAny {
		return nil, fmt.Errorf("%w: anchor mode 0x%02x", ErrInvalidField, anchor)
	}

	pcMode, err := r.u8("post_condition_mode")
	if err != nil {
		return nil, err
	}
	tx.PostConditionMode = PostConditionMode(pcMode)
	if tx.PostConditionMode != PostConditionModeAllow && tx.PostConditionMode != PostConditionModeDeny {
		return nil, fmt.Errorf("%w: post-condition mode 0x%02x", ErrInvalidField, pcMode)
	}

	count, err := r.u32("post_conditions")
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		pc, err := r.postCondition()
		if err != nil {
			return nil, fmt.Errorf("post condition %d: %w", i, err)
		}
		tx.PostConditions = append(tx.PostConditions, pc)
	}

	if err := r.payload(&tx.Payload); err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	if r.off != len(r.buf) {
		return nil, fmt.Errorf("%w: %d unread", ErrTrailingBytes, len(r.buf)-r.off)
	}
	return tx, nil
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) take(n int, field string) ([]byte, error) {
	if n < 0 || len(r.buf)-r.off < n {
		return nil, fmt.Errorf("%w: %s needs %d bytes at offset %d", ErrTruncated, field, n, r.off)
	}
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *reader) u8(field string) (byte, error) {
	b, err := r.take(1, field)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u16(field string) (uint16, error) {
	b, err := r.take(2, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) u32(field string) (uint32, error) {
	b, err := r.take(4, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) u64(field string) (uint64, error) {
	b, err := r.take(8, field)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *reader) fixed(dst []byte, field string) error {
	b, err := r.take(len(dst), field)
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}

// name reads a one-byte length-prefixed string.
func (r *reader) name(field string) (string, error) {
	n, err := r.u8(field)
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n), field)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) address(field string) (string, error) {
	version, err := r.u8(field)
	if err != nil {
		return "", err
	}
	hash, err := r.take(20, field)
	if err != nil {
		return "", err
	}
	addr, err := c32.Address(version, hash)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidField, field, err)
	}
	return addr, nil
}

func (r *reader) clarityValue(field string) (clarity.Value, error) {
	v, n, err := clarity.DecodePrefix(r.buf[r.off:])
	if err != nil {
		return clarity.Value{}, fmt.Errorf("%w: %s: %v", ErrInvalidField, field, err)
	}
	r.off += n
	return v, nil
}

func (r *reader) principalValue(field string) (string, error) {
	v, err := r.clarityValue(field)
	if err != nil {
		return "", err
	}
	if v.Kind != clarity.KindStandardPrincipal && v.Kind != clarity.KindContractPrincipal {
		return "", fmt.Errorf("%w: %s is a %s, not a principal", ErrInvalidField, field, v.Kind)
	}
	return v.Principal, nil
}

func (r *reader) auth(a *Authorization) error {
	t, err := r.u8("auth_type")
	if err != nil {
		return err
	}
	a.Type = AuthType(t)
	switch a.Type {
	case AuthStandard:
		return r.spendingCondition(&a.Origin)
	case AuthSponsored:
		if err := r.spendingCondition(&a.Origin); err != nil {
			return err
		}
		a.Sponsor = &SpendingCondition{}
		if err := r.spendingCondition(a.Sponsor); err != nil {
			return fmt.Errorf("sponsor: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%w: auth type 0x%02x", ErrInvalidField, t)
}

func (r *reader) spendingCondition(sc *SpendingCondition) error {
	mode, err := r.u8("hash_mode")
	if err != nil {
		return err
	}
	sc.HashMode = HashMode(mode)
	if !sc.HashMode.valid() {
		return fmt.Errorf("%w: hash mode 0x%02x", ErrInvalidField, mode)
	}
	if err := r.fixed(sc.Signer[:], "signer"); err != nil {
		return err
	}
	if sc.Nonce, err = r.u64("nonce"); err != nil {
		return err
	}
	if sc.Fee, err = r.u64("fee"); err != nil {
		return err
	}

	if sc.HashMode.SingleSig() {
		if sc.KeyEncoding, err = r.u8("key_encoding"); err != nil {
			return err
		}
		sig, err := r.take(signatureLength, "signature")
		if err != nil {
			return err
		}
		sc.Signature = append([]byte(nil), sig...)
		return nil
	}

	count, err := r.u32("auth_fields")
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		ft, err := r.u8("auth_field_type")
		if err != nil {
			return err
		}
		var size int
		switch ft {
		case 0x00, 0x01:
			size = 33
		case 0x02, 0x03:
			size = signatureLength
		default:
			return fmt.Errorf("%w: auth field type 0x%02x", ErrInvalidField, ft)
		}
		data, err := r.take(size, "auth_field")
		if err != nil {
			return err
		}
		sc.Fields = append(sc.Fields, AuthField{Type: ft, Data: append([]byte(nil), data...)})
	}
	sc.SignaturesRequired, err = r.u16("signatures_required")
	return err
}

func (r *reader) assetInfo() (string, error) {
	addr, err := r.address("asset_address")
	if err != nil {
		return "", err
	}
	contract, err := r.name("asset_contract")
	if err != nil {
		return "", err
	}
	asset, err := r.name("asset_name")
	if err != nil {
		return "", err
	}
	return addr + "." + contract + "::" + asset, nil
}

func (r *reader) postCondition() (PostCondition, error) {
	var pc PostCondition
	t, err := r.u8("post_condition_type")
	if err != nil {
		return pc, err
	}
	pc.Type = PostConditionType(t)

	pt, err := r.u8("principal_type")
	if err != nil {
		return pc, err
	}
	pc.PrincipalType = PostConditionPrincipalType(pt)
	switch pc.PrincipalType {
	case PrincipalOrigin:
	case PrincipalStandard:
		if pc.Principal, err = r.address("principal"); err != nil {
			return pc, err
		}
	case PrincipalContract:
		addr, err := r.address("principal")
		if err != nil {
			return pc, err
		}
		contract, err := r.name("principal_contract")
		if err != nil {
			return pc, err
		}
		pc.Principal = addr + "." + contract
	default:
		return pc, fmt.Errorf("%w: principal type 0x%02x", ErrInvalidField, pt)
	}

	switch pc.Type {
	case PostConditionSTX:
	case PostConditionFT:
		if pc.Asset, err = r.assetInfo(); err != nil {
			return pc, err
		}
	case PostConditionNFT:
		if pc.Asset, err = r.assetInfo(); err != nil {
			return pc, err
		}
		v, err := r.clarityValue("asset_value")
		if err != nil {
			return pc, err
		}
		pc.AssetValue = &v
	default:
		return pc, fmt.Errorf("%w: post condition type 0x%02x", ErrInvalidField, t)
	}

	if pc.Code, err = r.u8("condition_code"); err != nil {
		return pc, err
	}
	if pc.Type != PostConditionNFT {
		if pc.Amount, err = r.u64("amount"); err != nil {
			return pc, err
		}
	}
	return pc, nil
}

func (r *reader) microblockHeader(h *MicroblockHeader) error {
	var err error
	if h.Version, err = r.u8("mb_version"); err != nil {
		return err
	}
	if h.Sequence, err = r.u16("mb_sequence"); err != nil {
		return err
	}
	if err := r.fixed(h.PrevBlock[:], "mb_prev_block"); err != nil {
		return err
	}
	if err := r.fixed(h.TxMerkleRoot[:], "mb_tx_merkle_root"); err != nil {
		return err
	}
	return r.fixed(h.Signature[:], "mb_signature")
}

func (r *reader) payload(p *Payload) error {
	kind, err := r.u8("payload_type")
	if err != nil {
		return err
	}
	p.Kind = PayloadKind(kind)

	switch p.Kind {
	case PayloadTokenTransfer:
		tt := &TokenTransfer{}
		if tt.Recipient, err = r.principalValue("recipient"); err != nil {
			return err
		}
		if tt.Amount, err = r.u64("amount"); err != nil {
			return err
		}
		if err := r.fixed(tt.Memo[:], "memo"); err != nil {
			return err
		}
		p.TokenTransfer = tt

	case PayloadSmartContract, PayloadVersionedSmartContract:
		sc := &SmartContract{}
		if p.Kind == PayloadVersionedSmartContract {
			if sc.ClarityVersion, err = r.u8("clarity_version"); err != nil {
				return err
			}
		}
		if sc.Name, err = r.name("contract_name"); err != nil {
			return err
		}
		n, err := r.u32("code_body")
		if err != nil {
			return err
		}
		code, err := r.take(int(n), "code_body")
		if err != nil {
			return err
		}
		sc.Code = string(code)
		p.SmartContract = sc

	case PayloadContractCall:
		cc := &ContractCall{}
		addr, err := r.address("contract_address")
		if err != nil {
			return err
		}
		contract, err := r.name("contract_name")
		if err != nil {
			return err
		}
		cc.Contract = addr + "." + contract
		if cc.Function, err = r.name("function_name"); err != nil {
			return err
		}
		n, err := r.u32("function_args")
		if err != nil {
			return err
		}
		for i := uint32(0); i < n; i++ {
			arg, err := r.clarityValue(fmt.Sprintf("arg %d", i))
			if err != nil {
				return err
			}
			cc.Args = append(cc.Args, arg)
		}
		p.ContractCall = cc

	case PayloadPoisonMicroblock:
		pm := &PoisonMicroblock{}
		if err := r.microblockHeader(&pm.Header1); err != nil {
			return err
		}
		if err := r.microblockHeader(&pm.Header2); err != nil {
			return err
		}
		p.PoisonMicroblock = pm

	case PayloadCoinbase, PayloadCoinbaseToAltRecipient:
		cb := &Coinbase{}
		if err := r.fixed(cb.Payload[:], "coinbase_payload"); err != nil {
			return err
		}
		if p.Kind == PayloadCoinbaseToAltRecipient {
			if cb.AltRecipient, err = r.principalValue("alt_recipient"); err != nil {
				return err
			}
		}
		p.Coinbase = cb

	case PayloadNakamotoCoinbase:
		cb := &Coinbase{}
		if err := r.fixed(cb.Payload[:], "coinbase_payload"); err != nil {
			return err
		}
		opt, err := r.clarityValue("alt_recipient")
		if err != nil {
			return err
		}
		switch opt.Kind {
		case clarity.KindOptionalNone:
		case clarity.KindOptionalSome:
			if k := opt.Inner.Kind; k != clarity.KindStandardPrincipal && k != clarity.KindContractPrincipal {
				return fmt.Errorf("%w: alt_recipient is a %s", ErrInvalidField, k)
			}
			cb.AltRecipient = opt.Inner.Principal
		default:
			return fmt.Errorf("%w: alt_recipient is not optional", ErrInvalidField)
		}
		proof, err := r.take(vrfProofLength, "vrf_proof")
		if err != nil {
			return err
		}
		cb.VRFProof = append([]byte(nil), proof...)
		p.Coinbase = cb

	case PayloadTenureChange:
		tc := &TenureChange{}
		if err := r.fixed(tc.TenureConsensusHash[:], "tenure_consensus_hash"); err != nil {
			return err
		}
		if err := r.fixed(tc.PrevTenureConsensusHash[:], "prev_tenure_consensus_hash"); err != nil {
			return err
		}
		if err := r.fixed(tc.BurnViewConsensusHash[:], "burn_view_consensus_hash"); err != nil {
			return err
		}
		if err := r.fixed(tc.PreviousTenureEnd[:], "previous_tenure_end"); err != nil {
			return err
		}
		if tc.PreviousTenureBlocks, err = r.u32("previous_tenure_blocks"); err != nil {
			return err
		}
		if tc.Cause, err = r.u8("cause"); err != nil {
			return err
		}
		if err := r.fixed(tc.PubkeyHash[:], "pubkey_hash"); err != nil {
			return err
		}
		p.TenureChange = tc

	default:
		p.Raw = append([]byte(nil), r.buf[r.off:]...)
		r.off = len(r.buf)
	}
	return nil
}
