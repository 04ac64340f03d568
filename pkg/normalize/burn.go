package normalize

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/canopy-network/stacksx/pkg/stacks/node"
	"github.com/canopy-network/stacksx/pkg/stacks/value"
)

// RewardRecipient is one PoX reward split of a burn block.
type RewardRecipient struct {
	Address string
	Amount  *big.Int
	// Network and AddressType describe the bitcoin address when it parses;
	// both are empty otherwise. They are informational only.
	Network     string
	AddressType string
}

// BurnBlock is a normalized burn-chain anchor message.
type BurnBlock struct {
	Hash       value.Hash
	Height     uint64
	BurnAmount *big.Int
	Recipients []RewardRecipient
	SplitTotal *big.Int
	// Overflow is set when SplitTotal exceeds BurnAmount.
	Overflow bool
}

var bitcoinNets = []*chaincfg.Params{
	&chaincfg.MainNetParams,
	&chaincfg.TestNet3Params,
	&chaincfg.RegressionNetParams,
}

// NormalizeBurnBlock validates a burn block message. When the reward splits
// add up to more than the burn amount the record is still returned, together
// with an error wrapping ErrRewardSplitOverflow; any other error comes with a
// nil record.
func NormalizeBurnBlock(raw *node.BurnBlock) (*BurnBlock, error) {
	fail := func(field string, err error) (*BurnBlock, error) {
		return nil, fieldErr("burn_block", "", NoEventIndex, field, fmt.Errorf("%w: %w", ErrMalformedBurnBlock, err))
	}

	hash, err := value.ParseHash32(raw.BurnBlockHash)
	if err != nil {
		return fail("burn_block_hash", err)
	}
	if raw.BurnBlockHeight == nil {
		return fail("burn_block_height", errors.New("missing"))
	}
	burnAmount, err := value.ParseAmount(raw.BurnAmount.String())
	if err != nil {
		return fail("burn_amount", err)
	}

	out := &BurnBlock{
		Hash:       hash,
		Height:     *raw.BurnBlockHeight,
		BurnAmount: burnAmount,
		SplitTotal: new(big.Int),
	}
	for i, r := range raw.RewardRecipients {
		amt, err := value.ParseAmount(r.Amt.String())
		if err != nil {
			return fail(fmt.Sprintf("reward_recipients[%d].amt", i), err)
		}
		if r.Recipient == "" {
			return fail(fmt.Sprintf("reward_recipients[%d].recipient", i), errors.New("missing"))
		}
		network, kind := classifyBitcoinAddress(r.Recipient)
		out.Recipients = append(out.Recipients, RewardRecipient{
			Address:     r.Recipient,
			Amount:      amt,
			Network:     network,
			AddressType: kind,
		})
		out.SplitTotal.Add(out.SplitTotal, amt)
	}

	if out.SplitTotal.Cmp(out.BurnAmount) > 0 {
		out.Overflow = true
		return out, fmt.Errorf("%w: burn block %s at height %d: splits %s > burn amount %s",
			ErrRewardSplitOverflow, hash, out.Height, out.SplitTotal, out.BurnAmount)
	}
	return out, nil
}

func classifyBitcoinAddress(addr string) (network, kind string) {
	for _, params := range bitcoinNets {
		decoded, err := btcutil.DecodeAddress(addr, params)
		if err != nil || !decoded.IsForNet(params) {
			continue
		}
		switch decoded.(type) {
		case *btcutil.AddressPubKeyHash:
			kind = "p2pkh"
		case *btcutil.AddressScriptHash:
			kind = "p2sh"
		case *btcutil.AddressWitnessPubKeyHash:
			kind = "p2wpkh"
		case *btcutil.AddressWitnessScriptHash:
			kind = "p2wsh"
		case *btcutil.AddressTaproot:
			kind = "p2tr"
		default:
			kind = "other"
		}
		return params.Name, kind
	}
	return "", ""
}
