package reorg

import (
	"context"
	"fmt"

	"github.com/canopy-network/stacksx/pkg/normalize"
	"github.com/canopy-network/stacksx/pkg/stacks/value"
)

// Action classifies how a block relates to the current tip.
type Action int

const (
	ActionExtend Action = iota + 1
	ActionDuplicate
	ActionFork
)

func (a Action) String() string {
	switch a {
	case ActionExtend:
		return "extend"
	case ActionDuplicate:
		return "duplicate"
	case ActionFork:
		return "fork"
	default:
		return "unknown"
	}
}

// ReorgInfo describes a switch to a different branch.
type ReorgInfo struct {
	CommonAncestor BlockRef `json:"common_ancestor"`
	// Orphaned lists the blocks that left the canonical chain, ascending.
	Orphaned []BlockRef `json:"orphaned"`
	// NewCanonical lists the branch from above the ancestor up to and
	// including the incoming block, ascending.
	NewCanonical []BlockRef `json:"new_canonical"`
}

// OrphanedHashes returns the index block hashes of Orphaned.
func (r *ReorgInfo) OrphanedHashes() []value.Hash {
	out := make([]value.Hash, len(r.Orphaned))
	for i, ref := range r.Orphaned {
		out[i] = ref.IndexBlockHash
	}
	return out
}

// Outcome is the result of reconciling one block.
type Outcome struct {
	Action Action
	Block  BlockRef
	// Tip is the tip to publish once storage has applied the block. For a
	// duplicate it is the input tip.
	Tip   *ChainTip
	Reorg *ReorgInfo
}

// Reconcile decides how b relates to tip. It never mutates tip; the caller
// swaps in Outcome.Tip after the block has been applied.
func Reconcile(ctx context.Context, tip *ChainTip, b *normalize.Block) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}
	ref := RefOf(b)
	out := Outcome{Block: ref, Tip: tip}

	head, ok := tip.Head()
	if !ok {
		out.Action = ActionExtend
		out.Tip = tip.extend(ref)
		return out, nil
	}

	if at, ok := tip.At(ref.Height); ok && at.IndexBlockHash == ref.IndexBlockHash {
		out.Action = ActionDuplicate
		return out, nil
	}
	// A redelivered block that has since been orphaned is still a block we
	// accepted. Only a new block built on top of it switches back.
	if orphan, ok := tip.orphans[ref.IndexBlockHash]; ok && orphan.Height == ref.Height {
		out.Action = ActionDuplicate
		return out, nil
	}

	switch {
	case ref.Height == head.Height+1 && ref.ParentIndexBlockHash == head.IndexBlockHash:
		out.Action = ActionExtend
		out.Tip = tip.extend(ref)
		return out, nil
	case ref.Height < tip.RootHeight():
		return Outcome{}, fmt.Errorf("%w: block %d (%s) is below retained height %d",
			ErrForkBeyondRetention, ref.Height, ref.IndexBlockHash, tip.RootHeight())
	}

	reorg, err := walkFork(ctx, tip, ref)
	if err != nil {
		return Outcome{}, err
	}
	out.Action = ActionFork
	out.Reorg = reorg
	out.Tip = tip.fork(reorg)
	return out, nil
}

// walkFork follows parent links from ref through remembered orphans until it
// meets the canonical chain.
func walkFork(ctx context.Context, tip *ChainTip, ref BlockRef) (*ReorgInfo, error) {
	branch := []BlockRef{ref}
	cur := ref
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if cur.Height == 0 {
			return nil, fmt.Errorf("%w: reached genesis from block %d (%s)",
				ErrNoCommonAncestor, ref.Height, ref.IndexBlockHash)
		}
		parentHeight := cur.Height - 1
		if anc, ok := tip.At(parentHeight); ok && anc.IndexBlockHash == cur.ParentIndexBlockHash {
			return &ReorgInfo{
				CommonAncestor: anc,
				Orphaned:       append([]BlockRef(nil), tip.canonical[parentHeight+1-tip.root:]...),
				NewCanonical:   reverse(branch),
			}, nil
		}
		if parent, ok := tip.orphans[cur.ParentIndexBlockHash]; ok && parent.Height == parentHeight {
			branch = append(branch, parent)
			cur = parent
			continue
		}
		if parentHeight < tip.RootHeight() {
			return nil, fmt.Errorf("%w: block %d (%s) forks below retained height %d",
				ErrForkBeyondRetention, ref.Height, ref.IndexBlockHash, tip.RootHeight())
		}
		return nil, fmt.Errorf("%w: parent %s of block %d is unknown (tip at %d)",
			ErrOutOfOrderBlock, cur.ParentIndexBlockHash, cur.Height, tipHeight(tip))
	}
}

// fork returns the tip with everything above the common ancestor replaced by
// the new branch. The orphaned blocks are remembered so a later switch back
// can be resolved.
func (t *ChainTip) fork(r *ReorgInfo) *ChainTip {
	keep := int(r.CommonAncestor.Height + 1 - t.root)
	canonical := make([]BlockRef, 0, keep+len(r.NewCanonical))
	canonical = append(canonical, t.canonical[:keep]...)
	canonical = append(canonical, r.NewCanonical...)

	orphans := copyOrphans(t.orphans)
	for _, ref := range r.Orphaned {
		orphans[ref.IndexBlockHash] = ref
	}
	for _, ref := range r.NewCanonical {
		delete(orphans, ref.IndexBlockHash)
	}

	next := &ChainTip{
		lineage:   t.lineage,
		version:   t.version + 1,
		root:      t.root,
		canonical: canonical,
		orphans:   orphans,
		hist:      &history{},
	}
	next.hist.end.Store(next.end())
	return next
}

func tipHeight(t *ChainTip) uint64 {
	head, _ := t.Head()
	return head.Height
}

func reverse(in []BlockRef) []BlockRef {
	out := make([]BlockRef, len(in))
	for i, ref := range in {
		out[len(in)-1-i] = ref
	}
	return out
}
