package reorg

import (
	"context"
	"testing"

	"github.com/canopy-network/stacksx/pkg/normalize"
	"github.com/canopy-network/stacksx/pkg/stacks/value"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// id derives a distinct index block hash for (branch, height).
func id(branch byte, height uint64) value.Hash {
	var h value.Hash
	h[0] = branch
	h[1] = byte(height >> 8)
	h[2] = byte(height)
	return h
}

func block(branch byte, height uint64, parent value.Hash) *normalize.Block {
	bh := id(branch, height)
	bh[31] = 0xbb
	return &normalize.Block{
		Hash:                 bh,
		Height:               height,
		IndexBlockHash:       id(branch, height),
		ParentIndexBlockHash: parent,
	}
}

// linear builds a tip holding heights from..to of branch.
func linear(t *testing.T, branch byte, from, to uint64) *ChainTip {
	t.Helper()
	tip := NewChainTip("mainnet")
	for h := from; h <= to; h++ {
		out, err := Reconcile(context.Background(), tip, block(branch, h, id(branch, h-1)))
		require.NoError(t, err)
		require.Equal(t, ActionExtend, out.Action)
		tip = out.Tip
	}
	return tip
}

func TestReconcileExtendsFromEmpty(t *testing.T) {
	tip := NewChainTip("mainnet")
	out, err := Reconcile(context.Background(), tip, block('A', 50, id('A', 49)))
	require.NoError(t, err)
	assert.Equal(t, ActionExtend, out.Action)
	assert.True(t, tip.Empty())

	head, ok := out.Tip.Head()
	require.True(t, ok)
	assert.Equal(t, uint64(50), head.Height)
	assert.Equal(t, uint64(50), out.Tip.RootHeight())
	assert.Equal(t, uint64(1), out.Tip.Version())
}

func TestReconcileDuplicateIsNoop(t *testing.T) {
	tip := linear(t, 'A', 1, 5)
	out, err := Reconcile(context.Background(), tip, block('A', 3, id('A', 2)))
	require.NoError(t, err)
	assert.Equal(t, ActionDuplicate, out.Action)
	assert.Same(t, tip, out.Tip)
	assert.Nil(t, out.Reorg)

	out, err = Reconcile(context.Background(), tip, block('A', 5, id('A', 4)))
	require.NoError(t, err)
	assert.Equal(t, ActionDuplicate, out.Action)
}

func TestReconcileOutOfOrder(t *testing.T) {
	tip := linear(t, 'A', 1, 5)
	_, err := Reconcile(context.Background(), tip, block('A', 7, id('A', 6)))
	require.ErrorIs(t, err, ErrOutOfOrderBlock)
	assert.True(t, IsSequencing(err))
	assert.False(t, IsConsistencyFault(err))
}

func TestReconcileForkToLowerHeight(t *testing.T) {
	tip := linear(t, 'A', 1, 10)

	// block 9 on branch B whose parent is canonical block 8
	out, err := Reconcile(context.Background(), tip, block('B', 9, id('A', 8)))
	require.NoError(t, err)
	require.Equal(t, ActionFork, out.Action)
	require.NotNil(t, out.Reorg)

	assert.Equal(t, id('A', 8), out.Reorg.CommonAncestor.IndexBlockHash)
	assert.Equal(t, []value.Hash{id('A', 9), id('A', 10)}, out.Reorg.OrphanedHashes())
	require.Len(t, out.Reorg.NewCanonical, 1)
	assert.Equal(t, id('B', 9), out.Reorg.NewCanonical[0].IndexBlockHash)

	head, _ := out.Tip.Head()
	assert.Equal(t, id('B', 9), head.IndexBlockHash)
	assert.Equal(t, uint64(9), head.Height)
	assert.Equal(t, 2, out.Tip.OrphanCount())

	// the old tip is untouched
	old, _ := tip.Head()
	assert.Equal(t, id('A', 10), old.IndexBlockHash)
	assert.Equal(t, 0, tip.OrphanCount())
}

func TestReconcileForkAtNextHeight(t *testing.T) {
	tip := linear(t, 'A', 1, 10)
	out, err := Reconcile(context.Background(), tip, block('B', 11, id('A', 9)))
	// parent is not the tip and B/10 was never seen
	require.ErrorIs(t, err, ErrOutOfOrderBlock)
	assert.Equal(t, Outcome{}, out)

	out, err = Reconcile(context.Background(), tip, block('B', 10, id('A', 9)))
	require.NoError(t, err)
	require.Equal(t, ActionFork, out.Action)
	out, err = Reconcile(context.Background(), out.Tip, block('B', 11, id('B', 10)))
	require.NoError(t, err)
	assert.Equal(t, ActionExtend, out.Action)
}

func TestReconcileSwitchBackThroughOrphans(t *testing.T) {
	tip := linear(t, 'A', 1, 10)
	out, err := Reconcile(context.Background(), tip, block('B', 9, id('A', 8)))
	require.NoError(t, err)
	tip = out.Tip

	// A/11 builds on the orphaned A/10, so the walk passes A/10 and A/9
	out, err = Reconcile(context.Background(), tip, block('A', 11, id('A', 10)))
	require.NoError(t, err)
	require.Equal(t, ActionFork, out.Action)
	assert.Equal(t, id('A', 8), out.Reorg.CommonAncestor.IndexBlockHash)
	assert.Equal(t, []value.Hash{id('B', 9)}, out.Reorg.OrphanedHashes())
	require.Len(t, out.Reorg.NewCanonical, 3)
	assert.Equal(t, id('A', 9), out.Reorg.NewCanonical[0].IndexBlockHash)
	assert.Equal(t, id('A', 11), out.Reorg.NewCanonical[2].IndexBlockHash)

	_, stillOrphan := out.Tip.Orphan(id('A', 9))
	assert.False(t, stillOrphan)
	_, bOrphan := out.Tip.Orphan(id('B', 9))
	assert.True(t, bOrphan)
}

func TestReconcileRedeliveredOrphanIsDuplicate(t *testing.T) {
	tip := linear(t, 'A', 1, 10)
	out, err := Reconcile(context.Background(), tip, block('B', 9, id('A', 8)))
	require.NoError(t, err)
	tip = out.Tip

	for _, redelivered := range []*normalize.Block{
		block('A', 9, id('A', 8)),
		block('A', 10, id('A', 9)),
	} {
		out, err = Reconcile(context.Background(), tip, redelivered)
		require.NoError(t, err)
		assert.Equal(t, ActionDuplicate, out.Action, "height %d", redelivered.Height)
		assert.Same(t, tip, out.Tip)
		assert.Nil(t, out.Reorg)
	}

	head, _ := tip.Head()
	assert.Equal(t, id('B', 9), head.IndexBlockHash)
}

func TestReconcileForkBeyondRetention(t *testing.T) {
	tip := linear(t, 'A', 1, 20).Prune(5)
	assert.Equal(t, uint64(16), tip.RootHeight())

	_, err := Reconcile(context.Background(), tip, block('B', 16, id('A', 15)))
	require.ErrorIs(t, err, ErrForkBeyondRetention)
	assert.True(t, IsSequencing(err))

	_, err = Reconcile(context.Background(), tip, block('B', 3, id('A', 2)))
	require.ErrorIs(t, err, ErrForkBeyondRetention)
}

func TestReconcileNoCommonAncestor(t *testing.T) {
	tip := linear(t, 'A', 0, 3)
	out, err := Reconcile(context.Background(), tip, block('B', 0, value.Hash{}))
	require.ErrorIs(t, err, ErrNoCommonAncestor)
	assert.True(t, IsConsistencyFault(err))
	assert.False(t, IsSequencing(err))
	assert.Nil(t, out.Tip)
}

func TestReconcileHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Reconcile(ctx, NewChainTip("mainnet"), block('A', 1, id('A', 0)))
	require.ErrorIs(t, err, context.Canceled)
}

func TestExtendFromStaleTipCopies(t *testing.T) {
	base := linear(t, 'A', 1, 3)
	a, err := Reconcile(context.Background(), base, block('A', 4, id('A', 3)))
	require.NoError(t, err)
	b, err := Reconcile(context.Background(), base, block('B', 4, id('A', 3)))
	require.NoError(t, err)

	ha, _ := a.Tip.Head()
	hb, _ := b.Tip.Head()
	assert.Equal(t, id('A', 4), ha.IndexBlockHash)
	assert.Equal(t, id('B', 4), hb.IndexBlockHash)
}

func TestPrune(t *testing.T) {
	tip := linear(t, 'A', 1, 10)
	out, err := Reconcile(context.Background(), tip, block('B', 4, id('A', 3)))
	require.NoError(t, err)
	tip = out.Tip
	require.Equal(t, 7, tip.OrphanCount())

	pruned := tip.Prune(2)
	assert.Equal(t, uint64(3), pruned.RootHeight())
	assert.Equal(t, 2, pruned.Len())
	assert.Equal(t, tip.Version()+1, pruned.Version())
	// orphans at heights 4..10 are all above the new root
	assert.Equal(t, 7, pruned.OrphanCount())

	assert.Same(t, pruned, pruned.Prune(5))

	view := pruned.View()
	assert.Equal(t, uint64(4), view.Height)
	assert.Equal(t, id('B', 4), *view.IndexBlockHash)
}

func TestViewOfEmptyTip(t *testing.T) {
	v := NewChainTip("testnet").View()
	assert.True(t, v.Empty)
	assert.Nil(t, v.IndexBlockHash)
	assert.Equal(t, "testnet", v.Lineage)
}

// A fork to any canonical height below the head always lands on the
// incoming block with the displaced suffix reported as orphaned.
func TestForkProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("fork replaces the suffix above the ancestor", prop.ForAll(
		func(length, ancestor uint64) bool {
			ancestor %= length
			tip := NewChainTip("p")
			for h := uint64(1); h <= length; h++ {
				out, err := Reconcile(context.Background(), tip, block('A', h, id('A', h-1)))
				if err != nil {
					return false
				}
				tip = out.Tip
			}
			if ancestor == 0 {
				ancestor = 1
			}
			incoming := block('B', ancestor+1, id('A', ancestor))
			out, err := Reconcile(context.Background(), tip, incoming)
			if err != nil || out.Action != ActionFork {
				return false
			}
			head, _ := out.Tip.Head()
			return head.IndexBlockHash == incoming.IndexBlockHash &&
				uint64(len(out.Reorg.Orphaned)) == length-ancestor &&
				out.Reorg.CommonAncestor.Height == ancestor
		},
		gen.UInt64Range(2, 40),
		gen.UInt64Range(0, 40),
	))

	properties.TestingRun(t)
}

func TestRestoreKeepsHighestLinkedRun(t *testing.T) {
	refs := []BlockRef{
		{Height: 3, IndexBlockHash: id('A', 3), ParentIndexBlockHash: id('A', 2)},
		// gap: height 4 missing
		{Height: 5, IndexBlockHash: id('A', 5), ParentIndexBlockHash: id('A', 4)},
		{Height: 6, IndexBlockHash: id('A', 6), ParentIndexBlockHash: id('A', 5)},
	}
	tip := Restore("mainnet", refs)
	assert.Equal(t, uint64(5), tip.RootHeight())
	assert.Equal(t, 2, tip.Len())

	out, err := Reconcile(context.Background(), tip, block('A', 7, id('A', 6)))
	require.NoError(t, err)
	assert.Equal(t, ActionExtend, out.Action)

	assert.True(t, Restore("mainnet", nil).Empty())
}
