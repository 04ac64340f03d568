// Package reorg tracks the canonical chain of one lineage and classifies each
// incoming block as an extension, a duplicate or a fork.
package reorg

import (
	"sync/atomic"

	"github.com/canopy-network/stacksx/pkg/normalize"
	"github.com/canopy-network/stacksx/pkg/stacks/value"
)

// BlockRef is the linkage part of a block.
type BlockRef struct {
	Height               uint64     `json:"height"`
	BlockHash            value.Hash `json:"block_hash"`
	IndexBlockHash       value.Hash `json:"index_block_hash"`
	ParentIndexBlockHash value.Hash `json:"parent_index_block_hash"`
}

// RefOf extracts the linkage of an assembled block.
func RefOf(b *normalize.Block) BlockRef {
	return BlockRef{
		Height:               b.Height,
		BlockHash:            b.Hash,
		IndexBlockHash:       b.IndexBlockHash,
		ParentIndexBlockHash: b.ParentIndexBlockHash,
	}
}

// history is the backing array shared by consecutive tips of one lineage.
// end is the exclusive height reached by the newest tip appended to it; a
// tip may append in place only while it is that newest tip.
type history struct {
	end atomic.Uint64
}

// ChainTip is an immutable snapshot of a lineage's accepted chain. Every
// change produces a new value with a higher Version, so a reader holding a
// *ChainTip always sees a consistent chain.
type ChainTip struct {
	lineage   string
	version   uint64
	root      uint64
	canonical []BlockRef // canonical[i] is at height root+i
	orphans   map[value.Hash]BlockRef
	hist      *history
}

// NewChainTip returns the empty tip for a lineage.
func NewChainTip(lineage string) *ChainTip {
	return &ChainTip{lineage: lineage, orphans: map[value.Hash]BlockRef{}, hist: &history{}}
}

// Restore rebuilds a tip from stored canonical blocks in ascending height
// order. Only the highest run of linked blocks is kept, so gaps in storage
// shorten the history instead of corrupting it.
func Restore(lineage string, refs []BlockRef) *ChainTip {
	tip := NewChainTip(lineage)
	if len(refs) == 0 {
		return tip
	}
	start := len(refs) - 1
	for start > 0 {
		prev, cur := refs[start-1], refs[start]
		if prev.Height+1 != cur.Height || prev.IndexBlockHash != cur.ParentIndexBlockHash {
			break
		}
		start--
	}
	tip.version = 1
	tip.root = refs[start].Height
	tip.canonical = append([]BlockRef(nil), refs[start:]...)
	tip.hist.end.Store(tip.end())
	return tip
}

func (t *ChainTip) Lineage() string { return t.lineage }
func (t *ChainTip) Version() uint64 { return t.version }
func (t *ChainTip) Empty() bool     { return len(t.canonical) == 0 }

// RootHeight is the lowest height still retained.
func (t *ChainTip) RootHeight() uint64 { return t.root }

// Len is the number of retained canonical blocks.
func (t *ChainTip) Len() int { return len(t.canonical) }

// Head returns the highest canonical block.
func (t *ChainTip) Head() (BlockRef, bool) {
	if t.Empty() {
		return BlockRef{}, false
	}
	return t.canonical[len(t.canonical)-1], true
}

// At returns the canonical block at height, if retained.
func (t *ChainTip) At(height uint64) (BlockRef, bool) {
	if t.Empty() || height < t.root || height-t.root >= uint64(len(t.canonical)) {
		return BlockRef{}, false
	}
	return t.canonical[height-t.root], true
}

// Orphan looks up a block that was once accepted but is no longer canonical.
func (t *ChainTip) Orphan(indexBlockHash value.Hash) (BlockRef, bool) {
	ref, ok := t.orphans[indexBlockHash]
	return ref, ok
}

// OrphanCount is the number of remembered non-canonical blocks.
func (t *ChainTip) OrphanCount() int { return len(t.orphans) }

func (t *ChainTip) end() uint64 { return t.root + uint64(len(t.canonical)) }

// extend returns a tip with ref appended. The backing array is shared when t
// is the newest tip of its history and copied otherwise.
func (t *ChainTip) extend(ref BlockRef) *ChainTip {
	next := &ChainTip{
		lineage: t.lineage,
		version: t.version + 1,
		root:    t.root,
		orphans: t.orphans,
		hist:    t.hist,
	}
	if t.Empty() {
		next.root = ref.Height
		next.canonical = []BlockRef{ref}
		next.hist = &history{}
	} else if t.hist.end.Load() == t.end() {
		next.canonical = append(t.canonical, ref)
	} else {
		next.canonical = append(append(make([]BlockRef, 0, len(t.canonical)+1), t.canonical...), ref)
		next.hist = &history{}
	}
	next.hist.end.Store(next.end())

	if _, ok := t.orphans[ref.IndexBlockHash]; ok {
		next.orphans = copyOrphans(t.orphans)
		delete(next.orphans, ref.IndexBlockHash)
	}
	return next
}

// Prune drops canonical blocks so at most keep remain, and forgets orphans
// below the new root. It returns t itself when nothing would change.
func (t *ChainTip) Prune(keep int) *ChainTip {
	if keep < 1 {
		keep = 1
	}
	drop := len(t.canonical) - keep
	if drop <= 0 {
		return t
	}
	next := &ChainTip{
		lineage:   t.lineage,
		version:   t.version + 1,
		root:      t.root + uint64(drop),
		canonical: append(make([]BlockRef, 0, keep), t.canonical[drop:]...),
		orphans:   make(map[value.Hash]BlockRef, len(t.orphans)),
		hist:      &history{},
	}
	next.hist.end.Store(next.end())
	for h, ref := range t.orphans {
		if ref.Height >= next.root {
			next.orphans[h] = ref
		}
	}
	return next
}

func copyOrphans(in map[value.Hash]BlockRef) map[value.Hash]BlockRef {
	out := make(map[value.Hash]BlockRef, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

// View is the read-only summary exposed to storage and HTTP callers.
type View struct {
	Lineage        string      `json:"lineage"`
	Version        uint64      `json:"version"`
	Empty          bool        `json:"empty"`
	Height         uint64      `json:"height"`
	IndexBlockHash *value.Hash `json:"index_block_hash,omitempty"`
	BlockHash      *value.Hash `json:"block_hash,omitempty"`
	RootHeight     uint64      `json:"root_height"`
	Retained       int         `json:"retained"`
	Orphans        int         `json:"orphans"`
}

func (t *ChainTip) View() View {
	v := View{
		Lineage:    t.lineage,
		Version:    t.version,
		Empty:      t.Empty(),
		RootHeight: t.root,
		Retained:   len(t.canonical),
		Orphans:    len(t.orphans),
	}
	if head, ok := t.Head(); ok {
		v.Height = head.Height
		v.IndexBlockHash = &head.IndexBlockHash
		v.BlockHash = &head.BlockHash
	}
	return v
}
