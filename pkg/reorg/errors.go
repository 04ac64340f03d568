package reorg

import (
	"errors"

	"github.com/canopy-network/stacksx/pkg/normalize"
)

var (
	// ErrOutOfOrderBlock means an ancestor of the block has not been seen yet.
	// Retrying after the missing block arrives resolves it.
	ErrOutOfOrderBlock = errors.New("out of order block")
	// ErrForkBeyondRetention means the fork point lies below the retained
	// history window.
	ErrForkBeyondRetention = errors.New("fork beyond retained history")
	// ErrNoCommonAncestor means the walk reached genesis without meeting the
	// canonical chain. History is corrupt; retrying will not help.
	ErrNoCommonAncestor = errors.New("no common ancestor")
)

// IsSequencing reports errors the transport should retry later.
func IsSequencing(err error) bool {
	return errors.Is(err, ErrOutOfOrderBlock) || errors.Is(err, ErrForkBeyondRetention)
}

// IsConsistencyFault reports errors that flag suspect source data. They are
// logged and investigated, never retried and never fatal.
func IsConsistencyFault(err error) bool {
	return errors.Is(err, ErrNoCommonAncestor) || errors.Is(err, normalize.ErrRewardSplitOverflow)
}
