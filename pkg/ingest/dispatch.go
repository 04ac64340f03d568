package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/canopy-network/stacksx/pkg/stacks/node"
)

// ErrUnknownKind rejects a message whose kind has no handler.
var ErrUnknownKind = errors.New("unknown message kind")

// Route maps a node observer path to a message kind. Paths the node posts
// but the pipeline does not consume report ignored.
func Route(path string) (kind string, ignored bool, ok bool) {
	switch path {
	case node.PathNewBlock:
		return KindBlock, false, true
	case node.PathNewBurnBlock:
		return KindBurnBlock, false, true
	case node.PathDropMempoolTx:
		return KindMempoolDrop, false, true
	case node.PathNewMempoolTx, node.PathNewMicroblocks, node.PathAttachments:
		return "", true, true
	}
	return "", false, false
}

// Dispatch ingests data as a message of kind for lineage.
func (i *Ingestor) Dispatch(ctx context.Context, lineage, kind string, data []byte) (Result, error) {
	switch kind {
	case KindBlock:
		return i.IngestBlockTo(ctx, lineage, data)
	case KindBurnBlock:
		return i.IngestBurnBlockTo(ctx, lineage, data)
	case KindMempoolDrop:
		return i.IngestMempoolDropTo(ctx, lineage, data)
	}
	return Result{Kind: kind}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}
