package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoute(t *testing.T) {
	tests := []struct {
		path    string
		kind    string
		ignored bool
		ok      bool
	}{
		{"/new_block", KindBlock, false, true},
		{"/new_burn_block", KindBurnBlock, false, true},
		{"/drop_mempool_tx", KindMempoolDrop, false, true},
		{"/new_mempool_tx", "", true, true},
		{"/new_microblocks", "", true, true},
		{"/attachments/new", "", true, true},
		{"/proposal_response", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			kind, ignored, ok := Route(tt.path)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.ignored, ignored)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestDispatch(t *testing.T) {
	h := newHarness(t, testConfig(), nil)

	res, err := h.ingestor.Dispatch(context.Background(), "", KindBlock, blockJSON(t, 0xa0, 1, 0xa0))
	require.NoError(t, err)
	assert.Equal(t, "extend", res.Action)

	res, err = h.ingestor.Dispatch(context.Background(), "mainnet", KindMempoolDrop, dropJSON("StaleGarbageCollect", hash(0xd0, 9)))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dropped)

	_, err = h.ingestor.Dispatch(context.Background(), "", "microblock", []byte("{}"))
	require.ErrorIs(t, err, ErrUnknownKind)
}
