package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/stacksx/app/observer/types"
	"github.com/canopy-network/stacksx/pkg/ingest"
	"github.com/canopy-network/stacksx/pkg/metrics"
	"github.com/canopy-network/stacksx/pkg/normalize"
	"github.com/canopy-network/stacksx/pkg/notify"
	"github.com/canopy-network/stacksx/pkg/reorg"
	"github.com/canopy-network/stacksx/pkg/retry"
	"github.com/canopy-network/stacksx/pkg/stacks/codec"
	"github.com/canopy-network/stacksx/pkg/stacks/value"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type memStore struct {
	mu     sync.Mutex
	blocks int
}

func (s *memStore) ApplyBlock(context.Context, *normalize.Block, *reorg.ReorgInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks++
	return nil
}

func (s *memStore) MarkDropped(context.Context, value.TxID, normalize.DropReason) error { return nil }

func (s *memStore) ApplyBurnBlock(context.Context, *normalize.BurnBlock) error { return nil }

func newTestApp(t *testing.T) *types.App {
	t.Helper()
	logger := zaptest.NewLogger(t)
	pool := pond.NewPool(2)
	t.Cleanup(pool.StopAndWait)

	reg := prometheus.NewRegistry()
	hub := notify.NewHub()
	cfg := ingest.Config{
		DefaultLineage: "mainnet",
		RetainDepth:    100,
		DedupTTL:       time.Hour,
		QueueSize:      8,
		Retry:          retry.Config{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1},
	}
	ingestor := ingest.New(logger, normalize.NewAssembler(codec.Decoder{}, pool, logger), hub, metrics.NewIngest(reg), cfg)
	t.Cleanup(ingestor.Close)
	for _, lineage := range []string{"mainnet", "testnet"} {
		_, err := ingestor.AddLineage(context.Background(), lineage, &memStore{})
		require.NoError(t, err)
	}

	return &types.App{
		Ingestor:     ingestor,
		Hub:          hub,
		Gatherer:     reg,
		HealthChecks: map[string]func(context.Context) error{"clickhouse": func(context.Context) error { return nil }},
		Logger:       logger,
	}
}

func newRouter(t *testing.T, app *types.App) *mux.Router {
	t.Helper()
	r, err := NewController(app).NewRouter()
	require.NoError(t, err)
	return r
}

func hash(branch byte, height uint64) string {
	return fmt.Sprintf("0x%02x%062x", branch, height)
}

func blockJSON(t *testing.T, height uint64) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"block_hash":              hash(0xa1, height),
		"block_height":            height,
		"burn_block_time":         1700000000 + height,
		"burn_block_hash":         hash(0xbb, height),
		"burn_block_height":       800000 + height,
		"miner_txid":              hash(0xcc, height),
		"index_block_hash":        hash(0xa0, height),
		"parent_index_block_hash": hash(0xa0, height-1),
		"parent_block_hash":       hash(0xa1, height-1),
		"parent_microblock":       hash(0x00, 0),
		"events":                  []any{},
		"transactions":            []any{},
		"matured_miner_rewards":   []any{},
	})
	require.NoError(t, err)
	return data
}

func post(t *testing.T, r http.Handler, path string, body []byte, header http.Header) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func get(t *testing.T, r http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestNewBlockRoutes(t *testing.T) {
	r := newRouter(t, newTestApp(t))

	rec, out := post(t, r, "/new_block", blockJSON(t, 1), nil)
	require.Equal(t, http.StatusOK, rec.Code, out)
	assert.Equal(t, "extend", out["action"])
	assert.Equal(t, "mainnet", out["lineage"])
	assert.NotEmpty(t, out["request_id"])

	rec, out = post(t, r, "/new_block", blockJSON(t, 1), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "duplicate", out["action"])

	rec, out = post(t, r, "/lineages/testnet/new_block", blockJSON(t, 1), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "testnet", out["lineage"])
	assert.Equal(t, "extend", out["action"])
}

func TestIngestErrorStatus(t *testing.T) {
	r := newRouter(t, newTestApp(t))
	_, _ = post(t, r, "/new_block", blockJSON(t, 1), nil)

	rec, out := post(t, r, "/new_block", blockJSON(t, 5), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "sequencing", out["class"])
	assert.Equal(t, "block", out["kind"])

	rec, out = post(t, r, "/new_block", []byte(`{"block_height": "nope"}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", out["class"])

	rec, _ = post(t, r, "/lineages/devnet/new_block", blockJSON(t, 1), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, out = post(t, r, "/drop_mempool_tx", []byte(`{"dropped_txids": ["0x12"], "reason": "TooExpensive"}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "mempool_drop", out["kind"])
}

func TestIgnoredPathsAreAcknowledged(t *testing.T) {
	r := newRouter(t, newTestApp(t))
	for _, path := range []string{"/new_mempool_tx", "/new_microblocks", "/attachments/new", "/lineages/testnet/new_mempool_tx"} {
		rec, out := post(t, r, path, []byte(`["0x00"]`), nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "ignored", out["status"], path)
	}
}

func TestBodyLimit(t *testing.T) {
	app := newTestApp(t)
	app.MaxBodyBytes = 16
	r := newRouter(t, app)

	rec, out := post(t, r, "/new_block", blockJSON(t, 1), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.NotEmpty(t, out["error"])
}

func TestRequireAuth(t *testing.T) {
	app := newTestApp(t)
	app.JWTSecret = []byte("observer-secret")
	r := newRouter(t, app)

	sign := func(secret []byte) http.Header {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "stacks-node"}).SignedString(secret)
		require.NoError(t, err)
		return http.Header{"Authorization": []string{"Bearer " + tok}}
	}

	rec, out := post(t, r, "/new_block", blockJSON(t, 1), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", out["error"])

	rec, _ = post(t, r, "/new_block", blockJSON(t, 1), sign([]byte("wrong")))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, out = post(t, r, "/new_block", blockJSON(t, 1), sign(app.JWTSecret))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "extend", out["action"])

	// Reads stay open.
	assert.Equal(t, http.StatusOK, get(t, r, "/tip").Code)
}

func TestTip(t *testing.T) {
	r := newRouter(t, newTestApp(t))
	_, _ = post(t, r, "/new_block", blockJSON(t, 1), nil)
	_, _ = post(t, r, "/new_block", blockJSON(t, 2), nil)

	rec := get(t, r, "/tip")
	require.Equal(t, http.StatusOK, rec.Code)
	var view reorg.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "mainnet", view.Lineage)
	assert.Equal(t, uint64(2), view.Height)
	assert.Equal(t, hash(0xa0, 2), view.IndexBlockHash.String())

	rec = get(t, r, "/lineages/testnet/tip")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.True(t, view.Empty)

	assert.Equal(t, http.StatusNotFound, get(t, r, "/tip?lineage=devnet").Code)

	rec = get(t, r, "/lineages")
	assert.JSONEq(t, `{"lineages": ["mainnet", "testnet"]}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)
	r := newRouter(t, app)

	rec := get(t, r, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())

	app.HealthChecks["redis"] = func(context.Context) error { return errors.New("connection refused") }
	rec = get(t, r, "/health")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"status": "errored", "error": "redis connection error"}`, rec.Body.String())
}

func TestMetrics(t *testing.T) {
	r := newRouter(t, newTestApp(t))
	_, _ = post(t, r, "/new_block", blockJSON(t, 1), nil)

	rec := get(t, r, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `stacksx_blocks_total{action="extend",lineage="mainnet"} 1`)
}

func TestCORSPreflight(t *testing.T) {
	r := WithCORS(newRouter(t, newTestApp(t)))
	req := httptest.NewRequest(http.MethodOptions, "/new_block", nil)
	req.Header.Set("Origin", "https://explorer.example")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://explorer.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown lineage", fmt.Errorf("%w: %q", ingest.ErrUnknownLineage, "devnet"), http.StatusNotFound},
		{"closed", ingest.ErrClosed, http.StatusServiceUnavailable},
		{"validation", fmt.Errorf("decode: %w", normalize.ErrMalformedBlock), http.StatusBadRequest},
		{"sequencing", fmt.Errorf("block 9: %w", reorg.ErrOutOfOrderBlock), http.StatusConflict},
		{"fork too deep", reorg.ErrForkBeyondRetention, http.StatusConflict},
		{"consistency", reorg.ErrNoCommonAncestor, http.StatusInternalServerError},
		{"storage", errors.New("clickhouse unavailable"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}
