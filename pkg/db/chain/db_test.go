package chain

import (
	"strings"
	"testing"

	"github.com/canopy-network/stacksx/pkg/db/clickhouse"
	"github.com/canopy-network/stacksx/pkg/db/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseName(t *testing.T) {
	assert.Equal(t, "stacks_mainnet", DatabaseName("mainnet"))
	assert.Equal(t, "stacks_testnet_krypton", DatabaseName("Testnet-Krypton"))
}

func TestTablesCoverEveryEntity(t *testing.T) {
	seen := map[entities.Entity]bool{}
	for _, spec := range tables {
		seen[spec.entity] = true
	}
	for _, e := range entities.All() {
		assert.True(t, seen[e], "no table spec for %s", e)
	}
	assert.Len(t, tables, len(entities.All()))
}

func TestCreateTableSQL(t *testing.T) {
	db := &DB{Client: clickhouse.Client{}, Name: "stacks_mainnet"}
	var canon tableSpec
	for _, spec := range tables {
		if spec.entity == entities.BlockCanonicality {
			canon = spec
		}
	}
	sql := db.createTableSQL(canon)
	assert.Contains(t, sql, `CREATE TABLE IF NOT EXISTS "stacks_mainnet"."block_canonicality"`)
	assert.Contains(t, sql, "ENGINE = ReplacingMergeTree(version)")
	assert.Contains(t, sql, "ORDER BY (index_block_hash)")
	assert.NotContains(t, sql, "ON CLUSTER")

	db.Cluster = "stacks"
	sql = db.createTableSQL(canon)
	assert.Contains(t, sql, "ON CLUSTER stacks")
	assert.Contains(t, sql, "ReplicatedReplacingMergeTree(version)")
}

func TestParseRef(t *testing.T) {
	h := "0xab" + strings.Repeat("00", 31)
	ref, err := parseRef(canonicalRow{Height: 9, BlockHash: h, IndexBlockHash: h, ParentIndexBlockHash: h})
	require.NoError(t, err)
	assert.Equal(t, uint64(9), ref.Height)
	assert.Equal(t, h, ref.IndexBlockHash.String())

	_, err = parseRef(canonicalRow{Height: 9, BlockHash: h, IndexBlockHash: "0x12", ParentIndexBlockHash: h})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index_block_hash at 9")
}
