package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/alitto/pond/v2"
	"github.com/canopy-network/stacksx/pkg/db/clickhouse"
	"github.com/canopy-network/stacksx/pkg/db/entities"
	indexermodels "github.com/canopy-network/stacksx/pkg/db/models/indexer"
	"go.uber.org/zap"
)

// DB is the ClickHouse database of one lineage. It implements Store.
type DB struct {
	clickhouse.Client
	Name    string
	Lineage string

	now func() time.Time
}

// tableSpec is everything needed to create one table.
type tableSpec struct {
	entity  entities.Entity
	columns []indexermodels.ColumnDef
	engine  string
	version string
	orderBy string
}

var tables = []tableSpec{
	{entities.Blocks, indexermodels.BlockColumns, clickhouse.ReplacingMergeTree, "ingested_at", "(height, index_block_hash)"},
	{entities.Transactions, indexermodels.TransactionColumns, clickhouse.ReplacingMergeTree, "", "(block_height, index_block_hash, tx_index)"},
	{entities.Events, indexermodels.EventColumns, clickhouse.ReplacingMergeTree, "", "(block_height, index_block_hash, tx_id, event_index)"},
	{entities.MinerRewards, indexermodels.MinerRewardColumns, clickhouse.ReplacingMergeTree, "", "(height, index_block_hash, reward_index)"},
	{entities.BlockCanonicality, indexermodels.CanonicalityColumns, clickhouse.ReplacingMergeTree, "version", "(index_block_hash)"},
	{entities.BurnBlocks, indexermodels.BurnBlockColumns, clickhouse.ReplacingMergeTree, "ingested_at", "(burn_block_height, burn_block_hash)"},
	{entities.BurnBlockRewards, indexermodels.BurnRewardColumns, clickhouse.ReplacingMergeTree, "", "(burn_block_height, burn_block_hash, reward_index)"},
	{entities.MempoolDropped, indexermodels.MempoolDroppedColumns, clickhouse.ReplacingMergeTree, "dropped_at", "(tx_id, reason)"},
}

// DatabaseName derives the database of a lineage, e.g. "stacks_mainnet".
func DatabaseName(lineage string) string {
	return clickhouse.SanitizeName("stacks_" + lineage)
}

// New connects and creates the lineage database and its tables.
func New(ctx context.Context, logger *zap.Logger, lineage string, poolConfig *clickhouse.PoolConfig) (*DB, error) {
	dbName := DatabaseName(lineage)

	client, err := clickhouse.New(ctx, logger.With(
		zap.String("db", dbName),
		zap.String("lineage", lineage),
	), dbName, poolConfig)
	if err != nil {
		return nil, err
	}

	chainDB := &DB{Client: client, Name: dbName, Lineage: lineage, now: time.Now}
	if err := chainDB.InitializeDB(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return chainDB, nil
}

// NewWithSharedClient reuses an existing connection pool. Tables must already exist.
func NewWithSharedClient(client clickhouse.Client, lineage string) *DB {
	return &DB{Client: client, Name: DatabaseName(lineage), Lineage: lineage, now: time.Now}
}

func (db *DB) DatabaseName() string { return db.Name }

func (db *DB) GetConnection() driver.Conn { return db.Db }

// InitializeDB creates the database and all tables, issuing the CREATE TABLE
// statements concurrently.
func (db *DB) InitializeDB(ctx context.Context) error {
	initStart := time.Now()

	if err := db.CreateDbIfNotExists(ctx, db.Name); err != nil {
		return fmt.Errorf("failed to create database %s: %w", db.Name, err)
	}

	pool := pond.NewPool(len(tables))
	defer pool.StopAndWait()
	group := pool.NewGroupContext(ctx)
	for _, spec := range tables {
		group.SubmitErr(func() error {
			if err := db.Exec(group.Context(), db.createTableSQL(spec)); err != nil {
				return fmt.Errorf("init %s: %w", spec.entity, err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	db.Logger.Info("Lineage database initialization complete",
		zap.String("database", db.Name),
		zap.Int("tables", len(tables)),
		zap.Duration("duration", time.Since(initStart)))
	return nil
}

func (db *DB) createTableSQL(spec tableSpec) string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."%s" %s (
			%s
		) ENGINE = %s
		ORDER BY %s
	`, db.Name, spec.entity.TableName(), db.OnCluster(),
		indexermodels.ColumnsToSchemaSQL(spec.columns),
		db.Engine(spec.engine, spec.version), spec.orderBy)
}

type row interface{ Values() []any }

// insert appends rows to one batch and sends it. Nothing is sent for an
// empty slice.
func insert[T row](ctx context.Context, db *DB, entity entities.Entity, columns []indexermodels.ColumnDef, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := db.PrepareBatch(ctx, indexermodels.InsertSQL(db.Name, entity.TableName(), columns))
	if err != nil {
		return fmt.Errorf("prepare %s: %w", entity, err)
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, r := range rows {
		if err := batch.Append(r.Values()...); err != nil {
			return fmt.Errorf("append %s: %w", entity, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send %s: %w", entity, err)
	}
	return nil
}
