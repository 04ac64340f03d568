// Package entities names the tables written for each lineage database.
//
// Entity values are the single source of truth for table names, so the schema
// initializer, the inserts and the maintenance jobs cannot drift apart.
//
//	query := fmt.Sprintf(`INSERT INTO "%s"."%s" ...`, db.Name, entities.Blocks.TableName())
package entities

import (
	"fmt"
	"sort"
	"strings"
)

// Entity is a table kind stored per lineage.
type Entity string

const (
	// Blocks holds one row per accepted block, canonical or not.
	Blocks Entity = "blocks"
	// Transactions holds one row per transaction per block.
	Transactions Entity = "transactions"
	// Events holds one row per node event.
	Events Entity = "events"
	// MinerRewards holds matured rewards reported with a block.
	MinerRewards Entity = "miner_rewards"
	// BlockCanonicality is the versioned canonical flag per index block hash.
	BlockCanonicality Entity = "block_canonicality"
	// BurnBlocks holds one row per burnchain block.
	BurnBlocks Entity = "burn_blocks"
	// BurnBlockRewards holds the reward split of each burn block.
	BurnBlockRewards Entity = "burn_block_rewards"
	// MempoolDropped holds (txid, reason) pairs removed from the mempool.
	MempoolDropped Entity = "mempool_dropped"
)

var allEntities = []Entity{
	Blocks,
	Transactions,
	Events,
	MinerRewards,
	BlockCanonicality,
	BurnBlocks,
	BurnBlockRewards,
	MempoolDropped,
}

var entitySet map[Entity]bool

func init() {
	entitySet = make(map[Entity]bool, len(allEntities))
	for _, e := range allEntities {
		if e == "" || strings.ContainsAny(string(e), " .\"") {
			panic(fmt.Sprintf("entities: invalid entity name %q", e))
		}
		entitySet[e] = true
	}
}

func (e Entity) String() string {
	return string(e)
}

// TableName returns the table name for this entity.
func (e Entity) TableName() string {
	return string(e)
}

// IsValid reports whether e is a known entity.
func (e Entity) IsValid() bool {
	return entitySet[e]
}

func (e Entity) MarshalText() ([]byte, error) {
	return []byte(e), nil
}

func (e *Entity) UnmarshalText(text []byte) error {
	entity := Entity(text)
	if !entity.IsValid() {
		return fmt.Errorf("invalid entity: %q", text)
	}
	*e = entity
	return nil
}

// FromString converts external input to an Entity.
func FromString(s string) (Entity, error) {
	entity := Entity(s)
	if !entity.IsValid() {
		return "", fmt.Errorf("unknown entity %q, valid entities: %s", s, validEntitiesString())
	}
	return entity, nil
}

// All returns a copy of every known entity in schema creation order.
func All() []Entity {
	result := make([]Entity, len(allEntities))
	copy(result, allEntities)
	return result
}

func AllStrings() []string {
	result := make([]string, len(allEntities))
	for i, e := range allEntities {
		result[i] = e.String()
	}
	return result
}

func validEntitiesString() string {
	names := AllStrings()
	sort.Strings(names)
	return strings.Join(names, ", ")
}
