package indexer

import (
	"fmt"
	"strings"
)

// ColumnDef defines a single column for a table. It is the single source of
// truth for column definitions used by both CREATE TABLE and INSERT statements.
type ColumnDef struct {
	// Name is the column name
	Name string

	// Type is the ClickHouse data type (e.g., "UInt64", "String", "DateTime64(6)")
	Type string

	// Codec is the optional compression codec (e.g., "ZSTD(1)", "Delta, ZSTD(3)")
	Codec string
}

// SQL returns the full column definition for CREATE TABLE statements.
// Example: "tx_id String CODEC(ZSTD(1))"
func (c ColumnDef) SQL() string {
	if c.Codec != "" {
		return fmt.Sprintf("%s %s CODEC(%s)", c.Name, c.Type, c.Codec)
	}
	return fmt.Sprintf("%s %s", c.Name, c.Type)
}

func (c ColumnDef) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("column name cannot be empty")
	}
	if c.Type == "" {
		return fmt.Errorf("column %s: type cannot be empty", c.Name)
	}
	return nil
}

// ColumnsToSchemaSQL converts a list of ColumnDef to a CREATE TABLE schema string.
func ColumnsToSchemaSQL(columns []ColumnDef) string {
	var parts []string
	for _, col := range columns {
		parts = append(parts, col.SQL())
	}
	return strings.Join(parts, ",\n\t\t\t")
}

// ColumnsToNameList extracts the column names, in order, for INSERT statements.
func ColumnsToNameList(columns []ColumnDef) []string {
	var names []string
	for _, col := range columns {
		names = append(names, col.Name)
	}
	return names
}

// InsertSQL builds `INSERT INTO "db"."table" (cols...) VALUES` for PrepareBatch.
func InsertSQL(database, table string, columns []ColumnDef) string {
	return fmt.Sprintf(`INSERT INTO "%s"."%s" (%s) VALUES`,
		database, table, strings.Join(ColumnsToNameList(columns), ", "))
}

// ValidateColumns returns the first invalid column, also rejecting duplicates.
func ValidateColumns(columns []ColumnDef) error {
	seen := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		if err := col.Validate(); err != nil {
			return err
		}
		if _, dup := seen[col.Name]; dup {
			return fmt.Errorf("column %s: defined twice", col.Name)
		}
		seen[col.Name] = struct{}{}
	}
	return nil
}
