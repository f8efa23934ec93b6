// Package datasource brokers short-lived connections to users' external
// databases. Adapters register per engine; the Broker enforces the global
// connection cap and session lifetime.
package datasource

import "context"

// MaxQueryLimit is the hard cap on rows returned by Query.
// This protects against unbounded queries that could crash the server.
const MaxQueryLimit = 1000

// Conn is a live connection to one external database.
// Each implementation owns its connection and must be closed when done.
type Conn interface {
	// Ping verifies the database is reachable with valid credentials.
	Ping(ctx context.Context) error

	// Query runs a SELECT statement and returns bounded results.
	// The query is ALWAYS wrapped with a dialect-specific limit:
	//   - PostgreSQL: SELECT * FROM (query) AS _q LIMIT n
	//   - SQL Server: SELECT TOP (n) * FROM (query) AS _q
	//
	// Limit behavior:
	//   - limit <= 0: uses MaxQueryLimit (1000)
	//   - limit > MaxQueryLimit: capped to MaxQueryLimit (1000)
	//   - otherwise: uses specified limit
	Query(ctx context.Context, sqlQuery string, params []any, limit int) (*QueryResult, error)

	// Tables returns all user tables (excludes system schemas).
	Tables(ctx context.Context) ([]Table, error)

	// Columns returns columns for a specific table.
	Columns(ctx context.Context, schemaName, tableName string) ([]Column, error)

	// ForeignKeys returns all foreign key relationships.
	ForeignKeys(ctx context.Context) ([]ForeignKey, error)

	// Dialect returns the SQL dialect name for prompts ("PostgreSQL", "SQL Server").
	Dialect() string

	// Close releases the database connection.
	Close() error
}

// Table represents a database table.
type Table struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
}

// Column represents a database column.
type Column struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	IsNullable bool   `json:"is_nullable"`
	IsPrimary  bool   `json:"is_primary"`
}

// ForeignKey represents a foreign key relationship.
type ForeignKey struct {
	SourceSchema     string `json:"source_schema"`
	SourceTable      string `json:"source_table"`
	Column           string `json:"column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// QueryResult contains the results of a SQL query execution.
type QueryResult struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"row_count"`
	Truncated bool             `json:"truncated"`
}
