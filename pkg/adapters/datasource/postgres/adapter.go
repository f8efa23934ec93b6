// Package postgres implements the PostgreSQL datasource adapter.
package postgres

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5"

	"github.com/askdb-io/askdb-engine/pkg/adapters/datasource"
	"github.com/askdb-io/askdb-engine/pkg/models"
)

// buildConnectionString builds a PostgreSQL URL with proper escaping.
// IMPORTANT: All user-provided fields must be URL-escaped to handle special
// characters in passwords (e.g., @, /, #, ?) that would otherwise break URL
// parsing.
func buildConnectionString(desc *models.ConnectionDescriptor) string {
	sslMode := desc.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(desc.User),
		url.QueryEscape(desc.Secret),
		desc.Host,
		desc.Port,
		url.QueryEscape(desc.Database),
		sslMode,
	)
}

// conn is an exclusive PostgreSQL connection for one session.
type conn struct {
	pg     *pgx.Conn
	schema string // optional schema filter from the descriptor
}

// connect dials the database described by desc and verifies it is usable.
func connect(ctx context.Context, desc *models.ConnectionDescriptor) (datasource.Conn, error) {
	pg, err := pgx.Connect(ctx, buildConnectionString(desc))
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pg.Ping(ctx); err != nil {
		pg.Close(ctx)
		return nil, fmt.Errorf("ping failed: %w", err)
	}

	return &conn{pg: pg, schema: desc.Schema}, nil
}

func (c *conn) Ping(ctx context.Context) error {
	return c.pg.Ping(ctx)
}

// Query runs a SELECT statement and returns bounded results. The statement is
// always wrapped in a limiting subquery so a missing LIMIT clause cannot pull
// an entire table across the wire.
func (c *conn) Query(ctx context.Context, sqlQuery string, params []any, limit int) (*datasource.QueryResult, error) {
	effectiveLimit := limit
	if effectiveLimit <= 0 || effectiveLimit > datasource.MaxQueryLimit {
		effectiveLimit = datasource.MaxQueryLimit
	}
	queryToRun := fmt.Sprintf("SELECT * FROM (%s) AS _limited LIMIT %d", sqlQuery, effectiveLimit)

	rows, err := c.pg.Query(ctx, queryToRun, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = string(fd.Name)
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col] = values[i]
		}
		resultRows = append(resultRows, rowMap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &datasource.QueryResult{
		Columns:   columns,
		Rows:      resultRows,
		RowCount:  len(resultRows),
		Truncated: len(resultRows) == effectiveLimit,
	}, nil
}

// Tables returns all user tables, excluding system schemas. When the
// descriptor names a schema, only that schema is listed.
func (c *conn) Tables(ctx context.Context) ([]datasource.Table, error) {
	query := `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		  AND table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY table_schema, table_name
	`
	var args []any
	if c.schema != "" {
		query = `
			SELECT table_schema, table_name
			FROM information_schema.tables
			WHERE table_type = 'BASE TABLE'
			  AND table_schema = $1
			ORDER BY table_name
		`
		args = []any{c.schema}
	}

	rows, err := c.pg.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []datasource.Table
	for rows.Next() {
		var t datasource.Table
		if err := rows.Scan(&t.Schema, &t.Name); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	return tables, nil
}

// Columns returns columns for a specific table. Primary keys are detected via
// pg_index.indisprimary, which catches PKs created as unique indexes by ORMs.
func (c *conn) Columns(ctx context.Context, schemaName, tableName string) ([]datasource.Column, error) {
	const query = `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES' as is_nullable,
			COALESCE(pk.is_pk, false) as is_primary_key
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT a.attname as column_name, true as is_pk
			FROM pg_index ix
			JOIN pg_class t ON t.oid = ix.indrelid
			JOIN pg_namespace n ON n.oid = t.relnamespace
			JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
			WHERE ix.indisprimary = true
			  AND n.nspname = $1
			  AND t.relname = $2
		) pk ON c.column_name = pk.column_name
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`

	rows, err := c.pg.Query(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.Column
	for rows.Next() {
		var col datasource.Column
		if err := rows.Scan(&col.Name, &col.DataType, &col.IsNullable, &col.IsPrimary); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	return columns, nil
}

// ForeignKeys returns all foreign key relationships.
func (c *conn) ForeignKeys(ctx context.Context) ([]datasource.ForeignKey, error) {
	const query = `
		SELECT
			kcu.table_schema as source_schema,
			kcu.table_name as source_table,
			kcu.column_name as source_column,
			ccu.table_name as target_table,
			ccu.column_name as target_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name
			AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
	`

	rows, err := c.pg.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []datasource.ForeignKey
	for rows.Next() {
		var fk datasource.ForeignKey
		if err := rows.Scan(&fk.SourceSchema, &fk.SourceTable, &fk.Column,
			&fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		fks = append(fks, fk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign keys: %w", err)
	}

	return fks, nil
}

func (c *conn) Dialect() string {
	return "PostgreSQL"
}

func (c *conn) Close() error {
	return c.pg.Close(context.Background())
}

// Ensure conn implements datasource.Conn at compile time.
var _ datasource.Conn = (*conn)(nil)
