// Package mssql implements the Microsoft SQL Server datasource adapter.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/askdb-io/askdb-engine/pkg/adapters/datasource"
	"github.com/askdb-io/askdb-engine/pkg/models"
)

// buildConnectionString builds a sqlserver:// URL for go-mssqldb.
// User and password are URL-escaped to survive special characters.
func buildConnectionString(desc *models.ConnectionDescriptor) string {
	query := url.Values{}
	query.Add("database", desc.Database)
	if desc.SSLMode == "disable" {
		query.Add("encrypt", "false")
	} else {
		query.Add("encrypt", "true")
		query.Add("TrustServerCertificate", "true")
	}

	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?%s",
		url.QueryEscape(desc.User),
		url.QueryEscape(desc.Secret),
		desc.Host,
		desc.Port,
		query.Encode(),
	)
}

// conn is an exclusive SQL Server connection for one session.
type conn struct {
	db     *sql.DB
	schema string
}

func connect(ctx context.Context, desc *models.ConnectionDescriptor) (datasource.Conn, error) {
	db, err := sql.Open("sqlserver", buildConnectionString(desc))
	if err != nil {
		return nil, fmt.Errorf("open sqlserver connection: %w", err)
	}

	// One exclusive connection per session; the broker owns the cap.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}

	return &conn{db: db, schema: desc.Schema}, nil
}

func (c *conn) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Query runs a SELECT statement with bounded results using SQL Server's TOP
// clause. Positional $1, $2 placeholders are converted to @p1, @p2 named
// parameters, which go-mssqldb expects.
func (c *conn) Query(ctx context.Context, sqlQuery string, params []any, limit int) (*datasource.QueryResult, error) {
	effectiveLimit := limit
	if effectiveLimit <= 0 || effectiveLimit > datasource.MaxQueryLimit {
		effectiveLimit = datasource.MaxQueryLimit
	}
	queryToRun := fmt.Sprintf("SELECT TOP (%d) * FROM (%s) AS _limited",
		effectiveLimit, convertPositionalParams(sqlQuery))

	namedParams := make([]any, len(params))
	for i, p := range params {
		namedParams[i] = sql.Named(fmt.Sprintf("p%d", i+1), p)
	}

	rows, err := c.db.QueryContext(ctx, queryToRun, namedParams...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	columnNames, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columnNames))
		valuePtrs := make([]any, len(columnNames))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		rowMap := make(map[string]any, len(columnNames))
		for i, col := range columnNames {
			val := values[i]
			// go-mssqldb returns text columns as []byte
			if b, ok := val.([]byte); ok && isStringType(columnTypes[i].DatabaseTypeName()) {
				val = string(b)
			}
			rowMap[col] = val
		}
		resultRows = append(resultRows, rowMap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &datasource.QueryResult{
		Columns:   columnNames,
		Rows:      resultRows,
		RowCount:  len(resultRows),
		Truncated: len(resultRows) == effectiveLimit,
	}, nil
}

// Tables returns all user tables, excluding system objects.
func (c *conn) Tables(ctx context.Context) ([]datasource.Table, error) {
	query := `
	SET NOCOUNT ON;
	SELECT SCHEMA_NAME(t.schema_id) AS table_schema, t.name AS table_name
	FROM sys.tables t
	WHERE t.is_ms_shipped = 0
	ORDER BY table_schema, table_name
	`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []datasource.Table
	for rows.Next() {
		var t datasource.Table
		if err := rows.Scan(&t.Schema, &t.Name); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		if c.schema != "" && !strings.EqualFold(t.Schema, c.schema) {
			continue
		}
		tables = append(tables, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table rows: %w", err)
	}

	return tables, nil
}

// Columns returns columns for a specific table.
func (c *conn) Columns(ctx context.Context, schemaName, tableName string) ([]datasource.Column, error) {
	query := `
	SET NOCOUNT ON;
	SELECT
	    c.name AS column_name,
	    tp.name AS data_type,
	    CASE WHEN c.is_nullable = 1 THEN 1 ELSE 0 END AS is_nullable,
	    CASE WHEN pk.column_id IS NOT NULL THEN 1 ELSE 0 END AS is_primary_key
	FROM sys.columns c
	INNER JOIN sys.types tp ON c.user_type_id = tp.user_type_id
	LEFT JOIN (
	    SELECT ic.object_id, ic.column_id
	    FROM sys.index_columns ic
	    INNER JOIN sys.indexes i ON ic.object_id = i.object_id AND ic.index_id = i.index_id
	    WHERE i.is_primary_key = 1
	) pk ON c.object_id = pk.object_id AND c.column_id = pk.column_id
	WHERE c.object_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
	ORDER BY c.column_id
	`

	rows, err := c.db.QueryContext(ctx, query,
		sql.Named("schema", schemaName),
		sql.Named("table", tableName),
	)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.Column
	for rows.Next() {
		var col datasource.Column
		var isNullable, isPrimary int
		if err := rows.Scan(&col.Name, &col.DataType, &isNullable, &isPrimary); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		col.DataType = mapSQLServerType(col.DataType)
		col.IsNullable = isNullable == 1
		col.IsPrimary = isPrimary == 1
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column rows: %w", err)
	}

	return columns, nil
}

// ForeignKeys returns all foreign key relationships.
func (c *conn) ForeignKeys(ctx context.Context) ([]datasource.ForeignKey, error) {
	query := `
	SET NOCOUNT ON;
	SELECT
	    SCHEMA_NAME(fk.schema_id) AS source_schema,
	    OBJECT_NAME(fk.parent_object_id) AS source_table,
	    COL_NAME(fkc.parent_object_id, fkc.parent_column_id) AS source_column,
	    OBJECT_NAME(fk.referenced_object_id) AS target_table,
	    COL_NAME(fkc.referenced_object_id, fkc.referenced_column_id) AS target_column
	FROM sys.foreign_keys fk
	INNER JOIN sys.foreign_key_columns fkc ON fk.object_id = fkc.constraint_object_id
	WHERE fk.is_ms_shipped = 0
	ORDER BY source_schema, source_table, fkc.constraint_column_id
	`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []datasource.ForeignKey
	for rows.Next() {
		var fk datasource.ForeignKey
		if err := rows.Scan(&fk.SourceSchema, &fk.SourceTable, &fk.Column,
			&fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key row: %w", err)
		}
		fks = append(fks, fk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign key rows: %w", err)
	}

	return fks, nil
}

func (c *conn) Dialect() string {
	return "SQL Server"
}

func (c *conn) Close() error {
	return c.db.Close()
}

// Ensure conn implements datasource.Conn at compile time.
var _ datasource.Conn = (*conn)(nil)
