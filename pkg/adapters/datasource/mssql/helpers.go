package mssql

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// positionalParamPattern matches PostgreSQL-style $1, $2 placeholders.
var positionalParamPattern = regexp.MustCompile(`\$(\d+)`)

// convertPositionalParams rewrites $1, $2, ... placeholders to SQL Server's
// @p1, @p2, ... named parameters. Generated SQL uses the PostgreSQL style
// regardless of dialect so callers pass parameters uniformly.
func convertPositionalParams(query string) string {
	return positionalParamPattern.ReplaceAllStringFunc(query, func(match string) string {
		num, err := strconv.Atoi(match[1:])
		if err != nil {
			return match
		}
		return fmt.Sprintf("@p%d", num)
	})
}

// mapSQLServerType maps SQL Server type names to standard type names so
// schema snapshots read the same across adapters.
func mapSQLServerType(sqlServerType string) string {
	switch strings.ToUpper(sqlServerType) {
	case "TINYINT":
		return "TINYINT"
	case "SMALLINT":
		return "SMALLINT"
	case "INT":
		return "INTEGER"
	case "BIGINT":
		return "BIGINT"
	case "DECIMAL", "NUMERIC":
		return "NUMERIC"
	case "MONEY", "SMALLMONEY":
		return "MONEY"
	case "FLOAT":
		return "DOUBLE PRECISION"
	case "REAL":
		return "REAL"
	case "CHAR", "NCHAR":
		return "CHAR"
	case "VARCHAR", "NVARCHAR":
		return "VARCHAR"
	case "TEXT", "NTEXT":
		return "TEXT"
	case "BINARY", "VARBINARY":
		return "BYTEA"
	case "DATE":
		return "DATE"
	case "TIME":
		return "TIME"
	case "DATETIME", "DATETIME2", "SMALLDATETIME":
		return "TIMESTAMP"
	case "DATETIMEOFFSET":
		return "TIMESTAMP WITH TIME ZONE"
	case "BIT":
		return "BOOLEAN"
	case "UNIQUEIDENTIFIER":
		return "UUID"
	case "XML":
		return "XML"
	default:
		return strings.ToUpper(sqlServerType)
	}
}

// isStringType returns true if the type is a string type in SQL Server.
func isStringType(sqlType string) bool {
	switch strings.ToUpper(sqlType) {
	case "CHAR", "NCHAR", "VARCHAR", "NVARCHAR", "TEXT", "NTEXT":
		return true
	}
	return false
}
