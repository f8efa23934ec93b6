package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/askdb-io/askdb-engine/pkg/adapters/datasource"
)

// SchemaSource is the subset of a broker session used for introspection.
type SchemaSource interface {
	Tables(ctx context.Context) ([]datasource.Table, error)
	Columns(ctx context.Context, schemaName, tableName string) ([]datasource.Column, error)
	ForeignKeys(ctx context.Context) ([]datasource.ForeignKey, error)
	Dialect() string
}

// SchemaIntrospector renders a database's structure as prompt text.
type SchemaIntrospector interface {
	// Snapshot walks the tables reachable through src and renders them as
	// text, staying within maxChars. When the full schema does not fit,
	// the widest tables lose columns first, then whole tables are dropped
	// from the end.
	Snapshot(ctx context.Context, src SchemaSource, maxChars int) (string, error)
}

// minColumnsShown is the floor below which a table's column list is not
// truncated further; past that the whole table is dropped instead.
const minColumnsShown = 4

type schemaIntrospector struct {
	logger *zap.Logger
}

// NewSchemaIntrospector creates a schema introspector.
func NewSchemaIntrospector(logger *zap.Logger) SchemaIntrospector {
	return &schemaIntrospector{logger: logger.Named("schema")}
}

// tableBlock is one table's rendering state during budget fitting.
type tableBlock struct {
	header string
	lines  []string
	shown  int // number of column lines currently rendered
}

func (b *tableBlock) render(sb *strings.Builder) {
	sb.WriteString(b.header)
	sb.WriteByte('\n')
	for _, line := range b.lines[:b.shown] {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	if elided := len(b.lines) - b.shown; elided > 0 {
		fmt.Fprintf(sb, "  ... (%d more columns)\n", elided)
	}
}

func (s *schemaIntrospector) Snapshot(ctx context.Context, src SchemaSource, maxChars int) (string, error) {
	tables, err := src.Tables(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list tables: %w", err)
	}
	if len(tables) == 0 {
		return "(no tables found)", nil
	}

	fks, err := src.ForeignKeys(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list foreign keys: %w", err)
	}
	refs := make(map[string]string, len(fks))
	for _, fk := range fks {
		key := fk.SourceSchema + "." + fk.SourceTable + "." + fk.Column
		refs[key] = fmt.Sprintf("REFERENCES %s(%s)", fk.ReferencedTable, fk.ReferencedColumn)
	}

	blocks := make([]*tableBlock, 0, len(tables))
	for _, t := range tables {
		columns, err := src.Columns(ctx, t.Schema, t.Name)
		if err != nil {
			return "", fmt.Errorf("failed to describe %s.%s: %w", t.Schema, t.Name, err)
		}

		block := &tableBlock{
			header: fmt.Sprintf("Table: %s.%s", t.Schema, t.Name),
			lines:  make([]string, 0, len(columns)),
		}
		for _, col := range columns {
			var attrs []string
			if col.IsPrimary {
				attrs = append(attrs, "PRIMARY KEY")
			} else if !col.IsNullable {
				attrs = append(attrs, "NOT NULL")
			}
			if ref, ok := refs[t.Schema+"."+t.Name+"."+col.Name]; ok {
				attrs = append(attrs, ref)
			}

			line := fmt.Sprintf("  %s %s", col.Name, col.DataType)
			if len(attrs) > 0 {
				line += " " + strings.Join(attrs, " ")
			}
			block.lines = append(block.lines, line)
		}
		block.shown = len(block.lines)
		blocks = append(blocks, block)
	}

	omittedTables := 0
	text := renderBlocks(blocks, omittedTables)
	for maxChars > 0 && len(text) > maxChars {
		widest := widestBlock(blocks)
		switch {
		case widest != nil:
			widest.shown = max(minColumnsShown, widest.shown/2)
		case len(blocks) > 1:
			blocks = blocks[:len(blocks)-1]
			omittedTables++
		case blocks[0].shown > 0:
			// A single minimal table still over budget: go below the
			// column floor rather than cutting the omission marker.
			blocks[0].shown--
		default:
			text = text[:maxChars]
			return text, nil
		}
		text = renderBlocks(blocks, omittedTables)
	}

	if omittedTables > 0 {
		s.logger.Debug("schema snapshot truncated",
			zap.Int("omitted_tables", omittedTables),
			zap.Int("chars", len(text)))
	}

	return text, nil
}

func renderBlocks(blocks []*tableBlock, omittedTables int) string {
	var sb strings.Builder
	for i, b := range blocks {
		if i > 0 {
			sb.WriteByte('\n')
		}
		b.render(&sb)
	}
	if omittedTables > 0 {
		fmt.Fprintf(&sb, "\n(%d more tables omitted)\n", omittedTables)
	}
	return sb.String()
}

// widestBlock returns the block with the most rendered columns that can
// still be shrunk, preferring earlier tables on ties for determinism.
func widestBlock(blocks []*tableBlock) *tableBlock {
	sorted := make([]*tableBlock, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].shown > sorted[j].shown
	})
	for _, b := range sorted {
		if b.shown > minColumnsShown {
			return b
		}
	}
	return nil
}
