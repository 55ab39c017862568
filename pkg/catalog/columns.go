package catalog

import (
	"context"
	"strings"

	"github.com/Sternrassler/reportsql/pkg/cache"
	"github.com/Sternrassler/reportsql/pkg/cursor"
	"github.com/Sternrassler/reportsql/pkg/sqltext"
)

// ColumnColumns are the columns of a column listing, in order.
var ColumnColumns = []string{
	"TABLE_SCHEM", "TABLE_NAME", "COLUMN_NAME", "TYPE_NAME",
	"COLUMN_SIZE", "DECIMAL_DIGITS", "IS_NULLABLE", "ORDINAL_POSITION",
}

// Column describes one table column.
type Column struct {
	Schema        string
	Table         string
	Name          string
	Type          string
	Size          int64
	DecimalDigits int64
	Nullable      bool
	Position      int64
}

// ColumnsSQL returns the dictionary query for the columns of tables
// matching the LIKE patterns.
func ColumnsSQL(schema, table string) string {
	var b strings.Builder
	b.WriteString("SELECT owner AS TABLE_SCHEM, table_name AS TABLE_NAME, column_name AS COLUMN_NAME, ")
	b.WriteString("data_type AS TYPE_NAME, NVL(data_precision, data_length) AS COLUMN_SIZE, ")
	b.WriteString("data_scale AS DECIMAL_DIGITS, DECODE(nullable, 'Y', 'YES', 'NO') AS IS_NULLABLE, ")
	b.WriteString("column_id AS ORDINAL_POSITION FROM all_tab_columns WHERE 1=1")
	if schema != "" {
		b.WriteString(" AND owner LIKE " + sqltext.Quote(schema))
	}
	if table != "" {
		b.WriteString(" AND table_name LIKE " + sqltext.Quote(table))
	}
	b.WriteString(" ORDER BY owner, table_name, column_id")
	return b.String()
}

// Columns lists the columns of the tables matching the LIKE patterns.
func (c *Catalog) Columns(ctx context.Context, schema, table string) ([]Column, error) {
	key := cache.CacheKey{Kind: cache.KindColumns, Schema: schema, Object: table}
	rows, err := c.lookup(ctx, key, ColumnsSQL(schema, table), ColumnColumns)
	if err != nil {
		return nil, err
	}

	columns := make([]Column, 0, len(rows))
	for _, r := range rows {
		col := Column{Schema: r[0], Table: r[1], Name: r[2], Type: r[3]}
		col.Size, _ = cursor.ToInt64(r[4])
		col.DecimalDigits, _ = cursor.ToInt64(r[5])
		col.Nullable, _ = cursor.ToBool(r[6])
		col.Position, _ = cursor.ToInt64(r[7])
		columns = append(columns, col)
	}
	return columns, nil
}
