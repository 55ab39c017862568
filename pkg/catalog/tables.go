package catalog

import (
	"context"
	"strings"

	"github.com/Sternrassler/reportsql/pkg/cache"
	"github.com/Sternrassler/reportsql/pkg/sqltext"
)

// Table types.
const (
	TypeTable = "TABLE"
	TypeView  = "VIEW"
)

// TableColumns are the columns of a table listing, in order.
var TableColumns = []string{
	"TABLE_CAT", "TABLE_SCHEM", "TABLE_NAME", "TABLE_TYPE", "REMARKS",
	"TYPE_CAT", "TYPE_SCHEM", "TYPE_NAME", "SELF_REFERENCING_COL_NAME", "REF_GENERATION",
}

// TableFilter selects tables. Schema and Table are LIKE patterns; empty
// matches everything. Empty Types means tables and views.
type TableFilter struct {
	Schema string
	Table  string
	Types  []string
}

// Table is one table or view.
type Table struct {
	Catalog string
	Schema  string
	Name    string
	Type    string
	Remarks string
}

// TablesSQL returns the dictionary query for filter, or "" when the filter
// names no supported type.
func TablesSQL(filter TableFilter) string {
	wantTables, wantViews := len(filter.Types) == 0, len(filter.Types) == 0
	for _, t := range filter.Types {
		switch strings.ToUpper(strings.TrimSpace(t)) {
		case TypeTable:
			wantTables = true
		case TypeView:
			wantViews = true
		}
	}

	var owner string
	if filter.Schema != "" {
		owner = " AND owner LIKE " + sqltext.Quote(filter.Schema)
	}

	var parts []string
	if wantTables {
		parts = append(parts, tableSelect("table_name", TypeTable, "all_tables", owner, filter.Table))
	}
	if wantViews {
		parts = append(parts, tableSelect("view_name", TypeView, "all_views", owner, filter.Table))
	}
	return strings.Join(parts, " UNION ALL ")
}

func tableSelect(nameColumn, tableType, view, owner, pattern string) string {
	var b strings.Builder
	b.WriteString("SELECT NULL AS TABLE_CAT, owner AS TABLE_SCHEM, ")
	b.WriteString(nameColumn)
	b.WriteString(" AS TABLE_NAME, ")
	b.WriteString(sqltext.Quote(tableType))
	b.WriteString(" AS TABLE_TYPE, NULL AS REMARKS, NULL AS TYPE_CAT, NULL AS TYPE_SCHEM, NULL AS TYPE_NAME, ")
	b.WriteString("NULL AS SELF_REFERENCING_COL_NAME, NULL AS REF_GENERATION FROM ")
	b.WriteString(view)
	b.WriteString(" WHERE 1=1")
	b.WriteString(owner)
	if pattern != "" {
		b.WriteString(" AND ")
		b.WriteString(nameColumn)
		b.WriteString(" LIKE ")
		b.WriteString(sqltext.Quote(pattern))
	}
	return b.String()
}

// Tables lists the tables and views matching filter.
func (c *Catalog) Tables(ctx context.Context, filter TableFilter) ([]Table, error) {
	sql := TablesSQL(filter)
	if sql == "" {
		return nil, nil
	}

	key := cache.CacheKey{Kind: cache.KindTables, Schema: filter.Schema, Object: filter.Table, Types: filter.Types}
	rows, err := c.lookup(ctx, key, sql, TableColumns)
	if err != nil {
		return nil, err
	}

	tables := make([]Table, 0, len(rows))
	for _, r := range rows {
		tables = append(tables, Table{
			Catalog: r[0],
			Schema:  r[1],
			Name:    r[2],
			Type:    r[3],
			Remarks: r[4],
		})
	}
	return tables, nil
}
