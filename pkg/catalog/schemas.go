package catalog

import (
	"context"

	"github.com/Sternrassler/reportsql/pkg/cache"
	"github.com/Sternrassler/reportsql/pkg/sqltext"
)

// SchemaColumns are the columns of a schema listing.
var SchemaColumns = []string{"TABLE_SCHEM", "TABLE_CATALOG"}

// SchemasSQL returns the dictionary query for schemas matching pattern.
func SchemasSQL(pattern string) string {
	sql := "SELECT username AS TABLE_SCHEM, NULL AS TABLE_CATALOG FROM all_users"
	if pattern != "" {
		sql += " WHERE username LIKE " + sqltext.Quote(pattern)
	}
	return sql + " ORDER BY username"
}

// Schemas lists the schema names matching the LIKE pattern.
func (c *Catalog) Schemas(ctx context.Context, pattern string) ([]string, error) {
	key := cache.CacheKey{Kind: cache.KindSchemas, Schema: pattern}
	rows, err := c.lookup(ctx, key, SchemasSQL(pattern), SchemaColumns)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r[0])
	}
	return names, nil
}
