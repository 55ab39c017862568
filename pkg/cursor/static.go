package cursor

import (
	"context"

	"github.com/Sternrassler/reportsql/pkg/pagination"
)

// StaticSource serves a fixed set of rows as a single short page.
type StaticSource struct {
	rows     []*pagination.Row
	identity *pagination.ColumnIdentity
}

// NewStaticSource creates a source for rows of values in columns order.
// Values beyond the column list are ignored.
func NewStaticSource(columns []string, values [][]string) *StaticSource {
	identity := pagination.NewColumnIdentity()
	keys := make([]string, len(columns))
	for i, c := range columns {
		keys[i], _ = identity.Record(c)
	}

	rows := make([]*pagination.Row, 0, len(values))
	for _, vals := range values {
		row := pagination.NewRow()
		for i, v := range vals {
			if i < len(keys) {
				row.Set(keys[i], v)
			}
		}
		rows = append(rows, row)
	}
	return &StaticSource{rows: rows, identity: identity}
}

// FetchNextPage returns every row at offset 0 and nothing afterwards.
func (s *StaticSource) FetchNextPage(ctx context.Context, offset int) (pagination.Page, error) {
	if err := ctx.Err(); err != nil {
		return pagination.Page{}, err
	}
	if offset > 0 {
		return pagination.Page{Offset: offset}, nil
	}
	return pagination.Page{Rows: s.rows}, nil
}

// Recycle is a no-op; static rows are not pooled.
func (s *StaticSource) Recycle([]*pagination.Row) {}

// Identity returns the column identity of the rows.
func (s *StaticSource) Identity() *pagination.ColumnIdentity {
	return s.identity
}
