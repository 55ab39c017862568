package pagination

import (
	"fmt"
	"strings"

	"github.com/Sternrassler/reportsql/pkg/client"
	"github.com/Sternrassler/reportsql/pkg/sqltext"
)

// DefaultPageSize is the number of rows requested per page.
const DefaultPageSize = 500

// Query is one statement bound to a report service. It is never modified;
// each page request derives its own statement through Rewrite.
type Query struct {
	SQL        string
	Endpoint   string
	Username   string
	Password   string
	ReportPath string

	// PageSize is the number of rows per page. Zero or less disables
	// paging and sends the statement as-is.
	PageSize int
}

// Validate checks that the query can be sent.
func (q Query) Validate() error {
	if strings.TrimSpace(q.SQL) == "" {
		return fmt.Errorf("sql is required")
	}
	if q.Endpoint == "" {
		return fmt.Errorf("endpoint is required")
	}
	return nil
}

// Request returns the transport request for the page starting at offset.
func (q Query) Request(offset int) client.Request {
	return client.Request{
		Endpoint:   q.Endpoint,
		SQL:        Rewrite(q.SQL, offset, q.PageSize),
		Username:   q.Username,
		Password:   q.Password,
		ReportPath: q.ReportPath,
	}
}

// Paged reports whether page requests carry an appended OFFSET/FETCH
// clause. A statement that limits its own rows is fetched as one page.
func (q Query) Paged() bool {
	if q.PageSize <= 0 {
		return false
	}
	normalized := sqltext.Normalize(q.SQL)
	return sqltext.IsQuery(normalized) && !sqltext.HasPaging(normalized)
}

// Rewrite returns the statement that fetches pageSize rows starting at
// offset. Statements that are not queries, or that already limit their
// rows, are returned unchanged, which makes Rewrite idempotent.
func Rewrite(sql string, offset, pageSize int) string {
	if pageSize <= 0 {
		return strings.TrimSpace(sql)
	}
	normalized := sqltext.Normalize(sql)
	if !sqltext.IsQuery(normalized) || sqltext.HasPaging(normalized) {
		return sql
	}
	if offset < 0 {
		offset = 0
	}
	normalized = strings.TrimRight(normalized, "; ")
	return fmt.Sprintf("%s OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", normalized, offset, pageSize)
}
