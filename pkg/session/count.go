package session

import (
	"context"
	"regexp"
	"strconv"

	"github.com/Sternrassler/reportsql/pkg/client"
	"github.com/Sternrassler/reportsql/pkg/cursor"
	"github.com/Sternrassler/reportsql/pkg/logging"
	"github.com/Sternrassler/reportsql/pkg/sqltext"
)

// CountColumn names the single column of a count result.
const CountColumn = "COUNT"

var (
	// Row-count wrappers some SQL tools put around a table:
	//   SELECT COUNT(*) FROM (SELECT * FROM t) dbvrcnt
	//   SELECT COUNT(*) FROM (SELECT COUNT(*) FROM t) dbvrcnt
	wrappedCount = regexp.MustCompile(`(?is)^\s*SELECT\s+COUNT\(\*\)\s+FROM\s+\(\s*SELECT\s+(?:\*|COUNT\(\*\))\s+FROM\s+([^\s)]+)\s*\)\s+dbvrcnt\b`)
	plainCount   = regexp.MustCompile(`(?is)^\s*SELECT\s+COUNT\(\*\)`)
	trailingPage = regexp.MustCompile(`(?is)\s+OFFSET\s+\d+\s+ROWS\s+FETCH\s+NEXT\s+\d+\s+ROWS\s+ONLY\s*;?\s*$`)

	literalCount = regexp.MustCompile(`(?i)<\s*COUNT[^>]*>\s*(\d+)\s*</\s*COUNT[^>]*>`)
	escapedCount = regexp.MustCompile(`(?i)&lt;\s*COUNT[^&]*&gt;\s*(\d+)\s*&lt;/\s*COUNT[^&]*&gt;`)
)

// countStatement returns the statement to run for a row-count query, and
// false when sql is not one.
func countStatement(sql string) (string, bool) {
	normalized := sqltext.Normalize(sql)
	if m := wrappedCount.FindStringSubmatch(normalized); m != nil {
		return "SELECT COUNT(*) FROM " + m[1], true
	}
	if plainCount.MatchString(normalized) {
		return trailingPage.ReplaceAllString(normalized, ""), true
	}
	return "", false
}

// parseCount extracts the count from a report payload. Payloads without a
// COUNT element fall back to the first numeric value of the first row.
func (s *Session) parseCount(payload string) (int64, bool) {
	for _, re := range []*regexp.Regexp{literalCount, escapedCount} {
		if m := re.FindStringSubmatch(payload); m != nil {
			if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
				return n, true
			}
		}
	}

	res, err := s.parser.Parse(payload)
	if err != nil || len(res.Records) == 0 {
		return 0, false
	}
	for _, f := range res.Records[0] {
		if n, err := cursor.ToInt64(f.Value); err == nil {
			return n, true
		}
	}
	return 0, false
}

// count runs a row-count statement unpaged and returns its result as a
// one-row cursor.
func (s *Session) count(ctx context.Context, sql string) (*cursor.Cursor, error) {
	req := s.query(sql).Request(0)
	req.SQL = sql

	payload, err := client.Run(ctx, "count", s.cfg.Retry, func(ctx context.Context) (string, error) {
		return s.sender.Send(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	n, ok := s.parseCount(payload)
	if !ok {
		s.logger.Warn().
			Str("statement", logging.Statement(sql)).
			Msg("No count in response, reporting 0")
	}
	s.logger.Debug().
		Str("statement", logging.Statement(sql)).
		Int64("count", n).
		Msg("Count query executed")

	src := cursor.NewStaticSource([]string{CountColumn}, [][]string{{strconv.FormatInt(n, 10)}})
	return cursor.Open(ctx, src)
}
