// Package sqltext holds the small amount of SQL text handling the report
// protocol needs: comment stripping, whitespace normalization and statement
// classification. It is not a SQL parser.
package sqltext

import (
	"regexp"
	"strings"
)

var (
	pagingKeywords = regexp.MustCompile(`(?i)\b(OFFSET|FETCH|ROWNUM|LIMIT)\b`)
	leadingKeyword = regexp.MustCompile(`^\(*\s*([A-Za-z]+)`)
)

// StripComments removes "--" line comments and "/* */" block comments.
// Comment markers inside single-quoted literals or double-quoted identifiers
// are left alone. Each comment is replaced by a single space so that tokens
// on either side do not merge.
func StripComments(sql string) string {
	var b strings.Builder
	b.Grow(len(sql))

	n := len(sql)
	for i := 0; i < n; i++ {
		c := sql[i]
		switch {
		case c == '\'' || c == '"':
			j := i + 1
			for j < n {
				if sql[j] == c {
					// doubled quote is an escaped quote
					if j+1 < n && sql[j+1] == c {
						j += 2
						continue
					}
					break
				}
				j++
			}
			if j >= n {
				b.WriteString(sql[i:])
				return b.String()
			}
			b.WriteString(sql[i : j+1])
			i = j
		case c == '-' && i+1 < n && sql[i+1] == '-':
			j := strings.IndexByte(sql[i:], '\n')
			b.WriteByte(' ')
			if j < 0 {
				return b.String()
			}
			i += j - 1
		case c == '/' && i+1 < n && sql[i+1] == '*':
			j := strings.Index(sql[i+2:], "*/")
			b.WriteByte(' ')
			if j < 0 {
				return b.String()
			}
			i += j + 3
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Normalize strips comments and collapses every whitespace run to a single
// space.
func Normalize(sql string) string {
	return strings.Join(strings.Fields(StripComments(sql)), " ")
}

// Keyword returns the upper-cased first keyword of the statement, skipping
// leading parentheses. It returns "" when the statement does not start with
// a word.
func Keyword(sql string) string {
	m := leadingKeyword.FindStringSubmatch(Normalize(sql))
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

// IsQuery reports whether the statement is a SELECT or a WITH query.
func IsQuery(sql string) bool {
	switch Keyword(sql) {
	case "SELECT", "WITH":
		return true
	}
	return false
}

// HasPaging reports whether the statement already limits its rows with
// OFFSET, FETCH, ROWNUM or LIMIT.
func HasPaging(sql string) bool {
	return pagingKeywords.MatchString(sql)
}

// Quote renders s as a single-quoted SQL literal.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
