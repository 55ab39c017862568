package pagination

import "testing"

func TestRewrite(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		offset   int
		pageSize int
		want     string
	}{
		{
			name:     "select gets paging clause",
			sql:      "SELECT * FROM orders",
			offset:   0,
			pageSize: 500,
			want:     "SELECT * FROM orders OFFSET 0 ROWS FETCH NEXT 500 ROWS ONLY",
		},
		{
			name:     "comments and whitespace normalized",
			sql:      "SELECT a, -- first\n  b /* second */\nFROM   t",
			offset:   20,
			pageSize: 10,
			want:     "SELECT a, b FROM t OFFSET 20 ROWS FETCH NEXT 10 ROWS ONLY",
		},
		{
			name:     "trailing semicolon dropped",
			sql:      "select 1 from dual;",
			offset:   5,
			pageSize: 5,
			want:     "select 1 from dual OFFSET 5 ROWS FETCH NEXT 5 ROWS ONLY",
		},
		{
			name:     "with query",
			sql:      "WITH x AS (SELECT 1 a FROM dual) SELECT a FROM x",
			offset:   0,
			pageSize: 2,
			want:     "WITH x AS (SELECT 1 a FROM dual) SELECT a FROM x OFFSET 0 ROWS FETCH NEXT 2 ROWS ONLY",
		},
		{
			name:     "negative offset clamped",
			sql:      "SELECT 1 FROM dual",
			offset:   -3,
			pageSize: 1,
			want:     "SELECT 1 FROM dual OFFSET 0 ROWS FETCH NEXT 1 ROWS ONLY",
		},
		{
			name:     "already paginated unchanged",
			sql:      "SELECT * FROM t OFFSET 10 ROWS FETCH NEXT 5 ROWS ONLY",
			offset:   0,
			pageSize: 500,
			want:     "SELECT * FROM t OFFSET 10 ROWS FETCH NEXT 5 ROWS ONLY",
		},
		{
			name:     "rownum unchanged",
			sql:      "SELECT * FROM t WHERE ROWNUM <= 10",
			offset:   0,
			pageSize: 500,
			want:     "SELECT * FROM t WHERE ROWNUM <= 10",
		},
		{
			name:     "non-select unchanged",
			sql:      "  DELETE FROM t  ",
			offset:   0,
			pageSize: 500,
			want:     "  DELETE FROM t  ",
		},
		{
			name:     "paging disabled",
			sql:      "  SELECT * FROM t  ",
			offset:   100,
			pageSize: 0,
			want:     "SELECT * FROM t",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Rewrite(tt.sql, tt.offset, tt.pageSize); got != tt.want {
				t.Errorf("Rewrite() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRewrite_Idempotent(t *testing.T) {
	statements := []string{
		"SELECT * FROM orders",
		"select a from t where b = 'x -- y'",
		"UPDATE t SET a = 1",
		"SELECT * FROM t FETCH FIRST 3 ROWS ONLY",
		"WITH q AS (SELECT 1 FROM dual) SELECT * FROM q",
	}

	for _, sql := range statements {
		once := Rewrite(sql, 40, 20)
		if again := Rewrite(sql, 40, 20); again != once {
			t.Errorf("Rewrite(%q) not deterministic: %q vs %q", sql, once, again)
		}
		if twice := Rewrite(once, 40, 20); twice != once {
			t.Errorf("Rewrite(Rewrite(%q)) = %q, want %q", sql, twice, once)
		}
	}
}

func TestQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   Query
		wantErr bool
	}{
		{"valid", Query{SQL: "SELECT 1 FROM dual", Endpoint: "http://x"}, false},
		{"missing sql", Query{SQL: "  ", Endpoint: "http://x"}, true},
		{"missing endpoint", Query{SQL: "SELECT 1 FROM dual"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestQuery_Request(t *testing.T) {
	q := Query{
		SQL:        "SELECT a FROM t",
		Endpoint:   "http://svc/report",
		Username:   "u",
		Password:   "p",
		ReportPath: "/r.xdo",
		PageSize:   3,
	}
	req := q.Request(6)

	if req.SQL != "SELECT a FROM t OFFSET 6 ROWS FETCH NEXT 3 ROWS ONLY" {
		t.Errorf("SQL = %q", req.SQL)
	}
	if req.Endpoint != q.Endpoint || req.Username != "u" || req.Password != "p" || req.ReportPath != "/r.xdo" {
		t.Errorf("Request() = %+v, fields not carried over", req)
	}
	if q.SQL != "SELECT a FROM t" {
		t.Errorf("query SQL mutated to %q", q.SQL)
	}
}

func TestQuery_Paged(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		pageSize int
		want     bool
	}{
		{"plain select", "SELECT a FROM t", 10, true},
		{"with clause", "WITH x AS (SELECT 1 FROM dual) SELECT * FROM x", 10, true},
		{"paging disabled", "SELECT a FROM t", 0, false},
		{"fetch first", "SELECT a FROM t FETCH FIRST 2 ROWS ONLY", 10, false},
		{"rownum", "SELECT a FROM t WHERE ROWNUM <= 5", 10, false},
		{"not a query", "UPDATE t SET a = 1", 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Query{SQL: tt.sql, Endpoint: "http://svc", PageSize: tt.pageSize}
			if got := q.Paged(); got != tt.want {
				t.Errorf("Paged() = %v, want %v", got, tt.want)
			}
		})
	}
}
