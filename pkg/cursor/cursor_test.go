package cursor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Sternrassler/reportsql/internal/testutil"
	"github.com/Sternrassler/reportsql/pkg/client"
	"github.com/Sternrassler/reportsql/pkg/pagination"
)

// payloadSender answers every request from a fixed list of payloads and
// records the requests it saw.
type payloadSender struct {
	payloads []string
	err      error
	requests []client.Request
}

func (s *payloadSender) Send(ctx context.Context, req client.Request) (string, error) {
	i := len(s.requests)
	s.requests = append(s.requests, req)
	if s.err != nil {
		return "", s.err
	}
	if i < len(s.payloads) {
		return s.payloads[i], nil
	}
	return "<ROWSET/>", nil
}

func testPolicy() client.RetryPolicy {
	return client.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2.0}
}

func openCursor(t *testing.T, sender pagination.Sender, pageSize int) (*Cursor, *pagination.Engine) {
	t.Helper()

	engine, err := pagination.NewEngine(sender, pagination.Query{
		SQL:      "SELECT a FROM t",
		Endpoint: "http://svc",
		PageSize: pageSize,
	}, pagination.Config{Policy: testPolicy()})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	c, err := Open(context.Background(), engine)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return c, engine
}

func collect(t *testing.T, c *Cursor, column string) []string {
	t.Helper()

	var out []string
	for {
		ok, err := c.Next(context.Background())
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if !ok {
			return out
		}
		v, err := c.Value(column)
		if err != nil {
			t.Fatalf("Value(%q) error = %v", column, err)
		}
		out = append(out, v)
	}
}

func TestCursor_RoundTripAgainstService(t *testing.T) {
	mock := testutil.NewMockReportService()
	defer mock.Close()

	mock.Script(
		testutil.NewRowsResponse("<ROWSET><ROW><A>1</A></ROW></ROWSET>"),
		testutil.NewRowsResponse("<ROWSET><ROW><A>2</A></ROW></ROWSET>"),
		testutil.NewRowsResponse("<ROWSET/>"),
	)

	transport, err := client.New(client.Config{Timeout: 5 * time.Second, UserAgent: "test"})
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}
	defer transport.Close()

	engine, err := pagination.NewEngine(transport, pagination.Query{
		SQL:      "SELECT a FROM t",
		Endpoint: mock.URL(),
		PageSize: 1,
	}, pagination.Config{Policy: testPolicy()})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	c, err := Open(context.Background(), engine)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer c.Close()

	got := collect(t, c, "a")
	if len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Errorf("values = %v, want [1 2]", got)
	}
	if n := mock.GetRequestCount(); n != 3 {
		t.Errorf("requests = %d, want 3", n)
	}
	if c.State() != StateExhausted {
		t.Errorf("State() = %v, want %v", c.State(), StateExhausted)
	}

	statements := mock.GetStatements()
	want := []string{
		"SELECT a FROM t OFFSET 0 ROWS FETCH NEXT 1 ROWS ONLY",
		"SELECT a FROM t OFFSET 1 ROWS FETCH NEXT 1 ROWS ONLY",
		"SELECT a FROM t OFFSET 2 ROWS FETCH NEXT 1 ROWS ONLY",
	}
	for i, w := range want {
		if i >= len(statements) || statements[i] != w {
			t.Errorf("statement[%d] = %v, want %q", i, statements, w)
		}
	}
}

func TestCursor_ShortPageEndsIteration(t *testing.T) {
	sender := &payloadSender{payloads: []string{
		"<ROWSET><ROW><A>1</A></ROW><ROW><A>2</A></ROW></ROWSET>",
		"<ROWSET><ROW><A>3</A></ROW></ROWSET>",
		"<ROWSET><ROW><A>never</A></ROW></ROWSET>",
	}}
	c, _ := openCursor(t, sender, 2)

	got := collect(t, c, "A")
	if len(got) != 3 || got[2] != "3" {
		t.Errorf("values = %v, want [1 2 3]", got)
	}
	if len(sender.requests) != 2 {
		t.Errorf("requests = %d, want 2", len(sender.requests))
	}

	// Exhaustion is terminal and does not fetch again.
	for i := 0; i < 3; i++ {
		ok, err := c.Next(context.Background())
		if ok || err != nil {
			t.Errorf("Next() after exhaustion = %v, %v, want false, nil", ok, err)
		}
	}
	if len(sender.requests) != 2 {
		t.Errorf("requests after exhaustion = %d, want 2", len(sender.requests))
	}
	if p := c.Position(); p.Offset != 3 || p.LastPageFull {
		t.Errorf("Position() = %+v, want offset 3 and last page short", p)
	}
}

func TestCursor_EmptyResult(t *testing.T) {
	sender := &payloadSender{payloads: []string{"<ROWSET/>"}}
	c, _ := openCursor(t, sender, 10)

	ok, err := c.Next(context.Background())
	if ok || err != nil {
		t.Errorf("Next() = %v, %v, want false, nil", ok, err)
	}
	if len(sender.requests) != 1 {
		t.Errorf("requests = %d, want 1", len(sender.requests))
	}
}

func TestCursor_UnpagedStatementFetchesOnce(t *testing.T) {
	sender := &payloadSender{payloads: []string{
		"<ROWSET><ROW><A>1</A></ROW><ROW><A>2</A></ROW></ROWSET>",
	}}
	c, _ := openCursor(t, sender, 0)

	if got := collect(t, c, "a"); len(got) != 2 {
		t.Errorf("values = %v, want 2 rows", got)
	}
	if len(sender.requests) != 1 {
		t.Errorf("requests = %d, want 1", len(sender.requests))
	}
}

func TestCursor_OpenFailure(t *testing.T) {
	sender := &payloadSender{err: &client.Error{Kind: client.KindDomain, Code: "ORA-00942", Message: "ORA-00942: table or view does not exist"}}

	engine, err := pagination.NewEngine(sender, pagination.Query{SQL: "SELECT a FROM t", Endpoint: "http://svc", PageSize: 5}, pagination.Config{Policy: testPolicy()})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	_, err = Open(context.Background(), engine)
	var ce *client.Error
	if !errors.As(err, &ce) || ce.Kind != client.KindDomain {
		t.Errorf("Open() error = %v, want domain error", err)
	}
	if len(sender.requests) != 1 {
		t.Errorf("requests = %d, want 1 (domain errors are not retried)", len(sender.requests))
	}
}

// flakySender fails the requests whose index is in failures and answers
// the rest from payloads in order.
type flakySender struct {
	payloads []string
	failures map[int]error
	requests []client.Request
}

func (s *flakySender) Send(ctx context.Context, req client.Request) (string, error) {
	i := len(s.requests)
	s.requests = append(s.requests, req)
	if err, ok := s.failures[i]; ok {
		return "", err
	}
	if len(s.payloads) == 0 {
		return "<ROWSET/>", nil
	}
	p := s.payloads[0]
	s.payloads = s.payloads[1:]
	return p, nil
}

func TestCursor_FetchFailureMidIteration(t *testing.T) {
	failure := &client.Error{Kind: client.KindDomain, Code: "ORA-00942", Message: "ORA-00942: table or view does not exist"}
	sender := &flakySender{
		payloads: []string{
			"<ROWSET><ROW><A>1</A></ROW></ROWSET>",
			"<ROWSET><ROW><A>2</A></ROW></ROWSET>",
		},
		failures: map[int]error{1: failure},
	}
	c, _ := openCursor(t, sender, 1)
	defer c.Close()

	ok, err := c.Next(context.Background())
	if !ok || err != nil {
		t.Fatalf("Next() = %v, %v, want true, nil", ok, err)
	}

	ok, err = c.Next(context.Background())
	if ok || !errors.Is(err, failure) {
		t.Fatalf("Next() = %v, %v, want false, %v", ok, err, failure)
	}
	if c.State() != StateBeforeFirst {
		t.Errorf("State() after failed fetch = %v, want %v", c.State(), StateBeforeFirst)
	}
	if _, err := c.Row(); !errors.Is(err, ErrNoRow) {
		t.Errorf("Row() after failed fetch error = %v, want %v", err, ErrNoRow)
	}
	if _, err := c.Value("a"); !errors.Is(err, ErrNoRow) {
		t.Errorf("Value() after failed fetch error = %v, want %v", err, ErrNoRow)
	}
	if _, err := c.Values(); !errors.Is(err, ErrNoRow) {
		t.Errorf("Values() after failed fetch error = %v, want %v", err, ErrNoRow)
	}

	got := collect(t, c, "a")
	if len(got) != 1 || got[0] != "2" {
		t.Errorf("values after retry = %v, want [2]", got)
	}
	if len(sender.requests) != 4 {
		t.Fatalf("requests = %d, want 4", len(sender.requests))
	}
	if sender.requests[1].SQL != sender.requests[2].SQL {
		t.Errorf("retried statement = %q, want %q", sender.requests[2].SQL, sender.requests[1].SQL)
	}
}

func TestCursor_ValuesAndColumns(t *testing.T) {
	sender := &payloadSender{payloads: []string{
		"<ROWSET><ROW><Id>1</Id><Name>a</Name></ROW><ROW><Id>2</Id></ROW></ROWSET>",
	}}
	c, _ := openCursor(t, sender, 10)

	cols := c.Columns()
	if len(cols) != 2 || cols[0] != "Id" || cols[1] != "Name" {
		t.Errorf("Columns() = %v, want [Id Name]", cols)
	}

	if _, err := c.Row(); !errors.Is(err, ErrNoRow) {
		t.Errorf("Row() before Next error = %v, want %v", err, ErrNoRow)
	}

	c.Next(context.Background())
	c.Next(context.Background())

	v, err := c.Value("NAME")
	if err != nil || v != "" {
		t.Errorf("Value(NAME) on row without it = %q, %v, want \"\", nil", v, err)
	}
	if _, err := c.Value("missing"); !errors.Is(err, ErrUnknownColumn) {
		t.Errorf("Value(missing) error = %v, want %v", err, ErrUnknownColumn)
	}

	values, err := c.Values()
	if err != nil {
		t.Fatalf("Values() error = %v", err)
	}
	if len(values) != 2 || values[0] != "2" || values[1] != "" {
		t.Errorf("Values() = %v, want [2 \"\"]", values)
	}
}

func TestCursor_ForwardOnly(t *testing.T) {
	c, _ := openCursor(t, &payloadSender{}, 10)

	tests := []struct {
		name string
		fn   func() error
	}{
		{"rewind", c.Rewind},
		{"seek", func() error { return c.Seek(1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			var ue *UsageError
			if !errors.As(err, &ue) {
				t.Fatalf("error = %v, want *UsageError", err)
			}
			if !errors.Is(err, ErrForwardOnly) {
				t.Errorf("error = %v, want %v", err, ErrForwardOnly)
			}
		})
	}
}

func TestCursor_Close(t *testing.T) {
	sender := &payloadSender{payloads: []string{"<ROWSET><ROW><A>1</A></ROW></ROWSET>"}}
	c, _ := openCursor(t, sender, 10)
	c.Next(context.Background())

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
	if _, err := c.Next(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Next() after Close error = %v, want %v", err, ErrClosed)
	}
	if _, err := c.Value("a"); !errors.Is(err, ErrClosed) {
		t.Errorf("Value() after Close error = %v, want %v", err, ErrClosed)
	}
	if c.Columns() != nil {
		t.Errorf("Columns() after Close = %v, want nil", c.Columns())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateBeforeFirst, "before_first"},
		{StatePositioned, "positioned"},
		{StateExhausted, "exhausted"},
		{StateClosed, "closed"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
