package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/reportsql/internal/testutil"
	"github.com/Sternrassler/reportsql/pkg/logging"
	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	c, err := New(Config{Timeout: 5 * time.Second, UserAgent: "reportsql-test"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func newRequest(endpoint, sql string) Request {
	return Request{
		Endpoint:   endpoint,
		SQL:        sql,
		Username:   "scott",
		Password:   "tiger",
		ReportPath: "/Custom/reportsql/query.xdo",
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
	}{
		{"default config", DefaultConfig(), false},
		{"zero timeout", Config{}, true},
		{"negative timeout", Config{Timeout: -time.Second}, true},
		{"custom http client", Config{HTTPClient: &http.Client{}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.config)
			if tt.expectError {
				if err == nil {
					t.Error("New() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if c == nil {
				t.Fatal("New() returned nil client")
			}
		})
	}
}

func TestShared_ReturnsSameInstance(t *testing.T) {
	first, err := Shared(DefaultConfig())
	if err != nil {
		t.Fatalf("Shared() error = %v", err)
	}
	second, err := Shared(Config{Timeout: time.Second})
	if err != nil {
		t.Fatalf("Shared() error = %v", err)
	}
	if first != second {
		t.Error("Shared() returned different instances")
	}
}

func TestSend_Success(t *testing.T) {
	mock := testutil.NewMockReportService()
	defer mock.Close()
	mock.Script(testutil.NewRowsResponse("<ROWSET><ROW><A>1</A></ROW></ROWSET>"))

	c := newTestClient(t)
	payload, err := c.Send(context.Background(), newRequest(mock.URL(), "SELECT a -- the column\n  FROM   t"))
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if payload != "<ROWSET><ROW><A>1</A></ROW></ROWSET>" {
		t.Errorf("payload = %q", payload)
	}

	statements := mock.GetStatements()
	if len(statements) != 1 || statements[0] != "SELECT a FROM t" {
		t.Errorf("statements = %q, want [SELECT a FROM t]", statements)
	}

	header := mock.GetLastRequestHeader()
	checks := map[string]string{
		"Content-Type":    ContentType,
		"Soapaction":      SOAPAction,
		"Accept-Encoding": "gzip",
		"User-Agent":      "reportsql-test",
		"Authorization":   "Basic " + base64.StdEncoding.EncodeToString([]byte("scott:tiger")),
	}
	for key, want := range checks {
		if got := header.Get(key); got != want {
			t.Errorf("header %s = %q, want %q", key, got, want)
		}
	}
}

func TestSend_LogsTruncatedStatement(t *testing.T) {
	mock := testutil.NewMockReportService()
	defer mock.Close()
	mock.Script(testutil.NewRowsResponse("<ROWSET/>"))

	var buf bytes.Buffer
	c := newTestClient(t)
	c.logger = zerolog.New(&buf).Level(zerolog.DebugLevel)

	sql := "SELECT " + strings.Repeat("col, ", 100) + "x FROM t"
	if _, err := c.Send(context.Background(), newRequest(mock.URL(), sql)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	var entry struct {
		SQL string `json:"sql"`
	}
	line, _, _ := strings.Cut(buf.String(), "\n")
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", line, err)
	}
	if entry.SQL != logging.Statement(sql) {
		t.Errorf("logged sql = %q, want %q", entry.SQL, logging.Statement(sql))
	}
	if !strings.HasSuffix(entry.SQL, "...") {
		t.Errorf("logged sql = %q, want truncated statement", entry.SQL)
	}
}

func TestSend_GzipTransparency(t *testing.T) {
	payload := "<ROWSET><ROW><A>1</A><B>two</B></ROW></ROWSET>"

	mock := testutil.NewMockReportService()
	defer mock.Close()
	mock.Script(testutil.NewRowsResponse(payload), testutil.NewGzipRowsResponse(payload))

	c := newTestClient(t)
	plain, err := c.Send(context.Background(), newRequest(mock.URL(), "SELECT a, b FROM t"))
	if err != nil {
		t.Fatalf("Send(plain) error = %v", err)
	}
	compressed, err := c.Send(context.Background(), newRequest(mock.URL(), "SELECT a, b FROM t"))
	if err != nil {
		t.Fatalf("Send(gzip) error = %v", err)
	}
	if plain != compressed {
		t.Errorf("gzip payload = %q, want %q", compressed, plain)
	}
}

func TestSend_Failures(t *testing.T) {
	tests := []struct {
		name          string
		response      testutil.MockResponse
		wantKind      Kind
		wantStatus    int
		wantRetryable bool
	}{
		{
			name:          "service unavailable",
			response:      testutil.NewServerErrorResponse(),
			wantKind:      KindService,
			wantStatus:    503,
			wantRetryable: true,
		},
		{
			name:          "domain error on server error",
			response:      testutil.NewFaultResponse(500, "ORA-00942: table or view does not exist"),
			wantKind:      KindDomain,
			wantStatus:    500,
			wantRetryable: false,
		},
		{
			name:          "html gateway page",
			response:      testutil.NewHTMLErrorResponse(502, "Bad Gateway"),
			wantKind:      KindService,
			wantStatus:    502,
			wantRetryable: true,
		},
		{
			name:          "unauthorized",
			response:      testutil.NewHTMLErrorResponse(401, "Unauthorized"),
			wantKind:      KindService,
			wantStatus:    401,
			wantRetryable: false,
		},
		{
			name:          "empty body on success",
			response:      testutil.NewEmptyResponse(200),
			wantKind:      KindMalformed,
			wantStatus:    200,
			wantRetryable: false,
		},
		{
			name:          "missing payload element",
			response:      testutil.MockResponse{StatusCode: 200, Body: "<env:Envelope/>"},
			wantKind:      KindMalformed,
			wantStatus:    200,
			wantRetryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockReportService()
			defer mock.Close()
			mock.Script(tt.response)

			c := newTestClient(t)
			_, err := c.Send(context.Background(), newRequest(mock.URL(), "SELECT 1 FROM dual"))

			var e *Error
			if !errors.As(err, &e) {
				t.Fatalf("Send() error = %v, want *Error", err)
			}
			if e.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", e.Kind, tt.wantKind)
			}
			if e.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", e.StatusCode, tt.wantStatus)
			}
			if got := Retryable(err); got != tt.wantRetryable {
				t.Errorf("Retryable() = %v, want %v", got, tt.wantRetryable)
			}
		})
	}
}

func TestSend_TransportError(t *testing.T) {
	mock := testutil.NewMockReportService()
	url := mock.URL()
	mock.Close()

	c := newTestClient(t)
	_, err := c.Send(context.Background(), newRequest(url, "SELECT 1 FROM dual"))

	var e *Error
	if !errors.As(err, &e) || e.Kind != KindTransport {
		t.Fatalf("Send() error = %v, want transport error", err)
	}
	if !Retryable(err) {
		t.Error("transport error should be retryable")
	}
}

func TestSend_ContextCancelled(t *testing.T) {
	mock := testutil.NewMockReportService()
	defer mock.Close()
	mock.Script(testutil.MockResponse{StatusCode: 200, Body: testutil.SOAPResponseBody("<ROWSET/>"), Delay: 200 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := newTestClient(t)
	_, err := c.Send(ctx, newRequest(mock.URL(), "SELECT 1 FROM dual"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Send() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestSend_RetriedThroughRun(t *testing.T) {
	mock := testutil.NewMockReportService()
	defer mock.Close()
	mock.Script(
		testutil.NewServerErrorResponse(),
		testutil.NewHTMLErrorResponse(504, "Gateway Timeout"),
		testutil.NewRowsResponse("<ROWSET><ROW><A>1</A></ROW></ROWSET>"),
	)

	c := newTestClient(t)
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2.0}
	req := newRequest(mock.URL(), "SELECT a FROM t")

	payload, err := Run(context.Background(), "send", policy, func(ctx context.Context) (string, error) {
		return c.Send(ctx, req)
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if payload == "" {
		t.Error("payload is empty")
	}
	if got := mock.GetRequestCount(); got != 3 {
		t.Errorf("request count = %d, want 3", got)
	}
}

func TestSend_MissingEndpoint(t *testing.T) {
	c := newTestClient(t)
	if _, err := c.Send(context.Background(), Request{SQL: "SELECT 1 FROM dual"}); err == nil {
		t.Error("Send() error = nil, want error")
	}
}
