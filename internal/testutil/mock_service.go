// Package testutil provides testing utilities for the report service client.
package testutil

import (
	"bytes"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
)

const (
	soapNamespace   = "http://www.w3.org/2003/05/soap-envelope"
	reportNamespace = "http://xmlns.oracle.com/oxp/service/PublicReportService"
)

var cdataPattern = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)

// MockResponse defines one answer of the mock report service.
type MockResponse struct {
	StatusCode int
	Body       string
	Gzip       bool
	Headers    map[string]string
	Delay      time.Duration
}

// MockReportService is a configurable runReport endpoint for testing.
// Scripted responses are served in order; once the script runs out the
// last response is repeated, or an empty row set is served if nothing was
// scripted.
type MockReportService struct {
	server    *httptest.Server
	mu        sync.RWMutex
	script    []MockResponse
	responder func(sql string) MockResponse

	// Tracking
	RequestCount      int
	Statements        []string
	LastRequestHeader http.Header
}

// NewMockReportService creates and starts a new mock report service.
func NewMockReportService() *MockReportService {
	mock := &MockReportService{}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		envelope, _ := io.ReadAll(r.Body)
		sql := StatementFromEnvelope(string(envelope))

		mock.mu.Lock()
		index := mock.RequestCount
		mock.RequestCount++
		mock.Statements = append(mock.Statements, sql)
		mock.LastRequestHeader = r.Header.Clone()
		responder := mock.responder
		var resp MockResponse
		switch {
		case responder != nil:
		case len(mock.script) == 0:
			resp = NewRowsResponse("<ROWSET/>")
		case index < len(mock.script):
			resp = mock.script[index]
		default:
			resp = mock.script[len(mock.script)-1]
		}
		mock.mu.Unlock()

		if responder != nil {
			resp = responder(sql)
		}
		writeResponse(w, resp)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockReportService) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockReportService) Close() {
	m.server.Close()
}

// Reset clears the script and all tracking counters.
func (m *MockReportService) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = nil
	m.responder = nil
	m.RequestCount = 0
	m.Statements = nil
	m.LastRequestHeader = nil
}

// Script replaces the queue of responses served in order.
func (m *MockReportService) Script(responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = responses
}

// SetResponder answers every request by calling fn with the received
// statement. It takes precedence over the script.
func (m *MockReportService) SetResponder(fn func(sql string) MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responder = fn
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockReportService) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetStatements returns the statements received so far, in order.
func (m *MockReportService) GetStatements() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.Statements...)
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockReportService) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

// StatementFromEnvelope returns the SQL carried in the CDATA sections of a
// runReport envelope.
func StatementFromEnvelope(envelope string) string {
	var b strings.Builder
	for _, m := range cdataPattern.FindAllStringSubmatch(envelope, -1) {
		b.WriteString(m[1])
	}
	return b.String()
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/soap+xml;charset=UTF-8")
	}

	body := []byte(resp.Body)
	if resp.Gzip {
		body = Gzip(body)
		w.Header().Set("Content-Encoding", "gzip")
	}

	w.WriteHeader(resp.StatusCode)
	if len(body) > 0 {
		w.Write(body)
	}
}

// Gzip compresses data.
func Gzip(data []byte) []byte {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write(data)
	zw.Close()
	return buf.Bytes()
}

// SOAPResponseBody wraps a report payload in a runReport response envelope.
func SOAPResponseBody(payload string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>` +
		`<env:Envelope xmlns:env="` + soapNamespace + `">` +
		`<env:Body><ns2:runReportResponse xmlns:ns2="` + reportNamespace + `">` +
		`<ns2:runReportReturn>` +
		`<ns2:reportBytes>` + base64.StdEncoding.EncodeToString([]byte(payload)) + `</ns2:reportBytes>` +
		`<ns2:reportContentType>text/xml</ns2:reportContentType>` +
		`</ns2:runReportReturn></ns2:runReportResponse></env:Body></env:Envelope>`
}

// SOAPFaultBody renders a SOAP 1.2 fault with the given reason.
func SOAPFaultBody(reason string) string {
	var escaped bytes.Buffer
	escapeText(&escaped, reason)
	return `<?xml version="1.0" encoding="UTF-8"?>` +
		`<env:Envelope xmlns:env="` + soapNamespace + `"><env:Body><env:Fault>` +
		`<env:Code><env:Value>env:Receiver</env:Value></env:Code>` +
		`<env:Reason><env:Text xml:lang="en-US">` + escaped.String() + `</env:Text></env:Reason>` +
		`</env:Fault></env:Body></env:Envelope>`
}

func escapeText(buf *bytes.Buffer, s string) {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	buf.WriteString(r.Replace(s))
}

// NewRowsResponse creates a 200 OK response carrying the given rows payload.
func NewRowsResponse(payload string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       SOAPResponseBody(payload),
	}
}

// NewGzipRowsResponse creates a gzip-compressed 200 OK rows response.
func NewGzipRowsResponse(payload string) MockResponse {
	resp := NewRowsResponse(payload)
	resp.Gzip = true
	return resp
}

// NewFaultResponse creates a SOAP fault response with the given status.
func NewFaultResponse(status int, reason string) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body:       SOAPFaultBody(reason),
	}
}

// NewHTMLErrorResponse creates an HTML error page such as a gateway sends.
func NewHTMLErrorResponse(status int, title string) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body:       "<html><head><title>" + title + "</title></head><body><h1>" + title + "</h1></body></html>",
		Headers:    map[string]string{"Content-Type": "text/html"},
	}
}

// NewEmptyResponse creates a response with no body.
func NewEmptyResponse(status int) MockResponse {
	return MockResponse{StatusCode: status}
}

// NewServerErrorResponse creates a 503 Service Unavailable fault.
func NewServerErrorResponse() MockResponse {
	return NewFaultResponse(http.StatusServiceUnavailable, "Service temporarily unavailable")
}
