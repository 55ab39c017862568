// Package client provides the SOAP transport for the report service
// together with the retry executor and the failure taxonomy it feeds.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/reportsql/pkg/logging"
	"github.com/Sternrassler/reportsql/pkg/sqltext"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for transport operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reportsql_requests_total",
		Help: "Total runReport requests by HTTP status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reportsql_request_duration_seconds",
		Help:    "runReport request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reportsql_errors_total",
		Help: "Total transport failures by kind",
	}, []string{"kind"})
)

// Request describes one runReport call.
type Request struct {
	Endpoint   string
	SQL        string
	Username   string
	Password   string
	ReportPath string
}

// Client sends runReport requests. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Timeout bounds a single HTTP round trip, body included.
	Timeout time.Duration

	// UserAgent header sent with every request.
	UserAgent string

	// HTTPClient replaces the default HTTP client when set (tests, proxies).
	HTTPClient *http.Client
}

// DefaultConfig returns the default transport configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:   120 * time.Second,
		UserAgent: "reportsql/1.0",
	}
}

// New creates a new transport client.
func New(cfg Config) (*Client, error) {
	if cfg.HTTPClient == nil && cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %v)", cfg.Timeout)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
		logger:     log.With().Str("component", "report-transport").Logger(),
	}, nil
}

var (
	sharedMu     sync.Mutex
	sharedClient *Client
)

// Shared returns the process-wide client, creating it from cfg on first
// use. Later calls ignore cfg.
func Shared(cfg Config) (*Client, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedClient != nil {
		return sharedClient, nil
	}
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	sharedClient = c
	return sharedClient, nil
}

// Send posts the statement to the report service and returns the decoded
// report payload. Failures are reported as *Error, except caller
// cancellation which surfaces as the context error.
func (c *Client) Send(ctx context.Context, req Request) (string, error) {
	if req.Endpoint == "" {
		return "", fmt.Errorf("endpoint is required")
	}

	sql := sqltext.Normalize(req.SQL)
	logger := c.logger.With().
		Str("request_id", uuid.NewString()).
		Str("endpoint", req.Endpoint).
		Logger()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Endpoint,
		strings.NewReader(BuildEnvelope(sql, req.ReportPath)))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", ContentType)
	httpReq.Header.Set("SOAPAction", SOAPAction)
	httpReq.Header.Set("Accept-Encoding", "gzip")
	if c.config.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.config.UserAgent)
	}
	httpReq.SetBasicAuth(req.Username, req.Password)

	logger.Debug().Str("sql", logging.Statement(sql)).Msg("Sending runReport request")

	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		requestDuration.Observe(time.Since(startTime).Seconds())
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		requestsTotal.WithLabelValues("network_error").Inc()
		return "", c.fail(logger, &Error{Kind: KindTransport, Message: "request failed", Err: err})
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	requestDuration.Observe(time.Since(startTime).Seconds())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		requestsTotal.WithLabelValues("network_error").Inc()
		return "", c.fail(logger, &Error{Kind: KindTransport, StatusCode: resp.StatusCode, Message: "read body", Err: err})
	}
	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	payload, failure := interpret(resp.StatusCode, decodeBody(raw))
	if failure != nil {
		return "", c.fail(logger, failure)
	}

	logger.Debug().
		Int("status", resp.StatusCode).
		Int("payload_bytes", len(payload)).
		Dur("duration", time.Since(startTime)).
		Msg("runReport request completed")
	return payload, nil
}

// interpret maps a status and decoded body to the report payload or a
// tagged failure.
func interpret(status int, body string) (string, *Error) {
	if strings.TrimSpace(body) == "" {
		if RetryableStatus(status) {
			return "", &Error{Kind: KindService, StatusCode: status, Message: "empty body", Err: ErrEmptyResponse}
		}
		return "", &Error{Kind: KindMalformed, StatusCode: status, Err: ErrEmptyResponse}
	}

	if status >= 200 && status < 300 && !RetryableStatus(status) {
		payload, err := extractPayload(body)
		if err == nil {
			return payload, nil
		}
		if msg := faultMessage(status, body); DomainCode(msg) != "" {
			return "", &Error{Kind: KindDomain, StatusCode: status, Code: DomainCode(msg), Message: msg}
		}
		return "", &Error{Kind: KindMalformed, StatusCode: status, Message: "invalid response format", Err: err}
	}

	msg := faultMessage(status, body)
	if code := DomainCode(msg); code != "" {
		return "", &Error{Kind: KindDomain, StatusCode: status, Code: code, Message: msg}
	}
	return "", &Error{Kind: KindService, StatusCode: status, Message: msg}
}

func (c *Client) fail(logger zerolog.Logger, e *Error) error {
	errorsTotal.WithLabelValues(string(e.Kind)).Inc()
	logger.Warn().
		Str("kind", string(e.Kind)).
		Int("status", e.StatusCode).
		Str("code", e.Code).
		Str("message", e.Message).
		Err(e.Err).
		Msg("runReport request failed")
	return e
}

// Close releases idle connections held by the client.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
