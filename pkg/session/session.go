// Package session binds queries to one report service and opens cursors
// over their results.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/reportsql/pkg/client"
	"github.com/Sternrassler/reportsql/pkg/config"
	"github.com/Sternrassler/reportsql/pkg/cursor"
	"github.com/Sternrassler/reportsql/pkg/logging"
	"github.com/Sternrassler/reportsql/pkg/pagination"
	"github.com/Sternrassler/reportsql/pkg/rowxml"
	"github.com/Sternrassler/reportsql/pkg/sqltext"
	"github.com/rs/zerolog"
)

// ErrReadOnly is returned for statements other than queries.
var ErrReadOnly = errors.New("only SELECT and WITH statements are supported")

// Config holds session settings.
type Config struct {
	Endpoint   string
	Username   string
	Password   string
	ReportPath string

	// PageSize is the number of rows per page; zero disables paging.
	PageSize int

	Retry client.RetryPolicy

	// Parser parses report payloads. Nil uses rowxml defaults.
	Parser *rowxml.Parser
}

// Session runs queries against one report service. It is safe for
// concurrent use; each cursor it returns is not.
type Session struct {
	sender pagination.Sender
	cfg    Config
	parser *rowxml.Parser
	logger zerolog.Logger
}

// New creates a session that sends requests through sender.
func New(sender pagination.Sender, cfg Config) (*Session, error) {
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.PageSize < 0 {
		return nil, fmt.Errorf("page size must not be negative, got %d", cfg.PageSize)
	}
	if err := cfg.Retry.Validate(); err != nil {
		return nil, fmt.Errorf("retry policy: %w", err)
	}

	parser := cfg.Parser
	if parser == nil {
		parser = rowxml.NewParser(rowxml.DefaultOptions())
	}

	return &Session{
		sender: sender,
		cfg:    cfg,
		parser: parser,
		logger: logging.NewLogger("session"),
	}, nil
}

// FromConfig creates a session over the shared transport client.
func FromConfig(cfg config.Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	transport, err := client.Shared(cfg.ClientConfig())
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return New(transport, Config{
		Endpoint:   cfg.Endpoint,
		Username:   cfg.Username,
		Password:   cfg.Password,
		ReportPath: cfg.ReportPath,
		PageSize:   cfg.PageSize,
		Retry:      cfg.Retry,
	})
}

// Endpoint returns the report service URL.
func (s *Session) Endpoint() string {
	return s.cfg.Endpoint
}

// Query runs sql and returns a cursor positioned before the first row.
// The first page is fetched before Query returns.
func (s *Session) Query(ctx context.Context, sql string) (*cursor.Cursor, error) {
	if !sqltext.IsQuery(sql) {
		return nil, fmt.Errorf("%w: got %q", ErrReadOnly, sqltext.Keyword(sql))
	}

	if countSQL, ok := countStatement(sql); ok {
		return s.count(ctx, countSQL)
	}

	engine, err := pagination.NewEngine(s.sender, s.query(sql), pagination.Config{
		Policy: s.cfg.Retry,
		Parser: s.parser,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("statement", logging.Statement(sql)).Msg("Opening cursor")
	return cursor.Open(ctx, engine)
}

func (s *Session) query(sql string) pagination.Query {
	return pagination.Query{
		SQL:        sql,
		Endpoint:   s.cfg.Endpoint,
		Username:   s.cfg.Username,
		Password:   s.cfg.Password,
		ReportPath: s.cfg.ReportPath,
		PageSize:   s.cfg.PageSize,
	}
}
