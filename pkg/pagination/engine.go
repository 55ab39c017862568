package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/reportsql/pkg/client"
	"github.com/Sternrassler/reportsql/pkg/rowxml"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for page fetching.
var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reportsql_pages_fetched_total",
		Help: "Total pages fetched from the report service",
	})

	rowsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reportsql_rows_fetched_total",
		Help: "Total rows fetched from the report service",
	})

	pageFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reportsql_page_fetch_duration_seconds",
		Help:    "Page fetch duration in seconds, retries and parsing included",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})
)

// Sender is the transport the engine sends page requests through.
// *client.Client implements it.
type Sender interface {
	Send(ctx context.Context, req client.Request) (string, error)
}

// Page is the result of one round trip.
type Page struct {
	// Offset is the offset the page was requested at.
	Offset int

	// Rows holds the page's rows. They stay valid until passed to Recycle.
	Rows []*Row

	// Full is true when the page holds exactly PageSize rows, meaning
	// another page may follow.
	Full bool
}

// Config holds the engine configuration.
type Config struct {
	// Policy is the retry policy applied to every page fetch.
	Policy client.RetryPolicy

	// Parser parses page payloads. Nil uses rowxml defaults.
	Parser *rowxml.Parser
}

// Engine fetches pages of one query. It is not safe for concurrent use.
type Engine struct {
	sender   Sender
	parser   *rowxml.Parser
	policy   client.RetryPolicy
	query    Query
	paged    bool
	identity *ColumnIdentity
	pool     *rowPool
	fetches  int
	logger   zerolog.Logger
}

// NewEngine creates an engine for query.
func NewEngine(sender Sender, query Query, cfg Config) (*Engine, error) {
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("retry policy: %w", err)
	}

	parser := cfg.Parser
	if parser == nil {
		parser = rowxml.NewParser(rowxml.DefaultOptions())
	}

	poolLimit := query.PageSize
	if poolLimit <= 0 {
		poolLimit = DefaultPageSize
	}

	return &Engine{
		sender:   sender,
		parser:   parser,
		policy:   cfg.Policy,
		query:    query,
		paged:    query.Paged(),
		identity: NewColumnIdentity(),
		pool:     newRowPool(poolLimit),
		logger:   log.With().Str("component", "pagination").Logger(),
	}, nil
}

// FetchNextPage fetches the page starting at offset. Transport failures are
// retried under the engine's policy; a payload that cannot be parsed fails
// the whole page.
func (e *Engine) FetchNextPage(ctx context.Context, offset int) (Page, error) {
	startTime := time.Now()
	req := e.query.Request(offset)

	records, err := client.Run(ctx, "fetch_page", e.policy, func(ctx context.Context) ([]rowxml.Record, error) {
		e.fetches++
		payload, err := e.sender.Send(ctx, req)
		if err != nil {
			return nil, err
		}
		res, err := e.parser.Parse(payload)
		if err != nil {
			return nil, &client.Error{Kind: client.KindMalformed, Message: "parse page", Err: err}
		}
		e.logger.Debug().
			Int("offset", offset).
			Str("strategy", string(res.Strategy)).
			Int("rows", len(res.Records)).
			Msg("Page parsed")
		return res.Records, nil
	})
	pageFetchDuration.Observe(time.Since(startTime).Seconds())
	if err != nil {
		return Page{}, fmt.Errorf("fetch page at offset %d: %w", offset, err)
	}

	rows := make([]*Row, 0, len(records))
	for _, rec := range records {
		row := e.pool.get()
		for _, f := range rec {
			key, _ := e.identity.Record(f.Name)
			row.Set(key, f.Value)
		}
		rows = append(rows, row)
	}

	pageSize := e.query.PageSize
	page := Page{
		Offset: offset,
		Rows:   rows,
		Full:   e.paged && len(rows) > 0 && len(rows) == pageSize,
	}

	pagesFetchedTotal.Inc()
	rowsFetchedTotal.Add(float64(len(rows)))
	e.logger.Info().
		Int("offset", offset).
		Int("rows", len(rows)).
		Bool("full", page.Full).
		Int("columns", e.identity.Len()).
		Dur("duration", time.Since(startTime)).
		Msg("Page fetched")

	return page, nil
}

// Recycle hands the rows of a discarded page back for reuse. The rows must
// not be used afterwards.
func (e *Engine) Recycle(rows []*Row) {
	e.pool.put(rows)
}

// Identity returns the columns seen so far.
func (e *Engine) Identity() *ColumnIdentity {
	return e.identity
}

// Query returns the query the engine was created for.
func (e *Engine) Query() Query {
	return e.query
}

// Fetches returns the number of send attempts made so far, retries
// included.
func (e *Engine) Fetches() int {
	return e.fetches
}
