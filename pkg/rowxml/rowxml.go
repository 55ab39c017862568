// Package rowxml turns report payloads into row records.
//
// The report service frequently returns XML that is truncated, double
// encoded or otherwise not well-formed. Parse therefore tries a chain of
// increasingly forgiving strategies and only gives up when all of them fail:
//
//  1. strict: light sanitization, then a strict encoding/xml parse
//  2. forgiving: an HTML-style tokenizer with implicit element closing
//  3. heuristic: heavier bracket escaping, retried with the strict parser
//  4. streaming: a non-strict token walk that collects rows as it goes
//
// Rows are the elements whose local name matches Options.RowMarker at any
// depth and namespace. Each child element of a row becomes one Field.
package rowxml

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrUnparseable is returned when no strategy recovers any structure.
var ErrUnparseable = errors.New("payload could not be parsed")

var ingestStrategyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "reportsql_ingest_strategy_total",
	Help: "Payloads parsed by the strategy that succeeded",
}, []string{"strategy"})

// Strategy names the parsing strategy that produced a Result.
type Strategy string

const (
	StrategyStrict    Strategy = "strict"
	StrategyForgiving Strategy = "forgiving"
	StrategyHeuristic Strategy = "heuristic"
	StrategyStreaming Strategy = "streaming"
)

// Field is one column value of a row, keyed by the element's original name.
type Field struct {
	Name  string
	Value string
}

// Record is one row in document order.
type Record []Field

// Get returns the value of the first field whose name matches
// case-insensitively.
func (r Record) Get(name string) (string, bool) {
	for _, f := range r {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// Result is the outcome of parsing one payload.
type Result struct {
	Records  []Record
	Strategy Strategy
}

// Options configures a Parser.
type Options struct {
	// RowMarker is the local name of row elements.
	RowMarker string

	// ResultMarker is the local name of the wrapper element that may carry
	// an escaped, nested payload.
	ResultMarker string

	// MaxDepth bounds how many nested payloads are unwrapped.
	MaxDepth int
}

// DefaultOptions returns the options matching the report service output.
func DefaultOptions() Options {
	return Options{
		RowMarker:    "ROW",
		ResultMarker: "RESULT",
		MaxDepth:     2,
	}
}

// Parser parses report payloads. It is safe for concurrent use.
type Parser struct {
	opts       Options
	rowMention *regexp.Regexp
	logger     zerolog.Logger
}

// NewParser creates a parser. Empty markers fall back to the defaults.
func NewParser(opts Options) *Parser {
	def := DefaultOptions()
	if opts.RowMarker == "" {
		opts.RowMarker = def.RowMarker
	}
	if opts.ResultMarker == "" {
		opts.ResultMarker = def.ResultMarker
	}
	if opts.MaxDepth < 0 {
		opts.MaxDepth = 0
	}
	return &Parser{
		opts:       opts,
		rowMention: regexp.MustCompile(`(?i)(?:<|:|&lt;)` + regexp.QuoteMeta(opts.RowMarker) + `\b`),
		logger:     log.With().Str("component", "rowxml").Logger(),
	}
}

var defaultParser = NewParser(DefaultOptions())

// Parse parses text with the default options.
func Parse(text string) (*Result, error) {
	return defaultParser.Parse(text)
}

// Parse turns text into records. Malformed input only fails when every
// strategy fails, in which case the error wraps ErrUnparseable.
func (p *Parser) Parse(text string) (*Result, error) {
	res, err := p.parse(text, 0)
	if err != nil {
		return nil, err
	}
	ingestStrategyTotal.WithLabelValues(string(res.Strategy)).Inc()
	return res, nil
}

func (p *Parser) parse(text string, depth int) (*Result, error) {
	light := sanitizeLight(text)

	root, err := parseStrict(light)
	if err == nil {
		return p.result(StrategyStrict, root, depth)
	}
	p.logger.Debug().Err(err).Int("depth", depth).Msg("Strict parse failed")

	root = parseForgiving(light)
	if open := root.unclosed(p.opts.RowMarker); open > 0 {
		p.logger.Debug().Int("open_rows", open).Int("depth", depth).Msg("Forgiving parse left rows unterminated")
	} else {
		records, err := p.extract(root, depth)
		if err == nil && (len(records) > 0 || !p.mentionsRow(text)) {
			p.logger.Warn().Int("rows", len(records)).Int("depth", depth).Msg("Payload recovered by forgiving parser")
			return &Result{Records: records, Strategy: StrategyForgiving}, nil
		}
	}

	var last string
	for i, candidate := range heuristicPasses(light) {
		last = candidate
		root, err := parseStrict(candidate)
		if err != nil {
			p.logger.Debug().Err(err).Int("pass", i+1).Msg("Heuristic pass failed")
			continue
		}
		res, err := p.result(StrategyHeuristic, root, depth)
		if err != nil {
			continue
		}
		p.logger.Warn().Int("pass", i+1).Int("rows", len(res.Records)).Msg("Payload recovered by heuristic cleanup")
		return res, nil
	}

	records, err := p.stream(last, depth)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	p.logger.Warn().Int("rows", len(records)).Int("depth", depth).Msg("Payload recovered by streaming fallback")
	return &Result{Records: records, Strategy: StrategyStreaming}, nil
}

func (p *Parser) result(strategy Strategy, root *node, depth int) (*Result, error) {
	records, err := p.extract(root, depth)
	if err != nil {
		return nil, err
	}
	return &Result{Records: records, Strategy: strategy}, nil
}

// mentionsRow reports whether text contains the row marker as a tag name,
// escaped or not.
func (p *Parser) mentionsRow(text string) bool {
	return p.rowMention.MatchString(text)
}
