// Package cursor exposes query results as a forward-only row cursor that
// fetches further pages on demand.
package cursor

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/reportsql/pkg/pagination"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Common errors returned by the cursor.
var (
	// ErrForwardOnly is returned for any attempt to move backwards or jump.
	ErrForwardOnly = errors.New("cursor is forward-only")

	// ErrClosed is returned when a closed cursor is used.
	ErrClosed = errors.New("cursor is closed")

	// ErrNoRow is returned when reading without a current row.
	ErrNoRow = errors.New("no current row")

	// ErrUnknownColumn is returned for a column no page has produced.
	ErrUnknownColumn = errors.New("unknown column")
)

// UsageError reports a navigation request the cursor does not support.
type UsageError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *UsageError) Error() string {
	return fmt.Sprintf("cursor %s: %v", e.Op, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *UsageError) Unwrap() error {
	return e.Err
}

// State is the lifecycle state of a cursor.
type State int

const (
	StateBeforeFirst State = iota
	StatePositioned
	StateExhausted
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateBeforeFirst:
		return "before_first"
	case StatePositioned:
		return "positioned"
	case StateExhausted:
		return "exhausted"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Position describes where the cursor stands.
type Position struct {
	// Offset is the number of rows fetched so far; the next page is
	// requested at this offset.
	Offset int

	// Index is the position within the current page, -1 before its first
	// row.
	Index int

	// LastPageFull reports whether another page may follow.
	LastPageFull bool
}

// PageSource supplies pages to a cursor. *pagination.Engine implements it.
type PageSource interface {
	FetchNextPage(ctx context.Context, offset int) (pagination.Page, error)
	Recycle(rows []*pagination.Row)
	Identity() *pagination.ColumnIdentity
}

// Cursor iterates over the rows of one query. The buffer holds the current
// page only; rows returned by Row stay valid until the next page is fetched.
// A Cursor is not safe for concurrent use.
type Cursor struct {
	source       PageSource
	rows         []*pagination.Row
	offset       int
	index        int
	lastPageFull bool
	state        State
	pages        int
	logger       zerolog.Logger
}

// Open creates a cursor and fetches the first page.
func Open(ctx context.Context, source PageSource) (*Cursor, error) {
	if source == nil {
		return nil, fmt.Errorf("page source is required")
	}
	c := &Cursor{
		source: source,
		index:  -1,
		state:  StateBeforeFirst,
		logger: log.With().Str("component", "cursor").Logger(),
	}
	if err := c.fetch(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Next advances to the next row, fetching the next page when the current
// one is used up and was full. It returns false once the rows are
// exhausted; exhaustion is terminal.
func (c *Cursor) Next(ctx context.Context) (bool, error) {
	switch c.state {
	case StateClosed:
		return false, ErrClosed
	case StateExhausted:
		return false, nil
	}

	for {
		if c.index+1 < len(c.rows) {
			c.index++
			c.state = StatePositioned
			return true, nil
		}
		if !c.lastPageFull {
			c.index = len(c.rows)
			c.state = StateExhausted
			c.logger.Debug().
				Int("rows", c.offset).
				Int("pages", c.pages).
				Msg("Cursor exhausted")
			return false, nil
		}
		if err := c.fetch(ctx); err != nil {
			return false, err
		}
	}
}

// fetch replaces the buffer with the page at the current offset. The
// previous page's rows are recycled first.
func (c *Cursor) fetch(ctx context.Context) error {
	if len(c.rows) > 0 {
		c.source.Recycle(c.rows)
	}
	c.rows = nil
	c.index = -1

	page, err := c.source.FetchNextPage(ctx, c.offset)
	if err != nil {
		// No row is current; offset and lastPageFull are kept so the next
		// call retries the same page.
		if c.state == StatePositioned {
			c.state = StateBeforeFirst
		}
		return err
	}
	c.rows = page.Rows
	c.offset += len(page.Rows)
	c.lastPageFull = page.Full
	c.pages++
	return nil
}

// Row returns the current row.
func (c *Cursor) Row() (*pagination.Row, error) {
	switch c.state {
	case StateClosed:
		return nil, ErrClosed
	case StatePositioned:
		if c.index < 0 || c.index >= len(c.rows) {
			return nil, ErrNoRow
		}
		return c.rows[c.index], nil
	default:
		return nil, ErrNoRow
	}
}

// Value returns the value of column in the current row. A column that
// other rows carry but this one lacks reads as "".
func (c *Cursor) Value(column string) (string, error) {
	row, err := c.Row()
	if err != nil {
		return "", err
	}
	if v, ok := row.Get(column); ok {
		return v, nil
	}
	if _, ok := c.source.Identity().Name(column); ok {
		return "", nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownColumn, column)
}

// Values returns the current row in Columns order, padding missing columns
// with "".
func (c *Cursor) Values() ([]string, error) {
	row, err := c.Row()
	if err != nil {
		return nil, err
	}
	keys := c.source.Identity().Keys()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i], _ = row.Get(k)
	}
	return out, nil
}

// Columns returns the column names seen so far with their first-seen
// spelling. Later pages may add columns.
func (c *Cursor) Columns() []string {
	if c.state == StateClosed {
		return nil
	}
	return c.source.Identity().Names()
}

// Position returns the cursor position.
func (c *Cursor) Position() Position {
	return Position{Offset: c.offset, Index: c.index, LastPageFull: c.lastPageFull}
}

// State returns the lifecycle state.
func (c *Cursor) State() State {
	return c.state
}

// Pages returns the number of pages fetched.
func (c *Cursor) Pages() int {
	return c.pages
}

// Rewind always fails: the cursor is forward-only.
func (c *Cursor) Rewind() error {
	return &UsageError{Op: "rewind", Err: ErrForwardOnly}
}

// Seek always fails: the cursor is forward-only.
func (c *Cursor) Seek(row int) error {
	return &UsageError{Op: fmt.Sprintf("seek to row %d", row), Err: ErrForwardOnly}
}

// Close releases the row buffer. Closing twice is a no-op.
func (c *Cursor) Close() error {
	if c.state == StateClosed {
		return nil
	}
	if len(c.rows) > 0 {
		c.source.Recycle(c.rows)
	}
	c.rows = nil
	c.index = -1
	c.state = StateClosed
	return nil
}
