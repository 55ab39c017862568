// Package catalog answers metadata lookups (schemas, tables, columns) by
// querying the data dictionary through the report service, caching results
// in Redis when a cache is configured.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/reportsql/pkg/cache"
	"github.com/Sternrassler/reportsql/pkg/cursor"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Querier runs a query and returns a cursor over its rows.
// *session.Session implements it.
type Querier interface {
	Query(ctx context.Context, sql string) (*cursor.Cursor, error)
}

// Store caches lookup results. *cache.Manager implements it.
type Store interface {
	Get(ctx context.Context, key cache.CacheKey) (*cache.CacheEntry, error)
	Set(ctx context.Context, key cache.CacheKey, entry *cache.CacheEntry) error
}

// Config holds catalog settings.
type Config struct {
	// Endpoint is the report service URL, used to scope cache keys.
	Endpoint string

	// Store is the result cache. Nil disables caching.
	Store Store

	// TTL is how long results stay cached.
	TTL time.Duration
}

// Catalog performs metadata lookups.
type Catalog struct {
	querier Querier
	cfg     Config
	logger  zerolog.Logger
}

// New creates a catalog that queries through querier.
func New(querier Querier, cfg Config) (*Catalog, error) {
	if querier == nil {
		return nil, fmt.Errorf("querier is required")
	}
	if cfg.TTL < 0 {
		return nil, fmt.Errorf("ttl must not be negative, got %s", cfg.TTL)
	}
	return &Catalog{
		querier: querier,
		cfg:     cfg,
		logger:  log.With().Str("component", "catalog").Logger(),
	}, nil
}

// lookup returns the rows of sql in columns order, from the cache when
// possible. Cache failures are logged and bypassed.
func (c *Catalog) lookup(ctx context.Context, key cache.CacheKey, sql string, columns []string) ([][]string, error) {
	key.Endpoint = c.cfg.Endpoint

	if c.cfg.Store != nil {
		entry, err := c.cfg.Store.Get(ctx, key)
		switch {
		case err == nil:
			c.logger.Debug().Str("key", key.String()).Int("rows", len(entry.Rows)).Msg("Catalog cache hit")
			return entry.Rows, nil
		case errors.Is(err, cache.ErrCacheMiss):
			c.logger.Debug().Str("key", key.String()).Msg("Catalog cache miss")
		default:
			c.logger.Warn().Err(err).Str("key", key.String()).Msg("Catalog cache read failed")
		}
	}

	rows, err := c.collect(ctx, sql, columns)
	if err != nil {
		return nil, err
	}

	if c.cfg.Store != nil && c.cfg.TTL > 0 {
		if err := c.cfg.Store.Set(ctx, key, cache.NewEntry(columns, rows, c.cfg.TTL)); err != nil {
			c.logger.Warn().Err(err).Str("key", key.String()).Msg("Catalog cache write failed")
		}
	}
	return rows, nil
}

// collect drains the cursor of sql, reading columns from every row.
// Columns the service omitted (null values) read as "".
func (c *Catalog) collect(ctx context.Context, sql string, columns []string) ([][]string, error) {
	cur, err := c.querier.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	var rows [][]string
	for {
		ok, err := cur.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return rows, nil
		}
		row := make([]string, len(columns))
		for i, col := range columns {
			v, err := cur.Value(col)
			if err != nil && !errors.Is(err, cursor.ErrUnknownColumn) {
				return nil, err
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
}
