package cache

import "time"

// CacheEntry is a cached catalog result: column names and rows of string
// values in column order.
type CacheEntry struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`

	// Expires is when the entry becomes stale.
	Expires time.Time `json:"expires"`

	// CachedAt is when the entry was stored.
	CachedAt time.Time `json:"cached_at"`
}

// NewEntry creates an entry that expires after ttl.
func NewEntry(columns []string, rows [][]string, ttl time.Duration) *CacheEntry {
	now := time.Now()
	return &CacheEntry{
		Columns:  columns,
		Rows:     rows,
		Expires:  now.Add(ttl),
		CachedAt: now,
	}
}

// IsExpired returns true if the cache entry has expired.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Column returns the index of column in Columns, or -1.
func (e *CacheEntry) Column(name string) int {
	for i, c := range e.Columns {
		if c == name {
			return i
		}
	}
	return -1
}
