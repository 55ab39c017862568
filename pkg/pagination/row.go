package pagination

import "strings"

// Row is one result row: canonical (lower-cased) column keys in first-seen
// order mapped to string values.
type Row struct {
	keys   []string
	values map[string]string
}

// NewRow creates an empty row.
func NewRow() *Row {
	return &Row{values: make(map[string]string)}
}

// Set stores value under the canonical form of column.
func (r *Row) Set(column, value string) {
	key := strings.ToLower(column)
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value of column, matched case-insensitively.
func (r *Row) Get(column string) (string, bool) {
	v, ok := r.values[strings.ToLower(column)]
	return v, ok
}

// Keys returns the canonical keys in the order they were set.
func (r *Row) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Len returns the number of columns present in the row.
func (r *Row) Len() int {
	return len(r.keys)
}

// Map returns a copy of the row as a plain map.
func (r *Row) Map() map[string]string {
	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// Clone returns a deep copy that is not subject to recycling.
func (r *Row) Clone() *Row {
	return &Row{keys: r.Keys(), values: r.Map()}
}

func (r *Row) reset() {
	r.keys = r.keys[:0]
	clear(r.values)
}

// rowPool keeps row storage from discarded pages for reuse. It holds at
// most limit rows.
type rowPool struct {
	free  []*Row
	limit int
}

func newRowPool(limit int) *rowPool {
	return &rowPool{limit: limit}
}

func (p *rowPool) get() *Row {
	if n := len(p.free); n > 0 {
		r := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		r.reset()
		return r
	}
	return NewRow()
}

func (p *rowPool) put(rows []*Row) {
	for _, r := range rows {
		if len(p.free) >= p.limit {
			return
		}
		if r != nil {
			p.free = append(p.free, r)
		}
	}
}

func (p *rowPool) size() int {
	return len(p.free)
}
