package pagination

import "strings"

// ColumnIdentity records every column seen across the pages of a query:
// canonical keys in first-seen order and, for each key, the spelling under
// which it first appeared. A recorded spelling never changes.
type ColumnIdentity struct {
	keys  []string
	names map[string]string
}

// NewColumnIdentity creates an empty identity.
func NewColumnIdentity() *ColumnIdentity {
	return &ColumnIdentity{names: make(map[string]string)}
}

// Record notes a column name and returns its canonical key. added is true
// when the column was not known before.
func (c *ColumnIdentity) Record(name string) (key string, added bool) {
	key = strings.ToLower(name)
	if _, ok := c.names[key]; ok {
		return key, false
	}
	c.keys = append(c.keys, key)
	c.names[key] = name
	return key, true
}

// Name returns the first-seen spelling of a column.
func (c *ColumnIdentity) Name(column string) (string, bool) {
	name, ok := c.names[strings.ToLower(column)]
	return name, ok
}

// Keys returns the canonical keys in first-seen order.
func (c *ColumnIdentity) Keys() []string {
	return append([]string(nil), c.keys...)
}

// Names returns the first-seen spellings in first-seen order.
func (c *ColumnIdentity) Names() []string {
	out := make([]string, len(c.keys))
	for i, k := range c.keys {
		out[i] = c.names[k]
	}
	return out
}

// Len returns the number of known columns.
func (c *ColumnIdentity) Len() int {
	return len(c.keys)
}
