package cache

import (
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix starts every key the manager writes.
const KeyPrefix = "reportsql"

// Kind names the catalog lookup a cached result belongs to.
type Kind string

const (
	KindTables  Kind = "tables"
	KindColumns Kind = "columns"
	KindSchemas Kind = "schemas"
)

// CacheKey identifies one cached catalog lookup.
type CacheKey struct {
	// Endpoint is the report service URL the lookup ran against.
	Endpoint string

	Kind Kind

	// Schema and Object are the patterns of the lookup, as given.
	Schema string
	Object string

	// Types restricts the object types (TABLE, VIEW). Order does not matter.
	Types []string
}

// String generates a deterministic cache key string.
// Format: reportsql:host/path:kind:schema=S:object=O:types=T1,T2
//
// Example:
//
//	reportsql:reports.example.com/xmlpserver:tables:schema=HR:object=%:types=TABLE,VIEW
func (k CacheKey) String() string {
	parts := []string{EndpointPrefix(k.Endpoint), string(k.Kind)}

	parts = append(parts, "schema="+strings.ToUpper(k.Schema))
	parts = append(parts, "object="+strings.ToUpper(k.Object))

	if len(k.Types) > 0 {
		types := make([]string, len(k.Types))
		for i, t := range k.Types {
			types[i] = strings.ToUpper(strings.TrimSpace(t))
		}
		sort.Strings(types)
		parts = append(parts, "types="+strings.Join(types, ","))
	}

	return strings.Join(parts, ":")
}

// EndpointPrefix returns the key prefix shared by all lookups against
// endpoint. Scheme, credentials, query and trailing slashes are ignored.
func EndpointPrefix(endpoint string) string {
	normalized := strings.TrimSpace(endpoint)
	if u, err := url.Parse(normalized); err == nil && u.Host != "" {
		normalized = strings.ToLower(u.Host) + u.Path
	}
	normalized = strings.Trim(normalized, "/")
	if normalized == "" {
		return KeyPrefix
	}
	return KeyPrefix + ":" + normalized
}
