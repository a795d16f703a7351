package cache

import (
	"net/url"
	"sort"
	"strings"
)

// NormalizeKey derives the cache key for a request: path plus query
// parameters in sorted order, so logically identical requests share one key
// regardless of how the caller ordered the query string.
func NormalizeKey(rawURL string) string {
	path, rawQuery, found := strings.Cut(rawURL, "?")
	if !found || rawQuery == "" {
		return path
	}

	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return path
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(path)

	sep := byte('?')
	for _, name := range names {
		vals := values[name]
		sort.Strings(vals)
		for _, val := range vals {
			b.WriteByte(sep)
			sep = '&'
			b.WriteString(url.QueryEscape(name))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(val))
		}
	}

	return b.String()
}
