package cache

import "net/http"

// headerGetter adapts an http.Header into the (name string) -> (value
// string, ok bool) shape journal.Entry.matchesVary (via journal.Match)
// expects, with case-insensitive name lookup.
func headerGetter(h http.Header) func(name string) (string, bool) {
	return func(name string) (string, bool) {
		values, ok := h[http.CanonicalHeaderKey(name)]
		if !ok || len(values) == 0 {
			return "", false
		}
		return values[0], true
	}
}

// varySnapshot captures the request-side values, by lowercased name, for
// every header listed in the response's Vary header.
func varySnapshot(varyNames []string, requestHeaders http.Header) map[string]string {
	snapshot := make(map[string]string, len(varyNames))
	for _, name := range varyNames {
		snapshot[name] = requestHeaders.Get(name)
	}
	return snapshot
}
