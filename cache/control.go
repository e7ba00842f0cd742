// Package cache implements an RFC 9111-aligned HTTP cache interceptor: key
// derivation, Cache-Control/Cache-Status parsing, freshness calculation,
// conditional revalidation, stale-while-revalidate/stale-if-error, unsafe
// method invalidation, and frecency eviction, on top of a journal.Journal
// and a bodystore.Store.
package cache

import (
	"net/http"
	"strconv"
	"strings"
)

// Recognized Cache-Control directive names (spec §6).
const (
	directiveMaxAge       = "max-age"
	directiveNoCache      = "no-cache"
	directiveNoStore      = "no-store"
	directiveMustRevalid  = "must-revalidate"
	directivePrivate      = "private"
	directivePublic       = "public"
	directiveImmutable    = "immutable"
	directiveStaleRevalid = "stale-while-revalidate"
	directiveStaleOnError = "stale-if-error"
)

// controlDirectives is a parsed Cache-Control header: directive name to its
// value (empty string for valueless directives).
type controlDirectives map[string]string

// parseControlDirectives parses a Cache-Control header value. Unknown
// directives are ignored. Duplicate directives keep the first occurrence
// and log a warning. Negative or non-numeric numeric values are dropped
// (treated as absent), matching spec §4.3.
func parseControlDirectives(header string) controlDirectives {
	cc := controlDirectives{}
	seen := map[string]bool{}

	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.Trim(strings.TrimSpace(value), `"`)

		if !recognizedDirectives[name] {
			continue
		}
		if seen[name] {
			GetLogger().Warn("duplicate Cache-Control directive, keeping first", "directive", name)
			continue
		}
		seen[name] = true
		cc[name] = value
	}

	sanitizeNumericDirective(cc, directiveMaxAge)
	sanitizeNumericDirective(cc, directiveStaleRevalid)
	sanitizeNumericDirective(cc, directiveStaleOnError)

	if _, hasPrivate := cc[directivePrivate]; hasPrivate {
		if _, hasPublic := cc[directivePublic]; hasPublic {
			GetLogger().Warn("conflicting Cache-Control directives, private takes precedence", "conflict", "public+private")
			delete(cc, directivePublic)
		}
	}

	return cc
}

var recognizedDirectives = map[string]bool{
	directiveMaxAge:       true,
	directiveNoCache:      true,
	directiveNoStore:      true,
	directiveMustRevalid:  true,
	directivePrivate:      true,
	directivePublic:       true,
	directiveImmutable:    true,
	directiveStaleRevalid: true,
	directiveStaleOnError: true,
}

// sanitizeNumericDirective drops name from cc if its value is negative or
// non-numeric, per spec §4.3's "negative or non-numeric values are absent".
func sanitizeNumericDirective(cc controlDirectives, name string) {
	value, ok := cc[name]
	if !ok {
		return
	}
	if value == "" {
		return
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n < 0 {
		GetLogger().Warn("invalid numeric Cache-Control directive, ignoring", "directive", name, "value", value)
		delete(cc, name)
	}
}

// has reports whether directive name is present.
func (cc controlDirectives) has(name string) bool {
	_, ok := cc[name]
	return ok
}

// seconds returns the directive's integer value, if present and valid.
func (cc controlDirectives) seconds(name string) (int64, bool) {
	value, ok := cc[name]
	if !ok {
		return 0, false
	}
	if value == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseRequestControl(h http.Header) controlDirectives  { return parseControlDirectives(h.Get("Cache-Control")) }
func parseResponseControl(h http.Header) controlDirectives { return parseControlDirectives(h.Get("Cache-Control")) }
