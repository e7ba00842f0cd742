package cache

import (
	"time"

	"github.com/kaelbridge/httpflow/journal"
)

// responseTime returns the entry's parsed Date header, falling back to its
// creation time when the header is absent or unparsable.
func responseTime(entry *journal.Entry) time.Time {
	if values, ok := entry.Headers["date"]; ok && len(values) > 0 {
		if t, err := time.Parse(time.RFC1123, values[0]); err == nil {
			return t
		}
	}
	return entry.CreatedAt.Time()
}

// age is now minus the entry's response time.
func age(entry *journal.Entry, now time.Time) time.Duration {
	d := now.Sub(responseTime(entry))
	if d < 0 {
		return 0
	}
	return d
}

// expirationTime returns responseTime + max-age when max-age is present and
// parsable, else the parsed Expires header, else (zero, false) for unknown.
func expirationTime(entry *journal.Entry, cc controlDirectives) (time.Time, bool) {
	rt := responseTime(entry)
	if seconds, ok := cc.seconds(directiveMaxAge); ok {
		return rt.Add(time.Duration(seconds) * time.Second), true
	}
	if values, ok := entry.Headers["expires"]; ok && len(values) > 0 {
		if t, err := time.Parse(time.RFC1123, values[0]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// isExpired is true when the expiration time is known and has passed.
func isExpired(entry *journal.Entry, cc controlDirectives, now time.Time) bool {
	exp, ok := expirationTime(entry, cc)
	return ok && now.After(exp)
}

// isStaleWhileRevalidate is true when the expiration time is known, the
// stale-while-revalidate directive is present, and now is still within
// expirationTime + swr.
func isStaleWhileRevalidate(entry *journal.Entry, cc controlDirectives, now time.Time) bool {
	exp, ok := expirationTime(entry, cc)
	if !ok {
		return false
	}
	swr, ok := cc.seconds(directiveStaleRevalid)
	if !ok {
		return false
	}
	return now.Before(exp.Add(time.Duration(swr) * time.Second))
}

// isStaleIfError is true when the expiration time is known, the
// stale-if-error directive is present, and now is still within
// expirationTime + sie.
func isStaleIfError(entry *journal.Entry, cc controlDirectives, now time.Time) bool {
	exp, ok := expirationTime(entry, cc)
	if !ok {
		return false
	}
	sie, ok := cc.seconds(directiveStaleOnError)
	if !ok {
		return false
	}
	return now.Before(exp.Add(time.Duration(sie) * time.Second))
}

// needsRevalidation implements spec §4.3: true on no-store/no-cache, unknown
// expiration, must-revalidate, or expiry, unless the entry is both fresh and
// marked immutable.
func needsRevalidation(entry *journal.Entry, cc controlDirectives, now time.Time) bool {
	expired := isExpired(entry, cc, now)
	if cc.has(directiveImmutable) && !expired {
		return false
	}
	if cc.has(directiveNoStore) || cc.has(directiveNoCache) || cc.has(directiveMustRevalid) {
		return true
	}
	if _, known := expirationTime(entry, cc); !known {
		return true
	}
	return expired
}

// entryControl parses the entry's own recorded Cache-Control header, the
// directive set freshness predicates operate over.
func entryControl(entry *journal.Entry) controlDirectives {
	if values, ok := entry.Headers["cache-control"]; ok && len(values) > 0 {
		return parseControlDirectives(values[0])
	}
	return controlDirectives{}
}
