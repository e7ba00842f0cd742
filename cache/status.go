package cache

import (
	"fmt"
	"strconv"
	"strings"
)

// StatusHeader is the response header this package reads and writes.
const StatusHeader = "Cache-Status"

// Fwd values recognized by the Cache-Status grammar (spec §6).
const (
	FwdBypass  = "bypass"
	FwdMethod  = "method"
	FwdURIMiss = "uri-miss"
	FwdVaryMiss = "vary-miss"
	FwdMiss    = "miss"
	FwdRequest = "request"
	FwdStale   = "stale"
	FwdPartial = "partial"
)

// Status is the RFC 9211 subset this cache emits via the Cache-Status header.
type Status struct {
	CacheName string
	Hit       bool
	Fwd       string
	FwdStatus int
	TTL       *int64
	Stored    bool
	Collapsed bool
	Key       string
	Detail    string
}

// String renders s per spec §6's grammar:
// cache-name; [hit | fwd=<param>; fwd-status=<code>]; [ttl=<s>]; [stored];
// [collapsed]; [key=<primary-key>]; [detail=<free-text>].
func (s Status) String() string {
	var b strings.Builder
	b.WriteString(s.CacheName)

	if s.Hit {
		b.WriteString("; hit")
	} else if s.Fwd != "" {
		fmt.Fprintf(&b, "; fwd=%s", s.Fwd)
		if s.FwdStatus != 0 {
			fmt.Fprintf(&b, "; fwd-status=%d", s.FwdStatus)
		}
	}
	if s.TTL != nil {
		fmt.Fprintf(&b, "; ttl=%d", *s.TTL)
	}
	if s.Stored {
		b.WriteString("; stored")
	}
	if s.Collapsed {
		b.WriteString("; collapsed")
	}
	if s.Key != "" {
		fmt.Fprintf(&b, "; key=%s", s.Key)
	}
	if s.Detail != "" {
		fmt.Fprintf(&b, `; detail="%s"`, s.Detail)
	}
	return b.String()
}

// ParseStatus parses a Cache-Status header value. Unrecognized parameters
// are ignored rather than treated as an error, matching this package's
// tolerant-parsing convention for cache headers.
func ParseStatus(header string) (Status, bool) {
	parts := strings.Split(header, ";")
	if len(parts) == 0 {
		return Status{}, false
	}
	s := Status{CacheName: strings.TrimSpace(parts[0])}
	if s.CacheName == "" {
		return Status{}, false
	}

	for _, part := range parts[1:] {
		name, value, _ := strings.Cut(strings.TrimSpace(part), "=")
		name = strings.TrimSpace(name)
		value = strings.Trim(strings.TrimSpace(value), `"`)
		switch name {
		case "hit":
			s.Hit = true
		case "fwd":
			s.Fwd = value
		case "fwd-status":
			if n, err := strconv.Atoi(value); err == nil {
				s.FwdStatus = n
			}
		case "ttl":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				s.TTL = &n
			}
		case "stored":
			s.Stored = true
		case "collapsed":
			s.Collapsed = true
		case "key":
			s.Key = value
		case "detail":
			s.Detail = value
		}
	}
	return s, true
}

// isOwnHit reports whether header (a Cache-Status header value) records a
// hit produced by a cache named cacheName — used to detect and skip
// re-processing a response that ResolveAndNext already surfaced once.
func isOwnHit(header, cacheName string) bool {
	status, ok := ParseStatus(header)
	return ok && status.Hit && status.CacheName == cacheName
}
