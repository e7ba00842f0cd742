package cache

import "net/http"

// RFC 7234 §5.5 Warning header codes, obsoleted by RFC 9111 but still
// useful as an explicit signal that a response was served stale.
const (
	warningResponseIsStale    = `110 - "Response is Stale"`
	warningRevalidationFailed = `111 - "Revalidation Failed"`
)

func addStaleWarning(h http.Header) {
	h.Add("Warning", warningResponseIsStale)
}

func addRevalidationFailedWarning(h http.Header) {
	h.Add("Warning", warningRevalidationFailed)
}
