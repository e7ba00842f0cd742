package httpflow

import "github.com/google/uuid"

// RequestIDHeader is the header used to surface a request's stable,
// short, unique ID to the server and to log correlation tooling.
const RequestIDHeader = "X-Request-Id"

// NewRequestID returns a short, unique identifier derived from a UUIDv4 —
// the first two groups of its canonical string form, which is enough
// entropy (48 bits) to be practically unique per process lifetime while
// staying short in logs.
func NewRequestID() string {
	id := uuid.New()
	s := id.String()
	// canonical form: 8-4-4-4-12; take the first two groups ("8-4").
	return s[:13]
}
