// Package httpflow provides a client-side HTTP middleware pipeline: an
// ordered chain of interceptors that may inspect, modify, short-circuit, or
// fail a request, a response, or an error, wrapping an underlying transport.
package httpflow

import (
	"context"
	"io"
	"net/http"
)

// BodyProducer produces the byte stream for an outgoing request body. It
// must be restartable: Open may be called more than once if an interceptor
// needs to inspect and then forward the body (e.g. for retries).
type BodyProducer interface {
	Open() (io.ReadCloser, error)
	// ContentLength returns the length of the body, or -1 if unknown.
	ContentLength() int64
}

// Request is the mutable input to the pipeline. Interceptors in the request
// stage may replace it wholesale (via Next); later stages observe whatever
// the last interceptor produced.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   BodyProducer

	ctx context.Context
}

// NewRequest builds a Request bound to ctx.
func NewRequest(ctx context.Context, method, url string) *Request {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Request{Method: method, URL: url, Header: http.Header{}, ctx: ctx}
}

// Context returns the request's context, defaulting to context.Background.
func (r *Request) Context() context.Context {
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// WithContext returns a shallow copy of r with its context replaced.
func (r *Request) WithContext(ctx context.Context) *Request {
	r2 := new(Request)
	*r2 = *r
	r2.ctx = ctx
	return r2
}

// Clone returns a shallow copy of r with a deep copy of the header map, so
// that mutating the clone's headers never affects the original.
func (r *Request) Clone() *Request {
	r2 := new(Request)
	*r2 = *r
	r2.Header = cloneHeader(r.Header)
	return r2
}

func cloneHeader(h http.Header) http.Header {
	if h == nil {
		return http.Header{}
	}
	h2 := make(http.Header, len(h))
	for k, v := range h {
		v2 := make([]string, len(v))
		copy(v2, v)
		h2[k] = v2
	}
	return h2
}

// StreamedResponse is the output of a single request/response exchange. Body
// is at-most-once: once consumed it cannot be replayed. Interceptors that
// need to both read and forward the body must use Tee.
type StreamedResponse struct {
	StatusCode    int
	Reason        string
	ContentLength int64 // -1 if unknown
	Header        http.Header
	Body          io.ReadCloser

	// Request is the request that produced this response, after all request
	// stage rewrites.
	Request *Request
}

// Clone returns a shallow copy of resp with a deep copy of the header map.
// Body is NOT duplicated - callers must Tee first if they need the body
// available on both the clone and the original.
func (resp *StreamedResponse) Clone() *StreamedResponse {
	r2 := new(StreamedResponse)
	*r2 = *resp
	r2.Header = cloneHeader(resp.Header)
	return r2
}
