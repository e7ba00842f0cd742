package httpflow

// OutcomeKind identifies which tagged variant a Request/Response/ErrorOutcome
// carries. Callers that only build and return outcomes never need this; it
// exists for tests and diagnostics that want to assert on the shape of an
// outcome without reaching into its unexported fields.
type OutcomeKind int

const (
	OutcomeNext OutcomeKind = iota
	OutcomeResolve
	OutcomeResolveAndNext
	OutcomeReject
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeNext:
		return "next"
	case OutcomeResolve:
		return "resolve"
	case OutcomeResolveAndNext:
		return "resolve-and-next"
	case OutcomeReject:
		return "reject"
	default:
		return "unknown"
	}
}

type outcomeKind = OutcomeKind

const (
	outcomeNext           = OutcomeNext
	outcomeResolve        = OutcomeResolve
	outcomeResolveAndNext = OutcomeResolveAndNext
	outcomeReject         = OutcomeReject
)

// RequestOutcome is returned by Interceptor.OnRequest.
type RequestOutcome struct {
	kind                     outcomeKind
	request                  *Request
	response                 *StreamedResponse
	err                      error
	skipRemainingResponse    bool
	skipRemainingErrorStages bool
}

// NextRequest forwards request' to the next request-stage interceptor (or to
// the transport, if this was the last one).
func NextRequest(req *Request) RequestOutcome {
	return RequestOutcome{kind: outcomeNext, request: req}
}

// ResolveRequest completes the call with resp without invoking the
// transport. If skipRemainingResponse is true the call completes
// immediately; otherwise later request-stage interceptors still run (seeing
// the request, not the response) and resp is remembered as the pending
// result unless a later interceptor calls ResolveAndNext or the transport
// ends up being invoked.
func ResolveRequest(resp *StreamedResponse, skipRemainingResponse bool) RequestOutcome {
	return RequestOutcome{kind: outcomeResolve, response: resp, skipRemainingResponse: skipRemainingResponse}
}

// ResolveAndNext behaves like ResolveRequest(resp, false) but also commits to
// sending req to the transport even though a response is already available.
// The transport's eventual response/error still runs through the response
// and error stages; the resolved response returned here is what the caller
// ultimately receives unless a later request-stage interceptor overrides it.
func ResolveAndNext(req *Request, resp *StreamedResponse) RequestOutcome {
	return RequestOutcome{kind: outcomeResolveAndNext, request: req, response: resp}
}

// RejectRequest raises err into the error stage. If skip is true, the error
// stage is bypassed and the call completes with err directly.
func RejectRequest(err error, skip bool) RequestOutcome {
	return RequestOutcome{kind: outcomeReject, err: err, skipRemainingErrorStages: skip}
}

// Kind reports which variant this outcome holds.
func (o RequestOutcome) Kind() OutcomeKind { return o.kind }

// Request returns the request carried by a Next or ResolveAndNext outcome.
func (o RequestOutcome) Request() *Request { return o.request }

// Response returns the response carried by a Resolve or ResolveAndNext outcome.
func (o RequestOutcome) Response() *StreamedResponse { return o.response }

// Err returns the error carried by a Reject outcome.
func (o RequestOutcome) Err() error { return o.err }

// ResponseOutcome is returned by Interceptor.OnResponse.
type ResponseOutcome struct {
	kind                     outcomeKind
	response                 *StreamedResponse
	err                      error
	skipRemainingErrorStages bool
}

// NextResponse forwards resp' to the next response-stage interceptor.
func NextResponse(resp *StreamedResponse) ResponseOutcome {
	return ResponseOutcome{kind: outcomeNext, response: resp}
}

// ResolveResponse completes the call with resp immediately.
func ResolveResponse(resp *StreamedResponse) ResponseOutcome {
	return ResponseOutcome{kind: outcomeResolve, response: resp}
}

// RejectResponse raises err into the error stage.
func RejectResponse(err error, skip bool) ResponseOutcome {
	return ResponseOutcome{kind: outcomeReject, err: err, skipRemainingErrorStages: skip}
}

// Kind reports which variant this outcome holds.
func (o ResponseOutcome) Kind() OutcomeKind { return o.kind }

// Response returns the response carried by a Next or Resolve outcome.
func (o ResponseOutcome) Response() *StreamedResponse { return o.response }

// Err returns the error carried by a Reject outcome.
func (o ResponseOutcome) Err() error { return o.err }

// ErrorOutcome is returned by Interceptor.OnError.
type ErrorOutcome struct {
	kind     outcomeKind
	request  *Request
	err      error
	response *StreamedResponse
}

// NextError forwards (request, err) to the next error-stage interceptor.
func NextError(req *Request, err error) ErrorOutcome {
	return ErrorOutcome{kind: outcomeNext, request: req, err: err}
}

// ResolveError completes the call with a synthesized success response.
func ResolveError(resp *StreamedResponse) ErrorOutcome {
	return ErrorOutcome{kind: outcomeResolve, response: resp}
}

// RejectError completes the call with the (possibly rewritten) error.
func RejectError(err error) ErrorOutcome {
	return ErrorOutcome{kind: outcomeReject, err: err}
}

// Kind reports which variant this outcome holds.
func (o ErrorOutcome) Kind() OutcomeKind { return o.kind }

// Request returns the request carried by a Next outcome.
func (o ErrorOutcome) Request() *Request { return o.request }

// Response returns the response carried by a Resolve outcome.
func (o ErrorOutcome) Response() *StreamedResponse { return o.response }

// Err returns the error carried by a Next or Reject outcome.
func (o ErrorOutcome) Err() error { return o.err }
