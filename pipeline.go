package httpflow

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// PipelineOption configures a Pipeline at construction time.
type PipelineOption func(*Pipeline)

// WithTransport sets the inner transport used to actually send requests. If
// never set, NewHTTPTransport(nil) is used.
func WithTransport(t Transport) PipelineOption {
	return func(p *Pipeline) { p.transport = t }
}

// WithReverseResponseOrder makes response-stage handlers run in the reverse
// of their declared order (request and error stages are unaffected). This
// gives the common "outermost interceptor wraps everything" mental model:
// declared first, sees the request first and the response last.
func WithReverseResponseOrder(reverse bool) PipelineOption {
	return func(p *Pipeline) { p.reverseResponse = reverse }
}

// Pipeline converts a linear list of interceptors into a single operation
// that yields a StreamedResponse or an error. The same Pipeline may serve
// many concurrent Send calls; it keeps no per-request mutable state on
// itself or on any interceptor.
type Pipeline struct {
	interceptors    []Interceptor
	transport       Transport
	reverseResponse bool
}

// New builds a Pipeline over interceptors, run in declared order.
func New(interceptors []Interceptor, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{interceptors: append([]Interceptor(nil), interceptors...)}
	for _, opt := range opts {
		opt(p)
	}
	if p.transport == nil {
		p.transport = NewHTTPTransport(nil)
	}
	return p
}

// Send drives req through the pipeline: request-stage interceptors, then
// (unless resolved) the transport, then response-stage interceptors, with
// the error stage engaged on any failure along the way.
func (p *Pipeline) Send(ctx context.Context, req *Request) (*StreamedResponse, error) {
	currentReq := req
	var resolved *StreamedResponse
	var committed bool

	for _, ic := range p.interceptors {
		outcome, failure := callOnRequest(ctx, ic, currentReq)
		if failure != nil {
			return p.runErrorStage(ctx, currentReq, failure, StackInfo{Stage: "request"})
		}
		switch outcome.kind {
		case outcomeNext:
			currentReq = outcome.request
		case outcomeResolve:
			resolved = outcome.response
			if outcome.skipRemainingResponse {
				return resolved, nil
			}
		case outcomeResolveAndNext:
			resolved = outcome.response
			committed = true
			currentReq = outcome.request
		case outcomeReject:
			if outcome.skipRemainingErrorStages {
				return nil, outcome.err
			}
			return p.runErrorStage(ctx, currentReq, outcome.err, StackInfo{Stage: "request"})
		}
	}

	if resolved != nil {
		final, err := p.runResponseStage(ctx, resolved)
		if committed {
			go p.backgroundContinue(ctx, currentReq)
		}
		return final, err
	}

	transportResp, err := p.transport.Send(ctx, currentReq)
	if err != nil {
		return p.runErrorStage(ctx, currentReq, err, StackInfo{Stage: "transport"})
	}
	return p.runResponseStage(ctx, transportResp)
}

// backgroundContinue drives the revalidation request produced by
// ResolveAndNext through the transport and the response stage, independent
// of the caller's context: it runs to completion on its own even if the
// caller's context is canceled, and its outcome is always discarded,
// including on rejection.
func (p *Pipeline) backgroundContinue(ctx context.Context, req *Request) {
	bgCtx := context.WithoutCancel(ctx)
	resp, err := p.transport.Send(bgCtx, req)
	if err != nil {
		_, _ = p.runErrorStage(bgCtx, req, err, StackInfo{Stage: "transport", Note: "background revalidation"})
		return
	}
	_, _ = p.runResponseStage(bgCtx, resp)
}

func (p *Pipeline) responseOrder() []Interceptor {
	if !p.reverseResponse {
		return p.interceptors
	}
	reversed := make([]Interceptor, len(p.interceptors))
	for i, ic := range p.interceptors {
		reversed[len(p.interceptors)-1-i] = ic
	}
	return reversed
}

func (p *Pipeline) runResponseStage(ctx context.Context, resp *StreamedResponse) (*StreamedResponse, error) {
	current := resp
	for _, ic := range p.responseOrder() {
		outcome, failure := callOnResponse(ctx, ic, current)
		if failure != nil {
			return p.runErrorStage(ctx, current.Request, failure, StackInfo{Stage: "response"})
		}
		switch outcome.kind {
		case outcomeNext:
			current = outcome.response
		case outcomeResolve:
			return outcome.response, nil
		case outcomeReject:
			if outcome.skipRemainingErrorStages {
				return nil, outcome.err
			}
			return p.runErrorStage(ctx, current.Request, outcome.err, StackInfo{Stage: "response"})
		}
	}
	return current, nil
}

func (p *Pipeline) runErrorStage(ctx context.Context, req *Request, cause error, stack StackInfo) (*StreamedResponse, error) {
	currentReq := req
	currentErr := cause
	for _, ic := range p.interceptors {
		outcome, failure := callOnError(ctx, ic, currentReq, currentErr, stack)
		if failure != nil {
			currentErr = failure
			continue
		}
		switch outcome.kind {
		case outcomeNext:
			currentReq = outcome.request
			currentErr = outcome.err
		case outcomeResolve:
			return outcome.response, nil
		case outcomeReject:
			return nil, outcome.err
		}
	}
	return nil, currentErr
}

// Close disposes each interceptor (in declared order) and the transport, if
// it implements io.Closer. Dispose/Close errors are joined, not discarded.
func (p *Pipeline) Close(ctx context.Context) error {
	var errs []error
	for _, ic := range p.interceptors {
		if err := ic.Dispose(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if closer, ok := p.transport.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("httpflow: %d error(s) closing pipeline: %w", len(errs), errors.Join(errs...))
}

// callOnRequest invokes ic.OnRequest, converting a panic into a failure so
// that an interceptor bug enters the error stage rather than crashing the
// caller, as if the interceptor had returned Reject(error).
func callOnRequest(ctx context.Context, ic Interceptor, req *Request) (outcome RequestOutcome, failure error) {
	defer func() {
		if r := recover(); r != nil {
			failure = fmt.Errorf("httpflow: interceptor panic in OnRequest: %v", r)
		}
	}()
	return ic.OnRequest(ctx, req)
}

func callOnResponse(ctx context.Context, ic Interceptor, resp *StreamedResponse) (outcome ResponseOutcome, failure error) {
	defer func() {
		if r := recover(); r != nil {
			failure = fmt.Errorf("httpflow: interceptor panic in OnResponse: %v", r)
		}
	}()
	return ic.OnResponse(ctx, resp)
}

func callOnError(ctx context.Context, ic Interceptor, req *Request, cause error, stack StackInfo) (outcome ErrorOutcome, failure error) {
	defer func() {
		if r := recover(); r != nil {
			failure = fmt.Errorf("httpflow: interceptor panic in OnError: %v", r)
		}
	}()
	outcome, err := ic.OnError(ctx, req, cause, stack)
	if err != nil {
		return ErrorOutcome{}, err
	}
	return outcome, nil
}
