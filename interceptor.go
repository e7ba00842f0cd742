package httpflow

import "context"

// Interceptor exposes up to three optional asynchronous handlers. A missing
// handler (nil on WrapperInterceptor, or simply not overridden by an
// embedding type) defaults to forwarding unchanged.
type Interceptor interface {
	OnRequest(ctx context.Context, req *Request) (RequestOutcome, error)
	OnResponse(ctx context.Context, resp *StreamedResponse) (ResponseOutcome, error)
	OnError(ctx context.Context, req *Request, cause error, stack StackInfo) (ErrorOutcome, error)
	// Dispose releases any resources held by the interceptor. Called once
	// when the owning Pipeline is closed.
	Dispose(ctx context.Context) error
}

// StackInfo carries optional provenance about where an error originated,
// threaded through the error stage by the pipeline.
type StackInfo struct {
	Stage string // "request", "transport", "response", "error"
	Note  string
}

// BaseInterceptor provides forward-everything defaults; embed it and
// override only the handlers you need, the way net/http.Handler middleware
// typically only overrides ServeHTTP for the parts it cares about.
type BaseInterceptor struct{}

func (BaseInterceptor) OnRequest(_ context.Context, req *Request) (RequestOutcome, error) {
	return NextRequest(req), nil
}

func (BaseInterceptor) OnResponse(_ context.Context, resp *StreamedResponse) (ResponseOutcome, error) {
	return NextResponse(resp), nil
}

func (BaseInterceptor) OnError(_ context.Context, req *Request, cause error, _ StackInfo) (ErrorOutcome, error) {
	return NextError(req, cause), nil
}

func (BaseInterceptor) Dispose(_ context.Context) error { return nil }

// WrapperInterceptor accepts function-valued handlers at construction time
// for callers who prefer inline definitions over a named type. Any handler
// left nil forwards.
type WrapperInterceptor struct {
	RequestFunc  func(ctx context.Context, req *Request) (RequestOutcome, error)
	ResponseFunc func(ctx context.Context, resp *StreamedResponse) (ResponseOutcome, error)
	ErrorFunc    func(ctx context.Context, req *Request, cause error, stack StackInfo) (ErrorOutcome, error)
	DisposeFunc  func(ctx context.Context) error
}

func (w *WrapperInterceptor) OnRequest(ctx context.Context, req *Request) (RequestOutcome, error) {
	if w.RequestFunc == nil {
		return NextRequest(req), nil
	}
	return w.RequestFunc(ctx, req)
}

func (w *WrapperInterceptor) OnResponse(ctx context.Context, resp *StreamedResponse) (ResponseOutcome, error) {
	if w.ResponseFunc == nil {
		return NextResponse(resp), nil
	}
	return w.ResponseFunc(ctx, resp)
}

func (w *WrapperInterceptor) OnError(ctx context.Context, req *Request, cause error, stack StackInfo) (ErrorOutcome, error) {
	if w.ErrorFunc == nil {
		return NextError(req, cause), nil
	}
	return w.ErrorFunc(ctx, req, cause, stack)
}

func (w *WrapperInterceptor) Dispose(ctx context.Context) error {
	if w.DisposeFunc == nil {
		return nil
	}
	return w.DisposeFunc(ctx)
}

var _ Interceptor = (*WrapperInterceptor)(nil)
var _ Interceptor = BaseInterceptor{}
