// Package logging provides the illustrative logging interceptor from the
// system overview: structured, per-request logs with a stable request ID
// that is also attached to the outgoing request as a header.
package logging

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kaelbridge/httpflow"
)

var (
	logger     *slog.Logger
	loggerOnce sync.Once
)

// SetLogger sets a custom slog.Logger instance to be used by the logging
// package. If not set, the default slog logger is used.
func SetLogger(l *slog.Logger) {
	logger = l
}

// GetLogger returns the configured logger or the default slog logger.
func GetLogger() *slog.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = slog.Default()
		}
	})
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// Interceptor logs method/URL at request time, status and Cache-Status when
// the response arrives, and the error and its stage on failure, carrying a
// stable request ID across all three. It does not record durations.
type Interceptor struct {
	httpflow.BaseInterceptor
}

// New returns a ready-to-use logging Interceptor.
func New() *Interceptor {
	return &Interceptor{}
}

func (i *Interceptor) OnRequest(ctx context.Context, req *httpflow.Request) (httpflow.RequestOutcome, error) {
	id := req.Header.Get(httpflow.RequestIDHeader)
	if id == "" {
		id = httpflow.NewRequestID()
		req.Header.Set(httpflow.RequestIDHeader, id)
	}
	GetLogger().Info("request started",
		"request_id", id,
		"method", req.Method,
		"url", req.URL,
	)
	return httpflow.NextRequest(req), nil
}

func (i *Interceptor) OnResponse(ctx context.Context, resp *httpflow.StreamedResponse) (httpflow.ResponseOutcome, error) {
	id := ""
	if resp.Request != nil {
		id = resp.Request.Header.Get(httpflow.RequestIDHeader)
	}
	GetLogger().Info("request completed",
		"request_id", id,
		"status", resp.StatusCode,
		"cache_status", resp.Header.Get("Cache-Status"),
	)
	return httpflow.NextResponse(resp), nil
}

func (i *Interceptor) OnError(ctx context.Context, req *httpflow.Request, cause error, stack httpflow.StackInfo) (httpflow.ErrorOutcome, error) {
	id := ""
	if req != nil {
		id = req.Header.Get(httpflow.RequestIDHeader)
	}
	GetLogger().Error("request failed",
		"request_id", id,
		"stage", stack.Stage,
		"error", cause,
	)
	return httpflow.NextError(req, cause), nil
}

var _ httpflow.Interceptor = (*Interceptor)(nil)
