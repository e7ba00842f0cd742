package prometheus

import (
	"context"
	"time"

	"github.com/kaelbridge/httpflow"
	"github.com/kaelbridge/httpflow/cache"
	"github.com/kaelbridge/httpflow/metrics"
)

// InstrumentedTransport wraps an httpflow.Transport with metrics recording,
// reading cache outcome off the Cache-Status header a cache.Interceptor left
// on the response. Wrap a *httpflow.Pipeline (which satisfies Transport)
// rather than the pipeline's inner network transport, so Send observes the
// final response after the cache interceptor's response stage has run.
type InstrumentedTransport struct {
	underlying httpflow.Transport
	collector  metrics.Collector
}

// NewInstrumentedTransport wraps transport, recording metrics for every
// request through collector. If collector is nil, metrics.DefaultCollector
// (a no-op) is used.
func NewInstrumentedTransport(transport httpflow.Transport, collector metrics.Collector) *InstrumentedTransport {
	if collector == nil {
		collector = metrics.DefaultCollector
	}
	return &InstrumentedTransport{underlying: transport, collector: collector}
}

var _ httpflow.Transport = (*InstrumentedTransport)(nil)

// Send executes req through the underlying transport, recording request
// duration, outcome, and response size.
func (t *InstrumentedTransport) Send(ctx context.Context, req *httpflow.Request) (*httpflow.StreamedResponse, error) {
	start := time.Now()
	resp, err := t.underlying.Send(ctx, req)
	duration := time.Since(start)

	if err != nil {
		return resp, err
	}

	cacheStatus := cacheStatusLabel(resp)
	t.collector.RecordHTTPRequest(req.Method, cacheStatus, resp.StatusCode, duration)
	if resp.ContentLength >= 0 {
		t.collector.RecordHTTPResponseSize(cacheStatus, resp.ContentLength)
	}

	return resp, nil
}

// cacheStatusLabel classifies a response for metrics purposes from its
// Cache-Status header: "hit", "revalidated" (a 304 overlay resolved to a
// hit), "miss", or "bypass" (no Cache-Status header at all, meaning no
// cache.Interceptor is in the pipeline).
func cacheStatusLabel(resp *httpflow.StreamedResponse) string {
	header := resp.Header.Get(cache.StatusHeader)
	if header == "" {
		return "bypass"
	}
	status, ok := cache.ParseStatus(header)
	if !ok {
		return "bypass"
	}
	if status.Hit {
		if status.Detail == "revalidated" {
			return "revalidated"
		}
		return "hit"
	}
	return "miss"
}
