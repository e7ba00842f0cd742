package cache

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/kaelbridge/httpflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInterceptor(t *testing.T, opts ...Option) *Interceptor {
	t.Helper()
	ic, err := NewInMemory(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ic.Dispose(context.Background()) })
	return ic
}

func newGetRequest(url string) *httpflow.Request {
	return httpflow.NewRequest(context.Background(), http.MethodGet, url)
}

func body(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

func originResponse(req *httpflow.Request, status int, header http.Header, content string) *httpflow.StreamedResponse {
	if header == nil {
		header = http.Header{}
	}
	return &httpflow.StreamedResponse{
		StatusCode:    status,
		Reason:        http.StatusText(status),
		ContentLength: int64(len(content)),
		Header:        header,
		Body:          body(content),
		Request:       req,
	}
}

func drain(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	return string(data)
}

// waitForStore gives the asynchronous body-persist goroutine a chance to
// finish before the test inspects store state directly.
func waitForStore() { time.Sleep(20 * time.Millisecond) }

func TestFirstRequestIsAMissAndGetsStored(t *testing.T) {
	ic := newTestInterceptor(t)
	req := newGetRequest("https://example.com/a")

	outcome, err := ic.OnRequest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, httpflow.OutcomeNext, outcome.Kind())

	resp := originResponse(req, http.StatusOK, http.Header{"Cache-Control": {"max-age=60"}}, "hello")
	respOutcome, err := ic.OnResponse(context.Background(), resp)
	require.NoError(t, err)
	require.Equal(t, httpflow.OutcomeNext, respOutcome.Kind())

	assert.Equal(t, "hello", drain(t, respOutcome.Response().Body))
	waitForStore()

	primary := DerivePrimaryKey(canonicalURL(req.URL))
	_, ok := ic.journal.Match(string(primary), headerGetter(req.Header))
	assert.True(t, ok, "entry should be stored after a 200 response")
}

func TestFreshEntryServesWithoutRevalidation(t *testing.T) {
	ic := newTestInterceptor(t)
	req := newGetRequest("https://example.com/b")
	resp := originResponse(req, http.StatusOK, http.Header{"Cache-Control": {"max-age=60"}}, "cached-body")
	_, err := ic.OnResponse(context.Background(), resp)
	require.NoError(t, err)
	waitForStore()

	second := newGetRequest("https://example.com/b")
	outcome, err := ic.OnRequest(context.Background(), second)
	require.NoError(t, err)
	require.Equal(t, httpflow.OutcomeResolve, outcome.Kind())
	assert.Equal(t, "cached-body", drain(t, outcome.Response().Body))
	assert.True(t, isOwnHit(outcome.Response().Header.Get(StatusHeader), ic.opts.cacheName))
}

func TestExpiredEntryTriggersRevalidation(t *testing.T) {
	ic := newTestInterceptor(t)
	req := newGetRequest("https://example.com/c")
	resp := originResponse(req, http.StatusOK, http.Header{
		"Cache-Control": {"max-age=0"},
		"Etag":          {`"v1"`},
	}, "stale-soon")
	_, err := ic.OnResponse(context.Background(), resp)
	require.NoError(t, err)
	waitForStore()

	second := newGetRequest("https://example.com/c")
	outcome, err := ic.OnRequest(context.Background(), second)
	require.NoError(t, err)
	require.Equal(t, httpflow.OutcomeNext, outcome.Kind())
	assert.Equal(t, `"v1"`, outcome.Request().Header.Get("If-None-Match"))
}

func TestNotModifiedOverlaysStoredEntry(t *testing.T) {
	ic := newTestInterceptor(t)
	req := newGetRequest("https://example.com/d")
	resp := originResponse(req, http.StatusOK, http.Header{
		"Cache-Control": {"max-age=0"},
		"Etag":          {`"v1"`},
	}, "original-body")
	_, err := ic.OnResponse(context.Background(), resp)
	require.NoError(t, err)
	waitForStore()

	revalReq := newGetRequest("https://example.com/d")
	revalReq.Header.Set("If-None-Match", `"v1"`)
	notModified := originResponse(revalReq, http.StatusNotModified, http.Header{
		"Cache-Control": {"max-age=120"},
		"Etag":          {`"v1"`},
	}, "")
	notModified.Body = io.NopCloser(strings.NewReader(""))

	outcome, err := ic.OnResponse(context.Background(), notModified)
	require.NoError(t, err)
	require.Equal(t, httpflow.OutcomeResolve, outcome.Kind())
	assert.Equal(t, "original-body", drain(t, outcome.Response().Body))

	primary := DerivePrimaryKey(canonicalURL(req.URL))
	entry, ok := ic.journal.Match(string(primary), headerGetter(req.Header))
	require.True(t, ok)
	assert.Equal(t, "max-age=120", entry.Headers["cache-control"][0])
}

func TestStaleWhileRevalidateServesStaleImmediately(t *testing.T) {
	ic := newTestInterceptor(t)
	req := newGetRequest("https://example.com/e")
	resp := originResponse(req, http.StatusOK, http.Header{
		"Cache-Control": {"max-age=0, stale-while-revalidate=30"},
	}, "swr-body")
	_, err := ic.OnResponse(context.Background(), resp)
	require.NoError(t, err)
	waitForStore()

	second := newGetRequest("https://example.com/e")
	outcome, err := ic.OnRequest(context.Background(), second)
	require.NoError(t, err)
	require.Equal(t, httpflow.OutcomeResolveAndNext, outcome.Kind())
	assert.Equal(t, "swr-body", drain(t, outcome.Response().Body))
	assert.Contains(t, outcome.Response().Header.Get("Warning"), "110")
}

func TestNoStoreResponseIsNeverCached(t *testing.T) {
	ic := newTestInterceptor(t)
	req := newGetRequest("https://example.com/f")
	resp := originResponse(req, http.StatusOK, http.Header{"Cache-Control": {"no-store"}}, "secret")
	outcome, err := ic.OnResponse(context.Background(), resp)
	require.NoError(t, err)
	assert.Equal(t, "secret", drain(t, outcome.Response().Body))
	waitForStore()

	primary := DerivePrimaryKey(canonicalURL(req.URL))
	_, ok := ic.journal.Match(string(primary), headerGetter(req.Header))
	assert.False(t, ok)
}

func TestVaryProducesDistinctEntriesPerHeaderValue(t *testing.T) {
	ic := newTestInterceptor(t)

	reqJSON := newGetRequest("https://example.com/g")
	reqJSON.Header.Set("Accept", "application/json")
	respJSON := originResponse(reqJSON, http.StatusOK, http.Header{
		"Cache-Control": {"max-age=60"},
		"Vary":          {"Accept"},
	}, "json-body")
	_, err := ic.OnResponse(context.Background(), respJSON)
	require.NoError(t, err)

	reqXML := newGetRequest("https://example.com/g")
	reqXML.Header.Set("Accept", "application/xml")
	respXML := originResponse(reqXML, http.StatusOK, http.Header{
		"Cache-Control": {"max-age=60"},
		"Vary":          {"Accept"},
	}, "xml-body")
	_, err = ic.OnResponse(context.Background(), respXML)
	require.NoError(t, err)
	waitForStore()

	lookupJSON := newGetRequest("https://example.com/g")
	lookupJSON.Header.Set("Accept", "application/json")
	outcome, err := ic.OnRequest(context.Background(), lookupJSON)
	require.NoError(t, err)
	require.Equal(t, httpflow.OutcomeResolve, outcome.Kind())
	assert.Equal(t, "json-body", drain(t, outcome.Response().Body))

	lookupXML := newGetRequest("https://example.com/g")
	lookupXML.Header.Set("Accept", "application/xml")
	outcome, err = ic.OnRequest(context.Background(), lookupXML)
	require.NoError(t, err)
	require.Equal(t, httpflow.OutcomeResolve, outcome.Kind())
	assert.Equal(t, "xml-body", drain(t, outcome.Response().Body))
}

func TestUnsafeMethodInvalidatesPriorEntry(t *testing.T) {
	ic := newTestInterceptor(t)
	req := newGetRequest("https://example.com/h")
	resp := originResponse(req, http.StatusOK, http.Header{"Cache-Control": {"max-age=60"}}, "v1")
	_, err := ic.OnResponse(context.Background(), resp)
	require.NoError(t, err)
	waitForStore()

	postReq := httpflow.NewRequest(context.Background(), http.MethodPost, "https://example.com/h")
	_, err = ic.OnRequest(context.Background(), postReq)
	require.NoError(t, err)

	primary := DerivePrimaryKey(canonicalURL(req.URL))
	_, ok := ic.journal.Match(string(primary), headerGetter(req.Header))
	assert.False(t, ok, "entry should be invalidated after an unsafe method on the same URL")
}

func TestStaleIfErrorServesCachedEntryOnFailure(t *testing.T) {
	ic := newTestInterceptor(t)
	req := newGetRequest("https://example.com/i")
	resp := originResponse(req, http.StatusOK, http.Header{
		"Cache-Control": {"max-age=0, stale-if-error=60"},
	}, "fallback-body")
	_, err := ic.OnResponse(context.Background(), resp)
	require.NoError(t, err)
	waitForStore()

	failingReq := newGetRequest("https://example.com/i")
	outcome, err := ic.OnError(context.Background(), failingReq, context.DeadlineExceeded, httpflow.StackInfo{Stage: "transport"})
	require.NoError(t, err)
	require.Equal(t, httpflow.OutcomeResolve, outcome.Kind())
	assert.Equal(t, "fallback-body", drain(t, outcome.Response().Body))
	assert.Contains(t, outcome.Response().Header.Get("Warning"), "111")
}

func TestErrorWithoutCachedEntryPassesThrough(t *testing.T) {
	ic := newTestInterceptor(t)
	req := newGetRequest("https://example.com/never-cached")
	outcome, err := ic.OnError(context.Background(), req, context.DeadlineExceeded, httpflow.StackInfo{Stage: "transport"})
	require.NoError(t, err)
	assert.Equal(t, httpflow.OutcomeNext, outcome.Kind())
}

func TestResolvedCacheHitIsNotReprocessedOnResponseStage(t *testing.T) {
	ic := newTestInterceptor(t)
	req := newGetRequest("https://example.com/j")
	resp := originResponse(req, http.StatusOK, http.Header{"Cache-Control": {"max-age=60"}}, "body")
	_, err := ic.OnResponse(context.Background(), resp)
	require.NoError(t, err)
	waitForStore()

	second := newGetRequest("https://example.com/j")
	requestOutcome, err := ic.OnRequest(context.Background(), second)
	require.NoError(t, err)
	require.Equal(t, httpflow.OutcomeResolve, requestOutcome.Kind())

	responseOutcome, err := ic.OnResponse(context.Background(), requestOutcome.Response())
	require.NoError(t, err)
	assert.Equal(t, httpflow.OutcomeNext, responseOutcome.Kind())
}

func TestEvictionRemovesLowestFrecencyEntryWhenOverBudget(t *testing.T) {
	ic := newTestInterceptor(t, WithMaxCacheSize(10))

	req1 := newGetRequest("https://example.com/k1")
	resp1 := originResponse(req1, http.StatusOK, http.Header{"Cache-Control": {"max-age=60"}}, "0123456789")
	_, err := ic.OnResponse(context.Background(), resp1)
	require.NoError(t, err)
	waitForStore()

	req2 := newGetRequest("https://example.com/k2")
	resp2 := originResponse(req2, http.StatusOK, http.Header{"Cache-Control": {"max-age=60"}}, "9876543210")
	_, err = ic.OnResponse(context.Background(), resp2)
	require.NoError(t, err)
	waitForStore()

	assert.LessOrEqual(t, ic.journal.TotalSize(), int64(10))

	primary1 := DerivePrimaryKey(canonicalURL(req1.URL))
	_, ok := ic.journal.Match(string(primary1), headerGetter(req1.Header))
	assert.False(t, ok, "the older, never-hit entry should have been evicted")
}

func TestPrivateResponseSkippedWhenCacheConfiguredShared(t *testing.T) {
	ic := newTestInterceptor(t, WithPrivate(false))
	req := newGetRequest("https://example.com/l")
	resp := originResponse(req, http.StatusOK, http.Header{"Cache-Control": {"max-age=60, private"}}, "user-data")
	_, err := ic.OnResponse(context.Background(), resp)
	require.NoError(t, err)
	waitForStore()

	primary := DerivePrimaryKey(canonicalURL(req.URL))
	_, ok := ic.journal.Match(string(primary), headerGetter(req.Header))
	assert.False(t, ok)
}
