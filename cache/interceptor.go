package cache

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kaelbridge/httpflow"
	"github.com/kaelbridge/httpflow/bodystore"
	"github.com/kaelbridge/httpflow/journal"
)

// overlayHeaders lists the response headers a 304 is allowed to refresh on
// an existing stored entry.
var overlayHeaders = []string{"cache-control", "date", "etag", "expires", "last-modified", "vary", "warning"}

// Interceptor is an httpflow.Interceptor implementing an RFC 9111-aligned
// HTTP cache: lookup and conditional revalidation on the request stage,
// storage and 304 overlay on the response stage, and stale-if-error fallback
// on the error stage.
type Interceptor struct {
	journal *journal.Journal
	store   bodystore.Store
	opts    options
}

var _ httpflow.Interceptor = (*Interceptor)(nil)

// New builds an Interceptor over an already-constructed journal and body
// store, for callers assembling their own storage combination (LevelDB,
// Tiered, ...).
func New(j *journal.Journal, store bodystore.Store, opts ...Option) *Interceptor {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Interceptor{journal: j, store: store, opts: o}
}

// NewLocal builds an Interceptor backed by an on-disk body store and a
// durable journal rooted at dir.
func NewLocal(ctx context.Context, dir string, opts ...Option) (*Interceptor, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	store := bodystore.NewFileStore(dir + "/blobs")
	wrapped, err := wrapStore(store, o)
	if err != nil {
		return nil, err
	}
	j, err := journal.Open(ctx, dir+"/journal.bin", wrapped)
	if err != nil {
		return nil, err
	}
	return &Interceptor{journal: j, store: wrapped, opts: o}, nil
}

// NewInMemory builds an Interceptor backed entirely by memory, useful for
// short-lived processes and tests.
func NewInMemory(opts ...Option) (*Interceptor, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	store, err := wrapStore(bodystore.NewMemoryStore(), o)
	if err != nil {
		return nil, err
	}
	return &Interceptor{journal: journal.OpenInMemory(), store: store, opts: o}, nil
}

// Dispose flushes and closes the underlying journal.
func (i *Interceptor) Dispose(_ context.Context) error {
	return i.journal.Close()
}

func canonicalURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	return u.String()
}

func isUnsafeMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	default:
		return false
	}
}

func lowercaseHeaders(h http.Header) map[string][]string {
	out := make(map[string][]string, len(h))
	for k, v := range h {
		vv := make([]string, len(v))
		copy(vv, v)
		out[strings.ToLower(k)] = vv
	}
	return out
}

// OnRequest implements the request stage: invalidation on unsafe methods,
// lookup and conditional revalidation on GET.
func (i *Interceptor) OnRequest(_ context.Context, req *httpflow.Request) (httpflow.RequestOutcome, error) {
	ctx := req.Context()

	if isUnsafeMethod(req.Method) {
		i.invalidate(ctx, req)
		return httpflow.NextRequest(req), nil
	}
	if req.Method != http.MethodGet {
		return httpflow.NextRequest(req), nil
	}

	primary := DerivePrimaryKey(canonicalURL(req.URL))
	entry, ok := i.journal.Match(string(primary), headerGetter(req.Header))
	if !ok {
		GetLogger().Debug("cache miss", "key", string(primary))
		return httpflow.NextRequest(req), nil
	}
	if _, err := i.store.Size(ctx, entry.SecondaryKey); err != nil {
		GetLogger().Debug("cache miss: blob missing", "key", string(primary))
		return httpflow.NextRequest(req), nil
	}

	req = req.Clone()
	if etag := firstHeader(entry.Headers, "etag"); etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod := firstHeader(entry.Headers, "last-modified"); lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}

	if parseRequestControl(req.Header).has(directiveNoCache) {
		return httpflow.NextRequest(req), nil
	}

	cc := entryControl(entry)
	now := time.Now()

	if !needsRevalidation(entry, cc, now) {
		i.journal.Touch(string(primary), entry.SecondaryKey, now)
		resp, err := i.buildCachedResponse(ctx, req, entry, string(primary), "")
		if err != nil {
			return httpflow.NextRequest(req), nil
		}
		return httpflow.ResolveRequest(resp, false), nil
	}

	if isStaleWhileRevalidate(entry, cc, now) {
		i.journal.Touch(string(primary), entry.SecondaryKey, now)
		resp, err := i.buildCachedResponse(ctx, req, entry, string(primary), "stale-while-revalidate")
		if err != nil {
			return httpflow.NextRequest(req), nil
		}
		return httpflow.ResolveAndNext(req, resp), nil
	}

	return httpflow.NextRequest(req), nil
}

// buildCachedResponse reconstructs a StreamedResponse from a stored entry,
// tagging it with a Cache-Status hit so the response stage recognizes and
// skips it rather than reprocessing an already-served cache hit.
func (i *Interceptor) buildCachedResponse(ctx context.Context, req *httpflow.Request, entry *journal.Entry, primary, detail string) (*httpflow.StreamedResponse, error) {
	body, err := i.store.Open(ctx, entry.SecondaryKey)
	if err != nil {
		return nil, err
	}
	header := make(http.Header, len(entry.Headers))
	for k, v := range entry.Headers {
		vv := make([]string, len(v))
		copy(vv, v)
		header[http.CanonicalHeaderKey(k)] = vv
	}
	if detail == "stale-while-revalidate" {
		addStaleWarning(header)
	}
	status := Status{CacheName: i.opts.cacheName, Hit: true, Key: primary}
	if i.opts.markCachedResponses {
		status.Detail = detail
	}
	header.Set(StatusHeader, status.String())

	return &httpflow.StreamedResponse{
		StatusCode:    http.StatusOK,
		Reason:        entry.ReasonPhrase,
		ContentLength: entry.ContentLength,
		Header:        header,
		Body:          body,
		Request:       req,
	}, nil
}

func firstHeader(h map[string][]string, name string) string {
	if v, ok := h[name]; ok && len(v) > 0 {
		return v[0]
	}
	return ""
}

func (i *Interceptor) invalidate(ctx context.Context, req *httpflow.Request) {
	primary := DerivePrimaryKey(canonicalURL(req.URL))
	secondaries := i.journal.DeletePrimary(string(primary))
	for _, sec := range secondaries {
		if err := i.store.Delete(ctx, sec); err != nil {
			GetLogger().Error("invalidate: deleting blob", "key", sec, "error", err)
		}
	}
}

// OnResponse implements the response stage: skip for non-GET and for hits
// this cache already produced, overlay a 304 onto the stored entry, or store
// a fresh 200.
func (i *Interceptor) OnResponse(_ context.Context, resp *httpflow.StreamedResponse) (httpflow.ResponseOutcome, error) {
	if resp.Request == nil {
		return httpflow.NextResponse(resp), nil
	}
	ctx := resp.Request.Context()

	if isOwnHit(resp.Header.Get(StatusHeader), i.opts.cacheName) {
		return httpflow.NextResponse(resp), nil
	}
	if resp.Request.Method != http.MethodGet {
		return httpflow.NextResponse(resp), nil
	}

	if resp.StatusCode == http.StatusNotModified {
		return i.handleNotModified(ctx, resp)
	}
	if resp.StatusCode != http.StatusOK {
		return httpflow.NextResponse(resp), nil
	}

	respCC := parseResponseControl(resp.Header)
	primary := DerivePrimaryKey(canonicalURL(resp.Request.URL))

	if respCC.has(directiveNoStore) {
		return httpflow.NextResponse(resp), nil
	}
	if respCC.has(directivePrivate) && !i.opts.private {
		return httpflow.NextResponse(resp), nil
	}
	if containsVaryStar(resp.Header) {
		return httpflow.NextResponse(resp), nil
	}

	return i.store200(ctx, resp, primary)
}

func (i *Interceptor) handleNotModified(ctx context.Context, resp *httpflow.StreamedResponse) (httpflow.ResponseOutcome, error) {
	primary := DerivePrimaryKey(canonicalURL(resp.Request.URL))
	entry, ok := i.journal.Match(string(primary), headerGetter(resp.Request.Header))
	if !ok {
		return httpflow.NextResponse(resp), nil
	}

	newHeaders := lowercaseHeaders(resp.Header)
	now := time.Now()
	mutated := i.journal.Mutate(string(primary), entry.SecondaryKey, func(e *journal.Entry) {
		for _, name := range overlayHeaders {
			if values, present := newHeaders[name]; present {
				e.Headers[name] = values
			}
		}
		e.LastAccess = journal.NewTimestamp(now)
	})
	if !mutated {
		return httpflow.NextResponse(resp), nil
	}

	updated, ok := i.journal.Get(string(primary), entry.SecondaryKey)
	if !ok {
		return httpflow.NextResponse(resp), nil
	}
	cached, err := i.buildCachedResponse(ctx, resp.Request, updated, string(primary), "revalidated")
	if err != nil {
		return httpflow.NextResponse(resp), nil
	}
	return httpflow.ResolveResponse(cached), nil
}

func (i *Interceptor) store200(ctx context.Context, resp *httpflow.StreamedResponse, primary PrimaryKey) (httpflow.ResponseOutcome, error) {
	varyNames := varyNamesFromResponse(resp.Header)
	secondary := DeriveSecondaryKey(primary, varyNames, resp.Request.Header)
	vary := varySnapshot(varyNames, resp.Request.Header)
	headerSnapshot := lowercaseHeaders(resp.Header)

	existing, hadExisting := i.journal.Get(string(primary), string(secondary))
	var hitCount int64
	if hadExisting {
		hitCount = existing.HitCount
	}

	a, b := httpflow.Tee(resp.Body)

	go i.persistBody(ctx, string(primary), string(secondary), b, headerSnapshot, resp.Reason, resp.ContentLength, vary, hitCount)

	out := resp.Clone()
	out.Body = a
	out.Header.Set(StatusHeader, Status{
		CacheName: i.opts.cacheName,
		Fwd:       FwdURIMiss,
		FwdStatus: resp.StatusCode,
		Key:       string(primary),
	}.String())
	return httpflow.NextResponse(out), nil
}

func (i *Interceptor) persistBody(ctx context.Context, primary, secondary string, body io.ReadCloser, headers map[string][]string, reason string, contentLength int64, vary map[string]string, hitCount int64) {
	defer body.Close()

	w, err := i.store.Create(ctx, secondary)
	if err != nil {
		GetLogger().Error("cache write: create blob", "key", secondary, "error", err)
		io.Copy(io.Discard, body)
		return
	}
	n, copyErr := io.Copy(w, body)
	if copyErr != nil {
		w.Close()
		i.store.Delete(ctx, secondary)
		GetLogger().Error("cache write: copy body", "key", secondary, "error", copyErr)
		return
	}
	if err := w.Close(); err != nil {
		i.store.Delete(ctx, secondary)
		GetLogger().Error("cache write: close blob", "key", secondary, "error", err)
		return
	}

	now := time.Now()
	entry := &journal.Entry{
		SecondaryKey:  secondary,
		CreatedAt:     journal.NewTimestamp(now),
		ReasonPhrase:  reason,
		ContentLength: contentLength,
		Headers:       headers,
		Vary:          vary,
		HitCount:      hitCount,
		LastAccess:    journal.NewTimestamp(now),
		PersistedSize: n,
	}
	i.journal.Put(primary, entry)

	enforceVaryLimit(ctx, i.journal, i.store, primary, i.opts.varyLimit)
	evictToFit(ctx, i.journal, i.store, i.opts.maxCacheSize)
}

// OnError implements the error stage: serve a stale-if-error cached entry,
// if one exists and is still within its stale-if-error window.
func (i *Interceptor) OnError(_ context.Context, req *httpflow.Request, cause error, _ httpflow.StackInfo) (httpflow.ErrorOutcome, error) {
	if req == nil || req.Method != http.MethodGet {
		return httpflow.NextError(req, cause), nil
	}
	ctx := req.Context()

	primary := DerivePrimaryKey(canonicalURL(req.URL))
	entry, ok := i.journal.Match(string(primary), headerGetter(req.Header))
	if !ok {
		return httpflow.NextError(req, cause), nil
	}

	cc := entryControl(entry)
	now := time.Now()
	if !isStaleIfError(entry, cc, now) {
		return httpflow.NextError(req, cause), nil
	}
	if _, err := i.store.Size(ctx, entry.SecondaryKey); err != nil {
		return httpflow.NextError(req, cause), nil
	}

	i.journal.Touch(string(primary), entry.SecondaryKey, now)
	resp, err := i.buildCachedResponse(ctx, req, entry, string(primary), "stale-if-error")
	if err != nil {
		return httpflow.NextError(req, cause), nil
	}
	addRevalidationFailedWarning(resp.Header)
	return httpflow.ResolveError(resp), nil
}
