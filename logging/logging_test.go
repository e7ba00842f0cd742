package logging

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/kaelbridge/httpflow"
)

func TestSetLoggerOverridesDefault(t *testing.T) {
	var buf bytes.Buffer
	custom := slog.New(slog.NewTextHandler(&buf, nil))
	SetLogger(custom)
	t.Cleanup(func() { SetLogger(nil) })

	if GetLogger() != custom {
		t.Error("GetLogger should return the logger set via SetLogger")
	}
}

func TestOnRequestAssignsRequestID(t *testing.T) {
	i := New()
	req := httpflow.NewRequest(context.Background(), http.MethodGet, "https://example.com")

	outcome, err := i.OnRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Kind() != httpflow.OutcomeNext {
		t.Fatalf("expected Next outcome, got %v", outcome.Kind())
	}
	if req.Header.Get(httpflow.RequestIDHeader) == "" {
		t.Error("expected a request ID header to be set")
	}
}

func TestOnRequestKeepsExistingRequestID(t *testing.T) {
	i := New()
	req := httpflow.NewRequest(context.Background(), http.MethodGet, "https://example.com")
	req.Header.Set(httpflow.RequestIDHeader, "fixed-id")

	if _, err := i.OnRequest(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := req.Header.Get(httpflow.RequestIDHeader); got != "fixed-id" {
		t.Errorf("expected existing request ID to be preserved, got %q", got)
	}
}

func TestOnResponseLogsStatusAndCacheStatus(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { SetLogger(nil) })

	i := New()
	req := httpflow.NewRequest(context.Background(), http.MethodGet, "https://example.com")
	resp := &httpflow.StreamedResponse{
		StatusCode: 200,
		Header:     http.Header{"Cache-Status": []string{`httpflow; hit`}},
		Request:    req,
	}

	if _, err := i.OnResponse(context.Background(), resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !bytes.Contains([]byte(out), []byte("request completed")) {
		t.Errorf("expected completion log, got: %s", out)
	}
	if !bytes.Contains([]byte(out), []byte("status=200")) {
		t.Errorf("expected status in log, got: %s", out)
	}
	if !bytes.Contains([]byte(out), []byte(`cache_status="httpflow; hit"`)) {
		t.Errorf("expected cache status in log, got: %s", out)
	}
}
