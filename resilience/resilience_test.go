package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kaelbridge/httpflow"
)

type stubTransport struct {
	fn func() (*httpflow.StreamedResponse, error)
}

func (s *stubTransport) Send(_ context.Context, _ *httpflow.Request) (*httpflow.StreamedResponse, error) {
	return s.fn()
}

func TestRetryPolicyBuilderRetriesUntilSuccess(t *testing.T) {
	policy := RetryPolicyBuilder().Build()
	if policy == nil {
		t.Fatal("expected non-nil policy")
	}

	attempts := 0
	inner := &stubTransport{fn: func() (*httpflow.StreamedResponse, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("boom")
		}
		return &httpflow.StreamedResponse{StatusCode: 200}, nil
	}}

	tr := New(inner, Config{RetryPolicy: policy})
	resp, err := tr.Send(context.Background(), httpflow.NewRequest(context.Background(), "GET", "https://example.com"))
	if err != nil {
		t.Fatalf("expected no error after retries, got %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetryPolicyBuilderRetriesOn5xx(t *testing.T) {
	policy := RetryPolicyBuilder().Build()
	attempts := 0
	inner := &stubTransport{fn: func() (*httpflow.StreamedResponse, error) {
		attempts++
		if attempts < 2 {
			return &httpflow.StreamedResponse{StatusCode: 503}, nil
		}
		return &httpflow.StreamedResponse{StatusCode: 200}, nil
	}}

	tr := New(inner, Config{RetryPolicy: policy})
	resp, err := tr.Send(context.Background(), httpflow.NewRequest(context.Background(), "GET", "https://example.com"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != 200 || attempts != 2 {
		t.Fatalf("expected 2 attempts ending at 200, got %d attempts, status %d", attempts, resp.StatusCode)
	}
}

func TestCircuitBreakerBuilderOpensAfterFailures(t *testing.T) {
	cb := CircuitBreakerBuilder().WithDelay(100 * time.Millisecond).Build()
	if cb == nil {
		t.Fatal("expected non-nil circuit breaker")
	}
	if !cb.IsClosed() {
		t.Fatal("expected circuit to be closed initially")
	}
	for i := 0; i < 5; i++ {
		cb.RecordError(errors.New("boom"))
	}
	if !cb.IsOpen() {
		t.Fatal("expected circuit to be open after consecutive failures")
	}
}

func TestTransportWithNoPoliciesIsPassThrough(t *testing.T) {
	inner := &stubTransport{fn: func() (*httpflow.StreamedResponse, error) {
		return &httpflow.StreamedResponse{StatusCode: 204}, nil
	}}
	tr := New(inner, Config{})
	resp, err := tr.Send(context.Background(), httpflow.NewRequest(context.Background(), "GET", "https://example.com"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != 204 {
		t.Fatalf("expected pass-through status 204, got %d", resp.StatusCode)
	}
}
