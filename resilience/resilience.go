// Package resilience wraps an httpflow.Transport with retry and
// circuit-breaker policies, so a flaky origin degrades gracefully instead of
// failing every caller outright.
package resilience

import (
	"context"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/kaelbridge/httpflow"
)

// Config holds the resilience policies applied around an inner Transport.
// Both are optional; a zero Config makes Transport a pass-through.
type Config struct {
	RetryPolicy    retrypolicy.RetryPolicy[*httpflow.StreamedResponse]
	CircuitBreaker circuitbreaker.CircuitBreaker[*httpflow.StreamedResponse]
}

// Transport wraps inner with retry and/or circuit-breaker policies.
type Transport struct {
	inner httpflow.Transport
	cfg   Config
}

var _ httpflow.Transport = (*Transport)(nil)

// New wraps inner with cfg's resilience policies.
func New(inner httpflow.Transport, cfg Config) *Transport {
	return &Transport{inner: inner, cfg: cfg}
}

// Send executes req through inner, wrapped in whichever policies cfg configured.
func (t *Transport) Send(ctx context.Context, req *httpflow.Request) (*httpflow.StreamedResponse, error) {
	fn := func() (*httpflow.StreamedResponse, error) {
		return t.inner.Send(ctx, req)
	}

	var policies []failsafe.Policy[*httpflow.StreamedResponse]
	if t.cfg.RetryPolicy != nil {
		policies = append(policies, t.cfg.RetryPolicy)
	}
	if t.cfg.CircuitBreaker != nil {
		policies = append(policies, t.cfg.CircuitBreaker)
	}
	if len(policies) == 0 {
		return fn()
	}
	return failsafe.With(policies...).Get(fn)
}

// RetryPolicyBuilder returns a retry policy builder with sensible HTTP
// defaults (retry on transport errors and 5xx, up to 3 retries after the
// first attempt, exponential backoff from 100ms to 10s), ready to customize
// further before Build.
func RetryPolicyBuilder() retrypolicy.Builder[*httpflow.StreamedResponse] {
	return retrypolicy.NewBuilder[*httpflow.StreamedResponse]().
		HandleIf(func(r *httpflow.StreamedResponse, err error) bool {
			if err != nil {
				return true
			}
			return r != nil && r.StatusCode >= 500
		}).
		WithMaxRetries(3).
		WithBackoff(100*time.Millisecond, 10*time.Second)
}

// CircuitBreakerBuilder returns a circuit breaker builder with sensible HTTP
// defaults (opens on transport errors and 5xx, 5 consecutive failures, 2
// successes to close, 60s open delay), ready to customize further before Build.
func CircuitBreakerBuilder() circuitbreaker.Builder[*httpflow.StreamedResponse] {
	return circuitbreaker.NewBuilder[*httpflow.StreamedResponse]().
		HandleIf(func(r *httpflow.StreamedResponse, err error) bool {
			if err != nil {
				return true
			}
			return r != nil && r.StatusCode >= 500
		}).
		WithFailureThreshold(5).
		WithSuccessThreshold(2).
		WithDelay(60 * time.Second)
}
