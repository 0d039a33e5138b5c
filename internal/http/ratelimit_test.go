package http

import (
	"sync/atomic"
	"testing"
)

func TestRateLimiterEnforcesBudget(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()
	metrics := &securityMetrics{}

	for i := 0; i < requestsPerMinute; i++ {
		if !rl.allow("10.0.0.1", metrics) {
			t.Fatalf("request %d rejected within budget", i+1)
		}
	}
	if rl.allow("10.0.0.1", metrics) {
		t.Error("request over budget allowed")
	}
	if got := atomic.LoadInt64(&metrics.rateLimitHits); got != 1 {
		t.Errorf("rateLimitHits = %d, want 1", got)
	}

	// Other clients keep their own window.
	if !rl.allow("10.0.0.2", metrics) {
		t.Error("unrelated client throttled")
	}
}

func TestRateLimiterStopIsIdempotent(t *testing.T) {
	rl := newRateLimiter()
	rl.stop()
	rl.stop()
}
