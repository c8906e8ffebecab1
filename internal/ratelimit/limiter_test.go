package ratelimit

import (
	"testing"
	"time"
)

func TestDomainLimitInterval(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rps  float64
		want time.Duration
	}{
		{1, time.Second},
		{2, 500 * time.Millisecond},
		{0.5, 2 * time.Second},
		{0, 0},
	}

	for _, tt := range tests {
		limit := DomainLimit{RequestsPerSecond: tt.rps}
		if got := limit.Interval(); got != tt.want {
			t.Errorf("Interval() for %v rps = %v, want %v", tt.rps, got, tt.want)
		}
	}
}

func TestTryAcquireBurstThenRefusal(t *testing.T) {
	t.Parallel()

	limiter := New(map[string]DomainLimit{
		"example.com": {RequestsPerSecond: 1, Burst: 2},
	}, DomainLimit{})

	// The burst is admitted back-to-back.
	for i := range 2 {
		if !limiter.TryAcquire("example.com") {
			t.Fatalf("request %d within burst must be admitted", i)
		}
	}

	// The next immediate request is refused.
	if limiter.TryAcquire("example.com") {
		t.Error("request beyond burst must be refused")
	}
}

func TestRateBoundOverWindow(t *testing.T) {
	t.Parallel()

	// 20 rps with burst 2: over a 500ms window no more than
	// rate*window + burst = 12 requests may be admitted.
	limiter := New(map[string]DomainLimit{
		"example.com": {RequestsPerSecond: 20, Burst: 2},
	}, DomainLimit{})

	deadline := time.Now().Add(500 * time.Millisecond)
	admitted := 0
	for time.Now().Before(deadline) {
		if limiter.TryAcquire("example.com") {
			admitted++
		}
		time.Sleep(time.Millisecond)
	}

	if admitted > 13 { // one extra as timing slack
		t.Errorf("admitted %d requests in 500ms, rate bound allows at most ~12", admitted)
	}
	if admitted < 5 {
		t.Errorf("admitted only %d requests, limiter is refusing far too much", admitted)
	}
}

func TestUnknownDomainUsesDefault(t *testing.T) {
	t.Parallel()

	limiter := New(nil, DomainLimit{RequestsPerSecond: 100, Burst: 1})

	if !limiter.TryAcquire("unconfigured.example") {
		t.Error("first request for an unconfigured domain must use the default limit")
	}

	limit := limiter.Limit("unconfigured.example")
	if limit.RequestsPerSecond != 100 {
		t.Errorf("expected default rate 100, got %v", limit.RequestsPerSecond)
	}
}

func TestDomainsAreIndependent(t *testing.T) {
	t.Parallel()

	limiter := New(map[string]DomainLimit{
		"slow.example": {RequestsPerSecond: 0.001, Burst: 1},
	}, DomainLimit{RequestsPerSecond: 1000, Burst: 10})

	if !limiter.TryAcquire("slow.example") {
		t.Fatal("first slow-domain request must pass")
	}
	if limiter.TryAcquire("slow.example") {
		t.Error("second slow-domain request must be refused")
	}

	// A refusal on one domain must not affect another.
	if !limiter.TryAcquire("fast.example") {
		t.Error("fast domain must be unaffected by the slow domain's refusal")
	}
}

func TestSetLimitRebuildsBucket(t *testing.T) {
	t.Parallel()

	limiter := New(nil, DomainLimit{RequestsPerSecond: 0.001, Burst: 1})

	if !limiter.TryAcquire("example.com") {
		t.Fatal("first request must pass")
	}
	if limiter.TryAcquire("example.com") {
		t.Fatal("second request must be refused at the old rate")
	}

	limiter.SetLimit("example.com", DomainLimit{RequestsPerSecond: 1000, Burst: 5})

	if !limiter.TryAcquire("example.com") {
		t.Error("request must be admitted after raising the limit")
	}
}

func TestDomainCaseInsensitive(t *testing.T) {
	t.Parallel()

	limiter := New(map[string]DomainLimit{
		"Example.COM": {RequestsPerSecond: 0.001, Burst: 1},
	}, DomainLimit{RequestsPerSecond: 1000, Burst: 10})

	if !limiter.TryAcquire("example.com") {
		t.Fatal("first request must pass")
	}
	if limiter.TryAcquire("EXAMPLE.com") {
		t.Error("case variants must share one bucket")
	}
}
