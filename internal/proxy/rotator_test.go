package proxy

import (
	"errors"
	"testing"
)

// seedRotator creates a rotator with n plain proxies named p1..pn.
func seedRotator(t *testing.T, n int) *Rotator {
	t.Helper()

	proxies := make([]RequestProxy, 0, n)
	for i := 1; i <= n; i++ {
		proxies = append(proxies, RequestProxy{Address: proxyAddr(i)})
	}
	return NewRotator(proxies)
}

func proxyAddr(i int) string {
	return "http://10.0.0." + string(rune('0'+i)) + ":8080"
}

func TestNextProxyRoundRobinWraps(t *testing.T) {
	t.Parallel()

	r := seedRotator(t, 3)

	want := []string{proxyAddr(1), proxyAddr(2), proxyAddr(3), proxyAddr(1), proxyAddr(2)}
	for i, w := range want {
		got, err := r.NextProxy()
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if got != w {
			t.Errorf("call %d = %q, want %q", i, got, w)
		}
	}
}

func TestCircuitBreakerOpensOnThirdFailure(t *testing.T) {
	t.Parallel()

	r := seedRotator(t, 2)
	p1 := proxyAddr(1)

	// Two failures: still healthy.
	for range 2 {
		if err := r.ReportFailure(p1); err != nil {
			t.Fatal(err)
		}
	}
	for _, p := range r.HealthStatus() {
		if p.Address == p1 && !p.Healthy {
			t.Fatal("proxy must stay healthy below the threshold")
		}
	}

	// Third consecutive failure opens the breaker.
	if err := r.ReportFailure(p1); err != nil {
		t.Fatal(err)
	}

	var found bool
	for _, p := range r.HealthStatus() {
		if p.Address == p1 {
			found = true
			if p.Healthy {
				t.Error("proxy must be unhealthy after 3 consecutive failures")
			}
			if p.FailureCount != 3 {
				t.Errorf("expected failure count 3, got %d", p.FailureCount)
			}
		}
	}
	if !found {
		t.Fatal("proxy missing from health status")
	}

	// An unhealthy proxy is never selected.
	for range 5 {
		got, err := r.NextProxy()
		if err != nil {
			t.Fatal(err)
		}
		if got == p1 {
			t.Fatal("unhealthy proxy must be excluded from rotation")
		}
	}
}

func TestSuccessResetsBreaker(t *testing.T) {
	t.Parallel()

	r := seedRotator(t, 1)
	p1 := proxyAddr(1)

	for range 3 {
		if err := r.ReportFailure(p1); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := r.NextProxy(); !errors.Is(err, ErrNoHealthyProxy) {
		t.Fatalf("expected ErrNoHealthyProxy with the only proxy down, got %v", err)
	}

	if err := r.ReportSuccess(p1); err != nil {
		t.Fatal(err)
	}

	status := r.HealthStatus()[0]
	if !status.Healthy {
		t.Error("any success must make the proxy healthy again")
	}
	if status.FailureCount != 0 {
		t.Errorf("success must reset the failure count, got %d", status.FailureCount)
	}
	if status.LastSuccess.IsZero() {
		t.Error("success must stamp LastSuccess")
	}

	if _, err := r.NextProxy(); err != nil {
		t.Errorf("recovered proxy must be selectable: %v", err)
	}
}

func TestReportUnknownProxy(t *testing.T) {
	t.Parallel()

	r := seedRotator(t, 1)

	if err := r.ReportFailure("http://nowhere:1"); !errors.Is(err, ErrUnknownProxy) {
		t.Errorf("expected ErrUnknownProxy, got %v", err)
	}
	if err := r.ReportSuccess("http://nowhere:1"); !errors.Is(err, ErrUnknownProxy) {
		t.Errorf("expected ErrUnknownProxy, got %v", err)
	}
}

func TestAddProxiesIdempotent(t *testing.T) {
	t.Parallel()

	r := seedRotator(t, 2)
	p1 := proxyAddr(1)

	// Damage p1's health, then re-add it: health must survive the merge.
	for range 2 {
		if err := r.ReportFailure(p1); err != nil {
			t.Fatal(err)
		}
	}
	r.AddProxies([]RequestProxy{{Address: p1}, {Address: proxyAddr(3)}})

	if r.Len() != 3 {
		t.Errorf("expected 3 proxies after merge, got %d", r.Len())
	}
	for _, p := range r.HealthStatus() {
		if p.Address == p1 && p.FailureCount != 2 {
			t.Errorf("merge must not reset failure count, got %d", p.FailureCount)
		}
	}
}

func TestConfiguredSurvivesEviction(t *testing.T) {
	t.Parallel()

	empty := NewRotator(nil)
	if empty.Configured() {
		t.Error("empty pool must not report configured")
	}

	r := seedRotator(t, 1)
	if !r.Configured() {
		t.Fatal("seeded pool must report configured")
	}

	// Evicting the only proxy empties the pool, but Configured must keep
	// answering true so callers never mistake a drained pool for an
	// intentionally proxy-less setup.
	for range EvictionThreshold {
		if err := r.ReportFailure(proxyAddr(1)); err != nil {
			t.Fatal(err)
		}
	}
	if evicted := r.CleanupUnhealthy(); evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty pool, got %d proxies", r.Len())
	}
	if !r.Configured() {
		t.Error("drained pool must still report configured")
	}
}

func TestCleanupUnhealthyDistinguishesDownFromDead(t *testing.T) {
	t.Parallel()

	r := seedRotator(t, 3)
	down, dead := proxyAddr(1), proxyAddr(2)

	// down: unhealthy but below the eviction threshold.
	for range FailureThreshold {
		if err := r.ReportFailure(down); err != nil {
			t.Fatal(err)
		}
	}
	// dead: past the eviction threshold.
	for range EvictionThreshold {
		if err := r.ReportFailure(dead); err != nil {
			t.Fatal(err)
		}
	}

	if evicted := r.CleanupUnhealthy(); evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}
	if r.Len() != 2 {
		t.Errorf("expected 2 proxies after cleanup, got %d", r.Len())
	}
	for _, p := range r.HealthStatus() {
		if p.Address == dead {
			t.Error("evicted proxy must be gone from the pool")
		}
	}

	// The temporarily-down proxy can still recover.
	if err := r.ReportSuccess(down); err != nil {
		t.Fatal(err)
	}
}

func TestIgnoreFlagViews(t *testing.T) {
	t.Parallel()

	r := NewRotator([]RequestProxy{
		{Address: "http://a:1"},
		{Address: "http://b:1", Ignore: IgnoreForPlainHTTP},
		{Address: "http://c:1", Ignore: IgnoreForBrowserClients},
	})

	httpView := r.HealthyHTTPProxies()
	if len(httpView) != 2 {
		t.Fatalf("expected 2 http proxies, got %v", httpView)
	}
	for _, a := range httpView {
		if a == "http://b:1" {
			t.Error("IgnoreForPlainHTTP proxy must not appear in the http view")
		}
	}

	browserView := r.HealthyBrowserProxies()
	if len(browserView) != 2 {
		t.Fatalf("expected 2 browser proxies, got %v", browserView)
	}
	for _, a := range browserView {
		if a == "http://c:1" {
			t.Error("IgnoreForBrowserClients proxy must not appear in the browser view")
		}
	}

	// Both views still rotate through NextProxy regardless of flags.
	if _, err := r.NextProxy(); err != nil {
		t.Error(err)
	}
}

func TestNormalizeForPlainHTTP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"socks5://127.0.0.1:1080", "http://127.0.0.1:1080"},
		{"socks5h://proxy.example:9050", "http://proxy.example:9050"},
		{"http://proxy.example:3128", "http://proxy.example:3128"},
		{"not a url\x7f", "not a url\x7f"},
	}

	for _, tt := range tests {
		if got := NormalizeForPlainHTTP(tt.in); got != tt.want {
			t.Errorf("NormalizeForPlainHTTP(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
