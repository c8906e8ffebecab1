package proxy

import (
	"errors"
	"testing"
)

func TestGeoSelectorResolvesRegionByTLD(t *testing.T) {
	t.Parallel()

	g := NewGeoSelector(map[string][]string{
		"eu":   {"http://eu-1:8080"},
		"apac": {"http://apac-1:8080"},
	})

	tests := []struct {
		rawURL string
		want   string
	}{
		{"http://shop.example.de/products", "http://eu-1:8080"},
		{"https://news.example.fr", "http://eu-1:8080"},
		{"http://example.jp/x", "http://apac-1:8080"},
	}

	for _, tt := range tests {
		got, err := g.SelectProxyForURL(tt.rawURL)
		if err != nil {
			t.Fatalf("SelectProxyForURL(%q): %v", tt.rawURL, err)
		}
		if got != tt.want {
			t.Errorf("SelectProxyForURL(%q) = %q, want %q", tt.rawURL, got, tt.want)
		}
	}
}

func TestGeoSelectorFullDomainRuleWinsOverTLD(t *testing.T) {
	t.Parallel()

	g := NewGeoSelector(map[string][]string{
		"eu": {"http://eu-1:8080"},
		"us": {"http://us-1:8080"},
	}, WithRegionRules(map[string]string{
		"special.example.de": "us",
	}))

	got, err := g.SelectProxyForURL("http://special.example.de/page")
	if err != nil {
		t.Fatal(err)
	}
	if got != "http://us-1:8080" {
		t.Errorf("full-domain rule must win over the TLD rule, got %q", got)
	}
}

func TestGeoSelectorNoMatchSignalsFallback(t *testing.T) {
	t.Parallel()

	g := NewGeoSelector(map[string][]string{"eu": {"http://eu-1:8080"}})

	// .com has no default rule: the caller falls back to the rotator.
	if _, err := g.SelectProxyForURL("http://example.com"); !errors.Is(err, ErrNoHealthyProxy) {
		t.Errorf("expected ErrNoHealthyProxy for unmapped TLD, got %v", err)
	}

	// Mapped region with an empty pool behaves the same.
	if _, err := g.SelectProxyForURL("http://example.jp"); !errors.Is(err, ErrNoHealthyProxy) {
		t.Errorf("expected ErrNoHealthyProxy for empty regional pool, got %v", err)
	}
}

func TestGeoSelectorRoundRobinWithinRegion(t *testing.T) {
	t.Parallel()

	g := NewGeoSelector(map[string][]string{
		"eu": {"http://eu-1:8080", "http://eu-2:8080"},
	})

	want := []string{"http://eu-1:8080", "http://eu-2:8080", "http://eu-1:8080"}
	for i, w := range want {
		got, err := g.SelectProxyForURL("http://example.de")
		if err != nil {
			t.Fatal(err)
		}
		if got != w {
			t.Errorf("selection %d = %q, want %q", i, got, w)
		}
	}
}

func TestGeoSelectorInjectablePicker(t *testing.T) {
	t.Parallel()

	g := NewGeoSelector(map[string][]string{
		"eu": {"http://eu-1:8080", "http://eu-2:8080", "http://eu-3:8080"},
	}, WithPicker(func(_ string, _ int) int { return 2 }))

	for range 3 {
		got, err := g.SelectProxyForURL("http://example.de")
		if err != nil {
			t.Fatal(err)
		}
		if got != "http://eu-3:8080" {
			t.Errorf("injected picker must be honored, got %q", got)
		}
	}
}

func TestGeoSelectorRuleAndPoolMutation(t *testing.T) {
	t.Parallel()

	g := NewGeoSelector(nil)

	g.SetRule("internal.corp", "dc1")
	g.AddRegionProxies("dc1", "http://dc1-proxy:3128", "http://dc1-proxy:3128") // duplicate skipped

	got, err := g.SelectProxyForURL("http://internal.corp/app")
	if err != nil {
		t.Fatal(err)
	}
	if got != "http://dc1-proxy:3128" {
		t.Errorf("expected the dc1 proxy, got %q", got)
	}

	g.RemoveRegionProxy("dc1", "http://dc1-proxy:3128")
	if _, err := g.SelectProxyForURL("http://internal.corp/app"); err == nil {
		t.Error("expected an error after the pool emptied")
	}

	g.RemoveRule("internal.corp")
	if _, ok := g.RegionForURL("http://internal.corp"); ok {
		t.Error("expected no region after the rule was removed")
	}
}
