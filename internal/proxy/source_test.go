package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSource(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "proxies.txt")
	content := "# provider A\nhttp://a:8080\n\nsocks5://b:1080\n  http://c:3128  \n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	src := &FileSource{Path: path}
	proxies, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"http://a:8080", "socks5://b:1080", "http://c:3128"}
	if len(proxies) != len(want) {
		t.Fatalf("expected %d proxies, got %d", len(want), len(proxies))
	}
	for i, w := range want {
		if proxies[i].Address != w {
			t.Errorf("proxy %d = %q, want %q", i, proxies[i].Address, w)
		}
	}
}

func TestHTTPSource(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("http://a:8080\nhttp://b:8080\n"))
	}))
	defer srv.Close()

	src := &HTTPSource{URL: srv.URL, Client: srv.Client()}
	proxies, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(proxies) != 2 {
		t.Fatalf("expected 2 proxies, got %d", len(proxies))
	}
}

func TestHTTPSourceNonOK(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	src := &HTTPSource{URL: srv.URL, Client: srv.Client()}
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Error("expected an error for a non-200 response")
	}
}

func TestLoadFromMergesAndSkipsFailingSource(t *testing.T) {
	t.Parallel()

	r := NewRotator(nil)

	good := &StaticSource{Proxies: []RequestProxy{{Address: "http://a:8080"}}}
	bad := &FileSource{Path: filepath.Join(t.TempDir(), "missing.txt")}
	more := &StaticSource{Proxies: []RequestProxy{
		{Address: "http://a:8080"}, // duplicate across sources
		{Address: "http://b:8080"},
	}}

	err := r.LoadFrom(context.Background(), good, bad, more)
	if err == nil {
		t.Error("expected the failing source to be reported")
	}
	if r.Len() != 2 {
		t.Errorf("expected 2 unique proxies despite the failing source, got %d", r.Len())
	}
}
