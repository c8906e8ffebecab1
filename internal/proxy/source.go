package proxy

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// Source provides a proxy list. Implementations are registered explicitly
// with a Rotator via LoadFrom; the pool depends only on this interface and
// never on a concrete provider.
type Source interface {
	// Fetch returns the current proxy list from the provider.
	Fetch(ctx context.Context) ([]RequestProxy, error)

	// Name identifies the source for logging.
	Name() string
}

// LoadFrom fetches from each source in order and merges the results into
// the pool. A failing source is skipped and reported in the returned error
// after the remaining sources have been tried, so one dead provider never
// blocks the others. The merge is idempotent: addresses already in the
// pool keep their health state.
func (r *Rotator) LoadFrom(ctx context.Context, sources ...Source) error {
	var firstErr error
	for _, src := range sources {
		proxies, err := src.Fetch(ctx)
		if err != nil {
			r.logger.Warn("proxy source failed",
				"source", src.Name(),
				"error", err,
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("proxy source %s: %w", src.Name(), err)
			}
			continue
		}
		r.AddProxies(proxies)
		r.logger.Debug("proxy source loaded",
			"source", src.Name(),
			"count", len(proxies),
		)
	}
	return firstErr
}

// StaticSource serves a fixed proxy list, typically from configuration.
type StaticSource struct {
	// Proxies is the fixed list to serve.
	Proxies []RequestProxy
}

// Fetch returns the configured list.
func (s *StaticSource) Fetch(_ context.Context) ([]RequestProxy, error) {
	return s.Proxies, nil
}

// Name identifies the source for logging.
func (s *StaticSource) Name() string {
	return "static"
}

// FileSource reads proxy addresses from a text file, one per line.
// Blank lines and lines starting with '#' are skipped.
type FileSource struct {
	// Path is the file to read.
	Path string
}

// Fetch reads and parses the file.
func (s *FileSource) Fetch(_ context.Context) ([]RequestProxy, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseProxyLines(f)
}

// Name identifies the source for logging.
func (s *FileSource) Name() string {
	return "file:" + s.Path
}

// HTTPSource fetches a newline-separated proxy list from a URL. Providers
// that rotate their offering are re-fetched by calling LoadFrom again; the
// idempotent merge keeps known proxies' health intact.
type HTTPSource struct {
	// URL is the list endpoint.
	URL string

	// Client is the HTTP client to use. Nil means http.DefaultClient.
	// The list fetch itself is not routed through the pool.
	Client *http.Client
}

// Fetch downloads and parses the list.
func (s *HTTPSource) Fetch(ctx context.Context) ([]RequestProxy, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("proxy list endpoint returned status %d", resp.StatusCode)
	}
	return parseProxyLines(resp.Body)
}

// Name identifies the source for logging.
func (s *HTTPSource) Name() string {
	return "http:" + s.URL
}

// parseProxyLines reads one proxy address per line, skipping blanks and
// '#' comments.
func parseProxyLines(r io.Reader) ([]RequestProxy, error) {
	var proxies []RequestProxy
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		proxies = append(proxies, RequestProxy{Address: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return proxies, nil
}
