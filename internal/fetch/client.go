package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/proxy"

	"github.com/nao1215/harvester/internal/model"
)

// Defaults for the fetch client.
const (
	// DefaultTimeout covers the whole request including body read.
	// Crawls routed through distant proxies are slow; a short timeout
	// would misclassify working routes as dead.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent identifies harvester in HTTP requests. A
	// descriptive User-Agent lets operators recognize crawler traffic
	// in their logs.
	DefaultUserAgent = "harvester/1.0 (+https://github.com/nao1215/harvester)"

	// DefaultMaxBodySize limits response bodies to keep one oversized
	// page from exhausting memory.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB
)

// Client fetches pages, optionally through an egress proxy chosen per
// request. It caches one http.Client per proxy address so connection pools
// are reused across fetches routed the same way.
type Client struct {
	timeout     time.Duration
	userAgent   string
	maxBodySize int64

	mu      sync.Mutex
	clients map[string]*http.Client // keyed by proxy address, "" = direct
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithMaxBodySize sets the maximum response body size to read.
func WithMaxBodySize(size int64) ClientOption {
	return func(c *Client) {
		c.maxBodySize = size
	}
}

// NewClient creates a fetch client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout:     DefaultTimeout,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		clients:     make(map[string]*http.Client),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch retrieves the page at rawURL. A non-empty proxyAddr routes the
// request through that proxy; empty means a direct connection, which only
// happens when the operator configured no proxies at all.
//
// Non-2xx responses return both the page (for auditing) and a classified
// error. Transport failures return a classified error with a nil page.
func (c *Client) Fetch(ctx context.Context, rawURL, proxyAddr string) (*model.Page, error) {
	httpClient, err := c.clientFor(proxyAddr)
	if err != nil {
		return nil, model.NewError(model.ErrKindProxy, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, model.NewError(model.ErrKindConfiguration, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err, proxyAddr)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return nil, classifyTransportError(err, proxyAddr)
	}

	page := &model.Page{
		URL:          rawURL,
		StatusCode:   resp.StatusCode,
		Headers:      resp.Header,
		ContentType:  resp.Header.Get("Content-Type"),
		Raw:          body,
		Snapshot:     string(body),
		ProxyAddress: proxyAddr,
	}
	page.ComputeHash()
	page.TruncateSnapshot()
	page.TruncateRaw()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return page, model.NewHTTPError(resp.StatusCode)
	}
	return page, nil
}

// clientFor returns the cached http.Client for a proxy address, building
// it on first use.
func (c *Client) clientFor(proxyAddr string) (*http.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[proxyAddr]; ok {
		return client, nil
	}

	transport, err := c.transportFor(proxyAddr)
	if err != nil {
		return nil, err
	}
	client := &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
	}
	c.clients[proxyAddr] = client
	return client, nil
}

// transportFor builds a transport routed through the given proxy address.
// HTTP(S) proxies use the standard Proxy hook; SOCKS5 addresses get a
// dedicated dialer; a bare host:port is treated as an HTTP proxy.
func (c *Client) transportFor(proxyAddr string) (*http.Transport, error) {
	transport := &http.Transport{
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if proxyAddr == "" {
		return transport, nil
	}

	u, err := url.Parse(proxyAddr)
	if err != nil || u.Host == "" {
		// Bare host:port, assume an HTTP proxy.
		u = &url.URL{Scheme: "http", Host: proxyAddr}
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		transport.Proxy = http.ProxyURL(u)
	case "socks5", "socks5h":
		var auth *proxy.Auth
		if user := u.User; user != nil {
			password, _ := user.Password()
			auth = &proxy.Auth{User: user.Username(), Password: password}
		}
		dialer, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("building SOCKS5 dialer for %s: %w", u.Host, err)
		}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		}
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}

	return transport, nil
}

// classifyTransportError maps a transport failure to a CrawlError kind so
// the scheduler can decide between retrying and killing the task, and so
// proxy-attributable failures feed the proxy's health counter.
func classifyTransportError(err error, proxyAddr string) *model.CrawlError {
	// Timeouts first: they subsume several of the checks below.
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return model.NewError(model.ErrKindTimeout, err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return model.NewError(model.ErrKindDNS, err)
	}

	// Only failures from the proxy leg itself count against the proxy:
	// "proxyconnect" is the transport's CONNECT-stage marker, "socks"
	// prefixes the SOCKS5 dial and handshake errors. A plain connection
	// error through a working proxy means the target refused, and the
	// proxy's health counter must not pay for that.
	if proxyAddr != "" {
		msg := err.Error()
		if strings.Contains(msg, "proxyconnect") || strings.Contains(msg, "socks") {
			return model.NewError(model.ErrKindProxy, err)
		}
	}

	return model.NewError(model.ErrKindNetwork, err)
}
