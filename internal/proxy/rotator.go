package proxy

import (
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Circuit breaker thresholds.
const (
	// FailureThreshold is the number of consecutive failures after which
	// a proxy is marked unhealthy and excluded from selection.
	FailureThreshold = 3

	// EvictionThreshold is the failure count past which an unhealthy
	// proxy is considered permanently dead and removed by
	// CleanupUnhealthy. The gap between the two thresholds gives a
	// flapping proxy a chance to recover before it is forgotten.
	EvictionThreshold = 5
)

// IgnoreFlag excludes a proxy from one class of requests without removing
// it from the pool. Some proxies 403 browser-automation traffic but serve
// plain HTTP fetches fine, and vice versa.
type IgnoreFlag int

const (
	// IgnoreNone includes the proxy in every request class.
	IgnoreNone IgnoreFlag = iota

	// IgnoreForBrowserClients excludes the proxy from browser-automation
	// requests (it stays available for plain HTTP fetches).
	IgnoreForBrowserClients

	// IgnoreForPlainHTTP excludes the proxy from plain HTTP fetches
	// (it stays available for browser-automation requests).
	IgnoreForPlainHTTP
)

// String returns a human-readable representation of the ignore flag.
func (f IgnoreFlag) String() string {
	switch f {
	case IgnoreNone:
		return "none"
	case IgnoreForBrowserClients:
		return "browser"
	case IgnoreForPlainHTTP:
		return "http"
	default:
		return "unknown"
	}
}

// RequestProxy is one egress route and its health state. Health fields are
// owned by the Rotator and mutated only through its success and failure
// reporting methods; callers see snapshots.
type RequestProxy struct {
	// Address is the proxy URL or host:port.
	Address string `json:"address" yaml:"address"`

	// Ignore excludes the proxy from one request class.
	Ignore IgnoreFlag `json:"ignore,omitempty" yaml:"ignore,omitempty"`

	// Healthy reports whether the proxy is currently selectable.
	Healthy bool `json:"healthy"`

	// FailureCount is the number of consecutive failures since the last
	// success.
	FailureCount int `json:"failure_count"`

	// LastSuccess is when the proxy last served a request successfully.
	LastSuccess time.Time `json:"last_success,omitzero"`
}

// Rotator is the shared proxy pool. All methods are safe for concurrent
// use: reads take the read lock, health mutations the write lock.
type Rotator struct {
	mu sync.RWMutex

	// proxies is the pool in insertion order. Order matters for round
	// robin stability.
	proxies []*RequestProxy

	// index maps address to pool position for O(1) reporting.
	index map[string]int

	// next is the round-robin cursor. It persists across calls and wraps
	// over the healthy subset.
	next int

	// configured becomes true once any proxy has been added. It stays
	// true after evictions empty the pool, so callers can distinguish
	// "no proxies were ever set up" from "the pool drained".
	configured bool

	logger *slog.Logger
}

// RotatorOption configures a Rotator.
type RotatorOption func(*Rotator)

// WithRotatorLogger sets a custom logger. Default is slog.Default().
func WithRotatorLogger(logger *slog.Logger) RotatorOption {
	return func(r *Rotator) {
		r.logger = logger
	}
}

// NewRotator creates a Rotator seeded with the given proxies. Every proxy
// starts healthy with a zero failure count; duplicates (by address) are
// merged.
func NewRotator(proxies []RequestProxy, opts ...RotatorOption) *Rotator {
	r := &Rotator{
		index: make(map[string]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}

	r.AddProxies(proxies)
	return r
}

// AddProxies merges new proxies into the pool. An address already present
// is left untouched, so repeated loads from a proxy source never reset
// health state or duplicate entries.
func (r *Rotator) AddProxies(proxies []RequestProxy) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range proxies {
		addr := strings.TrimSpace(p.Address)
		if addr == "" {
			continue
		}
		r.configured = true
		if _, exists := r.index[addr]; exists {
			continue
		}
		r.index[addr] = len(r.proxies)
		r.proxies = append(r.proxies, &RequestProxy{
			Address: addr,
			Ignore:  p.Ignore,
			Healthy: true,
		})
	}
}

// NextProxy returns the next healthy proxy address in round-robin order.
// The cursor persists across calls and wraps. Returns ErrNoHealthyProxy
// when the pool has no selectable proxy; callers must treat that as a
// scheduling signal, not fall back to a direct connection.
func (r *Rotator) NextProxy() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.proxies)
	for offset := 0; offset < n; offset++ {
		candidate := r.proxies[(r.next+offset)%n]
		if candidate.Healthy {
			r.next = (r.next + offset + 1) % n
			return candidate.Address, nil
		}
	}
	return "", ErrNoHealthyProxy
}

// HealthyHTTPProxies returns the addresses of healthy proxies usable for
// plain HTTP fetches (proxies flagged IgnoreForPlainHTTP are excluded).
func (r *Rotator) HealthyHTTPProxies() []string {
	return r.healthyExcluding(IgnoreForPlainHTTP)
}

// HealthyBrowserProxies returns the addresses of healthy proxies usable
// for browser-automation clients (proxies flagged IgnoreForBrowserClients
// are excluded).
func (r *Rotator) HealthyBrowserProxies() []string {
	return r.healthyExcluding(IgnoreForBrowserClients)
}

func (r *Rotator) healthyExcluding(flag IgnoreFlag) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	addrs := make([]string, 0, len(r.proxies))
	for _, p := range r.proxies {
		if p.Healthy && p.Ignore != flag {
			addrs = append(addrs, p.Address)
		}
	}
	return addrs
}

// ReportFailure records a failed request through the proxy. On the
// FailureThreshold-th consecutive failure the proxy flips unhealthy and is
// excluded from selection until its next success.
func (r *Rotator) ReportFailure(address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[address]
	if !ok {
		return ErrUnknownProxy
	}

	p := r.proxies[i]
	p.FailureCount++
	if p.FailureCount >= FailureThreshold && p.Healthy {
		p.Healthy = false
		r.logger.Warn("proxy marked unhealthy",
			"proxy", address,
			"failures", p.FailureCount,
		)
	}
	return nil
}

// ReportSuccess records a successful request through the proxy: the
// failure count resets, the proxy becomes healthy, and LastSuccess is
// stamped.
func (r *Rotator) ReportSuccess(address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[address]
	if !ok {
		return ErrUnknownProxy
	}

	p := r.proxies[i]
	if !p.Healthy {
		r.logger.Info("proxy recovered", "proxy", address)
	}
	p.FailureCount = 0
	p.Healthy = true
	p.LastSuccess = time.Now()
	return nil
}

// CleanupUnhealthy evicts proxies that are both unhealthy and past the
// eviction threshold, returning the number removed. Unhealthy proxies
// below the threshold stay in the pool so a later success can revive them.
func (r *Rotator) CleanupUnhealthy() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.proxies[:0]
	evicted := 0
	for _, p := range r.proxies {
		if !p.Healthy && p.FailureCount >= EvictionThreshold {
			evicted++
			r.logger.Warn("proxy evicted",
				"proxy", p.Address,
				"failures", p.FailureCount,
			)
			continue
		}
		kept = append(kept, p)
	}
	if evicted == 0 {
		return 0
	}

	r.proxies = kept
	r.index = make(map[string]int, len(kept))
	for i, p := range kept {
		r.index[p.Address] = i
	}
	if len(kept) == 0 {
		r.next = 0
	} else {
		r.next %= len(kept)
	}
	return evicted
}

// HealthStatus returns a snapshot of every proxy in the pool.
func (r *Rotator) HealthStatus() []RequestProxy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RequestProxy, len(r.proxies))
	for i, p := range r.proxies {
		out[i] = *p
	}
	return out
}

// Healthy reports whether the address is in the pool and currently
// selectable. Geo-aware selection calls this to avoid routing through a
// regional proxy the circuit breaker has tripped on.
func (r *Rotator) Healthy(address string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[address]
	if !ok {
		return false
	}
	return r.proxies[i].Healthy
}

// Len returns the pool size, healthy or not.
func (r *Rotator) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.proxies)
}

// Configured reports whether any proxy was ever added to the pool.
// Unlike Len, it does not drop back to false when eviction empties the
// pool: an operator who configured proxies never gets direct fetches,
// even after the last proxy is evicted.
func (r *Rotator) Configured() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.configured
}

// NormalizeForPlainHTTP rewrites a SOCKS-scheme proxy address to its
// HTTP-scheme equivalent.
//
// This is an environment compatibility shim, not a protocol conversion:
// some HTTP stacks (notably Chrome-driver setups on certain platforms)
// cannot speak SOCKS and are instead pointed at a local HTTP-bridging
// endpoint listening on the same host:port. harvester's own fetch layer
// dials SOCKS5 directly, so this helper is only applied when handing
// addresses to such an external client, never inside the pool.
func NormalizeForPlainHTTP(address string) string {
	u, err := url.Parse(address)
	if err != nil || u.Host == "" {
		return address
	}
	switch strings.ToLower(u.Scheme) {
	case "socks5", "socks5h", "socks4":
		u.Scheme = "http"
		return u.String()
	}
	return address
}
