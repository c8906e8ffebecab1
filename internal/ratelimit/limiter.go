package ratelimit

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default admission parameters. One request per second with a small burst
// is polite enough for sites that publish no crawl guidance.
const (
	// DefaultRequestsPerSecond is the process-wide rate for domains
	// without an explicit limit.
	DefaultRequestsPerSecond = 1.0

	// DefaultBurst is the number of requests a domain may absorb
	// back-to-back before pacing kicks in.
	DefaultBurst = 2
)

// DomainLimit configures the admission rate for one domain.
type DomainLimit struct {
	// RequestsPerSecond is the sustained request rate for the domain.
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`

	// Burst caps how many requests may be admitted back-to-back.
	// Zero means DefaultBurst.
	Burst int `yaml:"burst,omitempty"`
}

// Interval returns the pacing interval between requests
// (1s / RequestsPerSecond). Zero rate maps to zero interval.
func (dl DomainLimit) Interval() time.Duration {
	if dl.RequestsPerSecond <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / dl.RequestsPerSecond)
}

// DomainLimiter gates outbound requests per target domain. Domains without
// an explicit limit share a process-wide default.
//
// The per-domain token buckets are created lazily and owned exclusively by
// the limiter; callers only ever see admission decisions.
type DomainLimiter struct {
	mu sync.Mutex

	// limits is the read-only configuration table, keyed by lowercased
	// domain. Populated at construction and through SetLimit.
	limits map[string]DomainLimit

	// fallback applies to domains absent from limits.
	fallback DomainLimit

	// buckets holds the lazily created token bucket per domain.
	buckets map[string]*rate.Limiter
}

// New creates a DomainLimiter with the given per-domain table and default.
// The table may be nil. A non-positive default rate falls back to
// DefaultRequestsPerSecond.
func New(limits map[string]DomainLimit, fallback DomainLimit) *DomainLimiter {
	if fallback.RequestsPerSecond <= 0 {
		fallback.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if fallback.Burst <= 0 {
		fallback.Burst = DefaultBurst
	}

	normalized := make(map[string]DomainLimit, len(limits))
	for domain, limit := range limits {
		if limit.Burst <= 0 {
			limit.Burst = DefaultBurst
		}
		normalized[strings.ToLower(domain)] = limit
	}

	return &DomainLimiter{
		limits:   normalized,
		fallback: fallback,
		buckets:  make(map[string]*rate.Limiter),
	}
}

// TryAcquire reports whether a request to the domain may go out now,
// consuming one admission slot when it may. Non-blocking: false means "not
// yet eligible", and the caller is expected to come back later.
func (dl *DomainLimiter) TryAcquire(domain string) bool {
	return dl.bucket(domain).Allow()
}

// Limit returns the configured limit for a domain (the default when the
// domain has no explicit entry).
func (dl *DomainLimiter) Limit(domain string) DomainLimit {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	if limit, ok := dl.limits[strings.ToLower(domain)]; ok {
		return limit
	}
	return dl.fallback
}

// SetLimit installs or replaces the limit for a domain. The domain's bucket
// is rebuilt so the new rate applies to the next admission decision.
func (dl *DomainLimiter) SetLimit(domain string, limit DomainLimit) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	domain = strings.ToLower(domain)
	if limit.Burst <= 0 {
		limit.Burst = DefaultBurst
	}
	dl.limits[domain] = limit
	delete(dl.buckets, domain)
}

// bucket returns the token bucket for a domain, creating it on first use.
func (dl *DomainLimiter) bucket(domain string) *rate.Limiter {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	domain = strings.ToLower(domain)
	if bucket, ok := dl.buckets[domain]; ok {
		return bucket
	}

	limit, ok := dl.limits[domain]
	if !ok {
		limit = dl.fallback
	}
	bucket := rate.NewLimiter(rate.Limit(limit.RequestsPerSecond), limit.Burst)
	dl.buckets[domain] = bucket
	return bucket
}
