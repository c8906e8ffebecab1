package proxy

import (
	"strings"
	"sync"

	"github.com/nao1215/harvester/internal/model"
)

// GeoSelector picks a proxy whose region matches the target domain, so
// requests to country-coded sites leave from a geographically plausible
// address.
//
// Region assignment is static configuration: it is loaded once and changed
// only through explicit add/remove calls, never inferred from runtime
// health. Health filtering stays the Rotator's job; the caller falls back
// to the Rotator pool when a target has no regional match.
type GeoSelector struct {
	mu sync.RWMutex

	// rules maps a full domain or a bare TLD (no dots) to a region name.
	// A full-domain rule wins over a TLD rule.
	rules map[string]string

	// pools maps a region name to its proxy addresses.
	pools map[string][]string

	// cursors holds a per-region round-robin position.
	cursors map[string]int

	// pick chooses an index in [0, n). Injectable so tests get
	// deterministic selection; the default is per-region round robin.
	pick func(region string, n int) int
}

// GeoOption configures a GeoSelector.
type GeoOption func(*GeoSelector)

// WithPicker replaces the in-region selection policy. fn receives the
// region and pool size and returns the index to use. The default is
// round robin per region.
func WithPicker(fn func(region string, n int) int) GeoOption {
	return func(g *GeoSelector) {
		g.pick = fn
	}
}

// WithRegionRules merges extra domain→region rules over the defaults.
func WithRegionRules(rules map[string]string) GeoOption {
	return func(g *GeoSelector) {
		for k, v := range rules {
			g.rules[strings.ToLower(k)] = v
		}
	}
}

// DefaultRegionRules returns the seeded TLD→region table covering common
// country-code patterns. Callers extend or override it via WithRegionRules.
func DefaultRegionRules() map[string]string {
	return map[string]string{
		// Europe
		"de": "eu", "fr": "eu", "es": "eu", "it": "eu", "nl": "eu",
		"pl": "eu", "se": "eu", "uk": "eu", "ie": "eu", "at": "eu",
		"ch": "eu", "be": "eu", "pt": "eu", "cz": "eu", "dk": "eu",
		"fi": "eu", "no": "eu",
		// Asia-Pacific
		"jp": "apac", "cn": "apac", "kr": "apac", "tw": "apac",
		"sg": "apac", "hk": "apac", "in": "apac", "au": "apac",
		"nz": "apac",
		// Americas
		"us": "us", "ca": "us", "mx": "latam", "br": "latam",
		"ar": "latam", "cl": "latam",
	}
}

// NewGeoSelector creates a selector with the default TLD rules and the
// given per-region pools. pools maps region name to proxy addresses and
// may be nil.
func NewGeoSelector(pools map[string][]string, opts ...GeoOption) *GeoSelector {
	g := &GeoSelector{
		rules:   DefaultRegionRules(),
		pools:   make(map[string][]string),
		cursors: make(map[string]int),
	}
	for region, addrs := range pools {
		g.pools[region] = append([]string(nil), addrs...)
	}

	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SelectProxyForURL resolves the target's region and returns one proxy
// address from that region's pool. Returns ErrNoHealthyProxy when the
// target has no region rule or the region has no configured proxies; the
// caller then falls back to the general Rotator pool.
func (g *GeoSelector) SelectProxyForURL(rawURL string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	region, ok := g.regionForLocked(rawURL)
	if !ok {
		return "", ErrNoHealthyProxy
	}
	pool := g.pools[region]
	if len(pool) == 0 {
		return "", ErrNoHealthyProxy
	}

	var i int
	if g.pick != nil {
		i = g.pick(region, len(pool)) % len(pool)
	} else {
		i = g.cursors[region] % len(pool)
		g.cursors[region] = i + 1
	}
	return pool[i], nil
}

// RegionForURL resolves the region a URL's domain maps to.
// The second return is false when no rule matches.
func (g *GeoSelector) RegionForURL(rawURL string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.regionForLocked(rawURL)
}

// regionForLocked resolves domain → region. Full-domain rules win over
// TLD rules. Caller holds a lock.
func (g *GeoSelector) regionForLocked(rawURL string) (string, bool) {
	domain := model.DomainOf(rawURL)
	if domain == "" {
		return "", false
	}
	if region, ok := g.rules[domain]; ok {
		return region, true
	}
	if tld := model.TLDOf("http://" + domain); tld != "" {
		if region, ok := g.rules[tld]; ok {
			return region, true
		}
	}
	return "", false
}

// SetRule installs or replaces a domain/TLD→region rule.
func (g *GeoSelector) SetRule(domainOrTLD, region string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rules[strings.ToLower(domainOrTLD)] = region
}

// RemoveRule deletes a domain/TLD→region rule.
func (g *GeoSelector) RemoveRule(domainOrTLD string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.rules, strings.ToLower(domainOrTLD))
}

// AddRegionProxies appends addresses to a region's pool, skipping ones
// already present.
func (g *GeoSelector) AddRegionProxies(region string, addrs ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	existing := make(map[string]bool, len(g.pools[region]))
	for _, a := range g.pools[region] {
		existing[a] = true
	}
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" || existing[a] {
			continue
		}
		g.pools[region] = append(g.pools[region], a)
		existing[a] = true
	}
}

// RemoveRegionProxy removes one address from a region's pool.
func (g *GeoSelector) RemoveRegionProxy(region, addr string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	pool := g.pools[region]
	for i, a := range pool {
		if a == addr {
			g.pools[region] = append(pool[:i], pool[i+1:]...)
			return
		}
	}
}
