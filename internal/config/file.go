package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/harvester/internal/proxy"
	"github.com/nao1215/harvester/internal/ratelimit"
)

// Duration is a time.Duration that unmarshals from YAML duration strings
// such as "500ms" or "1m30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// RetrySettings overrides the retry policy from the configuration file.
// Zero-valued fields keep the built-in default; CLI flags given explicitly
// win over the file.
type RetrySettings struct {
	// MaxAttempts is the retry budget per task, counting the first attempt.
	MaxAttempts int `yaml:"maxAttempts,omitempty"`

	// BaseDelay is the backoff delay before the first retry.
	BaseDelay Duration `yaml:"baseDelay,omitempty"`

	// MaxDelay caps exponential backoff growth.
	MaxDelay Duration `yaml:"maxDelay,omitempty"`

	// Multiplier is the exponential backoff growth factor.
	Multiplier float64 `yaml:"multiplier,omitempty"`

	// Jitter is the random fraction applied to backoff delays. A pointer
	// distinguishes "not set" from an explicit zero.
	Jitter *float64 `yaml:"jitter,omitempty"`
}

// ProxyEntry describes one egress proxy in the configuration file.
type ProxyEntry struct {
	// Address is the proxy URL (socks5://host:port, http://host:port)
	// or a bare host:port treated as an HTTP proxy.
	Address string `yaml:"address"`

	// Ignore excludes the proxy from one request class:
	// "http" excludes it from plain HTTP fetches, "browser" from
	// browser-automation clients. Empty includes it everywhere.
	Ignore string `yaml:"ignore,omitempty"`

	// Region assigns the proxy to a geographic pool for region-aware
	// selection. Empty leaves it in the general pool only.
	Region string `yaml:"region,omitempty"`
}

// ignoreFlag maps the YAML ignore value onto the rotator's flag. Unknown
// values mean no exclusion; a typo should not silently drop a proxy.
func (p ProxyEntry) ignoreFlag() proxy.IgnoreFlag {
	switch strings.ToLower(strings.TrimSpace(p.Ignore)) {
	case "http":
		return proxy.IgnoreForPlainHTTP
	case "browser":
		return proxy.IgnoreForBrowserClients
	default:
		return proxy.IgnoreNone
	}
}

// File represents the structure of the .harvester configuration file.
type File struct {
	// RateLimits maps a domain to its admission rate. Domains absent from
	// the map use DefaultRateLimit.
	RateLimits map[string]ratelimit.DomainLimit `yaml:"rateLimits,omitempty"`

	// DefaultRateLimit applies to domains without an explicit entry.
	// Nil means the built-in default (1 request per second, burst 2).
	DefaultRateLimit *ratelimit.DomainLimit `yaml:"defaultRateLimit,omitempty"`

	// Proxies is the egress proxy pool.
	Proxies []ProxyEntry `yaml:"proxies,omitempty"`

	// RegionRules maps a full domain or bare TLD to a region name,
	// extending the built-in TLD table. A full-domain rule wins over a
	// TLD rule.
	RegionRules map[string]string `yaml:"regionRules,omitempty"`

	// Retry overrides the retry policy. Nil keeps the defaults.
	Retry *RetrySettings `yaml:"retry,omitempty"`
}

// RequestProxies converts the configured proxies into rotator entries.
func (cf *File) RequestProxies() []proxy.RequestProxy {
	out := make([]proxy.RequestProxy, 0, len(cf.Proxies))
	for _, p := range cf.Proxies {
		if strings.TrimSpace(p.Address) == "" {
			continue
		}
		out = append(out, proxy.RequestProxy{
			Address: strings.TrimSpace(p.Address),
			Ignore:  p.ignoreFlag(),
		})
	}
	return out
}

// RegionPools groups the configured proxies by region, for the geo
// selector. Proxies without a region are absent from every pool.
func (cf *File) RegionPools() map[string][]string {
	pools := make(map[string][]string)
	for _, p := range cf.Proxies {
		addr := strings.TrimSpace(p.Address)
		if addr == "" || p.Region == "" {
			continue
		}
		pools[p.Region] = append(pools[p.Region], addr)
	}
	return pools
}

// Limiter builds the per-domain rate limiter from the configured table.
func (cf *File) Limiter() *ratelimit.DomainLimiter {
	var fallback ratelimit.DomainLimit
	if cf.DefaultRateLimit != nil {
		fallback = *cf.DefaultRateLimit
	}
	return ratelimit.New(cf.RateLimits, fallback)
}

// validateRateLimits rejects non-positive request rates. A zero rate would
// silently blackhole a domain; operators who want a domain skipped should
// not enqueue it.
func (cf *File) validateRateLimits() error {
	if cf.DefaultRateLimit != nil && cf.DefaultRateLimit.RequestsPerSecond <= 0 {
		return ErrInvalidRateLimit
	}
	for _, limit := range cf.RateLimits {
		if limit.RequestsPerSecond <= 0 {
			return ErrInvalidRateLimit
		}
	}
	return nil
}
