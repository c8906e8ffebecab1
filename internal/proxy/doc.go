// Package proxy implements the egress routing subsystem: a rotating pool of
// proxies with per-proxy health tracking, and a geo-aware selector that maps
// target domains to regional proxy pools.
//
// # Components
//
//   - Rotator: the shared proxy pool. Round-robin selection over healthy
//     proxies, a circuit breaker that excludes a proxy after repeated
//     consecutive failures, and eviction of permanently dead entries.
//   - GeoSelector: static domain/TLD→region rules with per-region pools.
//     When a target has no regional match the caller falls back to the
//     Rotator.
//   - Source: pluggable proxy list providers (static, file, HTTP),
//     registered explicitly and merged into the Rotator idempotently.
//
// # Health model
//
// A proxy flips unhealthy on its 3rd consecutive failure and is excluded
// from all selection until a success resets it. Unhealthy proxies that keep
// accumulating failures past a higher eviction threshold are removed
// entirely by CleanupUnhealthy, distinguishing "temporarily down" from
// "permanently dead".
package proxy
