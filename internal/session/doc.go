// Package session tracks crawl sessions by identifier.
//
// A session groups every task, page, and report produced by one crawl run.
// The registry is an explicit handle passed to the components that need it,
// never a package-level singleton, so tests and embedders can run isolated
// registries side by side.
package session
