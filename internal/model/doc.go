// Package model defines the core data structures shared across harvester:
// crawl tasks and their lifecycle, queue statistics, fetched pages, and the
// error classification used to decide whether a failed fetch is retryable.
//
// Types in this package carry no behavior beyond their own invariants.
// Scheduling, routing, and storage logic live in their own packages and
// operate on these types.
package model
