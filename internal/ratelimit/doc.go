// Package ratelimit provides per-domain admission control for outbound
// crawl requests.
//
// The scheduler consults the limiter before a task is allowed to run: a
// refusal is a scheduling signal ("not yet eligible"), never an error, and
// must not count against the task's retry budget.
//
// Design decision: We build on golang.org/x/time/rate token buckets instead
// of a hand-rolled sliding window. The bucket guarantees the configured rate
// bound over any window while allowing a bounded burst, which is exactly the
// contract callers need, and the library's Allow() is non-blocking.
package ratelimit
