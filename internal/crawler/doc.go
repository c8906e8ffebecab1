// Package crawler ties the scheduling core together into a running crawl:
// a bounded pool of workers pulls tasks from the queue, gates each one on
// the per-domain rate limiter, routes the fetch through the proxy layer,
// and feeds the outcome back into both the task's retry state and the
// proxy's health counter.
//
// # Components
//
//   - Harvester: the orchestrator running the worker pool.
//   - Parser: extracts title, links, and text from fetched HTML.
//
// # Routing policy
//
// For each task the Harvester asks the geo selector for a regional proxy
// first and falls back to the rotator's round robin when the target has no
// regional match. When neither can offer a healthy proxy the attempt is
// aborted and the task rescheduled; the crawler never silently falls back
// to a direct connection, because that would expose the operator's own
// address on exactly the traffic they configured proxies for. Direct
// fetching happens only when the operator configured no proxies at all.
//
// # Politeness
//
// A rate-limiter refusal is not a failure: the task returns to the queue
// without consuming a retry attempt, and the worker moves on to other
// work. No domain is ever fetched faster than its configured rate.
package crawler
