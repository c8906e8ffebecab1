// Package queue implements the crawl task scheduler: an in-memory priority
// queue with retry bookkeeping and backoff delays.
//
// # Architecture
//
// The Queue owns every task for the lifetime of a session. Workers pull
// tasks with Dequeue, run the fetch, and report the outcome back through
// Complete or Fail. A failed task is either re-scheduled with a backoff
// delay or moved to the dead set once its attempt budget is exhausted.
//
// Design decision: The queue is deliberately in-memory and single-process.
// Crawl sessions are bounded, results are persisted separately, and a
// distributed queue would buy nothing but operational cost here. Callers
// that need durability persist results, not work items.
//
// # Ordering
//
//   - Across priority levels: strictly higher priority first.
//   - Within one level: FIFO by enqueue time.
//   - Retrying tasks keep their original priority.
//
// There is no aging. Sustained high-priority load can starve low-priority
// tasks; callers that care should balance the priorities they assign.
//
// # Concurrency
//
// All methods are safe for concurrent use. Dequeue is non-blocking by
// contract: it returns nil when no task is eligible, even if delayed tasks
// exist. Callers poll, typically on a timer tick that also checks
// ReadyRetryCount.
package queue
