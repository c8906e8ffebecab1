package queue

import "errors"

// Scheduler errors.
//
// Design decision: We use package-level sentinel errors rather than creating
// new error instances at each call site. This allows callers to use
// errors.Is() for programmatic handling while still providing human-readable
// messages.
var (
	// ErrUnknownTask is returned when a task ID is not known to the queue.
	ErrUnknownTask = errors.New("unknown task id")

	// ErrNotInProgress is returned when Complete or Fail is called for a
	// task that is not currently in progress. The call is a no-op.
	ErrNotInProgress = errors.New("task is not in progress")

	// ErrClosed is returned by Enqueue after Close. Dequeue simply returns
	// nil after Close so worker loops wind down without special casing.
	ErrClosed = errors.New("queue is closed")
)
