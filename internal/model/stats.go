package model

import "time"

// QueueStatistics is an aggregate snapshot of the task queue.
//
// Invariant: Total = Pending + InProgress + Completed + Retrying + Dead at
// every observation point. Failed is transient (resolved into Retrying or
// Dead within the same operation) and therefore reported as a cumulative
// failure counter, not a population.
type QueueStatistics struct {
	// Total is the number of tasks ever enqueued in this session.
	Total int `json:"total"`

	// Pending is the number of tasks waiting for their first dequeue.
	Pending int `json:"pending"`

	// InProgress is the number of tasks currently held by workers.
	InProgress int `json:"in_progress"`

	// Completed is the number of tasks that finished successfully.
	Completed int `json:"completed"`

	// Retrying is the number of tasks waiting out a backoff delay.
	Retrying int `json:"retrying"`

	// Dead is the number of tasks that exhausted their retry budget or
	// failed permanently.
	Dead int `json:"dead"`

	// Failed is the cumulative count of failed attempts, including those
	// that later succeeded on retry.
	Failed int `json:"failed"`

	// SuccessRate is Completed divided by the number of resolved tasks
	// (Completed + Dead). Zero when nothing has resolved yet.
	SuccessRate float64 `json:"success_rate"`

	// AverageProcessingTime is the mean wall time of completed fetches.
	AverageProcessingTime time.Duration `json:"average_processing_time"`
}

// Resolved returns the number of tasks that reached a terminal state.
func (s QueueStatistics) Resolved() int {
	return s.Completed + s.Dead
}

// Consistent reports whether the population counts add up to Total.
// Used by tests to catch double counting or dropped tasks.
func (s QueueStatistics) Consistent() bool {
	return s.Total == s.Pending+s.InProgress+s.Completed+s.Retrying+s.Dead
}
