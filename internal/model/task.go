package model

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a crawl task.
//
// Design decision: We use iota-based constants rather than string constants
// for efficiency in comparisons and map keys. The String() method provides
// human-readable output for logs and reports.
type TaskStatus int

const (
	// StatusPending indicates the task is waiting for its first dequeue.
	StatusPending TaskStatus = iota

	// StatusInProgress indicates the task has been dequeued and a worker
	// is currently fetching it.
	StatusInProgress

	// StatusCompleted indicates the fetch succeeded. Terminal.
	StatusCompleted

	// StatusFailed indicates the most recent attempt failed. This state is
	// transient: within the same operation the task moves on to either
	// StatusRetrying or StatusDead.
	StatusFailed

	// StatusRetrying indicates the task failed and is waiting for its
	// backoff delay to elapse before it becomes eligible again.
	StatusRetrying

	// StatusDead indicates the task exhausted its retry budget or failed
	// with a non-retryable error. Terminal, never rescheduled.
	StatusDead
)

// String returns a human-readable representation of the task status.
func (s TaskStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusRetrying:
		return "retrying"
	case StatusDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status is a terminal state.
// Completed and Dead tasks never transition again.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusDead
}

// Priority is a five-level discrete priority scale for crawl tasks.
// Higher values are dequeued first. Within one level, tasks are served
// in enqueue order (FIFO).
type Priority int

const (
	// PriorityLow is for background work that can wait indefinitely.
	PriorityLow Priority = iota

	// PriorityBelowNormal is for work that should yield to routine crawling.
	PriorityBelowNormal

	// PriorityNormal is the default for seed URLs.
	PriorityNormal

	// PriorityHigh is for time-sensitive targets.
	PriorityHigh

	// PriorityCritical preempts everything else at dequeue time.
	// Running tasks are never interrupted; the preference applies only
	// when choosing the next task to admit.
	PriorityCritical
)

// String returns a human-readable representation of the priority level.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityBelowNormal:
		return "below_normal"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Valid reports whether the priority is one of the five defined levels.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}

// Task represents one crawl attempt for a single URL, tracked through its
// lifecycle until completion or permanent failure.
//
// Identity fields (ID, SessionID, URL) are immutable after creation.
// State and timing fields are owned exclusively by the task queue; callers
// only ever see snapshots returned by queue methods.
type Task struct {
	// ID uniquely identifies the task (UUID).
	ID string `json:"id"`

	// SessionID groups tasks belonging to one crawl session.
	SessionID string `json:"session_id"`

	// URL is the target address to fetch.
	URL string `json:"url"`

	// Status is the current lifecycle state.
	Status TaskStatus `json:"status"`

	// Priority determines dequeue order across tasks.
	Priority Priority `json:"priority"`

	// AttemptCount is the number of attempts made so far, including the
	// first. Incremented on every failure transition.
	AttemptCount int `json:"attempt_count"`

	// LastError holds the message of the most recent failure, if any.
	// Kept so callers can audit dead tasks without the queue throwing
	// errors across the boundary.
	LastError string `json:"last_error,omitempty"`

	// CreatedAt is when the task was enqueued. Used as the FIFO tie-break
	// within a priority level.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the task was first dequeued. Zero until then.
	StartedAt time.Time `json:"started_at,omitzero"`

	// LastAttemptAt is stamped on every failure transition.
	LastAttemptAt time.Time `json:"last_attempt_at,omitzero"`

	// ReadyAt is the instant a retrying task becomes eligible for dequeue
	// again. Zero means eligible immediately.
	ReadyAt time.Time `json:"ready_at,omitzero"`
}

// NewTask creates a Pending task for the given URL.
// The task ID is a fresh UUID; CreatedAt is stamped with the current time.
func NewTask(sessionID, rawURL string, priority Priority) *Task {
	return &Task{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		URL:       rawURL,
		Status:    StatusPending,
		Priority:  priority,
		CreatedAt: time.Now(),
	}
}

// Eligible reports whether the task may be dequeued at the given instant.
// Only Pending tasks and Retrying tasks whose backoff delay has elapsed
// are eligible.
func (t *Task) Eligible(now time.Time) bool {
	switch t.Status {
	case StatusPending:
		return true
	case StatusRetrying:
		return !now.Before(t.ReadyAt)
	default:
		return false
	}
}

// Clone returns a copy of the task. The queue hands out clones so callers
// can never mutate queue-owned state.
func (t *Task) Clone() *Task {
	c := *t
	return &c
}
