package queue

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/harvester/internal/model"
)

// Validator decides whether a URL may be enqueued. A non-nil error rejects
// the URL; the queue wraps it as a configuration error.
type Validator func(rawURL string) error

// Queue is the crawl task scheduler. It owns every task for the lifetime of
// a session and hands out snapshots, never the tasks themselves.
//
// Design decision: Shared mutable state behind a single mutex rather than an
// actor loop. Every operation is a short, in-memory transition (microseconds,
// no I/O under the lock), so lock contention is not a concern at crawler
// scale, and a mutex keeps the state machine readable.
type Queue struct {
	mu sync.Mutex

	// sessionID stamps every task created by this queue.
	sessionID string

	// tasks indexes every task ever enqueued, by ID.
	tasks map[string]*model.Task

	// waiting holds Pending and Retrying tasks in insertion order.
	// Dequeue scans it for the best eligible task; insertion order is the
	// FIFO tie-break within a priority level.
	waiting []*model.Task

	// inProgress counts tasks currently held by workers. Dequeue refuses
	// to exceed maxConcurrency; the cap is advisory at admission time
	// only, running tasks are never interrupted.
	inProgress int

	maxConcurrency int
	policy         BackoffPolicy
	validate       Validator
	logger         *slog.Logger
	closed         bool

	// Statistics counters. Pending and Retrying populations are derived
	// from waiting on demand.
	completedCount  int
	deadCount       int
	failedAttempts  int
	processingTotal time.Duration
}

// Option configures a Queue.
type Option func(*Queue)

// WithBackoffPolicy sets the retry policy. Default is
// DefaultBackoffPolicy().
func WithBackoffPolicy(p BackoffPolicy) Option {
	return func(q *Queue) {
		q.policy = p
	}
}

// WithMaxConcurrency caps the number of tasks that may be in progress at
// once. Zero or negative means unlimited.
func WithMaxConcurrency(n int) Option {
	return func(q *Queue) {
		q.maxConcurrency = n
	}
}

// WithValidator sets the URL crawlability predicate applied at enqueue
// time. Nil accepts every URL.
func WithValidator(v Validator) Option {
	return func(q *Queue) {
		q.validate = v
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		q.logger = logger
	}
}

// New creates a Queue for the given session.
func New(sessionID string, opts ...Option) *Queue {
	q := &Queue{
		sessionID: sessionID,
		tasks:     make(map[string]*model.Task),
		policy:    DefaultBackoffPolicy(),
	}

	for _, opt := range opts {
		opt(q)
	}

	if q.logger == nil {
		q.logger = slog.Default()
	}

	return q
}

// SessionID returns the session this queue belongs to.
func (q *Queue) SessionID() string {
	return q.sessionID
}

// Enqueue validates the URL and creates a Pending task for it, returning
// the new task's ID. Rejected URLs produce a configuration-kind error.
func (q *Queue) Enqueue(rawURL string, priority model.Priority) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return "", ErrClosed
	}
	if err := q.validateLocked(rawURL); err != nil {
		return "", err
	}
	return q.insertLocked(rawURL, priority), nil
}

// EnqueueBatch enqueues several URLs at the same priority in one atomic
// operation, returning the task IDs in submission order.
//
// Design decision: The whole batch is validated before any task is created,
// so a batch either enqueues completely or not at all. Partial batches would
// force callers to diff the returned IDs against their input to learn what
// was accepted.
func (q *Queue) EnqueueBatch(rawURLs []string, priority model.Priority) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrClosed
	}

	for _, rawURL := range rawURLs {
		if err := q.validateLocked(rawURL); err != nil {
			return nil, err
		}
	}

	ids := make([]string, 0, len(rawURLs))
	for _, rawURL := range rawURLs {
		ids = append(ids, q.insertLocked(rawURL, priority))
	}
	return ids, nil
}

// validateLocked runs the configured validator against one URL. Caller
// holds q.mu. Each URL is validated exactly once per enqueue operation,
// before any task is created.
func (q *Queue) validateLocked(rawURL string) error {
	if q.validate == nil {
		return nil
	}
	if err := q.validate(rawURL); err != nil {
		return model.NewError(model.ErrKindConfiguration, err)
	}
	return nil
}

// insertLocked creates and registers one already-validated task. Caller
// holds q.mu and has checked the queue is open.
func (q *Queue) insertLocked(rawURL string, priority model.Priority) string {
	if !priority.Valid() {
		priority = model.PriorityNormal
	}

	task := model.NewTask(q.sessionID, rawURL, priority)
	q.tasks[task.ID] = task
	q.waiting = append(q.waiting, task)

	q.logger.Debug("task enqueued",
		"task", task.ID,
		"url", rawURL,
		"priority", priority.String(),
	)
	return task.ID
}

// Dequeue returns the highest-priority eligible task, marking it in
// progress, or nil when nothing is eligible right now. Nil is not an error:
// tasks may exist but still be waiting out a backoff delay, or the
// concurrency cap may be saturated. Callers poll.
//
// Ties within a priority level break by earliest enqueue time.
func (q *Queue) Dequeue() *model.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	if q.maxConcurrency > 0 && q.inProgress >= q.maxConcurrency {
		return nil
	}

	now := time.Now()
	best := -1
	for i, task := range q.waiting {
		if !task.Eligible(now) {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		cur := q.waiting[best]
		if task.Priority > cur.Priority ||
			(task.Priority == cur.Priority && task.CreatedAt.Before(cur.CreatedAt)) {
			best = i
		}
	}
	if best < 0 {
		return nil
	}

	task := q.waiting[best]
	q.waiting = append(q.waiting[:best], q.waiting[best+1:]...)

	task.Status = model.StatusInProgress
	if task.StartedAt.IsZero() {
		task.StartedAt = now
	}
	q.inProgress++

	q.logger.Debug("task dequeued",
		"task", task.ID,
		"url", task.URL,
		"attempt", task.AttemptCount+1,
	)
	return task.Clone()
}

// Complete transitions an in-progress task to Completed and records its
// processing time. Returns ErrUnknownTask or ErrNotInProgress when the ID
// does not name an in-progress task; the queue state is untouched in that
// case.
func (q *Queue) Complete(taskID string, duration time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return ErrUnknownTask
	}
	if task.Status != model.StatusInProgress {
		return ErrNotInProgress
	}

	task.Status = model.StatusCompleted
	q.inProgress--
	q.completedCount++
	q.processingTotal += duration

	q.logger.Debug("task completed",
		"task", task.ID,
		"url", task.URL,
		"duration", duration,
	)
	return nil
}

// Fail reports a failed attempt for an in-progress task. The attempt count
// is incremented and the task moves to Retrying (with a backoff-computed
// ready time) or, when the cause is not retryable or the attempt budget is
// exhausted, to Dead.
//
// A rate-limit cause is a scheduling signal, not a failure: the task goes
// straight back to the waiting set without consuming an attempt.
func (q *Queue) Fail(taskID string, cause error, duration time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return ErrUnknownTask
	}
	if task.Status != model.StatusInProgress {
		return ErrNotInProgress
	}

	now := time.Now()
	q.inProgress--
	_ = duration // only completed fetches feed the processing-time average

	var crawlErr *model.CrawlError
	classified := errors.As(cause, &crawlErr)

	if classified && crawlErr.Kind == model.ErrKindRateLimited {
		task.Status = model.StatusRetrying
		task.ReadyAt = now.Add(crawlErr.RetryAfter)
		q.waiting = append(q.waiting, task)
		q.logger.Debug("task deferred by rate limit",
			"task", task.ID,
			"domain", crawlErr.Domain,
			"retry_after", crawlErr.RetryAfter,
		)
		return nil
	}

	task.AttemptCount++
	task.LastAttemptAt = now
	task.Status = model.StatusFailed
	if cause != nil {
		task.LastError = cause.Error()
	}
	q.failedAttempts++

	retryable := true
	if classified {
		retryable = crawlErr.Retryable()
	}

	if !retryable || q.policy.Exhausted(task.AttemptCount) {
		task.Status = model.StatusDead
		q.deadCount++
		if retryable {
			task.LastError = model.NewRetryExhaustedError(task.AttemptCount).Error()
		}
		q.logger.Warn("task dead",
			"task", task.ID,
			"url", task.URL,
			"attempts", task.AttemptCount,
			"error", task.LastError,
		)
		return nil
	}

	// First retry waits the base delay: retry index is zero-based.
	delay := q.policy.Delay(task.AttemptCount - 1)
	task.Status = model.StatusRetrying
	task.ReadyAt = now.Add(delay)
	q.waiting = append(q.waiting, task)

	q.logger.Debug("task scheduled for retry",
		"task", task.ID,
		"url", task.URL,
		"attempt", task.AttemptCount,
		"delay", delay,
	)
	return nil
}

// Defer returns an in-progress task to the waiting set without consuming an
// attempt, marking it ready after delay. It is the scheduling escape hatch
// for conditions that are no fault of the task, such as every proxy for its
// region being unhealthy at the moment it was dequeued.
func (q *Queue) Defer(taskID string, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return ErrUnknownTask
	}
	if task.Status != model.StatusInProgress {
		return ErrNotInProgress
	}

	q.inProgress--
	task.Status = model.StatusRetrying
	task.ReadyAt = time.Now().Add(delay)
	q.waiting = append(q.waiting, task)

	q.logger.Debug("task deferred",
		"task", task.ID,
		"url", task.URL,
		"delay", delay,
	)
	return nil
}

// Task returns a snapshot of the task with the given ID.
func (q *Queue) Task(taskID string) (*model.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return nil, ErrUnknownTask
	}
	return task.Clone(), nil
}

// DeadTasks returns snapshots of all dead tasks so callers can audit
// permanent failures without the queue surfacing them as errors.
func (q *Queue) DeadTasks() []*model.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	dead := make([]*model.Task, 0, q.deadCount)
	for _, task := range q.tasks {
		if task.Status == model.StatusDead {
			dead = append(dead, task.Clone())
		}
	}
	return dead
}

// ReadyRetryCount returns the number of Retrying tasks whose backoff delay
// has elapsed. Callers use it as a cheap readiness probe between polls.
func (q *Queue) ReadyRetryCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	count := 0
	for _, task := range q.waiting {
		if task.Status == model.StatusRetrying && task.Eligible(now) {
			count++
		}
	}
	return count
}

// Stats returns an aggregate snapshot of the queue.
func (q *Queue) Stats() model.QueueStatistics {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending, retrying := 0, 0
	for _, task := range q.waiting {
		switch task.Status {
		case model.StatusPending:
			pending++
		case model.StatusRetrying:
			retrying++
		}
	}

	stats := model.QueueStatistics{
		Total:      len(q.tasks),
		Pending:    pending,
		InProgress: q.inProgress,
		Completed:  q.completedCount,
		Retrying:   retrying,
		Dead:       q.deadCount,
		Failed:     q.failedAttempts,
	}
	if resolved := stats.Resolved(); resolved > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(resolved)
	}
	if q.completedCount > 0 {
		stats.AverageProcessingTime = q.processingTotal / time.Duration(q.completedCount)
	}
	return stats
}

// Drained reports whether no work remains: nothing waiting and nothing in
// progress. Worker loops use this to decide when a session is finished.
func (q *Queue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting) == 0 && q.inProgress == 0
}

// Close stops admitting new work: Enqueue fails with ErrClosed and Dequeue
// returns nil. In-flight tasks may still be completed or failed so their
// accounting stays correct. Closing does not abort running fetches; a task
// abandoned mid-flight at process exit simply stays in progress, which is a
// documented limitation rather than an error.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}
