package model

import "time"

// PageSummary is the per-page slice of a session report: enough to see
// what was fetched and how it was routed, without the page body.
type PageSummary struct {
	// URL is the fetched page URL.
	URL string `json:"url"`

	// StatusCode is the HTTP response status.
	StatusCode int `json:"status_code"`

	// Title is the extracted page title, empty for non-HTML content.
	Title string `json:"title,omitempty"`

	// Language is the detected document language, empty when inconclusive.
	Language string `json:"language,omitempty"`

	// ProxyAddress is the egress route used, empty for direct fetches.
	ProxyAddress string `json:"proxy_address,omitempty"`
}

// DeadTaskSummary is one permanent failure in a session report.
type DeadTaskSummary struct {
	// URL is the task's target.
	URL string `json:"url"`

	// Attempts is the number of attempts consumed.
	Attempts int `json:"attempts"`

	// LastError describes the final failure.
	LastError string `json:"last_error,omitempty"`
}

// ProxySummary is one proxy's health state in a session report.
type ProxySummary struct {
	// Address is the proxy URL or host:port, with credentials removed.
	Address string `json:"address"`

	// Healthy reports whether the proxy was selectable at session end.
	Healthy bool `json:"healthy"`

	// FailureCount is the consecutive failure count at session end.
	FailureCount int `json:"failure_count"`
}

// SessionReport is the complete outcome of one crawl session.
type SessionReport struct {
	// SessionID identifies the session.
	SessionID string `json:"session_id"`

	// Targets are the seed URLs the session started from.
	Targets []string `json:"targets,omitempty"`

	// StartedAt is when the session began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the session ended.
	FinishedAt time.Time `json:"finished_at"`

	// Stats is the queue's final aggregate snapshot.
	Stats QueueStatistics `json:"stats"`

	// Pages summarizes every stored page.
	Pages []PageSummary `json:"pages,omitempty"`

	// DeadTasks lists the permanent failures for auditing.
	DeadTasks []DeadTaskSummary `json:"dead_tasks,omitempty"`

	// Proxies is the proxy pool's health at session end.
	Proxies []ProxySummary `json:"proxies,omitempty"`
}

// Duration returns the session's wall-clock duration.
func (r *SessionReport) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
