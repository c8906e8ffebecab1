package model

import (
	"fmt"
	"time"
)

// ErrorKind classifies a crawl failure. Retryability is a property of the
// kind: transient transport problems are retried, configuration mistakes and
// client errors are not.
type ErrorKind int

const (
	// ErrKindNetwork is a generic transport failure (connection refused,
	// reset, unreachable). Retryable.
	ErrKindNetwork ErrorKind = iota

	// ErrKindHTTP is a non-success HTTP response. Retryable only for
	// server errors (status >= 500); client errors are permanent.
	ErrKindHTTP

	// ErrKindTimeout is a request or connection timeout. Retryable.
	ErrKindTimeout

	// ErrKindProxy is a failure attributable to the egress proxy rather
	// than the target. Retryable, and additionally counted against the
	// proxy's health.
	ErrKindProxy

	// ErrKindDNS is a name resolution failure. Retryable because
	// resolvers and proxies misbehave transiently.
	ErrKindDNS

	// ErrKindRateLimited means the per-domain rate limiter refused
	// admission. This is a scheduling signal, not a task failure: it must
	// never increment the attempt count.
	ErrKindRateLimited

	// ErrKindRetryExhausted means the task consumed its whole attempt
	// budget. Not retryable.
	ErrKindRetryExhausted

	// ErrKindConfiguration is a caller mistake (malformed URL, disallowed
	// scheme or extension, invalid settings). Not retryable.
	ErrKindConfiguration
)

// String returns a human-readable representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrKindNetwork:
		return "network"
	case ErrKindHTTP:
		return "http"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindProxy:
		return "proxy"
	case ErrKindDNS:
		return "dns"
	case ErrKindRateLimited:
		return "rate_limited"
	case ErrKindRetryExhausted:
		return "retry_exhausted"
	case ErrKindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// CrawlError is a classified crawl failure. It wraps the underlying error
// (if any) and carries enough context for the scheduler to decide between
// re-enqueueing and killing the task.
//
// Design decision: We use a single struct with a Kind field rather than one
// error type per kind because the scheduler only ever branches on Kind and
// StatusCode; separate types would add errors.As ceremony without benefit.
type CrawlError struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// StatusCode is the HTTP status for ErrKindHTTP, zero otherwise.
	StatusCode int

	// Domain is the rate-limited domain for ErrKindRateLimited.
	Domain string

	// RetryAfter suggests how long to wait before the next admission
	// attempt for ErrKindRateLimited, zero when unknown.
	RetryAfter time.Duration

	// Attempts is the consumed attempt count for ErrKindRetryExhausted.
	Attempts int

	// Err is the underlying cause, may be nil.
	Err error
}

// Error implements the error interface.
func (e *CrawlError) Error() string {
	switch e.Kind {
	case ErrKindHTTP:
		if e.Err != nil {
			return fmt.Sprintf("http %d: %v", e.StatusCode, e.Err)
		}
		return fmt.Sprintf("http %d", e.StatusCode)
	case ErrKindRateLimited:
		return fmt.Sprintf("rate limit exceeded for domain %s", e.Domain)
	case ErrKindRetryExhausted:
		return fmt.Sprintf("retry limit exceeded after %d attempts", e.Attempts)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Kind, e.Err)
		}
		return e.Kind.String()
	}
}

// Unwrap returns the underlying cause for errors.Is/errors.As chains.
func (e *CrawlError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a failure of this kind should be retried.
// HTTP server errors (5xx) are retryable; client errors (4xx) are not.
// Rate limiting is not a failure at all, but answering true here keeps
// callers that treat it as one from killing the task.
func (e *CrawlError) Retryable() bool {
	switch e.Kind {
	case ErrKindNetwork, ErrKindTimeout, ErrKindProxy, ErrKindDNS, ErrKindRateLimited:
		return true
	case ErrKindHTTP:
		return e.StatusCode >= 500
	default:
		return false
	}
}

// ProxyAttributable reports whether the failure should count against the
// egress proxy's health rather than the target site.
func (e *CrawlError) ProxyAttributable() bool {
	return e.Kind == ErrKindProxy
}

// NewError creates a CrawlError of the given kind wrapping err.
func NewError(kind ErrorKind, err error) *CrawlError {
	return &CrawlError{Kind: kind, Err: err}
}

// NewHTTPError creates an ErrKindHTTP error for the given status code.
func NewHTTPError(statusCode int) *CrawlError {
	return &CrawlError{Kind: ErrKindHTTP, StatusCode: statusCode}
}

// NewRateLimitError creates the scheduling signal for a rate-limited domain.
// retryAfter may be zero when the caller cannot estimate the next admission
// slot.
func NewRateLimitError(domain string, retryAfter time.Duration) *CrawlError {
	return &CrawlError{Kind: ErrKindRateLimited, Domain: domain, RetryAfter: retryAfter}
}

// NewRetryExhaustedError creates the terminal error recorded on dead tasks.
func NewRetryExhaustedError(attempts int) *CrawlError {
	return &CrawlError{Kind: ErrKindRetryExhausted, Attempts: attempts}
}
