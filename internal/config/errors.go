package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages. Using errors.New() here rather than fmt.Errorf()
// because we don't need to include dynamic values in these messages.
var (
	// ErrNoTarget is returned when no seed URL or list file is specified.
	// This error occurs when neither --list nor a positional argument provides a target.
	ErrNoTarget = errors.New("no target specified: provide a URL or use --list")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	// A timeout of zero or negative would cause immediate request failures.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidWorkers is returned when the worker count is not positive.
	// Zero workers would mean no fetching at all.
	ErrInvalidWorkers = errors.New("invalid worker count: must be positive")

	// ErrInvalidMaxAttempts is returned when the retry budget is not positive.
	// Every task needs at least one attempt.
	ErrInvalidMaxAttempts = errors.New("invalid max attempts: must be positive")

	// ErrInvalidBackoff is returned when the backoff delays or multiplier
	// make no sense (negative delays, max below base, multiplier below 1).
	ErrInvalidBackoff = errors.New("invalid backoff: delays must be positive, max >= base, multiplier >= 1")

	// ErrInvalidJitter is returned when the jitter fraction falls outside
	// [0, 1].
	ErrInvalidJitter = errors.New("invalid jitter: must be between 0 and 1")

	// ErrInvalidRateLimit is returned when a configured request rate is not
	// positive. Use the per-domain table to slow domains down, not to
	// disable them.
	ErrInvalidRateLimit = errors.New("invalid rate limit: requests per second must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// A negative body size is invalid; use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
)
