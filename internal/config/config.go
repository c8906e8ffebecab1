package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These values are chosen for polite crawling of the open web: slow enough
// that no target notices the crawler, fast enough that sessions finish.
const (
	// DefaultTimeout is the per-request timeout including body read.
	// Requests routed through distant proxies are slow; a short timeout
	// would misclassify working routes as dead.
	DefaultTimeout = 30 * time.Second

	// DefaultWorkers is the number of concurrent fetch workers. The
	// per-domain rate limiter keeps concurrency from translating into
	// pressure on any single target, so this mostly bounds memory and
	// socket usage.
	DefaultWorkers = 4

	// DefaultMaxPages is the maximum number of tasks a session may grow to
	// through link discovery. This prevents runaway crawling on large or
	// infinitely-generating sites.
	DefaultMaxPages = 100

	// DefaultMaxAttempts is the retry budget per task, counting the first
	// attempt. Three attempts ride out the typical transient failure
	// without hammering a target that is genuinely down.
	DefaultMaxAttempts = 3

	// DefaultBaseDelay is the backoff delay before the first retry.
	DefaultBaseDelay = 1 * time.Second

	// DefaultMaxDelay caps the exponential backoff growth.
	DefaultMaxDelay = 60 * time.Second

	// DefaultMultiplier is the exponential backoff growth factor.
	DefaultMultiplier = 2.0

	// DefaultJitter is the random fraction applied to backoff delays so
	// tasks that failed together do not retry together.
	DefaultJitter = 0.2

	// DefaultRequestsPerSecond is the admission rate for domains without
	// an explicit limit in the configuration file.
	DefaultRequestsPerSecond = 1.0

	// DefaultBurst is how many requests a domain may absorb back-to-back
	// before pacing kicks in.
	DefaultBurst = 2

	// DefaultUserAgent identifies harvester in HTTP requests.
	// Using a descriptive User-Agent is good practice and allows operators
	// to identify crawler traffic in their logs.
	DefaultUserAgent = "harvester/1.0 (+https://github.com/nao1215/harvester)"

	// DefaultMaxBodySize limits the maximum response body size to read.
	// 5MB is sufficient for most HTML pages while preventing memory
	// exhaustion from unexpectedly large responses.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// AppName is the application name used for XDG directory paths.
	AppName = "harvester"
)

// Config holds all configuration options for a crawl session.
// This struct is designed to be populated from CLI flags and the YAML
// configuration file, then passed through the application via dependency
// injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., RetryConfig, ReportConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant benefit.
// If the configuration grows significantly, consider refactoring into sub-structs.
type Config struct {
	// Targets is the list of seed URLs to crawl.
	// Must contain at least one valid http(s) URL.
	Targets []string

	// Timeout is the per-request timeout for each HTTP fetch.
	// This applies to individual requests, not the overall session.
	Timeout time.Duration

	// Workers is the number of concurrent fetch workers.
	Workers int

	// MaxPages caps the total number of tasks a session may grow to
	// through link discovery. A value of 0 means use the default.
	MaxPages int

	// FollowLinks enables link discovery: links found on fetched pages are
	// enqueued at low priority until MaxPages tasks exist.
	FollowLinks bool

	// MaxAttempts is the retry budget per task, counting the first attempt.
	MaxAttempts int

	// BaseDelay is the backoff delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps exponential backoff growth.
	MaxDelay time.Duration

	// Multiplier is the exponential backoff growth factor.
	Multiplier float64

	// Jitter is the random fraction applied to backoff delays, in [0, 1].
	Jitter float64

	// Verbose enables detailed log output using slog.LevelDebug.
	// When false, only warnings and errors are logged.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, the tool searches for .harvester in the current directory
	// and then in the user's home directory.
	ConfigFilePath string

	// FileConfig holds rate limits, proxies, and region rules loaded from
	// the configuration file. Populated by LoadConfigFile.
	FileConfig *File

	// JSONReport enables JSON report output instead of human-readable format.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output instead of human-readable
	// format. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the session report.
	// When set, the report is written to this file instead of stdout.
	// Directories are created automatically if they don't exist.
	ReportFile string

	// DBDir is the directory path for storing the SQLite database.
	// When set, fetched pages are saved for later inspection.
	// When empty, pages are not persisted.
	// Defaults to XDG data directory (~/.local/share/harvester on Linux).
	DBDir string

	// SaveToDB indicates whether to save fetched pages to the database.
	// This is automatically set to true when DBDir is configured.
	SaveToDB bool

	// UserAgent is the User-Agent header sent with HTTP requests.
	// A descriptive User-Agent helps site operators identify crawler traffic.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	// Responses larger than this are truncated to prevent memory exhaustion.
	// Set to 0 to use the default (5MB).
	MaxBodySize int64
}

// NewConfig creates a new Config with default values.
// All fields are set to safe, sensible defaults that work for most use cases.
// Users can override specific values after creation.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero (e.g., timeout, retry
// budget). This also serves as documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Timeout:     DefaultTimeout,
		Workers:     DefaultWorkers,
		MaxPages:    DefaultMaxPages,
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		Multiplier:  DefaultMultiplier,
		Jitter:      DefaultJitter,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
	}
}

// XDGDataDir returns the XDG data directory for harvester.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.local/share/harvester
// On macOS: ~/Library/Application Support/harvester
// On Windows: %LOCALAPPDATA%\harvester
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for harvester.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.config/harvester
// On macOS: ~/Library/Application Support/harvester
// On Windows: %APPDATA%\harvester
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for harvester.
// This follows the XDG Base Directory Specification.
// On Linux: ~/.cache/harvester
// On macOS: ~/Library/Caches/harvester
// On Windows: %LOCALAPPDATA%\harvester\cache
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific error describing what is invalid.
//
// Design decision: We validate at the config level rather than at each
// point of use to fail fast and provide clear error messages upfront.
// This is called once after CLI parsing, before any crawling begins.
//
// We chose to return the first error found rather than collecting all errors
// because fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	// We must have at least one seed URL to crawl
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}

	// Timeout must be positive; zero timeout would cause immediate failures
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	// Workers must be positive; zero would mean no fetching
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}

	// Every task needs at least one attempt
	if c.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	// Backoff delays and multiplier must form a usable schedule
	if c.BaseDelay <= 0 || c.MaxDelay < c.BaseDelay || c.Multiplier < 1 {
		return ErrInvalidBackoff
	}

	// Jitter is a fraction of the delay
	if c.Jitter < 0 || c.Jitter > 1 {
		return ErrInvalidJitter
	}

	// JSONReport and MarkdownReport are mutually exclusive
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	// MaxBodySize must be non-negative
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	// Rate limits from the configuration file must be positive
	if c.FileConfig != nil {
		if err := c.FileConfig.validateRateLimits(); err != nil {
			return err
		}
	}

	return nil
}
