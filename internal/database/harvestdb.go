package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/harvester/internal/model"
)

// HarvestDB provides SQLite-based storage for crawl sessions: fetched
// pages, session summaries, and the dead-task audit trail.
//
// Design decision: We use a single database file shared across sessions
// rather than one file per session. Cross-session queries (has this URL
// changed since last time?) stay simple, and backup is one file.
type HarvestDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HarvestDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a HarvestDB at the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HarvestDB, error) {
	dbPath := filepath.Join(dbDir, "harvester.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite uses mode=rw to refuse creating new files and
	// mode=rwc to allow creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer, so one connection avoids lock
	// contention errors under the concurrent worker pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HarvestDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (hdb *HarvestDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HarvestDB) createTables() error {
	schema := `
	-- Pages store individual fetch results
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		url TEXT NOT NULL,
		domain TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		status_code INTEGER,
		content_type TEXT,
		title TEXT,
		language TEXT,
		snapshot TEXT,
		raw_hash TEXT,
		proxy_address TEXT,
		links TEXT,
		headers TEXT,
		UNIQUE(url, session_id)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);
	CREATE INDEX IF NOT EXISTS idx_pages_session ON pages(session_id);
	CREATE INDEX IF NOT EXISTS idx_pages_domain ON pages(domain);
	CREATE INDEX IF NOT EXISTS idx_pages_timestamp ON pages(timestamp);

	-- Sessions store one summary row per crawl run
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		started_at DATETIME,
		finished_at DATETIME,
		stats_json TEXT
	);

	-- Dead tasks record permanent failures for auditing
	CREATE TABLE IF NOT EXISTS dead_tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		url TEXT NOT NULL,
		attempts INTEGER,
		last_error TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_dead_session ON dead_tasks(session_id);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// PageRecord represents a stored fetch result.
type PageRecord struct {
	ID           int64
	SessionID    string
	URL          string
	Domain       string
	Timestamp    time.Time
	StatusCode   int
	ContentType  string
	Title        string
	Language     string
	Snapshot     string
	Hash         string
	ProxyAddress string
	Links        []string
	Headers      map[string][]string
}

// SavePage inserts or updates a page record for the session.
// Uses UPSERT so refetching a URL within a session keeps one row per URL.
func (hdb *HarvestDB) SavePage(ctx context.Context, sessionID string, page *model.Page) error {
	headersJSON, err := json.Marshal(page.Headers)
	if err != nil {
		return fmt.Errorf("failed to serialize headers: %w", err)
	}
	linksJSON, err := json.Marshal(page.Links)
	if err != nil {
		return fmt.Errorf("failed to serialize links: %w", err)
	}

	query := `
	INSERT INTO pages (session_id, url, domain, status_code, content_type, title, language, snapshot, raw_hash, proxy_address, links, headers)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url, session_id) DO UPDATE SET
		status_code = excluded.status_code,
		content_type = excluded.content_type,
		title = excluded.title,
		language = excluded.language,
		snapshot = excluded.snapshot,
		raw_hash = excluded.raw_hash,
		proxy_address = excluded.proxy_address,
		links = excluded.links,
		headers = excluded.headers,
		timestamp = CURRENT_TIMESTAMP
	`

	_, err = hdb.db.ExecContext(ctx, query,
		sessionID,
		page.URL,
		page.Domain(),
		page.StatusCode,
		page.ContentType,
		page.Title,
		page.Language,
		page.Snapshot,
		page.Hash,
		page.ProxyAddress,
		string(linksJSON),
		string(headersJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save page: %w", err)
	}
	return nil
}

// GetPage retrieves a page record by URL and session.
// Returns nil without error when no record exists.
func (hdb *HarvestDB) GetPage(ctx context.Context, sessionID, url string) (*PageRecord, error) {
	query := `
	SELECT id, session_id, url, domain, timestamp, status_code, content_type, title, language, snapshot, raw_hash, proxy_address, links, headers
	FROM pages
	WHERE url = ? AND session_id = ?
	`

	row := hdb.db.QueryRowContext(ctx, query, url, sessionID)
	record, err := scanPage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get page: %w", err)
	}
	return record, nil
}

// ListPages returns every page stored for a session, newest first.
func (hdb *HarvestDB) ListPages(ctx context.Context, sessionID string) ([]PageRecord, error) {
	query := `
	SELECT id, session_id, url, domain, timestamp, status_code, content_type, title, language, snapshot, raw_hash, proxy_address, links, headers
	FROM pages
	WHERE session_id = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := hdb.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	var results []PageRecord
	for rows.Next() {
		record, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		results = append(results, *record)
	}
	return results, rows.Err()
}

// HasRecentFetch checks if a URL was fetched within the specified duration,
// in any session.
func (hdb *HarvestDB) HasRecentFetch(ctx context.Context, url string, duration time.Duration) (bool, error) {
	query := `
	SELECT COUNT(*) FROM pages
	WHERE url = ? AND timestamp > datetime('now', ?)
	`

	// SQLite datetime modifier format
	modifier := fmt.Sprintf("-%d seconds", int(duration.Seconds()))

	var count int
	if err := hdb.db.QueryRowContext(ctx, query, url, modifier).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check recent fetch: %w", err)
	}
	return count > 0, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanPage reads one page row.
func scanPage(s scanner) (*PageRecord, error) {
	var record PageRecord
	var timestamp string
	var linksJSON, headersJSON sql.NullString

	err := s.Scan(
		&record.ID,
		&record.SessionID,
		&record.URL,
		&record.Domain,
		&timestamp,
		&record.StatusCode,
		&record.ContentType,
		&record.Title,
		&record.Language,
		&record.Snapshot,
		&record.Hash,
		&record.ProxyAddress,
		&linksJSON,
		&headersJSON,
	)
	if err != nil {
		return nil, err
	}

	record.Timestamp = parseTimestamp(timestamp)
	if linksJSON.Valid && linksJSON.String != "" {
		if err := json.Unmarshal([]byte(linksJSON.String), &record.Links); err != nil {
			return nil, fmt.Errorf("failed to parse links: %w", err)
		}
	}
	if headersJSON.Valid && headersJSON.String != "" {
		if err := json.Unmarshal([]byte(headersJSON.String), &record.Headers); err != nil {
			return nil, fmt.Errorf("failed to parse headers: %w", err)
		}
	}
	return &record, nil
}

// SessionRecord summarizes one crawl run.
type SessionRecord struct {
	// ID is the session identifier.
	ID string

	// StartedAt is when the session began.
	StartedAt time.Time

	// FinishedAt is when the session ended.
	FinishedAt time.Time

	// Stats is the queue's final aggregate snapshot.
	Stats model.QueueStatistics
}

// SaveSession inserts or replaces the summary row for a session.
func (hdb *HarvestDB) SaveSession(ctx context.Context, record *SessionRecord) error {
	statsJSON, err := json.Marshal(record.Stats)
	if err != nil {
		return fmt.Errorf("failed to serialize statistics: %w", err)
	}

	query := `
	INSERT INTO sessions (id, started_at, finished_at, stats_json)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		started_at = excluded.started_at,
		finished_at = excluded.finished_at,
		stats_json = excluded.stats_json
	`

	_, err = hdb.db.ExecContext(ctx, query,
		record.ID,
		record.StartedAt.UTC().Format("2006-01-02 15:04:05"),
		record.FinishedAt.UTC().Format("2006-01-02 15:04:05"),
		string(statsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession retrieves one session summary by ID.
// Returns nil without error when no record exists.
func (hdb *HarvestDB) GetSession(ctx context.Context, sessionID string) (*SessionRecord, error) {
	query := `
	SELECT id, started_at, finished_at, stats_json FROM sessions
	WHERE id = ?
	`

	var record SessionRecord
	var started, finished string
	var statsJSON sql.NullString

	err := hdb.db.QueryRowContext(ctx, query, sessionID).Scan(
		&record.ID, &started, &finished, &statsJSON,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	record.StartedAt = parseTimestamp(started)
	record.FinishedAt = parseTimestamp(finished)
	if statsJSON.Valid && statsJSON.String != "" {
		if err := json.Unmarshal([]byte(statsJSON.String), &record.Stats); err != nil {
			return nil, fmt.Errorf("failed to parse statistics: %w", err)
		}
	}
	return &record, nil
}

// ListSessions returns every stored session summary, newest first.
func (hdb *HarvestDB) ListSessions(ctx context.Context) ([]SessionRecord, error) {
	query := `
	SELECT id, started_at, finished_at, stats_json FROM sessions
	ORDER BY started_at DESC
	`

	rows, err := hdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var results []SessionRecord
	for rows.Next() {
		var record SessionRecord
		var started, finished string
		var statsJSON sql.NullString

		if err := rows.Scan(&record.ID, &started, &finished, &statsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		record.StartedAt = parseTimestamp(started)
		record.FinishedAt = parseTimestamp(finished)
		if statsJSON.Valid && statsJSON.String != "" {
			if err := json.Unmarshal([]byte(statsJSON.String), &record.Stats); err != nil {
				continue // Skip malformed rows
			}
		}
		results = append(results, record)
	}
	return results, rows.Err()
}

// SaveDeadTasks records the session's permanent failures for auditing.
func (hdb *HarvestDB) SaveDeadTasks(ctx context.Context, sessionID string, tasks []*model.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	query := `
	INSERT INTO dead_tasks (session_id, task_id, url, attempts, last_error)
	VALUES (?, ?, ?, ?, ?)
	`

	for _, task := range tasks {
		if _, err := hdb.db.ExecContext(ctx, query,
			sessionID,
			task.ID,
			task.URL,
			task.AttemptCount,
			task.LastError,
		); err != nil {
			return fmt.Errorf("failed to save dead task: %w", err)
		}
	}
	return nil
}

// DeadTaskRecord is one audited permanent failure.
type DeadTaskRecord struct {
	ID        int64
	SessionID string
	TaskID    string
	URL       string
	Attempts  int
	LastError string
	Timestamp time.Time
}

// DeadTasksFor returns the audited permanent failures of a session.
func (hdb *HarvestDB) DeadTasksFor(ctx context.Context, sessionID string) ([]DeadTaskRecord, error) {
	query := `
	SELECT id, session_id, task_id, url, attempts, last_error, timestamp
	FROM dead_tasks
	WHERE session_id = ?
	ORDER BY id
	`

	rows, err := hdb.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dead tasks: %w", err)
	}
	defer rows.Close()

	var results []DeadTaskRecord
	for rows.Next() {
		var record DeadTaskRecord
		var timestamp string

		if err := rows.Scan(
			&record.ID,
			&record.SessionID,
			&record.TaskID,
			&record.URL,
			&record.Attempts,
			&record.LastError,
			&timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan dead task: %w", err)
		}
		record.Timestamp = parseTimestamp(timestamp)
		results = append(results, record)
	}
	return results, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
