package model

import (
	"crypto/sha256"
	"encoding/hex"
)

// MaxSnapshotSize is the maximum size of the text snapshot in bytes.
// We limit this to prevent memory issues with very large pages.
const MaxSnapshotSize = 512 * 1024 // 512 KB

// MaxPageSize is the maximum size of raw page content to retain in bytes.
const MaxPageSize = 5 * 1024 * 1024 // 5 MB

// Page represents a fetched web page with its extracted content.
//
// Design decision: We store both raw bytes and parsed content because:
//  1. Raw bytes are needed for hashing and change detection
//  2. Parsed content (title, links, text) feeds annotation and storage
//  3. The hash allows deduplication across sessions
type Page struct {
	// URL is the full URL of the page.
	URL string `json:"url"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// Headers contains all HTTP response headers.
	Headers map[string][]string `json:"headers,omitempty"`

	// ContentType is the MIME type from the Content-Type header.
	ContentType string `json:"content_type"`

	// Title is the page title extracted from the <title> tag.
	// Empty for non-HTML content.
	Title string `json:"title,omitempty"`

	// Links are the absolute URLs of all anchors found on the page.
	Links []string `json:"links,omitempty"`

	// Language is the detected document language as a BCP 47 tag
	// (e.g. "en", "ja"). Empty when detection was inconclusive.
	// Annotation only; it never influences scheduling.
	Language string `json:"language,omitempty"`

	// Snapshot is a text-only snapshot of the page content, limited to
	// MaxSnapshotSize bytes.
	Snapshot string `json:"snapshot,omitempty"`

	// Raw contains the raw response body bytes, limited to MaxPageSize.
	Raw []byte `json:"-"` // Excluded from JSON to keep results small

	// Hash is the SHA-256 hash of the raw content.
	Hash string `json:"hash,omitempty"`

	// ProxyAddress is the egress proxy the fetch was routed through.
	// Empty when the fetch went out directly.
	ProxyAddress string `json:"proxy_address,omitempty"`
}

// ComputeHash calculates and stores the SHA-256 hash of the raw content.
func (p *Page) ComputeHash() {
	sum := sha256.Sum256(p.Raw)
	p.Hash = hex.EncodeToString(sum[:])
}

// TruncateSnapshot enforces the snapshot size limit.
func (p *Page) TruncateSnapshot() {
	if len(p.Snapshot) > MaxSnapshotSize {
		p.Snapshot = p.Snapshot[:MaxSnapshotSize]
	}
}

// TruncateRaw enforces the raw content size limit.
func (p *Page) TruncateRaw() {
	if len(p.Raw) > MaxPageSize {
		p.Raw = p.Raw[:MaxPageSize]
	}
}

// Domain returns the host portion of the page URL, or the empty string if
// the URL cannot be parsed. Convenience for per-domain bookkeeping.
func (p *Page) Domain() string {
	return DomainOf(p.URL)
}
