package fetch

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// URL validation errors, wrapped into a configuration-kind error by the
// queue at enqueue time.
var (
	// ErrEmptyURL is returned for an empty or whitespace-only URL.
	ErrEmptyURL = errors.New("empty URL")

	// ErrUnsupportedScheme is returned for schemes other than http/https.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme: only http and https are crawlable")

	// ErrMissingHost is returned for URLs without a host component.
	ErrMissingHost = errors.New("URL has no host")

	// ErrDisallowedExtension is returned for URLs pointing at binary or
	// media files the crawler has no use for.
	ErrDisallowedExtension = errors.New("URL extension is not crawlable")
)

// disallowedExtensions lists path extensions the crawler skips outright.
// Fetching large binaries wastes bandwidth and politeness budget on
// content the extraction layer cannot use.
var disallowedExtensions = map[string]bool{
	".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".7z": true,
	".rar": true, ".exe": true, ".dmg": true, ".iso": true, ".bin": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".bmp": true, ".ico": true, ".svg": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mkv": true, ".mov": true,
	".wav": true, ".flac": true, ".ogg": true, ".webm": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
}

// ValidateURL reports whether a URL is crawlable: parseable, http or https,
// with a host, and not pointing at a disallowed file type. A nil return
// means crawlable.
func ValidateURL(rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ErrEmptyURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("%w (got %q)", ErrUnsupportedScheme, u.Scheme)
	}

	if u.Host == "" {
		return ErrMissingHost
	}

	if ext := strings.ToLower(path.Ext(u.Path)); ext != "" && disallowedExtensions[ext] {
		return fmt.Errorf("%w (got %q)", ErrDisallowedExtension, ext)
	}

	return nil
}
