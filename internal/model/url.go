package model

import (
	"net/url"
	"strings"
)

// DomainOf extracts the lowercased host (without port) from a raw URL.
// Returns the empty string when the URL cannot be parsed or has no host.
//
// Every component that keys state by domain (rate limiter, geo selector,
// statistics) uses this so they all agree on what "the domain" is.
func DomainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	return strings.ToLower(host)
}

// TLDOf returns the last dot-separated label of the domain for a raw URL
// (e.g. "de" for "https://shop.example.de/x"). Returns the empty string when
// there is no dot in the host. Used by geo-aware proxy selection.
func TLDOf(rawURL string) string {
	host := DomainOf(rawURL)
	idx := strings.LastIndex(host, ".")
	if idx < 0 || idx == len(host)-1 {
		return ""
	}
	return host[idx+1:]
}
