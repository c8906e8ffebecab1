// Package config provides configuration structures and utilities for
// harvester. It defines the crawl options populated from CLI flags and the
// YAML configuration file carrying per-domain rate limits, the proxy pool,
// and region routing rules.
package config
