// Package main provides the entry point for the harvester CLI.
//
// Harvester is a polite, fault-tolerant web crawler. It schedules fetches
// through a retrying priority queue, paces requests per domain, and routes
// egress through a health-tracked proxy pool.
//
// Usage:
//
//	harvester crawl <url> [url...]
//	harvester crawl --follow --max-pages 50 <url>
//
// See --help for all available options.
package main

// main is the entry point for harvester.
func main() {
	Execute()
}
