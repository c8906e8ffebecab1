// Package fetch provides the HTTP fetch capability used by the crawler:
// proxy-aware page retrieval and the crawlability predicate applied at
// enqueue time.
//
// # Proxy handling
//
// The client speaks both HTTP and SOCKS5 egress proxies natively. HTTP
// proxies go through the transport's Proxy hook; SOCKS5 addresses get a
// dedicated dialer (golang.org/x/net/proxy). There is no silent fallback
// to a direct connection: when a fetch is asked to use a proxy and the
// proxy cannot be reached, the fetch fails with a proxy-classified error
// so the scheduler can reroute. Falling back silently would expose the
// crawler's own address, which callers using proxies explicitly asked to
// avoid.
//
// # Error classification
//
// Transport failures are classified into the model.CrawlError kinds the
// scheduler branches on: timeouts, DNS failures, proxy failures, and
// generic network errors. Non-2xx responses classify by status code.
package fetch
