package proxy

import "errors"

// Proxy pool errors.
var (
	// ErrUnknownProxy is returned when a success or failure report names
	// an address that is not in the pool.
	ErrUnknownProxy = errors.New("proxy address not in pool")

	// ErrNoHealthyProxy is returned by selection when every proxy in the
	// pool is unhealthy or the pool is empty. Callers treat this as a
	// scheduling signal and reschedule the task rather than falling back
	// to a direct connection, which would expose the caller's address.
	ErrNoHealthyProxy = errors.New("no healthy proxy available")

	// ErrInvalidProxyAddress is returned when an address cannot be parsed
	// as host:port or a proxy URL.
	ErrInvalidProxyAddress = errors.New("invalid proxy address")
)
